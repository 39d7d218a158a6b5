// Copyright 2025 Canopy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	logrus "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"canopy/internal/config"
	"canopy/internal/namespace"
	"canopy/internal/security"
	"canopy/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// asUser is the identity mutations run under (--user).
var asUser string

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		// Dev build: include epoch and commit for troubleshooting
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	// Prod build: version with date
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

var rootCmd = &cobra.Command{
	Use:   "canopy",
	Short: "Hierarchical container namespace manager",
	Long:  `Manage a hierarchy of named containers: create, move, rename and delete containers addressed by filesystem-like paths.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		if err := config.EnsureConfigDir(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		settings, err := config.LoadSettings()
		if err != nil {
			return err
		}
		configureLogging(settings)
		return nil
	},
}

// configureLogging points logrus at the log file with the configured
// level, discarding output when logging is off.
func configureLogging(settings *config.Settings) {
	switch settings.LogLevel() {
	case "trace":
		logrus.SetLevel(logrus.TraceLevel)
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "", "none", "off":
		logrus.SetOutput(io.Discard)
		return
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logFile, err := os.OpenFile(config.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		logrus.SetOutput(io.Discard)
		return
	}
	logrus.SetOutput(logFile)
}

// openManager opens the namespace database and wires the engine over
// it. The caller closes the returned store.
func openManager() (*storage.Store, *namespace.Manager, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, nil, err
	}

	dbPath := config.DatabasePath()
	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil, fmt.Errorf("no namespace database at %s (run 'canopy init' first)", dbPath)
	}

	store, err := storage.Open(dbPath, settings.BusyTimeoutMS)
	if err != nil {
		return nil, nil, err
	}

	mgr := namespace.NewManager(store, security.NewPolicyStore(store.Bun()), namespace.Options{
		CacheTTL:      settings.CacheTTLDuration(),
		CacheSize:     settings.CacheSize,
		RecordAliases: settings.AliasesEnabled(),
		RetryAttempts: uint(settings.RetryAttempts),
	})
	return store, mgr, nil
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("canopy version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&asUser, "user", security.AdminUser, "identity to run the operation as")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
