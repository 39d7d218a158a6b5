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
	"os"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"canopy/internal/config"
	"canopy/internal/namespace"
	"canopy/internal/security"
	"canopy/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the namespace database",
	Long: `Create the namespace database and bootstrap the root container along
with the /home and /Shared projects.

Safe to run repeatedly: an already initialized namespace is left as is.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	// Concurrent inits race on schema creation; take a file lock for
	// the whole sequence.
	lock := flock.New(config.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire init lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another init is already running")
	}
	defer lock.Unlock()

	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}
	if _, err := os.Stat(config.SettingsPath()); os.IsNotExist(err) {
		if err := config.SaveSettings(settings); err != nil {
			return fmt.Errorf("failed to write settings: %w", err)
		}
		fmt.Printf("  created %s\n", config.SettingsPath())
	}

	dbPath := config.DatabasePath()
	existed := false
	if _, err := os.Stat(dbPath); err == nil {
		existed = true
	}

	store, err := storage.Open(dbPath, settings.BusyTimeoutMS)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr := namespace.NewManager(store, security.NewPolicyStore(store.Bun()), namespace.Options{
		RecordAliases: settings.AliasesEnabled(),
		RetryAttempts: uint(settings.RetryAttempts),
	})
	if err := mgr.Bootstrap(cmd.Context(), asUser); err != nil {
		return fmt.Errorf("bootstrapping namespace: %w", err)
	}

	if existed {
		fmt.Printf("Reinitialized existing namespace in %s\n", dbPath)
	} else {
		fmt.Printf("Initialized namespace in %s\n", dbPath)
	}
	return nil
}
