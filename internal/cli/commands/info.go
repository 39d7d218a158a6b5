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
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <path>",
	Short: "Show details of a container",
	Long: `Show a container's identity, type and attributes. The path may be an
alias of the container's current path.

Examples:
  canopy info /
  canopy info /proteomics/comet`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	store, mgr, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	c, err := mgr.ResolveWithAliases(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Path: %s\n", c.Path)
	fmt.Printf("ID: %s\n", c.ID)
	fmt.Printf("Type: %s\n", c.Type)
	fmt.Printf("Lock state: %s\n", c.LockState)
	if c.Title != "" {
		fmt.Printf("Title: %s\n", c.Title)
	}
	if c.Description != "" {
		fmt.Printf("Description: %s\n", c.Description)
	}
	if !c.ExpirationDate.IsZero() {
		fmt.Printf("Expires: %s\n", c.ExpirationDate.Format("2006-01-02"))
	}
	fmt.Printf("Created: %s", c.CreatedAt.Format("2006-01-02 15:04:05"))
	if c.CreatedBy != "" {
		fmt.Printf(" by %s", c.CreatedBy)
	}
	fmt.Println()

	if aliases, err := mgr.Aliases(ctx, c); err == nil && len(aliases) > 0 {
		fmt.Printf("Aliases: %s\n", strings.Join(aliases, ", "))
	}
	return nil
}
