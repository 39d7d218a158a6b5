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

	"github.com/spf13/cobra"

	"canopy/internal/namespace"
)

var listCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "List the children of a container",
	Long: `List the children of the container at the given path, in display
order: explicit sort order first, then case-folded name. Defaults to
the root.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store, mgr, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	ctx := cmd.Context()
	parent, err := mgr.ResolveWithAliases(ctx, path)
	if err != nil {
		return err
	}
	children, err := mgr.Children(ctx, parent)
	if err != nil {
		return err
	}

	if len(children) == 0 {
		fmt.Printf("%s has no children\n", parent.Path)
		return nil
	}
	for _, c := range children {
		fmt.Printf("%-10s %s%s\n", c.Type, c.Name, lockSuffix(c))
	}
	return nil
}

func lockSuffix(c *namespace.Container) string {
	if c.LockState == namespace.LockStateUnlocked {
		return ""
	}
	return fmt.Sprintf(" [%s]", c.LockState)
}
