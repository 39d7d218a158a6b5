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
)

var renameCmd = &cobra.Command{
	Use:   "rename <path> <new-name>",
	Short: "Rename a container",
	Long: `Rename the container at the given path. The container keeps its place
in the tree; only the final path segment changes. When alias recording
is enabled the old path keeps resolving to the renamed container.`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

func init() {
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	store, mgr, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	c, err := mgr.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	renamed, err := mgr.Rename(ctx, c, args[1], asUser)
	if err != nil {
		return err
	}
	fmt.Printf("Renamed %s -> %s\n", c.Path, renamed.Path)
	return nil
}
