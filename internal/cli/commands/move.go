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

var moveCmd = &cobra.Command{
	Use:   "move <path> <new-parent-path>",
	Short: "Move a container under a new parent",
	Long: `Move the container at path under the container at new-parent-path.
The container keeps its identity and its name; only its path changes.
A move across project boundaries also moves the subtree's security
scope to the new project.`,
	Args: cobra.ExactArgs(2),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
}

func runMove(cmd *cobra.Command, args []string) error {
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
	newParent, err := mgr.Resolve(ctx, args[1])
	if err != nil {
		return err
	}

	moved, scopeChanged, err := mgr.Move(ctx, c, newParent, asUser)
	if err != nil {
		return err
	}
	fmt.Printf("Moved %s -> %s\n", c.Path, moved.Path)
	if scopeChanged {
		fmt.Println("Security scope moved to the new project")
	}
	return nil
}
