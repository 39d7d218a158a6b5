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

var deleteRecursive bool

var deleteCmd = &cobra.Command{
	Use:   "delete <path>",
	Short: "Delete a container",
	Long: `Delete the container at the given path. A container with children is
refused unless --recursive is given, in which case the whole subtree is
removed, deepest first.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteRecursive, "recursive", "r", false, "delete the whole subtree")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	if deleteRecursive {
		if err := mgr.DeleteSubtree(ctx, c, asUser); err != nil {
			return err
		}
	} else {
		if err := mgr.Delete(ctx, c, asUser); err != nil {
			return err
		}
	}
	fmt.Printf("Deleted %s\n", c.Path)
	return nil
}
