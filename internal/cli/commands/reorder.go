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

var reorderAlphabetical bool

var reorderCmd = &cobra.Command{
	Use:   "reorder <parent-path> [child-name...]",
	Short: "Set the display order of a container's children",
	Long: `Assign an explicit display order to the children of the container at
parent-path, following the given child names. Every child must be
named exactly once. With --alphabetical the explicit order is cleared
instead and the children fall back to name order.

Examples:
  canopy reorder /proteomics comet mascot archive
  canopy reorder /proteomics --alphabetical`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReorder,
}

func init() {
	reorderCmd.Flags().BoolVar(&reorderAlphabetical, "alphabetical", false, "clear explicit ordering")
	rootCmd.AddCommand(reorderCmd)
}

func runReorder(cmd *cobra.Command, args []string) error {
	store, mgr, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	parent, err := mgr.Resolve(ctx, args[0])
	if err != nil {
		return err
	}

	if reorderAlphabetical {
		if len(args) > 1 {
			return fmt.Errorf("--alphabetical takes no child names")
		}
		if err := mgr.SetChildOrderToAlphabetical(ctx, parent); err != nil {
			return err
		}
		fmt.Printf("Children of %s now sort alphabetically\n", parent.Path)
		return nil
	}

	children, err := mgr.Children(ctx, parent)
	if err != nil {
		return err
	}
	byName := make(map[string]string, len(children))
	for _, c := range children {
		byName[c.Name] = c.ID
	}

	ids := make([]string, 0, len(args)-1)
	for _, name := range args[1:] {
		id, ok := byName[name]
		if !ok {
			return fmt.Errorf("%s has no child named %q", parent.Path, name)
		}
		ids = append(ids, id)
	}

	if err := mgr.Reorder(ctx, parent, ids); err != nil {
		return err
	}
	fmt.Printf("Reordered children of %s\n", parent.Path)
	return nil
}
