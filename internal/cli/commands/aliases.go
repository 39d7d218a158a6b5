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

var aliasesSet []string

var aliasesCmd = &cobra.Command{
	Use:   "aliases <path>",
	Short: "Show or replace a container's path aliases",
	Long: `Show the alias paths recorded for the container at path. With --set
the alias set is replaced wholesale; aliases that would shadow a live
container are skipped.

Examples:
  canopy aliases /proteomics/comet
  canopy aliases /proteomics/comet --set /old/comet --set /legacy/comet
  canopy aliases /proteomics/comet --set ""`,
	Args: cobra.ExactArgs(1),
	RunE: runAliases,
}

func init() {
	aliasesCmd.Flags().StringArrayVar(&aliasesSet, "set", nil, "replace the alias set (repeatable; one empty value clears)")
	rootCmd.AddCommand(aliasesCmd)
}

func runAliases(cmd *cobra.Command, args []string) error {
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

	if cmd.Flags().Changed("set") {
		paths := aliasesSet
		if len(paths) == 1 && paths[0] == "" {
			paths = nil
		}
		if err := mgr.SaveAliases(ctx, c, paths); err != nil {
			return err
		}
	}

	aliases, err := mgr.Aliases(ctx, c)
	if err != nil {
		return err
	}
	if len(aliases) == 0 {
		fmt.Printf("%s has no aliases\n", c.Path)
		return nil
	}
	for _, a := range aliases {
		fmt.Println(a)
	}
	return nil
}
