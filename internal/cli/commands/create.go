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

	"canopy/internal/common"
	"canopy/internal/namespace"
)

var (
	createType        string
	createTitle       string
	createDescription string
	createParents     bool
)

var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create a container",
	Long: `Create a container at the given path. The parent must already exist
unless --parents is given.

Examples:
  canopy create /proteomics
  canopy create /proteomics/comet --title "Comet searches"
  canopy create /proteomics/comet/wb1 --type workbook
  canopy create /a/b/c --parents`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createType, "type", "", "container type: folder, project, workbook or tab")
	createCmd.Flags().StringVar(&createTitle, "title", "", "display title")
	createCmd.Flags().StringVar(&createDescription, "description", "", "description")
	createCmd.Flags().BoolVarP(&createParents, "parents", "p", false, "create missing parent containers")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	store, mgr, err := openManager()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	path := common.NormalizePath(args[0])
	opts := namespace.CreateOptions{
		Type:        namespace.Type(createType),
		Title:       createTitle,
		Description: createDescription,
		CreatedBy:   asUser,
	}

	if createParents {
		c, err := mgr.EnsureContainer(ctx, path, opts)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s\n", c.Path)
		return nil
	}

	parentPath, ok := common.ParentPath(path)
	if !ok {
		return fmt.Errorf("cannot create the root")
	}
	parent, err := mgr.Resolve(ctx, parentPath)
	if err != nil {
		return fmt.Errorf("parent %s: %w", parentPath, err)
	}
	c, err := mgr.Create(ctx, parent, common.BaseName(path), opts)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s (%s)\n", c.Path, c.ID)
	return nil
}
