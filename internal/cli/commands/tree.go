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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"canopy/internal/namespace"
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print a subtree",
	Long:  `Print the container at the given path and everything below it as an indented tree. Defaults to the root.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTree,
}

func init() {
	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
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
	root, err := mgr.ResolveWithAliases(ctx, path)
	if err != nil {
		return err
	}
	return printTree(ctx, mgr, root, "")
}

func printTree(ctx context.Context, mgr *namespace.Manager, c *namespace.Container, indent string) error {
	name := c.Name
	if c.IsRoot() {
		name = "/"
	}
	fmt.Printf("%s%s%s\n", indent, name, lockSuffix(c))

	children, err := mgr.Children(ctx, c)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := printTree(ctx, mgr, child, indent+"  "); err != nil {
			return err
		}
	}
	return nil
}
