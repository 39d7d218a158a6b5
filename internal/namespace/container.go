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

// Package namespace manages a hierarchy of named containers backed by a
// database table. Containers are addressed by filesystem-like paths
// (e.g. /proteomics/comet) that map to an immutable id; every other
// subsystem attaches state to containers by that id.
//
// Paths behave like java.io.File: they start with a forward slash and do
// not end with one. The root container's name is "" and its path "/".
package namespace

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"canopy/internal/common"
	"canopy/internal/storage"
)

// Type selects a container's structural capabilities.
type Type string

const (
	// TypeFolder is the default container type.
	TypeFolder Type = "folder"
	// TypeProject marks a container directly under the root.
	TypeProject Type = "project"
	// TypeWorkbook is a leaf-only container that can never have children.
	TypeWorkbook Type = "workbook"
	// TypeTab is a folder owned by its parent's tabbed layout; it only
	// lives under folder or project containers.
	TypeTab Type = "tab"
)

// CanHaveChildren reports whether containers of this type may hold
// children at all.
func (t Type) CanHaveChildren() bool {
	return t != TypeWorkbook
}

// LockState is an administrative flag orthogonal to tree structure.
type LockState string

const (
	LockStateUnlocked LockState = "unlocked"
	LockStateLocked   LockState = "locked"
	LockStateExcluded LockState = "excluded"
)

// System-protected paths, exempt from rename, move and delete.
const (
	HomePath   = "/home"
	SharedPath = "/Shared"
)

// Container is a node in the hierarchical namespace. Outside the
// mutation engine a Container is treated as immutable; readers never
// modify a cached instance.
type Container struct {
	ID             string
	ParentID       string // empty only for the root
	Name           string
	Path           string // derived: path(parent) + "/" + name
	SortOrder      int    // 0 means siblings sort alphabetically
	Title          string
	Description    string
	Type           Type
	LockState      LockState
	ExpirationDate time.Time // zero means none
	CreatedAt      time.Time
	CreatedBy      string
}

// IsRoot reports whether c is the root container.
func (c *Container) IsRoot() bool {
	return c.ParentID == ""
}

// IsProject reports whether c sits directly under the root.
func (c *Container) IsProject() bool {
	return !c.IsRoot() && strings.Count(c.Path, "/") == 1
}

// PathKey returns the case-folded cache key for c's path.
func (c *Container) PathKey() string {
	return common.PathKey(c.Path)
}

// IsSystemProtected reports whether c is exempt from rename, move and
// delete: the root, the home project and the shared project.
func (c *Container) IsSystemProtected() bool {
	if c.IsRoot() {
		return true
	}
	key := c.PathKey()
	return key == common.PathKey(HomePath) || key == common.PathKey(SharedPath)
}

// ProjectPath returns the path of the project c belongs to: the
// ancestor directly under the root, or c's own path if c is a project.
// The root belongs to no project and yields "/".
func (c *Container) ProjectPath() string {
	segments := common.SplitPath(c.Path)
	if len(segments) == 0 {
		return "/"
	}
	return "/" + segments[0]
}

func (c *Container) String() string {
	return fmt.Sprintf("%s (%s)", c.Path, c.ID)
}

// legalNamePattern is the safe character set for container names.
var legalNamePattern = regexp.MustCompile(`^[0-9A-Za-z_ \-.()]+$`)

const maxNameLength = 255

// CheckName validates a proposed container name against the legality
// rules: non-empty, bounded length, safe character set, no leading or
// trailing whitespace.
func CheckName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", common.ErrIllegalName)
	case len(name) > maxNameLength:
		return fmt.Errorf("%w: name exceeds %d characters", common.ErrIllegalName, maxNameLength)
	case name != strings.TrimSpace(name):
		return fmt.Errorf("%w: name has leading or trailing whitespace", common.ErrIllegalName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q is reserved", common.ErrIllegalName, name)
	case !legalNamePattern.MatchString(name):
		return fmt.Errorf("%w: %q contains illegal characters", common.ErrIllegalName, name)
	}
	return nil
}

// checkChildType enforces the type capability rules for creating or
// moving a container of childType under parent.
func checkChildType(parent *Container, childType Type) error {
	if !parent.Type.CanHaveChildren() {
		return fmt.Errorf("%w: %s containers cannot have children", common.ErrTypeCapability, parent.Type)
	}
	switch childType {
	case TypeProject:
		if !parent.IsRoot() {
			return fmt.Errorf("%w: projects may only live directly under the root", common.ErrTypeCapability)
		}
	case TypeTab:
		if parent.Type != TypeFolder && parent.Type != TypeProject {
			return fmt.Errorf("%w: tabs require a folder or project parent", common.ErrTypeCapability)
		}
	}
	return nil
}

// containerFromModel builds a Container from its row, given the already
// resolved parent path.
func containerFromModel(m *storage.ContainerModel, parentPath string) *Container {
	path := "/"
	if m.ParentID != "" {
		path = common.JoinPath(parentPath, m.Name)
	}
	c := &Container{
		ID:          m.ID,
		ParentID:    m.ParentID,
		Name:        m.Name,
		Path:        path,
		SortOrder:   m.SortOrder,
		Title:       m.Title,
		Description: m.Description,
		Type:        Type(m.Type),
		LockState:   LockState(m.LockState),
		CreatedAt:   time.Unix(m.CreatedAt, 0),
		CreatedBy:   m.CreatedBy,
	}
	if m.ExpirationDate != 0 {
		c.ExpirationDate = time.Unix(m.ExpirationDate, 0)
	}
	return c
}

// modelFromContainer converts a Container back to its row form.
func modelFromContainer(c *Container) *storage.ContainerModel {
	m := &storage.ContainerModel{
		ID:          c.ID,
		ParentID:    c.ParentID,
		Name:        c.Name,
		SortOrder:   c.SortOrder,
		Title:       c.Title,
		Description: c.Description,
		Type:        string(c.Type),
		LockState:   string(c.LockState),
		CreatedAt:   c.CreatedAt.Unix(),
		CreatedBy:   c.CreatedBy,
	}
	if !c.ExpirationDate.IsZero() {
		m.ExpirationDate = c.ExpirationDate.Unix()
	}
	return m
}
