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

package common

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound means no container exists at the requested path or id.
	ErrNotFound = errors.New("container not found")

	// ErrRootMissing means the namespace has never been initialized: the
	// containers table holds no root row. Distinct from ErrNotFound so
	// bootstrap code can tell "empty database" from "bad path".
	ErrRootMissing = errors.New("root container does not exist")

	// ErrIllegalName covers empty, reserved, over-long and
	// duplicate-sibling names.
	ErrIllegalName = errors.New("illegal container name")

	// ErrTypeCapability is returned when a container type forbids the
	// requested operation, e.g. creating a child under a workbook.
	ErrTypeCapability = errors.New("container type does not allow this operation")

	// ErrSystemProtected guards the root, home and shared containers
	// against rename, move and delete.
	ErrSystemProtected = errors.New("container is system protected")

	// ErrDeleteInProgress is returned when a container is already being
	// deleted by another caller.
	ErrDeleteInProgress = errors.New("container delete already in progress")

	// ErrNotEmpty is returned when deleting a container that still has
	// children.
	ErrNotEmpty = errors.New("container has children")

	// ErrConflict is a transient store serialization conflict surfaced
	// after internal retries are exhausted.
	ErrConflict = errors.New("store conflict")
)

// ValidationError aggregates listener vetoes collected during the
// pre-flight phase of a move. The move does not proceed if any veto
// exists.
type ValidationError struct {
	Vetoes []string
}

func (e *ValidationError) Error() string {
	return "move vetoed: " + strings.Join(e.Vetoes, "; ")
}

// IsUserError reports whether err describes an invalid request rather
// than an operational failure. Callers use this to pick a 4xx-style
// response over a 5xx-style one.
func IsUserError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrIllegalName) ||
		errors.Is(err, ErrTypeCapability) ||
		errors.Is(err, ErrSystemProtected) ||
		errors.Is(err, ErrNotEmpty) ||
		errors.Is(err, ErrNotFound)
}
