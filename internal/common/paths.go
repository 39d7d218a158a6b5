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
	"path"
	"strings"
)

// Container paths behave like java.io.File paths: they start with a
// forward slash and do not end with one. The root container's path is
// "/". Path comparison is case-insensitive, matching the sibling-name
// uniqueness rule.

// NormalizePath cleans a container path into canonical form: leading
// slash, no trailing slash, no empty segments. The empty string and "/"
// both normalize to "/".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = path.Clean(p)
	return p
}

// SplitPath splits a normalized path into its segments. The root path
// yields nil.
func SplitPath(p string) []string {
	p = strings.Trim(NormalizePath(p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// JoinPath appends name to a parent path, treating the root parent
// specially so "/" + "home" is "/home", not "//home".
func JoinPath(parentPath, name string) string {
	if parentPath == "/" || parentPath == "" {
		return "/" + name
	}
	return parentPath + "/" + name
}

// ParentPath returns the parent of a normalized path. The second return
// is false for the root, which has no parent.
func ParentPath(p string) (string, bool) {
	p = NormalizePath(p)
	if p == "/" {
		return "", false
	}
	dir := path.Dir(p)
	return dir, true
}

// BaseName returns the last segment of a path, or "" for the root.
func BaseName(p string) string {
	p = NormalizePath(p)
	if p == "/" {
		return ""
	}
	return path.Base(p)
}

// PathKey returns the case-folded cache key for a path.
func PathKey(p string) string {
	return strings.ToLower(NormalizePath(p))
}
