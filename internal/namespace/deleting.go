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

package namespace

import "sync"

// deletionRegistry tracks containers that are mid-deletion so that
// repeat deletes and concurrent resolutions are rejected instead of
// racing the delete transaction. The set is only reachable through
// tryBegin/end/isDeleting.
type deletionRegistry struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newDeletionRegistry() *deletionRegistry {
	return &deletionRegistry{ids: make(map[string]struct{})}
}

// tryBegin marks id as being deleted. Returns false if a delete for id
// is already in flight.
func (r *deletionRegistry) tryBegin(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.ids[id]; busy {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

// end clears the mark, successful delete or not.
func (r *deletionRegistry) end(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, id)
}

// isDeleting reports whether a delete for id is in flight.
func (r *deletionRegistry) isDeleting(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.ids[id]
	return busy
}
