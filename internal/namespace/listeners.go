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

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"canopy/internal/common"
)

// Order controls where a listener sits in the notification sequence.
// Normal listeners run before late listeners for forward-ordered events.
type Order int

const (
	OrderNormal Order = iota
	OrderLate
)

// Property names carried by property-change notifications.
type Property string

const (
	PropertyName        Property = "Name"
	PropertyParent      Property = "Parent"
	PropertySortOrder   Property = "SortOrder"
	PropertyTitle       Property = "Title"
	PropertyDescription Property = "Description"
	PropertyLockState   Property = "LockState"
	PropertyExpiration  Property = "Expiration"
	PropertyType        Property = "Type"
)

// PropertyChange describes one attribute mutation on a container.
type PropertyChange struct {
	Container *Container
	Property  Property
	Old       any
	New       any
}

// Listener observes structural changes to the namespace.
//
// ContainerDeleted fires before the delete transaction commits, so the
// listener can still read the container; returning an error aborts the
// delete. CanMove fires during move pre-flight; a non-nil error is a
// veto, aggregated with other vetoes into a single validation failure.
// All other notifications fire after the change has committed, and a
// panic or error there is logged without rolling anything back.
type Listener interface {
	ContainerCreated(ctx context.Context, c *Container)
	ContainerDeleted(ctx context.Context, c *Container, user string) error
	CanMove(ctx context.Context, c, oldParent, newParent *Container) error
	ContainerMoved(ctx context.Context, c, oldParent *Container)
	PropertyChanged(ctx context.Context, evt PropertyChange)
}

// BaseListener is a no-op Listener for embedding; implementations
// override only the notifications they care about.
type BaseListener struct{}

func (BaseListener) ContainerCreated(context.Context, *Container) {}
func (BaseListener) ContainerDeleted(context.Context, *Container, string) error {
	return nil
}
func (BaseListener) CanMove(context.Context, *Container, *Container, *Container) error {
	return nil
}
func (BaseListener) ContainerMoved(context.Context, *Container, *Container) {}
func (BaseListener) PropertyChanged(context.Context, PropertyChange)        {}

// listenerRegistry holds the two ordered listener lists. Iteration order
// for creation/move/rename/property-change is registration order (normal
// first, then late); deletion iterates in reverse so infrastructure
// registered early tears down last.
type listenerRegistry struct {
	mu     sync.RWMutex
	normal []Listener
	late   []Listener
}

func (r *listenerRegistry) add(l Listener, order Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order == OrderLate {
		r.late = append(r.late, l)
	} else {
		r.normal = append(r.normal, l)
	}
}

func (r *listenerRegistry) remove(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normal = removeListener(r.normal, l)
	r.late = removeListener(r.late, l)
}

func removeListener(list []Listener, l Listener) []Listener {
	out := list[:0]
	for _, x := range list {
		if x != l {
			out = append(out, x)
		}
	}
	return out
}

// forward returns a snapshot of the listeners in notification order.
func (r *listenerRegistry) forward() []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	combined := make([]Listener, 0, len(r.normal)+len(r.late))
	combined = append(combined, r.normal...)
	combined = append(combined, r.late...)
	return combined
}

// reverse returns a snapshot of the listeners in teardown order.
func (r *listenerRegistry) reverse() []Listener {
	fwd := r.forward()
	for i, j := 0, len(fwd)-1; i < j; i, j = i+1, j-1 {
		fwd[i], fwd[j] = fwd[j], fwd[i]
	}
	return fwd
}

// fireCreated notifies listeners of a committed create. Failures are
// logged and do not abort: the creation has already committed.
func (m *Manager) fireCreated(ctx context.Context, c *Container) {
	for _, l := range m.listeners.forward() {
		func() {
			defer m.recoverListener("containerCreated", c)
			l.ContainerCreated(ctx, c)
		}()
	}
}

// fireDeleted notifies listeners that a delete is about to run, in
// reverse registration order. The first error aborts the delete:
// partially deleted dependent state is worse than a blocked delete.
func (m *Manager) fireDeleted(ctx context.Context, c *Container, user string) error {
	for _, l := range m.listeners.reverse() {
		if err := l.ContainerDeleted(ctx, c, user); err != nil {
			return err
		}
	}
	return nil
}

// collectMoveVetoes runs the pre-flight check across all listeners and
// aggregates every objection.
func (m *Manager) collectMoveVetoes(ctx context.Context, c, oldParent, newParent *Container) error {
	var vetoes []string
	for _, l := range m.listeners.forward() {
		if err := l.CanMove(ctx, c, oldParent, newParent); err != nil {
			vetoes = append(vetoes, err.Error())
		}
	}
	if len(vetoes) > 0 {
		return &common.ValidationError{Vetoes: vetoes}
	}
	return nil
}

// fireMoved notifies listeners of a committed move. Each listener's side
// effect stands alone; one failure must not undo a sibling listener's
// work, so errors are logged and iteration continues.
func (m *Manager) fireMoved(ctx context.Context, c, oldParent *Container) {
	for _, l := range m.listeners.forward() {
		func() {
			defer m.recoverListener("containerMoved", c)
			l.ContainerMoved(ctx, c, oldParent)
		}()
	}
}

// firePropertyChanged notifies listeners of a committed attribute
// change. Failures are logged and do not abort.
func (m *Manager) firePropertyChanged(ctx context.Context, evt PropertyChange) {
	for _, l := range m.listeners.forward() {
		func() {
			defer m.recoverListener("propertyChanged", evt.Container)
			l.PropertyChanged(ctx, evt)
		}()
	}
}

func (m *Manager) recoverListener(event string, c *Container) {
	if r := recover(); r != nil {
		m.log.WithFields(log.Fields{
			"event":     event,
			"container": c.Path,
			"panic":     r,
		}).Error("container listener panicked")
	}
}
