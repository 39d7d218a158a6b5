package namespace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopy/internal/common"
)

// recordingListener records every notification it receives.
type recordingListener struct {
	BaseListener
	name string

	mu        sync.Mutex
	created   []string
	deleted   []string
	moved     []string
	props     []PropertyChange
	deleteLog *[]string // shared across listeners to observe ordering
	deleteErr error
	moveVeto  error
}

func (l *recordingListener) ContainerCreated(_ context.Context, c *Container) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, c.Path)
}

func (l *recordingListener) ContainerDeleted(_ context.Context, c *Container, user string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deleted = append(l.deleted, c.Path)
	if l.deleteLog != nil {
		*l.deleteLog = append(*l.deleteLog, l.name)
	}
	return l.deleteErr
}

func (l *recordingListener) CanMove(_ context.Context, c, oldParent, newParent *Container) error {
	return l.moveVeto
}

func (l *recordingListener) ContainerMoved(_ context.Context, c, oldParent *Container) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.moved = append(l.moved, c.Path)
}

func (l *recordingListener) PropertyChanged(_ context.Context, evt PropertyChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.props = append(l.props, evt)
}

func TestListeners_Created(t *testing.T) {
	m := newTestManager(t, Options{})
	l := &recordingListener{name: "l"}
	m.AddListener(l, OrderNormal)
	home := mustResolve(t, m, HomePath)

	mustCreate(t, m, home, "x", CreateOptions{})

	assert.Equal(t, []string{"/home/x"}, l.created)
}

func TestListeners_DeleteReverseOrder(t *testing.T) {
	m := newTestManager(t, Options{})
	var order []string
	first := &recordingListener{name: "first", deleteLog: &order}
	second := &recordingListener{name: "second", deleteLog: &order}
	late := &recordingListener{name: "late", deleteLog: &order}
	m.AddListener(first, OrderNormal)
	m.AddListener(second, OrderNormal)
	m.AddListener(late, OrderLate)

	home := mustResolve(t, m, HomePath)
	c := mustCreate(t, m, home, "x", CreateOptions{})
	require.NoError(t, m.Delete(context.Background(), c, "tester"))

	// Teardown order is the reverse of notification order: late first,
	// then normal listeners newest to oldest.
	assert.Equal(t, []string{"late", "second", "first"}, order)
}

func TestListeners_DeleteAbortsOnError(t *testing.T) {
	m := newTestManager(t, Options{})
	veto := errors.New("still referenced")
	m.AddListener(&recordingListener{name: "blocker", deleteErr: veto}, OrderNormal)

	home := mustResolve(t, m, HomePath)
	c := mustCreate(t, m, home, "x", CreateOptions{})

	err := m.Delete(context.Background(), c, "tester")
	require.ErrorIs(t, err, veto)

	// The container survived.
	mustResolve(t, m, "/home/x")
}

func TestListeners_MoveVetoesAggregate(t *testing.T) {
	m := newTestManager(t, Options{})
	m.AddListener(&recordingListener{name: "a", moveVeto: fmt.Errorf("billing holds a reference")}, OrderNormal)
	m.AddListener(&recordingListener{name: "b"}, OrderNormal)
	m.AddListener(&recordingListener{name: "c", moveVeto: fmt.Errorf("audit in progress")}, OrderLate)

	ctx := context.Background()
	home := mustResolve(t, m, HomePath)
	shared := mustResolve(t, m, SharedPath)
	c := mustCreate(t, m, home, "x", CreateOptions{})

	_, _, err := m.Move(ctx, c, shared, "tester")
	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"billing holds a reference", "audit in progress"}, ve.Vetoes)

	// Vetoed moves leave the tree untouched.
	mustResolve(t, m, "/home/x")
}

func TestListeners_MovedAndPropertyChanged(t *testing.T) {
	m := newTestManager(t, Options{})
	l := &recordingListener{name: "l"}
	m.AddListener(l, OrderNormal)

	ctx := context.Background()
	home := mustResolve(t, m, HomePath)
	shared := mustResolve(t, m, SharedPath)
	c := mustCreate(t, m, home, "x", CreateOptions{})

	_, _, err := m.Move(ctx, c, shared, "tester")
	require.NoError(t, err)
	assert.Equal(t, []string{"/Shared/x"}, l.moved, "listener sees the post-move path")

	moved := mustResolve(t, m, "/Shared/x")
	_, err = m.Rename(ctx, moved, "y", "tester")
	require.NoError(t, err)

	require.Len(t, l.props, 1)
	assert.Equal(t, PropertyName, l.props[0].Property)
	assert.Equal(t, "x", l.props[0].Old)
	assert.Equal(t, "y", l.props[0].New)
}

func TestListeners_RemoveListener(t *testing.T) {
	m := newTestManager(t, Options{})
	l := &recordingListener{name: "l"}
	m.AddListener(l, OrderNormal)
	m.RemoveListener(l)

	home := mustResolve(t, m, HomePath)
	mustCreate(t, m, home, "x", CreateOptions{})

	assert.Empty(t, l.created)
}

func TestListeners_PanicDoesNotAbort(t *testing.T) {
	m := newTestManager(t, Options{})
	m.AddListener(panickyListener{}, OrderNormal)
	tail := &recordingListener{name: "tail"}
	m.AddListener(tail, OrderNormal)

	home := mustResolve(t, m, HomePath)
	c := mustCreate(t, m, home, "x", CreateOptions{})

	require.NotNil(t, c)
	mustResolve(t, m, "/home/x")
	assert.Equal(t, []string{"/home/x"}, tail.created, "a panicking listener must not starve the rest")
}

type panickyListener struct {
	BaseListener
}

func (panickyListener) ContainerCreated(context.Context, *Container) {
	panic("listener bug")
}

// blockingListener parks inside the pre-delete notification until
// released, holding the delete in flight.
type blockingListener struct {
	BaseListener
	entered chan struct{}
	release chan struct{}
}

func (l *blockingListener) ContainerDeleted(context.Context, *Container, string) error {
	close(l.entered)
	<-l.release
	return nil
}

func TestDelete_InFlightRejectsConcurrentAccess(t *testing.T) {
	m := newTestManager(t, Options{})
	bl := &blockingListener{entered: make(chan struct{}), release: make(chan struct{})}
	m.AddListener(bl, OrderNormal)

	ctx := context.Background()
	home := mustResolve(t, m, HomePath)
	c := mustCreate(t, m, home, "x", CreateOptions{})

	done := make(chan error, 1)
	go func() { done <- m.Delete(ctx, c, "tester") }()
	<-bl.entered

	// While the first delete is in flight, a repeat delete and both
	// lookup forms refuse the node instead of racing it.
	err := m.Delete(ctx, c, "tester")
	require.ErrorIs(t, err, common.ErrDeleteInProgress)

	_, err = m.Resolve(ctx, "/home/x")
	require.ErrorIs(t, err, common.ErrDeleteInProgress)

	_, err = m.ResolveByID(ctx, c.ID)
	require.ErrorIs(t, err, common.ErrDeleteInProgress)

	close(bl.release)
	require.NoError(t, <-done)

	// The mark clears with the delete; a later miss is a plain miss.
	_, err = m.Resolve(ctx, "/home/x")
	require.ErrorIs(t, err, common.ErrNotFound)
}
