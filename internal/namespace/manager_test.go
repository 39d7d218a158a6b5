package namespace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopy/internal/common"
	"canopy/internal/storage"
)

// newBareManager wires a manager over a fresh store without
// bootstrapping the namespace.
func newBareManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "ns.db"), storage.DefaultBusyTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewManager(s, nil, opts)
}

// newTestManager wires a manager over a bootstrapped namespace.
func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	m := newBareManager(t, opts)
	require.NoError(t, m.Bootstrap(context.Background(), "tester"))
	return m
}

// mustCreate fails the test unless the container can be created.
func mustCreate(t *testing.T, m *Manager, parent *Container, name string, opts CreateOptions) *Container {
	t.Helper()
	c, err := m.Create(context.Background(), parent, name, opts)
	require.NoError(t, err, "creating %s under %s", name, parent.Path)
	return c
}

func mustResolve(t *testing.T, m *Manager, path string) *Container {
	t.Helper()
	c, err := m.Resolve(context.Background(), path)
	require.NoError(t, err, "resolving %s", path)
	return c
}

func TestBootstrap(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()

	root, err := m.Root(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/", root.Path)
	assert.True(t, root.IsRoot())

	home := mustResolve(t, m, HomePath)
	assert.Equal(t, TypeProject, home.Type)
	assert.True(t, home.IsSystemProtected())

	shared := mustResolve(t, m, SharedPath)
	assert.Equal(t, TypeProject, shared.Type)
	assert.True(t, shared.IsSystemProtected())

	// Running bootstrap again must not duplicate anything.
	require.NoError(t, m.Bootstrap(ctx, "tester"))
	count, err := m.CountContainers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestResolve_RootMissingVsNotFound(t *testing.T) {
	m := newBareManager(t, Options{})
	ctx := context.Background()

	// An uninitialized namespace is not a generic miss.
	_, err := m.Resolve(ctx, "/anything")
	require.ErrorIs(t, err, common.ErrRootMissing)
	_, err = m.Root(ctx)
	require.ErrorIs(t, err, common.ErrRootMissing)

	require.NoError(t, m.Bootstrap(ctx, "tester"))

	_, err = m.Resolve(ctx, "/anything")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestResolve_CaseInsensitive(t *testing.T) {
	m := newTestManager(t, Options{})
	home := mustResolve(t, m, "/home")

	for _, p := range []string{"/HOME", "/Home", "/home/"} {
		got := mustResolve(t, m, p)
		assert.Equal(t, home.ID, got.ID, "resolving %q", p)
		assert.Equal(t, "/home", got.Path, "stored casing wins")
	}
}

func TestResolve_NestedPath(t *testing.T) {
	m := newTestManager(t, Options{})
	home := mustResolve(t, m, HomePath)
	sub := mustCreate(t, m, home, "Projects", CreateOptions{})
	leaf := mustCreate(t, m, sub, "alpha", CreateOptions{})

	got := mustResolve(t, m, "/home/Projects/alpha")
	assert.Equal(t, leaf.ID, got.ID)
	assert.Equal(t, "/home/Projects/alpha", got.Path)
	assert.Equal(t, sub.ID, got.ParentID)
}

func TestResolveByID(t *testing.T) {
	m := newTestManager(t, Options{})
	home := mustResolve(t, m, HomePath)
	sub := mustCreate(t, m, home, "sub", CreateOptions{})

	got, err := m.ResolveByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "/home/sub", got.Path)

	_, err = m.ResolveByID(context.Background(), "no-such-id")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestChildren_Ordering(t *testing.T) {
	m := newTestManager(t, Options{})
	home := mustResolve(t, m, HomePath)

	mustCreate(t, m, home, "banana", CreateOptions{})
	mustCreate(t, m, home, "Apple", CreateOptions{})
	mustCreate(t, m, home, "cherry", CreateOptions{})

	children, err := m.Children(context.Background(), home)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "Apple", children[0].Name)
	assert.Equal(t, "banana", children[1].Name)
	assert.Equal(t, "cherry", children[2].Name)
}

func TestChildren_Empty(t *testing.T) {
	m := newTestManager(t, Options{})
	home := mustResolve(t, m, HomePath)

	children, err := m.Children(context.Background(), home)
	require.NoError(t, err)
	assert.Empty(t, children)

	// Ask twice: the second answer comes from the cached empty list and
	// must still be an empty list, not an error.
	children, err = m.Children(context.Background(), home)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestAllDescendants(t *testing.T) {
	m := newTestManager(t, Options{})
	home := mustResolve(t, m, HomePath)
	a := mustCreate(t, m, home, "a", CreateOptions{})
	b := mustCreate(t, m, a, "b", CreateOptions{})
	mustCreate(t, m, b, "c", CreateOptions{})
	mustCreate(t, m, home, "d", CreateOptions{})

	all, err := m.AllDescendants(context.Background(), home)
	require.NoError(t, err)
	require.Len(t, all, 5, "subtree root plus four descendants")
	assert.Equal(t, home.ID, all[0].ID, "subtree root comes first")

	paths := make(map[string]bool, len(all))
	for _, c := range all {
		paths[c.Path] = true
	}
	for _, want := range []string{"/home", "/home/a", "/home/a/b", "/home/a/b/c", "/home/d"} {
		assert.True(t, paths[want], "missing %s", want)
	}

	// A subtree query does not leak siblings from elsewhere.
	sub, err := m.AllDescendants(context.Background(), a)
	require.NoError(t, err)
	assert.Len(t, sub, 3)
}
