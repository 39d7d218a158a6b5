package namespace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopy/internal/common"
)

func TestRename_RecordsAlias(t *testing.T) {
	m := newTestManager(t, Options{RecordAliases: true})
	ctx := context.Background()
	home := mustResolve(t, m, HomePath)
	c := mustCreate(t, m, home, "old", CreateOptions{})

	_, err := m.Rename(ctx, c, "new", "tester")
	require.NoError(t, err)

	// The plain resolver refuses the stale path, the alias-aware one
	// follows it.
	_, err = m.Resolve(ctx, "/home/old")
	require.ErrorIs(t, err, common.ErrNotFound)

	got, err := m.ResolveWithAliases(ctx, "/home/old")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "/home/new", got.Path)

	aliases, err := m.Aliases(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, []string{"/home/old"}, aliases)
}

func TestMove_RecordsAlias(t *testing.T) {
	m := newTestManager(t, Options{RecordAliases: true})
	ctx := context.Background()
	home := mustResolve(t, m, HomePath)
	shared := mustResolve(t, m, SharedPath)
	c := mustCreate(t, m, home, "x", CreateOptions{})

	_, _, err := m.Move(ctx, c, shared, "tester")
	require.NoError(t, err)

	got, err := m.ResolveWithAliases(ctx, "/home/x")
	require.NoError(t, err)
	assert.Equal(t, "/Shared/x", got.Path)
}

func TestResolveWithAliases_DescendantOfAlias(t *testing.T) {
	m := newTestManager(t, Options{RecordAliases: true})
	ctx := context.Background()
	home := mustResolve(t, m, HomePath)
	c := mustCreate(t, m, home, "old", CreateOptions{})
	sub := mustCreate(t, m, c, "sub", CreateOptions{})
	mustCreate(t, m, sub, "deep", CreateOptions{})

	_, err := m.Rename(ctx, c, "new", "tester")
	require.NoError(t, err)

	// Only the renamed container has an alias row; descendants resolve
	// by re-rooting the remainder under the alias target.
	got, err := m.ResolveWithAliases(ctx, "/home/old/sub")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, "/home/new/sub", got.Path)

	deep, err := m.ResolveWithAliases(ctx, "/home/old/sub/deep")
	require.NoError(t, err)
	assert.Equal(t, "/home/new/sub/deep", deep.Path)

	// A remainder that never existed still misses.
	_, err = m.ResolveWithAliases(ctx, "/home/old/nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestResolveWithAliases_NoAlias(t *testing.T) {
	m := newTestManager(t, Options{})
	_, err := m.ResolveWithAliases(context.Background(), "/nowhere")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestAliasRecording_Disabled(t *testing.T) {
	m := newTestManager(t, Options{RecordAliases: false})
	ctx := context.Background()
	home := mustResolve(t, m, HomePath)
	c := mustCreate(t, m, home, "old", CreateOptions{})

	_, err := m.Rename(ctx, c, "new", "tester")
	require.NoError(t, err)

	_, err = m.ResolveWithAliases(ctx, "/home/old")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveAliases(t *testing.T) {
	m := newTestManager(t, Options{})
	ctx := context.Background()
	home := mustResolve(t, m, HomePath)
	c := mustCreate(t, m, home, "x", CreateOptions{})
	mustCreate(t, m, home, "live", CreateOptions{})

	// Live container paths are skipped; the rest replace the set.
	require.NoError(t, m.SaveAliases(ctx, c, []string{"/legacy/x", "/home/live"}))
	aliases, err := m.Aliases(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"/legacy/x"}, aliases)

	got, err := m.ResolveWithAliases(ctx, "/legacy/x")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	// Saving a new set replaces the old one wholesale.
	require.NoError(t, m.SaveAliases(ctx, c, []string{"/other/x"}))
	aliases, err = m.Aliases(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"/other/x"}, aliases)

	// An empty set clears.
	require.NoError(t, m.SaveAliases(ctx, c, nil))
	aliases, err = m.Aliases(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestDelete_RemovesAliases(t *testing.T) {
	m := newTestManager(t, Options{RecordAliases: true})
	ctx := context.Background()
	home := mustResolve(t, m, HomePath)
	c := mustCreate(t, m, home, "old", CreateOptions{})

	renamed, err := m.Rename(ctx, c, "new", "tester")
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, renamed, "tester"))

	_, err = m.ResolveWithAliases(ctx, "/home/old")
	require.ErrorIs(t, err, common.ErrNotFound, "aliases die with their container")
}
