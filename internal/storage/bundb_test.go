package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopy/internal/common"
)

func newTestDB(t *testing.T) *BunDB {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ns.db"), DefaultBusyTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.Bun()
}

func insertContainer(t *testing.T, db *BunDB, id, parentID, name string, order int) *ContainerModel {
	t.Helper()
	m := &ContainerModel{
		ID:        id,
		ParentID:  parentID,
		Name:      name,
		SortOrder: order,
		Type:      "folder",
		LockState: "unlocked",
		CreatedAt: time.Now().Unix(),
	}
	require.NoError(t, db.InsertContainer(context.Background(), m))
	return m
}

func TestBunDB_Root(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetRoot(ctx)
	require.ErrorIs(t, err, common.ErrRootMissing)

	insertContainer(t, db, "root", "", "", 0)

	root, err := db.GetRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "root", root.ID)
	assert.Empty(t, root.ParentID)
}

func TestBunDB_GetChildByName(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertContainer(t, db, "root", "", "", 0)
	insertContainer(t, db, "c1", "root", "Docs", 0)

	// Lookup is case-insensitive.
	for _, name := range []string{"Docs", "docs", "DOCS"} {
		got, err := db.GetChildByName(ctx, "root", name)
		require.NoError(t, err, "lookup %q", name)
		assert.Equal(t, "c1", got.ID)
		assert.Equal(t, "Docs", got.Name, "stored casing is preserved")
	}

	_, err := db.GetChildByName(ctx, "root", "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestBunDB_SiblingNameUnique(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertContainer(t, db, "root", "", "", 0)
	insertContainer(t, db, "c1", "root", "Docs", 0)

	// A case-folded duplicate must be rejected by the store itself.
	err := db.InsertContainer(ctx, &ContainerModel{
		ID: "c2", ParentID: "root", Name: "docs",
		Type: "folder", LockState: "unlocked", CreatedAt: time.Now().Unix(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE constraint")

	// The same name under a different parent is fine.
	insertContainer(t, db, "c3", "root", "Other", 0)
	insertContainer(t, db, "c4", "c3", "docs", 0)
}

func TestBunDB_ListChildrenOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertContainer(t, db, "root", "", "", 0)
	insertContainer(t, db, "b", "root", "banana", 0)
	insertContainer(t, db, "a", "root", "Apple", 0)
	insertContainer(t, db, "z", "root", "zebra", 1)

	children, err := db.ListChildren(ctx, "root")
	require.NoError(t, err)
	require.Len(t, children, 3)

	// Unordered entries sort by case-folded name, explicit orders after.
	assert.Equal(t, "Apple", children[0].Name)
	assert.Equal(t, "banana", children[1].Name)
	assert.Equal(t, "zebra", children[2].Name)
}

func TestBunDB_HasChildren(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertContainer(t, db, "root", "", "", 0)

	has, err := db.HasChildren(ctx, "root")
	require.NoError(t, err)
	assert.False(t, has)

	insertContainer(t, db, "c1", "root", "Docs", 0)

	has, err = db.HasChildren(ctx, "root")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestBunDB_SortOrderHelpers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertContainer(t, db, "root", "", "", 0)
	insertContainer(t, db, "a", "root", "a", 0)
	insertContainer(t, db, "b", "root", "b", 0)

	custom, err := db.AnySiblingCustomOrderWith(db.DB, ctx, "root")
	require.NoError(t, err)
	assert.False(t, custom)

	require.NoError(t, db.UpdateSortOrderWith(db.DB, ctx, "b", 7))

	custom, err = db.AnySiblingCustomOrderWith(db.DB, ctx, "root")
	require.NoError(t, err)
	assert.True(t, custom)

	max, err := db.MaxSiblingSortOrderWith(db.DB, ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, 7, max)
}

func TestBunDB_Sequences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertContainer(t, db, "root", "", "", 0)
	insertContainer(t, db, "p1", "root", "p1", 0)
	insertContainer(t, db, "p2", "root", "p2", 0)

	for want := int64(1); want <= 3; want++ {
		got, err := db.NextSequenceValueWith(db.DB, ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Counters are per parent.
	got, err := db.NextSequenceValueWith(db.DB, ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	require.NoError(t, db.DeleteSequenceWith(db.DB, ctx, "p1"))
	got, err = db.NextSequenceValueWith(db.DB, ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "a deleted counter starts over")
}

func TestBunDB_Aliases(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertContainer(t, db, "root", "", "", 0)
	insertContainer(t, db, "c1", "root", "Docs", 0)
	insertContainer(t, db, "c2", "root", "Other", 0)

	require.NoError(t, db.InsertAliasWith(db.DB, ctx, "/old/docs", "c1"))

	id, err := db.GetAliasTarget(ctx, "/OLD/Docs")
	require.NoError(t, err)
	assert.Equal(t, "c1", id, "alias lookup is case-insensitive")

	// Re-pointing the same (case-folded) path replaces the old alias.
	require.NoError(t, db.InsertAliasWith(db.DB, ctx, "/Old/Docs", "c2"))
	id, err = db.GetAliasTarget(ctx, "/old/docs")
	require.NoError(t, err)
	assert.Equal(t, "c2", id)

	paths, err := db.ListAliases(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"/Old/Docs"}, paths)

	require.NoError(t, db.DeleteAliasesForWith(db.DB, ctx, "c2"))
	_, err = db.GetAliasTarget(ctx, "/old/docs")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestBunDB_Policies(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertContainer(t, db, "root", "", "", 0)
	insertContainer(t, db, "p1", "root", "p1", 0)
	insertContainer(t, db, "c1", "p1", "sub", 0)

	require.NoError(t, db.UpsertPolicyWith(db.DB, ctx, &ContainerPolicyModel{
		ContainerID: "c1", ScopeID: "p1", AdminOnly: true,
	}))

	p, err := db.GetPolicy(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ScopeID)
	assert.True(t, p.AdminOnly)

	// Upsert overwrites in place.
	require.NoError(t, db.UpsertPolicyWith(db.DB, ctx, &ContainerPolicyModel{
		ContainerID: "c1", ScopeID: "p1", AdminOnly: false,
	}))
	p, err = db.GetPolicy(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, p.AdminOnly)

	require.NoError(t, db.UpdatePolicyScopeWith(db.DB, ctx, []string{"c1"}, "p2"))
	p, err = db.GetPolicy(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ScopeID)

	require.NoError(t, db.DeletePolicyWith(db.DB, ctx, "c1"))
	_, err = db.GetPolicy(ctx, "c1")
	require.ErrorIs(t, err, common.ErrNotFound)
}
