package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"canopy/internal/common"
	"canopy/internal/util"
)

// BunDB wraps a Bun database instance for type-safe queries.
type BunDB struct {
	*bun.DB
}

// NewBunDB wraps an existing *sql.DB with Bun's type-safe query builder.
func NewBunDB(sqlDB *sql.DB) *BunDB {
	bunDB := bun.NewDB(sqlDB, sqlitedialect.New())
	return &BunDB{DB: bunDB}
}

// RunInConflictRetry runs fn inside a transaction, re-running the whole
// body when the store reports a transient lock/serialization conflict.
// The body must be side-effect-free until commit. After attempts are
// exhausted the error is surfaced wrapped in common.ErrConflict.
func (db *BunDB) RunInConflictRetry(ctx context.Context, attempts uint, fn func(ctx context.Context, tx bun.Tx) error) error {
	err := util.Retry(ctx,
		func() error {
			return db.RunInTx(ctx, nil, fn)
		},
		util.ConflictRetryOptions(ctx, attempts)...)
	if err != nil && util.IsStoreConflict(err) {
		return fmt.Errorf("%w: %v", common.ErrConflict, err)
	}
	return err
}

// --- Container Operations ---

// GetRoot returns the single row with no parent. Returns
// common.ErrRootMissing if the namespace has never been initialized and
// an error if the table is corrupt (more than one root).
func (db *BunDB) GetRoot(ctx context.Context) (*ContainerModel, error) {
	return db.getRootWith(db.DB, ctx)
}

// GetRootWith is like GetRoot but uses the provided bun.IDB (for transaction support).
func (db *BunDB) GetRootWith(idb bun.IDB, ctx context.Context) (*ContainerModel, error) {
	return db.getRootWith(idb, ctx)
}

func (db *BunDB) getRootWith(idb bun.IDB, ctx context.Context) (*ContainerModel, error) {
	var roots []ContainerModel
	err := idb.NewSelect().
		Model(&roots).
		Where("parent_id IS NULL").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	switch len(roots) {
	case 0:
		return nil, common.ErrRootMissing
	case 1:
		return &roots[0], nil
	default:
		return nil, fmt.Errorf("more than one root container was found")
	}
}

// GetContainer retrieves a container row by id.
func (db *BunDB) GetContainer(ctx context.Context, id string) (*ContainerModel, error) {
	return db.getContainerWith(db.DB, ctx, id)
}

// GetContainerWith is like GetContainer but uses the provided bun.IDB.
func (db *BunDB) GetContainerWith(idb bun.IDB, ctx context.Context, id string) (*ContainerModel, error) {
	return db.getContainerWith(idb, ctx, id)
}

func (db *BunDB) getContainerWith(idb bun.IDB, ctx context.Context, id string) (*ContainerModel, error) {
	var c ContainerModel
	err := idb.NewSelect().
		Model(&c).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChildByName retrieves the child of parentID with the given name,
// compared case-insensitively.
func (db *BunDB) GetChildByName(ctx context.Context, parentID, name string) (*ContainerModel, error) {
	return db.getChildByNameWith(db.DB, ctx, parentID, name)
}

// GetChildByNameWith is like GetChildByName but uses the provided bun.IDB.
func (db *BunDB) GetChildByNameWith(idb bun.IDB, ctx context.Context, parentID, name string) (*ContainerModel, error) {
	return db.getChildByNameWith(idb, ctx, parentID, name)
}

func (db *BunDB) getChildByNameWith(idb bun.IDB, ctx context.Context, parentID, name string) (*ContainerModel, error) {
	var c ContainerModel
	err := idb.NewSelect().
		Model(&c).
		Where("parent_id = ?", parentID).
		Where("lower(name) = lower(?)", name).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChildren returns the children of parentID in display order:
// explicit sort order first, then case-folded name.
func (db *BunDB) ListChildren(ctx context.Context, parentID string) ([]ContainerModel, error) {
	return db.listChildrenWith(db.DB, ctx, parentID)
}

// ListChildrenWith is like ListChildren but uses the provided bun.IDB.
func (db *BunDB) ListChildrenWith(idb bun.IDB, ctx context.Context, parentID string) ([]ContainerModel, error) {
	return db.listChildrenWith(idb, ctx, parentID)
}

func (db *BunDB) listChildrenWith(idb bun.IDB, ctx context.Context, parentID string) ([]ContainerModel, error) {
	var children []ContainerModel
	err := idb.NewSelect().
		Model(&children).
		Where("parent_id = ?", parentID).
		OrderExpr("sort_order, lower(name)").
		Scan(ctx)
	return children, err
}

// HasChildren reports whether any row lists id as its parent.
func (db *BunDB) HasChildren(ctx context.Context, id string) (bool, error) {
	return db.hasChildrenWith(db.DB, ctx, id)
}

// HasChildrenWith is like HasChildren but uses the provided bun.IDB.
func (db *BunDB) HasChildrenWith(idb bun.IDB, ctx context.Context, id string) (bool, error) {
	return db.hasChildrenWith(idb, ctx, id)
}

func (db *BunDB) hasChildrenWith(idb bun.IDB, ctx context.Context, id string) (bool, error) {
	return idb.NewSelect().
		Model((*ContainerModel)(nil)).
		Where("parent_id = ?", id).
		Exists(ctx)
}

// ContainerEdge is one (parent, child) pair of the containers table.
type ContainerEdge struct {
	ParentID string `bun:"parent_id"`
	ID       string `bun:"id"`
}

// ListEdges returns every (parent, child) pair. Simple, but works fine
// unless the table gets really big; all-descendants computation walks it
// in memory.
func (db *BunDB) ListEdges(ctx context.Context) ([]ContainerEdge, error) {
	return db.listEdgesWith(db.DB, ctx)
}

// ListEdgesWith is like ListEdges but uses the provided bun.IDB.
func (db *BunDB) ListEdgesWith(idb bun.IDB, ctx context.Context) ([]ContainerEdge, error) {
	return db.listEdgesWith(idb, ctx)
}

func (db *BunDB) listEdgesWith(idb bun.IDB, ctx context.Context) ([]ContainerEdge, error) {
	var edges []ContainerEdge
	err := idb.NewRaw(`SELECT parent_id, id FROM containers WHERE parent_id IS NOT NULL`).Scan(ctx, &edges)
	return edges, err
}

// InsertContainer inserts a new container row.
func (db *BunDB) InsertContainer(ctx context.Context, c *ContainerModel) error {
	return db.insertContainerWith(db.DB, ctx, c)
}

// InsertContainerWith is like InsertContainer but uses the provided bun.IDB.
func (db *BunDB) InsertContainerWith(idb bun.IDB, ctx context.Context, c *ContainerModel) error {
	return db.insertContainerWith(idb, ctx, c)
}

func (db *BunDB) insertContainerWith(idb bun.IDB, ctx context.Context, c *ContainerModel) error {
	_, err := idb.NewInsert().Model(c).Exec(ctx)
	return err
}

// UpdateContainerNameWith updates name and title in one statement.
func (db *BunDB) UpdateContainerNameWith(idb bun.IDB, ctx context.Context, id, name, title string) error {
	_, err := idb.NewUpdate().
		Model((*ContainerModel)(nil)).
		Set("name = ?", name).
		Set("title = ?", title).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// UpdateContainerParentWith reparents a container row.
func (db *BunDB) UpdateContainerParentWith(idb bun.IDB, ctx context.Context, id, newParentID string) error {
	_, err := idb.NewUpdate().
		Model((*ContainerModel)(nil)).
		Set("parent_id = ?", newParentID).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// UpdateContainerPropsWith writes display metadata and administrative
// state columns for a container.
func (db *BunDB) UpdateContainerPropsWith(idb bun.IDB, ctx context.Context, c *ContainerModel) error {
	_, err := idb.NewUpdate().
		Model(c).
		Column("title", "description", "type", "lock_state", "expiration_date").
		WherePK().
		Exec(ctx)
	return err
}

// UpdateSortOrderWith writes a single sibling's sort order.
func (db *BunDB) UpdateSortOrderWith(idb bun.IDB, ctx context.Context, id string, order int) error {
	_, err := idb.NewUpdate().
		Model((*ContainerModel)(nil)).
		Set("sort_order = ?", order).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeleteContainerWith removes the container row itself.
func (db *BunDB) DeleteContainerWith(idb bun.IDB, ctx context.Context, id string) error {
	_, err := idb.NewDelete().
		Model((*ContainerModel)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// MaxSiblingSortOrderWith returns the highest explicit sort order among
// the children of parentID, or 0 when there are none.
func (db *BunDB) MaxSiblingSortOrderWith(idb bun.IDB, ctx context.Context, parentID string) (int, error) {
	var max sql.NullInt64
	err := idb.NewRaw(`SELECT MAX(sort_order) FROM containers WHERE parent_id = ?`, parentID).Scan(ctx, &max)
	if err != nil {
		return 0, err
	}
	if max.Valid {
		return int(max.Int64), nil
	}
	return 0, nil
}

// AnySiblingCustomOrderWith reports whether any child of parentID has a
// non-zero (custom) sort order.
func (db *BunDB) AnySiblingCustomOrderWith(idb bun.IDB, ctx context.Context, parentID string) (bool, error) {
	return idb.NewSelect().
		Model((*ContainerModel)(nil)).
		Where("parent_id = ?", parentID).
		Where("sort_order != 0").
		Exists(ctx)
}

// CountContainers returns the total number of rows.
func (db *BunDB) CountContainers(ctx context.Context) (int, error) {
	return db.NewSelect().Model((*ContainerModel)(nil)).Count(ctx)
}

// --- Alias Operations ---

// InsertAliasWith records path as an alias for containerID, replacing an
// existing alias at the same (case-folded) path.
func (db *BunDB) InsertAliasWith(idb bun.IDB, ctx context.Context, path, containerID string) error {
	if _, err := idb.NewDelete().
		Model((*ContainerAliasModel)(nil)).
		Where("lower(path) = lower(?)", path).
		Exec(ctx); err != nil {
		return err
	}
	_, err := idb.NewInsert().
		Model(&ContainerAliasModel{Path: path, ContainerID: containerID}).
		Exec(ctx)
	return err
}

// DeleteAliasesForWith removes every alias pointing at containerID.
func (db *BunDB) DeleteAliasesForWith(idb bun.IDB, ctx context.Context, containerID string) error {
	_, err := idb.NewDelete().
		Model((*ContainerAliasModel)(nil)).
		Where("container_id = ?", containerID).
		Exec(ctx)
	return err
}

// ListAliases returns the alias paths recorded for a container, sorted
// case-insensitively.
func (db *BunDB) ListAliases(ctx context.Context, containerID string) ([]string, error) {
	var paths []string
	err := db.NewRaw(`SELECT path FROM container_aliases WHERE container_id = ? ORDER BY lower(path)`, containerID).Scan(ctx, &paths)
	return paths, err
}

// GetAliasTarget returns the id of the container an aliased path maps
// to. The lookup is case-insensitive.
func (db *BunDB) GetAliasTarget(ctx context.Context, path string) (string, error) {
	var alias ContainerAliasModel
	err := db.NewSelect().
		Model(&alias).
		Where("lower(path) = lower(?)", path).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return alias.ContainerID, nil
}

// --- Sequence Operations ---

// NextSequenceValueWith hands out the next value of the per-parent
// counter, creating the counter row on first use. Uses RETURNING because
// libsql does not support LastInsertId.
func (db *BunDB) NextSequenceValueWith(idb bun.IDB, ctx context.Context, containerID string) (int64, error) {
	var value int64
	err := idb.NewRaw(`
		INSERT INTO container_sequences (container_id, next_value) VALUES (?, 1)
		ON CONFLICT (container_id) DO UPDATE SET next_value = next_value + 1
		RETURNING next_value
	`, containerID).Scan(ctx, &value)
	return value, err
}

// DeleteSequenceWith removes the counter row for a container.
func (db *BunDB) DeleteSequenceWith(idb bun.IDB, ctx context.Context, containerID string) error {
	_, err := idb.NewDelete().
		Model((*ContainerSequenceModel)(nil)).
		Where("container_id = ?", containerID).
		Exec(ctx)
	return err
}

// --- Policy Operations ---

// UpsertPolicyWith writes the policy row for a container.
func (db *BunDB) UpsertPolicyWith(idb bun.IDB, ctx context.Context, p *ContainerPolicyModel) error {
	p.UpdatedAt = time.Now().Unix()
	_, err := idb.NewInsert().
		Model(p).
		On("CONFLICT (container_id) DO UPDATE").
		Set("scope_id = EXCLUDED.scope_id").
		Set("admin_only = EXCLUDED.admin_only").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// GetPolicy retrieves the policy row for a container.
func (db *BunDB) GetPolicy(ctx context.Context, containerID string) (*ContainerPolicyModel, error) {
	var p ContainerPolicyModel
	err := db.NewSelect().
		Model(&p).
		Where("container_id = ?", containerID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePolicyWith removes the policy row for a container.
func (db *BunDB) DeletePolicyWith(idb bun.IDB, ctx context.Context, containerID string) error {
	_, err := idb.NewDelete().
		Model((*ContainerPolicyModel)(nil)).
		Where("container_id = ?", containerID).
		Exec(ctx)
	return err
}

// UpdatePolicyScopeWith rewrites the scope of every policy row under the
// given container ids.
func (db *BunDB) UpdatePolicyScopeWith(idb bun.IDB, ctx context.Context, containerIDs []string, newScopeID string) error {
	if len(containerIDs) == 0 {
		return nil
	}
	_, err := idb.NewUpdate().
		Model((*ContainerPolicyModel)(nil)).
		Set("scope_id = ?", newScopeID).
		Set("updated_at = ?", time.Now().Unix()).
		Where("container_id IN (?)", bun.In(containerIDs)).
		Exec(ctx)
	return err
}

// --- Schema Info Operations ---

// GetSchemaInfo retrieves a schema info value by key.
func (db *BunDB) GetSchemaInfo(ctx context.Context, key string) (string, error) {
	var info SchemaInfoModel
	err := db.NewSelect().
		Model(&info).
		Where("key = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return info.Value, nil
}

// SetSchemaInfo sets a schema info value (upserts).
func (db *BunDB) SetSchemaInfo(ctx context.Context, key, value string) error {
	_, err := db.NewInsert().
		Model(&SchemaInfoModel{Key: key, Value: value}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	return err
}
