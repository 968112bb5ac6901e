// Package allocations manages the cost centers, projects and tags that
// transaction lines can be allocated to. Parent links form a forest; the
// package keeps it acyclic.
package allocations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
	"github.com/cleared-dev/tilikirja/internal/store"
)

// Tree reads and writes allocations.
type Tree struct {
	store *store.Store
	log   zerolog.Logger
}

// NewTree creates an allocation Tree.
func NewTree(s *store.Store, log zerolog.Logger) *Tree {
	return &Tree{store: s, log: log}
}

// Create stores a new allocation under parent (nil for a root) and returns its id.
func (t *Tree) Create(ctx context.Context, typ model.AllocationType, parent *int64, ext model.AllocationExt) (int64, error) {
	if !typ.Valid() {
		return 0, ledgererr.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown allocation type %d", typ)}
	}
	encoded, err := model.EncodeExt(ext)
	if err != nil {
		return 0, err
	}

	var allocationID int64
	err = t.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		if parent != nil {
			if _, err := get(ctx, tx, *parent); errors.Is(err, ledgererr.ErrNotFound) {
				return ledgererr.ValidationError{Field: "parent", Reason: fmt.Sprintf("unknown allocation %d", *parent)}
			} else if err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, "INSERT INTO Allocation (type, parent, json) VALUES (?, ?, ?)",
			int(typ), nullID(parent), encoded)
		if err != nil {
			return fmt.Errorf("inserting allocation: %w", err)
		}
		allocationID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	t.log.Debug().Int64("allocation", allocationID).Msg("allocation created")
	return allocationID, nil
}

// SetParent moves an allocation under parent, or to the root when parent is
// nil. A move that would make the allocation its own ancestor fails with a
// ValidationError.
func (t *Tree) SetParent(ctx context.Context, allocationID int64, parent *int64) error {
	return t.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		parents, err := parentTable(ctx, tx)
		if err != nil {
			return err
		}
		if _, ok := parents[allocationID]; !ok {
			return ledgererr.NotFoundError{Entity: "allocation", ID: allocationID}
		}
		if parent != nil {
			if _, ok := parents[*parent]; !ok {
				return ledgererr.ValidationError{Field: "parent", Reason: fmt.Sprintf("unknown allocation %d", *parent)}
			}
			if createsCycle(parents, allocationID, *parent) {
				return ledgererr.ValidationError{
					Field:  "parent",
					Reason: fmt.Sprintf("allocation %d cannot be placed under its own descendant %d", allocationID, *parent),
				}
			}
		}
		if _, err := tx.ExecContext(ctx, "UPDATE Allocation SET parent = ? WHERE id = ?", nullID(parent), allocationID); err != nil {
			return fmt.Errorf("updating allocation %d: %w", allocationID, err)
		}
		return nil
	})
}

// parentTable maps every allocation id to its parent id; roots map to nil.
func parentTable(ctx context.Context, q store.Querier) (map[int64]*int64, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, parent FROM Allocation")
	if err != nil {
		return nil, fmt.Errorf("reading allocation parents: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*int64)
	for rows.Next() {
		var id int64
		var parent sql.NullInt64
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, fmt.Errorf("reading allocation parents: %w", err)
		}
		if parent.Valid {
			p := parent.Int64
			out[id] = &p
		} else {
			out[id] = nil
		}
	}
	return out, rows.Err()
}

// createsCycle walks up from parent; reaching id means id would become its
// own ancestor. The walk is bounded by the table size in case the stored
// data already holds a cycle.
func createsCycle(parents map[int64]*int64, id, parent int64) bool {
	cur := &parent
	for steps := 0; cur != nil && steps <= len(parents); steps++ {
		if *cur == id {
			return true
		}
		cur = parents[*cur]
	}
	return cur != nil
}

// Get returns one allocation.
func (t *Tree) Get(ctx context.Context, allocationID int64) (model.Allocation, error) {
	return get(ctx, t.store.DB(), allocationID)
}

func get(ctx context.Context, q store.Querier, allocationID int64) (model.Allocation, error) {
	a, err := scanAllocation(q.QueryRowContext(ctx, "SELECT id, type, parent, json FROM Allocation WHERE id = ?", allocationID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Allocation{}, ledgererr.NotFoundError{Entity: "allocation", ID: allocationID}
	}
	if err != nil {
		return model.Allocation{}, ledgererr.Storage("reading allocation", err)
	}
	return a, nil
}

func scanAllocation(sc interface{ Scan(...any) error }) (model.Allocation, error) {
	var a model.Allocation
	var parent sql.NullInt64
	var ext sql.NullString
	if err := sc.Scan(&a.ID, &a.Type, &parent, &ext); err != nil {
		return model.Allocation{}, err
	}
	if parent.Valid {
		p := parent.Int64
		a.Parent = &p
	}
	if ext.Valid {
		if err := model.DecodeExt(&ext.String, &a.Ext); err != nil {
			return model.Allocation{}, fmt.Errorf("allocation %d: %w", a.ID, err)
		}
	}
	return a, nil
}

// List returns all allocations ordered by id.
func (t *Tree) List(ctx context.Context) ([]model.Allocation, error) {
	rows, err := t.store.DB().QueryContext(ctx, "SELECT id, type, parent, json FROM Allocation ORDER BY id")
	if err != nil {
		return nil, ledgererr.Storage("listing allocations", err)
	}
	defer rows.Close()

	var out []model.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, ledgererr.Storage("listing allocations", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("listing allocations", err)
	}
	return out, nil
}

// Delete removes an allocation. The general allocation, allocations with
// children and allocations referenced by lines cannot be deleted.
func (t *Tree) Delete(ctx context.Context, allocationID int64) error {
	if allocationID == model.GeneralAllocation {
		return ledgererr.InvalidStateError{Entity: "allocation", ID: allocationID, Reason: "the general allocation cannot be deleted"}
	}
	return t.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM Allocation WHERE id = ?", allocationID)
		if err != nil {
			if store.IsConstraint(err) {
				return ledgererr.InvalidStateError{Entity: "allocation", ID: allocationID, Reason: "referenced by child allocations or lines"}
			}
			return fmt.Errorf("deleting allocation %d: %w", allocationID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting allocation %d: %w", allocationID, err)
		}
		if n == 0 {
			return ledgererr.NotFoundError{Entity: "allocation", ID: allocationID}
		}
		return nil
	})
}

func nullID(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
