package allocations

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
	"github.com/cleared-dev/tilikirja/internal/store"
)

func newTestTree(t *testing.T) (*Tree, *store.Store) {
	t.Helper()
	ctx := context.Background()
	chart := store.Chart{Accounts: []model.Account{{Number: 1000, Type: model.AccountTypeAsset}}}
	path, err := store.Create(ctx, t.TempDir(), store.ClientInfo{Name: "Allocations"}, chart)
	require.NoError(t, err)
	s, err := store.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewTree(s, zerolog.Nop()), s
}

func named(name string) model.AllocationExt {
	return model.AllocationExt{Name: map[string]string{"en": name}}
}

func ptr(id int64) *int64 { return &id }

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	sales, err := tree.Create(ctx, model.AllocationCostCenter, nil, named("Sales"))
	require.NoError(t, err)
	web, err := tree.Create(ctx, model.AllocationProject, &sales, named("Web shop"))
	require.NoError(t, err)

	list, err := tree.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, model.GeneralAllocation, list[0].ID)
	assert.Equal(t, "General", list[0].DisplayName("en"))
	assert.Equal(t, "Yleinen", list[0].DisplayName("fi"))

	got, err := tree.Get(ctx, web)
	require.NoError(t, err)
	require.NotNil(t, got.Parent)
	assert.Equal(t, sales, *got.Parent)
	assert.Equal(t, model.AllocationProject, got.Type)
	assert.Equal(t, "Web shop", got.DisplayName("sv"))

	_, err = tree.Create(ctx, model.AllocationType(9), nil, named("Bad"))
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
	_, err = tree.Create(ctx, model.AllocationTag, ptr(404), named("Orphan"))
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
}

func TestSetParent_RejectsCycles(t *testing.T) {
	ctx := context.Background()
	tree, _ := newTestTree(t)

	a, err := tree.Create(ctx, model.AllocationCostCenter, nil, named("A"))
	require.NoError(t, err)
	b, err := tree.Create(ctx, model.AllocationCostCenter, &a, named("B"))
	require.NoError(t, err)
	c, err := tree.Create(ctx, model.AllocationCostCenter, &b, named("C"))
	require.NoError(t, err)

	assert.ErrorIs(t, tree.SetParent(ctx, a, &c), ledgererr.ErrValidation)
	assert.ErrorIs(t, tree.SetParent(ctx, a, &a), ledgererr.ErrValidation)
	assert.ErrorIs(t, tree.SetParent(ctx, b, &c), ledgererr.ErrValidation)

	// Moving a subtree elsewhere is fine.
	require.NoError(t, tree.SetParent(ctx, c, &a))
	require.NoError(t, tree.SetParent(ctx, b, &c))
	require.NoError(t, tree.SetParent(ctx, a, nil))

	got, err := tree.Get(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, c, *got.Parent)

	assert.ErrorIs(t, tree.SetParent(ctx, 404, nil), ledgererr.ErrNotFound)
	assert.ErrorIs(t, tree.SetParent(ctx, a, ptr(404)), ledgererr.ErrValidation)
}

func TestCreatesCycle(t *testing.T) {
	one, two := int64(1), int64(2)
	parents := map[int64]*int64{0: nil, 1: nil, 2: &one, 3: &two}

	assert.True(t, createsCycle(parents, 1, 3))
	assert.True(t, createsCycle(parents, 2, 2))
	assert.False(t, createsCycle(parents, 3, 0))
	assert.False(t, createsCycle(parents, 1, 0))

	// A stored loop that does not include the moved node still stops the walk.
	five, six := int64(5), int64(6)
	looped := map[int64]*int64{5: &six, 6: &five, 7: nil}
	assert.True(t, createsCycle(looped, 7, 5))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	tree, s := newTestTree(t)

	parent, err := tree.Create(ctx, model.AllocationProject, nil, named("Parent"))
	require.NoError(t, err)
	child, err := tree.Create(ctx, model.AllocationProject, &parent, named("Child"))
	require.NoError(t, err)

	assert.ErrorIs(t, tree.Delete(ctx, model.GeneralAllocation), ledgererr.ErrInvalidState)
	assert.ErrorIs(t, tree.Delete(ctx, parent), ledgererr.ErrInvalidState)
	assert.ErrorIs(t, tree.Delete(ctx, 404), ledgererr.ErrNotFound)

	res, err := s.DB().ExecContext(ctx, "INSERT INTO Voucher (date, type, status) VALUES ('2025-01-01', 7, 0)")
	require.NoError(t, err)
	vid, err := res.LastInsertId()
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx,
		"INSERT INTO TransactionLine (line_no, voucher, date, account, allocation, debit) VALUES (1, ?, '2025-01-01', 1000, ?, 100)",
		vid, child)
	require.NoError(t, err)
	assert.ErrorIs(t, tree.Delete(ctx, child), ledgererr.ErrInvalidState)

	_, err = s.DB().ExecContext(ctx, "DELETE FROM Voucher WHERE id = ?", vid)
	require.NoError(t, err)
	require.NoError(t, tree.Delete(ctx, child))
	require.NoError(t, tree.Delete(ctx, parent))

	list, err := tree.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
