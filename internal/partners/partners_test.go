package partners

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

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	ctx := context.Background()
	path, err := store.Create(ctx, t.TempDir(), store.ClientInfo{Name: "Partners"}, store.Chart{})
	require.NoError(t, err)
	s, err := store.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewDirectory(s, zerolog.Nop())
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory(t)

	id, err := dir.Create(ctx, model.Partner{
		Name:  "Acme Oy",
		VATID: "FI12345678",
		Ext:   model.PartnerExt{City: "Tampere", Email: "billing@acme.fi"},
		IBANs: []string{"fi21 1234 5600 0007 85"},
	})
	require.NoError(t, err)

	p, err := dir.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Acme Oy", p.Name)
	assert.Equal(t, "FI12345678", p.VATID)
	assert.Equal(t, "Tampere", p.Ext.City)
	assert.Equal(t, []string{"FI2112345600000785"}, p.IBANs)

	require.NoError(t, dir.AddIBAN(ctx, id, "FI4950009420028730"))
	p, err = dir.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, p.IBANs, 2)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory(t)

	_, err := dir.Create(ctx, model.Partner{Name: "  "})
	assert.ErrorIs(t, err, ledgererr.ErrValidation)

	id, err := dir.Create(ctx, model.Partner{Name: "First", IBANs: []string{"FI2112345600000785"}})
	require.NoError(t, err)

	// An IBAN belongs to one partner only; the failed create leaves nothing behind.
	_, err = dir.Create(ctx, model.Partner{Name: "Second", IBANs: []string{"FI21 1234 5600 0007 85"}})
	assert.ErrorIs(t, err, ledgererr.ErrValidation)
	_, ok, err := dir.FindByName(ctx, "second")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, dir.AddIBAN(ctx, id+100, "FI4950009420028730"), ledgererr.ErrNotFound)
	_, err = dir.Get(ctx, id+100)
	assert.ErrorIs(t, err, ledgererr.ErrNotFound)
}

func TestList_ByName(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory(t)

	_, err := dir.Create(ctx, model.Partner{Name: "zeta"})
	require.NoError(t, err)
	_, err = dir.Create(ctx, model.Partner{Name: "Alpha", IBANs: []string{"FI21 1234 5600 0007 85", "DE89370400440532013000"}})
	require.NoError(t, err)

	list, err := dir.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Alpha", list[0].Name)
	assert.Equal(t, []string{"DE89370400440532013000", "FI2112345600000785"}, list[0].IBANs)
	assert.Empty(t, list[2].IBANs)
	assert.Equal(t, model.TaxAuthorityPartner, list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)

	p, ok, err := dir.FindByName(ctx, "ALPHA")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alpha", p.Name)
}
