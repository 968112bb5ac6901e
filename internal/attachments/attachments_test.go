package attachments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/store"
)

func TestPolicyCheck(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name     string
		upload   Upload
		rejected bool
	}{
		{"pdf", Upload{Filename: "invoice.pdf", Data: []byte("%PDF")}, false},
		{"upper case extension", Upload{Filename: "SCAN.JPG", Data: []byte{1}}, false},
		{"docx", Upload{Filename: "contract.docx"}, false},
		{"exe", Upload{Filename: "setup.exe", Data: []byte{1}}, true},
		{"no extension", Upload{Filename: "README", Data: []byte{1}}, true},
		{"no name", Upload{Filename: " ", Data: []byte{1}}, true},
		{"exactly the limit", Upload{Filename: "big.csv", Data: make([]byte, MaxSize)}, false},
		{"over the limit", Upload{Filename: "big.csv", Data: make([]byte, MaxSize+1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Check(tt.upload)
			if tt.rejected {
				assert.ErrorIs(t, err, ledgererr.ErrAttachmentRejected)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIngest_RolesAndHashes(t *testing.T) {
	uploads := []Upload{
		{Filename: "receipt.pdf", Data: []byte("first")},
		{Filename: "virus.exe", Data: []byte("bad")},
		{Filename: "../photo.png", Data: []byte("second")},
		{Filename: "sheet.xlsx", MIMEType: "application/custom", Data: []byte("third")},
	}

	accepted, rejected := DefaultPolicy().Ingest(uploads)
	require.Len(t, accepted, 3)
	require.Len(t, rejected, 1)
	assert.ErrorIs(t, rejected[0], ledgererr.ErrAttachmentRejected)
	assert.Contains(t, rejected[0].Error(), "virus.exe")

	assert.Equal(t, "original", accepted[0].Role)
	assert.Equal(t, "attachment1", accepted[1].Role)
	assert.Equal(t, "attachment2", accepted[2].Role)

	sum := sha256.Sum256([]byte("first"))
	assert.Equal(t, hex.EncodeToString(sum[:]), accepted[0].SHA256)

	assert.Equal(t, "application/pdf", accepted[0].MIMEType)
	assert.Equal(t, "photo.png", accepted[1].Filename)
	assert.Equal(t, "image/png", accepted[1].MIMEType)
	assert.Equal(t, "application/custom", accepted[2].MIMEType)
}

func TestIngest_SniffsUnknownExtension(t *testing.T) {
	accepted, rejected := DefaultPolicy().Ingest([]Upload{{Filename: "notes.txt", Data: []byte("plain words")}})
	require.Empty(t, rejected)
	require.Len(t, accepted, 1)
	assert.True(t, strings.HasPrefix(accepted[0].MIMEType, "text/plain"), accepted[0].MIMEType)
}

func newTestService(t *testing.T) (*Service, *store.Store, int64) {
	t.Helper()
	ctx := context.Background()
	path, err := store.Create(ctx, t.TempDir(), store.ClientInfo{Name: "Attachments"}, store.Chart{})
	require.NoError(t, err)
	s, err := store.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	res, err := s.DB().ExecContext(ctx, "INSERT INTO Voucher (date, type, status) VALUES ('2025-04-01', 8, 0)")
	require.NoError(t, err)
	vid, err := res.LastInsertId()
	require.NoError(t, err)
	return NewService(s, DefaultPolicy(), zerolog.Nop()), s, vid
}

func TestService_AddGetList(t *testing.T) {
	ctx := context.Background()
	svc, _, vid := newTestService(t)

	id1, err := svc.Add(ctx, vid, "", Upload{Filename: "a.pdf", Data: []byte("aaa")})
	require.NoError(t, err)
	_, err = svc.Add(ctx, vid, "", Upload{Filename: "b.txt", Data: []byte("bb")})
	require.NoError(t, err)

	list, err := svc.List(ctx, vid)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "original", list[0].Role)
	assert.Equal(t, "attachment1", list[1].Role)
	assert.Equal(t, int64(2), list[1].Size)
	assert.Nil(t, list[0].Data)
	assert.False(t, list[0].CreatedAt.IsZero())

	got, err := svc.Get(ctx, id1)
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("aaa"), got.Data))
	assert.Equal(t, int64(3), got.Size)
	assert.Equal(t, "a.pdf", got.Filename)
}

func TestService_DuplicateRole(t *testing.T) {
	ctx := context.Background()
	svc, _, vid := newTestService(t)

	_, err := svc.Add(ctx, vid, "original", Upload{Filename: "a.pdf", Data: []byte("a")})
	require.NoError(t, err)

	_, err = svc.Add(ctx, vid, "original", Upload{Filename: "b.pdf", Data: []byte("b")})
	assert.ErrorIs(t, err, ledgererr.ErrDuplicateRole)

	list, err := svc.List(ctx, vid)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestService_AddErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, vid := newTestService(t)

	_, err := svc.Add(ctx, vid+100, "", Upload{Filename: "a.pdf"})
	assert.ErrorIs(t, err, ledgererr.ErrNotFound)

	_, err = svc.Add(ctx, vid, "", Upload{Filename: "a.exe"})
	assert.ErrorIs(t, err, ledgererr.ErrAttachmentRejected)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _, vid := newTestService(t)

	aid, err := svc.Add(ctx, vid, "", Upload{Filename: "a.pdf", Data: []byte("a")})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, aid))

	_, err = svc.Get(ctx, aid)
	assert.ErrorIs(t, err, ledgererr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, aid), ledgererr.ErrNotFound)

	// The freed role is handed out again.
	_, err = svc.Add(ctx, vid, "", Upload{Filename: "b.pdf", Data: []byte("b")})
	require.NoError(t, err)
	list, err := svc.List(ctx, vid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "original", list[0].Role)
}
