// Package attachments implements the attachment contract of the ledger:
// which uploads are accepted, how they are hashed and named, and the
// per-voucher uniqueness of roles.
package attachments

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/tilikirja/internal/id"
	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/model"
	"github.com/cleared-dev/tilikirja/internal/store"
)

// MaxSize is the default upload limit, 10 MiB.
const MaxSize = 10 << 20

// DefaultExtensions is the default allow-list.
var DefaultExtensions = []string{"pdf", "jpg", "jpeg", "png", "csv", "txt", "xls", "xlsx", "doc", "docx"}

// Upload is a file submitted with a voucher.
type Upload struct {
	Filename string
	MIMEType string // optional; derived from the extension or content when empty
	Data     []byte
}

// Policy decides which uploads are accepted.
type Policy struct {
	MaxSize    int64
	Extensions []string
}

// DefaultPolicy returns the 10 MiB limit and the default allow-list.
func DefaultPolicy() Policy {
	return Policy{MaxSize: MaxSize, Extensions: DefaultExtensions}
}

// Prepared is an accepted upload ready to be stored.
type Prepared struct {
	Filename string
	Role     string
	MIMEType string
	SHA256   string
	Data     []byte
}

// Check returns an AttachmentRejectedError when u breaks the policy.
func (p Policy) Check(u Upload) error {
	if strings.TrimSpace(u.Filename) == "" {
		return ledgererr.AttachmentRejectedError{Filename: u.Filename, Reason: "missing file name"}
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Filename), "."))
	if !p.allowed(ext) {
		return ledgererr.AttachmentRejectedError{Filename: u.Filename, Reason: fmt.Sprintf("extension %q is not allowed", ext)}
	}
	if int64(len(u.Data)) > p.MaxSize {
		return ledgererr.AttachmentRejectedError{
			Filename: u.Filename,
			Reason:   fmt.Sprintf("size %d exceeds the limit of %d bytes", len(u.Data), p.MaxSize),
		}
	}
	return nil
}

func (p Policy) allowed(ext string) bool {
	if ext == "" {
		return false
	}
	for _, e := range p.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// Ingest checks every upload and assigns roles to the accepted ones in
// order: "original", then "attachment1", "attachment2", ... Rejected uploads
// are reported and skipped; they do not consume a role.
func (p Policy) Ingest(uploads []Upload) (accepted []Prepared, rejected []error) {
	for _, u := range uploads {
		if err := p.Check(u); err != nil {
			rejected = append(rejected, err)
			continue
		}
		accepted = append(accepted, prepare(u, id.AttachmentRole(len(accepted))))
	}
	return accepted, rejected
}

func prepare(u Upload, role string) Prepared {
	sum := sha256.Sum256(u.Data)
	return Prepared{
		Filename: id.SanitizeFilename(u.Filename),
		Role:     role,
		MIMEType: mimeType(u),
		SHA256:   hex.EncodeToString(sum[:]),
		Data:     u.Data,
	}
}

func mimeType(u Upload) string {
	if u.MIMEType != "" {
		return u.MIMEType
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(u.Filename))); t != "" {
		return t
	}
	return mimetype.Detect(u.Data).String()
}

// Insert stores p on voucherID inside tx. A role already used on the voucher
// fails with DuplicateRoleError.
func Insert(ctx context.Context, tx *sql.Tx, voucherID int64, p Prepared) (int64, error) {
	var taken int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM Attachment WHERE voucher = ? AND role = ?", voucherID, p.Role).Scan(&taken); err != nil {
		return 0, fmt.Errorf("checking attachment role: %w", err)
	}
	if taken > 0 {
		return 0, ledgererr.DuplicateRoleError{VoucherID: voucherID, Role: p.Role}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO Attachment (voucher, filename, role, mime_type, sha256, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`, voucherID, p.Filename, p.Role, p.MIMEType, p.SHA256, p.Data)
	if err != nil {
		if store.IsConstraint(err) {
			return 0, ledgererr.DuplicateRoleError{VoucherID: voucherID, Role: p.Role}
		}
		return 0, fmt.Errorf("inserting attachment %q: %w", p.Filename, err)
	}
	return res.LastInsertId()
}

// Service adds, reads and removes attachments of existing vouchers.
type Service struct {
	store  *store.Store
	policy Policy
	log    zerolog.Logger
}

// NewService creates an attachment Service.
func NewService(s *store.Store, policy Policy, log zerolog.Logger) *Service {
	return &Service{store: s, policy: policy, log: log}
}

// Policy returns the ingestion policy of the service.
func (s *Service) Policy() Policy {
	return s.policy
}

// Add stores u on an existing voucher. An empty role takes the next free
// one; an explicit role already in use fails with DuplicateRoleError.
func (s *Service) Add(ctx context.Context, voucherID int64, role string, u Upload) (int64, error) {
	if err := s.policy.Check(u); err != nil {
		s.store.Metrics().AttachmentsRejected(1)
		return 0, err
	}

	var attachmentID int64
	err := s.store.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM Voucher WHERE id = ?", voucherID).Scan(&exists); err != nil {
			return fmt.Errorf("checking voucher: %w", err)
		}
		if exists == 0 {
			return ledgererr.NotFoundError{Entity: "voucher", ID: voucherID}
		}

		if role == "" {
			next, err := nextRole(ctx, tx, voucherID)
			if err != nil {
				return err
			}
			role = next
		}

		var err error
		attachmentID, err = Insert(ctx, tx, voucherID, prepare(u, role))
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Debug().Int64("voucher", voucherID).Str("role", role).Msg("attachment added")
	return attachmentID, nil
}

func nextRole(ctx context.Context, tx *sql.Tx, voucherID int64) (string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT role FROM Attachment WHERE voucher = ?", voucherID)
	if err != nil {
		return "", fmt.Errorf("listing attachment roles: %w", err)
	}
	defer rows.Close()

	used := make(map[string]bool)
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return "", fmt.Errorf("listing attachment roles: %w", err)
		}
		used[r] = true
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("listing attachment roles: %w", err)
	}
	for i := 0; ; i++ {
		if r := id.AttachmentRole(i); !used[r] {
			return r, nil
		}
	}
}

// Get returns one attachment including its payload.
func (s *Service) Get(ctx context.Context, attachmentID int64) (model.Attachment, error) {
	var a model.Attachment
	var mimeType sql.NullString
	err := s.store.DB().QueryRowContext(ctx, `
		SELECT id, voucher, filename, role, mime_type, sha256, data, created
		FROM Attachment WHERE id = ?
	`, attachmentID).Scan(&a.ID, &a.VoucherID, &a.Filename, &a.Role, &mimeType, &a.SHA256, &a.Data, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Attachment{}, ledgererr.NotFoundError{Entity: "attachment", ID: attachmentID}
	}
	if err != nil {
		return model.Attachment{}, ledgererr.Storage("reading attachment", err)
	}
	a.MIMEType = mimeType.String
	a.Size = int64(len(a.Data))
	return a, nil
}

// List returns the attachment metadata of a voucher ordered by id.
func (s *Service) List(ctx context.Context, voucherID int64) ([]model.Attachment, error) {
	return List(ctx, s.store.DB(), voucherID)
}

// List returns the attachment metadata of a voucher read through q.
func List(ctx context.Context, q store.Querier, voucherID int64) ([]model.Attachment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, voucher, filename, role, mime_type, sha256, COALESCE(length(data), 0), created
		FROM Attachment WHERE voucher = ? ORDER BY id
	`, voucherID)
	if err != nil {
		return nil, ledgererr.Storage("listing attachments", err)
	}
	defer rows.Close()

	var out []model.Attachment
	for rows.Next() {
		var a model.Attachment
		var mimeType sql.NullString
		if err := rows.Scan(&a.ID, &a.VoucherID, &a.Filename, &a.Role, &mimeType, &a.SHA256, &a.Size, &a.CreatedAt); err != nil {
			return nil, ledgererr.Storage("listing attachments", err)
		}
		a.MIMEType = mimeType.String
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgererr.Storage("listing attachments", err)
	}
	return out, nil
}

// Delete removes one attachment.
func (s *Service) Delete(ctx context.Context, attachmentID int64) error {
	res, err := s.store.DB().ExecContext(ctx, "DELETE FROM Attachment WHERE id = ?", attachmentID)
	if err != nil {
		return ledgererr.Storage("deleting attachment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledgererr.Storage("deleting attachment", err)
	}
	if n == 0 {
		return ledgererr.NotFoundError{Entity: "attachment", ID: attachmentID}
	}
	return nil
}
