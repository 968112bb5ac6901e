package id

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// LedgerExt is the file extension of ledger files.
const LedgerExt = ".db"

// LedgerFileName returns a file name like "acme_oy_1a2b3c4d.db".
func LedgerFileName(clientName string, uid uuid.UUID) string {
	safe := strings.ToLower(strings.TrimSpace(clientName))
	safe = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			return r
		}
		return -1
	}, safe)
	if safe == "" {
		safe = "client"
	}
	suffix := hex.EncodeToString(uid[:])[:8]
	return safe + "_" + suffix + LedgerExt
}

// TitleFromFileName derives a display title from a ledger file name.
// "acme_oy_1a2b3c4d.db" -> "Acme Oy"
func TitleFromFileName(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(stem, "_")
	if len(parts) > 1 && isHexSuffix(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}
	words := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		words = append(words, string(r))
	}
	return strings.Join(words, " ")
}

func isHexSuffix(s string) bool {
	if len(s) != 8 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Attachment roles.
const (
	RoleOriginal         = "original"
	roleAttachmentPrefix = "attachment"
)

// AttachmentRole returns the role of the i-th accepted attachment (0-based):
// "original" for the first, then "attachment1", "attachment2", ...
func AttachmentRole(i int) string {
	if i == 0 {
		return RoleOriginal
	}
	return roleAttachmentPrefix + strconv.Itoa(i)
}

// SanitizeFilename strips directories and characters that are unsafe in
// file names, keeping letters, digits, dot, dash and underscore.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			return r
		}
		return -1
	}, base)
	base = strings.TrimLeft(base, "._")
	if base == "" {
		return "file"
	}
	return base
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewOperationID returns a sortable id that correlates the log lines and
// audit rows of one operation.
func NewOperationID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
