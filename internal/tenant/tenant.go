// Package tenant discovers the ledger files of a data directory.
package tenant

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/tilikirja/internal/id"
	"github.com/cleared-dev/tilikirja/internal/ledgererr"
	"github.com/cleared-dev/tilikirja/internal/store"
)

// Ledger describes one ledger file in the data directory.
type Ledger struct {
	Name     string // display name
	FileName string
	Path     string
	Size     int64
	Modified time.Time
}

// Scan returns the ledger files in dir sorted by display name. A missing
// directory yields no ledgers. The display name is the client name stored in
// the ledger, or a title derived from the file name when it cannot be read.
func Scan(ctx context.Context, dir string, log zerolog.Logger) ([]Ledger, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading data dir: %w", err)
	}

	var ledgers []Ledger
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), id.LedgerExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		path := filepath.Join(dir, e.Name())
		ledgers = append(ledgers, Ledger{
			Name:     displayName(ctx, path, log),
			FileName: e.Name(),
			Path:     path,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.SliceStable(ledgers, func(i, j int) bool {
		return strings.ToLower(ledgers[i].Name) < strings.ToLower(ledgers[j].Name)
	})
	return ledgers, nil
}

func displayName(ctx context.Context, path string, log zerolog.Logger) string {
	s, err := store.Open(ctx, path, store.WithLogger(log))
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("ledger unreadable, using file name")
		return id.TitleFromFileName(path)
	}
	defer s.Close()
	if name := strings.TrimSpace(s.ClientName(ctx)); name != "" {
		return name
	}
	return id.TitleFromFileName(path)
}

// Resolve finds the ledger selected by ref: a path to an existing file, a
// file name in dir, or a case-insensitive display name.
func Resolve(ctx context.Context, dir, ref string, log zerolog.Logger) (Ledger, error) {
	if ref == "" {
		return Ledger{}, fmt.Errorf("no ledger selected")
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return Ledger{Name: displayName(ctx, ref, log), FileName: filepath.Base(ref), Path: ref, Size: info.Size(), Modified: info.ModTime()}, nil
	}
	ledgers, err := Scan(ctx, dir, log)
	if err != nil {
		return Ledger{}, err
	}
	var match []Ledger
	for _, l := range ledgers {
		if l.FileName == ref || strings.EqualFold(l.Name, ref) {
			match = append(match, l)
		}
	}
	switch len(match) {
	case 0:
		return Ledger{}, ledgererr.NotFoundError{Entity: "ledger", ID: ref}
	case 1:
		return match[0], nil
	default:
		return Ledger{}, fmt.Errorf("ledger name %q is ambiguous, use the file name", ref)
	}
}
