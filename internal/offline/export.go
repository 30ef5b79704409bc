package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/file"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
)

// ExportOfflineLibrary snapshots every book and translation.
func (s *Store) ExportOfflineLibrary(ctx context.Context) (*LibraryExport, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, storeErr("exportOfflineLibrary", err)
	}
	books, err := queryBooks(ctx, db, `SELECT `+bookColumns+` FROM books ORDER BY downloaded_at DESC, id ASC`)
	if err != nil {
		return nil, storeErr("exportOfflineLibrary", err)
	}
	trs, err := queryTranslations(ctx, db,
		`SELECT book_id, language, content, saved_at FROM translations ORDER BY book_id ASC, language ASC`)
	if err != nil {
		return nil, storeErr("exportOfflineLibrary", err)
	}
	return &LibraryExport{
		Version:      ExportVersion,
		ExportedAt:   s.now().UTC(),
		Books:        books,
		Translations: trs,
	}, nil
}

// ImportOfflineLibrary merges data into the cache. Existing records absent
// from data are kept; records present are overwritten. The whole import is
// rejected before any write if a record lacks its identifier.
func (s *Store) ImportOfflineLibrary(ctx context.Context, data *LibraryExport) (res ImportResult, err error) {
	if data == nil {
		return ImportResult{}, errs.New(errs.ErrMalformedInput, "importOfflineLibrary: data is required")
	}
	if data.Version > ExportVersion {
		return ImportResult{}, errs.Newf(errs.ErrMalformedInput, "importOfflineLibrary: unsupported export version %d", data.Version)
	}

	now := s.now().UTC()
	books := make([]Book, len(data.Books))
	for i, b := range data.Books {
		if strings.TrimSpace(b.ID) == "" {
			return ImportResult{}, errs.Newf(errs.ErrMalformedInput, "importOfflineLibrary: book %d has no id", i)
		}
		if b.DownloadedAt.IsZero() {
			b.DownloadedAt = now
		}
		books[i] = b
	}
	trs := make([]Translation, len(data.Translations))
	for i, tr := range data.Translations {
		if strings.TrimSpace(tr.BookID) == "" {
			return ImportResult{}, errs.Newf(errs.ErrMalformedInput, "importOfflineLibrary: translation %d has no book id", i)
		}
		code, err := normalizeLanguage(tr.Language)
		if err != nil {
			return ImportResult{}, fmt.Errorf("importOfflineLibrary: translation %d: %w", i, err)
		}
		tr.Language = code
		if tr.SavedAt.IsZero() {
			tr.SavedAt = now
		}
		trs[i] = tr
	}

	db, err := s.handle(ctx)
	if err != nil {
		return ImportResult{}, storeErr("importOfflineLibrary", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, storeErr("importOfflineLibrary", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, b := range books {
		if err = upsertBook(ctx, tx, b); err != nil {
			return ImportResult{}, storeErr("importOfflineLibrary", err)
		}
	}
	for _, tr := range trs {
		if err = upsertTranslation(ctx, tx, tr); err != nil {
			return ImportResult{}, storeErr("importOfflineLibrary", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return ImportResult{}, storeErr("importOfflineLibrary", err)
	}

	log.Info("Imported %d books and %d translations", len(books), len(trs))
	return ImportResult{Books: len(books), Translations: len(trs)}, nil
}

// ExportToFile writes the export as indented JSON, replacing path atomically.
func (s *Store) ExportToFile(ctx context.Context, path string) (*LibraryExport, error) {
	data, err := s.ExportOfflineLibrary(ctx)
	if err != nil {
		return nil, err
	}
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStore, "encode export")
	}
	if err := file.WriteAtomic(path, append(content, '\n'), 0o644); err != nil {
		return nil, errs.Wrap(err, errs.ErrStore, "write export").WithContext("path", path)
	}
	return data, nil
}

func (s *Store) ImportFromFile(ctx context.Context, path string) (ImportResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, errs.Wrap(err, errs.ErrMalformedInput, "read import file").WithContext("path", path)
	}
	var data LibraryExport
	if err := json.Unmarshal(content, &data); err != nil {
		return ImportResult{}, errs.Wrap(err, errs.ErrMalformedInput, "decode import file").WithContext("path", path)
	}
	return s.ImportOfflineLibrary(ctx, &data)
}
