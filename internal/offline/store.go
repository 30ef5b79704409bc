// Package offline keeps downloaded books and their translations in a local
// SQLite file so they stay readable without network access.
package offline

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/sqlitedb"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Fixed width so lexical order in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// QuotaEstimator reports the storage capacity of the filesystem holding dir.
type QuotaEstimator func(dir string) (int64, bool)

type Store struct {
	path      string
	quota     int64
	estimator QuotaEstimator
	now       func() time.Time

	initGroup singleflight.Group
	mu        sync.RWMutex
	db        *sql.DB
}

type Option func(*Store)

// WithQuota fixes the quota reported by GetStorageInfo.
func WithQuota(bytes int64) Option {
	return func(s *Store) {
		s.quota = bytes
	}
}

func WithQuotaEstimator(fn QuotaEstimator) Option {
	return func(s *Store) {
		s.estimator = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a store for the SQLite file at path. Nothing is opened
// until Init or the first operation.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:      path,
		estimator: filesystemQuota,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init opens the database and applies migrations. Concurrent callers share a
// single attempt; a failed attempt leaves the store closed so the next call
// tries again.
func (s *Store) Init(ctx context.Context) error {
	s.mu.RLock()
	ready := s.db != nil
	s.mu.RUnlock()
	if ready {
		return nil
	}

	_, err, _ := s.initGroup.Do("init", func() (any, error) {
		s.mu.RLock()
		ready := s.db != nil
		s.mu.RUnlock()
		if ready {
			return nil, nil
		}

		db, err := sqlitedb.Open(ctx, s.path)
		if err != nil {
			return nil, err
		}
		if err := sqlitedb.Migrate(ctx, db, migrationFiles, "migrations"); err != nil {
			_ = db.Close()
			return nil, err
		}

		s.mu.Lock()
		s.db = db
		s.mu.Unlock()
		log.Debug("Offline store opened at %s", s.path)
		return nil, nil
	})
	if err != nil {
		return errs.Wrap(err, errs.ErrStoreUnavailable, "open offline store").WithContext("path", s.path)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// handle runs Init lazily and returns the open database.
func (s *Store) handle(ctx context.Context) (*sql.DB, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errs.New(errs.ErrStoreUnavailable, "offline store closed")
	}
	return s.db, nil
}

func storeErr(op string, err error) error {
	if errs.IsType(err, errs.ErrStoreUnavailable) || errs.IsType(err, errs.ErrMalformedInput) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return errs.Wrap(err, errs.ErrStore, op)
}

// SaveBook upserts book, stamping DownloadedAt with the current time.
func (s *Store) SaveBook(ctx context.Context, book Book) (Book, error) {
	if strings.TrimSpace(book.ID) == "" {
		return Book{}, errs.New(errs.ErrMalformedInput, "saveBook: book id is required")
	}
	db, err := s.handle(ctx)
	if err != nil {
		return Book{}, storeErr("saveBook", err)
	}

	book.DownloadedAt = s.now().UTC()
	book.Offline = true
	if err := upsertBook(ctx, db, book); err != nil {
		return Book{}, storeErr("saveBook", err)
	}
	return book, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertBook(ctx context.Context, db execer, book Book) error {
	fields := book.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	_, err = db.ExecContext(
		ctx,
		`INSERT INTO books (id, title, author, fields_json, downloaded_at, offline)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			author=excluded.author,
			fields_json=excluded.fields_json,
			downloaded_at=excluded.downloaded_at,
			offline=1`,
		book.ID,
		book.Title,
		book.Author,
		string(fieldsJSON),
		book.DownloadedAt.UTC().Format(timeLayout),
	)
	return err
}

// SaveTranslation stores content for (bookID, lang); the last write wins.
func (s *Store) SaveTranslation(ctx context.Context, bookID, lang, content string) (Translation, error) {
	if strings.TrimSpace(bookID) == "" {
		return Translation{}, errs.New(errs.ErrMalformedInput, "saveTranslation: book id is required")
	}
	code, err := normalizeLanguage(lang)
	if err != nil {
		return Translation{}, fmt.Errorf("saveTranslation: %w", err)
	}
	db, err := s.handle(ctx)
	if err != nil {
		return Translation{}, storeErr("saveTranslation", err)
	}

	tr := Translation{BookID: bookID, Language: code, Content: content, SavedAt: s.now().UTC()}
	if err := upsertTranslation(ctx, db, tr); err != nil {
		return Translation{}, storeErr("saveTranslation", err)
	}
	return tr, nil
}

func upsertTranslation(ctx context.Context, db execer, tr Translation) error {
	_, err := db.ExecContext(
		ctx,
		`INSERT INTO translations (book_id, language, content, saved_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(book_id, language) DO UPDATE SET
			content=excluded.content,
			saved_at=excluded.saved_at`,
		tr.BookID,
		tr.Language,
		tr.Content,
		tr.SavedAt.UTC().Format(timeLayout),
	)
	return err
}

func normalizeLanguage(lang string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return "", errs.Wrap(err, errs.ErrMalformedInput, "invalid language code").WithContext("language", lang)
	}
	return tag.String(), nil
}

const bookColumns = `id, title, author, fields_json, downloaded_at, offline`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (Book, error) {
	var (
		b            Book
		fieldsJSON   string
		downloadedAt string
		offline      int
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &fieldsJSON, &downloadedAt, &offline); err != nil {
		return Book{}, err
	}
	if fieldsJSON != "" && fieldsJSON != "{}" {
		if err := json.Unmarshal([]byte(fieldsJSON), &b.Fields); err != nil {
			return Book{}, fmt.Errorf("decode fields of %s: %w", b.ID, err)
		}
	}
	t, err := time.Parse(timeLayout, downloadedAt)
	if err != nil {
		return Book{}, fmt.Errorf("decode downloaded_at of %s: %w", b.ID, err)
	}
	b.DownloadedAt = t
	b.Offline = offline == 1
	return b, nil
}

func scanTranslation(row rowScanner) (Translation, error) {
	var (
		tr      Translation
		savedAt string
	)
	if err := row.Scan(&tr.BookID, &tr.Language, &tr.Content, &savedAt); err != nil {
		return Translation{}, err
	}
	t, err := time.Parse(timeLayout, savedAt)
	if err != nil {
		return Translation{}, fmt.Errorf("decode saved_at: %w", err)
	}
	tr.SavedAt = t
	return tr, nil
}

// GetBook returns nil when the book is not cached.
func (s *Store) GetBook(ctx context.Context, bookID string) (*Book, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, storeErr("getBook", err)
	}
	row := db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, bookID)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("getBook", err)
	}
	return &b, nil
}

// GetAllBooks lists cached books, most recently downloaded first.
func (s *Store) GetAllBooks(ctx context.Context) ([]Book, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, storeErr("getAllBooks", err)
	}
	books, err := queryBooks(ctx, db, `SELECT `+bookColumns+` FROM books ORDER BY downloaded_at DESC, id ASC`)
	if err != nil {
		return nil, storeErr("getAllBooks", err)
	}
	return books, nil
}

// SearchBooks matches query against title and author, case-insensitively for ASCII.
func (s *Store) SearchBooks(ctx context.Context, query string) ([]Book, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, storeErr("searchBooks", err)
	}
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	books, err := queryBooks(ctx, db,
		`SELECT `+bookColumns+` FROM books
		 WHERE title LIKE ? ESCAPE '\' OR author LIKE ? ESCAPE '\'
		 ORDER BY title ASC, id ASC`,
		pattern, pattern)
	if err != nil {
		return nil, storeErr("searchBooks", err)
	}
	return books, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryBooks(ctx context.Context, db querier, query string, args ...any) ([]Book, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func queryTranslations(ctx context.Context, db querier, query string, args ...any) ([]Translation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Translation, 0)
	for rows.Next() {
		tr, err := scanTranslation(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// GetTranslation returns nil when no translation exists for the pair.
func (s *Store) GetTranslation(ctx context.Context, bookID, lang string) (*Translation, error) {
	code, err := normalizeLanguage(lang)
	if err != nil {
		return nil, fmt.Errorf("getTranslation: %w", err)
	}
	db, err := s.handle(ctx)
	if err != nil {
		return nil, storeErr("getTranslation", err)
	}
	row := db.QueryRowContext(ctx,
		`SELECT book_id, language, content, saved_at FROM translations WHERE book_id = ? AND language = ?`,
		bookID, code)
	tr, err := scanTranslation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("getTranslation", err)
	}
	return &tr, nil
}

// GetBookTranslations returns every language variant of a book, ordered by language.
func (s *Store) GetBookTranslations(ctx context.Context, bookID string) ([]Translation, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, storeErr("getBookTranslations", err)
	}
	trs, err := queryTranslations(ctx, db,
		`SELECT book_id, language, content, saved_at FROM translations WHERE book_id = ? ORDER BY language ASC`,
		bookID)
	if err != nil {
		return nil, storeErr("getBookTranslations", err)
	}
	return trs, nil
}

// DeleteBook removes the book and all of its translations atomically.
func (s *Store) DeleteBook(ctx context.Context, bookID string) (err error) {
	db, err := s.handle(ctx)
	if err != nil {
		return storeErr("deleteBook", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("deleteBook", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM translations WHERE book_id = ?`, bookID); err != nil {
		return storeErr("deleteBook", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, bookID); err != nil {
		return storeErr("deleteBook", err)
	}
	if err = tx.Commit(); err != nil {
		return storeErr("deleteBook", err)
	}
	return nil
}

// IsBookOffline never fails; any error reads as not cached.
func (s *Store) IsBookOffline(ctx context.Context, bookID string) bool {
	db, err := s.handle(ctx)
	if err != nil {
		log.Debug("isBookOffline(%s): %v", bookID, err)
		return false
	}
	var exists int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE id = ?`, bookID).Scan(&exists); err != nil {
		log.Debug("isBookOffline(%s): %v", bookID, err)
		return false
	}
	return exists > 0
}

// ClearAllOfflineData empties both tables in one transaction.
func (s *Store) ClearAllOfflineData(ctx context.Context) (err error) {
	db, err := s.handle(ctx)
	if err != nil {
		return storeErr("clearAllOfflineData", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("clearAllOfflineData", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM translations`); err != nil {
		return storeErr("clearAllOfflineData", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM books`); err != nil {
		return storeErr("clearAllOfflineData", err)
	}
	if err = tx.Commit(); err != nil {
		return storeErr("clearAllOfflineData", err)
	}
	return nil
}

// GetStorageInfo returns nil when no quota is configured and the platform
// cannot estimate one. Callers must treat nil as unknown, not empty.
func (s *Store) GetStorageInfo(ctx context.Context) (*StorageInfo, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, storeErr("getStorageInfo", err)
	}

	quota := s.quota
	if quota <= 0 && s.estimator != nil {
		if q, ok := s.estimator(filepath.Dir(s.path)); ok {
			quota = q
		}
	}
	if quota <= 0 {
		return nil, nil
	}

	var pageCount, pageSize int64
	if err := db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return nil, storeErr("getStorageInfo", err)
	}
	if err := db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return nil, storeErr("getStorageInfo", err)
	}
	used := pageCount * pageSize
	return &StorageInfo{
		Used:       used,
		Quota:      quota,
		Percentage: float64(used) / float64(quota) * 100,
	}, nil
}
