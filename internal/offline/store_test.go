package offline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s := NewStore(filepath.Join(t.TempDir(), "offline.db"), opts...)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_InitIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Init(ctx))

	db, err := s.handle(ctx)
	require.NoError(t, err)
	var tables, indexes int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('books', 'translations')`).Scan(&tables))
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%'`).Scan(&indexes))
	assert.Equal(t, 2, tables)
	assert.Equal(t, 4, indexes)

	var migrations int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&migrations))
	assert.Equal(t, 1, migrations)
}

func TestStore_ConcurrentInitSharesHandle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- s.Init(ctx)
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
}

func TestStore_InitFailureIsRetriedByNextOperation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	s := NewStore(filepath.Join(blocker, "offline.db"))
	t.Cleanup(func() { _ = s.Close() })

	err := s.Init(ctx)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrStoreUnavailable))

	_, err = s.SaveBook(ctx, Book{ID: "B1"})
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "saveBook")
	assert.False(t, s.IsBookOffline(ctx, "B1"))

	require.NoError(t, os.Remove(blocker))
	_, err = s.SaveBook(ctx, Book{ID: "B1"})
	require.NoError(t, err)
	assert.True(t, s.IsBookOffline(ctx, "B1"))
}

func TestStore_SaveBookRejectsMissingID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.SaveBook(context.Background(), Book{Title: "No id"})
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrMalformedInput))
}

func TestStore_SaveTranslationRejectsBadInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SaveTranslation(ctx, "", "si", "x")
	assert.True(t, errs.IsType(err, errs.ErrMalformedInput))

	_, err = s.SaveTranslation(ctx, "B1", "not a language", "x")
	assert.True(t, errs.IsType(err, errs.ErrMalformedInput))
}

func TestStore_BookRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	saved, err := s.SaveBook(ctx, Book{
		ID:     "B1",
		Title:  "Ocean Atlas",
		Author: "NARA",
		Fields: map[string]any{"materialType": "MAP", "year": "2019"},
	})
	require.NoError(t, err)
	assert.True(t, saved.Offline)
	assert.False(t, saved.DownloadedAt.IsZero())

	got, err := s.GetBook(ctx, "B1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ocean Atlas", got.Title)
	assert.Equal(t, "MAP", got.Fields["materialType"])
	assert.True(t, got.Offline)
	assert.True(t, saved.DownloadedAt.Equal(got.DownloadedAt))

	missing, err := s.GetBook(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_GetAllBooksNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	empty, err := s.GetAllBooks(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []string{"A", "B", "C"} {
		_, err := s.SaveBook(ctx, Book{ID: id, Title: "Title " + id})
		require.NoError(t, err)
	}
	// Re-saving refreshes the download time.
	_, err = s.SaveBook(ctx, Book{ID: "A", Title: "Title A2"})
	require.NoError(t, err)

	books, err := s.GetAllBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, []string{"A", "C", "B"}, []string{books[0].ID, books[1].ID, books[2].ID})
	assert.Equal(t, "Title A2", books[0].Title)
}

func TestStore_TranslationLastWriteWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SaveTranslation(ctx, "B1", "si", "first")
	require.NoError(t, err)
	_, err = s.SaveTranslation(ctx, "B1", "SI", "second")
	require.NoError(t, err)

	tr, err := s.GetTranslation(ctx, "B1", "si")
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, "second", tr.Content)

	none, err := s.GetTranslation(ctx, "B1", "ta")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestStore_DeleteBookCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SaveBook(ctx, Book{ID: "B1", Title: "Ocean Atlas"})
	require.NoError(t, err)
	_, err = s.SaveTranslation(ctx, "B1", "si", "සාගර ඇට්ලසය")
	require.NoError(t, err)
	_, err = s.SaveTranslation(ctx, "B1", "ta", "கடல் அட்லஸ்")
	require.NoError(t, err)
	_, err = s.SaveTranslation(ctx, "B2", "si", "other book")
	require.NoError(t, err)

	trs, err := s.GetBookTranslations(ctx, "B1")
	require.NoError(t, err)
	assert.Len(t, trs, 2)

	require.NoError(t, s.DeleteBook(ctx, "B1"))

	trs, err = s.GetBookTranslations(ctx, "B1")
	require.NoError(t, err)
	assert.Empty(t, trs)
	book, err := s.GetBook(ctx, "B1")
	require.NoError(t, err)
	assert.Nil(t, book)
	assert.False(t, s.IsBookOffline(ctx, "B1"))

	other, err := s.GetBookTranslations(ctx, "B2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestStore_SearchBooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SaveBook(ctx, Book{ID: "1", Title: "Ocean Atlas", Author: "Perera"})
	require.NoError(t, err)
	_, err = s.SaveBook(ctx, Book{ID: "2", Title: "Lagoon Fisheries", Author: "Silva"})
	require.NoError(t, err)
	_, err = s.SaveBook(ctx, Book{ID: "3", Title: "100% Coral", Author: "Fernando"})
	require.NoError(t, err)

	byTitle, err := s.SearchBooks(ctx, "ocean")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "1", byTitle[0].ID)

	byAuthor, err := s.SearchBooks(ctx, "SILVA")
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, "2", byAuthor[0].ID)

	literal, err := s.SearchBooks(ctx, "0%")
	require.NoError(t, err)
	require.Len(t, literal, 1)
	assert.Equal(t, "3", literal[0].ID)
}

func TestStore_ClearAllOfflineData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.SaveBook(ctx, Book{ID: "B1"})
	require.NoError(t, err)
	_, err = s.SaveTranslation(ctx, "B1", "ta", "x")
	require.NoError(t, err)

	require.NoError(t, s.ClearAllOfflineData(ctx))

	books, err := s.GetAllBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
	trs, err := s.GetBookTranslations(ctx, "B1")
	require.NoError(t, err)
	assert.Empty(t, trs)
}

func TestStore_GetStorageInfo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	unknown := newTestStore(t, WithQuotaEstimator(func(string) (int64, bool) { return 0, false }))
	info, err := unknown.GetStorageInfo(ctx)
	require.NoError(t, err)
	assert.Nil(t, info)

	fixed := newTestStore(t, WithQuota(1<<30))
	_, err = fixed.SaveBook(ctx, Book{ID: "B1"})
	require.NoError(t, err)
	info, err = fixed.GetStorageInfo(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, int64(1<<30), info.Quota)
	assert.Positive(t, info.Used)
	assert.InDelta(t, float64(info.Used)/float64(1<<30)*100, info.Percentage, 1e-9)

	estimated := newTestStore(t, WithQuotaEstimator(func(string) (int64, bool) { return 4096 * 1024, true }))
	info, err = estimated.GetStorageInfo(ctx)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, int64(4096*1024), info.Quota)
}
