package sqlitedb

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("12_ledger.sql"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}

func TestMigrate_AppliesOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	defer db.Close()

	files := fstest.MapFS{
		"migrations/001_init.sql": {Data: []byte(`CREATE TABLE items (id TEXT PRIMARY KEY);`)},
		"migrations/002_more.sql": {Data: []byte(`ALTER TABLE items ADD COLUMN name TEXT;`)},
		"migrations/README.md":    {Data: []byte(`ignored`)},
	}

	require.NoError(t, Migrate(ctx, db, files, "migrations"))
	require.NoError(t, Migrate(ctx, db, files, "migrations"))

	var versions int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&versions))
	assert.Equal(t, 2, versions)

	_, err = db.ExecContext(ctx, `INSERT INTO items (id, name) VALUES ('a', 'b')`)
	require.NoError(t, err)
}
