package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS content_records (
	kind TEXT NOT NULL,
	id TEXT NOT NULL,
	position BIGSERIAL,
	fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS idx_content_records_kind_position ON content_records (kind, position);
`

// PGStore keeps records in Postgres, one row per record with its fields as JSONB.
type PGStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPGStore(db *pgxpool.Pool, timeout time.Duration) *PGStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PGStore{db: db, timeout: timeout}
}

// OpenPGStore connects to dsn and ensures the schema exists.
func OpenPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStoreUnavailable, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrap(err, errs.ErrStoreUnavailable, "ping postgres")
	}
	s := NewPGStore(pool, 0)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) Close() {
	s.db.Close()
}

func (s *PGStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	timeoutCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.db.Exec(timeoutCtx, pgSchema); err != nil {
		return errs.Wrap(err, errs.ErrStore, "create content_records")
	}
	return nil
}

// Put inserts or replaces a whole record, keeping its original position.
func (s *PGStore) Put(ctx context.Context, kind string, rec Record) error {
	if rec.ID == "" {
		return errs.New(errs.ErrMalformedInput, "put: record id is required")
	}
	fields := rec.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return errs.Wrap(err, errs.ErrMalformedInput, "encode record fields")
	}
	const query = `
	INSERT INTO content_records (kind, id, fields)
	VALUES ($1, $2, $3)
	ON CONFLICT (kind, id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()
	`
	timeoutCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.db.Exec(timeoutCtx, query, kind, rec.ID, payload); err != nil {
		return errs.Wrap(err, errs.ErrStore, "put record").WithContext("id", rec.ID)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context, kind string) ([]Record, error) {
	const query = `SELECT id, fields FROM content_records WHERE kind = $1 ORDER BY position ASC`
	timeoutCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(timeoutCtx, query, kind)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStore, "list records").WithContext("kind", kind)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var (
			rec Record
			raw []byte
		)
		if err := rows.Scan(&rec.ID, &raw); err != nil {
			return nil, errs.Wrap(err, errs.ErrStore, "scan record")
		}
		if rec.Fields, err = decodeFields(raw); err != nil {
			return nil, errs.Wrap(err, errs.ErrStore, "decode record").WithContext("id", rec.ID)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, errs.ErrStore, "list records").WithContext("kind", kind)
	}
	return out, nil
}

// UpdateFields locks the row, merges patch into its fields and writes it back
// in one transaction.
func (s *PGStore) UpdateFields(ctx context.Context, kind, id string, patch Patch) (conflicts []string, err error) {
	if id == "" {
		return nil, errs.New(errs.ErrMalformedInput, "updateFields: record id is required")
	}
	if patch.size() == 0 {
		return nil, nil
	}
	timeoutCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.Begin(timeoutCtx)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStore, "begin update")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(timeoutCtx)
		}
	}()

	var raw []byte
	err = tx.QueryRow(timeoutCtx,
		`SELECT fields FROM content_records WHERE kind = $1 AND id = $2 FOR UPDATE`, kind, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Newf(errs.ErrStore, "updateFields: %s record %q not found", kind, id)
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStore, "load record").WithContext("id", id)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStore, "decode record").WithContext("id", id)
	}
	conflicts = Apply(fields, patch)
	if len(conflicts) < patch.size() {
		var payload []byte
		if payload, err = json.Marshal(fields); err != nil {
			return nil, errs.Wrap(err, errs.ErrStore, "encode record").WithContext("id", id)
		}
		if _, err = tx.Exec(timeoutCtx,
			`UPDATE content_records SET fields = $3, updated_at = now() WHERE kind = $1 AND id = $2`,
			kind, id, payload); err != nil {
			return nil, errs.Wrap(err, errs.ErrStore, "update record").WithContext("id", id)
		}
	}
	if err = tx.Commit(timeoutCtx); err != nil {
		return nil, errs.Wrap(err, errs.ErrStore, "commit update").WithContext("id", id)
	}
	return conflicts, nil
}

// Identity names the database without credentials.
func (s *PGStore) Identity() string {
	cc := s.db.Config().ConnConfig
	return fmt.Sprintf("postgres:%s:%d/%s", cc.Host, cc.Port, cc.Database)
}

func decodeFields(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}
