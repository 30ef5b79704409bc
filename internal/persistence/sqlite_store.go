// Package persistence keeps sync state in SQLite: the job queue, finished
// run reports and the ledger of partially translated fields.
package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/jobs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/service"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/sqlitedb"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

var (
	_ jobs.Store            = (*SQLiteStore)(nil)
	_ service.PartialLedger = (*SQLiteStore)(nil)
	_ service.ReportStore   = (*SQLiteStore)(nil)
)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	ctx := context.Background()
	db, err := sqlitedb.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := sqlitedb.Migrate(ctx, db, migrationFiles, "migrations"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.SyncJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, kind, catalog_path, status, error, summary_json, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.SyncJob, 0)
	for rows.Next() {
		var item jobs.SyncJob
		var status, summaryJSON string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&item.Payload.Kind,
			&item.Payload.CatalogPath,
			&status,
			&item.Error,
			&summaryJSON,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Status = jobs.Status(status)
		if summaryJSON != "" {
			var summary jobs.Summary
			if err := json.Unmarshal([]byte(summaryJSON), &summary); err != nil {
				return nil, fmt.Errorf("decode summary of job %s: %w", item.ID, err)
			}
			item.Summary = &summary
		}
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.SyncJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	summaryJSON := ""
	if job.Summary != nil {
		raw, err := json.Marshal(job.Summary)
		if err != nil {
			return err
		}
		summaryJSON = string(raw)
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, kind, catalog_path, status, error, summary_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			kind=excluded.kind,
			catalog_path=excluded.catalog_path,
			status=excluded.status,
			error=excluded.error,
			summary_json=excluded.summary_json,
			updated_at=excluded.updated_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		job.Payload.Kind,
		job.Payload.CatalogPath,
		string(job.Status),
		job.Error,
		summaryJSON,
		job.CreatedAt.UTC(),
		job.UpdatedAt.UTC(),
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

// DeleteJobData removes the run reports written by a job.
func (s *SQLiteStore) DeleteJobData(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM run_reports WHERE job_id = ?`, jobID)
	return err
}

func (s *SQLiteStore) SaveReport(ctx context.Context, jobID string, report *service.Report) error {
	if report == nil || report.RunID == "" {
		return fmt.Errorf("report with run id is required")
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO run_reports (run_id, job_id, kind, report_json, finished_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			job_id=excluded.job_id,
			kind=excluded.kind,
			report_json=excluded.report_json,
			finished_at=excluded.finished_at`,
		report.RunID,
		jobID,
		report.Kind,
		string(raw),
		finished.UTC(),
	)
	return err
}

// ReportForJob returns the latest report of a job, or false if none exists.
func (s *SQLiteStore) ReportForJob(ctx context.Context, jobID string) (*service.Report, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT report_json FROM run_reports
		 WHERE job_id = ?
		 ORDER BY finished_at DESC
		 LIMIT 1`,
		jobID,
	)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var report service.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

// RecentReports returns up to limit reports, newest first.
func (s *SQLiteStore) RecentReports(ctx context.Context, limit int) ([]*service.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT report_json FROM run_reports ORDER BY finished_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*service.Report, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var report service.Report
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			return nil, err
		}
		ret = append(ret, &report)
	}
	return ret, rows.Err()
}

// LoadPartials returns the digests of degraded translations recorded for scope.
func (s *SQLiteStore) LoadPartials(ctx context.Context, scope string) (map[service.PartialKey]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT record_id, field, language, digest FROM partial_ledger WHERE scope = ?`,
		scope,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make(map[service.PartialKey]string)
	for rows.Next() {
		var (
			key    service.PartialKey
			digest string
		)
		if err := rows.Scan(&key.RecordID, &key.Field, &key.Language, &digest); err != nil {
			return nil, err
		}
		ret[key] = digest
	}
	return ret, rows.Err()
}

func (s *SQLiteStore) MarkPartial(ctx context.Context, scope string, key service.PartialKey, digest, runID string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO partial_ledger (scope, record_id, field, language, digest, run_id, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(scope, record_id, field, language) DO UPDATE SET
			digest=excluded.digest,
			run_id=excluded.run_id,
			recorded_at=excluded.recorded_at`,
		scope,
		key.RecordID,
		key.Field,
		key.Language,
		digest,
		runID,
		time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) ClearPartial(ctx context.Context, scope string, key service.PartialKey) error {
	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM partial_ledger WHERE scope = ? AND record_id = ? AND field = ? AND language = ?`,
		scope,
		key.RecordID,
		key.Field,
		key.Language,
	)
	return err
}
