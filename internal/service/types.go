package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/content"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/jobs"
)

// RecordState tracks one record through a sync run. A record reported as
// needs_translation or in_progress belongs to a run that was cancelled before
// or while it was translated; nothing was written for it.
type RecordState string

const (
	StateNeedsTranslation RecordState = "needs_translation"
	StateInProgress       RecordState = "in_progress"
	StateUpdated          RecordState = "updated"
	StateSkippedNoChange  RecordState = "skipped_no_change"
	// StateWriteFailed is set when translation finished but the store
	// rejected the merge-update. The record is retried on the next run.
	StateWriteFailed RecordState = "write_failed"
)

// PartialKey names one field/language pair of a record whose translation
// fell back to original text for at least one chunk.
type PartialKey struct {
	RecordID string `json:"record_id"`
	Field    string `json:"field"`
	Language string `json:"language"`
}

// PartialLedger remembers degraded translations so the next run redoes them.
// Entries belong to one scope (see LedgerScope) and carry the Digest of the
// text that was written, so a target edited since then is left alone.
type PartialLedger interface {
	LoadPartials(ctx context.Context, scope string) (map[PartialKey]string, error)
	MarkPartial(ctx context.Context, scope string, key PartialKey, digest, runID string) error
	ClearPartial(ctx context.Context, scope string, key PartialKey) error
}

// LedgerScope identifies the records of kind in one catalogue.
func LedgerScope(kind string, store content.Store) string {
	return kind + "@" + store.Identity()
}

// Digest fingerprints a written translation.
func Digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ReportStore keeps finished run reports.
type ReportStore interface {
	SaveReport(ctx context.Context, jobID string, report *Report) error
}

// RecordOutcome is what a run did to one examined record.
type RecordOutcome struct {
	ID    string      `json:"id"`
	State RecordState `json:"state"`
	// Fields lists the "field.lang" pairs written.
	Fields        []string `json:"fields,omitempty"`
	PartialFields []string `json:"partial_fields,omitempty"`
	// Conflicts lists pairs not written because the target changed after
	// the record was read.
	Conflicts []string `json:"conflicts,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Report summarises one pipeline run.
type Report struct {
	RunID      string          `json:"run_id"`
	Kind       string          `json:"kind"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Examined   int             `json:"examined"`
	Updated    int             `json:"updated"`
	Skipped    int             `json:"skipped"`
	Partial    int             `json:"partial"`
	Failed     int             `json:"failed"`
	Records    []RecordOutcome `json:"records"`
}

// Summary condenses the report for the job list.
func (r *Report) Summary() *jobs.Summary {
	if r == nil {
		return nil
	}
	return &jobs.Summary{
		RunID:    r.RunID,
		Examined: r.Examined,
		Updated:  r.Updated,
		Skipped:  r.Skipped,
		Partial:  r.Partial,
	}
}
