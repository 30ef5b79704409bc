package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/config"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/content"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/jobs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/translator"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/icron"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
)

// StackFactory builds the translator stack for a configuration. It is
// called again when the provider changes at runtime.
type StackFactory func(cfg *config.Config) (*translator.Stack, error)

// SyncService schedules and executes sync runs. Cron and manual triggers
// go through the same job queue and dedupe key, so runs of one kind never
// overlap.
type SyncService struct {
	store   content.Store
	queue   *jobs.Queue
	cron    *cron.Cron
	ledger  PartialLedger
	reports ReportStore
	factory StackFactory

	mu       sync.RWMutex
	cfg      config.Config
	stack    *translator.Stack
	entryID  cron.EntryID
	cronExpr string

	group singleflight.Group
}

type ServiceOption func(*SyncService)

func WithLedger(ledger PartialLedger) ServiceOption {
	return func(s *SyncService) {
		s.ledger = ledger
	}
}

func WithReportStore(reports ReportStore) ServiceOption {
	return func(s *SyncService) {
		s.reports = reports
	}
}

func WithStackFactory(factory StackFactory) ServiceOption {
	return func(s *SyncService) {
		s.factory = factory
	}
}

func NewSyncService(
	cfg config.Config,
	store content.Store,
	stack *translator.Stack,
	queue *jobs.Queue,
	cronEngine *cron.Cron,
	opts ...ServiceOption,
) *SyncService {
	s := &SyncService{
		cfg:      cfg,
		store:    store,
		stack:    stack,
		queue:    queue,
		cron:     cronEngine,
		cronExpr: cfg.Translate.CronExpr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DedupeKey is shared by every trigger of a sync for kind.
func DedupeKey(kind string) string {
	return "sync|" + kind
}

// Schedule registers the cron trigger.
func (s *SyncService) Schedule() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(s.cronExpr)
}

func (s *SyncService) scheduleLocked(expr string) error {
	if s.cron == nil {
		return errs.New(errs.ErrConfig, "cron engine is not configured")
	}
	id, err := s.cron.AddFunc(expr, func() {
		job, created := s.Enqueue(jobs.SourceCron, "")
		if created {
			log.Info("Cron enqueued sync job %s", job.ID)
		} else {
			log.Info("Cron skipped: sync job %s is still %s", job.ID, job.Status)
		}
	})
	if err != nil {
		return errs.Wrap(err, errs.ErrConfig, fmt.Sprintf("schedule %q", expr))
	}
	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	s.entryID = id
	s.cronExpr = expr
	log.Info("Sync scheduled with %q", expr)
	return nil
}

// Enqueue adds a sync job for the configured kind. catalogPath optionally
// points the run at another catalogue file, which gets its own dedupe key.
func (s *SyncService) Enqueue(source, catalogPath string) (*jobs.SyncJob, bool) {
	kind := s.currentConfig().Content.Kind
	key := DedupeKey(kind)
	if catalogPath != "" {
		key += "|" + catalogPath
	}
	return s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    source,
		DedupeKey: key,
		Payload:   jobs.Payload{Kind: kind, CatalogPath: catalogPath},
	})
}

// Execute is the queue executor.
func (s *SyncService) Execute(ctx context.Context, job *jobs.SyncJob) (*jobs.Summary, error) {
	log.Info("Running sync job %s (%s)", job.ID, job.Source)
	report, err := s.run(ctx, job.Payload)
	if report != nil && s.reports != nil {
		if saveErr := s.reports.SaveReport(ctx, job.ID, report); saveErr != nil {
			log.Error("Failed to save report of job %s: %v", job.ID, saveErr)
		}
	}
	if err != nil {
		return report.Summary(), err
	}
	return report.Summary(), nil
}

// RunOnce runs the pipeline in the calling goroutine.
func (s *SyncService) RunOnce(ctx context.Context, catalogPath string) (*Report, error) {
	return s.run(ctx, jobs.Payload{Kind: s.currentConfig().Content.Kind, CatalogPath: catalogPath})
}

func (s *SyncService) run(ctx context.Context, payload jobs.Payload) (*Report, error) {
	cfg, stack := s.snapshot()
	if payload.Kind != "" {
		cfg.Content.Kind = payload.Kind
	}
	store := s.store
	if payload.CatalogPath != "" {
		store = content.NewFileStore(payload.CatalogPath)
	}

	// concurrent runs share a result only when they target the same catalogue
	v, err, _ := s.group.Do("sync|"+LedgerScope(cfg.Content.Kind, store), func() (any, error) {
		pipeline := NewPipeline(store, stack, s.ledger, PipelineConfigFrom(&cfg))
		return pipeline.Run(ctx)
	})
	report, _ := v.(*Report)
	return report, err
}

func (s *SyncService) snapshot() (config.Config, *translator.Stack) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg, s.stack
}

func (s *SyncService) currentConfig() config.Config {
	cfg, _ := s.snapshot()
	return cfg
}

// ApplyRuntimeSettings updates provider, languages, cap and delay for the
// next run and reschedules the cron trigger when the expression changed.
// On error nothing is changed.
func (s *SyncService) ApplyRuntimeSettings(next config.RuntimeSettings) error {
	if err := next.Validate(); err != nil {
		return errs.Wrap(err, errs.ErrValidation, "runtime settings")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := s.cfg
	config.WithRuntimeSettings(next)(&updated)
	updated.Translate.Delay = next.Delay()

	stack := s.stack
	if !strings.EqualFold(updated.Translate.Provider, s.cfg.Translate.Provider) || stack == nil {
		if s.factory == nil {
			return errs.New(errs.ErrConfig, "provider cannot be changed without a stack factory")
		}
		rebuilt, err := s.factory(&updated)
		if err != nil {
			return err
		}
		stack = rebuilt
	}

	if next.CronExpr != s.cronExpr {
		if s.cron != nil && s.entryID != 0 {
			if err := s.scheduleLocked(next.CronExpr); err != nil {
				return err
			}
		} else {
			s.cronExpr = next.CronExpr
		}
	}

	if stack.Paced != nil {
		stack.Paced.SetDelay(updated.Translate.Delay)
	}
	s.cfg = updated
	s.stack = stack
	log.Info("Applied runtime settings: provider=%s targets=%v max_records=%d delay=%s",
		updated.Translate.Provider, next.TargetLanguages, updated.Translate.MaxRecords, updated.Translate.Delay)
	return nil
}

// ScheduleInfo describes the cron trigger.
type ScheduleInfo struct {
	Expression string    `json:"expression"`
	Last       time.Time `json:"last,omitzero"`
	Next       time.Time `json:"next"`
}

// NextRuns reports the last and next trigger times relative to now.
func (s *SyncService) NextRuns(now time.Time) (ScheduleInfo, error) {
	s.mu.RLock()
	expr := s.cronExpr
	s.mu.RUnlock()

	info, err := icron.GetTriggerInfo(expr, now)
	if err != nil {
		return ScheduleInfo{}, errs.Wrap(err, errs.ErrConfig, "cron expression")
	}
	return ScheduleInfo{Expression: expr, Last: info.Last, Next: info.Next}, nil
}
