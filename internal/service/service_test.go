package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/config"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/content"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/jobs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/translator"
)

type memoryReports struct {
	mu      sync.Mutex
	reports map[string]*Report
}

func (m *memoryReports) SaveReport(_ context.Context, jobID string, report *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reports == nil {
		m.reports = map[string]*Report{}
	}
	m.reports[jobID] = report
	return nil
}

func (m *memoryReports) get(jobID string) (*Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[jobID]
	return r, ok
}

func testConfig() config.Config {
	return config.Config{
		Content: config.ContentConfig{Kind: "content"},
		Translate: config.TranslateConfig{
			Provider:        config.ProviderGoogle,
			SourceLanguage:  language.English,
			TargetLanguages: []language.Tag{language.Sinhala, language.Tamil},
			ChunkSize:       translator.DefaultChunkSize,
			MaxRecords:      5,
			CronExpr:        "0 * * * *",
		},
	}
}

func newTestService(t *testing.T, store content.Store, opts ...ServiceOption) (*SyncService, *jobs.Queue, *cron.Cron) {
	t.Helper()
	q := jobs.NewQueue(1, nil)
	engine := cron.New()
	stack := &translator.Stack{Translator: &prefixTranslator{}}
	return NewSyncService(testConfig(), store, stack, q, engine, opts...), q, engine
}

func TestSyncService_ManualAndCronShareDedupeKey(t *testing.T) {
	svc, q, _ := newTestService(t, &memoryStore{})

	fromCron, created := svc.Enqueue(jobs.SourceCron, "")
	require.True(t, created)
	assert.Equal(t, DedupeKey("content"), fromCron.DedupeKey)
	assert.Equal(t, "content", fromCron.Payload.Kind)

	fromManual, created := svc.Enqueue(jobs.SourceManual, "")
	require.False(t, created)
	assert.Equal(t, fromCron.ID, fromManual.ID)
	assert.Len(t, q.List(), 1)

	other, created := svc.Enqueue(jobs.SourceManual, "/srv/other.json")
	require.True(t, created)
	assert.NotEqual(t, fromCron.ID, other.ID)
}

func TestSyncService_ExecuteSavesReportAndSummary(t *testing.T) {
	store := &memoryStore{records: []content.Record{
		titled("1", map[string]any{"en": "Estuary"}),
		titled("2", map[string]any{"en": "Mangrove", "si": "a", "ta": "b"}),
	}}
	reports := &memoryReports{}
	svc, q, _ := newTestService(t, store, WithReportStore(reports))

	q.Start(svc.Execute)
	defer q.Stop()

	job, created := svc.Enqueue(jobs.SourceManual, "")
	require.True(t, created)

	require.Eventually(t, func() bool {
		got, ok := q.Get(job.ID)
		return ok && got.Status == jobs.StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	got, _ := q.Get(job.ID)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 2, got.Summary.Examined)
	assert.Equal(t, 1, got.Summary.Updated)
	assert.Equal(t, 1, got.Summary.Skipped)

	report, ok := reports.get(job.ID)
	require.True(t, ok)
	assert.Equal(t, got.Summary.RunID, report.RunID)
	assert.Equal(t, "XEstuary", store.text("1", "title", "si"))
}

func TestSyncService_ExecuteFailsWhenStoreFails(t *testing.T) {
	store := &memoryStore{listErr: assert.AnError}
	svc, q, _ := newTestService(t, store)

	q.Start(svc.Execute)
	defer q.Stop()

	job, _ := svc.Enqueue(jobs.SourceManual, "")
	require.Eventually(t, func() bool {
		got, ok := q.Get(job.ID)
		return ok && got.Status == jobs.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	got, _ := q.Get(job.ID)
	assert.Contains(t, got.Error, "list content records")
}

func TestSyncService_ApplyRuntimeSettings_ReschedulesCron(t *testing.T) {
	svc, _, engine := newTestService(t, &memoryStore{})

	require.NoError(t, svc.Schedule())
	require.Len(t, engine.Entries(), 1)

	err := svc.ApplyRuntimeSettings(config.RuntimeSettings{
		Provider:        config.ProviderGoogle,
		CronExpr:        "*/10 * * * *",
		TargetLanguages: []string{"si"},
		MaxRecords:      2,
		DelayMillis:     250,
	})
	require.NoError(t, err)

	require.Len(t, engine.Entries(), 1)
	cfg := svc.currentConfig()
	assert.Equal(t, 2, cfg.Translate.MaxRecords)
	assert.Equal(t, 250*time.Millisecond, cfg.Translate.Delay)
	assert.Equal(t, []language.Tag{language.Sinhala}, cfg.Translate.TargetLanguages)

	info, err := svc.NextRuns(time.Date(2024, 5, 1, 10, 27, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "*/10 * * * *", info.Expression)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), info.Next)
}

func TestSyncService_ApplyRuntimeSettings_RejectsInvalid(t *testing.T) {
	svc, _, _ := newTestService(t, &memoryStore{})

	err := svc.ApplyRuntimeSettings(config.RuntimeSettings{
		Provider:        config.ProviderGoogle,
		CronExpr:        "every hour",
		TargetLanguages: []string{"si"},
		MaxRecords:      1,
	})
	require.Error(t, err)
	assert.Equal(t, 5, svc.currentConfig().Translate.MaxRecords)
}

func TestSyncService_ApplyRuntimeSettings_ProviderChangeRebuildsStack(t *testing.T) {
	var built []string
	factory := func(cfg *config.Config) (*translator.Stack, error) {
		built = append(built, cfg.Translate.Provider)
		return &translator.Stack{
			Translator: translator.Func(func(_ context.Context, text, _, _ string) (string, error) {
				return "L" + text, nil
			}),
		}, nil
	}
	store := &memoryStore{records: []content.Record{titled("1", map[string]any{"en": "Reef"})}}
	svc, _, _ := newTestService(t, store, WithStackFactory(factory))

	require.NoError(t, svc.ApplyRuntimeSettings(config.RuntimeSettings{
		Provider:        config.ProviderLibre,
		CronExpr:        "0 * * * *",
		TargetLanguages: []string{"si"},
		MaxRecords:      5,
	}))
	assert.Equal(t, []string{config.ProviderLibre}, built)

	report, err := svc.RunOnce(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, "LReef", store.text("1", "title", "si"))
	assert.Empty(t, store.text("1", "title", "ta"))
}

func TestSyncService_ProviderChangeWithoutFactoryFails(t *testing.T) {
	svc, _, _ := newTestService(t, &memoryStore{})

	err := svc.ApplyRuntimeSettings(config.RuntimeSettings{
		Provider:        config.ProviderOpenAI,
		CronExpr:        "0 * * * *",
		TargetLanguages: []string{"si"},
		MaxRecords:      5,
	})
	require.Error(t, err)
	assert.Equal(t, config.ProviderGoogle, svc.currentConfig().Translate.Provider)
}

func TestSyncService_FailedRescheduleKeepsPreviousSettings(t *testing.T) {
	cfg := testConfig()
	cfg.Translate.CronExpr = "@hourly"
	cfg.Translate.Delay = 100 * time.Millisecond
	// a seconds-field engine rejects the five-field form at AddFunc time
	engine := cron.New(cron.WithSeconds())
	paced := translator.NewPaced(&prefixTranslator{}, cfg.Translate.Delay)
	stack := &translator.Stack{Translator: paced, Paced: paced}
	svc := NewSyncService(cfg, &memoryStore{}, stack, jobs.NewQueue(1, nil), engine)
	require.NoError(t, svc.Schedule())

	err := svc.ApplyRuntimeSettings(config.RuntimeSettings{
		Provider:        config.ProviderGoogle,
		CronExpr:        "*/10 * * * *",
		TargetLanguages: []string{"si"},
		MaxRecords:      2,
		DelayMillis:     900,
	})
	require.Error(t, err)

	assert.Equal(t, 100*time.Millisecond, paced.Delay())
	current := svc.currentConfig()
	assert.Equal(t, 5, current.Translate.MaxRecords)
	assert.Equal(t, 100*time.Millisecond, current.Translate.Delay)
	assert.Len(t, current.Translate.TargetLanguages, 2)
	require.Len(t, engine.Entries(), 1)

	info, err := svc.NextRuns(time.Date(2024, 5, 1, 10, 27, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "@hourly", info.Expression)
}

func TestSyncService_RunsOnDifferentCataloguesAreNotShared(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.json")
	second := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(first, []byte(`{"content":[{"id":1,"title":{"en":"Reef"}}]}`), 0o644))
	require.NoError(t, os.WriteFile(second, []byte(`{"content":[{"id":2,"title":{"en":"Lagoon"}}]}`), 0o644))

	gate := make(chan struct{})
	started := make(chan string, 2)
	svc, _, _ := newTestService(t, &memoryStore{})
	svc.stack = &translator.Stack{Translator: translator.Func(func(_ context.Context, text, _, _ string) (string, error) {
		started <- text
		<-gate
		return "X" + text, nil
	})}

	var wg sync.WaitGroup
	reports := make([]*Report, 2)
	for i, path := range []string{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := svc.RunOnce(context.Background(), path)
			assert.NoError(t, err)
			reports[i] = report
		}()
	}

	// both runs reach the translator before either finishes
	seen := map[string]bool{}
	for range 2 {
		select {
		case text := <-started:
			seen[text] = true
		case <-time.After(2 * time.Second):
			t.Fatal("second catalogue run was folded into the first")
		}
	}
	close(gate)
	wg.Wait()

	assert.Equal(t, map[string]bool{"Reef": true, "Lagoon": true}, seen)
	require.NotNil(t, reports[0])
	require.NotNil(t, reports[1])
	assert.NotEqual(t, reports[0].RunID, reports[1].RunID)
}
