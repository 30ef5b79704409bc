package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/content"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/translator"
)

// prefixTranslator returns "X"+text and fails for texts listed in fail.
// onCall, when set, runs before each translation.
type prefixTranslator struct {
	mu     sync.Mutex
	calls  []string
	fail   map[string]bool
	onCall func(text string)
}

func (p *prefixTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, text)
	if p.onCall != nil {
		p.onCall(text)
	}
	if p.fail[text] {
		return "", errors.New("service unavailable")
	}
	return "X" + text, nil
}

// memoryStore is an in-memory content store.
type memoryStore struct {
	mu      sync.Mutex
	name    string
	records []content.Record
	failIDs map[string]bool
	listErr error
	writes  int
}

func (m *memoryStore) Identity() string {
	if m.name == "" {
		return "memory"
	}
	return "memory:" + m.name
}

func (m *memoryStore) List(_ context.Context, _ string) ([]content.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]content.Record, len(m.records))
	for i, rec := range m.records {
		out[i] = cloneRecord(rec)
	}
	return out, nil
}

func (m *memoryStore) UpdateFields(_ context.Context, _ string, id string, patch content.Patch) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[id] {
		return nil, errors.New("disk full")
	}
	for _, rec := range m.records {
		if rec.ID != id {
			continue
		}
		conflicts := content.Apply(rec.Fields, patch)
		m.writes++
		return conflicts, nil
	}
	return nil, errors.New("not found")
}

// set writes a target directly, as an editor would.
func (m *memoryStore) set(id, field, lang, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ID == id {
			rec.Fields[field].(map[string]any)[lang] = text
		}
	}
}

func cloneRecord(rec content.Record) content.Record {
	fields := make(map[string]any, len(rec.Fields))
	for k, v := range rec.Fields {
		if m, ok := v.(map[string]any); ok {
			inner := make(map[string]any, len(m))
			for lang, text := range m {
				inner[lang] = text
			}
			v = inner
		}
		fields[k] = v
	}
	return content.Record{ID: rec.ID, Fields: fields}
}

func (m *memoryStore) text(id, field, lang string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.ID == id {
			texts, _ := rec.Text(field)
			return texts[lang]
		}
	}
	return ""
}

func titled(id string, title map[string]any) content.Record {
	return content.Record{ID: id, Fields: map[string]any{"title": title}}
}

// memoryLedger is an in-memory partial ledger keyed by scope.
type memoryLedger struct {
	mu      sync.Mutex
	entries map[string]map[PartialKey]string
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{entries: map[string]map[PartialKey]string{}}
}

func (l *memoryLedger) LoadPartials(_ context.Context, scope string) (map[PartialKey]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[PartialKey]string, len(l.entries[scope]))
	for k, v := range l.entries[scope] {
		out[k] = v
	}
	return out, nil
}

func (l *memoryLedger) MarkPartial(_ context.Context, scope string, key PartialKey, digest, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries[scope] == nil {
		l.entries[scope] = map[PartialKey]string{}
	}
	l.entries[scope][key] = digest
	return nil
}

func (l *memoryLedger) ClearPartial(_ context.Context, scope string, key PartialKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries[scope], key)
	return nil
}

func (l *memoryLedger) get(scope string, key PartialKey) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	digest, ok := l.entries[scope][key]
	return digest, ok
}

func testPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Kind:       "content",
		Source:     "en",
		Targets:    []string{"si", "ta"},
		ChunkSize:  translator.DefaultChunkSize,
		MaxRecords: 5,
	}
}

func TestPipeline_FillsBlankTargetsThroughCatalogue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogue.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"content":[{"id":7,"title":{"en":"Fish Survey","si":"","ta":" "},"year":2021}]}`), 0o644))
	store := content.NewFileStore(path)

	p := NewPipeline(store, &prefixTranslator{}, nil, testPipelineConfig())
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 0, report.Skipped)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Records, 1)
	assert.Equal(t, StateUpdated, report.Records[0].State)
	assert.Equal(t, []string{"title.si", "title.ta"}, report.Records[0].Fields)

	records, err := store.List(context.Background(), "content")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "7", records[0].ID)
	title, ok := records[0].Text("title")
	require.True(t, ok)
	assert.Equal(t, "XFish Survey", title["si"])
	assert.Equal(t, "XFish Survey", title["ta"])
	assert.Equal(t, "Fish Survey", title["en"])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id": 7`)
	assert.Contains(t, string(raw), `"year": 2021`)
}

func TestPipeline_NeverOverwritesPopulatedTarget(t *testing.T) {
	store := &memoryStore{records: []content.Record{
		titled("1", map[string]any{"en": "Coral Reefs", "si": "existing", "ta": ""}),
	}}
	stub := &prefixTranslator{}

	report, err := NewPipeline(store, stub, nil, testPipelineConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, "existing", store.text("1", "title", "si"))
	assert.Equal(t, "XCoral Reefs", store.text("1", "title", "ta"))
	assert.Equal(t, []string{"Coral Reefs"}, stub.calls)
}

func TestPipeline_SkipsCompleteAndSourcelessRecords(t *testing.T) {
	store := &memoryStore{records: []content.Record{
		titled("done", map[string]any{"en": "Tides", "si": "a", "ta": "b"}),
		titled("nosource", map[string]any{"en": "  ", "si": ""}),
		{ID: "plain", Fields: map[string]any{"title": "not multilingual"}},
	}}

	report, err := NewPipeline(store, &prefixTranslator{}, nil, testPipelineConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, store.writes)
	for _, rec := range report.Records {
		assert.Equal(t, StateSkippedNoChange, rec.State)
	}
}

func TestPipeline_StopsAtRecordCap(t *testing.T) {
	store := &memoryStore{records: []content.Record{
		titled("a", map[string]any{"en": "A", "si": "done", "ta": "done"}),
		titled("b", map[string]any{"en": "B"}),
		titled("c", map[string]any{"en": "C"}),
		titled("d", map[string]any{"en": "D"}),
	}}
	cfg := testPipelineConfig()
	cfg.MaxRecords = 2

	report, err := NewPipeline(store, &prefixTranslator{}, nil, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, "XB", store.text("b", "title", "si"))
	assert.Equal(t, "XC", store.text("c", "title", "ta"))
	assert.Empty(t, store.text("d", "title", "si"))
}

func TestPipeline_OnlyConfiguredFields(t *testing.T) {
	store := &memoryStore{records: []content.Record{{
		ID: "1",
		Fields: map[string]any{
			"title":   map[string]any{"en": "Lagoons"},
			"summary": map[string]any{"en": "Brackish water"},
		},
	}}}
	cfg := testPipelineConfig()
	cfg.Fields = []string{"summary"}

	_, err := NewPipeline(store, &prefixTranslator{}, nil, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "XBrackish water", store.text("1", "summary", "si"))
	assert.Empty(t, store.text("1", "title", "si"))
}

func TestPipeline_PartialTranslationIsRetriedNextRun(t *testing.T) {
	store := &memoryStore{records: []content.Record{
		titled("1", map[string]any{"en": "abcdFAILefgh", "si": "done", "ta": ""}),
	}}
	ledger := newMemoryLedger()
	stub := &prefixTranslator{fail: map[string]bool{"FAIL": true}}
	cfg := testPipelineConfig()
	cfg.ChunkSize = 4

	first, err := NewPipeline(store, stub, ledger, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Updated)
	assert.Equal(t, 1, first.Partial)
	assert.Equal(t, []string{"title.ta"}, first.Records[0].PartialFields)
	assert.Equal(t, "XabcdFAILXefgh", store.text("1", "title", "ta"))

	key := PartialKey{RecordID: "1", Field: "title", Language: "ta"}
	scope := LedgerScope("content", store)
	digest, ok := ledger.get(scope, key)
	require.True(t, ok)
	assert.Equal(t, Digest("XabcdFAILXefgh"), digest)

	stub.fail = nil
	second, err := NewPipeline(store, stub, ledger, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, 0, second.Partial)
	assert.Equal(t, "XabcdXFAILXefgh", store.text("1", "title", "ta"))
	assert.Equal(t, "done", store.text("1", "title", "si"))
	_, ok = ledger.get(scope, key)
	assert.False(t, ok)

	third, err := NewPipeline(store, stub, ledger, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, third.Updated)
	assert.Equal(t, 1, third.Skipped)
}

func TestPipeline_FailedWriteDoesNotStopRun(t *testing.T) {
	store := &memoryStore{
		records: []content.Record{
			titled("1", map[string]any{"en": "One"}),
			titled("2", map[string]any{"en": "Two"}),
			titled("3", map[string]any{"en": "Three"}),
		},
		failIDs: map[string]bool{"2": true},
	}

	report, err := NewPipeline(store, &prefixTranslator{}, nil, testPipelineConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, StateWriteFailed, report.Records[1].State)
	assert.Contains(t, report.Records[1].Error, "disk full")
	assert.Equal(t, "XThree", store.text("3", "title", "si"))
}

func TestPipeline_ListFailurePropagates(t *testing.T) {
	store := &memoryStore{listErr: errors.New("catalogue unreadable")}

	report, err := NewPipeline(store, &prefixTranslator{}, nil, testPipelineConfig()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list content records")
	require.NotNil(t, report)
	assert.Zero(t, report.Examined)
}

func TestPipeline_CancelledContextStopsBeforeNextRecord(t *testing.T) {
	store := &memoryStore{records: []content.Record{
		titled("1", map[string]any{"en": "One"}),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewPipeline(store, &prefixTranslator{}, nil, testPipelineConfig()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Examined)
	assert.Zero(t, store.writes)
}

func TestPipeline_PartialRetryKeepsEditedTarget(t *testing.T) {
	store := &memoryStore{records: []content.Record{
		titled("1", map[string]any{"en": "abcdFAILefgh", "si": "done", "ta": ""}),
	}}
	ledger := newMemoryLedger()
	stub := &prefixTranslator{fail: map[string]bool{"FAIL": true}}
	cfg := testPipelineConfig()
	cfg.ChunkSize = 4

	first, err := NewPipeline(store, stub, ledger, cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Partial)

	// An editor corrects the degraded translation before the next run.
	store.set("1", "title", "ta", "HUMAN")

	stub.fail = nil
	stub.calls = nil
	second, err := NewPipeline(store, stub, ledger, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "HUMAN", store.text("1", "title", "ta"))
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, stub.calls)

	_, ok := ledger.get(LedgerScope("content", store), PartialKey{RecordID: "1", Field: "title", Language: "ta"})
	assert.False(t, ok)
}

func TestPipeline_LedgerIsScopedToCatalogue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"content":[{"id":7,"title":{"en":"Fish","si":"Authored","ta":"Authored"}}]}`), 0o644))
	store := content.NewFileStore(path)

	// A degraded run on another catalogue left an entry for the same id.
	ledger := newMemoryLedger()
	key := PartialKey{RecordID: "7", Field: "title", Language: "si"}
	require.NoError(t, ledger.MarkPartial(context.Background(), LedgerScope("content", &memoryStore{}), key, Digest("Authored"), "r0"))

	report, err := NewPipeline(store, &prefixTranslator{}, ledger, testPipelineConfig()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Updated)

	records, err := store.List(context.Background(), "content")
	require.NoError(t, err)
	title, _ := records[0].Text("title")
	assert.Equal(t, "Authored", title["si"])
	assert.NotEqual(t, LedgerScope("content", store), LedgerScope("content", content.NewFileStore(path+".b")))
}

func TestPipeline_KeepsTargetWrittenDuringTranslation(t *testing.T) {
	store := &memoryStore{records: []content.Record{
		titled("1", map[string]any{"en": "Mangrove"}),
	}}
	stub := &prefixTranslator{}
	stub.onCall = func(string) {
		if len(stub.calls) == 1 {
			store.set("1", "title", "si", "typed by editor")
		}
	}

	report, err := NewPipeline(store, stub, nil, testPipelineConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "typed by editor", store.text("1", "title", "si"))
	assert.Equal(t, "XMangrove", store.text("1", "title", "ta"))
	require.Len(t, report.Records, 1)
	assert.Equal(t, StateUpdated, report.Records[0].State)
	assert.Equal(t, []string{"title.ta"}, report.Records[0].Fields)
	assert.Equal(t, []string{"title.si"}, report.Records[0].Conflicts)
}

func TestPipeline_CancelledDuringTranslationWritesNothing(t *testing.T) {
	store := &memoryStore{records: []content.Record{
		titled("1", map[string]any{"en": "Estuary"}),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stub := &prefixTranslator{onCall: func(string) { cancel() }}

	report, err := NewPipeline(store, stub, nil, testPipelineConfig()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.writes)
	require.Len(t, report.Records, 1)
	assert.Equal(t, StateInProgress, report.Records[0].State)
	assert.Empty(t, store.text("1", "title", "si"))
}
