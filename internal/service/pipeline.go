package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/config"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/content"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/translator"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
)

// PipelineConfig is the per-run view of the translation settings.
type PipelineConfig struct {
	Kind       string
	Source     string
	Targets    []string
	Fields     []string
	ChunkSize  int
	MaxRecords int
	// Scope keys the partial ledger. Empty means LedgerScope(Kind, store).
	Scope string
}

func PipelineConfigFrom(cfg *config.Config) PipelineConfig {
	return PipelineConfig{
		Kind:       cfg.Content.Kind,
		Source:     cfg.Translate.SourceLanguage.String(),
		Targets:    config.LanguageCodes(cfg.Translate.TargetLanguages),
		Fields:     slices.Clone(cfg.Translate.Fields),
		ChunkSize:  cfg.Translate.ChunkSize,
		MaxRecords: cfg.Translate.MaxRecords,
	}
}

// Pipeline fills blank target-language fields of content records.
type Pipeline struct {
	store      content.Store
	translator translator.Translator
	ledger     PartialLedger
	cfg        PipelineConfig
	now        func() time.Time
}

// NewPipeline builds a pipeline. ledger may be nil, in which case degraded
// translations are only counted and logged.
func NewPipeline(store content.Store, t translator.Translator, ledger PartialLedger, cfg PipelineConfig) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = translator.DefaultChunkSize
	}
	if cfg.Scope == "" {
		cfg.Scope = LedgerScope(cfg.Kind, store)
	}
	return &Pipeline{
		store:      store,
		translator: t,
		ledger:     ledger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// pair is one field/language the run has to (re)translate.
type pair struct {
	field  string
	lang   string
	source string
	// replaces is the degraded text a retry may overwrite.
	replaces string
	retry    bool
}

func (w pair) key(id string) PartialKey {
	return PartialKey{RecordID: id, Field: w.field, Language: w.lang}
}

// Run examines records in store order until MaxRecords of them needed work.
// Store and ledger failures abort the run; translation failures do not.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Kind:      p.cfg.Kind,
		StartedAt: p.now(),
		Records:   make([]RecordOutcome, 0),
	}

	records, err := p.store.List(ctx, p.cfg.Kind)
	if err != nil {
		return report, fmt.Errorf("list content records: %w", err)
	}

	partials := map[PartialKey]string{}
	if p.ledger != nil {
		if partials, err = p.ledger.LoadPartials(ctx, p.cfg.Scope); err != nil {
			return report, errs.Wrap(err, errs.ErrStore, "load partial ledger")
		}
	}

	log.Info("Sync run %s: %d %s records, targets %v, cap %d",
		report.RunID, len(records), p.cfg.Kind, p.cfg.Targets, p.cfg.MaxRecords)

	selected := 0
	for _, rec := range records {
		if p.cfg.MaxRecords > 0 && selected >= p.cfg.MaxRecords {
			break
		}
		if err := ctx.Err(); err != nil {
			p.finish(report)
			return report, err
		}
		report.Examined++

		work, edited := p.pending(rec, partials)
		for _, key := range edited {
			log.Info("Record %s %s.%s was edited after a degraded run, dropping its retry", key.RecordID, key.Field, key.Language)
			if err := p.clearPartial(ctx, key); err != nil {
				p.finish(report)
				return report, err
			}
		}
		if len(work) == 0 {
			report.Skipped++
			report.Records = append(report.Records, RecordOutcome{ID: rec.ID, State: StateSkippedNoChange})
			continue
		}
		selected++

		outcome, err := p.process(ctx, rec, work, report.RunID, selected)
		report.Records = append(report.Records, outcome)
		if err != nil {
			p.finish(report)
			return report, err
		}
		switch outcome.State {
		case StateUpdated:
			report.Updated++
			if len(outcome.PartialFields) > 0 {
				report.Partial++
			}
		case StateSkippedNoChange:
			report.Skipped++
		case StateWriteFailed:
			report.Failed++
		}
	}

	p.finish(report)
	log.Info("Sync run %s finished: processed=%d updated=%d skipped=%d partial=%d failed=%d",
		report.RunID, report.Examined, report.Updated, report.Skipped, report.Partial, report.Failed)
	return report, nil
}

func (p *Pipeline) finish(report *Report) {
	report.FinishedAt = p.now()
}

// pending lists the pairs of rec whose source text is present and whose
// target is blank or still holds the degraded text of an earlier run. It
// also returns ledger entries whose target was changed by someone else.
func (p *Pipeline) pending(rec content.Record, partials map[PartialKey]string) (work []pair, edited []PartialKey) {
	fields := p.cfg.Fields
	if len(fields) == 0 {
		fields = rec.MultilingualFields(p.cfg.Source)
	}

	for _, field := range fields {
		texts, ok := rec.Text(field)
		if !ok {
			continue
		}
		src := texts[p.cfg.Source]
		if content.Blank(src) {
			continue
		}
		for _, lang := range p.cfg.Targets {
			if lang == p.cfg.Source {
				continue
			}
			w := pair{field: field, lang: lang, source: src}
			digest, marked := partials[w.key(rec.ID)]
			current := texts[lang]
			switch {
			case content.Blank(current):
				w.retry = marked
			case marked && digest == Digest(current):
				w.retry = true
				w.replaces = current
			case marked:
				edited = append(edited, w.key(rec.ID))
				continue
			default:
				continue
			}
			work = append(work, w)
		}
	}
	return work, edited
}

func (p *Pipeline) process(ctx context.Context, rec content.Record, work []pair, runID string, n int) (RecordOutcome, error) {
	outcome := RecordOutcome{ID: rec.ID, State: StateNeedsTranslation}
	if err := ctx.Err(); err != nil {
		return outcome, err
	}
	log.Info("[%d/%d] Translating record %s (%d fields)", n, p.cfg.MaxRecords, rec.ID, len(work))
	outcome.State = StateInProgress

	patch := content.Patch{}
	written := make(map[string]string, len(work))
	for _, w := range work {
		res := translator.TranslateChunked(ctx, p.translator, w.source, p.cfg.Source, w.lang, p.cfg.ChunkSize)
		if err := ctx.Err(); err != nil {
			// chunks after cancellation fell back to source text
			return outcome, err
		}
		if patch[w.field] == nil {
			patch[w.field] = map[string]content.Change{}
		}
		patch[w.field][w.lang] = content.Change{Text: res.Text, Replaces: w.replaces}
		name := w.field + "." + w.lang
		written[name] = res.Text
		if res.Partial() {
			outcome.PartialFields = append(outcome.PartialFields, name)
			log.Warn("Record %s %s: %d of %d chunks kept in %s", rec.ID, name, len(res.Failed), res.Chunks, p.cfg.Source)
		}
	}

	conflicts, err := p.store.UpdateFields(ctx, p.cfg.Kind, rec.ID, patch)
	if err != nil {
		log.Error("Failed to update record %s: %v", rec.ID, err)
		outcome.State = StateWriteFailed
		outcome.Error = err.Error()
		return outcome, nil
	}
	outcome.Conflicts = conflicts
	for _, w := range work {
		name := w.field + "." + w.lang
		if !slices.Contains(conflicts, name) {
			outcome.Fields = append(outcome.Fields, name)
		}
	}
	outcome.PartialFields = slices.DeleteFunc(outcome.PartialFields, func(name string) bool {
		return slices.Contains(conflicts, name)
	})
	if len(conflicts) > 0 {
		log.Info("Record %s changed while translating, kept %v", rec.ID, conflicts)
	}
	if len(outcome.Fields) == 0 {
		outcome.State = StateSkippedNoChange
	} else {
		outcome.State = StateUpdated
		log.Info("Updated record %s: %v", rec.ID, outcome.Fields)
	}

	for _, w := range work {
		name := w.field + "." + w.lang
		key := w.key(rec.ID)
		switch {
		case slices.Contains(conflicts, name):
			if w.retry {
				err = p.clearPartial(ctx, key)
			}
		case slices.Contains(outcome.PartialFields, name):
			err = p.markPartial(ctx, key, written[name], runID)
		case w.retry:
			err = p.clearPartial(ctx, key)
		}
		if err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

func (p *Pipeline) markPartial(ctx context.Context, key PartialKey, text, runID string) error {
	if p.ledger == nil {
		return nil
	}
	if err := p.ledger.MarkPartial(ctx, p.cfg.Scope, key, Digest(text), runID); err != nil {
		return errs.Wrap(err, errs.ErrStore, fmt.Sprintf("record partial %s.%s of %s", key.Field, key.Language, key.RecordID))
	}
	return nil
}

func (p *Pipeline) clearPartial(ctx context.Context, key PartialKey) error {
	if p.ledger == nil {
		return nil
	}
	if err := p.ledger.ClearPartial(ctx, p.cfg.Scope, key); err != nil {
		return errs.Wrap(err, errs.ErrStore, fmt.Sprintf("clear partial %s.%s of %s", key.Field, key.Language, key.RecordID))
	}
	return nil
}
