package content

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/file"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
)

// FileStore keeps records in one JSON catalogue shaped as
// {"<kind>": [{"id": ..., "<field>": {"en": ..., "si": ...}}, ...]}.
// Every access holds an in-process mutex and an advisory lock on
// "<path>.lock"; writes replace the file atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Identity() string {
	if abs, err := filepath.Abs(s.path); err == nil {
		return "file:" + abs
	}
	return "file:" + s.path
}

type catalogue map[string][]json.RawMessage

func (s *FileStore) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := file.Acquire(s.path)
	if err != nil {
		return errs.Wrap(err, errs.ErrStore, "lock catalogue").WithContext("path", s.path)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("Release catalogue lock %s: %v", s.path, err)
		}
	}()
	return fn()
}

func (s *FileStore) read() (catalogue, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrStore, "read catalogue").WithContext("path", s.path)
	}
	var cat catalogue
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, errs.Wrap(err, errs.ErrMalformedInput, "decode catalogue").WithContext("path", s.path)
	}
	return cat, nil
}

func (s *FileStore) List(ctx context.Context, kind string) ([]Record, error) {
	var out []Record
	err := s.withLock(func() error {
		cat, err := s.read()
		if err != nil {
			return err
		}
		out = make([]Record, 0, len(cat[kind]))
		for i, raw := range cat[kind] {
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				log.Warn("Skipping %s record %d in %s: %v", kind, i, s.path, err)
				continue
			}
			if rec.ID == "" {
				log.Warn("Skipping %s record %d in %s: missing id", kind, i, s.path)
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (s *FileStore) UpdateFields(ctx context.Context, kind, id string, patch Patch) ([]string, error) {
	if id == "" {
		return nil, errs.New(errs.ErrMalformedInput, "updateFields: record id is required")
	}
	if patch.size() == 0 {
		return nil, nil
	}
	var conflicts []string
	err := s.withLock(func() error {
		cat, err := s.read()
		if err != nil {
			return err
		}
		records := cat[kind]
		for i, raw := range records {
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil || rec.ID != id {
				continue
			}
			conflicts = Apply(rec.Fields, patch)
			if len(conflicts) == patch.size() {
				return nil
			}
			updated, err := rawWithID(raw, rec)
			if err != nil {
				return errs.Wrap(err, errs.ErrStore, "encode record").WithContext("id", id)
			}
			records[i] = updated
			return s.write(cat)
		}
		return errs.Newf(errs.ErrStore, "updateFields: %s record %q not found", kind, id)
	})
	return conflicts, err
}

// rawWithID re-encodes rec keeping the id exactly as it appeared in raw.
func rawWithID(raw json.RawMessage, rec Record) (json.RawMessage, error) {
	var original map[string]json.RawMessage
	if err := json.Unmarshal(raw, &original); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(rec.Fields)+1)
	for k, v := range rec.Fields {
		out[k] = v
	}
	out["id"] = original["id"]
	return json.Marshal(out)
}

func (s *FileStore) write(cat catalogue) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cat); err != nil {
		return errs.Wrap(err, errs.ErrStore, "encode catalogue")
	}
	if err := file.WriteAtomic(s.path, buf.Bytes(), 0o644); err != nil {
		return errs.Wrap(err, errs.ErrStore, "write catalogue").WithContext("path", s.path)
	}
	return nil
}
