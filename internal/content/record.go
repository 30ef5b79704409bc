// Package content reads and merge-updates the multilingual records that the
// sync pipeline translates.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Change is one field/language write. It is applied only while the target is
// blank, or, when Replaces is set, while the target still holds exactly
// Replaces.
type Change struct {
	Text     string
	Replaces string
}

// Patch maps field -> language -> change. Applying a patch touches only the
// named language entries and leaves every other key of the record untouched.
type Patch map[string]map[string]Change

// Store is the document store holding content records.
type Store interface {
	// List returns the records of kind in store order.
	List(ctx context.Context, kind string) ([]Record, error)
	// UpdateFields merge-writes patch under the store's lock and returns the
	// "field.lang" names it left alone because the target held other text.
	UpdateFields(ctx context.Context, kind, id string, patch Patch) ([]string, error)
	// Identity names the backing catalogue, e.g. "file:/data/catalogue.json".
	Identity() string
}

// Record is one content document. Fields holds every key except the id,
// decoded with json.Number so unrelated values survive a rewrite unchanged.
type Record struct {
	ID     string
	Fields map[string]any
}

// Text returns the language map of a multilingual field.
func (r Record) Text(field string) (map[string]string, bool) {
	m, ok := r.Fields[field].(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(m))
	for lang, v := range m {
		if s, ok := v.(string); ok {
			out[lang] = s
		}
	}
	return out, true
}

// MultilingualFields lists, sorted, the fields shaped as language maps that
// hold text in source.
func (r Record) MultilingualFields(source string) []string {
	var fields []string
	for name := range r.Fields {
		if m, ok := r.Text(name); ok {
			if _, has := m[source]; has {
				fields = append(fields, name)
			}
		}
	}
	sort.Strings(fields)
	return fields
}

// Blank reports whether text is missing, empty or whitespace only.
func Blank(text string) bool {
	return strings.TrimSpace(text) == ""
}

func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		m[k] = v
	}
	m["id"] = r.ID
	return json.Marshal(m)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	id, err := recordID(m["id"])
	if err != nil {
		return err
	}
	delete(m, "id")
	r.ID = id
	r.Fields = m
	return nil
}

func recordID(v any) (string, error) {
	switch id := v.(type) {
	case nil:
		return "", nil
	case string:
		return id, nil
	case json.Number:
		return id.String(), nil
	default:
		return "", fmt.Errorf("unsupported id type %T", v)
	}
}

// Apply merges patch into fields in place and returns the sorted names of
// the changes it refused. Stores call it while holding their write lock.
func Apply(fields map[string]any, patch Patch) (conflicts []string) {
	for field, langs := range patch {
		raw, exists := fields[field]
		m, isMap := raw.(map[string]any)
		if exists && raw != nil && !isMap {
			for lang := range langs {
				conflicts = append(conflicts, field+"."+lang)
			}
			continue
		}
		for lang, change := range langs {
			if !writable(m[lang], change) {
				conflicts = append(conflicts, field+"."+lang)
				continue
			}
			if m == nil {
				m = make(map[string]any, len(langs))
				fields[field] = m
			}
			m[lang] = change.Text
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

func writable(current any, change Change) bool {
	switch cur := current.(type) {
	case nil:
		return true
	case string:
		return Blank(cur) || (change.Replaces != "" && cur == change.Replaces)
	default:
		return false
	}
}

// size counts the changes in p.
func (p Patch) size() int {
	n := 0
	for _, langs := range p {
		n += len(langs)
	}
	return n
}
