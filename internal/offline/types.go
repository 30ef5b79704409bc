package offline

import (
	"encoding/json"
	"maps"
	"time"
)

// Book is a catalogue item downloaded for offline reading. Catalogue
// attributes other than the ones below travel as top-level JSON keys and
// are held in Fields.
type Book struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Author       string         `json:"author,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
	DownloadedAt time.Time      `json:"downloadedAt"`
	Offline      bool           `json:"offline"`
}

// bookJSON carries the named attributes of a Book.
type bookJSON struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Author       string         `json:"author,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
	DownloadedAt time.Time      `json:"downloadedAt"`
	Offline      bool           `json:"offline"`
}

var bookKeys = map[string]bool{
	"id": true, "title": true, "author": true, "fields": true, "downloadedAt": true, "offline": true,
}

// MarshalJSON writes Fields next to the named attributes. A field whose
// name collides with one of them stays under "fields".
func (b Book) MarshalJSON() ([]byte, error) {
	named := bookJSON(b)
	named.Fields = nil
	out := make(map[string]any, len(b.Fields)+len(bookKeys))
	for k, v := range b.Fields {
		if bookKeys[k] {
			if named.Fields == nil {
				named.Fields = map[string]any{}
			}
			named.Fields[k] = v
			continue
		}
		out[k] = v
	}

	raw, err := json.Marshal(named)
	if err != nil {
		return nil, err
	}
	var head map[string]json.RawMessage
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	for k, v := range head {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON folds unknown top-level keys and the "fields" object into
// Fields.
func (b *Book) UnmarshalJSON(data []byte) error {
	var named bookJSON
	if err := json.Unmarshal(data, &named); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	fields := maps.Clone(named.Fields)
	for k, v := range all {
		if bookKeys[k] {
			continue
		}
		if fields == nil {
			fields = map[string]any{}
		}
		fields[k] = v
	}
	named.Fields = fields
	*b = Book(named)
	return nil
}

// Translation is the text of a book in one language.
type Translation struct {
	BookID   string    `json:"bookId"`
	Language string    `json:"language"`
	Content  string    `json:"content"`
	SavedAt  time.Time `json:"savedAt"`
}

// StorageInfo reports bytes used by the cache against the available quota.
type StorageInfo struct {
	Used       int64   `json:"used"`
	Quota      int64   `json:"quota"`
	Percentage float64 `json:"percentage"`
}

const ExportVersion = 1

// LibraryExport is the portable form of the whole cache.
type LibraryExport struct {
	Version      int           `json:"version"`
	ExportedAt   time.Time     `json:"exportedAt"`
	Books        []Book        `json:"books"`
	Translations []Translation `json:"translations"`
}

type ImportResult struct {
	Books        int `json:"books"`
	Translations int `json:"translations"`
}
