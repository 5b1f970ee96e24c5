package corpus

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

// Corpus is an ordered, identifier-unique sequence of moments.
// It is read-only after construction.
type Corpus struct {
	records []Moment
	byID    map[string]int
}

// New builds a corpus from records, rejecting empty or duplicate identifiers.
func New(records []Moment) (*Corpus, error) {
	byID := make(map[string]int, len(records))
	for i, r := range records {
		if strings.TrimSpace(r.ID) == "" {
			return nil, smerrors.CorpusFormatError(fmt.Sprintf("row %d has an empty id", i+1), nil)
		}
		if first, dup := byID[r.ID]; dup {
			return nil, smerrors.DuplicateIDError(r.ID, first+1, i+1)
		}
		byID[r.ID] = i
	}

	owned := make([]Moment, len(records))
	copy(owned, records)
	return &Corpus{records: owned, byID: byID}, nil
}

// Len returns the number of records.
func (c *Corpus) Len() int {
	return len(c.records)
}

// At returns the record at position i.
func (c *Corpus) At(i int) Moment {
	return c.records[i]
}

// Get returns the record with the given identifier.
func (c *Corpus) Get(id string) (Moment, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Moment{}, false
	}
	return c.records[i], true
}

// Position returns the corpus position of id.
func (c *Corpus) Position(id string) (int, bool) {
	i, ok := c.byID[id]
	return i, ok
}

// IDs returns all identifiers in corpus order.
func (c *Corpus) IDs() []string {
	ids := make([]string, len(c.records))
	for i, r := range c.records {
		ids[i] = r.ID
	}
	return ids
}

// Texts returns all searchable texts in corpus order.
func (c *Corpus) Texts() []string {
	texts := make([]string, len(c.records))
	for i, r := range c.records {
		texts[i] = r.Text
	}
	return texts
}

// Records returns a copy of the records in corpus order.
func (c *Corpus) Records() []Moment {
	out := make([]Moment, len(c.records))
	copy(out, c.records)
	return out
}

// Reorder returns a corpus holding the records named by ids, in that order.
// Unknown identifiers are skipped.
func (c *Corpus) Reorder(ids []string) *Corpus {
	records := make([]Moment, 0, len(ids))
	for _, id := range ids {
		if m, ok := c.Get(id); ok {
			records = append(records, m)
		}
	}
	out, _ := New(records)
	return out
}

// Load reads a corpus, choosing the reader from the file extension.
// SQLite files are read from the "moments" table.
func Load(ctx context.Context, path string) (*Corpus, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return LoadSQLite(ctx, path, DefaultTable)
	default:
		return LoadCSV(path)
	}
}
