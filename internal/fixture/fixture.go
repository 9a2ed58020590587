// Package fixture loads documents and their highlights from YAML so the
// commands can run without a live editor.
package fixture

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/phroun/marginalia"
)

// ErrUnknownDocument indicates a highlight that names a missing document.
var ErrUnknownDocument = errors.New("unknown document")

// ErrNoMatch indicates a find expression that matched nothing.
var ErrNoMatch = errors.New("find text not present in document")

// Fixture is the top level of a fixture file.
type Fixture struct {
	Documents  []Document  `yaml:"documents"`
	Highlights []Highlight `yaml:"highlights"`
}

// Document is one report's text.
type Document struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

// Highlight anchors a comment either by explicit offsets or by finding text.
type Highlight struct {
	Document   string `yaml:"document"`
	Find       string `yaml:"find,omitempty"`
	Occurrence int    `yaml:"occurrence,omitempty"`
	Start      *int   `yaml:"start,omitempty"`
	End        *int   `yaml:"end,omitempty"`
	User       string `yaml:"user,omitempty"`
	Comment    string `yaml:"comment,omitempty"`
}

// Load reads and parses a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes fixture YAML.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(f.Documents))
	for _, d := range f.Documents {
		if d.ID == "" {
			return nil, errors.New("document without id")
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate document %q", d.ID)
		}
		seen[d.ID] = true
	}
	return &f, nil
}

// Document returns the document with the given id.
func (f *Fixture) Document(id string) (Document, bool) {
	for _, d := range f.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

// Range works out the text range a fixture highlight refers to.
func (h Highlight) Range(text string) (marginalia.TextRange, error) {
	if h.Find != "" {
		m, ok, err := marginalia.FindOccurrence(text, h.Find, h.Occurrence, marginalia.SearchOptions{CaseSensitive: true})
		if err != nil {
			return marginalia.TextRange{}, err
		}
		if !ok {
			return marginalia.TextRange{}, fmt.Errorf("%w: %q #%d", ErrNoMatch, h.Find, h.Occurrence)
		}
		return m.Range, nil
	}
	if h.Start == nil || h.End == nil {
		return marginalia.TextRange{}, errors.New("highlight needs find or start and end")
	}
	// Offsets are not checked against the text: out-of-range highlights are
	// kept so the resolver can omit them.
	return marginalia.NewTextRange(*h.Start, *h.End)
}

// Apply adds every highlight to store and returns them in fixture order.
// Nothing is added if any highlight is invalid.
func (f *Fixture) Apply(store *marginalia.Store) ([]marginalia.Highlight, error) {
	type pending struct {
		doc     string
		rng     marginalia.TextRange
		comment *marginalia.Comment
	}
	items := make([]pending, 0, len(f.Highlights))
	for i, h := range f.Highlights {
		doc, ok := f.Document(h.Document)
		if !ok {
			return nil, fmt.Errorf("highlight %d: %w %q", i, ErrUnknownDocument, h.Document)
		}
		rng, err := h.Range(doc.Text)
		if err != nil {
			return nil, fmt.Errorf("highlight %d: %w", i, err)
		}
		var comment *marginalia.Comment
		if h.Comment != "" {
			comment = &marginalia.Comment{UserName: h.User, Text: h.Comment}
		}
		items = append(items, pending{doc: doc.ID, rng: rng, comment: comment})
	}

	added := make([]marginalia.Highlight, 0, len(items))
	for _, item := range items {
		h, err := store.AddHighlight(item.doc, item.rng, item.comment)
		if err != nil {
			return added, err
		}
		added = append(added, h)
	}
	return added, nil
}
