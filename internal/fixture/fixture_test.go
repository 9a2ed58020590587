package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phroun/marginalia"
)

const sample = `
documents:
  - id: report
    text: |
      The quarterly numbers look fine.
      The numbers for March need a second look.
  - id: notes
    text: "short"
highlights:
  - document: report
    find: numbers
    occurrence: 1
    user: ana
    comment: check March
  - document: report
    start: 4
    end: 13
  - document: notes
    start: 100
    end: 110
    comment: past the end
`

func TestParseAndApply(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, f.Documents, 2)

	doc, ok := f.Document("report")
	require.True(t, ok)
	assert.Contains(t, doc.Text, "quarterly")

	store := marginalia.NewStore(marginalia.StoreOptions{})
	added, err := f.Apply(store)
	require.NoError(t, err)
	require.Len(t, added, 3)

	assert.Equal(t, marginalia.TextRange{Start: 37, End: 44}, added[0].Range)
	assert.Equal(t, &marginalia.Comment{UserName: "ana", Text: "check March"}, added[0].Comment)
	assert.Nil(t, added[1].Comment, "no comment text means a bare highlight")
	assert.Equal(t, marginalia.TextRange{Start: 100, End: 110}, added[2].Range)

	assert.Len(t, store.ListHighlights("report"), 2)
	assert.Len(t, store.ListHighlights("notes"), 1)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	_, err := Parse([]byte("documents:\n  - text: x\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("documents:\n  - id: a\n  - id: a\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = Parse([]byte("documents: [unclosed"))
	assert.Error(t, err)
}

func TestHighlightRange(t *testing.T) {
	text := "one two one"
	start, end := 2, 2

	tests := []struct {
		name    string
		h       Highlight
		want    marginalia.TextRange
		wantErr error
	}{
		{"first occurrence", Highlight{Find: "one"}, marginalia.TextRange{Start: 0, End: 3}, nil},
		{"second occurrence", Highlight{Find: "one", Occurrence: 1}, marginalia.TextRange{Start: 8, End: 11}, nil},
		{"missing occurrence", Highlight{Find: "one", Occurrence: 2}, marginalia.TextRange{}, ErrNoMatch},
		{"case sensitive", Highlight{Find: "ONE"}, marginalia.TextRange{}, ErrNoMatch},
		{"empty range", Highlight{Start: &start, End: &end}, marginalia.TextRange{}, marginalia.ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.h.Range(text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Highlight{Start: &start}.Range(text)
	assert.Error(t, err, "start without end")
}

func TestApplyIsAllOrNothing(t *testing.T) {
	f, err := Parse([]byte(`
documents:
  - id: a
    text: hello world
highlights:
  - document: a
    find: hello
    comment: fine
  - document: b
    find: hello
    comment: unknown document
`))
	require.NoError(t, err)

	store := marginalia.NewStore(marginalia.StoreOptions{})
	_, err = f.Apply(store)
	assert.ErrorIs(t, err, ErrUnknownDocument)
	assert.Empty(t, store.Documents())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Highlights, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
