package marginalia

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestResolveOverlappingAndOutOfRange covers two highlights whose text sits
// almost on the same line plus one past the end of the content.
func TestResolveOverlappingAndOutOfRange(t *testing.T) {
	content, ancestor := newFakeContent(0, 500)
	content.tops[10] = 50
	content.tops[15] = 52

	highlights := []Highlight{
		commented("h1", 10, 20, "A"),
		commented("h2", 15, 25, "B"),
		commented("h3", 600, 610, "C"),
	}

	got, err := ResolvePositions(content, ancestor, highlights)
	require.NoError(t, err)

	want := []CardPosition{
		{HighlightID: "h1", Top: 50},
		{HighlightID: "h2", Top: 170},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveSortsByTopNotInsertionOrder(t *testing.T) {
	content, ancestor := newFakeContent(0, 1000)

	highlights := []Highlight{
		commented("late", 900, 910, "z"),
		commented("early", 100, 110, "a"),
		commented("middle", 500, 510, "m"),
	}

	got, err := ResolvePositions(content, ancestor, highlights)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"early", "middle", "late"}, ids(got))
	assert.Equal(t, 100.0, got[0].Top)
	assert.Equal(t, 500.0, got[1].Top)
	assert.Equal(t, 900.0, got[2].Top)
}

func TestResolveRelativeToAncestor(t *testing.T) {
	content, ancestor := newFakeContent(40, 300)
	content.tops[0] = 100

	got, err := ResolvePositions(content, ancestor, []Highlight{commented("h", 0, 5, "x")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 60.0, got[0].Top)
}

func TestResolveGapPushesChainDown(t *testing.T) {
	content, ancestor := newFakeContent(0, 100)
	for i := 0; i < 4; i++ {
		content.tops[i*10] = 0
	}

	r, err := NewResolver(WithGap(30))
	require.NoError(t, err)

	var highlights []Highlight
	for i := 3; i >= 0; i-- {
		highlights = append(highlights, commented(string(rune('a'+i)), i*10, i*10+5, "x"))
	}

	got, err := r.ResolvePositions(content, ancestor, highlights)
	require.NoError(t, err)
	want := []CardPosition{
		{HighlightID: "a", Top: 0},
		{HighlightID: "b", Top: 30},
		{HighlightID: "c", Top: 60},
		{HighlightID: "d", Top: 90},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveNeverMovesCardsUp(t *testing.T) {
	content, ancestor := newFakeContent(0, 1000)
	content.tops[0] = 0
	content.tops[10] = 10
	content.tops[500] = 500

	got, err := ResolvePositions(content, ancestor, []Highlight{
		commented("a", 0, 5, "x"),
		commented("b", 10, 15, "x"),
		commented("c", 500, 505, "x"),
	})
	require.NoError(t, err)
	assert.Equal(t, []CardPosition{
		{HighlightID: "a", Top: 0},
		{HighlightID: "b", Top: 120},
		{HighlightID: "c", Top: 500},
	}, got)
}

func TestResolveInvalidAncestor(t *testing.T) {
	content, _ := newFakeContent(0, 100)
	stranger := &fakeElement{}

	_, err := ResolvePositions(content, stranger, []Highlight{commented("h", 0, 5, "x")})
	assert.True(t, errors.Is(err, ErrInvalidAncestor))

	_, err = ResolvePositions(content, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidAncestor)
}

func TestResolveAncestorMayBeContentRoot(t *testing.T) {
	content, _ := newFakeContent(0, 100)
	got, err := ResolvePositions(content, content.root, []Highlight{commented("h", 20, 25, "x")})
	require.NoError(t, err)
	assert.Equal(t, []CardPosition{{HighlightID: "h", Top: 20}}, got)
}

func TestResolveOmitsInvalidRanges(t *testing.T) {
	content, ancestor := newFakeContent(0, 100)
	core, logs := observer.New(zap.DebugLevel)
	resolver, err := NewResolver(WithLogger(zap.New(core)))
	require.NoError(t, err)

	got, err := resolver.ResolvePositions(content, ancestor, []Highlight{
		commented("negative", -5, 3, "x"),
		commented("inverted", 8, 4, "x"),
		commented("empty", 4, 4, "x"),
		commented("valid", 10, 15, "x"),
	})
	require.NoError(t, err)
	assert.Equal(t, []CardPosition{{HighlightID: "valid", Top: 10}}, got)
	assert.Equal(t, 3, logs.FilterMessage("highlight has invalid range").Len())
}

func TestResolveSkipsUncommentedHighlights(t *testing.T) {
	content, ancestor := newFakeContent(0, 100)
	bare := Highlight{ID: "bare", Range: TextRange{Start: 0, End: 5}}

	got, err := ResolvePositions(content, ancestor, []Highlight{bare, commented("c", 10, 15, "x")})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(got))
}

func TestResolveBeforeMount(t *testing.T) {
	content, ancestor := newFakeContent(0)

	got, err := ResolvePositions(content, ancestor, []Highlight{commented("h", 0, 5, "x")})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveOmitsNodesWithoutGeometry(t *testing.T) {
	content, ancestor := newFakeContent(0, 50, 50)
	content.missing[content.nodes[0]] = true

	got, err := ResolvePositions(content, ancestor, []Highlight{
		commented("hidden", 10, 20, "x"),
		commented("shown", 60, 70, "y"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"shown"}, ids(got))
}

func TestResolveSpanningNodesUsesTopOfUnion(t *testing.T) {
	content, ancestor := newFakeContent(0, 10, 10, 10)
	content.tops[5] = 200
	content.tops[10] = 180 // second node sits higher, e.g. a float
	content.tops[20] = 220

	got, err := ResolvePositions(content, ancestor, []Highlight{commented("h", 5, 25, "x")})
	require.NoError(t, err)
	assert.Equal(t, []CardPosition{{HighlightID: "h", Top: 180}}, got)
}

func TestResolveTiesBreakByStartOffset(t *testing.T) {
	content, ancestor := newFakeContent(0, 100)
	content.tops[30] = 10
	content.tops[20] = 10

	got, err := ResolvePositions(content, ancestor, []Highlight{
		commented("second", 30, 35, "x"),
		commented("first", 20, 25, "x"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ids(got))
}

func TestNewResolverRejectsNegativeGap(t *testing.T) {
	_, err := NewResolver(WithGap(-1))
	assert.ErrorIs(t, err, ErrInvalidGap)

	r, err := NewResolver()
	require.NoError(t, err)
	assert.Equal(t, float64(DefaultGap), r.Gap())
}

// randomScenario builds a layout-like content where top grows with offset.
func randomScenario(rng *rand.Rand, count int) (*fakeContent, *fakeElement, []Highlight) {
	content, ancestor := newFakeContent(float64(rng.Intn(50)), 2000, 1500, 2500)
	total := 6000
	var highlights []Highlight
	for i := 0; i < count; i++ {
		start := rng.Intn(total + 200) // some fall past the end
		end := start + 1 + rng.Intn(100)
		highlights = append(highlights, commented(string(rune('A'+i%26))+string(rune('a'+i/26)), start, end, "x"))
	}
	for off := 0; off < total; off++ {
		content.tops[off] = float64(off/80) * 20
	}
	return content, ancestor, highlights
}

func TestResolveProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 20; round++ {
		content, ancestor, highlights := randomScenario(rng, 40)

		got, err := ResolvePositions(content, ancestor, highlights)
		require.NoError(t, err)

		// Non-overlap
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i].Top, got[i-1].Top+DefaultGap, "round %d card %d", round, i)
		}

		// Order preservation
		byID := make(map[string]Highlight)
		for _, h := range highlights {
			byID[h.ID] = h
		}
		top := make(map[string]float64)
		for _, p := range got {
			top[p.HighlightID] = p.Top
		}
		for a, ta := range top {
			for b, tb := range top {
				if byID[a].Range.Start < byID[b].Range.Start {
					assert.LessOrEqual(t, ta, tb, "round %d: %s before %s", round, a, b)
				}
			}
		}

		// Omission: exactly those starting past the content are missing
		for _, h := range highlights {
			_, placed := top[h.ID]
			assert.Equal(t, h.Range.Start < 6000, placed, "round %d: %s %s", round, h.ID, h.Range)
		}

		// Idempotence
		again, err := ResolvePositions(content, ancestor, highlights)
		require.NoError(t, err)
		if diff := cmp.Diff(got, again); diff != "" {
			t.Fatalf("second resolve differs (-first +second):\n%s", diff)
		}

		// Scroll invariance
		content.scroll = float64(rng.Intn(5000))
		scrolled, err := ResolvePositions(content, ancestor, highlights)
		require.NoError(t, err)
		if diff := cmp.Diff(got, scrolled); diff != "" {
			t.Fatalf("scroll changed positions (-before +after):\n%s", diff)
		}
	}
}

func TestResolveDoesNotReorderInput(t *testing.T) {
	content, ancestor := newFakeContent(0, 1000)
	highlights := []Highlight{
		commented("b", 500, 510, "x"),
		commented("a", 100, 110, "x"),
	}
	before := append([]Highlight(nil), highlights...)

	_, err := ResolvePositions(content, ancestor, highlights)
	require.NoError(t, err)
	assert.Equal(t, before, highlights)
}

func ids(positions []CardPosition) []string {
	out := make([]string, len(positions))
	for i, p := range positions {
		out[i] = p.HighlightID
	}
	return out
}
