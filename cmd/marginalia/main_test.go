package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/phroun/marginalia"
	"github.com/phroun/marginalia/internal/session"
)

const testFixture = `
documents:
  - id: report
    text: |
      Revenue grew in every region.
      Costs held steady through March.
  - id: notes
    text: "tiny"
highlights:
  - document: report
    find: Revenue
    user: ana
    comment: source?
  - document: report
    find: every
    user: bo
    comment: really every one?
  - document: report
    find: Costs
  - document: notes
    start: 40
    end: 45
    comment: stale
`

func writeFixture(t *testing.T, dir, data string) string {
	t.Helper()
	path := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(append([]string{"marginalia", "--config", ""}, args...))
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	path := writeFixture(t, t.TempDir(), testFixture)

	out, err := runApp(t, "resolve", "--fixture", path)
	require.NoError(t, err)

	assert.Contains(t, out, "report:\n")
	assert.Contains(t, out, "      16.0  [0,7)      ana: source?")
	assert.Contains(t, out, "     136.0  [16,21)    bo: really every one?")
	assert.Contains(t, out, "         -  [30,35)    (no comment)")
	assert.Contains(t, out, "notes:\n")
	assert.Contains(t, out, "         -  [40,45)    : stale")
}

func TestResolveCommandJSONIgnoresScroll(t *testing.T) {
	path := writeFixture(t, t.TempDir(), testFixture)

	decode := func(out string) []session.Result {
		var results []session.Result
		require.NoError(t, json.Unmarshal([]byte(out), &results))
		return results
	}

	plain, err := runApp(t, "resolve", "--fixture", path, "--json", "--document", "report")
	require.NoError(t, err)
	scrolled, err := runApp(t, "resolve", "--fixture", path, "--json", "--document", "report", "--scroll", "900")
	require.NoError(t, err)

	// Each run assigns fresh ids, so compare the geometry
	tops := func(results []session.Result) []float64 {
		require.Len(t, results, 1)
		var out []float64
		for _, p := range results[0].Positions {
			out = append(out, p.Top)
		}
		return out
	}
	before, after := decode(plain), decode(scrolled)
	assert.Equal(t, []float64{16, 136}, tops(before))
	assert.Equal(t, tops(before), tops(after))
	assert.Len(t, before[0].Omitted, 1)
}

func TestResolveCommandErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, testFixture)

	_, err := runApp(t, "resolve", "--fixture", path, "--document", "missing")
	assert.Error(t, err)

	_, err = runApp(t, "resolve", "--fixture", filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("gap = -3"), 0o644))
	var out bytes.Buffer
	err = newApp(&out).Run([]string{"marginalia", "--config", bad, "resolve", "--fixture", path})
	assert.ErrorIs(t, err, marginalia.ErrInvalidGap)
}

func TestRenderCommand(t *testing.T) {
	path := writeFixture(t, t.TempDir(), testFixture)

	out, err := runApp(t, "render", "--fixture", path, "--document", "report", "--plain", "--rail", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "== report\n")
	assert.Contains(t, out, "Revenue grew in every region.")
	assert.Contains(t, out, "│ ana")
	assert.Contains(t, out, "│ really every one?")
	assert.NotContains(t, out, "== notes")
}

func TestBenchCommand(t *testing.T) {
	var out bytes.Buffer
	err := runBench(&out, marginalia.DefaultConfig(), benchSettings{paragraphs: 5, highlights: 20, rounds: 2, seed: 3})
	require.NoError(t, err)

	got := out.String()
	for _, name := range []string{"Generate document", "Layout", "Add highlights", "Resolve positions", "Resolve while scrolling", "Coalesced rail frames", "SUMMARY"} {
		assert.Contains(t, got, name)
	}
	assert.Contains(t, got, "6 measurements")
}

func TestBenchEmptyDocument(t *testing.T) {
	var out bytes.Buffer
	err := runBench(&out, marginalia.DefaultConfig(), benchSettings{paragraphs: 0, highlights: 20, rounds: 2, seed: 3})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "empty document")
	assert.Contains(t, out.String(), "0 cards")
}

func TestAppFlags(t *testing.T) {
	out, err := runApp(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "v0.1.0")

	path := writeFixture(t, t.TempDir(), testFixture)
	var buf bytes.Buffer
	err = newApp(&buf).Run([]string{"marginalia", "--config", "", "--verbose", "resolve", "--fixture", path, "--document", "notes"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "notes:\n")

	_, err = runApp(t, "bench", "--paragraphs", "2", "--highlights", "3", "--rounds", "1")
	assert.NoError(t, err)
}

// syncBuffer lets the watcher write while the test reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatcherReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := writeFixture(t, dir, testFixture)

	var out syncBuffer
	w := newFixtureWatcher(path, marginalia.DefaultConfig(), zap.NewNop(), &out)
	w.document = "report"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "ana: source?")
	}, 5*time.Second, 10*time.Millisecond)

	updated := strings.Replace(testFixture, "comment: source?", "comment: which ledger?", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "ana: which ledger?")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	err := <-done
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.NotContains(t, out.String(), "notes:")

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.GreaterOrEqual(t, w.reloads, 2)
	assert.Empty(t, w.rails)
}
