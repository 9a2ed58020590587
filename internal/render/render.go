// Package render draws a laid-out document and its comment rail in a terminal.
package render

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/phroun/marginalia"
)

// Options controls the terminal drawing.
type Options struct {
	RailWidth int    // columns reserved for cards
	ActiveID  string // highlight drawn with the active style
	Plain     bool   // no ANSI styling
}

var (
	markStyle   = lipgloss.NewStyle().Background(lipgloss.Color("229")).Foreground(lipgloss.Color("0"))
	activeStyle = lipgloss.NewStyle().Background(lipgloss.Color("214")).Foreground(lipgloss.Color("0")).Bold(true)
	userStyle   = lipgloss.NewStyle().Bold(true)
	railStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Document renders the layout's lines on the left and each positioned
// card on the right, one terminal row per line height.
func Document(layout *marginalia.Layout, highlights []marginalia.Highlight, positions []marginalia.CardPosition, opts Options) string {
	lineHeight := layout.Options().LineHeight
	columns := layout.Options().Columns
	if opts.RailWidth <= 0 {
		opts.RailWidth = 32
	}

	byID := make(map[string]marginalia.Highlight, len(highlights))
	for _, h := range highlights {
		byID[h.ID] = h
	}

	rows := make(map[int]string)
	last := 0
	for _, line := range layout.Lines() {
		row := rowOf(line.Top, lineHeight)
		rows[row] = styleLine(line, highlights, opts)
		last = max(last, row)
	}

	cards := make(map[int]string)
	for _, p := range positions {
		h, ok := byID[p.HighlightID]
		if !ok || h.Comment == nil {
			continue
		}
		row := rowOf(p.Top, lineHeight)
		header := h.Comment.UserName
		if header == "" {
			header = "anonymous"
		}
		if opts.Plain {
			cards[row] = truncate(header, opts.RailWidth)
		} else {
			cards[row] = userStyle.Render(truncate(header, opts.RailWidth))
		}
		cards[row+1] = truncate(h.Comment.Text, opts.RailWidth)
		last = max(last, row+1)
	}

	sep := " │ "
	if !opts.Plain {
		sep = railStyle.Render(sep)
	}

	var b strings.Builder
	for row := 0; row <= last; row++ {
		left := rows[row]
		b.WriteString(left)
		if pad := columns - lipgloss.Width(left); pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
		b.WriteString(sep)
		b.WriteString(cards[row])
		b.WriteByte('\n')
	}
	return b.String()
}

func rowOf(top, lineHeight float64) int {
	return int(math.Floor(top / lineHeight))
}

func styleLine(line marginalia.Line, highlights []marginalia.Highlight, opts Options) string {
	runes := []rune(line.Text)
	if opts.Plain {
		return string(runes)
	}

	var b strings.Builder
	var run []rune
	current := unmarked
	flush := func() {
		if len(run) == 0 {
			return
		}
		switch current {
		case marked:
			b.WriteString(markStyle.Render(string(run)))
		case active:
			b.WriteString(activeStyle.Render(string(run)))
		default:
			b.WriteString(string(run))
		}
		run = run[:0]
	}

	for i, r := range runes {
		m := markAt(line.Start+i, highlights, opts.ActiveID)
		if m != current {
			flush()
			current = m
		}
		run = append(run, r)
	}
	flush()
	return b.String()
}

type mark int

const (
	unmarked mark = iota
	marked
	active
)

func markAt(offset int, highlights []marginalia.Highlight, activeID string) mark {
	m := unmarked
	for _, h := range highlights {
		if !h.Range.Contains(offset) {
			continue
		}
		if h.ID == activeID {
			return active
		}
		m = marked
	}
	return m
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
