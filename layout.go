package marginalia

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// LayoutOptions configures the monospace layout.
type LayoutOptions struct {
	Columns      int     // wrap width in terminal columns
	LineHeight   float64 // pixels per line
	CharWidth    float64 // pixels per column
	ParagraphGap float64 // extra pixels after each paragraph
	Padding      float64 // pixels between the container edge and the text
}

// DefaultLayoutOptions returns the options used when none are configured.
func DefaultLayoutOptions() LayoutOptions {
	return LayoutOptions{
		Columns:      72,
		LineHeight:   20,
		CharWidth:    8,
		ParagraphGap: 12,
		Padding:      16,
	}
}

// Validate checks that the options can produce a layout.
func (o LayoutOptions) Validate() error {
	if o.Columns <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidColumns, o.Columns)
	}
	return nil
}

// Layout renders plain text as word-wrapped monospace paragraphs inside a
// scrollable container. Each paragraph is one text node; the newline that
// ends a paragraph belongs to it and has no width.
//
// The container and the text root scroll together, so rects read from the
// layout shift by the same amount on ScrollTo.
type Layout struct {
	text       []rune
	opts       LayoutOptions
	paragraphs []*paragraph
	height     float64
	scrollY    float64
	mounted    bool

	container *layoutBox
	root      *layoutBox
}

type paragraph struct {
	layout *Layout
	index  int
	start  int // offset of the first rune in the document
	runes  []rune
	lines  []lineSpan
	cols   []int // column of each rune within its line
	top    float64
}

type lineSpan struct {
	start int // first rune, relative to the paragraph
	end   int // one past the last rune
}

// Len returns the number of runes in the paragraph, including its newline.
func (p *paragraph) Len() int {
	return len(p.runes)
}

type boxKind int

const (
	containerBox boxKind = iota
	rootBox
	detachedBox
)

type layoutBox struct {
	layout *Layout
	kind   boxKind
}

// NewLayout lays out text. Invalid options fall back to the defaults for
// the offending fields.
func NewLayout(text string, opts LayoutOptions) *Layout {
	defaults := DefaultLayoutOptions()
	if opts.Columns <= 0 {
		opts.Columns = defaults.Columns
	}
	if opts.LineHeight <= 0 {
		opts.LineHeight = defaults.LineHeight
	}
	if opts.CharWidth <= 0 {
		opts.CharWidth = defaults.CharWidth
	}

	l := &Layout{
		text:    []rune(text),
		opts:    opts,
		mounted: true,
	}
	l.container = &layoutBox{layout: l, kind: containerBox}
	l.root = &layoutBox{layout: l, kind: rootBox}

	start := 0
	for _, chunk := range strings.SplitAfter(text, "\n") {
		runes := []rune(chunk)
		if len(runes) == 0 {
			continue
		}
		l.paragraphs = append(l.paragraphs, &paragraph{
			layout: l,
			index:  len(l.paragraphs),
			start:  start,
			runes:  runes,
		})
		start += len(runes)
	}
	l.reflow()
	return l
}

// Text returns the document text.
func (l *Layout) Text() string {
	return string(l.text)
}

// Len returns the document length in runes.
func (l *Layout) Len() int {
	return len(l.text)
}

// Options returns the options in effect.
func (l *Layout) Options() LayoutOptions {
	return l.opts
}

// Height returns the laid-out content height including padding.
func (l *Layout) Height() float64 {
	return l.height
}

// ScrollY returns the current scroll offset.
func (l *Layout) ScrollY() float64 {
	return l.scrollY
}

// ScrollTo sets the scroll offset of the shared container.
func (l *Layout) ScrollTo(y float64) {
	l.scrollY = y
}

// ScrollBy moves the scroll offset by dy.
func (l *Layout) ScrollBy(dy float64) {
	l.scrollY += dy
}

// Resize rewraps the text at a new column width.
func (l *Layout) Resize(columns int) error {
	if columns <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidColumns, columns)
	}
	l.opts.Columns = columns
	l.reflow()
	return nil
}

// SetMounted toggles whether the text is rendered. Unmounted content has no
// text nodes, as during the first frame of a view.
func (l *Layout) SetMounted(mounted bool) {
	l.mounted = mounted
}

// Container returns the positioning ancestor that wraps the text.
func (l *Layout) Container() Element {
	return l.container
}

// Detached returns an element outside this layout's tree.
func (l *Layout) Detached() Element {
	return &layoutBox{layout: l, kind: detachedBox}
}

// Root implements Content.
func (l *Layout) Root() Element {
	return l.root
}

// TextNodes implements Content.
func (l *Layout) TextNodes() []TextNode {
	if !l.mounted {
		return nil
	}
	nodes := make([]TextNode, len(l.paragraphs))
	for i, p := range l.paragraphs {
		nodes[i] = p
	}
	return nodes
}

// RangeRect implements Content.
func (l *Layout) RangeRect(node TextNode, start, end int) (Rect, bool) {
	p, ok := node.(*paragraph)
	if !ok || p.layout != l || !l.mounted {
		return Rect{}, false
	}
	start = max(start, 0)
	end = min(end, len(p.runes))
	if start >= end {
		return Rect{}, false
	}

	var rect Rect
	have := false
	for li, line := range p.lines {
		s := max(start, line.start)
		e := min(end, line.end)
		if s >= e {
			continue
		}
		left := float64(p.cols[s]) * l.opts.CharWidth
		right := float64(p.cols[e-1]+runeWidth(p.runes[e-1])) * l.opts.CharWidth
		r := Rect{
			Left:   l.textLeft() + left,
			Top:    l.textTop() + p.top + float64(li)*l.opts.LineHeight,
			Width:  right - left,
			Height: l.opts.LineHeight,
		}
		if have {
			rect = rect.Union(r)
		} else {
			rect = r
			have = true
		}
	}
	return rect, have
}

// Line is one wrapped line of the layout.
type Line struct {
	Paragraph int
	Start     int     // document offset of the first rune
	End       int     // document offset one past the last rune
	Text      string  // without the trailing newline
	Top       float64 // pixels from the container top
}

// Lines returns the wrapped lines in document order.
func (l *Layout) Lines() []Line {
	var lines []Line
	for _, p := range l.paragraphs {
		for li, span := range p.lines {
			text := strings.TrimSuffix(string(p.runes[span.start:span.end]), "\n")
			lines = append(lines, Line{
				Paragraph: p.index,
				Start:     p.start + span.start,
				End:       p.start + span.end,
				Text:      text,
				Top:       l.opts.Padding + p.top + float64(li)*l.opts.LineHeight,
			})
		}
	}
	return lines
}

func (l *Layout) textTop() float64 {
	return -l.scrollY + l.opts.Padding
}

func (l *Layout) textLeft() float64 {
	return l.opts.Padding
}

func (l *Layout) reflow() {
	y := 0.0
	for _, p := range l.paragraphs {
		p.lines, p.cols = wrap(p.runes, l.opts.Columns)
		p.top = y
		y += float64(len(p.lines))*l.opts.LineHeight + l.opts.ParagraphGap
	}
	if len(l.paragraphs) > 0 {
		y -= l.opts.ParagraphGap
	}
	l.height = y + 2*l.opts.Padding
}

// wrap breaks runes into lines no wider than columns, preferring to break
// after spaces. Words longer than a line are split. Trailing spaces may hang
// past the edge.
func wrap(runes []rune, columns int) ([]lineSpan, []int) {
	var lines []lineSpan
	lineStart := 0
	lastBreak := -1
	col := 0

	for i := 0; i < len(runes); {
		r := runes[i]
		w := runeWidth(r)
		if r != ' ' && w > 0 && col > 0 && col+w > columns {
			if lastBreak > lineStart {
				lines = append(lines, lineSpan{start: lineStart, end: lastBreak})
				lineStart = lastBreak
				col = widthOf(runes[lastBreak:i])
			} else {
				lines = append(lines, lineSpan{start: lineStart, end: i})
				lineStart = i
				col = 0
			}
			lastBreak = -1
			continue
		}
		col += w
		if r == ' ' {
			lastBreak = i + 1
		}
		i++
	}
	lines = append(lines, lineSpan{start: lineStart, end: len(runes)})

	cols := make([]int, len(runes))
	for _, line := range lines {
		c := 0
		for i := line.start; i < line.end; i++ {
			cols[i] = c
			c += runeWidth(runes[i])
		}
	}
	return lines, cols
}

func runeWidth(r rune) int {
	if r == '\n' {
		return 0
	}
	return runewidth.RuneWidth(r)
}

func widthOf(runes []rune) int {
	w := 0
	for _, r := range runes {
		w += runeWidth(r)
	}
	return w
}

func (b *layoutBox) BoundingRect() Rect {
	l := b.layout
	switch b.kind {
	case containerBox:
		return Rect{
			Top:    -l.scrollY,
			Width:  float64(l.opts.Columns)*l.opts.CharWidth + 2*l.opts.Padding,
			Height: l.height,
		}
	case rootBox:
		return Rect{
			Left:   l.opts.Padding,
			Top:    l.textTop(),
			Width:  float64(l.opts.Columns) * l.opts.CharWidth,
			Height: l.height - 2*l.opts.Padding,
		}
	default:
		// A sibling of the container, fixed in the viewport
		return Rect{Left: l.container.BoundingRect().Right()}
	}
}

func (b *layoutBox) Contains(other Element) bool {
	o, ok := other.(*layoutBox)
	if !ok || o.layout != b.layout {
		return false
	}
	if o == b {
		return true
	}
	return b.kind == containerBox && o.kind == rootBox
}
