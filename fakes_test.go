package marginalia

// fakeNode is a text run of fixed length.
type fakeNode struct {
	n int
}

func (f *fakeNode) Len() int { return f.n }

// fakeElement is a box with children; scroll shifts every rect read.
type fakeElement struct {
	rect     Rect
	children []*fakeElement
	scroll   *float64
}

func (e *fakeElement) BoundingRect() Rect {
	r := e.rect
	if e.scroll != nil {
		r.Top -= *e.scroll
	}
	return r
}

func (e *fakeElement) Contains(other Element) bool {
	o, ok := other.(*fakeElement)
	if !ok {
		return false
	}
	if o == e {
		return true
	}
	for _, c := range e.children {
		if c.Contains(o) {
			return true
		}
	}
	return false
}

// fakeContent reports a rect whose top comes from tops, keyed by the
// document offset where the requested sub-range starts. Offsets without an
// entry get top = offset.
type fakeContent struct {
	nodes  []*fakeNode
	root   *fakeElement
	tops   map[int]float64
	scroll float64

	// missing nodes report no geometry
	missing map[*fakeNode]bool
	calls   int
}

// newFakeContent builds content from node lengths inside an ancestor at
// ancestorTop, with the text root as its only child.
func newFakeContent(ancestorTop float64, lengths ...int) (*fakeContent, *fakeElement) {
	c := &fakeContent{tops: make(map[int]float64), missing: make(map[*fakeNode]bool)}
	for _, n := range lengths {
		c.nodes = append(c.nodes, &fakeNode{n: n})
	}
	c.root = &fakeElement{rect: Rect{Top: ancestorTop}, scroll: &c.scroll}
	ancestor := &fakeElement{rect: Rect{Top: ancestorTop}, children: []*fakeElement{c.root}, scroll: &c.scroll}
	return c, ancestor
}

func (c *fakeContent) Root() Element { return c.root }

func (c *fakeContent) TextNodes() []TextNode {
	nodes := make([]TextNode, len(c.nodes))
	for i, n := range c.nodes {
		nodes[i] = n
	}
	return nodes
}

func (c *fakeContent) RangeRect(node TextNode, start, end int) (Rect, bool) {
	c.calls++
	fn := node.(*fakeNode)
	if c.missing[fn] {
		return Rect{}, false
	}
	offset := 0
	for _, n := range c.nodes {
		if n == fn {
			break
		}
		offset += n.n
	}
	doc := offset + start
	top, ok := c.tops[doc]
	if !ok {
		top = float64(doc)
	}
	return Rect{Left: float64(start), Top: top - c.scroll, Width: float64(end - start), Height: 10}, true
}

func commented(id string, start, end int, text string) Highlight {
	return Highlight{
		ID:         id,
		DocumentID: "doc",
		Range:      TextRange{Start: start, End: end},
		Comment:    &Comment{UserName: "tester", Text: text},
	}
}
