package marginalia

// Rect is a bounding box in viewport pixels.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Bottom returns Top + Height.
func (r Rect) Bottom() float64 {
	return r.Top + r.Height
}

// Right returns Left + Width.
func (r Rect) Right() float64 {
	return r.Left + r.Width
}

// IsZero reports whether r has no position and no size.
func (r Rect) IsZero() bool {
	return r == Rect{}
}

// Union returns the smallest rect enclosing both r and other.
func (r Rect) Union(other Rect) Rect {
	left := min(r.Left, other.Left)
	top := min(r.Top, other.Top)
	right := max(r.Right(), other.Right())
	bottom := max(r.Bottom(), other.Bottom())
	return Rect{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

// Element is a rendered box that can report its geometry.
type Element interface {
	// BoundingRect returns the element's box in viewport coordinates.
	BoundingRect() Rect

	// Contains reports whether other is this element or one of its descendants.
	Contains(other Element) bool
}

// TextNode is one text-bearing leaf of rendered content. Each node
// contributes Len() runes to the document's offset space.
type TextNode interface {
	Len() int
}

// Content exposes rendered text to the resolver: the leaves in document
// order and the geometry of sub-ranges within a leaf.
type Content interface {
	// Root is the element that holds every text node.
	Root() Element

	// TextNodes returns the leaves in document order.
	TextNodes() []TextNode

	// RangeRect returns the viewport box of runes [start, end) of node.
	// It returns false when the node has no geometry yet.
	RangeRect(node TextNode, start, end int) (Rect, bool)
}

// Point is a position inside one text node.
type Point struct {
	Node   TextNode
	Index  int // index of Node in Content.TextNodes
	Offset int // rune offset within Node
}

// Span is a TextRange located on concrete text nodes.
type Span struct {
	Start Point
	End   Point
}

// Locate walks the content's text nodes in document order and finds the
// nodes and in-node offsets of rng's bounds. It returns false when no node
// covers rng.Start, which is normal before the content has mounted.
// An end past the last node is clamped to the end of the content.
func Locate(content Content, rng TextRange) (Span, bool) {
	if content == nil {
		return Span{}, false
	}
	return locate(content.TextNodes(), rng)
}

func locate(nodes []TextNode, rng TextRange) (Span, bool) {
	var span Span
	found := false
	offset := 0
	for i, node := range nodes {
		n := node.Len()
		if n <= 0 {
			continue
		}
		if !found {
			if offset+n > rng.Start {
				span.Start = Point{Node: node, Index: i, Offset: rng.Start - offset}
				found = true
			}
		}
		if found && offset+n >= rng.End {
			span.End = Point{Node: node, Index: i, Offset: rng.End - offset}
			return span, true
		}
		offset += n
		if found {
			span.End = Point{Node: node, Index: i, Offset: n}
		}
	}
	return span, found
}

// spanRect unions the per-node rects of a located span.
func spanRect(content Content, nodes []TextNode, span Span) (Rect, bool) {
	if span.Start.Index == span.End.Index {
		return content.RangeRect(span.Start.Node, span.Start.Offset, span.End.Offset)
	}

	rect, ok := content.RangeRect(span.Start.Node, span.Start.Offset, span.Start.Node.Len())
	if !ok {
		return Rect{}, false
	}
	for i := span.Start.Index + 1; i <= span.End.Index && i < len(nodes); i++ {
		node := nodes[i]
		if node.Len() <= 0 {
			continue
		}
		end := node.Len()
		if i == span.End.Index {
			end = span.End.Offset
		}
		if end <= 0 {
			continue
		}
		if r, ok := content.RangeRect(node, 0, end); ok {
			rect = rect.Union(r)
		}
	}
	return rect, true
}
