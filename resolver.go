package marginalia

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// DefaultGap is the minimum vertical distance, in pixels, between two
// consecutively stacked comment cards.
const DefaultGap = 120

// CardPosition is where a highlight's comment card renders, measured from
// the top of the positioning ancestor.
type CardPosition struct {
	HighlightID string  `json:"highlightId"`
	Top         float64 `json:"top"`
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithGap sets the minimum stacking gap.
func WithGap(gap float64) ResolverOption {
	return func(r *Resolver) {
		r.gap = gap
	}
}

// WithLogger sets the logger used for omitted highlights.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver maps highlights to non-overlapping card positions.
// It holds no state between calls.
type Resolver struct {
	gap    float64
	logger *zap.Logger
}

// NewResolver creates a Resolver with DefaultGap unless overridden.
func NewResolver(opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{
		gap:    DefaultGap,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.gap < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGap, r.gap)
	}
	return r, nil
}

// Gap returns the configured stacking gap.
func (r *Resolver) Gap() float64 {
	return r.gap
}

var defaultResolver = &Resolver{gap: DefaultGap, logger: zap.NewNop()}

// ResolvePositions resolves card positions with DefaultGap.
func ResolvePositions(content Content, ancestor Element, highlights []Highlight) ([]CardPosition, error) {
	return defaultResolver.ResolvePositions(content, ancestor, highlights)
}

type located struct {
	id    string
	start int
	top   float64
}

// ResolvePositions returns one CardPosition per commented highlight that
// can be located in content, sorted by Top. Positions are relative to
// ancestor's top edge, so a scroll that moves content and ancestor together
// leaves them unchanged. Highlights that cannot be located yet are omitted.
//
// ErrInvalidAncestor is returned when ancestor does not contain content's root.
func (r *Resolver) ResolvePositions(content Content, ancestor Element, highlights []Highlight) ([]CardPosition, error) {
	if content == nil {
		return nil, nil
	}
	root := content.Root()
	if ancestor == nil || root == nil || !ancestor.Contains(root) {
		return nil, ErrInvalidAncestor
	}

	nodes := content.TextNodes()
	origin := ancestor.BoundingRect().Top

	found := make([]located, 0, len(highlights))
	for _, h := range highlights {
		if h.Comment == nil {
			continue
		}
		if err := h.Range.Validate(); err != nil {
			r.logger.Debug("highlight has invalid range",
				zap.String("highlight", h.ID),
				zap.Error(err))
			continue
		}
		span, ok := locate(nodes, h.Range)
		if !ok {
			r.logger.Debug("highlight not locatable",
				zap.String("highlight", h.ID),
				zap.Stringer("range", h.Range))
			continue
		}
		rect, ok := spanRect(content, nodes, span)
		if !ok {
			r.logger.Debug("highlight has no geometry", zap.String("highlight", h.ID))
			continue
		}
		found = append(found, located{
			id:    h.ID,
			start: h.Range.Start,
			top:   rect.Top - origin,
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if a.top != b.top {
			return a.top < b.top
		}
		if a.start != b.start {
			return a.start < b.start
		}
		return a.id < b.id
	})

	return stack(found, r.gap), nil
}

// stack pushes each card down to at least gap below the previous one.
// Cards never move up and earlier cards are never revisited.
func stack(sorted []located, gap float64) []CardPosition {
	positions := make([]CardPosition, len(sorted))
	for i, l := range sorted {
		top := l.top
		if i > 0 {
			top = max(top, positions[i-1].Top+gap)
		}
		positions[i] = CardPosition{HighlightID: l.id, Top: top}
	}
	return positions
}
