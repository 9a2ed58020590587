package marginalia

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Rail keeps the comment cards of one document positioned. It re-resolves on
// the next frame after highlights change, content mounts, or the viewport
// resizes. Scrolling never triggers a resolve because positions are
// relative to the positioning ancestor.
type Rail struct {
	store      *Store
	resolver   *Resolver
	scheduler  *Scheduler
	documentID string
	logger     *zap.Logger

	mu          sync.Mutex
	content     Content
	ancestor    Element
	positions   []CardPosition
	err         error
	resolves    int
	onApply     func([]CardPosition, error)
	unsubscribe func()
}

// NewRail creates a rail for documentID and subscribes it to store changes
// for that document. Rails sharing a scheduler must show different
// documents. Call Close to unsubscribe.
func NewRail(store *Store, resolver *Resolver, scheduler *Scheduler, documentID string) *Rail {
	r := &Rail{
		store:      store,
		resolver:   resolver,
		scheduler:  scheduler,
		documentID: documentID,
		logger:     resolver.logger,
	}
	unsubscribe := store.Subscribe(func(changed string) {
		if changed == r.documentID {
			r.HighlightsChanged()
		}
	})
	r.mu.Lock()
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
	return r
}

// DocumentID returns the document this rail positions cards for.
func (r *Rail) DocumentID() string {
	return r.documentID
}

// Mount sets the rendered content and positioning ancestor and schedules a resolve.
func (r *Rail) Mount(content Content, ancestor Element) {
	r.mu.Lock()
	r.content = content
	r.ancestor = ancestor
	r.mu.Unlock()
	r.schedule()
}

// HighlightsChanged schedules a resolve.
func (r *Rail) HighlightsChanged() {
	r.schedule()
}

// Resized schedules a resolve.
func (r *Rail) Resized() {
	r.schedule()
}

// Scrolled does nothing.
func (r *Rail) Scrolled() {}

// Positions returns the positions applied by the most recent frame.
func (r *Rail) Positions() []CardPosition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CardPosition, len(r.positions))
	copy(out, r.positions)
	return out
}

// Err returns the error from the most recent frame, if any.
func (r *Rail) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Resolves returns how many frames this rail has applied.
func (r *Rail) Resolves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolves
}

// Select makes id the active highlight and returns its card position so the
// caller can scroll the card into view.
func (r *Rail) Select(id string) (CardPosition, error) {
	r.store.SetActiveHighlight(id)
	for _, p := range r.Positions() {
		if p.HighlightID == id {
			return p, nil
		}
	}
	return CardPosition{}, fmt.Errorf("card for %q: %w", id, ErrNotFound)
}

// OnApply registers fn to run after each frame applies new positions.
func (r *Rail) OnApply(fn func(positions []CardPosition, err error)) {
	r.mu.Lock()
	r.onApply = fn
	r.mu.Unlock()
}

// Close unsubscribes the rail from its store.
func (r *Rail) Close() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (r *Rail) schedule() {
	r.scheduler.Request("rail:"+r.documentID, r.resolve)
}

func (r *Rail) resolve() {
	r.mu.Lock()
	content, ancestor := r.content, r.ancestor
	r.mu.Unlock()

	if content == nil {
		return
	}

	highlights := r.store.ListHighlights(r.documentID)
	positions, err := r.resolver.ResolvePositions(content, ancestor, highlights)
	if err != nil {
		r.logger.Error("resolve failed",
			zap.String("document", r.documentID),
			zap.Error(err))
	}

	r.mu.Lock()
	r.positions = positions
	r.err = err
	r.resolves++
	onApply := r.onApply
	r.mu.Unlock()

	if onApply != nil {
		onApply(positions, err)
	}
}
