package marginalia

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StoreOptions configures a Store.
type StoreOptions struct {
	// Logger receives debug telemetry. Defaults to a no-op logger.
	Logger *zap.Logger

	// NewID generates highlight ids. Defaults to uuid.NewString.
	NewID func() string

	// Now supplies creation timestamps. Defaults to time.Now.
	Now func() time.Time

	// DefaultUserName is used when UpdateComment adds a comment to a
	// highlight that had none.
	DefaultUserName string

	// OnChange is called after every successful mutation with the id of the
	// affected document. It runs outside the store lock, so it may read the store.
	OnChange func(documentID string)
}

// Store is the in-memory collection of highlights, grouped by document,
// plus the single active-highlight selection.
type Store struct {
	mu sync.RWMutex

	logger          *zap.Logger
	newID           func() string
	now             func() time.Time
	defaultUserName string
	onChange        func(documentID string)

	// Highlights per document, in insertion order
	byDocument map[string][]*Highlight

	// All highlights indexed by id
	byID map[string]*Highlight

	activeID string
	revision uint64

	subscribers map[int]func(documentID string)
	nextSubID   int
}

// NewStore creates an empty Store.
func NewStore(options StoreOptions) *Store {
	s := &Store{
		logger:          options.Logger,
		newID:           options.NewID,
		now:             options.Now,
		defaultUserName: options.DefaultUserName,
		onChange:        options.OnChange,
		byDocument:      make(map[string][]*Highlight),
		byID:            make(map[string]*Highlight),
		subscribers:     make(map[int]func(string)),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// AddHighlight creates and appends a highlight for documentID.
// Overlapping highlights are allowed. A malformed range returns
// ErrInvalidRange and nothing is stored.
func (s *Store) AddHighlight(documentID string, rng TextRange, comment *Comment) (Highlight, error) {
	if err := rng.Validate(); err != nil {
		return Highlight{}, err
	}

	h := &Highlight{
		DocumentID: documentID,
		Range:      rng,
	}
	if comment != nil {
		c := *comment
		h.Comment = &c
	}

	s.mu.Lock()
	h.ID = s.newID()
	h.CreatedAt = s.now()
	if _, exists := s.byID[h.ID]; exists {
		s.mu.Unlock()
		return Highlight{}, fmt.Errorf("duplicate highlight id %q", h.ID)
	}
	s.byID[h.ID] = h
	s.byDocument[documentID] = append(s.byDocument[documentID], h)
	s.revision++
	result := h.clone()
	s.mu.Unlock()

	s.logger.Debug("highlight added",
		zap.String("highlight", result.ID),
		zap.String("document", documentID),
		zap.Stringer("range", rng))
	s.notify(documentID)
	return result, nil
}

// UpdateComment replaces the comment text of a highlight.
// Rejecting empty text is the caller's responsibility.
func (s *Store) UpdateComment(id, text string) error {
	s.mu.Lock()
	h, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("update of unknown highlight", zap.String("highlight", id))
		return fmt.Errorf("update comment %q: %w", id, ErrNotFound)
	}
	if h.Comment == nil {
		h.Comment = &Comment{UserName: s.defaultUserName, Text: text}
	} else {
		// Replace rather than mutate so earlier copies stay unchanged
		h.Comment = &Comment{UserName: h.Comment.UserName, Text: text}
	}
	s.revision++
	documentID := h.DocumentID
	s.mu.Unlock()

	s.notify(documentID)
	return nil
}

// DeleteHighlight removes a highlight and clears the active selection if it
// pointed at it. Unknown ids return ErrNotFound; deleting twice is safe.
func (s *Store) DeleteHighlight(id string) error {
	s.mu.Lock()
	h, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("delete of unknown highlight", zap.String("highlight", id))
		return fmt.Errorf("delete highlight %q: %w", id, ErrNotFound)
	}
	delete(s.byID, id)

	list := s.byDocument[h.DocumentID]
	for i, candidate := range list {
		if candidate.ID == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.byDocument, h.DocumentID)
	} else {
		s.byDocument[h.DocumentID] = list
	}

	if s.activeID == id {
		s.activeID = ""
	}
	s.revision++
	s.mu.Unlock()

	s.logger.Debug("highlight deleted", zap.String("highlight", id))
	s.notify(h.DocumentID)
	return nil
}

// SetActiveHighlight selects a highlight. An empty or unknown id clears the
// selection; it never fails.
func (s *Store) SetActiveHighlight(id string) {
	s.mu.Lock()
	if _, ok := s.byID[id]; ok {
		s.activeID = id
	} else {
		if id != "" {
			s.logger.Debug("activating unknown highlight", zap.String("highlight", id))
		}
		s.activeID = ""
	}
	s.mu.Unlock()
}

// ActiveHighlight returns the selected highlight id, if any.
func (s *Store) ActiveHighlight() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, s.activeID != ""
}

// Highlight returns a copy of one highlight.
func (s *Store) Highlight(id string) (Highlight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.byID[id]
	if !ok {
		return Highlight{}, fmt.Errorf("highlight %q: %w", id, ErrNotFound)
	}
	return h.clone(), nil
}

// ListHighlights returns copies of all highlights for a document in
// insertion order. Callers that need text order sort by range.
func (s *Store) ListHighlights(documentID string) []Highlight {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.byDocument[documentID]
	result := make([]Highlight, 0, len(list))
	for _, h := range list {
		result = append(result, h.clone())
	}
	return result
}

// Documents returns the ids of documents that have highlights, sorted.
func (s *Store) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byDocument))
	for id := range s.byDocument {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Revision returns a counter that increases on every content mutation.
// Changing the active selection does not count.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Subscribe registers fn to be called after every successful mutation,
// like StoreOptions.OnChange. The returned function unregisters it.
func (s *Store) Subscribe(fn func(documentID string)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(documentID string) {
	if s.onChange != nil {
		s.onChange(documentID)
	}

	s.mu.RLock()
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(string), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subscribers[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(documentID)
	}
}
