// Package session wires a store, resolver and per-document layouts from a
// config and a fixture, the way a document view would.
package session

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/phroun/marginalia"
	"github.com/phroun/marginalia/internal/fixture"
)

// Session holds everything needed to resolve cards for a set of documents.
type Session struct {
	Config   *marginalia.Config
	Store    *marginalia.Store
	Resolver *marginalia.Resolver
	Logger   *zap.Logger

	layouts map[string]*marginalia.Layout
	order   []string
}

// New creates an empty session.
func New(config *marginalia.Config, logger *zap.Logger) (*Session, error) {
	if config == nil {
		config = marginalia.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver, err := config.Resolver(marginalia.WithLogger(logger.Named("resolver")))
	if err != nil {
		return nil, err
	}
	return &Session{
		Config:   config,
		Store:    marginalia.NewStore(marginalia.StoreOptions{Logger: logger.Named("store"), DefaultUserName: "you"}),
		Resolver: resolver,
		Logger:   logger,
		layouts:  make(map[string]*marginalia.Layout),
	}, nil
}

// FromFixture creates a session holding the fixture's documents and highlights.
func FromFixture(config *marginalia.Config, logger *zap.Logger, f *fixture.Fixture) (*Session, error) {
	s, err := New(config, logger)
	if err != nil {
		return nil, err
	}
	for _, d := range f.Documents {
		s.AddDocument(d.ID, d.Text)
	}
	if _, err := f.Apply(s.Store); err != nil {
		return nil, err
	}
	return s, nil
}

// AddDocument lays out text under id, replacing any earlier document.
func (s *Session) AddDocument(id, text string) *marginalia.Layout {
	if _, exists := s.layouts[id]; !exists {
		s.order = append(s.order, id)
	}
	layout := marginalia.NewLayout(text, s.Config.LayoutOptions())
	s.layouts[id] = layout
	return layout
}

// Layout returns the layout for a document.
func (s *Session) Layout(id string) (*marginalia.Layout, bool) {
	l, ok := s.layouts[id]
	return l, ok
}

// DocumentIDs returns document ids in the order they were added.
func (s *Session) DocumentIDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Resolve computes card positions for one document.
func (s *Session) Resolve(documentID string) ([]marginalia.CardPosition, error) {
	layout, ok := s.layouts[documentID]
	if !ok {
		return nil, fmt.Errorf("document %q not loaded", documentID)
	}
	return s.Resolver.ResolvePositions(layout, layout.Container(), s.Store.ListHighlights(documentID))
}

// Result is the resolve output for one document.
type Result struct {
	DocumentID string                    `json:"document"`
	Positions  []marginalia.CardPosition `json:"positions"`
	Omitted    []string                  `json:"omitted,omitempty"`
}

// ResolveAll resolves every document, listing highlights that got no card.
func (s *Session) ResolveAll() ([]Result, error) {
	results := make([]Result, 0, len(s.order))
	for _, id := range s.order {
		positions, err := s.Resolve(id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		placed := make(map[string]bool, len(positions))
		for _, p := range positions {
			placed[p.HighlightID] = true
		}
		var omitted []string
		for _, h := range s.Store.ListHighlights(id) {
			if !placed[h.ID] {
				omitted = append(omitted, h.ID)
			}
		}
		sort.Strings(omitted)
		results = append(results, Result{DocumentID: id, Positions: positions, Omitted: omitted})
	}
	return results, nil
}
