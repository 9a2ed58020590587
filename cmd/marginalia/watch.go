package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phroun/marginalia"
	"github.com/phroun/marginalia/internal/fixture"
	"github.com/phroun/marginalia/internal/logging"
	"github.com/phroun/marginalia/internal/session"
)

const defaultFrameInterval = 50 * time.Millisecond

// fixtureWatcher reloads a fixture when it changes and keeps one rail per
// document positioned. Reloads and resolves both run as scheduler frames,
// so a burst of file events produces one reload and one print per document.
type fixtureWatcher struct {
	path     string
	config   *marginalia.Config
	logger   *zap.Logger
	document string

	scheduler *marginalia.Scheduler

	mu      sync.Mutex
	out     io.Writer
	session *session.Session
	rails   []*marginalia.Rail
	reloads int
}

func newFixtureWatcher(path string, config *marginalia.Config, logger *zap.Logger, out io.Writer) *fixtureWatcher {
	return &fixtureWatcher{
		path:      filepath.Clean(path),
		config:    config,
		logger:    logger,
		out:       out,
		scheduler: marginalia.NewScheduler(),
	}
}

func watchAction(cCtx *cli.Context) error {
	config, err := marginalia.ReadConfig(cCtx.String("config"))
	if err != nil {
		return err
	}
	level := config.Log.Level
	if cCtx.Bool("verbose") {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := newFixtureWatcher(cCtx.String("fixture"), config, logger, cCtx.App.Writer)
	w.document = cCtx.String("document")
	err = w.Run(ctx, cCtx.Duration("interval"))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Run watches until ctx is done.
func (w *fixtureWatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultFrameInterval
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of writing it
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	w.scheduler.Request("fixture", w.reload)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.scheduler.Run(ctx, ticker.C)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					w.logger.Debug("fixture changed", zap.String("op", event.Op.String()))
					w.scheduler.Request("fixture", w.reload)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	})
	err = g.Wait()

	w.mu.Lock()
	for _, r := range w.rails {
		r.Close()
	}
	w.rails = nil
	w.mu.Unlock()
	return err
}

// reload replaces the session. A fixture that fails to load keeps the
// previous session on screen.
func (w *fixtureWatcher) reload() {
	f, err := fixture.Load(w.path)
	if err != nil {
		w.logger.Warn("fixture not loaded", zap.String("path", w.path), zap.Error(err))
		return
	}
	s, err := session.FromFixture(w.config, w.logger, f)
	if err != nil {
		w.logger.Warn("fixture rejected", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.rails {
		r.Close()
	}
	w.rails = w.rails[:0]
	w.session = s
	w.reloads++

	for _, id := range s.DocumentIDs() {
		if w.document != "" && id != w.document {
			continue
		}
		layout, _ := s.Layout(id)
		rail := marginalia.NewRail(s.Store, s.Resolver, w.scheduler, id)
		rail.OnApply(w.printer(s, id))
		rail.Mount(layout, layout.Container())
		w.rails = append(w.rails, rail)
	}
}

func (w *fixtureWatcher) printer(s *session.Session, documentID string) func([]marginalia.CardPosition, error) {
	return func(positions []marginalia.CardPosition, err error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if err != nil {
			fmt.Fprintf(w.out, "%s: %v\n", documentID, err)
			return
		}
		result := session.Result{DocumentID: documentID, Positions: positions}
		placed := make(map[string]bool, len(positions))
		for _, p := range positions {
			placed[p.HighlightID] = true
		}
		for _, h := range s.Store.ListHighlights(documentID) {
			if !placed[h.ID] {
				result.Omitted = append(result.Omitted, h.ID)
			}
		}
		printResults(w.out, s, []session.Result{result})
	}
}
