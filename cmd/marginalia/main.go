package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/phroun/marginalia"
	"github.com/phroun/marginalia/internal/fixture"
	"github.com/phroun/marginalia/internal/logging"
	"github.com/phroun/marginalia/internal/render"
	"github.com/phroun/marginalia/internal/session"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	fixtureFlag = &cli.StringFlag{
		Name:     "fixture",
		Aliases:  []string{"f"},
		Usage:    "YAML file with documents and highlights",
		Required: true,
	}
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   marginalia.ConfigFileName,
		Usage:   "TOML config file (defaults apply if missing)",
	}
	documentFlag = &cli.StringFlag{
		Name:    "document",
		Aliases: []string{"d"},
		Usage:   "Only handle this document",
	}
	scrollFlag = &cli.Float64Flag{
		Name:  "scroll",
		Usage: "Scroll offset applied before resolving",
	}
	// No short alias: -v belongs to --version
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Log at debug level",
	}
)

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "marginalia",
		Usage:     "Position comment cards beside highlighted document text",
		Version:   "v0.1.0",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags:     []cli.Flag{configFlag, verboseFlag},
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Aliases:   []string{"r"},
				Usage:     "Print card positions for each document",
				UsageText: "marginalia resolve --fixture highlights.yaml [--document id] [--scroll y] [--json]",
				Flags: []cli.Flag{
					fixtureFlag,
					documentFlag,
					scrollFlag,
					&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
				},
				Action: resolveAction,
			},
			{
				Name:      "render",
				Usage:     "Draw documents with their comment rail",
				UsageText: "marginalia render --fixture highlights.yaml [--document id] [--plain]",
				Flags: []cli.Flag{
					fixtureFlag,
					documentFlag,
					scrollFlag,
					&cli.IntFlag{Name: "rail", Value: 32, Usage: "Rail width in columns"},
					&cli.BoolFlag{Name: "plain", Usage: "Disable styling"},
				},
				Action: renderAction,
			},
			{
				Name:      "watch",
				Aliases:   []string{"w"},
				Usage:     "Re-resolve whenever the fixture changes",
				UsageText: "marginalia watch --fixture highlights.yaml [--interval 50ms]",
				Flags: []cli.Flag{
					fixtureFlag,
					documentFlag,
					&cli.DurationFlag{Name: "interval", Value: defaultFrameInterval, Usage: "Frame interval"},
				},
				Action: watchAction,
			},
			{
				Name:   "bench",
				Usage:  "Time resolves over a synthetic document",
				Flags:  benchFlags,
				Action: benchAction,
			},
		},
	}
}

func loadSession(cCtx *cli.Context) (*session.Session, *zap.Logger, error) {
	config, err := marginalia.ReadConfig(cCtx.String("config"))
	if err != nil {
		return nil, nil, err
	}
	level := config.Log.Level
	if cCtx.Bool("verbose") {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, nil, err
	}

	f, err := fixture.Load(cCtx.String("fixture"))
	if err != nil {
		return nil, logger, err
	}
	s, err := session.FromFixture(config, logger, f)
	if err != nil {
		return nil, logger, err
	}
	if y := cCtx.Float64("scroll"); y != 0 {
		for _, id := range s.DocumentIDs() {
			l, _ := s.Layout(id)
			l.ScrollTo(y)
		}
	}
	return s, logger, nil
}

func selectedDocuments(cCtx *cli.Context, s *session.Session) ([]string, error) {
	if id := cCtx.String("document"); id != "" {
		if _, ok := s.Layout(id); !ok {
			return nil, fmt.Errorf("document %q not in fixture", id)
		}
		return []string{id}, nil
	}
	return s.DocumentIDs(), nil
}

func resolveAction(cCtx *cli.Context) error {
	s, logger, err := loadSession(cCtx)
	if logger != nil {
		defer logger.Sync()
	}
	if err != nil {
		return err
	}

	results, err := s.ResolveAll()
	if err != nil {
		return err
	}
	if id := cCtx.String("document"); id != "" {
		filtered := results[:0]
		for _, r := range results {
			if r.DocumentID == id {
				filtered = append(filtered, r)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("document %q not in fixture", id)
		}
		results = filtered
	}

	out := cCtx.App.Writer
	if cCtx.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printResults(out, s, results)
	return nil
}

func printResults(out io.Writer, s *session.Session, results []session.Result) {
	for _, r := range results {
		fmt.Fprintf(out, "%s:\n", r.DocumentID)
		for _, p := range r.Positions {
			h, err := s.Store.Highlight(p.HighlightID)
			if err != nil {
				continue
			}
			fmt.Fprintf(out, "  %8.1f  %-10s %s\n", p.Top, h.Range, commentText(h))
		}
		for _, id := range r.Omitted {
			h, err := s.Store.Highlight(id)
			if err != nil {
				continue
			}
			fmt.Fprintf(out, "  %8s  %-10s %s\n", "-", h.Range, commentText(h))
		}
	}
}

func commentText(h marginalia.Highlight) string {
	if h.Comment == nil {
		return "(no comment)"
	}
	return fmt.Sprintf("%s: %s", h.Comment.UserName, h.Comment.Text)
}

func renderAction(cCtx *cli.Context) error {
	s, logger, err := loadSession(cCtx)
	if logger != nil {
		defer logger.Sync()
	}
	if err != nil {
		return err
	}
	ids, err := selectedDocuments(cCtx, s)
	if err != nil {
		return err
	}

	out := cCtx.App.Writer
	for _, id := range ids {
		positions, err := s.Resolve(id)
		if err != nil {
			return err
		}
		layout, _ := s.Layout(id)
		fmt.Fprintf(out, "== %s\n", id)
		fmt.Fprint(out, render.Document(layout, s.Store.ListHighlights(id), positions, render.Options{
			RailWidth: cCtx.Int("rail"),
			Plain:     cCtx.Bool("plain"),
		}))
	}
	return nil
}
