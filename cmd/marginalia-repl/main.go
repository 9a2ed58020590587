package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/phroun/marginalia"
	"github.com/phroun/marginalia/internal/logging"
	"github.com/phroun/marginalia/internal/render"
	"github.com/phroun/marginalia/internal/session"
)

// REPL holds the state of the interactive session
type REPL struct {
	session   *session.Session
	scheduler *marginalia.Scheduler
	rails     map[string]*marginalia.Rail
	current   string

	reader *bufio.Reader
	out    io.Writer
}

func main() {
	config, err := marginalia.ReadConfig(marginalia.ConfigFileName)
	if err != nil {
		fmt.Printf("Error reading config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Must(config.Log.Level)
	defer logger.Sync()

	repl, err := newREPL(config, logger, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Printf("Error starting session: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Marginalia REPL - Highlight and Comment Rail Demo")
	fmt.Println("Type 'help' for available commands, 'quit' to exit")
	fmt.Println()
	repl.loop(true)
	repl.close()
}

func newREPL(config *marginalia.Config, logger *zap.Logger, in io.Reader, out io.Writer) (*REPL, error) {
	s, err := session.New(config, logger)
	if err != nil {
		return nil, err
	}
	return &REPL{
		session:   s,
		scheduler: marginalia.NewScheduler(),
		rails:     make(map[string]*marginalia.Rail),
		reader:    bufio.NewReader(in),
		out:       out,
	}, nil
}

func (r *REPL) loop(prompt bool) {
	for {
		if prompt {
			r.printf("marginalia> ")
		}
		input, err := r.reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input != "" && !r.handleCommand(input) {
			return
		}
		if err != nil {
			if prompt {
				r.printf("\nGoodbye!\n")
			}
			return
		}
	}
}

func (r *REPL) close() {
	for _, rail := range r.rails {
		rail.Close()
	}
}

func (r *REPL) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *REPL) handleCommand(input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return true
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help":
		r.printHelp()

	case "quit", "exit":
		r.printf("Goodbye!\n")
		return false

	case "new":
		r.cmdNew(args)

	case "open":
		r.cmdOpen(args)

	case "docs":
		r.cmdDocs()

	case "status":
		r.cmdStatus()

	case "find":
		r.cmdFind(args)

	case "add":
		r.cmdAdd(args)

	case "at":
		r.cmdAt(args)

	case "update":
		r.cmdUpdate(args)

	case "delete":
		r.cmdDelete(args)

	case "active":
		r.cmdActive(args)

	case "list":
		r.cmdList()

	case "scroll":
		r.cmdScroll(args)

	case "resize":
		r.cmdResize(args)

	case "mount", "unmount":
		r.cmdMount(cmd == "mount")

	case "positions":
		r.cmdPositions()

	case "render":
		r.cmdRender(args)

	default:
		r.printf("Unknown command: %s. Type 'help' for available commands.\n", cmd)
	}

	return true
}

func (r *REPL) printHelp() {
	help := `
Available Commands:
-------------------

DOCUMENTS:
  new <id> <text>             Create a document (use \n for paragraph breaks)
  open <id>                   Switch to a document
  docs                        List documents
  status                      Show current document status

HIGHLIGHTS:
  find <text>                 Show where text occurs in the current document
  add <start> <end> <comment> Highlight runes [start,end) with a comment
  at <l>:<r> <l>:<r> <comment> Highlight between two line:rune addresses
  update <id> <comment>       Replace a comment (ids may be abbreviated)
  delete <id>                 Delete a highlight
  active [<id>|none]          Show or change the active highlight
  list                        List highlights of the current document

VIEW:
  scroll <y>                  Scroll the document (cards do not move)
  resize <columns>            Rewrap the document (cards are re-resolved)
  mount | unmount             Simulate content appearing or disappearing
  positions                   Run the pending frame and print card positions
  render [plain]              Draw the document and its comment rail

OTHER:
  help                        Show this help message
  quit, exit                  Exit the REPL
`
	r.printf("%s\n", help)
}

func (r *REPL) cmdNew(args []string) {
	if len(args) < 1 {
		r.printf("Usage: new <id> <text>\n")
		return
	}
	id := args[0]
	text := strings.Join(args[1:], " ")
	text = strings.ReplaceAll(text, "\\n", "\n")

	layout := r.session.AddDocument(id, text)
	rail, ok := r.rails[id]
	if !ok {
		rail = marginalia.NewRail(r.session.Store, r.session.Resolver, r.scheduler, id)
		r.rails[id] = rail
	}
	rail.Mount(layout, layout.Container())
	r.current = id
	r.printf("Created document %q with %d runes in %d lines\n", id, layout.Len(), len(layout.Lines()))
}

func (r *REPL) cmdOpen(args []string) {
	if len(args) < 1 {
		r.printf("Usage: open <id>\n")
		return
	}
	if _, ok := r.session.Layout(args[0]); !ok {
		r.printf("No document %q\n", args[0])
		return
	}
	r.current = args[0]
	r.printf("Switched to %q\n", r.current)
}

func (r *REPL) cmdDocs() {
	for _, id := range r.session.DocumentIDs() {
		marker := " "
		if id == r.current {
			marker = "*"
		}
		r.printf("%s %s (%d highlights)\n", marker, id, len(r.session.Store.ListHighlights(id)))
	}
}

func (r *REPL) cmdStatus() {
	layout, ok := r.ensureDocument()
	if !ok {
		return
	}
	opts := layout.Options()
	r.printf("Document %q:\n", r.current)
	r.printf("  Runes: %d, lines: %d, height: %.0fpx\n", layout.Len(), len(layout.Lines()), layout.Height())
	r.printf("  Columns: %d, scroll: %.0fpx\n", opts.Columns, layout.ScrollY())
	r.printf("  Highlights: %d, store revision: %d\n", len(r.session.Store.ListHighlights(r.current)), r.session.Store.Revision())
	if id, ok := r.session.Store.ActiveHighlight(); ok {
		r.printf("  Active: %s\n", id)
	}
	ran, dropped := r.scheduler.Stats()
	r.printf("  Frames: %d run, %d superseded, pending: %v\n", ran, dropped, r.scheduler.Pending())
}

func (r *REPL) cmdFind(args []string) {
	layout, ok := r.ensureDocument()
	if !ok {
		return
	}
	needle := strings.Join(args, " ")
	matches, err := marginalia.FindStringAll(layout.Text(), needle, marginalia.SearchOptions{})
	if err != nil {
		r.printf("Find error: %v\n", err)
		return
	}
	if len(matches) == 0 {
		r.printf("No matches\n")
		return
	}
	for _, m := range matches {
		r.printf("  %s %q\n", m.Range, m.Match)
	}
}

func (r *REPL) cmdAdd(args []string) {
	if _, ok := r.ensureDocument(); !ok {
		return
	}
	if len(args) < 3 {
		r.printf("Usage: add <start> <end> <comment>\n")
		return
	}
	start, err1 := strconv.Atoi(args[0])
	end, err2 := strconv.Atoi(args[1])
	if err := errors.Join(err1, err2); err != nil {
		r.printf("Invalid offsets: %v\n", err)
		return
	}
	r.addHighlight(marginalia.TextRange{Start: start, End: end}, strings.Join(args[2:], " "))
}

func (r *REPL) cmdAt(args []string) {
	layout, ok := r.ensureDocument()
	if !ok {
		return
	}
	if len(args) < 3 {
		r.printf("Usage: at <line>:<rune> <line>:<rune> <comment>\n")
		return
	}
	start, err1 := parseLineAddress(args[0])
	end, err2 := parseLineAddress(args[1])
	if err := errors.Join(err1, err2); err != nil {
		r.printf("Invalid address: %v\n", err)
		return
	}
	rng, err := marginalia.RangeBetween(layout.Text(), start, end)
	if err != nil {
		r.printf("Invalid range: %v\n", err)
		return
	}
	r.addHighlight(rng, strings.Join(args[2:], " "))
}

func (r *REPL) addHighlight(rng marginalia.TextRange, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		r.printf("Comment text is required\n")
		return
	}
	h, err := r.session.Store.AddHighlight(r.current, rng, &marginalia.Comment{UserName: "you", Text: text})
	if err != nil {
		r.printf("Add error: %v\n", err)
		return
	}
	r.printf("Added %s at %s\n", shortID(h.ID), h.Range)
}

func (r *REPL) cmdUpdate(args []string) {
	if len(args) < 2 {
		r.printf("Usage: update <id> <comment>\n")
		return
	}
	id, ok := r.lookupID(args[0])
	if !ok {
		return
	}
	text := strings.TrimSpace(strings.Join(args[1:], " "))
	if text == "" {
		r.printf("Comment text is required\n")
		return
	}
	if err := r.session.Store.UpdateComment(id, text); err != nil {
		r.printf("Update error: %v\n", err)
		return
	}
	r.printf("Updated %s\n", shortID(id))
}

func (r *REPL) cmdDelete(args []string) {
	if len(args) < 1 {
		r.printf("Usage: delete <id>\n")
		return
	}
	id, ok := r.lookupID(args[0])
	if !ok {
		return
	}
	// A stale id is not worth interrupting the user over
	if err := r.session.Store.DeleteHighlight(id); err != nil && !errors.Is(err, marginalia.ErrNotFound) {
		r.printf("Delete error: %v\n", err)
		return
	}
	r.printf("Deleted %s\n", shortID(id))
}

func (r *REPL) cmdActive(args []string) {
	if len(args) == 0 {
		if id, ok := r.session.Store.ActiveHighlight(); ok {
			r.printf("Active: %s\n", shortID(id))
		} else {
			r.printf("No active highlight\n")
		}
		return
	}
	if strings.EqualFold(args[0], "none") {
		r.session.Store.SetActiveHighlight("")
		r.printf("Cleared active highlight\n")
		return
	}
	id, ok := r.lookupID(args[0])
	if !ok {
		return
	}
	rail, ok := r.rails[r.current]
	if !ok {
		r.session.Store.SetActiveHighlight(id)
		return
	}
	r.scheduler.Flush()
	card, err := rail.Select(id)
	if err != nil {
		r.printf("Active: %s (no card yet)\n", shortID(id))
		return
	}
	r.printf("Active: %s, card at %.0fpx\n", shortID(id), card.Top)
}

func (r *REPL) cmdList() {
	if _, ok := r.ensureDocument(); !ok {
		return
	}
	active, _ := r.session.Store.ActiveHighlight()
	for _, h := range r.session.Store.ListHighlights(r.current) {
		marker := " "
		if h.ID == active {
			marker = "*"
		}
		comment := ""
		if h.Comment != nil {
			comment = h.Comment.UserName + ": " + h.Comment.Text
		}
		r.printf("%s %s %-10s %s\n", marker, shortID(h.ID), h.Range, comment)
	}
}

func (r *REPL) cmdScroll(args []string) {
	layout, ok := r.ensureDocument()
	if !ok {
		return
	}
	if len(args) < 1 {
		r.printf("Usage: scroll <y>\n")
		return
	}
	y, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		r.printf("Invalid offset: %v\n", err)
		return
	}
	layout.ScrollTo(y)
	r.rails[r.current].Scrolled()
	r.printf("Scrolled to %.0fpx\n", y)
}

func (r *REPL) cmdResize(args []string) {
	layout, ok := r.ensureDocument()
	if !ok {
		return
	}
	if len(args) < 1 {
		r.printf("Usage: resize <columns>\n")
		return
	}
	columns, err := strconv.Atoi(args[0])
	if err != nil {
		r.printf("Invalid columns: %v\n", err)
		return
	}
	if err := layout.Resize(columns); err != nil {
		r.printf("Resize error: %v\n", err)
		return
	}
	r.rails[r.current].Resized()
	r.printf("Rewrapped to %d columns, %d lines\n", columns, len(layout.Lines()))
}

func (r *REPL) cmdMount(mounted bool) {
	layout, ok := r.ensureDocument()
	if !ok {
		return
	}
	layout.SetMounted(mounted)
	r.rails[r.current].Mount(layout, layout.Container())
	r.printf("Mounted: %v\n", mounted)
}

func (r *REPL) cmdPositions() {
	if _, ok := r.ensureDocument(); !ok {
		return
	}
	r.scheduler.Flush()
	rail := r.rails[r.current]
	if err := rail.Err(); err != nil {
		r.printf("Resolve error: %v\n", err)
		return
	}
	positions := rail.Positions()
	if len(positions) == 0 {
		r.printf("No cards\n")
		return
	}
	for _, p := range positions {
		r.printf("  %s %8.1fpx\n", shortID(p.HighlightID), p.Top)
	}
}

func (r *REPL) cmdRender(args []string) {
	layout, ok := r.ensureDocument()
	if !ok {
		return
	}
	r.scheduler.Flush()
	active, _ := r.session.Store.ActiveHighlight()
	plain := len(args) > 0 && args[0] == "plain"
	r.printf("%s", render.Document(layout, r.session.Store.ListHighlights(r.current), r.rails[r.current].Positions(), render.Options{
		ActiveID: active,
		Plain:    plain,
	}))
}

func (r *REPL) ensureDocument() (*marginalia.Layout, bool) {
	layout, ok := r.session.Layout(r.current)
	if !ok {
		r.printf("No document is open. Use 'new <id> <text>' to create one.\n")
		return nil, false
	}
	return layout, true
}

// lookupID expands an abbreviated highlight id within the current document.
func (r *REPL) lookupID(prefix string) (string, bool) {
	var matches []string
	for _, h := range r.session.Store.ListHighlights(r.current) {
		if strings.HasPrefix(h.ID, prefix) {
			matches = append(matches, h.ID)
		}
	}
	switch len(matches) {
	case 0:
		r.printf("No highlight %q\n", prefix)
		return "", false
	case 1:
		return matches[0], true
	default:
		r.printf("Ambiguous id %q (%d matches)\n", prefix, len(matches))
		return "", false
	}
}

func parseLineAddress(s string) (marginalia.Address, error) {
	line, col, ok := strings.Cut(s, ":")
	if !ok {
		return marginalia.Address{}, fmt.Errorf("%q is not line:rune", s)
	}
	l, err := strconv.Atoi(line)
	if err != nil {
		return marginalia.Address{}, err
	}
	c, err := strconv.Atoi(col)
	if err != nil {
		return marginalia.Address{}, err
	}
	return marginalia.LineAddress(l, c), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
