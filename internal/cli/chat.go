// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for rigchat CLI.
//
// Handles the "rigchat chat" command, a line-mode REPL over one persisted
// transcript.
//
// Command: chat
// Short:   Start an interactive chat session
// Aliases: (default command)
//
// Examples:
//   rigchat chat                         Start interactive chat
//   rigchat chat --model llama-3.3-70b   Use a specific model
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /clear, /c          Clear the transcript
//   /history            Show the transcript
//   /export FMT [PATH]  Export the transcript (markdown, json, html)
//   /models             List provider models
//   /model [name]       Show or switch model
//   /expert [on|off]    Toggle expert mode
//   /web [on|off]       Toggle web search
//   /image PATH|URL     Attach an image to the next message
//   /status, /s         Show session statistics
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel current generation (partial reply is kept)
//   Ctrl+D              Exit chat
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/peterh/liner"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/stream"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// scanReader reads lines from a non-terminal stdin.
type scanReader struct {
	scanner *bufio.Scanner
}

func newScanReader(r io.Reader) *scanReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1<<20)
	return &scanReader{scanner: s}
}

func (s *scanReader) ReadInput(string) (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

func (s *scanReader) Close() {}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// chatREPL holds the state of one interactive session.
type chatREPL struct {
	app    *App
	sess   *session.Session
	input  lineReader
	out    io.Writer
	errOut io.Writer

	// live streams deltas to a terminal and re-renders the reply when done.
	live   bool
	final  render.Formatter
	width  int
	height int

	// images are attached to the next message.
	images []string

	mu     sync.Mutex
	cancel context.CancelFunc

	failures int
}

// HandleChatCommand handles the "chat" command.
func HandleChatCommand(args Args) error {
	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.RequireAPIKey(); err != nil {
		return err
	}
	store, err := app.OpenStore()
	if err != nil {
		return err
	}
	sess, err := app.NewSession(store, render.Markdown{HideReasoning: app.Config.UI.HideReasoning})
	if err != nil {
		return err
	}

	var input lineReader
	if IsTTY() {
		input = NewChatCLI()
	} else {
		input = newScanReader(os.Stdin)
	}
	defer input.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go app.WatchConfig(ctx, sess)

	repl := newChatREPL(app, sess, input)
	if args.Expert {
		if err := repl.setExpert(true); err != nil {
			return err
		}
	}
	if args.WebSearch {
		sess.Update(func(o *session.Options) { o.WebSearch = true })
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if repl.cancelTurn() {
				fmt.Fprintln(repl.errOut, "\n"+RenderConditional(WarningStyle, "[Cancelled]"))
			}
		}
	}()

	return repl.run(ctx)
}

func newChatREPL(app *App, sess *session.Session, input lineReader) *chatREPL {
	width, height := GetTerminalSize()
	live := app.Config.UI.Render != "markdown" && isTerminalWriter(app.out)
	return &chatREPL{
		app:    app,
		sess:   sess,
		input:  input,
		out:    app.out,
		errOut: app.errOut,
		live:   live,
		final:  app.Formatter(),
		width:  width,
		height: height,
	}
}

// run is the main REPL loop. It returns when input ends or the user quits.
func (r *chatREPL) run(ctx context.Context) error {
	r.printWelcome()

	for {
		input, err := r.input.ReadInput(RenderConditional(promptStyle, "rigchat> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or end of piped input.
			fmt.Fprintln(r.out)
			r.printExitSummary()
			return nil
		}

		input = strings.TrimSpace(util.NormalizeInput(input))
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			cont, err := r.handleSlashCommand(ctx, input)
			if err != nil {
				r.printError(err)
			}
			if !cont {
				r.printExitSummary()
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			r.printExitSummary()
			return nil
		}

		if err := r.send(ctx, input); err != nil {
			r.failures++
			r.printError(err)
		}
	}
}

// cancelTurn cancels the in-flight turn. It reports whether one was running.
func (r *chatREPL) cancelTurn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

func (r *chatREPL) setCancel(cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// send runs one turn and prints the reply. A cancelled turn keeps the
// partial reply and is not reported as an error.
func (r *chatREPL) send(ctx context.Context, text string) error {
	turnCtx, cancel := context.WithCancel(ctx)
	r.setCancel(cancel)
	defer func() {
		r.setCancel(nil)
		cancel()
	}()

	turn := session.Turn{Text: text, Images: r.images}
	r.images = nil

	p := newStreamPrinter(r.out, r.live, r.app.Config.UI.HideReasoning)
	fmt.Fprintln(r.out)
	res, err := r.sess.Send(turnCtx, turn, p.onFrame)

	if res != nil {
		r.finish(p, res)
	}
	if perr := r.sess.Store().LastPersistError(); perr != nil {
		fmt.Fprintf(r.errOut, "%s transcript not saved: %v\n", RenderConditional(WarningStyle, "[Warning]"), perr)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) && res != nil && res.Committed != nil {
			return nil
		}
		return err
	}
	if res != nil {
		r.printStats(res)
	}
	return nil
}

// finish replaces or completes the live output with the final rendering.
func (r *chatREPL) finish(p *streamPrinter, res *stream.Result) {
	if !r.live {
		if out := strings.TrimRight(finalText(r.app.Config.UI.Render, r.final, res), "\n"); out != "" {
			fmt.Fprintln(r.out, out)
		}
		fmt.Fprintln(r.out)
		return
	}

	// Re-render in place when the streamed text is still on screen.
	if rows := p.rows(r.width); rows > 0 && rows < r.height && r.app.Config.UI.Render == "terminal" {
		o := termenv.NewOutput(r.out)
		if rows > 1 {
			o.ClearLines(rows - 1)
		}
		o.ClearLine()
		fmt.Fprint(r.out, "\r")
		fmt.Fprintln(r.out, strings.TrimRight(r.final.Format(res.View), "\n"))
		fmt.Fprintln(r.out)
		return
	}

	p.flush(res.View)
	if len(res.View.Citations) > 0 {
		fmt.Fprintf(r.out, "\n\n%s", sourcesText(res.View.Citations))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out)
}

// finalText renders a result for non-live output.
func finalText(mode string, f render.Formatter, res *stream.Result) string {
	if mode == "plain" {
		v := res.View
		text := plainContent(v)
		if len(v.Citations) > 0 {
			text += "\n\n" + sourcesText(v.Citations)
		}
		return text
	}
	if res.Rendered != "" || f == nil {
		return res.Rendered
	}
	return f.Format(res.View)
}

// plainContent returns the reply body with markers reduced to [N].
func plainContent(v render.View) string {
	body, _, _ := render.SplitThink(v.Content)
	return render.ReplaceRefs(body, v.Citations,
		func(n int, _ model.Citation) string { return fmt.Sprintf("[%d]", n) },
		func(n int) string { return fmt.Sprintf("[%d]", n) },
	)
}

// sourcesText renders citations as a plain numbered list.
func sourcesText(citations []model.Citation) string {
	var sb strings.Builder
	sb.WriteString("Sources:\n")
	for i, c := range citations {
		c = c.Normalize()
		fmt.Fprintf(&sb, "  [%d] %s - %s\n", i+1, c.Title, c.URL)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// printStats prints a one-line summary after a reply.
func (r *chatREPL) printStats(res *stream.Result) {
	s := res.Stats
	parts := []string{s.Model}
	if ttft := s.TimeToFirstToken(); ttft > 0 {
		parts = append(parts, "first token "+ttft.Round(time.Millisecond).String())
	}
	parts = append(parts, s.Duration().Round(time.Millisecond).String())
	if n := len(res.View.Citations); n > 0 {
		parts = append(parts, fmt.Sprintf("%d sources", n))
	}
	if s.Malformed > 0 {
		parts = append(parts, fmt.Sprintf("%d malformed chunks", s.Malformed))
	}
	fmt.Fprintf(r.errOut, "%s %s\n", RenderConditional(infoStyle, "[Stats]"), strings.Join(parts, " | "))
}

func (r *chatREPL) printError(err error) {
	fmt.Fprintf(r.errOut, "%s %v\n", RenderConditional(ErrorStyle, "[Error]"), err)
}

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes reply deltas as frames arrive. Frames whose text
// does not extend what is already on screen are skipped until one does.
type streamPrinter struct {
	w    io.Writer
	live bool
	hide bool

	printed  string
	thinking string
	header   bool

	// screen is everything written, for row counting.
	screen strings.Builder
}

func newStreamPrinter(w io.Writer, live, hideReasoning bool) *streamPrinter {
	return &streamPrinter{w: w, live: live, hide: hideReasoning}
}

func (p *streamPrinter) onFrame(f stream.Frame) {
	if !p.live {
		return
	}
	v := f.View
	text := liveText(v)

	if p.printed == "" && text == "" {
		if !v.HasReasoning || p.hide || !strings.HasPrefix(v.Reasoning, p.thinking) {
			return
		}
		if !p.header {
			p.writeStyled(reasoningStyle, "Thinking...\n")
			p.header = true
		}
		if delta := v.Reasoning[len(p.thinking):]; delta != "" {
			p.writeStyled(reasoningStyle, delta)
			p.thinking = v.Reasoning
		}
		return
	}

	if !strings.HasPrefix(text, p.printed) {
		return
	}
	if p.printed == "" && p.header {
		p.write("\n\n")
	}
	if delta := text[len(p.printed):]; delta != "" {
		p.write(delta)
		p.printed = text
	}
}

// flush writes whatever the final view adds to the printed text.
func (p *streamPrinter) flush(v render.View) {
	text := plainContent(v)
	if strings.HasPrefix(text, p.printed) {
		p.write(text[len(p.printed):])
		p.printed = text
	}
}

func (p *streamPrinter) write(s string) {
	fmt.Fprint(p.w, s)
	p.screen.WriteString(s)
}

func (p *streamPrinter) writeStyled(style lipgloss.Style, s string) {
	fmt.Fprint(p.w, RenderConditional(style, s))
	p.screen.WriteString(s)
}

// rows returns how many screen rows the live output occupies.
func (p *streamPrinter) rows(width int) int {
	if p.screen.Len() == 0 {
		return 0
	}
	return screenRows(p.screen.String(), width)
}

// liveText is the streamed body with complete markers reduced to [N] and a
// trailing incomplete marker held back.
func liveText(v render.View) string {
	text := plainContent(v)
	if i := strings.LastIndex(text, "[REF]"); i >= 0 {
		return text[:i]
	}
	for n := len("[REF"); n > 0; n-- {
		if strings.HasSuffix(text, "[REF"[:n]) {
			return text[:len(text)-n]
		}
	}
	return text
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands. It returns false to exit.
func (r *chatREPL) handleSlashCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()

	case "/clear", "/c":
		if err := r.sess.Clear(); err != nil {
			return true, fmt.Errorf("clear failed: %w", err)
		}
		r.images = nil
		fmt.Fprintln(r.out, RenderConditional(commandStyle, "[Conversation cleared]"))

	case "/history":
		printHistory(r.out, r.sess.History(), 0)

	case "/export":
		return true, r.export(args)

	case "/models":
		return true, r.listModels(ctx)

	case "/model", "/m":
		r.switchModel(args)

	case "/expert":
		on, err := toggleArg(args, r.sess.Options().Expert)
		if err != nil {
			return true, err
		}
		if err := r.setExpert(on); err != nil {
			return true, err
		}
		fmt.Fprintf(r.out, "%s Expert mode %s\n", RenderConditional(commandStyle, "[OK]"), onOff(on))

	case "/web":
		on, err := toggleArg(args, r.sess.Options().WebSearch)
		if err != nil {
			return true, err
		}
		r.sess.Update(func(o *session.Options) { o.WebSearch = on })
		fmt.Fprintf(r.out, "%s Web search %s\n", RenderConditional(commandStyle, "[OK]"), onOff(on))

	case "/image", "/img":
		return true, r.attachImage(args)

	case "/status", "/s":
		r.printStatus()

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		if hint := SuggestSlashCommand(command); hint != "" {
			return true, fmt.Errorf("unknown command: %s (did you mean %s?)", command, hint)
		}
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

func (r *chatREPL) setExpert(on bool) error {
	if on && !r.sess.HasExpert() {
		return fmt.Errorf("%w: set expert.models in the config file", session.ErrExpertUnavailable)
	}
	r.sess.Update(func(o *session.Options) { o.Expert = on })
	return nil
}

func (r *chatREPL) switchModel(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "%s Current model: %s\n",
			RenderConditional(infoStyle, "[Model]"),
			RenderConditional(commandStyle, r.sess.Options().Model))
		return
	}
	r.sess.Update(func(o *session.Options) { o.Model = args[0] })
	fmt.Fprintf(r.out, "%s Switched to model: %s\n", RenderConditional(commandStyle, "[OK]"), args[0])
}

func (r *chatREPL) listModels(ctx context.Context) error {
	ids, err := fetchModels(ctx, r.app)
	if err != nil {
		return err
	}
	current := r.sess.Options().Model
	for _, id := range ids {
		marker := "  "
		if id == current {
			marker = RenderConditional(commandStyle, "* ")
		}
		fmt.Fprintf(r.out, "%s%s\n", marker, id)
	}
	return nil
}

func (r *chatREPL) attachImage(args []string) error {
	if len(args) == 0 {
		if len(r.images) == 0 {
			return ErrMissingArgument("image", "/image ./diagram.png")
		}
		r.images = nil
		fmt.Fprintln(r.out, RenderConditional(commandStyle, "[Attachments cleared]"))
		return nil
	}
	url, err := session.ImageURL(strings.Join(args, " "))
	if err != nil {
		return err
	}
	r.images = append(r.images, url)
	fmt.Fprintf(r.out, "%s %d image(s) attached to the next message\n",
		RenderConditional(commandStyle, "[OK]"), len(r.images))
	return nil
}

func (r *chatREPL) export(args []string) error {
	if len(args) == 0 {
		return ErrMissingArgument("format", "/export markdown [path]")
	}
	path := ""
	if len(args) > 1 {
		path = args[1]
	}
	out, err := exportTranscript(r.app, r.sess.History(), r.sess.Options().Model, args[0], path)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s Exported to %s\n", RenderConditional(commandStyle, "[OK]"), out)
	return nil
}

// exportTranscript writes msgs in format to path (generated when empty).
func exportTranscript(app *App, msgs []model.Message, modelName, format, path string) (string, error) {
	if len(msgs) == 0 {
		return "", fmt.Errorf("nothing to export: the transcript is empty")
	}
	if path != "" {
		abs, err := ValidateOutputPath(path)
		if err != nil {
			return "", NewValidationError("path", path, err.Error())
		}
		path = abs
	}
	opts := export.DefaultOptions()
	opts.HideReasoning = app.Config.UI.HideReasoning
	opts.CodeStyle = app.Config.UI.CodeStyle
	return export.ToFile(export.FromMessages(msgs, modelName), format, path, opts)
}

// fetchModels lists provider model IDs, sorted.
func fetchModels(ctx context.Context, app *App) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, app.Config.Chat.Timeout())
	defer cancel()
	models, err := app.Client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// toggleArg parses an optional on/off argument; none flips current.
func toggleArg(args []string, current bool) (bool, error) {
	if len(args) == 0 {
		return !current, nil
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return current, NewValidationError("toggle", args[0], "expected on or off")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (r *chatREPL) printWelcome() {
	opts := r.sess.Options()
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, RenderConditional(welcomeStyle, "rigchat interactive chat"))
	fmt.Fprintln(r.out, RenderConditional(infoStyle, strings.Repeat("─", 30)))
	fmt.Fprintf(r.out, "%s %s\n", RenderConditional(infoStyle, "Model:"), RenderConditional(commandStyle, opts.Model))
	if opts.WebSearch {
		fmt.Fprintf(r.out, "%s %s\n", RenderConditional(infoStyle, "Web search:"), RenderConditional(commandStyle, "on"))
	}
	if opts.Expert {
		fmt.Fprintf(r.out, "%s %s\n", RenderConditional(infoStyle, "Expert:"), RenderConditional(commandStyle, "on"))
	}
	if n := len(r.sess.History()); n > 0 {
		fmt.Fprintf(r.out, "%s %d messages restored\n", RenderConditional(infoStyle, "History:"), n)
	}
	if err := r.sess.RestoreError(); err != nil {
		fmt.Fprintf(r.errOut, "%s saved transcript could not be read, starting empty: %v\n",
			RenderConditional(WarningStyle, "[Warning]"), err)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, RenderConditional(infoStyle, "Type your message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printHelp() {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, RenderConditional(TitleStyle, "Available Commands"))
	fmt.Fprintln(r.out, RenderConditional(infoStyle, strings.Repeat("─", 20)))
	fmt.Fprintln(r.out)

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Clear the transcript"},
		{"/history", "Show the transcript"},
		{"/export FMT [PATH]", "Export as markdown, json or html"},
		{"/models", "List provider models"},
		{"/model [name]", "Show or switch model"},
		{"/expert [on|off]", "Toggle expert mode"},
		{"/web [on|off]", "Toggle web search"},
		{"/image PATH|URL", "Attach an image to the next message"},
		{"/status, /s", "Show session statistics"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n",
			RenderConditional(commandStyle, fmt.Sprintf("%-20s", c.cmd)),
			RenderConditional(infoStyle, c.desc))
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, RenderConditional(infoStyle, "Tip: Ctrl+C cancels the current reply and keeps what arrived, Ctrl+D exits"))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printStatus() {
	st := r.sess.GetStatus()
	opts := r.sess.Options()

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, RenderConditional(TitleStyle, "Session Status"))
	fmt.Fprintln(r.out, RenderConditional(infoStyle, strings.Repeat("─", 20)))
	fmt.Fprintf(r.out, "  %s %s\n", RenderLabel("Session:"), st.SessionID)
	fmt.Fprintf(r.out, "  %s %s\n", RenderLabel("Model:"), st.Model)
	fmt.Fprintf(r.out, "  %s %s\n", RenderLabel("Web search:"), onOff(opts.WebSearch))
	fmt.Fprintf(r.out, "  %s %s\n", RenderLabel("Expert:"), onOff(st.Expert))
	fmt.Fprintf(r.out, "  %s %d\n", RenderLabel("Turns:"), st.Turns)
	fmt.Fprintf(r.out, "  %s %d\n", RenderLabel("Messages:"), st.Messages)
	fmt.Fprintf(r.out, "  %s %s\n", RenderLabel("Duration:"), session.FormatDuration(st.Duration))
	fmt.Fprintf(r.out, "  %s %s\n", RenderLabel("Transcript:"), r.sess.Store().Key())
	if len(r.images) > 0 {
		fmt.Fprintf(r.out, "  %s %d\n", RenderLabel("Attachments:"), len(r.images))
	}
	fmt.Fprintln(r.out)
}

// printHistory lists msgs one line each. limit > 0 shows only the last
// limit messages.
func printHistory(w io.Writer, msgs []model.Message, limit int) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, RenderConditional(infoStyle, "[No messages yet]"))
		return
	}
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}

	width := GetTerminalWidth()
	fmt.Fprintln(w)
	for i := start; i < len(msgs); i++ {
		msg := msgs[i]
		label := msg.Role.DisplayName()
		text := msg.Text()
		if n := msg.ImageCount(); n > 0 {
			text = fmt.Sprintf("%s [%d image(s)]", text, n)
		}
		prefix := fmt.Sprintf("  %d. %s: ", i+1, label)
		fmt.Fprintf(w, "  %d. %s: %s\n", i+1,
			RenderConditional(roleStyle(msg.Role), label),
			util.Oneline(text, max(width-util.Width(prefix), 20)))
	}
	fmt.Fprintln(w)
}

func (r *chatREPL) printExitSummary() {
	st := r.sess.GetStatus()
	if st.Turns == 0 {
		fmt.Fprintln(r.out, RenderConditional(infoStyle, "Goodbye!"))
		return
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, RenderConditional(TitleStyle, "Session Summary"))
	fmt.Fprintln(r.out, RenderConditional(infoStyle, strings.Repeat("─", 15)))
	fmt.Fprintf(r.out, "  %s %d\n", RenderLabel("Turns:"), st.Turns)
	if r.failures > 0 {
		fmt.Fprintf(r.out, "  %s %d\n", RenderLabel("Failed:"), r.failures)
	}
	fmt.Fprintf(r.out, "  %s %d\n", RenderLabel("Messages:"), st.Messages)
	fmt.Fprintf(r.out, "  %s %s\n", RenderLabel("Duration:"), session.FormatDuration(st.Duration))
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, RenderConditional(infoStyle, "Goodbye!"))
}
