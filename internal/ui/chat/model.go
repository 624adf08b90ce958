// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/stream"
	"github.com/jeranaias/rigchat/internal/ui/styles"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// STATE
// =============================================================================

// State is the turn state shown in the header.
type State int

const (
	// StateReady means no turn is in flight.
	StateReady State = iota
	// StateStreaming means a reply is arriving.
	StateStreaming
	// StateError means the last turn failed.
	StateError
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Layout heights. They must match what view.go renders.
const (
	headerHeight    = 1
	inputHeight     = 3
	inputAreaHeight = inputHeight + 2 // rounded border
	statusBarHeight = 1
	minFormatWidth  = 20
)

// =============================================================================
// MODEL
// =============================================================================

// Config configures the chat model.
type Config struct {
	Session *session.Session

	// Style is the glamour style for replies.
	Style         string
	HideReasoning bool
	Logger        *log.Logger

	// ListModels backs /models. Optional.
	ListModels func(ctx context.Context) ([]string, error)

	// Export backs /export and returns the written path. Optional.
	Export func(format, path string) (string, error)
}

// Model is the Bubble Tea model of the chat interface.
type Model struct {
	sess       *session.Session
	logger     *log.Logger
	listModels func(context.Context) ([]string, error)
	export     func(format, path string) (string, error)

	// Reply rendering. cache maps message IDs to rendered replies and is
	// reset whenever the formatter changes.
	style         string
	hideReasoning bool
	formatter     render.Formatter
	formatWidth   int
	cache         map[string]string

	// entries is the display log: transcript messages plus local notices.
	entries []model.Message
	images  []string

	state   State
	live    stream.Frame
	liveOut string
	buffer  *frameBuffer
	turn    *turnControl
	turnID  int
	started time.Time

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model
	keyMap   KeyMap
	guard    *contentGuard
	theme    *styles.Theme

	width    int
	height   int
	ready    bool
	showHelp bool

	notice      string
	noticeError bool
	noticeSeq   int
}

// New creates the chat model. The display log starts from the session's
// restored transcript.
func New(cfg Config) Model {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	ta := textarea.New()
	ta.Placeholder = "Message (Enter to send, /help for commands)"
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: styles.LineSpinner.Frames,
		FPS:    styles.LineSpinner.Duration(),
	}
	sp.Style = lipgloss.NewStyle().Foreground(styles.Purple)

	theme := styles.NewTheme()
	m := Model{
		sess:          cfg.Session,
		logger:        logger,
		listModels:    cfg.ListModels,
		export:        cfg.Export,
		style:         theme.GlamourStyle(cfg.Style),
		hideReasoning: cfg.HideReasoning,
		cache:         make(map[string]string),
		buffer:        newFrameBuffer(),
		turn:          newTurnControl(),
		viewport:      viewport.New(80, 20),
		input:         ta,
		spinner:       sp,
		help:          help.New(),
		keyMap:        DefaultKeyMap(),
		guard:         newContentGuard(),
		theme:         theme,
	}
	if cfg.Session != nil {
		m.entries = cfg.Session.History()
		if err := cfg.Session.RestoreError(); err != nil {
			m.addNotice(model.RoleError, fmt.Sprintf("Saved transcript could not be read, starting empty: %v", err))
		}
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, tea.SetWindowTitle("rigchat"))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if m.state != StateStreaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh(false)
		return m, cmd

	case StreamTickMsg:
		return m.handleStreamTick()

	case StreamDoneMsg:
		return m.handleStreamDone(msg)

	case ModelsMsg:
		return m.handleModels(msg)

	case ExportMsg:
		if msg.Err != nil {
			return m, m.setNotice(fmt.Sprintf("Export failed: %v", msg.Err), true)
		}
		m.logger.Printf("TUI_EXPORT | path=%s", msg.Path)
		return m, m.setNotice("Exported to "+msg.Path, false)

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
			m.noticeError = false
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	vpHeight := m.height - headerHeight - inputAreaHeight - statusBarHeight
	if m.showHelp {
		vpHeight -= helpHeight(m.keyMap)
	}
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = max(vpHeight, 1)
	m.input.SetWidth(max(m.width-2, 1))
	m.help.Width = m.width

	if w := max(m.width-4, minFormatWidth); w != m.formatWidth || m.formatter == nil {
		m.formatWidth = w
		m.rebuildFormatter()
	}
	m.ready = true
	m.refresh(true)
	return m, nil
}

// rebuildFormatter creates the reply renderer for the current width and
// reasoning setting and drops cached renderings.
func (m *Model) rebuildFormatter() {
	width := max(m.formatWidth, minFormatWidth)
	t, err := render.NewTerminal(m.style, width)
	if err != nil {
		m.logger.Printf("TUI_RENDERER_FAILED | style=%s error=%q", m.style, err)
		m.formatter = render.Markdown{HideReasoning: m.hideReasoning}
	} else {
		t.SetHideReasoning(m.hideReasoning)
		m.formatter = t
	}
	m.cache = make(map[string]string)
	m.guard.invalidate()
}

// refresh redraws the conversation into the viewport, following the
// bottom when the view was already there.
func (m *Model) refresh(force bool) {
	if !m.ready {
		return
	}
	content := m.renderMessages()
	if force {
		m.guard.invalidate()
	}
	if !m.guard.changed(content) {
		return
	}
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() <= m.viewport.Height
	m.viewport.SetContent(content)
	if atBottom || force {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		return m.quit()

	case key.Matches(msg, m.keyMap.Interrupt):
		if m.state == StateStreaming {
			return m.stopTurn()
		}
		return m.quit()

	case key.Matches(msg, m.keyMap.Cancel):
		if m.state == StateStreaming {
			return m.stopTurn()
		}
		if m.showHelp {
			return m.toggleHelp()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keyMap.Bottom):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keyMap.Clear):
		return m.clearConversation()

	case key.Matches(msg, m.keyMap.ToggleReasoning):
		m.hideReasoning = !m.hideReasoning
		m.rebuildFormatter()
		m.refresh(false)
		if m.hideReasoning {
			return m, m.setNotice("Reasoning hidden", false)
		}
		return m, m.setNotice("Reasoning shown", false)

	case key.Matches(msg, m.keyMap.Help):
		return m.toggleHelp()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) toggleHelp() (tea.Model, tea.Cmd) {
	m.showHelp = !m.showHelp
	if !m.ready {
		return m, nil
	}
	return m.handleResize(tea.WindowSizeMsg{Width: m.width, Height: m.height})
}

// quit abandons any stream in flight, so nothing partial is committed.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.state == StateStreaming {
		m.sess.Abandon()
		m.turn.stop()
		m.logger.Printf("TUI_QUIT | abandoned=true")
	}
	return m, tea.Quit
}

// =============================================================================
// TURNS
// =============================================================================

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	raw := m.input.Value()
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.handleCommand(text)
	}
	if text == "" && len(m.images) == 0 {
		return m, nil
	}
	if m.state == StateStreaming {
		return m, m.setNotice("A reply is still streaming (Esc to stop it)", true)
	}
	if m.sess == nil {
		return m, m.setNotice("No session", true)
	}

	m.input.Reset()
	turn := session.Turn{Text: raw, Images: m.images}
	m.images = nil
	return m.startTurn(turn)
}

// startTurn shows the user message and sends the turn.
func (m Model) startTurn(turn session.Turn) (tea.Model, tea.Cmd) {
	user := model.NewUserMessage(strings.TrimSpace(turn.Text))
	for _, img := range turn.Images {
		user.Parts = append(user.Parts, model.ImagePart(img))
	}
	if len(user.Parts) > 0 && user.Content != "" {
		user.Parts = append([]model.ContentPart{model.TextPart(user.Content)}, user.Parts...)
	}
	m.entries = append(m.entries, *user)

	m.turnID++
	m.buffer.Reset()
	m.live = stream.Frame{}
	m.liveOut = ""
	m.state = StateStreaming
	m.started = time.Now()
	ctx := m.turn.start(context.Background())

	opts := m.sess.Options()
	m.logger.Printf("TUI_SEND | turn=%d model=%s expert=%t web=%t images=%d",
		m.turnID, opts.Model, opts.Expert, opts.WebSearch, len(turn.Images))
	m.refresh(true)

	return m, tea.Batch(
		sendCmd(ctx, m.sess, turn, m.turnID, m.buffer),
		streamTickCmd(),
		m.spinner.Tick,
	)
}

// stopTurn cancels the turn in flight. The partial reply is kept.
func (m Model) stopTurn() (tea.Model, tea.Cmd) {
	if m.turn.stop() {
		m.logger.Printf("TUI_CANCEL | turn=%d", m.turnID)
	}
	return m, nil
}

func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if m.state != StateStreaming {
		return m, nil
	}
	if f, ok := m.buffer.Flush(); ok {
		m.setLive(f)
		m.refresh(false)
	}
	return m, streamTickCmd()
}

// setLive renders f as the reply in progress.
func (m *Model) setLive(f stream.Frame) {
	m.live = f
	m.liveOut = ""
	if m.formatter != nil && (f.View.Content != "" || f.View.HasReasoning) {
		m.liveOut = m.formatter.Format(f.View)
	}
}

func (m Model) handleStreamDone(msg StreamDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Turn != m.turnID {
		return m, nil
	}
	m.turn.stop()
	frames := m.buffer.Frames()
	m.buffer.Reset()
	m.live = stream.Frame{}
	m.liveOut = ""
	m.state = StateReady

	res, err := msg.Result, msg.Err
	committed := res != nil && res.Committed != nil
	if committed {
		m.entries = append(m.entries, *res.Committed)
	}

	elapsed := time.Since(m.started).Round(time.Millisecond)
	m.logger.Printf("TUI_TURN_DONE | turn=%d frames=%d committed=%t elapsed=%s error=%v",
		msg.Turn, frames, committed, elapsed, err)

	var cmd tea.Cmd
	switch {
	case err == nil:
	case errors.Is(err, stream.ErrAbandoned):
	case errors.Is(err, context.Canceled):
		if committed {
			m.addNotice(model.RoleSystem, "Reply stopped. The partial reply was kept.")
		} else {
			m.addNotice(model.RoleSystem, "Reply stopped.")
		}
	default:
		m.state = StateError
		text := describeError(err)
		if committed {
			text += " (partial reply kept)"
		}
		m.addNotice(model.RoleError, text)
		cmd = m.setNotice("Turn failed", true)
	}

	m.refresh(false)
	return m, cmd
}

// describeError turns a Send error into a one-line notice.
func describeError(err error) string {
	var httpErr *stream.HTTPError
	var upErr *stream.UpstreamError
	switch {
	case errors.Is(err, session.ErrExpertUnavailable):
		return "Expert mode is not configured: set expert.models in the config file"
	case errors.As(err, &httpErr):
		if body := strings.TrimSpace(httpErr.Body); body != "" {
			return fmt.Sprintf("Provider returned HTTP %d: %s", httpErr.Status, util.Oneline(body, 200))
		}
		return fmt.Sprintf("Provider returned HTTP %d", httpErr.Status)
	case errors.As(err, &upErr):
		return "Provider error: " + upErr.Message
	case errors.Is(err, stream.ErrIncompleteStream):
		return "The connection closed before the reply finished"
	default:
		return "Error: " + err.Error()
	}
}

// =============================================================================
// NOTICES
// =============================================================================

// addNotice appends a local message to the display log. Notices are never
// written to the transcript.
func (m *Model) addNotice(role model.Role, text string) {
	m.entries = append(m.entries, *model.NewMessage(role, text))
}

// setNotice shows text in the status bar until it expires.
func (m *Model) setNotice(text string, isErr bool) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	m.noticeError = isErr
	return expireNoticeCmd(m.noticeSeq)
}

func (m Model) clearConversation() (tea.Model, tea.Cmd) {
	if err := m.sess.Clear(); err != nil {
		return m, m.setNotice(fmt.Sprintf("Clear failed: %v", err), true)
	}
	m.turn.stop()
	m.turnID++
	m.buffer.Reset()
	m.live = stream.Frame{}
	m.liveOut = ""
	m.state = StateReady
	m.entries = nil
	m.images = nil
	m.cache = make(map[string]string)
	m.refresh(true)
	m.logger.Printf("TUI_CLEAR | session=%s", m.sess.SessionID())
	return m, m.setNotice("Conversation cleared", false)
}
