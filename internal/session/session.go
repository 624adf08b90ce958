// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/expert"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/stream"
	"github.com/jeranaias/rigchat/internal/transcript"
	"github.com/jeranaias/rigchat/internal/util"
)

var (
	// ErrEmptyTurn is returned for a turn with no text and no images.
	ErrEmptyTurn = errors.New("empty message")

	// ErrExpertUnavailable is returned when expert mode is on but no runner
	// was configured.
	ErrExpertUnavailable = errors.New("expert mode not configured")
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Options are the per-turn settings. They may change between turns.
type Options struct {
	Model               string
	SystemPrompt        string
	MaxCompletionTokens int
	Temperature         float64
	WebSearch           bool

	// Collection enables retrieval from the named vector store collection.
	Collection string

	// Expert routes turns through expert mode.
	Expert bool
}

// DefaultOptions returns the default turn settings.
func DefaultOptions() Options {
	return Options{
		Model:               cloud.DefaultModel,
		MaxCompletionTokens: 4000,
		Temperature:         0.7,
	}
}

// Retriever folds retrieved context into a system prompt.
// *retrieval.Client satisfies it.
type Retriever interface {
	Augment(ctx context.Context, collection, systemPrompt, query string) (string, int)
}

// Config holds the collaborators of a Session.
type Config struct {
	Store     *transcript.Store
	Transport stream.Transport

	// Formatter renders frames. Default: render.Markdown.
	Formatter render.Formatter

	// Retriever and Expert are optional.
	Retriever Retriever
	Expert    *expert.Runner

	Options Options
	Logger  *log.Logger
}

// Turn is one user input.
type Turn struct {
	Text string

	// Images are data: or https: URLs attached to the turn.
	Images []string
}

// =============================================================================
// SESSION
// =============================================================================

// Session runs chat turns against one transcript.
type Session struct {
	store     *transcript.Store
	assembler *stream.Assembler
	retriever Retriever
	expert    *expert.Runner
	logger    *log.Logger

	// sendMu orders concurrent Sends. turnMu guards the running turn.
	sendMu     sync.Mutex
	turnMu     sync.Mutex
	turnCancel context.CancelFunc
	turnDone   chan struct{}

	mu           sync.Mutex
	sessionID    string
	startTime    time.Time
	lastActivity time.Time
	options      Options
	restoreErr   error
	turns        int
}

// New creates a session and restores the transcript from storage. A
// corrupt transcript is logged and the session starts empty; the error is
// available from RestoreError.
func New(cfg Config) (*Session, error) {
	if cfg.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("session: transport is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := time.Now()
	s := &Session{
		store:     cfg.Store,
		assembler: stream.NewAssembler(cfg.Transport, cfg.Store, stream.WithFormatter(cfg.Formatter), stream.WithLogger(logger)),
		retriever: cfg.Retriever,
		expert:    cfg.Expert,
		logger:    logger,

		sessionID:    generateSessionID(),
		startTime:    now,
		lastActivity: now,
		options:      cfg.Options,
	}
	if s.options.Model == "" {
		s.options.Model = cloud.DefaultModel
	}

	s.restoreErr = cfg.Store.Restore()
	logger.Printf("SESSION_START | id=%s messages=%d restore_error=%v", s.sessionID, cfg.Store.Len(), s.restoreErr)
	return s, nil
}

// Send runs one turn. The user message is committed before the request is
// made; the assistant reply is committed by the assembler according to how
// the stream ends. The Result is non-nil whenever the turn reached the
// network.
//
// A turn still running is abandoned first, and Send waits for it to return,
// so its commit always lands before the new user message.
func (s *Session) Send(ctx context.Context, turn Turn, onRender stream.RenderFunc) (*stream.Result, error) {
	msg, err := turn.message()
	if err != nil {
		return nil, err
	}

	ctx, done := s.beginTurn(ctx)
	defer done()
	s.RecordActivity()
	opts := s.Options()

	history := s.store.Snapshot()
	if err := s.store.Append(msg); err != nil {
		return nil, fmt.Errorf("failed to record message: %w", err)
	}

	systemPrompt := opts.SystemPrompt
	if s.retriever != nil && opts.Collection != "" {
		var n int
		systemPrompt, n = s.retriever.Augment(ctx, opts.Collection, systemPrompt, msg.Text())
		if n > 0 {
			s.logger.Printf("SESSION_RAG | collection=%s passages=%d", opts.Collection, n)
		}
	}

	req := stream.BuildRequest(history, *msg, stream.RequestOptions{
		Model:               opts.Model,
		SystemPrompt:        systemPrompt,
		MaxCompletionTokens: opts.MaxCompletionTokens,
		Temperature:         opts.Temperature,
		WebSearch:           opts.WebSearch,
	})

	s.mu.Lock()
	s.turns++
	s.mu.Unlock()

	if !opts.Expert {
		return s.assembler.Stream(ctx, req, onRender)
	}
	if s.expert == nil {
		return nil, ErrExpertUnavailable
	}
	out, err := s.expert.Run(ctx, req, s.assembler, onRender)
	if out.Result == nil {
		return &stream.Result{State: stream.StateFailed}, err
	}
	return out.Result, err
}

func (t Turn) message() (*model.Message, error) {
	text := strings.TrimSpace(util.NormalizeInput(t.Text))
	if text == "" && len(t.Images) == 0 {
		return nil, ErrEmptyTurn
	}
	msg := model.NewUserMessage(text)
	if len(t.Images) > 0 {
		if text != "" {
			msg.Parts = append(msg.Parts, model.TextPart(text))
		}
		for _, img := range t.Images {
			msg.Parts = append(msg.Parts, model.ImagePart(img))
		}
	}
	return msg, nil
}

// beginTurn abandons the running turn, waits for it, and registers a new
// one. The returned func ends the new turn.
func (s *Session) beginTurn(parent context.Context) (context.Context, func()) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.abandonTurn()

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.turnMu.Lock()
	s.turnCancel, s.turnDone = cancel, done
	s.turnMu.Unlock()

	return ctx, func() {
		s.turnMu.Lock()
		if s.turnDone == done {
			s.turnCancel, s.turnDone = nil, nil
		}
		s.turnMu.Unlock()
		cancel()
		close(done)
	}
}

// abandonTurn stops the running turn and waits for its Send to return. The
// stream is abandoned before the turn context is cancelled, so a partial
// reply is never committed.
func (s *Session) abandonTurn() {
	s.assembler.Abandon()
	s.turnMu.Lock()
	cancel, done := s.turnCancel, s.turnDone
	s.turnMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Abandon stops the running turn without committing its reply and waits
// for it to end. It must not be called from a RenderFunc.
func (s *Session) Abandon() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.abandonTurn()
}

// Streaming reports whether a turn is in flight.
func (s *Session) Streaming() bool {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	return s.turnDone != nil
}

// Clear abandons any turn and empties the transcript.
func (s *Session) Clear() error {
	s.Abandon()
	s.RecordActivity()
	s.logger.Printf("SESSION_CLEAR | id=%s", s.SessionID())
	return s.store.Clear()
}

// History returns a copy of the committed transcript.
func (s *Session) History() []model.Message {
	return s.store.Snapshot()
}

// Store returns the underlying transcript.
func (s *Session) Store() *transcript.Store {
	return s.store
}

// RestoreError returns the error from restoring the transcript, if any.
func (s *Session) RestoreError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreErr
}

// Options returns the current turn settings.
func (s *Session) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

// SetOptions replaces the turn settings for subsequent turns.
func (s *Session) SetOptions(o Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Model == "" {
		o.Model = cloud.DefaultModel
	}
	s.options = o
}

// Update applies fn to the turn settings.
func (s *Session) Update(fn func(*Options)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.options)
	if s.options.Model == "" {
		s.options.Model = cloud.DefaultModel
	}
}

// HasExpert reports whether expert mode can be enabled.
func (s *Session) HasExpert() bool {
	return s.expert != nil
}

// =============================================================================
// ACTIVITY TRACKING
// =============================================================================

// SessionID returns the current session ID.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// StartTime returns when the session started.
func (s *Session) StartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime
}

// RecordActivity updates the last activity timestamp.
func (s *Session) RecordActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// Status is a point-in-time summary of a session.
type Status struct {
	SessionID string
	StartTime time.Time
	Duration  time.Duration
	IdleTime  time.Duration
	Turns     int
	Messages  int
	Model     string
	Expert    bool
	Streaming bool
}

// GetStatus returns the current session status.
func (s *Session) GetStatus() Status {
	streaming := s.assembler.Active()
	messages := s.store.Len()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	return Status{
		SessionID: s.sessionID,
		StartTime: s.startTime,
		Duration:  now.Sub(s.startTime),
		IdleTime:  now.Sub(s.lastActivity),
		Turns:     s.turns,
		Messages:  messages,
		Model:     s.options.Model,
		Expert:    s.options.Expert,
		Streaming: streaming,
	}
}

// generateSessionID creates a new session ID.
func generateSessionID() string {
	return "sess_" + formatTimestamp(time.Now())
}

// formatTimestamp formats a time for use in IDs.
func formatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}
