// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
)

// =============================================================================
// STATE
// =============================================================================

// State is the lifecycle position of one request.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleted
	StateFailed
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateAbandoned
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Transport opens a streaming completion. *cloud.Client satisfies it.
type Transport interface {
	Open(ctx context.Context, req cloud.ChatRequest) (*http.Response, error)
}

// Committer receives the single assistant message of a stream.
// *transcript.Store satisfies it.
type Committer interface {
	Append(msg *model.Message) error
}

// Frame is one rendering of the in-flight response.
type Frame struct {
	State    State
	View     render.View
	Rendered string
}

// RenderFunc receives a Frame after every visible change.
type RenderFunc func(Frame)

// Result describes how a stream ended.
type Result struct {
	State State

	// Committed is the message appended to the transcript, if any.
	Committed *model.Message

	// View and Rendered hold the final state, including partial output of
	// failed streams.
	View     render.View
	Rendered string

	Stats Stats
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// Assembler runs one stream at a time. Starting a new stream abandons the
// previous one.
type Assembler struct {
	transport Transport
	committer Committer
	formatter render.Formatter
	logger    *log.Logger

	mu      sync.Mutex
	current *run
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithFormatter sets the formatter used for frames. Default: render.Markdown.
func WithFormatter(f render.Formatter) Option {
	return func(a *Assembler) {
		if f != nil {
			a.formatter = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAssembler creates an assembler. A nil committer disables commits.
func NewAssembler(transport Transport, committer Committer, opts ...Option) *Assembler {
	a := &Assembler{
		transport: transport,
		committer: committer,
		formatter: render.Markdown{},
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Active reports whether a stream is in flight.
func (a *Assembler) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current != nil
}

// Abandon cancels the in-flight stream, if any, and waits for it to return.
// The abandoned stream renders no further frames and commits nothing. A
// stream that already reached Completed or Failed finishes its commit before
// Abandon returns. Abandon must not be called from a RenderFunc.
func (a *Assembler) Abandon() {
	a.mu.Lock()
	r := a.current
	a.mu.Unlock()
	if r != nil {
		r.abandon()
		<-r.done
	}
}

// run is the per-request state shared between Stream and Abandon.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	acc    *Accumulator

	// done is closed when Stream returns.
	done chan struct{}

	mu    sync.Mutex
	state State
}

func (r *run) setState(s State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return false
	}
	r.state = s
	return true
}

func (r *run) getState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *run) abandon() {
	if r.setState(StateAbandoned) {
		r.cancel()
	}
}

func (a *Assembler) begin(ctx context.Context) *run {
	rctx, cancel := context.WithCancel(ctx)
	r := &run{ctx: rctx, cancel: cancel, acc: NewAccumulator(), done: make(chan struct{}), state: StateIdle}

	a.mu.Lock()
	prev := a.current
	a.current = r
	a.mu.Unlock()

	if prev != nil {
		a.logger.Printf("STREAM_SUPERSEDED | previous=%s", prev.getState())
		prev.abandon()
		<-prev.done
	}
	return r
}

func (a *Assembler) finish(r *run) {
	a.mu.Lock()
	if a.current == r {
		a.current = nil
	}
	a.mu.Unlock()
	r.cancel()
	close(r.done)
}

// Stream sends req and assembles the response. onRender may be nil.
//
// The returned error is nil for Completed streams, ErrAbandoned for abandoned
// ones, and a *StreamError wrapping an *HTTPError, *UpstreamError or
// *TransportError for failed ones. The Result is never nil.
func (a *Assembler) Stream(ctx context.Context, req cloud.ChatRequest, onRender RenderFunc) (*Result, error) {
	r := a.begin(ctx)
	defer a.finish(r)

	r.setState(StateSending)
	a.logger.Printf("STREAM_START | model=%s messages=%d", req.Model, len(req.Messages))

	resp, err := a.transport.Open(r.ctx, req)
	if err != nil {
		return a.fail(r, req, r.transportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return a.fail(r, req, &HTTPError{Status: resp.StatusCode, Body: cloud.ReadErrorBody(resp.Body)})
	}

	if !r.setState(StateStreaming) {
		return a.fail(r, req, &TransportError{Err: context.Canceled})
	}

	reader := NewReader(resp.Body)
	for {
		payload, err := reader.Next()
		if errors.Is(err, ErrPayloadTooLarge) {
			r.acc.noteMalformed(false)
			a.logger.Printf("STREAM_MALFORMED | reason=too_large")
			continue
		}
		if errors.Is(err, io.EOF) {
			return a.fail(r, req, &TransportError{Err: ErrIncompleteStream})
		}
		if err != nil {
			return a.fail(r, req, r.transportError(err))
		}

		ev, err := DecodeEvent(payload)
		if err != nil {
			ev = Salvage(payload)
			r.acc.noteMalformed(!ev.Empty())
			a.logger.Printf("STREAM_MALFORMED | bytes=%d salvaged=%t error=%q", len(payload), !ev.Empty(), err)
			if ev.Empty() {
				continue
			}
		}

		if ev.Done {
			return a.complete(r, req)
		}
		if ev.HasError {
			return a.fail(r, req, &UpstreamError{Message: ev.Error})
		}

		if r.acc.Apply(ev) {
			a.emit(r, onRender)
		}
	}
}

// transportError wraps err, naming the context error when the request was
// cancelled or timed out, whatever error the body reader reported.
func (r *run) transportError(err error) *TransportError {
	if cerr := r.ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
		return &TransportError{Err: fmt.Errorf("%w: %v", cerr, err)}
	}
	return &TransportError{Err: err}
}

// emit renders the current state unless the run has been abandoned.
func (a *Assembler) emit(r *run, onRender RenderFunc) {
	if onRender == nil {
		return
	}
	state := r.getState()
	if state == StateAbandoned {
		return
	}
	view := r.acc.View()
	onRender(Frame{State: state, View: view, Rendered: a.formatter.Format(view)})
}

func (a *Assembler) result(r *run, state State) *Result {
	view := r.acc.View()
	return &Result{
		State:    state,
		View:     view,
		Rendered: a.formatter.Format(view),
		Stats:    r.acc.Stats(),
	}
}

func (a *Assembler) complete(r *run, req cloud.ChatRequest) (*Result, error) {
	r.acc.Terminate()
	if !r.setState(StateCompleted) {
		return a.abandoned(r)
	}

	res := a.result(r, StateCompleted)
	res.Committed = a.commit(r, req)
	a.logger.Printf("STREAM_DONE | model=%s chars=%d deltas=%d malformed=%d committed=%t duration=%s",
		req.Model, len(res.View.Content), res.Stats.ContentDeltas, res.Stats.Malformed, res.Committed != nil, res.Stats.Duration())
	return res, nil
}

func (a *Assembler) fail(r *run, req cloud.ChatRequest, cause error) (*Result, error) {
	r.acc.Terminate()
	if !r.setState(StateFailed) {
		return a.abandoned(r)
	}

	res := a.result(r, StateFailed)

	// Only transport failures keep partial output in the transcript.
	var te *TransportError
	if errors.As(cause, &te) {
		res.Committed = a.commit(r, req)
	}

	a.logger.Printf("STREAM_FAILED | model=%s chars=%d committed=%t error=%q",
		req.Model, len(res.View.Content), res.Committed != nil, cause)
	return res, &StreamError{Partial: res.View.Content, Err: cause}
}

func (a *Assembler) abandoned(r *run) (*Result, error) {
	a.logger.Printf("STREAM_ABANDONED | chars=%d", len(r.acc.Content()))
	return a.result(r, StateAbandoned), ErrAbandoned
}

func (a *Assembler) commit(r *run, req cloud.ChatRequest) *model.Message {
	if a.committer == nil {
		return nil
	}
	msg, ok := r.acc.Message(req.Model)
	if !ok {
		return nil
	}
	if err := a.committer.Append(msg); err != nil {
		a.logger.Printf("STREAM_COMMIT_FAILED | error=%q", err)
		return nil
	}
	return msg
}
