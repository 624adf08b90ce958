// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/expert"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8080"

	// DefaultMaxBodyBytes caps request bodies. Image data URLs make chat
	// bodies large.
	DefaultMaxBodyBytes = 16 << 20

	// MaxMessageCount is the maximum number of messages in a request.
	MaxMessageCount = 500

	// DefaultMaxCompletionTokens applies when a request names none.
	DefaultMaxCompletionTokens = 4000

	// DefaultTemperature applies when a request names none.
	DefaultTemperature = 0.7

	// MinTemperature and MaxTemperature bound the temperature parameter.
	MinTemperature = 0.0
	MaxTemperature = 2.0

	shutdownTimeout = 10 * time.Second
)

var validRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
}

func validateMessages(messages []cloud.ChatMessage) error {
	if len(messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	if len(messages) > MaxMessageCount {
		return fmt.Errorf("too many messages: %d (max %d)", len(messages), MaxMessageCount)
	}
	for i, msg := range messages {
		if !validRoles[msg.Role] {
			return fmt.Errorf("invalid role '%s' at message %d: must be one of user, assistant, system", msg.Role, i)
		}
		if msg.Content == nil {
			return fmt.Errorf("message %d has no content", i)
		}
	}
	return nil
}

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats counts relay traffic.
type Stats struct {
	StreamRequests int64     `json:"stream_requests"`
	ExpertRequests int64     `json:"expert_requests"`
	UpstreamErrors int64     `json:"upstream_errors"`
	StartTime      time.Time `json:"start_time"`
}

type counters struct {
	stream   atomic.Int64
	expert   atomic.Int64
	upstream atomic.Int64
	start    time.Time
}

func (c *counters) snapshot() Stats {
	return Stats{
		StreamRequests: c.stream.Load(),
		ExpertRequests: c.expert.Load(),
		UpstreamErrors: c.upstream.Load(),
		StartTime:      c.start,
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Upstream is the provider API. *cloud.Client satisfies it.
type Upstream interface {
	Open(ctx context.Context, req cloud.ChatRequest) (*http.Response, error)
	Complete(ctx context.Context, req cloud.ChatRequest) (*cloud.ChatResponse, error)
	ListModels(ctx context.Context) ([]cloud.ModelInfo, error)
}

// Config configures the relay.
type Config struct {
	Addr         string
	MaxBodyBytes int64

	// AuthToken, when set, is required as a bearer token.
	AuthToken string

	// RateLimit is requests per second per client; zero disables it.
	RateLimit float64
	RateBurst int

	AllowedOrigins []string

	// Expert supplies defaults for /chat/expert. Models and
	// SynthesisModel may be overridden per request.
	Expert expert.Config
}

// Server relays chat requests to the provider and normalizes its stream.
type Server struct {
	config   Config
	upstream Upstream
	mux      *http.ServeMux
	logger   *log.Logger
	stats    *counters
}

// New creates a relay in front of upstream.
func New(upstream Upstream, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{
		config:   cfg,
		upstream: upstream,
		mux:      http.NewServeMux(),
		logger:   log.Default(),
		stats:    &counters{start: time.Now()},
	}
	s.setupRoutes()
	return s
}

// WithLogger sets the logger.
func (s *Server) WithLogger(l *log.Logger) *Server {
	if l != nil {
		s.logger = l
	}
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.config.Addr
}

// Stats returns a snapshot of the traffic counters.
func (s *Server) Stats() Stats {
	return s.stats.snapshot()
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /chat/stream", s.handleStream)
	s.mux.HandleFunc("POST /chat/expert", s.handleExpert)
	s.mux.HandleFunc("GET /models", s.handleModels)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var limiter *RateLimiter
	if s.config.RateLimit > 0 {
		limiter = NewRateLimiter(s.config.RateLimit, s.config.RateBurst)
	}
	return Chain(
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.config.AllowedOrigins),
		AuthMiddleware(s.config.AuthToken, s.logger),
		RateLimitMiddleware(limiter, s.logger),
		BodyLimitMiddleware(s.config.MaxBodyBytes),
	)(s.mux)
}

// ============================================================================
// REQUEST TYPES
// ============================================================================

// StreamRequest is the body of POST /chat/stream.
type StreamRequest struct {
	Model               string              `json:"model"`
	Messages            []cloud.ChatMessage `json:"messages"`
	SystemPrompt        string              `json:"system_prompt,omitempty"`
	WebSearch           json.RawMessage     `json:"web_search,omitempty"`
	MaxCompletionTokens int                 `json:"max_completion_tokens,omitempty"`
	MaxTokens           int                 `json:"max_tokens,omitempty"`
	Temperature         *float64            `json:"temperature,omitempty"`
}

// ExpertRequest is the body of POST /chat/expert.
type ExpertRequest struct {
	Messages            []cloud.ChatMessage `json:"messages"`
	CandidateModels     []string            `json:"candidate_models,omitempty"`
	Models              []string            `json:"models,omitempty"`
	SynthesisModel      string              `json:"synthesis_model,omitempty"`
	ShowCandidates      bool                `json:"show_candidates,omitempty"`
	WebSearch           json.RawMessage     `json:"web_search,omitempty"`
	MaxCompletionTokens int                 `json:"max_completion_tokens,omitempty"`
	Temperature         *float64            `json:"temperature,omitempty"`
}

// CandidateInfo reports one candidate of an expert request.
type CandidateInfo struct {
	Model   string `json:"model"`
	OK      bool   `json:"ok"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExpertResponse is the body returned by POST /chat/expert.
type ExpertResponse struct {
	SynthesizedResponse string          `json:"synthesized_response"`
	SynthesisModel      string          `json:"synthesis_model"`
	CandidateCount      int             `json:"candidate_count"`
	Candidates          []CandidateInfo `json:"candidates"`
}

// chatParams holds the fields shared by both chat endpoints.
type chatParams struct {
	model       string
	messages    []cloud.ChatMessage
	maxTokens   int
	temperature *float64
}

func (p chatParams) request() (cloud.ChatRequest, error) {
	if err := validateMessages(p.messages); err != nil {
		return cloud.ChatRequest{}, err
	}
	req := cloud.ChatRequest{
		Model:               p.model,
		Messages:            p.messages,
		MaxCompletionTokens: p.maxTokens,
		Temperature:         DefaultTemperature,
		VeniceParameters:    &cloud.VeniceParameters{},
	}
	if req.Model == "" {
		req.Model = cloud.DefaultModel
	}
	if req.MaxCompletionTokens < 0 {
		return req, fmt.Errorf("max_completion_tokens must be positive, got %d", req.MaxCompletionTokens)
	}
	if req.MaxCompletionTokens == 0 {
		req.MaxCompletionTokens = DefaultMaxCompletionTokens
	}
	if p.temperature != nil {
		t := *p.temperature
		if t < MinTemperature || t > MaxTemperature {
			return req, fmt.Errorf("temperature must be between %.1f and %.1f, got %.2f", MinTemperature, MaxTemperature, t)
		}
		req.Temperature = t
	}
	return req, nil
}

func (r StreamRequest) chatRequest() (cloud.ChatRequest, error) {
	messages := r.Messages
	if r.SystemPrompt != "" && (len(messages) == 0 || messages[0].Role != "system") {
		messages = append([]cloud.ChatMessage{cloud.TextMessage("system", r.SystemPrompt)}, messages...)
	}
	tokens := r.MaxCompletionTokens
	if tokens == 0 {
		tokens = r.MaxTokens
	}
	req, err := chatParams{model: r.Model, messages: messages, maxTokens: tokens, temperature: r.Temperature}.request()
	if err != nil {
		return req, err
	}
	req.Stream = true
	if webSearchOn(r.WebSearch) {
		req.EnableWebSearch()
	}
	return req, nil
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var body StreamRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, statusForDecode(err), err.Error())
		return
	}
	req, err := body.chatRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.stats.stream.Add(1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher, _ := w.(http.Flusher)
	fw := &frameWriter{w: w, flusher: flusher}

	start := time.Now()
	s.logger.Printf("RELAY_STREAM | model=%s messages=%d search=%t", req.Model, len(req.Messages), req.WebSearch == "on")

	resp, err := s.upstream.Open(r.Context(), req)
	if err != nil {
		s.stats.upstream.Add(1)
		s.logger.Printf("RELAY_OPEN_FAILED | model=%s error=%q", req.Model, err)
		_ = fw.send(errorFrame{Error: err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.stats.upstream.Add(1)
		s.logger.Printf("RELAY_UPSTREAM_STATUS | model=%s status=%d body=%q", req.Model, resp.StatusCode, cloud.ReadErrorBody(resp.Body))
		_ = fw.send(errorFrame{Error: fmt.Sprintf("API error: %d", resp.StatusCode)})
		return
	}

	st := relay(resp.Body, fw)
	if st.Err != nil && !st.Done {
		s.stats.upstream.Add(1)
	}
	s.logger.Printf("RELAY_DONE | model=%s frames=%d malformed=%d salvaged=%d done=%t duration=%s error=%v",
		req.Model, st.Frames, st.Malformed, st.Salvaged, st.Done, time.Since(start).Round(time.Millisecond), st.Err)
}

func (s *Server) handleExpert(w http.ResponseWriter, r *http.Request) {
	var body ExpertRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, statusForDecode(err), err.Error())
		return
	}
	base, err := chatParams{
		messages:    body.Messages,
		maxTokens:   body.MaxCompletionTokens,
		temperature: body.Temperature,
	}.request()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.stats.expert.Add(1)

	cfg := s.config.Expert
	var models []string
	models = append(models, body.CandidateModels...)
	models = append(models, body.Models...)
	if len(models) > 0 {
		cfg.Models = models
	}
	if body.SynthesisModel != "" {
		cfg.SynthesisModel = body.SynthesisModel
	}
	if len(body.WebSearch) > 0 {
		cfg.WebSearch = webSearchOn(body.WebSearch)
	}
	runner := expert.NewRunner(s.upstream, cfg).WithLogger(s.logger)

	out, err := runner.Synthesize(r.Context(), base)
	switch {
	case errors.Is(err, expert.ErrNoModels):
		writeError(w, http.StatusBadRequest, "No candidate models selected")
		return
	case errors.Is(err, expert.ErrNoCandidates):
		s.stats.upstream.Add(1)
		writeError(w, http.StatusBadGateway, "All candidate models failed to respond")
		return
	case err != nil:
		s.stats.upstream.Add(1)
		s.logger.Printf("RELAY_EXPERT_FAILED | error=%q", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := ExpertResponse{
		SynthesizedResponse: out.Content,
		SynthesisModel:      runner.Config().SynthesisModel,
		CandidateCount:      len(out.Successful()),
		Candidates:          make([]CandidateInfo, 0, len(out.Candidates)),
	}
	for _, c := range out.Candidates {
		info := CandidateInfo{Model: c.Model, OK: c.OK()}
		if body.ShowCandidates && c.OK() {
			info.Content = c.Content
		}
		if c.Err != nil {
			info.Error = c.Err.Error()
		}
		resp.Candidates = append(resp.Candidates, info)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.upstream.ListModels(r.Context())
	if err != nil {
		s.stats.upstream.Add(1)
		s.logger.Printf("RELAY_MODELS_FAILED | error=%q", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if models == nil {
		models = []cloud.ModelInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Stats  Stats  `json:"stats"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.stats.start).Round(time.Second).String(),
		Stats:  s.Stats(),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. In-flight requests get a short
// grace period; streams still open after it are cut.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("SERVER_START | addr=%s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return maxErr
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func statusForDecode(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorFrame{Error: message})
}
