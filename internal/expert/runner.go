// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package expert

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/stream"
)

const (
	// DefaultMaxParallel bounds concurrent candidate requests.
	DefaultMaxParallel = 5

	// DefaultCandidateTimeout bounds each candidate request.
	DefaultCandidateTimeout = 60 * time.Second

	// SynthesisTemperature is used for the synthesis request.
	SynthesisTemperature = 0.3
)

var (
	// ErrNoModels is returned when no candidate models are configured.
	ErrNoModels = errors.New("no candidate models selected")

	// ErrNoCandidates is returned when every candidate failed.
	ErrNoCandidates = errors.New("all candidate models failed to respond")
)

// Completer performs non-streaming completions. *cloud.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req cloud.ChatRequest) (*cloud.ChatResponse, error)
}

// Streamer streams a request and commits its result.
// *stream.Assembler satisfies it.
type Streamer interface {
	Stream(ctx context.Context, req cloud.ChatRequest, onRender stream.RenderFunc) (*stream.Result, error)
}

// Config selects the models taking part.
type Config struct {
	Models           []string
	SynthesisModel   string
	MaxParallel      int
	CandidateTimeout time.Duration

	// WebSearch enables web search on candidate and synthesis requests.
	WebSearch bool
}

// Candidate is the answer of one candidate model.
type Candidate struct {
	Model    string
	Content  string
	Err      error
	Duration time.Duration
}

// OK reports whether the candidate produced usable content.
func (c Candidate) OK() bool {
	return c.Err == nil && strings.TrimSpace(c.Content) != ""
}

// Outcome is the result of an expert turn.
type Outcome struct {
	// Candidates are in configured model order, failures included.
	Candidates []Candidate

	// Result is the synthesis stream result. Nil when no synthesis ran.
	Result *stream.Result

	// Content is the synthesized answer.
	Content string
}

// Successful returns the candidates that produced content.
func (o *Outcome) Successful() []Candidate {
	return successful(o.Candidates)
}

// Runner runs expert turns.
type Runner struct {
	completer Completer
	config    Config
	logger    *log.Logger
}

// NewRunner creates a runner. Zero config fields fall back to defaults.
func NewRunner(completer Completer, config Config) *Runner {
	if config.MaxParallel <= 0 {
		config.MaxParallel = DefaultMaxParallel
	}
	if config.CandidateTimeout <= 0 {
		config.CandidateTimeout = DefaultCandidateTimeout
	}
	if config.SynthesisModel == "" {
		config.SynthesisModel = cloud.DefaultModel
	}
	return &Runner{completer: completer, config: config, logger: log.Default()}
}

// WithLogger sets the logger.
func (r *Runner) WithLogger(l *log.Logger) *Runner {
	if l != nil {
		r.logger = l
	}
	return r
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.config
}

// Candidates sends base to every candidate model, at most MaxParallel at a
// time. A failed candidate does not cancel the others. It returns
// ErrNoCandidates, along with the failures, when none succeeded.
func (r *Runner) Candidates(ctx context.Context, base cloud.ChatRequest) ([]Candidate, error) {
	models := r.config.Models
	if len(models) == 0 {
		return nil, ErrNoModels
	}

	results := make([]Candidate, len(models))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.MaxParallel)

	for i, m := range models {
		g.Go(func() error {
			results[i] = r.candidate(gctx, base, m)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	ok := len(successful(results))
	r.logger.Printf("EXPERT_CANDIDATES | models=%d successful=%d", len(models), ok)
	if ok == 0 {
		return results, ErrNoCandidates
	}
	return results, nil
}

func (r *Runner) candidate(ctx context.Context, base cloud.ChatRequest, m string) Candidate {
	ctx, cancel := context.WithTimeout(ctx, r.config.CandidateTimeout)
	defer cancel()

	start := time.Now()
	resp, err := r.completer.Complete(ctx, r.candidateRequest(base, m))
	c := Candidate{Model: m, Duration: time.Since(start)}
	if err != nil {
		c.Err = err
		r.logger.Printf("EXPERT_CANDIDATE_FAILED | model=%s error=%q", m, err)
		return c
	}
	c.Content = resp.GetContent()
	if strings.TrimSpace(c.Content) == "" {
		c.Err = fmt.Errorf("no response from %s", m)
	}
	return c
}

func (r *Runner) candidateRequest(base cloud.ChatRequest, m string) cloud.ChatRequest {
	req := cloud.ChatRequest{
		Model:               m,
		Messages:            append([]cloud.ChatMessage(nil), base.Messages...),
		MaxCompletionTokens: base.MaxCompletionTokens,
		Temperature:         base.Temperature,
		VeniceParameters:    &cloud.VeniceParameters{IncludeVeniceSystemPrompt: false},
	}
	if r.config.WebSearch {
		req.EnableWebSearch()
	}
	return req
}

// SynthesisRequest builds the synthesis request: the conversation of base
// followed by a user message carrying the candidate answers.
func (r *Runner) SynthesisRequest(base cloud.ChatRequest, candidates []Candidate) cloud.ChatRequest {
	msgs := make([]cloud.ChatMessage, 0, len(base.Messages)+1)
	msgs = append(msgs, base.Messages...)
	msgs = append(msgs, cloud.TextMessage("user", SynthesisPrompt(successful(candidates))))

	req := cloud.ChatRequest{
		Model:               r.config.SynthesisModel,
		Messages:            msgs,
		MaxCompletionTokens: base.MaxCompletionTokens,
		Temperature:         SynthesisTemperature,
		Stream:              true,
		VeniceParameters:    &cloud.VeniceParameters{IncludeVeniceSystemPrompt: false},
	}
	if r.config.WebSearch {
		req.EnableWebSearch()
	}
	return req
}

// Run gathers candidate answers and streams the synthesis through s, which
// commits it. No synthesis is attempted when every candidate failed.
func (r *Runner) Run(ctx context.Context, base cloud.ChatRequest, s Streamer, onRender stream.RenderFunc) (*Outcome, error) {
	start := time.Now()
	candidates, err := r.Candidates(ctx, base)
	out := &Outcome{Candidates: candidates}
	if err != nil {
		return out, err
	}

	res, err := s.Stream(ctx, r.SynthesisRequest(base, candidates), onRender)
	out.Result = res
	if res != nil {
		out.Content = res.View.Content
	}
	r.logger.Printf("EXPERT_DONE | synthesis=%s candidates=%d duration=%s error=%v",
		r.config.SynthesisModel, len(out.Successful()), time.Since(start).Round(time.Millisecond), err)
	return out, err
}

// Synthesize is the non-streaming form of Run, for callers without a
// transcript.
func (r *Runner) Synthesize(ctx context.Context, base cloud.ChatRequest) (*Outcome, error) {
	candidates, err := r.Candidates(ctx, base)
	out := &Outcome{Candidates: candidates}
	if err != nil {
		return out, err
	}

	resp, err := r.completer.Complete(ctx, r.SynthesisRequest(base, candidates))
	if err != nil {
		return out, fmt.Errorf("synthesis failed: %w", err)
	}
	out.Content = resp.GetContent()
	return out, nil
}

// SynthesisPrompt formats the instruction given to the synthesis model.
func SynthesisPrompt(candidates []Candidate) string {
	blocks := make([]string, 0, len(candidates))
	for _, c := range candidates {
		blocks = append(blocks, fmt.Sprintf("Response from %s:\n%s", c.Model, c.Content))
	}

	var sb strings.Builder
	sb.WriteString("You are tasked with synthesizing multiple AI responses into a single, comprehensive answer. ")
	sb.WriteString("Below are responses from different AI models to the same query.\n\n")
	sb.WriteString("Please create a synthesized response that:\n")
	sb.WriteString("1. Combines the best insights from all responses\n")
	sb.WriteString("2. Maintains consistency and coherence\n")
	sb.WriteString("3. Removes redundancy while preserving important details\n")
	sb.WriteString("4. Provides a balanced and well-structured answer\n\n")
	sb.WriteString("Candidate Responses:\n")
	sb.WriteString(strings.Join(blocks, "\n\n"))
	sb.WriteString("\n\nPlease provide a synthesized response that incorporates the strengths of each candidate ")
	sb.WriteString("while maintaining clarity and coherence.")
	return sb.String()
}

func successful(candidates []Candidate) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.OK() {
			out = append(out, c)
		}
	}
	return out
}
