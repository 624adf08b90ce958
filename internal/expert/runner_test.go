// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package expert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
	"github.com/jeranaias/rigchat/internal/transcript"
)

// fakeCompleter answers from a table and tracks concurrency.
type fakeCompleter struct {
	answers map[string]string
	fail    map[string]error
	delay   time.Duration

	mu       sync.Mutex
	active   int
	peak     int
	requests []cloud.ChatRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req cloud.ChatRequest) (*cloud.ChatResponse, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.fail[req.Model]; err != nil {
		return nil, err
	}
	content, _ := json.Marshal(f.answers[req.Model])
	var resp cloud.ChatResponse
	if err := json.Unmarshal([]byte(`{"choices":[{"message":{"role":"assistant","content":`+string(content)+`}}]}`), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (f *fakeCompleter) requestFor(m string) (cloud.ChatRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.Model == m {
			return r, true
		}
	}
	return cloud.ChatRequest{}, false
}

// fakeTransport streams a fixed body and records the request.
type fakeTransport struct {
	body string
	got  cloud.ChatRequest
}

func (f *fakeTransport) Open(ctx context.Context, req cloud.ChatRequest) (*http.Response, error) {
	f.got = req
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func baseRequest() cloud.ChatRequest {
	return cloud.ChatRequest{
		Model:               "ignored",
		Messages:            []cloud.ChatMessage{cloud.TextMessage("user", "Why is the sky blue?")},
		MaxCompletionTokens: 4000,
		Temperature:         0.7,
		Stream:              true,
	}
}

func TestCandidates_ParallelBounded(t *testing.T) {
	f := &fakeCompleter{
		answers: map[string]string{"a": "A", "b": "B", "c": "C", "d": "D"},
		delay:   20 * time.Millisecond,
	}
	r := NewRunner(f, Config{Models: []string{"a", "b", "c", "d"}, MaxParallel: 2}).WithLogger(quiet())

	got, err := r.Candidates(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Len(t, got, 4)
	for i, m := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, m, got[i].Model, "results keep model order")
		assert.Equal(t, strings.ToUpper(m), got[i].Content)
	}
	assert.LessOrEqual(t, f.peak, 2)

	req, ok := f.requestFor("a")
	require.True(t, ok)
	assert.False(t, req.Stream)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 4000, req.MaxCompletionTokens)
}

func TestCandidates_PartialFailure(t *testing.T) {
	f := &fakeCompleter{
		answers: map[string]string{"good": "fine", "empty": "  "},
		fail:    map[string]error{"bad": errors.New("HTTP 500")},
	}
	r := NewRunner(f, Config{Models: []string{"bad", "good", "empty"}}).WithLogger(quiet())

	got, err := r.Candidates(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.False(t, got[0].OK())
	assert.True(t, got[1].OK())
	assert.False(t, got[2].OK())
	assert.Error(t, got[2].Err)
}

func TestCandidates_AllFail(t *testing.T) {
	f := &fakeCompleter{fail: map[string]error{"a": errors.New("x"), "b": errors.New("y")}}
	r := NewRunner(f, Config{Models: []string{"a", "b"}}).WithLogger(quiet())

	got, err := r.Candidates(context.Background(), baseRequest())
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.Len(t, got, 2)

	_, err = NewRunner(f, Config{}).WithLogger(quiet()).Candidates(context.Background(), baseRequest())
	assert.ErrorIs(t, err, ErrNoModels)
}

func TestCandidates_Timeout(t *testing.T) {
	f := &fakeCompleter{answers: map[string]string{"slow": "late"}, delay: time.Second}
	r := NewRunner(f, Config{Models: []string{"slow"}, CandidateTimeout: 10 * time.Millisecond}).WithLogger(quiet())

	got, err := r.Candidates(context.Background(), baseRequest())
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.ErrorIs(t, got[0].Err, context.DeadlineExceeded)
}

func TestSynthesisPrompt(t *testing.T) {
	p := SynthesisPrompt([]Candidate{{Model: "a", Content: "one"}, {Model: "b", Content: "two"}})
	assert.True(t, strings.HasPrefix(p, "You are tasked with synthesizing multiple AI responses"))
	assert.Contains(t, p, "Candidate Responses:\nResponse from a:\none\n\nResponse from b:\ntwo\n\nPlease provide")
	assert.Contains(t, p, "4. Provides a balanced and well-structured answer\n")
}

func TestSynthesisRequest(t *testing.T) {
	r := NewRunner(&fakeCompleter{}, Config{Models: []string{"a"}, SynthesisModel: "judge", WebSearch: true})
	req := r.SynthesisRequest(baseRequest(), []Candidate{{Model: "a", Content: "one"}, {Model: "x", Err: errors.New("no")}})

	assert.Equal(t, "judge", req.Model)
	assert.Equal(t, SynthesisTemperature, req.Temperature)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.NotContains(t, req.Messages[1].Content, "Response from x")
	assert.Equal(t, "on", req.VeniceParameters.EnableWebSearch)
}

func TestRun_CommitsOnlySynthesis(t *testing.T) {
	f := &fakeCompleter{answers: map[string]string{"a": "A says", "b": "B says"}}
	r := NewRunner(f, Config{Models: []string{"a", "b"}, SynthesisModel: "judge"}).WithLogger(quiet())

	store := transcript.New(nil, transcript.WithLogger(quiet()))
	require.NoError(t, store.Append(model.NewUserMessage("Why is the sky blue?")))
	tr := &fakeTransport{body: "data: {\"content\":\"merged\"}\n\ndata: [DONE]\n\n"}
	asm := stream.NewAssembler(tr, store, stream.WithLogger(quiet()))

	out, err := r.Run(context.Background(), baseRequest(), asm, nil)
	require.NoError(t, err)
	assert.Equal(t, "merged", out.Content)
	assert.Len(t, out.Successful(), 2)
	assert.Equal(t, "judge", tr.got.Model)

	msgs := store.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "merged", msgs[1].Content)
	assert.Equal(t, "judge", msgs[1].Model)
}

func TestRun_NoCandidatesNoSynthesis(t *testing.T) {
	f := &fakeCompleter{fail: map[string]error{"a": errors.New("down")}}
	r := NewRunner(f, Config{Models: []string{"a"}}).WithLogger(quiet())
	tr := &fakeTransport{}

	out, err := r.Run(context.Background(), baseRequest(), stream.NewAssembler(tr, nil, stream.WithLogger(quiet())), nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.Nil(t, out.Result)
	assert.Empty(t, tr.got.Model, "synthesis never opened")
}

func TestSynthesize(t *testing.T) {
	f := &fakeCompleter{answers: map[string]string{"a": "A", "judge": "final"}}
	r := NewRunner(f, Config{Models: []string{"a"}, SynthesisModel: "judge"}).WithLogger(quiet())

	out, err := r.Synthesize(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "final", out.Content)

	req, ok := f.requestFor("judge")
	require.True(t, ok)
	assert.Equal(t, SynthesisTemperature, req.Temperature)
}
