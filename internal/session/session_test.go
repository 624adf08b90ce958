// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/expert"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/stream"
	"github.com/jeranaias/rigchat/internal/transcript"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// scriptedTransport replies to each request with the next body.
type scriptedTransport struct {
	mu     sync.Mutex
	bodies []string
	reqs   []cloud.ChatRequest
}

func (s *scriptedTransport) Open(ctx context.Context, req cloud.ChatRequest) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	body := ""
	if len(s.bodies) > 0 {
		body, s.bodies = s.bodies[0], s.bodies[1:]
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (s *scriptedTransport) last() cloud.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs[len(s.reqs)-1]
}

func reply(content string) string {
	data, _ := json.Marshal(map[string]string{"content": content})
	return "data: " + string(data) + "\n\ndata: [DONE]\n\n"
}

type fakeRetriever struct {
	query string
}

func (f *fakeRetriever) Augment(ctx context.Context, collection, systemPrompt, query string) (string, int) {
	f.query = query
	return systemPrompt + "\n\nCONTEXT:\n---\n[1] facts\n", 1
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func newSession(t *testing.T, tr stream.Transport, kv storage.KV) *Session {
	t.Helper()
	sess, err := New(Config{
		Store:     transcript.New(kv, transcript.WithLogger(quiet())),
		Transport: tr,
		Options:   DefaultOptions(),
		Logger:    quiet(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return sess
}

func roles(msgs []model.Message) string {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = string(m.Role) + ":" + m.Content
	}
	return strings.Join(parts, "|")
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_Conversation(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{reply("Hi there"), reply("Fine")}}
	sess := newSession(t, tr, storage.NewMemoryKV(0))

	res, err := sess.Send(context.Background(), Turn{Text: "Hello"}, nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if res.State != stream.StateCompleted {
		t.Errorf("State = %v, want completed", res.State)
	}

	if _, err := sess.Send(context.Background(), Turn{Text: "How are you?"}, nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	want := "user:Hello|assistant:Hi there|user:How are you?|assistant:Fine"
	if got := roles(sess.History()); got != want {
		t.Errorf("History() = %q, want %q", got, want)
	}

	// The second request carries the history plus the new turn once.
	req := tr.last()
	if len(req.Messages) != 3 {
		t.Fatalf("request messages = %d, want 3", len(req.Messages))
	}
	if req.Messages[2].Content != "How are you?" {
		t.Errorf("last request message = %v", req.Messages[2].Content)
	}

	st := sess.GetStatus()
	if st.Turns != 2 || st.Messages != 4 {
		t.Errorf("Status = %+v", st)
	}
}

// gatedFormatter blocks the first Format call made after it is armed.
type gatedFormatter struct {
	armed   atomic.Bool
	once    sync.Once
	blocked chan struct{}
	release chan struct{}
}

func (g *gatedFormatter) Format(v render.View) string {
	if g.armed.Load() {
		g.once.Do(func() {
			close(g.blocked)
			<-g.release
		})
	}
	return v.Content
}

func TestSend_WaitsForPreviousCommit(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{reply("first answer"), reply("second answer")}}
	gate := &gatedFormatter{blocked: make(chan struct{}), release: make(chan struct{})}
	sess, err := New(Config{
		Store:     transcript.New(storage.NewMemoryKV(0), transcript.WithLogger(quiet())),
		Transport: tr,
		Formatter: gate,
		Options:   DefaultOptions(),
		Logger:    quiet(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := sess.Send(context.Background(), Turn{Text: "q1"}, func(stream.Frame) { gate.armed.Store(true) })
		firstDone <- err
	}()
	select {
	case <-gate.blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("first turn never completed")
	}

	secondDone := make(chan error, 1)
	go func() {
		_, err := sess.Send(context.Background(), Turn{Text: "q2"}, nil)
		secondDone <- err
	}()

	select {
	case <-secondDone:
		t.Fatal("second turn ran before the first reply was committed")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	for _, ch := range []chan error{firstDone, secondDone} {
		select {
		case err := <-ch:
			if err != nil {
				t.Fatalf("Send() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("turn did not finish")
		}
	}

	want := "user:q1|assistant:first answer|user:q2|assistant:second answer"
	if got := roles(sess.History()); got != want {
		t.Errorf("History() = %q, want %q", got, want)
	}
	var sent []string
	for _, m := range tr.last().Messages {
		sent = append(sent, m.Role)
	}
	if got := strings.Join(sent, ","); got != "user,assistant,user" {
		t.Errorf("second request roles = %s, want user,assistant,user", got)
	}
}

func TestSend_EmptyTurn(t *testing.T) {
	sess := newSession(t, &scriptedTransport{}, nil)
	if _, err := sess.Send(context.Background(), Turn{Text: "   "}, nil); !errors.Is(err, ErrEmptyTurn) {
		t.Errorf("Send() error = %v, want ErrEmptyTurn", err)
	}
	if n := len(sess.History()); n != 0 {
		t.Errorf("History() len = %d, want 0", n)
	}
}

func TestSend_Images(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{reply("A cat.")}}
	sess := newSession(t, tr, nil)

	_, err := sess.Send(context.Background(), Turn{Text: "What is this?", Images: []string{"data:image/png;base64,AAAA"}}, nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	first := sess.History()[0]
	if first.ImageCount() != 1 {
		t.Errorf("ImageCount() = %d, want 1", first.ImageCount())
	}
	parts, ok := tr.last().Messages[0].Content.([]model.ContentPart)
	if !ok || len(parts) != 2 {
		t.Fatalf("request content = %#v, want two parts", tr.last().Messages[0].Content)
	}
}

func TestSend_Retrieval(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{reply("ok")}}
	rag := &fakeRetriever{}
	sess, err := New(Config{
		Store:     transcript.New(nil),
		Transport: tr,
		Retriever: rag,
		Options:   Options{SystemPrompt: "be nice", Collection: "docs"},
		Logger:    quiet(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sess.Send(context.Background(), Turn{Text: "question"}, nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if rag.query != "question" {
		t.Errorf("retriever query = %q", rag.query)
	}
	sys := tr.last().Messages[0]
	if sys.Role != "system" || !strings.Contains(sys.Content.(string), "[1] facts") {
		t.Errorf("system message = %+v", sys)
	}
	if tr.last().Model != cloud.DefaultModel {
		t.Errorf("Model = %q, want default", tr.last().Model)
	}
}

func TestSend_ExpertUnavailable(t *testing.T) {
	sess := newSession(t, &scriptedTransport{}, nil)
	sess.Update(func(o *Options) { o.Expert = true })

	if _, err := sess.Send(context.Background(), Turn{Text: "hi"}, nil); !errors.Is(err, ErrExpertUnavailable) {
		t.Errorf("Send() error = %v, want ErrExpertUnavailable", err)
	}
}

type staticCompleter struct{}

func (staticCompleter) Complete(ctx context.Context, req cloud.ChatRequest) (*cloud.ChatResponse, error) {
	var resp cloud.ChatResponse
	err := json.Unmarshal([]byte(`{"choices":[{"message":{"role":"assistant","content":"candidate from `+req.Model+`"}}]}`), &resp)
	return &resp, err
}

func TestSend_Expert(t *testing.T) {
	tr := &scriptedTransport{bodies: []string{reply("synthesized")}}
	runner := expert.NewRunner(staticCompleter{}, expert.Config{Models: []string{"a", "b"}, SynthesisModel: "judge"}).WithLogger(quiet())
	sess, err := New(Config{
		Store:     transcript.New(nil),
		Transport: tr,
		Expert:    runner,
		Options:   Options{Expert: true},
		Logger:    quiet(),
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := sess.Send(context.Background(), Turn{Text: "hard question"}, nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if res.Committed == nil || res.Committed.Content != "synthesized" {
		t.Errorf("Committed = %+v", res.Committed)
	}
	if got := roles(sess.History()); got != "user:hard question|assistant:synthesized" {
		t.Errorf("History() = %q", got)
	}
	if tr.last().Model != "judge" {
		t.Errorf("synthesis model = %q", tr.last().Model)
	}
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestRestoreOnNew(t *testing.T) {
	kv := storage.NewMemoryKV(0)
	sess := newSession(t, &scriptedTransport{bodies: []string{reply("Hi")}}, kv)
	if _, err := sess.Send(context.Background(), Turn{Text: "Hello"}, nil); err != nil {
		t.Fatal(err)
	}

	again := newSession(t, &scriptedTransport{}, kv)
	if got := roles(again.History()); got != "user:Hello|assistant:Hi" {
		t.Errorf("restored History() = %q", got)
	}
	if again.RestoreError() != nil {
		t.Errorf("RestoreError() = %v", again.RestoreError())
	}
}

func TestRestoreCorrupt(t *testing.T) {
	kv := storage.NewMemoryKV(0)
	if err := kv.Set(transcript.DefaultKey, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	sess := newSession(t, &scriptedTransport{}, kv)
	if !errors.Is(sess.RestoreError(), transcript.ErrPersistenceCorrupt) {
		t.Errorf("RestoreError() = %v, want ErrPersistenceCorrupt", sess.RestoreError())
	}
	if len(sess.History()) != 0 {
		t.Error("corrupt transcript should start empty")
	}
}

func TestClear(t *testing.T) {
	kv := storage.NewMemoryKV(0)
	sess := newSession(t, &scriptedTransport{bodies: []string{reply("Hi")}}, kv)
	if _, err := sess.Send(context.Background(), Turn{Text: "Hello"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := sess.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if len(sess.History()) != 0 {
		t.Error("History() not empty after Clear")
	}
	if _, err := kv.Get(transcript.DefaultKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("slot after Clear: %v, want ErrNotFound", err)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{Transport: &scriptedTransport{}}); err == nil {
		t.Error("New without store should fail")
	}
	if _, err := New(Config{Store: transcript.New(nil)}); err == nil {
		t.Error("New without transport should fail")
	}
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestSessionID(t *testing.T) {
	sess := newSession(t, &scriptedTransport{}, nil)
	if !strings.HasPrefix(sess.SessionID(), "sess_") {
		t.Errorf("SessionID should start with 'sess_', got %q", sess.SessionID())
	}
	if sess.StartTime().IsZero() {
		t.Error("StartTime should not be zero")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m 30s"},
		{15 * time.Minute, "15m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
