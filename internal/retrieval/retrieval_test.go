// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/collections", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"collections":["docs","my notes"]}`)
	})
	mux.HandleFunc("/api/collections/docs/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what is go?", req.Query)
		assert.Equal(t, DefaultLimit, req.Limit)
		io.WriteString(w, `{"results":[
			{"text":"Go is a language.","score":0.8765,"metadata":{"source":"wiki","filename":"go.md"}},
			{"text":"Gophers.","score":0.5}
		]}`)
	})
	mux.HandleFunc("/api/collections/broken/search", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index offline", http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) *Client {
	srv := newTestServer(t)
	return NewClient(ClientConfig{BaseURL: srv.URL + "/"}).WithLogger(log.New(io.Discard, "", 0))
}

func TestCollections(t *testing.T) {
	names, err := newTestClient(t).Collections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "my notes"}, names)
}

func TestSearch(t *testing.T) {
	results, err := newTestClient(t).Search(context.Background(), "docs", "what is go?", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Go is a language.", results[0].Text)
	require.NotNil(t, results[0].Metadata)
	assert.Equal(t, "go.md", results[0].Metadata.Filename)
	assert.Nil(t, results[1].Metadata)
}

func TestSearch_Errors(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Search(context.Background(), "", "q", 0)
	assert.ErrorIs(t, err, ErrNoCollection)

	_, err = c.Search(context.Background(), "broken", "q", 0)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.Contains(t, se.Body, "index offline")

	_, err = NewClient(DefaultConfig()).Search(context.Background(), "docs", "q", 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBuildContext(t *testing.T) {
	got := BuildContext([]Result{
		{Text: "alpha", Score: 0.877, Metadata: &Metadata{Source: "wiki", Filename: "a.md"}},
		{Text: "beta", Score: 0.5, Metadata: &Metadata{}},
		{Text: "gamma", Score: 0.123},
	})
	want := "CONTEXT:\n" +
		"---\n[1] alpha\nSource: wiki\nFile: a.md\nRelevance: 87.7%\n---\n\n" +
		"---\n[2] beta\nSource: Unknown\nRelevance: 50.0%\n---\n\n" +
		"---\n[3] gamma\nRelevance: 12.3%\n---\n\n"
	assert.Equal(t, want, got)
	assert.Empty(t, BuildContext(nil))
}

func TestEnhanceSystemPrompt(t *testing.T) {
	assert.Equal(t, "sys", EnhanceSystemPrompt("sys", "q", nil))

	got := EnhanceSystemPrompt("sys", "what?", []Result{{Text: "x", Score: 1}})
	assert.True(t, strings.HasPrefix(got, "sys\n\nCONTEXT:\n---\n[1] x\n"))
	assert.Contains(t, got, "\nUSER QUERY:\nwhat?\n\nPlease use the context provided above")
}

func TestAugment(t *testing.T) {
	c := newTestClient(t)

	prompt, n := c.Augment(context.Background(), "docs", "sys", "what is go?")
	assert.Equal(t, 2, n)
	assert.Contains(t, prompt, "[1] Go is a language.")

	prompt, n = c.Augment(context.Background(), "broken", "sys", "what is go?")
	assert.Equal(t, 0, n)
	assert.Equal(t, "sys", prompt, "failures fall back to the plain prompt")

	prompt, n = c.Augment(context.Background(), "docs", "sys", "  ")
	assert.Equal(t, 0, n)
	assert.Equal(t, "sys", prompt)
}
