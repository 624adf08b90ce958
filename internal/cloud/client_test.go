// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	return NewClient("test-key").
		WithBaseURL(url).
		WithLogger(log.New(io.Discard, "", 0))
}

func TestOpen_SendsStreamingRequest(t *testing.T) {
	var got ChatRequest
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	req := ChatRequest{
		Model:               "m",
		Messages:            []ChatMessage{TextMessage("user", "hi")},
		MaxCompletionTokens: 100,
		Temperature:         0.5,
	}
	req.EnableWebSearch()

	resp, err := testClient(server.URL).Open(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.Stream)
	assert.Equal(t, "on", got.WebSearch)
	assert.Equal(t, 100, got.MaxCompletionTokens)
	assert.Equal(t, "Bearer test-key", headers.Get("Authorization"))
	assert.Equal(t, "text/event-stream", headers.Get("Accept"))
}

func TestOpen_ReturnsErrorStatusesUnchanged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad"}`, http.StatusBadGateway)
	}))
	defer server.Close()

	resp, err := testClient(server.URL).Open(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestOpen_NotConfigured(t *testing.T) {
	_, err := NewClient("").Open(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.False(t, req.Stream)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"1","model":"m","choices":[{"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	resp, err := testClient(server.URL).Complete(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.GetContent())
}

func TestComplete_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer server.Close()

	resp, err := testClient(server.URL).Complete(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.GetContent())
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"code":"auth","message":"bad key"}}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Complete(context.Background(), ChatRequest{Model: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad key", apiErr.Message)
	assert.Equal(t, "auth", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Complete(context.Background(), ChatRequest{Model: "m"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		io.WriteString(w, `{"data":[{"id":"a","type":"text"},{"id":"b"}]}`)
	}))
	defer server.Close()

	models, err := testClient(server.URL).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "a", models[0].ID)
	assert.Equal(t, "text", models[0].Type)
}

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		message  string
		sentinel error
	}{
		{"string error", 400, `{"error":"bad input"}`, "bad input", nil},
		{"object error", 429, `{"error":{"message":"slow down"}}`, "slow down", ErrRateLimited},
		{"plain body", 404, `not here`, "not here", ErrModelNotFound},
		{"empty body", 500, ``, "Internal Server Error", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseAPIError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.message, err.Message)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&APIError{Status: 500}))
	assert.True(t, isRetryable(&APIError{Status: 429}))
	assert.False(t, isRetryable(&APIError{Status: 400}))
	assert.False(t, isRetryable(context.Canceled))
	assert.False(t, isRetryable(errors.New("other")))
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, calculateBackoff(0))
	assert.Equal(t, time.Second, calculateBackoff(1))
	assert.Equal(t, 10*time.Second, calculateBackoff(10))
}

func TestAPIKeyMasked(t *testing.T) {
	assert.Equal(t, "[not set]", NewClient("").APIKeyMasked())

	masked := NewClient("secret-key-123").APIKeyMasked()
	assert.NotContains(t, masked, "secret")
	assert.True(t, strings.HasPrefix(masked, "[REDACTED, length=14"))
}
