// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultLimit is the number of passages requested per search.
	DefaultLimit = 5

	// DefaultTimeout bounds a single vector store request.
	DefaultTimeout = 15 * time.Second

	// maxResponseSize caps vector store response bodies.
	maxResponseSize = 4 * 1024 * 1024
)

var (
	// ErrNotConfigured is returned when no base URL is set.
	ErrNotConfigured = errors.New("vector store URL not configured")

	// ErrNoCollection is returned when a search names no collection.
	ErrNoCollection = errors.New("no collection selected")
)

// StatusError is a non-success response from the vector store.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("vector store returned status %d", e.Status)
	}
	return fmt.Sprintf("vector store returned status %d: %s", e.Status, e.Body)
}

// =============================================================================
// TYPES
// =============================================================================

// Metadata describes where a passage came from.
type Metadata struct {
	Source   string `json:"source,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Result is one scored passage.
type Result struct {
	Text     string    `json:"text"`
	Score    float64   `json:"score"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

type collectionsResponse struct {
	Collections []string `json:"collections"`
}

// =============================================================================
// CLIENT
// =============================================================================

// ClientConfig holds configuration options for the vector store client.
type ClientConfig struct {
	// BaseURL is the vector store root, without the /api suffix.
	BaseURL string

	// Timeout for each request (default: 15s)
	Timeout time.Duration

	// Limit is the default number of passages per search (default: 5)
	Limit int
}

// DefaultConfig returns a config with default limits and no base URL.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Timeout: DefaultTimeout,
		Limit:   DefaultLimit,
	}
}

// Client talks to the vector store HTTP API.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a client. Zero fields fall back to defaults.
func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Limit <= 0 {
		config.Limit = DefaultLimit
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     log.Default(),
	}
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l *log.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// IsConfigured reports whether a base URL is set.
func (c *Client) IsConfigured() bool {
	return c.config.BaseURL != ""
}

// Collections lists the available collection names.
func (c *Client) Collections(ctx context.Context) ([]string, error) {
	var out collectionsResponse
	if err := c.do(ctx, http.MethodGet, "/api/collections", nil, &out); err != nil {
		return nil, err
	}
	return out.Collections, nil
}

// Search returns up to limit passages from collection relevant to query.
// A limit <= 0 uses the configured default.
func (c *Client) Search(ctx context.Context, collection, query string, limit int) ([]Result, error) {
	if collection == "" {
		return nil, ErrNoCollection
	}
	if limit <= 0 {
		limit = c.config.Limit
	}
	path := "/api/collections/" + url.PathEscape(collection) + "/search"

	var out searchResponse
	if err := c.do(ctx, http.MethodPost, path, searchRequest{Query: query, Limit: limit}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Augment searches collection for query and folds the passages into
// systemPrompt. It returns the prompt to send and the number of passages
// used. Search failures are logged and leave systemPrompt unchanged.
func (c *Client) Augment(ctx context.Context, collection, systemPrompt, query string) (string, int) {
	if strings.TrimSpace(query) == "" {
		return systemPrompt, 0
	}
	start := time.Now()
	results, err := c.Search(ctx, collection, query, 0)
	if err != nil {
		c.logger.Printf("RAG_SEARCH_FAILED | collection=%s error=%q", collection, err)
		return systemPrompt, 0
	}
	c.logger.Printf("RAG_SEARCH | collection=%s results=%d latency=%s",
		collection, len(results), time.Since(start).Round(time.Millisecond))
	if len(results) == 0 {
		return systemPrompt, 0
	}
	return EnhanceSystemPrompt(systemPrompt, query, results), len(results)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
