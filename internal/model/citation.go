// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// Citation is a web search source attached to an assistant message.
// Inline markers in content refer to citations by 1-based index.
type Citation struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Content       string `json:"content,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
}

// Empty reports whether the citation carries neither a title nor a URL.
func (c Citation) Empty() bool {
	return strings.TrimSpace(c.Title) == "" && strings.TrimSpace(c.URL) == ""
}

// Normalize fills the display defaults: a missing title falls back to the
// URL (or "Untitled") and a missing URL becomes "#".
func (c Citation) Normalize() Citation {
	c.Title = strings.TrimSpace(c.Title)
	c.URL = strings.TrimSpace(c.URL)
	if c.Title == "" {
		c.Title = c.URL
	}
	if c.Title == "" {
		c.Title = "Untitled"
	}
	if c.URL == "" {
		c.URL = "#"
	}
	return c
}

// Resolve returns the citation referenced by a 1-based marker index.
func Resolve(citations []Citation, n int) (Citation, bool) {
	if n < 1 || n > len(citations) {
		return Citation{}, false
	}
	return citations[n-1], true
}
