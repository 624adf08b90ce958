// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"regexp"

	"github.com/jeranaias/rigchat/internal/model"
)

// MaxSalvageSize bounds the payloads salvage will scan.
const MaxSalvageSize = 64 * 1024

var (
	salvageCitations = regexp.MustCompile(`(?s)"web_search_citations"\s*:\s*\[(.*?)\]`)
	salvageTitle     = regexp.MustCompile(`"title"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	salvageURL       = regexp.MustCompile(`"url"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	salvageContent   = regexp.MustCompile(`"content"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// Salvage makes a best-effort recovery of a malformed payload.
//
// Payloads mentioning web_search_citations only ever yield citations, and
// only when the array's closing bracket is present; their "content" fields
// are citation snippets, not response text. Other payloads yield the first
// complete "content" string. Anything else yields an empty Event.
func Salvage(payload []byte) Event {
	if len(payload) == 0 || len(payload) > MaxSalvageSize {
		return Event{}
	}

	if bytes.Contains(payload, []byte(citationsFieldSignature)) {
		return Event{Citations: salvageCitationBatch(payload)}
	}

	if m := salvageContent.FindSubmatch(payload); m != nil {
		if s, ok := unquote(m[1]); ok {
			return Event{Content: s}
		}
	}
	return Event{}
}

func salvageCitationBatch(payload []byte) []model.Citation {
	m := salvageCitations.FindSubmatch(payload)
	if m == nil {
		return nil
	}
	data := m[1]

	titles := allStrings(salvageTitle, data)
	urls := allStrings(salvageURL, data)
	snippets := allStrings(salvageContent, data)

	n := len(titles)
	if len(urls) > n {
		n = len(urls)
	}

	var out []model.Citation
	for i := 0; i < n; i++ {
		c := model.Citation{
			Title:   at(titles, i),
			URL:     at(urls, i),
			Content: at(snippets, i),
		}
		if c.Empty() {
			continue
		}
		out = append(out, c.Normalize())
	}
	return out
}

func allStrings(re *regexp.Regexp, data []byte) []string {
	var out []string
	for _, m := range re.FindAllSubmatch(data, -1) {
		s, ok := unquote(m[1])
		if !ok {
			s = string(m[1])
		}
		out = append(out, s)
	}
	return out
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

// unquote decodes the body of a JSON string literal.
func unquote(body []byte) (string, bool) {
	lit := make([]byte, 0, len(body)+2)
	lit = append(lit, '"')
	lit = append(lit, body...)
	lit = append(lit, '"')

	var s string
	if err := json.Unmarshal(lit, &s); err != nil {
		return "", false
	}
	return s, true
}
