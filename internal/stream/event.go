// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/jeranaias/rigchat/internal/model"
)

// Payload field paths.
const (
	pathContent             = "content"
	pathReasoning           = "reasoning_content"
	pathDeltaContent        = "choices.0.delta.content"
	pathDeltaReasoning      = "choices.0.delta.reasoning_content"
	pathCitations           = "venice_parameters.web_search_citations"
	pathDeltaCitations      = "choices.0.delta.venice_parameters.web_search_citations"
	pathVeniceReasoning     = "venice_parameters.reasoning_content"
	pathError               = "error"
	pathFinishReason        = "choices.0.finish_reason"
	pathModel               = "model"
	citationsFieldSignature = `"web_search_citations"`
)

// Event is the decoded form of one data payload. A single payload may carry
// several kinds of update at once.
type Event struct {
	// Done is set for the [DONE] sentinel.
	Done bool

	// Content is a content delta.
	Content string

	// Reasoning is a reasoning delta. When ReplaceReasoning is set it
	// replaces the reasoning so far instead of extending it.
	Reasoning        string
	HasReasoning     bool
	ReplaceReasoning bool

	// Citations is a complete batch; nil means the payload had none.
	Citations []model.Citation

	// Error is an upstream error message.
	Error    string
	HasError bool

	Model        string
	FinishReason string
}

// Empty reports whether the event changes nothing.
func (e Event) Empty() bool {
	return !e.Done && e.Content == "" && !e.HasReasoning && e.Citations == nil && !e.HasError
}

// DecodeEvent classifies a data payload. Payloads that are not a JSON object
// return an error wrapping ErrMalformedChunk.
func DecodeEvent(payload []byte) (Event, error) {
	payload = bytes.TrimSpace(payload)
	if string(payload) == Sentinel {
		return Event{Done: true}, nil
	}
	if !gjson.ValidBytes(payload) {
		return Event{}, fmt.Errorf("%w: invalid JSON", ErrMalformedChunk)
	}

	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return Event{}, fmt.Errorf("%w: payload is not an object", ErrMalformedChunk)
	}

	var ev Event
	if e := root.Get(pathError); isSet(e) {
		ev.HasError = true
		ev.Error = errorText(e)
		return ev, nil
	}

	ev.Content = root.Get(pathContent).String() + root.Get(pathDeltaContent).String()

	for _, p := range []string{pathReasoning, pathDeltaReasoning} {
		if r := root.Get(p); r.Type == gjson.String && r.Str != "" {
			ev.Reasoning += r.Str
			ev.HasReasoning = true
		}
	}
	if r := root.Get(pathVeniceReasoning); r.Type == gjson.String && r.Str != "" {
		ev.Reasoning = r.Str
		ev.HasReasoning = true
		ev.ReplaceReasoning = true
	}

	for _, p := range []string{pathCitations, pathDeltaCitations} {
		if c := root.Get(p); c.IsArray() {
			if batch := cleanCitations(c.Array()); len(batch) > 0 {
				ev.Citations = batch
			}
		}
	}

	ev.Model = root.Get(pathModel).String()
	ev.FinishReason = root.Get(pathFinishReason).String()
	return ev, nil
}

// isSet mirrors a truthiness check: null, false and "" do not count.
func isSet(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return r.Str != ""
	}
	return r.Exists()
}

func errorText(e gjson.Result) string {
	switch {
	case e.Type == gjson.String:
		return e.Str
	case e.IsObject():
		if msg := e.Get("message").String(); msg != "" {
			return msg
		}
	}
	return e.Raw
}

// cleanCitations normalizes a citation array, dropping entries with neither
// a title nor a URL.
func cleanCitations(items []gjson.Result) []model.Citation {
	var out []model.Citation
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		c := model.Citation{
			Title:         item.Get("title").String(),
			URL:           item.Get("url").String(),
			Content:       item.Get("content").String(),
			PublishedDate: item.Get("published_date").String(),
		}
		if c.Empty() {
			continue
		}
		out = append(out, c.Normalize())
	}
	return out
}
