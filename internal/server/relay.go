// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
)

// ============================================================================
// NORMALIZED FRAMES
// ============================================================================

// relayCitation is the slimmed citation sent to clients.
type relayCitation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type citationsFrame struct {
	VeniceParameters struct {
		WebSearchCitations []relayCitation `json:"web_search_citations"`
	} `json:"venice_parameters"`
}

type replaceReasoningFrame struct {
	VeniceParameters struct {
		ReasoningContent string `json:"reasoning_content"`
	} `json:"venice_parameters"`
}

type contentFrame struct {
	Content string `json:"content"`
}

type reasoningFrame struct {
	ReasoningContent string `json:"reasoning_content"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// framesFor converts one upstream event into the frames sent downstream:
// citations first, then content, then reasoning.
func framesFor(ev stream.Event) []any {
	var frames []any

	if len(ev.Citations) > 0 {
		var f citationsFrame
		f.VeniceParameters.WebSearchCitations = slimCitations(ev.Citations)
		frames = append(frames, f)
	}
	if ev.Content != "" {
		frames = append(frames, contentFrame{Content: ev.Content})
	}
	if ev.HasReasoning {
		if ev.ReplaceReasoning {
			var f replaceReasoningFrame
			f.VeniceParameters.ReasoningContent = ev.Reasoning
			frames = append(frames, f)
		} else {
			frames = append(frames, reasoningFrame{ReasoningContent: ev.Reasoning})
		}
	}
	return frames
}

func slimCitations(citations []model.Citation) []relayCitation {
	out := make([]relayCitation, 0, len(citations))
	for _, c := range citations {
		rc := relayCitation{Title: strings.TrimSpace(c.Title), URL: strings.TrimSpace(c.URL)}
		if rc.Title == "" {
			rc.Title = "Untitled"
		}
		if rc.URL == "" {
			rc.URL = "#"
		}
		out = append(out, rc)
	}
	return out
}

// ============================================================================
// RELAY
// ============================================================================

// frameWriter writes SSE data lines and flushes after each one.
type frameWriter struct {
	w       io.Writer
	flusher http.Flusher
	frames  int
}

func (fw *frameWriter) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return fw.raw(data)
}

func (fw *frameWriter) raw(payload []byte) error {
	if _, err := fmt.Fprintf(fw.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	fw.frames++
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
	return nil
}

// relayStats summarizes one relayed stream.
type relayStats struct {
	Frames    int
	Malformed int
	Salvaged  int
	Done      bool
	Err       error
}

// relay copies an upstream event stream into normalized frames. It sends
// [DONE] only when upstream did. A transport failure ends the downstream
// stream without [DONE] so the client sees it as interrupted.
func relay(body io.Reader, fw *frameWriter) relayStats {
	var st relayStats
	defer func() { st.Frames = fw.frames }()

	reader := stream.NewReader(body)
	for {
		payload, err := reader.Next()
		if errors.Is(err, stream.ErrPayloadTooLarge) {
			st.Malformed++
			continue
		}
		if errors.Is(err, io.EOF) {
			st.Err = stream.ErrIncompleteStream
			return st
		}
		if err != nil {
			st.Err = err
			return st
		}

		ev, err := stream.DecodeEvent(payload)
		if err != nil {
			st.Malformed++
			ev = stream.Salvage(payload)
			if ev.Empty() {
				continue
			}
			st.Salvaged++
		}

		if ev.Done {
			st.Done = true
			st.Err = fw.raw([]byte(stream.Sentinel))
			return st
		}
		if ev.HasError {
			st.Err = fw.send(errorFrame{Error: ev.Error})
			if st.Err == nil {
				st.Err = &stream.UpstreamError{Message: ev.Error}
			}
			return st
		}

		for _, f := range framesFor(ev) {
			if err := fw.send(f); err != nil {
				st.Err = err
				return st
			}
		}
	}
}

// webSearchOn accepts the switch as a boolean or as "on"/"true".
func webSearchOn(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	r := gjson.ParseBytes(raw)
	switch r.Type {
	case gjson.True:
		return true
	case gjson.String:
		s := strings.ToLower(strings.TrimSpace(r.Str))
		return s == "on" || s == "true"
	default:
		return false
	}
}
