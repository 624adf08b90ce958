// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
)

// Stats holds statistics collected during streaming.
type Stats struct {
	StartTime     time.Time
	FirstTokenAt  time.Time
	EndTime       time.Time
	Events        int
	ContentDeltas int
	Malformed     int
	Salvaged      int
	Model         string
	FinishReason  string
}

// TimeToFirstToken returns the delay before the first content delta.
func (s Stats) TimeToFirstToken() time.Duration {
	if s.FirstTokenAt.IsZero() {
		return 0
	}
	return s.FirstTokenAt.Sub(s.StartTime)
}

// Duration returns the total stream time.
func (s Stats) Duration() time.Duration {
	end := s.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartTime)
}

// Accumulator collects the state of one in-flight response. It is not safe
// for concurrent use; the Assembler owns it for the lifetime of a request.
type Accumulator struct {
	content   strings.Builder
	reasoning *strings.Builder
	citations []model.Citation

	terminated bool
	stats      Stats
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{stats: Stats{StartTime: time.Now()}}
}

// Apply folds an event into the accumulator and reports whether the
// visible state changed. Within one event content is applied first, then
// reasoning, then citations. Events after termination are ignored.
func (a *Accumulator) Apply(ev Event) bool {
	if a.terminated {
		return false
	}
	a.stats.Events++
	if ev.Model != "" {
		a.stats.Model = ev.Model
	}
	if ev.FinishReason != "" {
		a.stats.FinishReason = ev.FinishReason
	}

	changed := false
	if ev.Content != "" {
		if a.stats.FirstTokenAt.IsZero() {
			a.stats.FirstTokenAt = time.Now()
		}
		a.stats.ContentDeltas++
		a.content.WriteString(ev.Content)
		changed = true
	}

	if ev.HasReasoning {
		if a.reasoning == nil {
			a.reasoning = &strings.Builder{}
		}
		if ev.ReplaceReasoning {
			a.reasoning.Reset()
		}
		a.reasoning.WriteString(ev.Reasoning)
		changed = true
	}

	if ev.Citations != nil {
		// Last batch wins.
		a.citations = append([]model.Citation(nil), ev.Citations...)
		changed = true
	}
	return changed
}

// Terminate freezes the accumulator.
func (a *Accumulator) Terminate() {
	if a.terminated {
		return
	}
	a.terminated = true
	a.stats.EndTime = time.Now()
}

// Terminated reports whether Terminate has been called.
func (a *Accumulator) Terminated() bool {
	return a.terminated
}

// Content returns the content received so far.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// Reasoning returns the reasoning so far and whether any was received.
func (a *Accumulator) Reasoning() (string, bool) {
	if a.reasoning == nil {
		return "", false
	}
	return a.reasoning.String(), true
}

// Citations returns a copy of the current citation batch.
func (a *Accumulator) Citations() []model.Citation {
	if a.citations == nil {
		return nil
	}
	return append([]model.Citation(nil), a.citations...)
}

func (a *Accumulator) noteMalformed(salvaged bool) {
	a.stats.Malformed++
	if salvaged {
		a.stats.Salvaged++
	}
}

// Stats returns the collected statistics.
func (a *Accumulator) Stats() Stats {
	return a.stats
}

// View returns an immutable snapshot for rendering.
func (a *Accumulator) View() render.View {
	reasoning, ok := a.Reasoning()
	return render.View{
		Content:      a.Content(),
		Reasoning:    reasoning,
		HasReasoning: ok,
		Citations:    a.Citations(),
	}
}

// Message converts the accumulated state into an assistant message. It
// returns false when the content is blank, in which case nothing should be
// committed.
func (a *Accumulator) Message(modelName string) (*model.Message, bool) {
	content := a.Content()
	if strings.TrimSpace(content) == "" {
		return nil, false
	}
	msg := model.NewAssistantMessage(content)
	msg.Citations = a.Citations()
	if r, ok := a.Reasoning(); ok {
		msg.Reasoning = &r
	}
	msg.Model = modelName
	if a.stats.Model != "" {
		msg.Model = a.stats.Model
	}
	return msg, true
}
