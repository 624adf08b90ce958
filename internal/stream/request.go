// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/model"
)

// RequestOptions carries the per-request model settings.
type RequestOptions struct {
	Model               string
	SystemPrompt        string
	MaxCompletionTokens int
	Temperature         float64
	WebSearch           bool
}

// BuildRequest assembles the outgoing messages: the system prompt, then the
// committed history, then the new turn exactly once.
//
// history must be the transcript snapshot taken before the turn was
// appended. Only user and assistant messages with text are replayed, as
// plain strings; the new turn keeps its structured parts (images).
func BuildRequest(history []model.Message, turn model.Message, opts RequestOptions) cloud.ChatRequest {
	msgs := make([]cloud.ChatMessage, 0, len(history)+2)

	if sp := strings.TrimSpace(opts.SystemPrompt); sp != "" {
		msgs = append(msgs, cloud.TextMessage(string(model.RoleSystem), sp))
	}

	for _, m := range history {
		if !m.Role.Conversational() {
			continue
		}
		text := m.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		msgs = append(msgs, cloud.TextMessage(string(m.Role), text))
	}

	msgs = append(msgs, turnMessage(turn))

	req := cloud.ChatRequest{
		Model:               opts.Model,
		Messages:            msgs,
		MaxCompletionTokens: opts.MaxCompletionTokens,
		Temperature:         opts.Temperature,
		Stream:              true,
		VeniceParameters:    &cloud.VeniceParameters{IncludeVeniceSystemPrompt: false},
	}
	if opts.WebSearch {
		req.EnableWebSearch()
	}
	return req
}

func turnMessage(turn model.Message) cloud.ChatMessage {
	role := string(turn.Role)
	if role == "" {
		role = string(model.RoleUser)
	}
	if turn.ImageCount() == 0 {
		return cloud.TextMessage(role, turn.Text())
	}

	parts := make([]model.ContentPart, 0, len(turn.Parts)+1)
	hasText := false
	for _, p := range turn.Parts {
		if p.Type == model.PartText {
			hasText = true
		}
	}
	if !hasText && turn.Content != "" {
		parts = append(parts, model.TextPart(turn.Content))
	}
	parts = append(parts, turn.Parts...)
	return cloud.PartsMessage(role, parts)
}
