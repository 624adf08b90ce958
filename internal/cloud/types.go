// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import "github.com/jeranaias/rigchat/internal/model"

// ChatMessage is one entry of the request's messages array. Content is
// either a string or a []model.ContentPart.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// TextMessage creates a message with plain string content.
func TextMessage(role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content}
}

// PartsMessage creates a message with structured content.
func PartsMessage(role string, parts []model.ContentPart) ChatMessage {
	return ChatMessage{Role: role, Content: parts}
}

// VeniceParameters carries provider-specific switches.
type VeniceParameters struct {
	IncludeVeniceSystemPrompt    bool   `json:"include_venice_system_prompt"`
	EnableWebSearch              string `json:"enable_web_search,omitempty"`
	EnableWebCitations           bool   `json:"enable_web_citations,omitempty"`
	IncludeSearchResultsInStream bool   `json:"include_search_results_in_stream,omitempty"`
}

// ChatRequest is the body of a /chat/completions request.
type ChatRequest struct {
	Model               string            `json:"model"`
	Messages            []ChatMessage     `json:"messages"`
	MaxCompletionTokens int               `json:"max_completion_tokens,omitempty"`
	Temperature         float64           `json:"temperature"`
	Stream              bool              `json:"stream"`
	WebSearch           string            `json:"web_search,omitempty"`
	VeniceParameters    *VeniceParameters `json:"venice_parameters,omitempty"`
}

// EnableWebSearch switches on web search and inline citations.
func (r *ChatRequest) EnableWebSearch() {
	r.WebSearch = "on"
	if r.VeniceParameters == nil {
		r.VeniceParameters = &VeniceParameters{}
	}
	r.VeniceParameters.EnableWebSearch = "on"
	r.VeniceParameters.EnableWebCitations = true
	r.VeniceParameters.IncludeSearchResultsInStream = r.Stream
}

// ChatResponse is a non-streaming completion response.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// GetContent returns the content of the first choice, or empty string if none.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// ModelInfo describes a model returned by /models.
type ModelInfo struct {
	ID        string         `json:"id"`
	Type      string         `json:"type,omitempty"`
	OwnedBy   string         `json:"owned_by,omitempty"`
	ModelSpec map[string]any `json:"model_spec,omitempty"`
}

type modelsResponse struct {
	Data []ModelInfo `json:"data"`
}
