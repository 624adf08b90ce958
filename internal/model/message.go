// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidMessage is returned when a message is missing a role or content.
var ErrInvalidMessage = errors.New("invalid message")

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleError:
		return true
	}
	return false
}

// Conversational reports whether messages with this role are sent back to
// the model as history.
func (r Role) Conversational() bool {
	return r == RoleUser || r == RoleAssistant
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleError:
		return "Error"
	default:
		return string(r)
	}
}

// =============================================================================
// CONTENT PARTS
// =============================================================================

// Part types understood by chat-completion endpoints.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ImageURL references an image, usually as a data: URL.
type ImageURL struct {
	URL string `json:"url"`
}

// ContentPart is one element of structured message content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart builds an image_url content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImageURL, ImageURL: &ImageURL{URL: url}}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single entry in a transcript.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Content is the plain-text form of the message.
	Content string `json:"content"`

	// Parts holds structured content when the message carries more than
	// text (the images attached to a user turn).
	Parts []ContentPart `json:"parts,omitempty"`

	Citations []Citation `json:"citations,omitempty"`

	// Reasoning is nil when the model sent no reasoning at all.
	Reasoning *string `json:"reasoning,omitempty"`

	// Model records which model produced an assistant message.
	Model string `json:"model,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        "msg_" + uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) *Message {
	return NewMessage(RoleAssistant, content)
}

// NewErrorMessage creates an error annotation for display.
func NewErrorMessage(content string) *Message {
	return NewMessage(RoleError, content)
}

// Validate checks that the message has a known role and some content.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	if m.Role == "" {
		return fmt.Errorf("%w: missing role", ErrInvalidMessage)
	}
	if !m.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, m.Role)
	}
	if m.Content == "" && len(m.Parts) == 0 {
		return fmt.Errorf("%w: empty content", ErrInvalidMessage)
	}
	return nil
}

// Text returns the textual content, joining text parts when Content is empty.
func (m Message) Text() string {
	if m.Content != "" || len(m.Parts) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Type != PartText || p.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// HasReasoning reports whether any reasoning was recorded.
func (m Message) HasReasoning() bool {
	return m.Reasoning != nil
}

// ImageCount returns the number of image parts.
func (m Message) ImageCount() int {
	n := 0
	for _, p := range m.Parts {
		if p.Type == PartImageURL {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = make([]ContentPart, len(m.Parts))
		for i, p := range m.Parts {
			out.Parts[i] = p
			if p.ImageURL != nil {
				img := *p.ImageURL
				out.Parts[i].ImageURL = &img
			}
		}
	}
	if m.Citations != nil {
		out.Citations = make([]Citation, len(m.Citations))
		copy(out.Citations, m.Citations)
	}
	if m.Reasoning != nil {
		r := *m.Reasoning
		out.Reasoning = &r
	}
	return out
}

// CloneMessages deep-copies a slice of messages.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
