// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"time"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// Transcript is the exportable form of a conversation.
type Transcript struct {
	Title     string          `json:"title"`
	Model     string          `json:"model,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []model.Message `json:"messages"`
}

// FromMessages builds a Transcript from committed messages. Error
// annotations are left out. The title is the first user message, shortened.
func FromMessages(msgs []model.Message, modelName string) *Transcript {
	t := &Transcript{Model: modelName, Title: "Conversation"}
	for _, m := range msgs {
		if m.Role == model.RoleError {
			continue
		}
		t.Messages = append(t.Messages, m.Clone())
	}

	for _, m := range t.Messages {
		if m.Role == model.RoleUser {
			if title := util.Oneline(m.Text(), 60); title != "" {
				t.Title = title
			}
			break
		}
	}

	for _, m := range t.Messages {
		if m.Timestamp.IsZero() {
			continue
		}
		if t.CreatedAt.IsZero() || m.Timestamp.Before(t.CreatedAt) {
			t.CreatedAt = m.Timestamp
		}
		if m.Timestamp.After(t.UpdatedAt) {
			t.UpdatedAt = m.Timestamp
		}
		if t.Model == "" && m.Model != "" {
			t.Model = m.Model
		}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
		t.UpdatedAt = t.CreatedAt
	}
	return t
}

func (t *Transcript) validate() error {
	if t == nil || len(t.Messages) == 0 {
		return ErrEmptyTranscript
	}
	return nil
}
