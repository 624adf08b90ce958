// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts.
//
// # Key Types
//
//   - Role: Message role enumeration (system, user, assistant, error)
//   - Message: Single transcript entry with content, optional parts,
//     citations and reasoning
//   - Citation: A web search source referenced by [REF]N[/REF] markers
//   - ContentPart: Structured content (text or image_url) for a user turn
//
// # Usage
//
//	msg := model.NewMessage(model.RoleUser, "Hello!")
//	if err := msg.Validate(); err != nil {
//	    // errors.Is(err, model.ErrInvalidMessage)
//	}
package model
