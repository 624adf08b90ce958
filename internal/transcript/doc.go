// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript owns the ordered message history of a chat session and
// mirrors it to a durable key-value slot.
//
// The Store is the only writer of committed messages. Appends and clears
// persist immediately; a failed persist is logged and recorded but never
// fails the conversation. Restore tolerates a missing or corrupt slot by
// starting from an empty history.
//
// # Usage
//
//	store := transcript.New(kv, transcript.WithLogger(logger))
//	if err := store.Restore(); err != nil {
//	    // informational: the slot was corrupt and history starts empty
//	}
//	store.Append(model.NewUserMessage("Hello"))
//	history := store.Snapshot()
package transcript
