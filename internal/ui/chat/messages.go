// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/rigchat/internal/stream"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// StreamTickMsg triggers a poll of the frame buffer.
type StreamTickMsg struct {
	Time time.Time
}

// StreamDoneMsg is sent when Session.Send returns.
type StreamDoneMsg struct {
	// Turn identifies the turn; stale turns are ignored.
	Turn   int
	Result *stream.Result
	Err    error
}

// ModelsMsg carries the provider model list.
type ModelsMsg struct {
	Models []string
	Err    error
}

// ExportMsg reports the outcome of /export.
type ExportMsg struct {
	Path string
	Err  error
}

// noticeExpiredMsg clears the status bar notice it names.
type noticeExpiredMsg struct {
	seq int
}
