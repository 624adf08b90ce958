// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/stream"
)

// =============================================================================
// FRAME BUFFER
// =============================================================================

const (
	maxFPS        = 30
	minFlushDelay = time.Second / maxFPS
)

// frameBuffer hands stream frames from the Send goroutine to the update
// loop. Frames are snapshots, so only the latest one is kept; Flush returns
// it at most once per minFlushDelay.
//
// All methods are safe for concurrent use.
type frameBuffer struct {
	mu        sync.Mutex
	frame     stream.Frame
	pending   bool
	frames    int
	lastFlush time.Time
	minDelay  time.Duration
}

func newFrameBuffer() *frameBuffer {
	return &frameBuffer{minDelay: minFlushDelay}
}

// Write stores f. It has the stream.RenderFunc signature.
func (fb *frameBuffer) Write(f stream.Frame) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.frame = f
	fb.pending = true
	fb.frames++
}

// Flush returns the latest frame if one arrived since the last flush and
// the frame interval has passed.
func (fb *frameBuffer) Flush() (stream.Frame, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if !fb.pending || time.Since(fb.lastFlush) < fb.minDelay {
		return stream.Frame{}, false
	}
	return fb.takeLocked(), true
}

func (fb *frameBuffer) takeLocked() stream.Frame {
	fb.pending = false
	fb.lastFlush = time.Now()
	return fb.frame
}

// Frames returns how many frames were written since the last Reset.
func (fb *frameBuffer) Frames() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.frames
}

// Reset drops any pending frame.
func (fb *frameBuffer) Reset() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.frame = stream.Frame{}
	fb.pending = false
	fb.frames = 0
	fb.lastFlush = time.Time{}
}

// streamTickCmd schedules the next frame poll.
func streamTickCmd() tea.Cmd {
	return tea.Tick(minFlushDelay, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
