// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
)

// =============================================================================
// TURN CONTROL (THREAD-SAFE)
// =============================================================================

// turnControl holds the cancel function of the turn in flight.
// It must be used as a pointer in Model so the mutex is not copied when
// Update returns model copies.
type turnControl struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func newTurnControl() *turnControl {
	return &turnControl{}
}

// start derives a cancellable context for a new turn, cancelling any
// previous one.
func (tc *turnControl) start(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.cancel != nil {
		tc.cancel()
	}
	tc.cancel = cancel
	return ctx
}

// stop cancels the turn in flight. It reports whether there was one.
func (tc *turnControl) stop() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.cancel == nil {
		return false
	}
	tc.cancel()
	tc.cancel = nil
	return true
}
