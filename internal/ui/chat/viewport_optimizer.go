// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"crypto/sha256"
	"sync"
)

// =============================================================================
// VIEWPORT GUARD
// =============================================================================

// contentGuard skips viewport updates whose content has not changed.
// Frame polls and spinner ticks would otherwise reset the viewport content
// many times per second with identical text.
type contentGuard struct {
	mu      sync.Mutex
	last    [sha256.Size]byte
	primed  bool
	updates uint64
	skips   uint64
}

func newContentGuard() *contentGuard {
	return &contentGuard{}
}

// changed reports whether content differs from the last content seen.
func (g *contentGuard) changed(content string) bool {
	sum := sha256.Sum256([]byte(content))
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates++
	if g.primed && sum == g.last {
		g.skips++
		return false
	}
	g.last = sum
	g.primed = true
	return true
}

// invalidate forces the next check to report a change.
func (g *contentGuard) invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primed = false
}

// stats returns the number of checks and skipped updates.
func (g *contentGuard) stats() (updates, skips uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.updates, g.skips
}
