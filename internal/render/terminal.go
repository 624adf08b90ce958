// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Terminal renders a View through glamour for ANSI terminals. If glamour
// fails the plain markdown is returned.
type Terminal struct {
	mu       sync.Mutex
	renderer *glamour.TermRenderer
	md       Markdown
}

// NewTerminal creates a terminal formatter. style is a glamour standard
// style name ("dark", "light", "notty") or "auto" to follow the terminal
// background; empty selects "dark".
func NewTerminal(style string, wordWrap int) (*Terminal, error) {
	if style == "" {
		style = "dark"
	}
	if wordWrap <= 0 {
		wordWrap = 80
	}
	styleOpt := glamour.WithStandardStyle(style)
	if style == "auto" {
		styleOpt = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(wordWrap))
	if err != nil {
		return nil, err
	}
	return &Terminal{renderer: r}, nil
}

// SetHideReasoning drops reasoning blocks from the output. Call it before
// the first Format.
func (t *Terminal) SetHideReasoning(hide bool) {
	t.md.HideReasoning = hide
}

// Format implements Formatter.
func (t *Terminal) Format(v View) string {
	src := t.md.Format(v)

	// TermRenderer is not safe for concurrent use.
	t.mu.Lock()
	out, err := t.renderer.Render(src)
	t.mu.Unlock()
	if err != nil {
		return src
	}
	return strings.TrimRight(out, "\n") + "\n"
}
