// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the chat interface.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Header and status bar
	Bar       lipgloss.Style
	Title     lipgloss.Style
	ModelName lipgloss.Style
	Badge     lipgloss.Style

	// Messages
	UserBubble     lipgloss.Style
	AssistantLabel lipgloss.Style
	System         lipgloss.Style
	Error          lipgloss.Style
	Muted          lipgloss.Style

	// Input area
	Input     lipgloss.Style
	InputBusy lipgloss.Style

	// Status
	Ready     lipgloss.Style
	Streaming lipgloss.Style
	Failed    lipgloss.Style
	Notice    lipgloss.Style
	Alert     lipgloss.Style
	Hint      lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	bar := lipgloss.NewStyle().Background(SurfaceDim)
	t.Bar = bar
	t.Title = bar.Foreground(Purple).Bold(true)
	t.ModelName = bar.Foreground(Cyan)
	t.Badge = bar.Foreground(Amber)

	t.UserBubble = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Foreground(UserBubbleFg).
		Padding(0, 1)
	t.AssistantLabel = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.System = lipgloss.NewStyle().Foreground(SystemBubbleBorder).PaddingLeft(2)
	t.Error = lipgloss.NewStyle().Foreground(Rose).PaddingLeft(2)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)

	t.Input = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Purple)
	t.InputBusy = t.Input.BorderForeground(Overlay)

	t.Ready = bar.Foreground(Emerald)
	t.Streaming = bar.Foreground(Purple)
	t.Failed = bar.Foreground(Rose)
	t.Notice = bar.Foreground(Emerald)
	t.Alert = bar.Foreground(Rose)
	t.Hint = bar.Foreground(TextMuted)
}

// GlamourStyle picks the reply style for "auto": "dark" or "light" by the
// terminal background, "notty" when the terminal has no color.
func (t *Theme) GlamourStyle(style string) string {
	if style != "" && style != "auto" {
		return style
	}
	switch {
	case t.ColorProfile == termenv.Ascii:
		return "notty"
	case t.IsDark:
		return "dark"
	default:
		return "light"
	}
}
