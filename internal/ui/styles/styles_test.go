// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
)

// =============================================================================
// COLOR TESTS
// =============================================================================

func TestAdaptiveColorsDefined(t *testing.T) {
	colors := map[string]struct{ light, dark string }{
		"Purple":     {Purple.Light, Purple.Dark},
		"Cyan":       {Cyan.Light, Cyan.Dark},
		"Emerald":    {Emerald.Light, Emerald.Dark},
		"Rose":       {Rose.Light, Rose.Dark},
		"Amber":      {Amber.Light, Amber.Dark},
		"SurfaceDim": {SurfaceDim.Light, SurfaceDim.Dark},
		"TextMuted":  {TextMuted.Light, TextMuted.Dark},
	}
	for name, c := range colors {
		if !strings.HasPrefix(c.light, "#") || !strings.HasPrefix(c.dark, "#") {
			t.Errorf("%s should define hex light and dark values, got %q / %q", name, c.light, c.dark)
		}
	}
}

func TestStatusIndicatorsASCII(t *testing.T) {
	for _, s := range []string{
		StatusIndicators.Success, StatusIndicators.Error, StatusIndicators.Warning,
		StatusIndicators.Info, StatusIndicators.Pending, StatusIndicators.Active,
	} {
		for _, r := range s {
			if r > 127 {
				t.Errorf("indicator %q is not ASCII", s)
			}
		}
	}
}

// =============================================================================
// THEME TESTS
// =============================================================================

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}
	if got := theme.AssistantLabel.Render("Assistant"); !strings.Contains(got, "Assistant") {
		t.Errorf("AssistantLabel.Render() = %q", got)
	}
	if theme.Input.GetBorderStyle() != theme.InputBusy.GetBorderStyle() {
		t.Error("busy input should keep the input border")
	}
}

func TestGlamourStyle(t *testing.T) {
	tests := []struct {
		name  string
		theme Theme
		style string
		want  string
	}{
		{"explicit", Theme{IsDark: true}, "light", "light"},
		{"auto dark", Theme{IsDark: true, ColorProfile: termenv.TrueColor}, "auto", "dark"},
		{"auto light", Theme{ColorProfile: termenv.ANSI256}, "", "light"},
		{"no color", Theme{IsDark: true, ColorProfile: termenv.Ascii}, "auto", "notty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.theme.GlamourStyle(tt.style); got != tt.want {
				t.Errorf("GlamourStyle(%q) = %q, want %q", tt.style, got, tt.want)
			}
		})
	}
}

// =============================================================================
// ANIMATION TESTS
// =============================================================================

func TestSpinnerDuration(t *testing.T) {
	if got := LineSpinner.Duration(); got != 100*time.Millisecond {
		t.Errorf("LineSpinner.Duration() = %v, want 100ms", got)
	}
	if got := (SpinnerConfig{}).Duration(); got != time.Second {
		t.Errorf("zero FPS Duration() = %v, want 1s", got)
	}
}

func TestSpinnerFrame(t *testing.T) {
	s := LineSpinner
	if got := s.Frame(0); got != "|" {
		t.Errorf("Frame(0) = %q, want %q", got, "|")
	}
	if got := s.Frame(250 * time.Millisecond); got != "-" {
		t.Errorf("Frame(250ms) = %q, want %q", got, "-")
	}
	if got := s.Frame(450 * time.Millisecond); got != "|" {
		t.Errorf("Frame(450ms) should wrap, got %q", got)
	}
	if got := (SpinnerConfig{}).Frame(time.Second); got != "" {
		t.Errorf("empty spinner Frame() = %q", got)
	}
}
