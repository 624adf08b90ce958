// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for rigchat.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. The CLI and the full-screen interface share this palette.

# Color System (colors.go)

  - Purple - Primary accent for titles and assistant labels
  - Cyan - Model names, commands and info
  - Emerald, Amber, Rose - Success, warning and error states

Surfaces (Surface, SurfaceDim, Overlay) and text levels (TextPrimary,
TextSecondary, TextMuted) layer on top of the accents.

# Theme System (theme.go)

Theme holds the lipgloss styles of the chat interface and the detected
terminal capabilities:

	theme := styles.NewTheme()
	header := theme.Title.Render(" rigchat ")
	style := theme.GlamourStyle("auto") // "dark", "light" or "notty"

# Animations (animations.go)

Spinner configurations and their frame timing:

	spin := styles.LineSpinner
	frame := spin.Frame(time.Since(start))
*/
package styles
