// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat interface for rigchat.

The chat package implements a terminal chat client on the Bubble Tea
framework. It drives a session.Session: every submitted turn runs through
Session.Send and the reply is drawn as it streams.

# Key Components

## Model (model.go)

The Model struct is the central Bubble Tea model:
  - The display log, mirrored from the session transcript plus local notices
  - A textarea for multi-line input
  - A viewport for scrolling the conversation
  - The live frame of the reply being streamed

## View Rendering (view.go)

  - Header with model name, expert and web badges and stream state
  - User bubbles, glamour-rendered assistant replies, notices
  - Status bar with key help

## Streaming (streaming.go)

Frames arrive from the stream goroutine on every delta. A frameBuffer keeps
only the latest frame and the update loop polls it at 30fps, so rendering
cost does not grow with the delta rate.

## Commands (commands.go)

  - /help, /clear, /quit
  - /model, /models - Show, switch and list models
  - /expert, /web - Toggle expert mode and web search
  - /image - Attach an image to the next message
  - /export - Export the transcript
  - /status - Session statistics

# Usage

	m := chat.New(chat.Config{Session: sess, Style: "dark"})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
	sess.Abandon()
*/
package chat
