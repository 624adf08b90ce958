// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/session"
)

// =============================================================================
// COMMANDS
// =============================================================================

// noticeTTL is how long a status bar notice stays visible.
const noticeTTL = 4 * time.Second

// listModelsTimeout bounds /models.
const listModelsTimeout = 30 * time.Second

// sendCmd runs one turn. Frames go to buf; the outcome comes back as a
// StreamDoneMsg.
func sendCmd(ctx context.Context, sess *session.Session, turn session.Turn, id int, buf *frameBuffer) tea.Cmd {
	return func() tea.Msg {
		res, err := sess.Send(ctx, turn, buf.Write)
		return StreamDoneMsg{Turn: id, Result: res, Err: err}
	}
}

// listModelsCmd fetches the provider's model list.
func listModelsCmd(list func(context.Context) ([]string, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), listModelsTimeout)
		defer cancel()
		ids, err := list(ctx)
		return ModelsMsg{Models: ids, Err: err}
	}
}

// exportCmd writes the transcript.
func exportCmd(export func(format, path string) (string, error), format, path string) tea.Cmd {
	return func() tea.Msg {
		out, err := export(format, path)
		return ExportMsg{Path: out, Err: err}
	}
}

// expireNoticeCmd clears notice seq after noticeTTL.
func expireNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}
