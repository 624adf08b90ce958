// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - Full-screen chat command handler for rigchat CLI.
//
// Command: tui
// Short:   Start the full-screen chat interface
//
// Examples:
//   rigchat tui
//   rigchat tui --model llama-3.3-70b
package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/ui/chat"
)

// HandleTUI handles the "tui" command.
func HandleTUI(args Args) error {
	if err := RequiresTTY("run the full-screen interface"); err != nil {
		return err
	}

	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.RequireAPIKey(); err != nil {
		return err
	}
	store, err := app.OpenStore()
	if err != nil {
		return err
	}
	sess, err := app.NewSession(store, render.Markdown{HideReasoning: app.Config.UI.HideReasoning})
	if err != nil {
		return err
	}
	if args.Expert {
		if !sess.HasExpert() {
			return fmt.Errorf("%w: set expert.models in the config file", session.ErrExpertUnavailable)
		}
		sess.Update(func(o *session.Options) { o.Expert = true })
	}
	if args.WebSearch {
		sess.Update(func(o *session.Options) { o.WebSearch = true })
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go app.WatchConfig(ctx, sess)

	m := chat.New(chat.Config{
		Session:       sess,
		Style:         app.Config.UI.Style,
		HideReasoning: app.Config.UI.HideReasoning,
		Logger:        app.Logger,
		ListModels: func(ctx context.Context) ([]string, error) {
			return fetchModels(ctx, app)
		},
		Export: func(format, path string) (string, error) {
			return exportTranscript(app, sess.History(), sess.Options().Model, format, path)
		},
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	sess.Abandon()
	return nil
}
