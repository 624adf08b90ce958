// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Model listing command handler for rigchat CLI.
//
// Command: models
// Short:   List the models offered by the provider
//
// Examples:
//   rigchat models
//   rigchat models --json
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

// HandleModels handles the "models" command.
func HandleModels(args Args) error {
	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return runModels(ctx, app, args)
}

func runModels(ctx context.Context, app *App, args Args) error {
	if err := app.RequireAPIKey(); err != nil {
		return err
	}
	ids, err := fetchModels(ctx, app)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	current := app.Config.Chat.Model

	if args.JSON {
		if ids == nil {
			ids = []string{}
		}
		return NewJSONResponse("models", ModelsData{Models: ids, Current: current}).Write(app.out)
	}

	fmt.Fprintln(app.out, RenderConditional(TitleStyle, fmt.Sprintf("Models (%d)", len(ids))))
	for _, id := range ids {
		if id == current {
			fmt.Fprintf(app.out, "  %s %s\n", id, RenderConditional(SuccessStyle, "(current)"))
			continue
		}
		fmt.Fprintf(app.out, "  %s\n", id)
	}
	return nil
}
