// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Saved transcript command handler for rigchat CLI.
//
// Command: history [show|clear|export]
// Short:   Inspect, clear or export the saved transcript
// Aliases: hist
//
// Examples:
//   rigchat history                       Show the saved transcript
//   rigchat history show --limit 10       Show the last 10 messages
//   rigchat history clear --yes           Clear without prompting
//   rigchat history export html chat.html Export as standalone HTML
package cli

import (
	"fmt"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/transcript"
)

// HandleHistory handles the "history" command.
func HandleHistory(args Args) error {
	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()
	return runHistory(app, args)
}

func runHistory(app *App, args Args) error {
	store, err := app.OpenStore()
	if err != nil {
		return err
	}
	if err := store.Restore(); err != nil {
		fmt.Fprintf(app.errOut, "%s saved transcript could not be read: %v\n",
			RenderConditional(WarningStyle, "[Warning]"), err)
	}

	switch args.Subcommand {
	case "", "show", "list":
		return historyShow(app, store, args)
	case "clear":
		return historyClear(app, store, args)
	case "export":
		return historyExport(app, store, args)
	default:
		return NewValidationErrorWithExample("subcommand", args.Subcommand,
			"unknown history command", "rigchat history [show|clear|export <format> [path]]")
	}
}

func historyShow(app *App, store *transcript.Store, args Args) error {
	msgs := store.Snapshot()
	if args.JSON {
		shown := msgs
		if args.Limit > 0 && len(shown) > args.Limit {
			shown = shown[len(shown)-args.Limit:]
		}
		if shown == nil {
			shown = []model.Message{}
		}
		return NewJSONResponse("history", HistoryData{
			Key:      store.Key(),
			Count:    len(msgs),
			Messages: shown,
		}).Write(app.out)
	}

	fmt.Fprintf(app.out, "%s %s (%d messages)\n",
		RenderConditional(TitleStyle, "Transcript"), store.Key(), len(msgs))
	printHistory(app.out, msgs, args.Limit)
	return nil
}

func historyClear(app *App, store *transcript.Store, args Args) error {
	n := store.Len()
	if n == 0 {
		fmt.Fprintln(app.out, RenderConditional(infoStyle, "[No messages to clear]"))
		return nil
	}
	if !args.Yes {
		if !CanPrompt() {
			return NewValidationErrorWithExample("yes", "", "confirmation required when stdin is not a terminal",
				"rigchat history clear --yes")
		}
		if !PromptYesNo(fmt.Sprintf("Delete %d saved messages?", n)) {
			ShowCancellationMessage()
			return nil
		}
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	app.Logger.Printf("HISTORY_CLEAR | key=%s messages=%d", store.Key(), n)

	if args.JSON {
		return NewJSONResponse("history", map[string]any{"cleared": n}).Write(app.out)
	}
	fmt.Fprintf(app.out, "%s Cleared %d messages\n", RenderConditional(SuccessStyle, "[OK]"), n)
	return nil
}

func historyExport(app *App, store *transcript.Store, args Args) error {
	if args.Format == "" {
		return ErrMissingArgument("format", "rigchat history export markdown [path]")
	}
	path, err := exportTranscript(app, store.Snapshot(), app.Config.Chat.Model, args.Format, args.Path)
	if err != nil {
		return err
	}
	app.Logger.Printf("HISTORY_EXPORT | format=%s path=%s", args.Format, path)

	if args.JSON {
		return NewJSONResponse("history", map[string]any{"path": path, "format": args.Format}).Write(app.out)
	}
	fmt.Fprintf(app.out, "%s Exported to %s\n", RenderConditional(SuccessStyle, "[OK]"), path)
	return nil
}
