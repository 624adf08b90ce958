// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command handler for rigchat CLI.
//
// Handles the "rigchat ask" command which sends one question and prints
// the reply.
//
// Command: ask [question]
// Short:   Ask a single question
// Aliases: a
//
// Examples:
//   rigchat ask "What is the capital of France?"
//   rigchat ask --web "Latest Go release notes"
//   rigchat ask --image chart.png "Summarize this chart"
//   echo "Explain this error" | rigchat ask
//   rigchat ask --json "List three sorting algorithms"
//
// Flags:
//   --web               Enable web search for this question
//   --expert            Answer through expert mode
//   --image PATH|URL    Attach an image (repeatable)
//   --save              Record the exchange in the saved transcript
//   --json              Output the reply as JSON
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/stream"
	"github.com/jeranaias/rigchat/internal/transcript"
)

// MaxStdinQuestion bounds a question read from stdin.
const MaxStdinQuestion = 1 << 20

// HandleAskCommand handles the "ask" command.
func HandleAskCommand(args Args) error {
	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var stdin io.Reader
	if !IsTTY() {
		stdin = os.Stdin
	}
	return runAsk(ctx, app, args, stdin)
}

// runAsk answers one question. stdin, when non-nil, supplies the question
// if none was given on the command line.
func runAsk(ctx context.Context, app *App, args Args, stdin io.Reader) error {
	question := strings.TrimSpace(args.Query)
	if question == "" && stdin != nil {
		data, err := io.ReadAll(io.LimitReader(stdin, MaxStdinQuestion))
		if err != nil {
			return fmt.Errorf("failed to read question from stdin: %w", err)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" && len(args.Images) == 0 {
		return ErrMissingArgument("question", `rigchat ask "your question"`)
	}

	images := make([]string, 0, len(args.Images))
	for _, ref := range args.Images {
		url, err := session.ImageURL(ref)
		if err != nil {
			return NewValidationError("image", ref, err.Error())
		}
		images = append(images, url)
	}

	if err := app.RequireAPIKey(); err != nil {
		return err
	}

	var store *transcript.Store
	if args.Save {
		s, err := app.OpenStore()
		if err != nil {
			return err
		}
		store = s
	} else {
		store = app.MemoryStore()
	}

	sess, err := app.NewSession(store, render.Markdown{HideReasoning: app.Config.UI.HideReasoning})
	if err != nil {
		return err
	}
	sess.Update(func(o *session.Options) {
		if args.WebSearch {
			o.WebSearch = true
		}
		if args.Expert {
			o.Expert = true
		}
	})

	live := !args.JSON && app.Config.UI.Render != "markdown" && isTerminalWriter(app.out)
	p := newStreamPrinter(app.out, live, app.Config.UI.HideReasoning)
	res, sendErr := sess.Send(ctx, session.Turn{Text: question, Images: images}, p.onFrame)

	if args.Save {
		if perr := store.LastPersistError(); perr != nil {
			fmt.Fprintf(app.errOut, "%s transcript not saved: %v\n", RenderConditional(WarningStyle, "[Warning]"), perr)
		}
	}

	if args.JSON {
		if sendErr != nil {
			return sendErr
		}
		return NewJSONResponse("ask", askData(res, sess.Options().Expert)).Write(app.out)
	}

	if res != nil {
		repl := &chatREPL{
			app:    app,
			out:    app.out,
			live:   live,
			final:  app.Formatter(),
			width:  GetTerminalWidth(),
			height: DefaultTerminalHeight,
		}
		if live {
			_, repl.height = GetTerminalSize()
		}
		repl.finish(p, res)
	}
	if sendErr != nil && errors.Is(sendErr, context.Canceled) && res != nil && res.Committed != nil {
		return fmt.Errorf("interrupted, partial reply shown: %w", context.Canceled)
	}
	return sendErr
}

// askData builds the --json payload for a finished turn.
func askData(res *stream.Result, expert bool) AskData {
	v := res.View
	data := AskData{
		Response:   v.Content,
		Citations:  v.Citations,
		Model:      res.Stats.Model,
		State:      res.State.String(),
		Expert:     expert,
		Deltas:     res.Stats.ContentDeltas,
		Malformed:  res.Stats.Malformed,
		TTFTMs:     res.Stats.TimeToFirstToken().Milliseconds(),
		DurationMs: res.Stats.Duration().Milliseconds(),
	}
	if v.HasReasoning {
		data.Reasoning = v.Reasoning
	}
	return data
}
