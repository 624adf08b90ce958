// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution.
//
// This test file covers argument parsing, the chat REPL and the one-shot
// commands against a fake provider.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/stream"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeProvider serves /chat/completions as SSE and /models as JSON.
type fakeProvider struct {
	mu     sync.Mutex
	chunks []string
	bodies []map[string]any
	status int
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/models":
		if f.status != 0 {
			w.WriteHeader(f.status)
			fmt.Fprint(w, `{"error":"denied"}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"zeta-8b"},{"id":"alpha-70b"},{"id":"llama-3.3-70b"}]}`)
	case "/chat/completions":
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.bodies = append(f.bodies, body)
		chunks := f.chunks
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			data, _ := json.Marshal(map[string]any{
				"choices": []any{map[string]any{"delta": map[string]any{"content": c}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeProvider) lastBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return nil
	}
	return f.bodies[len(f.bodies)-1]
}

// newTestEnv starts a fake provider and returns an app pointed at it with
// in-memory storage and plain rendering.
func newTestEnv(t *testing.T, chunks ...string) (*App, *fakeProvider, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("RIGCHAT_HOME", t.TempDir())

	fp := &fakeProvider{chunks: chunks}
	srv := httptest.NewServer(fp)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Chat.APIKey = "test-key"
	cfg.Chat.Endpoint = srv.URL
	cfg.Chat.Model = "llama-3.3-70b"
	cfg.Storage.Backend = "memory"
	cfg.UI.Render = "plain"

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	app := newTestApp(cfg, Args{}, out, errOut)
	t.Cleanup(func() { app.Close() })
	return app, fp, out, errOut
}

func frameOf(v render.View) stream.Frame {
	return stream.Frame{State: stream.StateStreaming, View: v}
}

func newTestREPL(t *testing.T, app *App, input string) *chatREPL {
	t.Helper()
	store, err := app.OpenStore()
	require.NoError(t, err)
	sess, err := app.NewSession(store, render.Markdown{})
	require.NoError(t, err)
	return newChatREPL(app, sess, newScanReader(strings.NewReader(input)))
}

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"show"},
			wantSub: "show",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"show", "--limit", "50"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "50", p.Flag("limit"))
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"--addr=127.0.0.1:9000"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "127.0.0.1:9000", p.Flag("addr"))
			},
		},
		{
			name:    "declared boolean does not consume next arg",
			args:    []string{"--yes", "clear"},
			bools:   []string{"yes"},
			wantSub: "clear",
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("yes"))
			},
		},
		{
			name:    "boolean with explicit value",
			args:    []string{"--web=false", "q"},
			bools:   []string{"web"},
			wantSub: "q",
			validate: func(t *testing.T, p *ArgParser) {
				assert.False(t, p.BoolFlag("web"))
				assert.True(t, p.HasFlag("web"))
			},
		},
		{
			name:    "repeatable flag",
			args:    []string{"--image", "a.png", "--image", "b.png", "what"},
			wantSub: "what",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, []string{"a.png", "b.png"}, p.FlagAll("image"))
				assert.Equal(t, "b.png", p.Flag("image"))
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"--", "--not-a-flag"},
			wantSub: "--not-a-flag",
		},
		{
			name:    "lone dash is positional",
			args:    []string{"-"},
			wantSub: "-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			assert.Equal(t, tt.wantSub, p.Subcommand())
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_Positional(t *testing.T) {
	p := NewArgParser([]string{"set", "chat.model", "llama", "3"})
	assert.Equal(t, 4, p.PositionalCount())
	assert.Equal(t, "chat.model", p.Positional(1))
	assert.Equal(t, "", p.Positional(9))
	assert.Equal(t, []string{"llama", "3"}, p.PositionalFrom(2))
	assert.Empty(t, p.PositionalFrom(10))
	assert.Equal(t, "llama 3", JoinPositionalArgs(p, 2))
}

func TestParseIntWithValidation(t *testing.T) {
	n, err := ParseIntWithValidation("20", "limit")
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := ParseIntWithValidation(bad, "limit")
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"true", "YES", "y", "1", "on"} {
		b, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, b, s)
	}
	for _, s := range []string{"false", "no", "n", "0", " off "} {
		b, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, b, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParseArgs_Commands(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
	}{
		{nil, CmdDefault},
		{[]string{"chat"}, CmdChat},
		{[]string{"a", "hi"}, CmdAsk},
		{[]string{"tui"}, CmdTUI},
		{[]string{"hist"}, CmdHistory},
		{[]string{"models"}, CmdModels},
		{[]string{"config", "show"}, CmdConfig},
		{[]string{"relay"}, CmdServe},
		{[]string{"diag"}, CmdDoctor},
		{[]string{"--version"}, CmdVersion},
		{[]string{"-h"}, CmdHelp},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, "_"), func(t *testing.T) {
			cmd, _, err := ParseArgs(tt.argv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestParseArgs_GlobalFlagsAnywhere(t *testing.T) {
	cmd, args, err := ParseArgs([]string{"ask", "--json", "what", "--model", "zeta-8b", "is", "go", "--no-color"})
	require.NoError(t, err)
	assert.Equal(t, CmdAsk, cmd)
	assert.True(t, args.JSON)
	assert.True(t, args.NoColor)
	assert.Equal(t, "zeta-8b", args.Model)
	assert.Equal(t, "what is go", args.Query)
}

func TestParseArgs_AskFlags(t *testing.T) {
	_, args, err := ParseArgs([]string{"ask", "--expert", "--web", "--save", "--image", "x.png", "describe", "this"})
	require.NoError(t, err)
	assert.True(t, args.Expert)
	assert.True(t, args.WebSearch)
	assert.True(t, args.Save)
	assert.Equal(t, []string{"x.png"}, args.Images)
	assert.Equal(t, "describe this", args.Query)
}

func TestParseArgs_ChatToggles(t *testing.T) {
	cmd, args, err := ParseArgs([]string{"chat", "--expert"})
	require.NoError(t, err)
	assert.Equal(t, CmdChat, cmd)
	assert.True(t, args.Expert)
	assert.False(t, args.WebSearch)

	cmd, args, err = ParseArgs([]string{"tui", "--web"})
	require.NoError(t, err)
	assert.Equal(t, CmdTUI, cmd)
	assert.True(t, args.WebSearch)
}

func TestParseArgs_History(t *testing.T) {
	_, args, err := ParseArgs([]string{"history", "show", "--limit", "5"})
	require.NoError(t, err)
	assert.Equal(t, "show", args.Subcommand)
	assert.Equal(t, 5, args.Limit)

	_, args, err = ParseArgs([]string{"history", "export", "html", "out.html"})
	require.NoError(t, err)
	assert.Equal(t, "html", args.Format)
	assert.Equal(t, "out.html", args.Path)

	_, args, err = ParseArgs([]string{"history", "--yes", "clear"})
	require.NoError(t, err)
	assert.Equal(t, "clear", args.Subcommand)
	assert.True(t, args.Yes)

	_, _, err = ParseArgs([]string{"history", "export"})
	assert.Error(t, err)

	_, _, err = ParseArgs([]string{"history", "--limit", "zero"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestParseArgs_Config(t *testing.T) {
	_, args, err := ParseArgs([]string{"config", "set", "chat.system_prompt", "be", "brief"})
	require.NoError(t, err)
	assert.Equal(t, "set", args.Subcommand)
	assert.Equal(t, "chat.system_prompt", args.ConfigKey)
	assert.Equal(t, "be brief", args.ConfigVal)
}

func TestParseArgs_UnknownCommandSuggests(t *testing.T) {
	cmd, _, err := ParseArgs([]string{"chta"})
	require.Error(t, err)
	assert.Equal(t, CmdHelp, cmd)
	assert.Contains(t, err.Error(), "rigchat chat")
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// SUGGESTION TESTS (suggest.go)
// =============================================================================

func TestSuggestCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"chta", "chat"},
		{"hepl", "help"},
		{"modles", "models"},
		{"doctr", "doctor"},
		{"x", ""},
		{"chat", ""},
		{"zzzzzzzz", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SuggestCommand(tt.input), "input %q", tt.input)
	}
}

func TestSuggestSlashCommand(t *testing.T) {
	assert.Equal(t, "/clear", SuggestSlashCommand("/claer"))
	assert.Equal(t, "/status", SuggestSlashCommand("statsu"))
	assert.Equal(t, "", SuggestSlashCommand("/quit"))
}

// =============================================================================
// ERROR TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("limit", "x", "bad"), ExitUsageError},
		{"missing key", ErrNoAPIKey, ExitConfigError},
		{"expert", fmt.Errorf("wrap: %w", session.ErrExpertUnavailable), ExitConfigError},
		{"cancelled", fmt.Errorf("ask: %w", context.Canceled), ExitInterrupted},
		{"timeout", context.DeadlineExceeded, ExitTimeoutError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

// =============================================================================
// OUTPUT HELPER TESTS (chat.go, terminal.go, helpers.go, confirm.go)
// =============================================================================

func TestScreenRows(t *testing.T) {
	assert.Equal(t, 1, screenRows("hello", 80))
	assert.Equal(t, 2, screenRows("a\nb\n", 80))
	assert.Equal(t, 3, screenRows(strings.Repeat("x", 25), 10))
	assert.Equal(t, 3, screenRows("a\n\nb", 80))
}

func TestLiveText(t *testing.T) {
	cites := []model.Citation{{Title: "Go", URL: "https://go.dev"}}
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", "hello", "hello"},
		{"complete marker", "Go is fast[REF]1[/REF].", "Go is fast[1]."},
		{"open marker held", "Go is fast[REF]1", "Go is fast"},
		{"partial tag held", "Go is fast[RE", "Go is fast"},
		{"think stripped", "<think>hmm</think>Answer", "Answer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := render.View{Content: tt.content, Citations: cites}
			assert.Equal(t, tt.want, liveText(v))
		})
	}
}

func TestSourcesText(t *testing.T) {
	out := sourcesText([]model.Citation{
		{Title: "Go", URL: "https://go.dev"},
		{Title: "Spec", URL: "https://go.dev/ref/spec"},
	})
	assert.Equal(t, "Sources:\n  [1] Go - https://go.dev\n  [2] Spec - https://go.dev/ref/spec", out)
}

func TestStreamPrinter_SkipsNonExtendingFrames(t *testing.T) {
	var buf bytes.Buffer
	p := newStreamPrinter(&buf, true, false)
	feed := func(content string) {
		p.onFrame(frameOf(render.View{Content: content}))
	}
	feed("Hel")
	feed("Hello")
	feed("Jello")
	feed("Hello world")
	assert.Equal(t, "Hello world", buf.String())
	assert.Equal(t, 1, p.rows(80))
}

func TestStreamPrinter_Reasoning(t *testing.T) {
	SetColorsEnabled(false)
	var buf bytes.Buffer
	p := newStreamPrinter(&buf, true, false)
	p.onFrame(frameOf(render.View{Reasoning: "let me", HasReasoning: true}))
	p.onFrame(frameOf(render.View{Reasoning: "let me think", HasReasoning: true}))
	p.onFrame(frameOf(render.View{Reasoning: "let me think", HasReasoning: true, Content: "<think>let me think</think>Yes"}))
	assert.Equal(t, "Thinking...\nlet me think\n\nYes", buf.String())
}

func TestStreamPrinter_NotLive(t *testing.T) {
	var buf bytes.Buffer
	p := newStreamPrinter(&buf, false, false)
	p.onFrame(frameOf(render.View{Content: "hi"}))
	assert.Empty(t, buf.String())
	assert.Zero(t, p.rows(80))
}

func TestToggleArg(t *testing.T) {
	on, err := toggleArg(nil, false)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = toggleArg([]string{"off"}, true)
	require.NoError(t, err)
	assert.False(t, on)

	_, err = toggleArg([]string{"sideways"}, true)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestPromptYesNo(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, promptYesNo(&out, strings.NewReader("y\n"), "Delete?"))
	assert.Contains(t, out.String(), "Delete? [y/N]")
	assert.True(t, promptYesNo(&out, strings.NewReader("YES\n"), "q"))
	assert.False(t, promptYesNo(&out, strings.NewReader("\n"), "q"))
	assert.False(t, promptYesNo(&out, strings.NewReader(""), "q"))
}

func TestValidateOutputPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	abs, err := ValidateOutputPath("chat.md")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))

	_, err = ValidateOutputPath("../escape.md")
	assert.Error(t, err)

	_, err = ValidateOutputPath("/etc/rigchat.md")
	assert.Error(t, err)
}

func TestIsPathWithinDir(t *testing.T) {
	assert.True(t, isPathWithinDir("/home/user/a.md", "/home/user"))
	assert.True(t, isPathWithinDir("/home/user", "/home/user"))
	assert.False(t, isPathWithinDir("/home/userEVIL/a.md", "/home/user"))
}

// =============================================================================
// CHAT REPL TESTS (chat.go)
// =============================================================================

func TestChatREPL_SendCommitsReply(t *testing.T) {
	app, fp, out, errOut := newTestEnv(t, "Hello", " world")
	r := newTestREPL(t, app, "")

	require.NoError(t, r.send(context.Background(), "hi there"))

	assert.Contains(t, out.String(), "Hello world")
	assert.Contains(t, errOut.String(), "[Stats]")
	assert.Equal(t, "llama-3.3-70b", fp.lastBody()["model"])

	history := r.sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, "Hello world", history[1].Content)
}

func TestChatREPL_Run(t *testing.T) {
	SetColorsEnabled(false)
	app, fp, out, errOut := newTestEnv(t, "pong")
	input := strings.Join([]string{
		"/model alpha-70b",
		"/web on",
		"ping",
		"/bogus",
		"/clera",
		"/status",
		"/clear",
		"/quit",
		"never sent",
	}, "\n")
	r := newTestREPL(t, app, input)

	require.NoError(t, r.run(context.Background()))

	assert.Contains(t, out.String(), "Switched to model: alpha-70b")
	assert.Contains(t, out.String(), "Web search on")
	assert.Contains(t, out.String(), "pong")
	assert.Contains(t, out.String(), "[Conversation cleared]")
	assert.Contains(t, out.String(), "Goodbye!")
	assert.Contains(t, errOut.String(), "unknown command: /bogus")
	assert.Contains(t, errOut.String(), "did you mean /clear?")

	body := fp.lastBody()
	require.NotNil(t, body)
	assert.Equal(t, "alpha-70b", body["model"])
	assert.Empty(t, r.sess.History())
}

func TestChatREPL_ExpertUnavailable(t *testing.T) {
	app, _, _, _ := newTestEnv(t)
	r := newTestREPL(t, app, "")

	_, err := r.handleSlashCommand(context.Background(), "/expert on")
	require.Error(t, err)
	assert.True(t, errors.Is(err, session.ErrExpertUnavailable))
	assert.False(t, r.sess.Options().Expert)
}

func TestChatREPL_ImageAttachment(t *testing.T) {
	app, _, out, _ := newTestEnv(t)
	r := newTestREPL(t, app, "")
	ctx := context.Background()

	_, err := r.handleSlashCommand(ctx, "/image https://example.com/cat.png")
	require.NoError(t, err)
	assert.Len(t, r.images, 1)
	assert.Contains(t, out.String(), "1 image(s) attached")

	_, err = r.handleSlashCommand(ctx, "/image")
	require.NoError(t, err)
	assert.Empty(t, r.images)

	_, err = r.handleSlashCommand(ctx, "/image")
	assert.Error(t, err)
}

func TestChatREPL_ListModels(t *testing.T) {
	SetColorsEnabled(false)
	app, _, out, _ := newTestEnv(t)
	r := newTestREPL(t, app, "")

	_, err := r.handleSlashCommand(context.Background(), "/models")
	require.NoError(t, err)
	assert.Equal(t, "  alpha-70b\n* llama-3.3-70b\n  zeta-8b\n", out.String())
}

func TestChatREPL_ExportEmpty(t *testing.T) {
	app, _, _, _ := newTestEnv(t)
	r := newTestREPL(t, app, "")

	_, err := r.handleSlashCommand(context.Background(), "/export markdown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

// =============================================================================
// ONE-SHOT COMMAND TESTS (ask.go, history.go, config.go, models.go, doctor.go)
// =============================================================================

func TestRunAsk_JSON(t *testing.T) {
	app, _, out, _ := newTestEnv(t, "Go is ", "a language")

	err := runAsk(context.Background(), app, Args{Query: "what is go", JSON: true}, nil)
	require.NoError(t, err)

	var resp struct {
		Success bool    `json:"success"`
		Data    AskData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Go is a language", resp.Data.Response)
	assert.Equal(t, "completed", resp.Data.State)
	assert.Equal(t, 2, resp.Data.Deltas)
}

func TestRunAsk_QuestionFromStdin(t *testing.T) {
	app, fp, out, _ := newTestEnv(t, "ok")

	err := runAsk(context.Background(), app, Args{}, strings.NewReader("  summarize this\n"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "ok")

	msgs, _ := fp.lastBody()["messages"].([]any)
	require.NotEmpty(t, msgs)
	last, _ := msgs[len(msgs)-1].(map[string]any)
	assert.Equal(t, "summarize this", last["content"])
}

func TestRunAsk_Errors(t *testing.T) {
	app, _, _, _ := newTestEnv(t)

	err := runAsk(context.Background(), app, Args{}, strings.NewReader(""))
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	app.Client = newClient(config.Default(), app.Logger)
	err = runAsk(context.Background(), app, Args{Query: "hi"}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestRunAsk_SaveRecordsExchange(t *testing.T) {
	app, _, _, _ := newTestEnv(t, "saved")

	require.NoError(t, runAsk(context.Background(), app, Args{Query: "remember", Save: true}, nil))

	store, err := app.OpenStore()
	require.NoError(t, err)
	require.NoError(t, store.Restore())
	assert.Equal(t, 2, store.Len())
}

func TestRunHistory_ShowAndClear(t *testing.T) {
	app, _, out, _ := newTestEnv(t)
	store, err := app.OpenStore()
	require.NoError(t, err)
	require.NoError(t, store.Append(model.NewUserMessage("first question")))
	require.NoError(t, store.Append(model.NewAssistantMessage("first answer")))

	require.NoError(t, runHistory(app, Args{Subcommand: "show", JSON: true, Limit: 1}))
	var resp struct {
		Data HistoryData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.Count)
	require.Len(t, resp.Data.Messages, 1)
	assert.Equal(t, "first answer", resp.Data.Messages[0].Content)

	out.Reset()
	require.NoError(t, runHistory(app, Args{Subcommand: "clear", Yes: true}))
	assert.Contains(t, out.String(), "Cleared 2 messages")

	store, err = app.OpenStore()
	require.NoError(t, err)
	require.NoError(t, store.Restore())
	assert.Zero(t, store.Len())
}

func TestRunHistory_Export(t *testing.T) {
	app, _, out, _ := newTestEnv(t)
	t.Chdir(t.TempDir())
	store, err := app.OpenStore()
	require.NoError(t, err)
	require.NoError(t, store.Append(model.NewUserMessage("export me")))
	require.NoError(t, store.Append(model.NewAssistantMessage("exported")))

	require.NoError(t, runHistory(app, Args{Subcommand: "export", Format: "markdown", Path: "chat.md"}))
	assert.Contains(t, out.String(), "Exported to")

	data, err := os.ReadFile("chat.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "export me")
	assert.Contains(t, string(data), "exported")
}

func TestRunHistory_UnknownSubcommand(t *testing.T) {
	app, _, _, _ := newTestEnv(t)
	err := runHistory(app, Args{Subcommand: "rewind"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunConfig_SetWritesFile(t *testing.T) {
	app, _, out, _ := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	app.ConfigFile = path

	require.NoError(t, runConfig(app, Args{Subcommand: "set", ConfigKey: "chat.model", ConfigVal: "zeta-8b"}))
	require.NoError(t, runConfig(app, Args{Subcommand: "set", ConfigKey: "chat.api_key", ConfigVal: "sk-secret-value"}))
	assert.NotContains(t, out.String(), "sk-secret-value")

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "zeta-8b", cfg.Chat.Model)
	assert.Equal(t, "sk-secret-value", cfg.Chat.APIKey)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRunConfig_SetRejectsInvalid(t *testing.T) {
	app, _, _, _ := newTestEnv(t)
	app.ConfigFile = filepath.Join(t.TempDir(), "config.toml")

	err := runConfig(app, Args{Subcommand: "set", ConfigKey: "chat.nonsense", ConfigVal: "1"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	err = runConfig(app, Args{Subcommand: "set", ConfigKey: "ui.render", ConfigVal: "pdf"})
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	_, statErr := os.Stat(app.ConfigFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunConfig_InitRefusesOverwrite(t *testing.T) {
	app, _, _, _ := newTestEnv(t)
	app.ConfigFile = filepath.Join(t.TempDir(), "config.toml")

	require.NoError(t, runConfig(app, Args{Subcommand: "init"}))
	err := runConfig(app, Args{Subcommand: "init", JSON: true})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	require.NoError(t, runConfig(app, Args{Subcommand: "init", Force: true}))
}

func TestLoadConfig_ModelFlagOverridesFile(t *testing.T) {
	t.Setenv("RIGCHAT_HOME", t.TempDir())
	t.Setenv("RIGCHAT_MODEL", "")
	t.Cleanup(config.ResetGlobalForTesting)

	file := config.Default()
	file.Chat.Model = "file-model"
	file.Chat.Temperature = 0.3
	file.Chat.MaxRetries = -1
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.SaveToPath(file, path))

	cfg, got, err := loadConfig(Args{ConfigPath: path, Model: "flag-model"})
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "flag-model", cfg.Chat.Model)
	assert.Equal(t, 0.3, cfg.Chat.Temperature)
	assert.Equal(t, -1, cfg.Chat.MaxRetries)
	assert.Equal(t, "flag-model", config.Global().Chat.Model)

	cfg, _, err = loadConfig(Args{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "file-model", cfg.Chat.Model)
}

func TestNewClient_UsesRetryBudget(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":"busy"}`)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Chat.APIKey = "test-key"
	cfg.Chat.Endpoint = srv.URL
	cfg.Chat.MaxRetries = -1

	_, err := newClient(cfg, log.New(io.Discard, "", 0)).Complete(context.Background(), cloud.ChatRequest{Model: "m"})
	require.Error(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "retries disabled means a single attempt")
}

func TestMaskAPIKey(t *testing.T) {
	masked := maskAPIKey("sk-0123456789abcdef")
	assert.NotContains(t, masked, "0123456789")
	assert.Equal(t, masked, maskAPIKey("sk-0123456789abcdef"))
	assert.NotEqual(t, masked, maskAPIKey("sk-other"))
}

func TestRunModels(t *testing.T) {
	app, _, out, _ := newTestEnv(t)

	require.NoError(t, runModels(context.Background(), app, Args{JSON: true}))
	var resp struct {
		Data ModelsData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, []string{"alpha-70b", "llama-3.3-70b", "zeta-8b"}, resp.Data.Models)
	assert.Equal(t, "llama-3.3-70b", resp.Data.Current)
}

func TestRunModels_AuthFailure(t *testing.T) {
	app, fp, _, _ := newTestEnv(t)
	fp.status = http.StatusUnauthorized

	err := runModels(context.Background(), app, Args{})
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, GetExitCode(err))
}

func TestRunDoctor(t *testing.T) {
	app, _, out, _ := newTestEnv(t)

	require.NoError(t, runDoctor(context.Background(), app, Args{JSON: true}))
	var resp struct {
		Success bool       `json:"success"`
		Data    DoctorData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.Healthy)
	assert.Zero(t, resp.Data.Failed)

	names := make([]string, 0, len(resp.Data.Checks))
	for _, c := range resp.Data.Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Config Valid", "API Key", "Provider Reachable", "Model Available", "Storage Writable"}, names)
}

func TestRunDoctor_Failures(t *testing.T) {
	app, fp, out, _ := newTestEnv(t)
	fp.status = http.StatusUnauthorized
	SetColorsEnabled(false)

	err := runDoctor(context.Background(), app, Args{})
	require.Error(t, err)
	assert.Contains(t, out.String(), "[FAIL] Provider rejected the API key")
	assert.Contains(t, out.String(), "1 failed")
}
