// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared setup for the commands: configuration, logging, the
// provider client and the persisted transcript.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/expert"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/retrieval"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/transcript"
)

// App holds the collaborators shared by the commands.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Client *cloud.Client

	// ConfigFile is the file the config was loaded from, or the default
	// path when none exists yet.
	ConfigFile string

	args    Args
	out     io.Writer
	errOut  io.Writer
	logFile *os.File
	kv      storage.KV
}

// NewApp loads configuration and sets up logging. Logs go to the log file
// under the data dir unless --verbose is set.
func NewApp(args Args) (*App, error) {
	if args.NoColor {
		SetColorsEnabled(false)
	}

	cfg, path, err := loadConfig(args)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		ConfigFile: path,
		args:       args,
		out:        os.Stdout,
		errOut:     os.Stderr,
	}
	if err := app.setupLogger(); err != nil {
		return nil, err
	}
	app.Client = newClient(cfg, app.Logger)
	return app, nil
}

// newTestApp builds an App around cfg with captured output.
func newTestApp(cfg *config.Config, args Args, out, errOut io.Writer) *App {
	logger := log.New(io.Discard, "", 0)
	return &App{
		Config: cfg,
		Logger: logger,
		Client: newClient(cfg, logger),
		args:   args,
		out:    out,
		errOut: errOut,
	}
}

func newClient(cfg *config.Config, logger *log.Logger) *cloud.Client {
	return cloud.NewClient(cfg.Chat.APIKey).
		WithBaseURL(cfg.Chat.Endpoint).
		WithTimeout(cfg.Chat.Timeout()).
		WithMaxRetries(cfg.Chat.Retries()).
		WithLogger(logger)
}

// loadConfig loads --config or the default config file. A broken default
// file falls back to defaults with a warning; a broken --config file is an
// error.
func loadConfig(args Args) (*config.Config, string, error) {
	var cfg *config.Config
	path := args.ConfigPath

	if path != "" {
		loaded, err := config.LoadFromPath(path)
		if err != nil {
			return nil, path, err
		}
		cfg = loaded
	} else {
		loaded, err := config.Load()
		if loaded == nil {
			return nil, "", err
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", RenderConditional(WarningStyle, "Warning:"), err)
		}
		cfg = loaded
		path = defaultConfigFile()
	}

	cfg.Merge(args.overrides())
	config.SetGlobal(cfg)
	return cfg, path, nil
}

// overrides returns the settings given on the command line. They win over
// the config file, including after a reload.
func (args Args) overrides() *config.Config {
	return &config.Config{Chat: config.ChatConfig{Model: args.Model}}
}

// defaultConfigFile returns the existing default config file, preferring
// TOML, or the TOML path when neither exists.
func defaultConfigFile() string {
	tomlPath, err := config.ConfigPathTOML()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath
	}
	if jsonPath, err := config.ConfigPathJSON(); err == nil {
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath
		}
	}
	return tomlPath
}

func (a *App) setupLogger() error {
	if a.args.Verbose {
		a.Logger = log.New(a.errOut, "rigchat ", log.LstdFlags|log.Lmicroseconds)
		return nil
	}

	path := a.Config.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	a.logFile = f
	a.Logger = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
	return nil
}

// Close releases the transcript storage and the log file.
func (a *App) Close() error {
	var errs []error
	if a.kv != nil {
		errs = append(errs, a.kv.Close())
		a.kv = nil
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
		a.logFile = nil
	}
	return errors.Join(errs...)
}

// RequireAPIKey fails when the provider cannot be reached for lack of a key.
func (a *App) RequireAPIKey() error {
	if !a.Client.IsConfigured() {
		return ErrNoAPIKey
	}
	return nil
}

// =============================================================================
// TRANSCRIPT AND SESSION
// =============================================================================

// OpenStore opens the persisted transcript configured under [storage].
func (a *App) OpenStore() (*transcript.Store, error) {
	if a.kv == nil {
		kv, err := storage.Open(storage.Options{
			Backend:      a.Config.Storage.Backend,
			Path:         a.Config.StoragePath(),
			MaxValueSize: a.Config.Storage.MaxValueSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		a.kv = kv
	}
	return transcript.New(a.kv,
		transcript.WithKey(a.Config.Storage.Key),
		transcript.WithLogger(a.Logger),
	), nil
}

// MemoryStore returns a transcript that is never persisted.
func (a *App) MemoryStore() *transcript.Store {
	return transcript.New(storage.NewMemoryKV(0), transcript.WithLogger(a.Logger))
}

// NewSession builds a session over store from the configuration.
// formatter may be nil.
func (a *App) NewSession(store *transcript.Store, formatter render.Formatter) (*session.Session, error) {
	cfg := a.Config
	sc := session.Config{
		Store:     store,
		Transport: a.Client,
		Formatter: formatter,
		Options:   SessionOptions(cfg),
		Logger:    a.Logger,
	}
	if cfg.Retrieval.Enabled {
		rc := retrieval.DefaultConfig()
		rc.BaseURL = cfg.Retrieval.BaseURL
		rc.Limit = cfg.Retrieval.Limit
		sc.Retriever = retrieval.NewClient(rc).WithLogger(a.Logger)
	}
	if len(cfg.Expert.Models) > 0 {
		sc.Expert = expert.NewRunner(a.Client, ExpertConfig(cfg)).WithLogger(a.Logger)
	}
	return session.New(sc)
}

// SessionOptions derives per-turn settings from cfg.
func SessionOptions(cfg *config.Config) session.Options {
	opts := session.Options{
		Model:               cfg.Chat.Model,
		SystemPrompt:        cfg.Chat.SystemPrompt,
		MaxCompletionTokens: cfg.Chat.MaxCompletionTokens,
		Temperature:         cfg.Chat.Temperature,
		WebSearch:           cfg.Chat.WebSearch,
		Expert:              cfg.Expert.Enabled && len(cfg.Expert.Models) > 0,
	}
	if cfg.Retrieval.Enabled {
		opts.Collection = cfg.Retrieval.Collection
	}
	return opts
}

// ExpertConfig derives the expert runner settings from cfg.
func ExpertConfig(cfg *config.Config) expert.Config {
	return expert.Config{
		Models:           cfg.Expert.Models,
		SynthesisModel:   cfg.Expert.SynthesisModel,
		MaxParallel:      cfg.Expert.MaxParallel,
		CandidateTimeout: time.Duration(cfg.Expert.CandidateTimeoutSeconds) * time.Second,
		WebSearch:        cfg.Chat.WebSearch,
	}
}

// Formatter returns the formatter for final output in the configured
// render mode. Terminal rendering falls back to markdown off a TTY.
func (a *App) Formatter() render.Formatter {
	md := render.Markdown{HideReasoning: a.Config.UI.HideReasoning}
	if a.Config.UI.Render != "terminal" || !isTerminalWriter(a.out) {
		return md
	}
	t, err := render.NewTerminal(a.Config.UI.Style, min(a.Config.UI.WordWrap, GetTerminalWidth()))
	if err != nil {
		a.Logger.Printf("RENDER_INIT_FAILED | style=%s error=%q", a.Config.UI.Style, err)
		return md
	}
	t.SetHideReasoning(a.Config.UI.HideReasoning)
	return t
}

// WatchConfig reloads per-turn settings into sess when the config file
// changes. It returns when ctx is done.
func (a *App) WatchConfig(ctx context.Context, sess *session.Session) {
	if a.ConfigFile == "" {
		return
	}
	if _, err := os.Stat(a.ConfigFile); err != nil {
		return
	}
	err := config.Watch(ctx, a.ConfigFile, func(cfg *config.Config, err error) {
		if err != nil {
			a.Logger.Printf("CONFIG_RELOAD_FAILED | path=%s error=%q", a.ConfigFile, err)
			return
		}
		cfg.Merge(a.args.overrides())
		// Expert and web search are runtime toggles and survive a reload.
		sess.Update(func(o *session.Options) {
			expertOn, webOn := o.Expert, o.WebSearch
			*o = SessionOptions(cfg)
			o.Expert = expertOn && sess.HasExpert()
			o.WebSearch = webOn
		})
		config.SetGlobal(cfg)
		a.Logger.Printf("CONFIG_RELOADED | path=%s model=%s", a.ConfigFile, cfg.Chat.Model)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Printf("CONFIG_WATCH_FAILED | path=%s error=%q", a.ConfigFile, err)
	}
}
