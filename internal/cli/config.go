// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for rigchat.
//
// Command: config [subcommand]
// Short:   View and modify configuration
// Aliases: (none)
//
// Subcommands:
//   show (default)      Display the effective configuration
//   init [--force]      Write a default config file
//   set <key> <value>   Set a value in the config file
//   path                Show the config file path
//
// Examples:
//   rigchat config                              Show current config
//   rigchat config show --json                  Config in JSON format
//   rigchat config init                         Create ~/.rigchat/config.toml
//   rigchat config set chat.model llama-3.3-70b
//   rigchat config set chat.web_search true
//   rigchat config set expert.models "model-a, model-b"
//   rigchat config set storage.backend sqlite
//
// Keys use dot notation; see "rigchat config show" for the full list.
// Environment variables (RIGCHAT_*) override the file but are never
// written back by "config set".
package cli

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/rigchat/internal/config"
)

// HandleConfig handles the "config" command.
func HandleConfig(args Args) error {
	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()
	return runConfig(app, args)
}

func runConfig(app *App, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(app, args)
	case "init":
		return configInit(app, args)
	case "set":
		return configSet(app, args.ConfigKey, args.ConfigVal)
	case "path":
		return configPath(app, args)
	default:
		return NewValidationErrorWithExample("subcommand", args.Subcommand,
			"unknown config command", "rigchat config [show|init|set <key> <value>|path]")
	}
}

// configFileExists reports whether the app's config file is on disk.
func configFileExists(app *App) bool {
	if app.ConfigFile == "" {
		return false
	}
	_, err := os.Stat(app.ConfigFile)
	return err == nil
}

func configShow(app *App, args Args) error {
	cfg := app.Config
	if args.JSON {
		return NewJSONResponse("config show", ConfigData{
			Path:     app.ConfigFile,
			Exists:   configFileExists(app),
			Model:    cfg.Chat.Model,
			Endpoint: cfg.Chat.Endpoint,
			APIKey:   cfg.Chat.APIKey != "",
			Expert:   cfg.Expert.Enabled,
			Storage:  cfg.Storage.Backend,
			DataDir:  cfg.DataDir(),
			Render:   cfg.UI.Render,
		}).Write(app.out)
	}

	w := app.out
	fmt.Fprintln(w)
	fmt.Fprintln(w, RenderConditional(TitleStyle, "rigchat Configuration"))
	fmt.Fprintln(w, RenderSeparator(41))

	section := ""
	for _, key := range config.GetAllKeys() {
		name := key
		if i := strings.IndexByte(key, '.'); i >= 0 {
			if s := key[:i]; s != section {
				section = s
				fmt.Fprintln(w)
				fmt.Fprintln(w, RenderConditional(infoStyle, "["+section+"]"))
			}
			name = key[i+1:]
		}
		val, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "  %s %s\n",
			RenderConditional(LabelStyle.Width(26), name+":"),
			maskIfSecret(key, formatConfigValue(val)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, RenderSeparator(41))
	note := ""
	if !configFileExists(app) {
		note = RenderConditional(DimStyle, " (not created, using defaults)")
	}
	fmt.Fprintf(w, "Config file: %s%s\n", app.ConfigFile, note)
	fmt.Fprintf(w, "Data dir:    %s\n", cfg.DataDir())
	fmt.Fprintln(w)
	return nil
}

func formatConfigValue(v any) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ", ")
	case string:
		if val == "" {
			return "(not set)"
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}

func configInit(app *App, args Args) error {
	path := app.ConfigFile
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return err
		}
		path = p
	}
	if configFileExists(app) && !args.Force {
		if !CanPrompt() || args.JSON {
			return NewValidationErrorWithExample("path", path, "config file already exists", "rigchat config init --force")
		}
		if !PromptOverwrite(path, false) {
			ShowCancellationMessage()
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := config.SaveToPath(config.Default(), path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	app.Logger.Printf("CONFIG_INIT | path=%s", path)

	if args.JSON {
		return NewJSONResponse("config init", map[string]any{"path": path}).Write(app.out)
	}
	fmt.Fprintf(app.out, "%s Wrote default configuration to %s\n", RenderConditional(SuccessStyle, "[OK]"), path)
	fmt.Fprintf(app.out, "Set your API key with: rigchat config set chat.api_key <key>\n")
	return nil
}

// configSet edits the config file itself. Environment overrides are not
// applied so they are never persisted.
func configSet(app *App, key, value string) error {
	if key == "" {
		return ErrMissingArgument("key", "rigchat config set chat.model llama-3.3-70b")
	}
	if value == "" {
		return ErrMissingArgument("value", fmt.Sprintf("rigchat config set %s <value>", key))
	}

	path := app.ConfigFile
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return err
		}
		path = p
	}

	cfg := config.Default()
	if err := loadFileInto(cfg, path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationErrorWithExample("key", key, err.Error(), "rigchat config show")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := config.SaveToPath(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	app.Logger.Printf("CONFIG_SET | key=%s path=%s", key, path)

	fmt.Fprintf(app.out, "%s %s = %s\n", RenderConditional(SuccessStyle, "[OK]"), key, maskIfSecret(key, value))
	return nil
}

// loadFileInto decodes the file at path over cfg by extension.
func loadFileInto(cfg *config.Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return config.LoadJSON(cfg, path)
	}
	return config.LoadTOML(cfg, path)
}

func configPath(app *App, args Args) error {
	exists := configFileExists(app)
	if args.JSON {
		return NewJSONResponse("config path", map[string]any{
			"path":   app.ConfigFile,
			"exists": exists,
		}).Write(app.out)
	}
	fmt.Fprintln(app.out, app.ConfigFile)
	if !exists {
		fmt.Fprintf(app.errOut, "%s (file does not exist; create it with: rigchat config init)\n",
			RenderConditional(DimStyle, "Note"))
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// maskAPIKey masks a secret for display as a short SHA-256 fingerprint, so
// no prefix of the key is ever shown.
func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) < 8 {
		return "[invalid key]"
	}
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("sha256:%x...", hash[:4])
}

// maskIfSecret masks the value if the key names a secret field.
func maskIfSecret(key, value string) string {
	keyLower := strings.ToLower(key)
	for _, s := range []string{"api_key", "secret", "token", "password"} {
		if strings.Contains(keyLower, s) {
			if value == "(not set)" {
				return value
			}
			return maskAPIKey(value)
		}
	}
	return value
}
