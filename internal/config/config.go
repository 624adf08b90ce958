// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for rigchat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.rigchat/config.toml
//   - ~/.rigchat/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/util"
)

// CurrentVersion is written to new config files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// LogFile receives logs when not running verbose. Empty uses the data dir.
	LogFile string `toml:"log_file" json:"log_file,omitempty"`

	Chat      ChatConfig      `toml:"chat" json:"chat"`
	Expert    ExpertConfig    `toml:"expert" json:"expert"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Retrieval RetrievalConfig `toml:"retrieval" json:"retrieval"`
	UI        UIConfig        `toml:"ui" json:"ui"`
	Server    ServerConfig    `toml:"server" json:"server"`
}

// ChatConfig contains the completion provider settings.
type ChatConfig struct {
	// Endpoint is the provider API base URL
	Endpoint string `toml:"endpoint" json:"endpoint"`
	// APIKey authenticates with the provider
	APIKey string `toml:"api_key" json:"api_key"`
	// Model is the default model ID
	Model               string  `toml:"model" json:"model"`
	MaxCompletionTokens int     `toml:"max_completion_tokens" json:"max_completion_tokens"`
	Temperature         float64 `toml:"temperature" json:"temperature"`
	// WebSearch enables provider web search with inline citations
	WebSearch    bool   `toml:"web_search" json:"web_search"`
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
	// TimeoutSeconds bounds non-streaming requests
	TimeoutSeconds int `toml:"timeout_seconds" json:"timeout_seconds"`
	// MaxRetries is the retry budget for non-streaming requests; -1 disables retries
	MaxRetries int `toml:"max_retries" json:"max_retries"`
}

// Timeout returns the non-streaming request timeout.
func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Retries returns the retry budget for non-streaming requests.
func (c ChatConfig) Retries() int {
	return max(c.MaxRetries, 0)
}

// ExpertConfig contains expert mode settings.
type ExpertConfig struct {
	Enabled        bool     `toml:"enabled" json:"enabled"`
	Models         []string `toml:"models" json:"models"`
	SynthesisModel string   `toml:"synthesis_model" json:"synthesis_model"`
	// MaxParallel bounds concurrent candidate requests
	MaxParallel int `toml:"max_parallel" json:"max_parallel"`
	// CandidateTimeoutSeconds bounds each candidate request
	CandidateTimeoutSeconds int `toml:"candidate_timeout_seconds" json:"candidate_timeout_seconds"`
}

// StorageConfig contains transcript persistence settings.
type StorageConfig struct {
	// Backend is one of "file", "sqlite", "memory"
	Backend string `toml:"backend" json:"backend"`
	// Path is the data directory (file) or database path (sqlite)
	Path string `toml:"path" json:"path"`
	// Key names the transcript slot
	Key string `toml:"key" json:"key"`
	// MaxValueSize is the slot quota in bytes (0 = unlimited)
	MaxValueSize int `toml:"max_value_size" json:"max_value_size"`
}

// RetrievalConfig contains vector store settings.
type RetrievalConfig struct {
	Enabled    bool   `toml:"enabled" json:"enabled"`
	BaseURL    string `toml:"base_url" json:"base_url"`
	Collection string `toml:"collection" json:"collection"`
	Limit      int    `toml:"limit" json:"limit"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Render is the CLI output format: "terminal", "markdown", "plain"
	Render string `toml:"render" json:"render"`
	// Style is the terminal markdown style: "dark", "light", "notty", "auto"
	Style string `toml:"style" json:"style"`
	// WordWrap is the terminal wrap width
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
	// CodeStyle is the chroma style used for HTML export
	CodeStyle string `toml:"code_style" json:"code_style"`
	// HideReasoning omits reasoning blocks from output
	HideReasoning bool `toml:"hide_reasoning" json:"hide_reasoning"`
	// TUI starts the full-screen interface by default
	TUI bool `toml:"tui" json:"tui"`
}

// ServerConfig contains relay server settings.
type ServerConfig struct {
	Addr         string `toml:"addr" json:"addr"`
	MaxBodyBytes int64  `toml:"max_body_bytes" json:"max_body_bytes"`

	// AuthToken, when set, is required as a bearer token on every request.
	AuthToken string `toml:"auth_token" json:"auth_token,omitempty"`

	// RateLimit is requests per second per client. Zero disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst"`

	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins,omitempty"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Chat: ChatConfig{
			Endpoint:            cloud.DefaultBaseURL,
			Model:               cloud.DefaultModel,
			MaxCompletionTokens: 4000,
			Temperature:         0.7,
			TimeoutSeconds:      int(cloud.DefaultTimeout / time.Second),
			MaxRetries:          cloud.DefaultMaxRetries,
		},
		Expert: ExpertConfig{
			SynthesisModel:          cloud.DefaultModel,
			MaxParallel:             5,
			CandidateTimeoutSeconds: 60,
		},
		Storage: StorageConfig{
			Backend: "file",
			Key:     "chatHistory",
		},
		Retrieval: RetrievalConfig{
			Limit: 5,
		},
		UI: UIConfig{
			Render:    "terminal",
			Style:     "auto",
			WordWrap:  100,
			CodeStyle: "monokai",
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			MaxBodyBytes: 16 << 20,
			RateLimit:    5,
			RateBurst:    20,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigchat configuration directory path. RIGCHAT_HOME
// overrides the default ~/.rigchat.
func ConfigDir() (string, error) {
	if dir := os.Getenv("RIGCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DataDir returns the directory for transcripts and logs.
func (c *Config) DataDir() string {
	if c.Storage.Path != "" && c.Storage.Backend != "sqlite" {
		return c.Storage.Path
	}
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "rigchat")
	}
	return filepath.Join(dir, "data")
}

// StoragePath returns the backend path, defaulting under the data dir.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.Storage.Backend == "sqlite" {
		return filepath.Join(c.DataDir(), "rigchat.db")
	}
	return c.DataDir()
}

// LogPath returns the log file path.
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.DataDir(), "rigchat.log")
}

// ensureSecurePermissions checks and fixes permissions on config files.
// Config files hold the API key and must be 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	var loadErr error

	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err == nil {
			return cfg, nil
		}
		loadErr = err
		break
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. The file format follows the extension; anything other than
// .json is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills in any missing values with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}

	// Chat
	if c.Chat.Endpoint == "" {
		c.Chat.Endpoint = d.Chat.Endpoint
	}
	if c.Chat.Model == "" {
		c.Chat.Model = d.Chat.Model
	}
	if c.Chat.MaxCompletionTokens == 0 {
		c.Chat.MaxCompletionTokens = d.Chat.MaxCompletionTokens
	}
	if c.Chat.TimeoutSeconds == 0 {
		c.Chat.TimeoutSeconds = d.Chat.TimeoutSeconds
	}
	if c.Chat.MaxRetries == 0 {
		c.Chat.MaxRetries = d.Chat.MaxRetries
	}

	// Expert
	if c.Expert.SynthesisModel == "" {
		c.Expert.SynthesisModel = d.Expert.SynthesisModel
	}
	if c.Expert.MaxParallel == 0 {
		c.Expert.MaxParallel = d.Expert.MaxParallel
	}
	if c.Expert.CandidateTimeoutSeconds == 0 {
		c.Expert.CandidateTimeoutSeconds = d.Expert.CandidateTimeoutSeconds
	}

	// Storage
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.Key == "" {
		c.Storage.Key = d.Storage.Key
	}

	// Retrieval
	if c.Retrieval.Limit == 0 {
		c.Retrieval.Limit = d.Retrieval.Limit
	}

	// UI
	if c.UI.Render == "" {
		c.UI.Render = d.UI.Render
	}
	if c.UI.Style == "" {
		c.UI.Style = d.UI.Style
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
	if c.UI.CodeStyle == "" {
		c.UI.CodeStyle = d.UI.CodeStyle
	}

	// Server
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst == 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveToPath saves to path, choosing the format from the extension.
func SaveToPath(cfg *Config, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return SaveJSON(cfg, path)
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# rigchat configuration file")
	fmt.Fprintln(&buf, "# Generated by rigchat - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// ==========================================================================
	// Chat
	// ==========================================================================

	if err := validateHTTPURL(c.Chat.Endpoint); err != nil {
		add("chat.endpoint", "%v", err)
	}
	if c.Chat.MaxCompletionTokens < 1 {
		add("chat.max_completion_tokens", "must be positive, got %d", c.Chat.MaxCompletionTokens)
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		add("chat.temperature", "must be between 0 and 2, got %g", c.Chat.Temperature)
	}
	if c.Chat.TimeoutSeconds < 0 {
		add("chat.timeout_seconds", "cannot be negative")
	}
	if c.Chat.MaxRetries < -1 || c.Chat.MaxRetries > 10 {
		add("chat.max_retries", "must be between -1 and 10, got %d", c.Chat.MaxRetries)
	}

	// ==========================================================================
	// Expert
	// ==========================================================================

	if c.Expert.Enabled && len(c.Expert.Models) == 0 {
		add("expert.models", "at least one candidate model is required when expert mode is enabled")
	}
	if c.Expert.MaxParallel < 1 || c.Expert.MaxParallel > 16 {
		add("expert.max_parallel", "must be between 1 and 16, got %d", c.Expert.MaxParallel)
	}
	for i, m := range c.Expert.Models {
		if strings.TrimSpace(m) == "" {
			add(fmt.Sprintf("expert.models[%d]", i), "empty model name")
		}
	}

	// ==========================================================================
	// Storage
	// ==========================================================================

	switch c.Storage.Backend {
	case "file", "sqlite", "memory":
	default:
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend)
	}
	if c.Storage.MaxValueSize < 0 {
		add("storage.max_value_size", "cannot be negative")
	}

	// ==========================================================================
	// Retrieval
	// ==========================================================================

	if c.Retrieval.Enabled {
		if err := validateHTTPURL(c.Retrieval.BaseURL); err != nil {
			add("retrieval.base_url", "%v", err)
		}
		if c.Retrieval.Collection == "" {
			add("retrieval.collection", "required when retrieval is enabled")
		}
	}
	if c.Retrieval.Limit < 1 || c.Retrieval.Limit > 50 {
		add("retrieval.limit", "must be between 1 and 50, got %d", c.Retrieval.Limit)
	}

	// ==========================================================================
	// UI / Server
	// ==========================================================================

	switch c.UI.Render {
	case "terminal", "markdown", "plain":
	default:
		add("ui.render", "invalid render mode '%s', must be one of: terminal, markdown, plain", c.UI.Render)
	}
	switch c.UI.Style {
	case "auto", "dark", "light", "notty", "dracula", "pink", "ascii":
	default:
		add("ui.style", "unknown style '%s'", c.UI.Style)
	}
	if c.UI.WordWrap < 20 {
		add("ui.word_wrap", "must be at least 20, got %d", c.UI.WordWrap)
	}
	if c.Server.MaxBodyBytes < 1024 {
		add("server.max_body_bytes", "must be at least 1024")
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "cannot be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %q", raw)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - RIGCHAT_API_KEY (or VENICE_API_KEY): overrides chat.api_key
//   - RIGCHAT_ENDPOINT: overrides chat.endpoint
//   - RIGCHAT_MODEL: overrides chat.model
//   - RIGCHAT_WEB_SEARCH: "1" or "true" enables web search
//   - RIGCHAT_SYSTEM_PROMPT: overrides chat.system_prompt
//   - RIGCHAT_EXPERT_MODELS: comma-separated candidate models
//   - RIGCHAT_STORAGE: overrides storage.backend
//   - RIGCHAT_DATA_DIR: overrides storage.path
//   - RIGCHAT_RAG_URL: overrides retrieval.base_url
//   - RIGCHAT_COLLECTION: overrides retrieval.collection and enables retrieval
//   - RIGCHAT_ADDR: overrides server.addr
//   - RIGCHAT_SERVER_TOKEN: overrides server.auth_token
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("VENICE_API_KEY"); key != "" {
		c.Chat.APIKey = key
	}
	if key := os.Getenv("RIGCHAT_API_KEY"); key != "" {
		c.Chat.APIKey = key
	}
	if endpoint := os.Getenv("RIGCHAT_ENDPOINT"); endpoint != "" {
		c.Chat.Endpoint = endpoint
	}
	if model := os.Getenv("RIGCHAT_MODEL"); model != "" {
		c.Chat.Model = model
	}
	if ws := os.Getenv("RIGCHAT_WEB_SEARCH"); ws != "" {
		c.Chat.WebSearch = parseBool(ws)
	}
	if prompt := os.Getenv("RIGCHAT_SYSTEM_PROMPT"); prompt != "" {
		c.Chat.SystemPrompt = prompt
	}
	if models := os.Getenv("RIGCHAT_EXPERT_MODELS"); models != "" {
		c.Expert.Models = splitList(models)
	}
	if backend := os.Getenv("RIGCHAT_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
	if dir := os.Getenv("RIGCHAT_DATA_DIR"); dir != "" {
		c.Storage.Path = dir
	}
	if u := os.Getenv("RIGCHAT_RAG_URL"); u != "" {
		c.Retrieval.BaseURL = u
	}
	if coll := os.Getenv("RIGCHAT_COLLECTION"); coll != "" {
		c.Retrieval.Collection = coll
		c.Retrieval.Enabled = true
	}
	if addr := os.Getenv("RIGCHAT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if token := os.Getenv("RIGCHAT_SERVER_TOKEN"); token != "" {
		c.Server.AuthToken = token
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "chat.model").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "chat.model").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(splitList(strVal)))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"log_file",
		"chat.endpoint",
		"chat.api_key",
		"chat.model",
		"chat.max_completion_tokens",
		"chat.temperature",
		"chat.web_search",
		"chat.system_prompt",
		"chat.timeout_seconds",
		"chat.max_retries",
		"expert.enabled",
		"expert.models",
		"expert.synthesis_model",
		"expert.max_parallel",
		"expert.candidate_timeout_seconds",
		"storage.backend",
		"storage.path",
		"storage.key",
		"storage.max_value_size",
		"retrieval.enabled",
		"retrieval.base_url",
		"retrieval.collection",
		"retrieval.limit",
		"ui.render",
		"ui.style",
		"ui.word_wrap",
		"ui.code_style",
		"ui.hide_reasoning",
		"ui.tui",
		"server.addr",
		"server.max_body_bytes",
		"server.auth_token",
		"server.rate_limit",
		"server.rate_burst",
		"server.allowed_origins",
	}
}

// Merge merges another config into this one, overwriting only non-zero
// values. Command-line flags are applied this way.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Version != "" {
		c.Version = other.Version
	}
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}

	// Chat
	if other.Chat.Endpoint != "" {
		c.Chat.Endpoint = other.Chat.Endpoint
	}
	if other.Chat.APIKey != "" {
		c.Chat.APIKey = other.Chat.APIKey
	}
	if other.Chat.Model != "" {
		c.Chat.Model = other.Chat.Model
	}
	if other.Chat.MaxCompletionTokens != 0 {
		c.Chat.MaxCompletionTokens = other.Chat.MaxCompletionTokens
	}
	if other.Chat.Temperature != 0 {
		c.Chat.Temperature = other.Chat.Temperature
	}
	if other.Chat.WebSearch {
		c.Chat.WebSearch = true
	}
	if other.Chat.SystemPrompt != "" {
		c.Chat.SystemPrompt = other.Chat.SystemPrompt
	}
	if other.Chat.MaxRetries != 0 {
		c.Chat.MaxRetries = other.Chat.MaxRetries
	}

	// Expert
	if other.Expert.Enabled {
		c.Expert.Enabled = true
	}
	if len(other.Expert.Models) > 0 {
		c.Expert.Models = append([]string(nil), other.Expert.Models...)
	}
	if other.Expert.SynthesisModel != "" {
		c.Expert.SynthesisModel = other.Expert.SynthesisModel
	}

	// Storage
	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}

	// Retrieval
	if other.Retrieval.Enabled {
		c.Retrieval.Enabled = true
	}
	if other.Retrieval.Collection != "" {
		c.Retrieval.Collection = other.Retrieval.Collection
	}

	// UI / Server
	if other.UI.Render != "" {
		c.UI.Render = other.UI.Render
	}
	if other.UI.Style != "" {
		c.UI.Style = other.UI.Style
	}
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Expert.Models != nil {
		clone.Expert.Models = append([]string(nil), c.Expert.Models...)
	}
	if c.Server.AllowedOrigins != nil {
		clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	}
	return &clone
}

// String returns a JSON representation with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Chat.APIKey != "" {
		safe.Chat.APIKey = "[REDACTED]"
	}
	if safe.Server.AuthToken != "" {
		safe.Server.AuthToken = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
