// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting.
//
// Commands that accept --json print one JSONResponse on stdout; any
// human-readable text goes to stderr.
package cli

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
)

// JSONResponse is the envelope for all --json output.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC3339 time the response was generated
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
func (r *JSONResponse) Print() error {
	return r.Write(os.Stdout)
}

// Write outputs the JSON response to w.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// AskData represents the data returned by the ask command.
type AskData struct {
	Response   string           `json:"response"`
	Reasoning  string           `json:"reasoning,omitempty"`
	Citations  []model.Citation `json:"citations,omitempty"`
	Model      string           `json:"model"`
	State      string           `json:"state"`
	Expert     bool             `json:"expert,omitempty"`
	Deltas     int              `json:"deltas"`
	Malformed  int              `json:"malformed,omitempty"`
	TTFTMs     int64            `json:"time_to_first_token_ms"`
	DurationMs int64            `json:"duration_ms"`
}

// ModelsData represents the data returned by the models command.
type ModelsData struct {
	Models  []string `json:"models"`
	Current string   `json:"current"`
}

// HistoryData represents the data returned by history show.
type HistoryData struct {
	Key      string          `json:"key"`
	Count    int             `json:"count"`
	Messages []model.Message `json:"messages"`
}

// ConfigData represents the data returned by config show.
type ConfigData struct {
	Path     string `json:"config_path"`
	Exists   bool   `json:"exists"`
	Model    string `json:"model"`
	Endpoint string `json:"endpoint"`
	APIKey   bool   `json:"api_key_configured"`
	Expert   bool   `json:"expert_enabled"`
	Storage  string `json:"storage_backend"`
	DataDir  string `json:"data_dir"`
	Render   string `json:"render"`
}
