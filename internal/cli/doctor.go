// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command implementation for rigchat.
//
// Command: doctor
// Short:   Run configuration and connectivity checks
// Aliases: diag
//
// Examples:
//   rigchat doctor               Run all checks
//   rigchat doctor --json        Check results in JSON
//
// Checks Performed:
//   1. Config Valid       - The config file loads and validates
//   2. API Key            - A provider key is configured
//   3. Provider Reachable - The models endpoint answers
//   4. Model Available    - The configured model is offered
//   5. Storage Writable   - The transcript backend accepts writes
//   6. Expert Models      - Expert candidates are offered (when configured)
//   7. Retrieval          - The vector store answers (when enabled)
//
// Exit Codes:
//   0   No check failed
//   1   One or more checks failed
package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/retrieval"
	"github.com/jeranaias/rigchat/internal/storage"
)

// doctorTimeout bounds each network check.
const doctorTimeout = 10 * time.Second

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed successfully.
	CheckPass CheckStatus = iota
	// CheckWarn indicates the check passed with warnings.
	CheckWarn
	// CheckFail indicates the check failed.
	CheckFail
)

// String returns the lowercase status name used in JSON output.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the styled marker for the check status.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return RenderConditional(SuccessStyle, "[OK]")
	case CheckWarn:
		return RenderConditional(WarningStyle, "[!!]")
	case CheckFail:
		return RenderConditional(ErrorStyle, "[FAIL]")
	default:
		return "?"
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`

	status CheckStatus
}

// Render returns a formatted string representation of the health check.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s", c.status.Symbol(), c.Message)
	if c.status != CheckPass && c.Fix != "" {
		result += "\n" + RenderConditional(DimStyle, "     -> "+c.Fix)
	}
	return result
}

func (c *HealthCheck) set(status CheckStatus, format string, a ...any) *HealthCheck {
	c.status = status
	c.Status = status.String()
	c.Message = fmt.Sprintf(format, a...)
	return c
}

// DoctorData is the --json payload of the doctor command.
type DoctorData struct {
	Checks  []*HealthCheck `json:"checks"`
	Passed  int            `json:"passed"`
	Warned  int            `json:"warned"`
	Failed  int            `json:"failed"`
	Healthy bool           `json:"healthy"`
}

// =============================================================================
// HANDLE DOCTOR
// =============================================================================

// HandleDoctor handles the "doctor" command.
func HandleDoctor(args Args) error {
	app, err := NewApp(args)
	if err != nil {
		// A config that cannot load is itself the diagnosis.
		check := (&HealthCheck{Name: "Config Valid", Fix: "Run: rigchat config init --force"}).
			set(CheckFail, "Config invalid: %v", err)
		fmt.Println(check.Render())
		return err
	}
	defer app.Close()
	return runDoctor(context.Background(), app, args)
}

func runDoctor(ctx context.Context, app *App, args Args) error {
	checks := runAllChecks(ctx, app)

	data := DoctorData{Checks: checks}
	for _, c := range checks {
		switch c.status {
		case CheckPass:
			data.Passed++
		case CheckWarn:
			data.Warned++
		case CheckFail:
			data.Failed++
		}
	}
	data.Healthy = data.Failed == 0

	var failErr error
	if data.Failed > 0 {
		failErr = fmt.Errorf("%d health check(s) failed", data.Failed)
	}

	if args.JSON {
		resp := NewJSONResponse("doctor", data)
		if failErr != nil {
			msg := failErr.Error()
			resp.Success = false
			resp.Error = &msg
		}
		if err := resp.Write(app.out); err != nil {
			return err
		}
		return failErr
	}

	w := app.out
	fmt.Fprintln(w)
	fmt.Fprintln(w, RenderConditional(TitleStyle, "rigchat Doctor"))
	fmt.Fprintln(w, RenderSeparator(41))
	fmt.Fprintln(w)
	for _, c := range checks {
		fmt.Fprintln(w, c.Render())
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, RenderSeparator(41))

	summary := []string{fmt.Sprintf("%d passed", data.Passed)}
	if data.Warned > 0 {
		summary = append(summary, RenderConditional(WarningStyle, fmt.Sprintf("%d warning", data.Warned)))
	}
	if data.Failed > 0 {
		summary = append(summary, RenderConditional(ErrorStyle, fmt.Sprintf("%d failed", data.Failed)))
	}
	fmt.Fprintln(w, strings.Join(summary, ", "))
	fmt.Fprintln(w)
	return failErr
}

// =============================================================================
// HEALTH CHECK FUNCTIONS
// =============================================================================

// runAllChecks runs every check in order. Network checks are skipped once
// the provider is known to be unreachable.
func runAllChecks(ctx context.Context, app *App) []*HealthCheck {
	checks := []*HealthCheck{
		checkConfigValid(app),
		checkAPIKey(app),
	}

	var models []string
	if app.Client.IsConfigured() {
		reach, ids := checkProvider(ctx, app)
		checks = append(checks, reach)
		models = ids
		if models != nil {
			checks = append(checks, checkModelAvailable(app, models))
		}
	}

	checks = append(checks, checkStorageWritable(app))

	if len(app.Config.Expert.Models) > 0 && models != nil {
		checks = append(checks, checkExpertModels(app, models))
	}
	if app.Config.Retrieval.Enabled {
		checks = append(checks, checkRetrieval(ctx, app))
	}
	return checks
}

func checkConfigValid(app *App) *HealthCheck {
	check := &HealthCheck{Name: "Config Valid"}
	if !configFileExists(app) {
		check.Fix = "Run: rigchat config init"
		return check.set(CheckPass, "Config valid (no file, using defaults)")
	}
	if err := app.Config.Validate(); err != nil {
		check.Fix = "Run: rigchat config init --force"
		return check.set(CheckFail, "Config invalid: %v", err)
	}
	return check.set(CheckPass, "Config valid (%s)", app.ConfigFile)
}

func checkAPIKey(app *App) *HealthCheck {
	check := &HealthCheck{Name: "API Key"}
	if !app.Client.IsConfigured() {
		check.Fix = "Run: rigchat config set chat.api_key YOUR_KEY (or set RIGCHAT_API_KEY)"
		return check.set(CheckFail, "No API key configured")
	}
	return check.set(CheckPass, "API key configured (%s)", app.Client.APIKeyMasked())
}

// checkProvider lists models. ids is nil when the provider is unreachable.
func checkProvider(ctx context.Context, app *App) (*HealthCheck, []string) {
	check := &HealthCheck{Name: "Provider Reachable"}
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	start := time.Now()
	ids, err := fetchModels(ctx, app)
	if err != nil {
		check.Fix = "Check chat.endpoint and the API key"
		switch GetExitCode(err) {
		case ExitAuthError:
			return check.set(CheckFail, "Provider rejected the API key: %v", err), nil
		default:
			return check.set(CheckFail, "Provider unreachable at %s: %v", app.Config.Chat.Endpoint, err), nil
		}
	}
	if ids == nil {
		ids = []string{}
	}
	return check.set(CheckPass, "Provider reachable (%d models, %s)", len(ids),
		time.Since(start).Round(time.Millisecond)), ids
}

func checkModelAvailable(app *App, ids []string) *HealthCheck {
	check := &HealthCheck{Name: "Model Available"}
	model := app.Config.Chat.Model
	if len(ids) == 0 || slices.Contains(ids, model) {
		return check.set(CheckPass, "Model %s available", model)
	}
	check.Fix = "Run: rigchat models, then rigchat config set chat.model NAME"
	return check.set(CheckWarn, "Model %s not listed by the provider", model)
}

func checkExpertModels(app *App, ids []string) *HealthCheck {
	check := &HealthCheck{Name: "Expert Models"}
	var missing []string
	for _, m := range app.Config.Expert.Models {
		if !slices.Contains(ids, m) {
			missing = append(missing, m)
		}
	}
	if len(missing) > 0 {
		check.Fix = "Run: rigchat config set expert.models \"model-a, model-b\""
		return check.set(CheckWarn, "Expert models not listed: %s", strings.Join(missing, ", "))
	}
	return check.set(CheckPass, "%d expert models available", len(app.Config.Expert.Models))
}

// checkStorageWritable round-trips a probe value through the backend.
func checkStorageWritable(app *App) *HealthCheck {
	check := &HealthCheck{Name: "Storage Writable"}
	cfg := app.Config
	path := cfg.StoragePath()
	check.Fix = fmt.Sprintf("Check permissions on %s or set storage.path", path)

	kv, err := storage.Open(storage.Options{Backend: cfg.Storage.Backend, Path: path})
	if err != nil {
		return check.set(CheckFail, "Storage (%s) could not be opened: %v", cfg.Storage.Backend, err)
	}
	defer kv.Close()

	const probeKey = "rigchat_doctor_probe"
	probe := []byte(fmt.Sprintf("probe %d", os.Getpid()))
	if err := kv.Set(probeKey, probe); err != nil {
		return check.set(CheckFail, "Storage (%s) not writable: %v", cfg.Storage.Backend, err)
	}
	got, err := kv.Get(probeKey)
	kv.Delete(probeKey)
	if err != nil || string(got) != string(probe) {
		return check.set(CheckFail, "Storage (%s) did not return the written value", cfg.Storage.Backend)
	}
	check.Fix = ""
	return check.set(CheckPass, "Storage writable (%s, %s)", cfg.Storage.Backend, path)
}

func checkRetrieval(ctx context.Context, app *App) *HealthCheck {
	check := &HealthCheck{Name: "Retrieval"}
	rc := retrieval.DefaultConfig()
	rc.BaseURL = app.Config.Retrieval.BaseURL
	client := retrieval.NewClient(rc).WithLogger(app.Logger)
	if !client.IsConfigured() {
		check.Fix = "Run: rigchat config set retrieval.base_url http://localhost:8000"
		return check.set(CheckFail, "Retrieval enabled but no base URL set")
	}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()
	names, err := client.Collections(ctx)
	if err != nil {
		check.Fix = "Check retrieval.base_url"
		return check.set(CheckFail, "Vector store unreachable: %v", err)
	}
	if c := app.Config.Retrieval.Collection; c != "" && !slices.Contains(names, c) {
		check.Fix = "Run: rigchat config set retrieval.collection NAME"
		return check.set(CheckWarn, "Collection %q not found (%d collections)", c, len(names))
	}
	return check.set(CheckPass, "Vector store reachable (%d collections)", len(names))
}
