// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
)

func sampleMessages() []model.Message {
	reasoning := "thinking about it"
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.Message{
		{Role: model.RoleUser, Content: "What is Go?", Timestamp: ts},
		{
			Role:      model.RoleAssistant,
			Content:   "Go is a language [REF]1[/REF].",
			Reasoning: &reasoning,
			Model:     "mistral-31-24b",
			Citations: []model.Citation{{Title: "The Go site", URL: "https://go.dev"}},
			Timestamp: ts.Add(time.Second),
		},
		{Role: model.RoleError, Content: "API error: 500", Timestamp: ts.Add(2 * time.Second)},
	}
}

func TestFromMessagesSkipsErrors(t *testing.T) {
	tr := FromMessages(sampleMessages(), "")
	if len(tr.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(tr.Messages))
	}
	for _, m := range tr.Messages {
		if m.Role == model.RoleError {
			t.Error("error message leaked into transcript")
		}
	}
	if tr.Title != "What is Go?" {
		t.Errorf("title = %q", tr.Title)
	}
	if tr.Model != "mistral-31-24b" {
		t.Errorf("model = %q, want the assistant's model", tr.Model)
	}
	if !tr.CreatedAt.Before(tr.UpdatedAt) {
		t.Errorf("CreatedAt %v should precede UpdatedAt %v", tr.CreatedAt, tr.UpdatedAt)
	}
}

func TestFromMessagesLongTitle(t *testing.T) {
	long := strings.Repeat("word ", 40)
	tr := FromMessages([]model.Message{{Role: model.RoleUser, Content: long}}, "m")
	if len([]rune(tr.Title)) > 60 {
		t.Errorf("title not shortened: %d runes", len([]rune(tr.Title)))
	}
	if tr.CreatedAt.IsZero() {
		t.Error("CreatedAt should default to now")
	}
}

func TestEmptyTranscript(t *testing.T) {
	tr := FromMessages([]model.Message{{Role: model.RoleError, Content: "boom"}}, "m")
	for _, format := range []string{"markdown", "json", "html"} {
		exp, err := ForFormat(format, nil)
		if err != nil {
			t.Fatalf("ForFormat(%q): %v", format, err)
		}
		if _, err := exp.Export(tr); !errors.Is(err, ErrEmptyTranscript) {
			t.Errorf("%s: expected ErrEmptyTranscript, got %v", format, err)
		}
	}
}

func TestForFormatUnsupported(t *testing.T) {
	if _, err := ForFormat("pdf", nil); err == nil {
		t.Error("expected error for unsupported format")
	}
	exp, err := ForFormat("MD", nil)
	if err != nil {
		t.Fatalf("ForFormat(MD): %v", err)
	}
	if exp.FileExtension() != ".md" {
		t.Errorf("extension = %q", exp.FileExtension())
	}
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(FromMessages(sampleMessages(), ""))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	md := string(out)

	for _, want := range []string{
		"title: What is Go?",
		"### You",
		"### Assistant",
		"> **Reasoning**",
		"> thinking about it",
		"[[1]](https://go.dev)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
	if strings.Contains(md, "API error") {
		t.Error("error annotation should not be exported")
	}
}

func TestMarkdownHideReasoning(t *testing.T) {
	opts := DefaultOptions()
	opts.HideReasoning = true
	out, err := NewMarkdownExporter(opts).Export(FromMessages(sampleMessages(), ""))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if strings.Contains(string(out), "thinking about it") {
		t.Error("reasoning should be hidden")
	}
}

func TestYAMLNewlineInjection(t *testing.T) {
	tr := FromMessages(sampleMessages(), "")
	tr.Title = "Test\nInjection: malicious"

	out, err := NewMarkdownExporter(nil).Export(tr)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if strings.Contains(string(out), "\nInjection: malicious") {
		t.Error("YAML injection: newline in title not escaped")
	}
	if !strings.Contains(string(out), `title: "Test\nInjection: malicious"`) {
		t.Errorf("expected quoted title in frontmatter:\n%s", out)
	}
	if !strings.Contains(string(out), "\n# Test Injection: malicious\n") {
		t.Errorf("expected title folded onto one heading line:\n%s", out)
	}
}

func TestJSONExportRoundTrip(t *testing.T) {
	tr := FromMessages(sampleMessages(), "")
	out, err := NewJSONExporter(nil).Export(tr)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var back Transcript
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(back.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(back.Messages))
	}
	a := back.Messages[1]
	if a.Reasoning == nil || *a.Reasoning != "thinking about it" {
		t.Errorf("reasoning lost: %v", a.Reasoning)
	}
	if len(a.Citations) != 1 || a.Citations[0].URL != "https://go.dev" {
		t.Errorf("citations lost: %+v", a.Citations)
	}
}

func TestHTMLEscapesUserContent(t *testing.T) {
	msgs := []model.Message{
		{Role: model.RoleUser, Content: "<script>alert('xss')</script>"},
		{Role: model.RoleAssistant, Content: "```<img src=x onerror=alert(1)>\ncode here\n```"},
	}
	out, err := NewHTMLExporter(nil).Export(FromMessages(msgs, "m"))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	page := string(out)

	if strings.Contains(page, "<script>alert") {
		t.Error("XSS: script tag from user content reached the page")
	}
	if strings.Contains(page, "<img") {
		t.Error("XSS: fence info string reached the page as markup")
	}
	if !strings.Contains(page, "<title>&lt;script&gt;") {
		t.Error("expected escaped title")
	}
}

func TestHTMLExportStructure(t *testing.T) {
	opts := DefaultOptions()
	opts.Theme = "light"
	out, err := NewHTMLExporter(opts).Export(FromMessages(sampleMessages(), ""))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	page := string(out)

	for _, want := range []string{
		"<!DOCTYPE html>",
		`<body class="light-theme">`,
		`<article class="message user">`,
		`<article class="message assistant">`,
		"https://go.dev",
		"thinking about it",
		"function toggleTheme()",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if strings.Contains(page, "API error") {
		t.Error("error annotation should not be exported")
	}
}

func TestWriteFileGeneratesName(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.OutputDir = dir

	path, err := ToFile(FromMessages(sampleMessages(), ""), "json", "", opts)
	if err != nil {
		t.Fatalf("ToFile failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("file written outside OutputDir: %s", path)
	}
	if !strings.HasPrefix(filepath.Base(path), "conversation_What_is_Go-_") {
		t.Errorf("unexpected file name %q", filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("exported file missing: %v", err)
	}
}

func TestWriteFileExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	got, err := ToFile(FromMessages(sampleMessages(), ""), "markdown", path, nil)
	if err != nil {
		t.Fatalf("ToFile failed: %v", err)
	}
	if got != path {
		t.Errorf("path = %q, want %q", got, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# What is Go?") {
		t.Errorf("unexpected content:\n%s", data)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "conversation"},
		{"a/b\\c", "a-b-c"},
		{"hello world", "hello_world"},
		{"x\x01y", "x-y"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if n := len([]rune(sanitizeFilename(strings.Repeat("é", 80)))); n != 50 {
		t.Errorf("long name not truncated: %d runes", n)
	}
}
