// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes transcripts to Markdown, JSON and standalone HTML.
//
// # Key Types
//
//   - Transcript: the exportable conversation, built with FromMessages
//   - Exporter: one implementation per format
//   - Options: metadata, timestamps, reasoning and HTML theme settings
//
// Error annotations never appear in an export. Assistant messages carry
// their reasoning and citations, rendered through the render package.
//
// # Usage
//
//	t := export.FromMessages(store.Snapshot(), cfg.Chat.Model)
//	path, err := export.ToFile(t, "markdown", "", export.DefaultOptions())
package export
