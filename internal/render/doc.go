// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns the state of a streaming response into displayable
// output.
//
// A View is an immutable picture of the accumulator: content so far, any
// reasoning, and the current citation batch. Formatters are pure functions
// of a View, so rendering the same View twice always yields identical output.
//
// # Formatters
//
//   - Markdown: plain markdown with resolved citation links
//   - HTML: goldmark + chroma highlighting, sanitized with bluemonday
//   - Terminal: glamour-styled markdown for ANSI terminals
//
// Inline markers of the form [REF]N[/REF] resolve to the Nth citation
// (1-based). Markers outside the current batch render as a plain [N].
package render
