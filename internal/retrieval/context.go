// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

import (
	"fmt"
	"strings"
)

// instructions follows the user query in an augmented prompt.
const instructions = "Please use the context provided above to answer the user's query. " +
	"If the context doesn't contain relevant information, rely on your general knowledge " +
	"but acknowledge this fact. Maintain your existing personality and tone regardless of " +
	"which knowledge source you use."

// BuildContext formats passages as a numbered CONTEXT block. It returns ""
// for no results.
func BuildContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("CONTEXT:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "---\n[%d] %s\n", i+1, r.Text)
		if r.Metadata != nil {
			source := r.Metadata.Source
			if source == "" {
				source = "Unknown"
			}
			fmt.Fprintf(&sb, "Source: %s\n", source)
			if r.Metadata.Filename != "" {
				fmt.Fprintf(&sb, "File: %s\n", r.Metadata.Filename)
			}
		}
		fmt.Fprintf(&sb, "Relevance: %.1f%%\n---\n\n", r.Score*100)
	}
	return sb.String()
}

// EnhanceSystemPrompt appends the retrieved context and the query to
// systemPrompt. With no results the prompt is returned unchanged.
func EnhanceSystemPrompt(systemPrompt, query string, results []Result) string {
	if len(results) == 0 {
		return systemPrompt
	}
	return systemPrompt + "\n\n" + BuildContext(results) + "\nUSER QUERY:\n" + query + "\n\n" + instructions
}
