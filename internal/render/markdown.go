// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"strings"

	"github.com/jeranaias/rigchat/internal/model"
)

// Markdown renders a View as markdown. The zero value is ready to use.
type Markdown struct {
	// HideReasoning drops the reasoning block entirely.
	HideReasoning bool
}

// Format implements Formatter.
func (m Markdown) Format(v View) string {
	v = normalize(v)

	var sb strings.Builder
	if v.HasReasoning && !m.HideReasoning && strings.TrimSpace(v.Reasoning) != "" {
		sb.WriteString("> **Reasoning**\n>\n")
		for _, line := range strings.Split(strings.TrimSpace(v.Reasoning), "\n") {
			if line == "" {
				sb.WriteString(">\n")
				continue
			}
			sb.WriteString("> ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(ResolveMarkdownRefs(v.Content, v.Citations))

	if len(v.Citations) > 0 {
		sb.WriteString("\n\n---\n\n")
		sb.WriteString(CitationsMarkdown(v.Citations))
	}
	return sb.String()
}

// ResolveMarkdownRefs turns markers into [[N]](url) links.
func ResolveMarkdownRefs(content string, citations []model.Citation) string {
	return ReplaceRefs(content, citations,
		func(n int, c model.Citation) string {
			return fmt.Sprintf("[[%d]](%s)", n, escapeURL(c.URL))
		},
		func(n int) string {
			return fmt.Sprintf("[%d]", n)
		},
	)
}

// CitationsMarkdown renders the "Web Search Results" list.
func CitationsMarkdown(citations []model.Citation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Web Search Results (%d)**\n\n", len(citations))
	for i, c := range citations {
		c = c.Normalize()
		fmt.Fprintf(&sb, "%d. [%s](%s)", i+1, escapeLinkText(c.Title), escapeURL(c.URL))
		if c.PublishedDate != "" {
			fmt.Fprintf(&sb, " (%s)", c.PublishedDate)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
