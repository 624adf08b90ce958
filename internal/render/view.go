// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jeranaias/rigchat/internal/model"
)

// View is a snapshot of a response for rendering.
type View struct {
	Content string

	// Reasoning is only meaningful when HasReasoning is set.
	Reasoning    string
	HasReasoning bool

	Citations []model.Citation
}

// ViewOf builds a View from a committed message.
func ViewOf(m model.Message) View {
	v := View{Content: m.Text(), Citations: m.Citations}
	if m.Reasoning != nil {
		v.Reasoning = *m.Reasoning
		v.HasReasoning = true
	}
	return v
}

// Formatter renders a View. Implementations must be deterministic.
type Formatter interface {
	Format(v View) string
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(View) string

func (f FormatterFunc) Format(v View) string { return f(v) }

// =============================================================================
// CITATION MARKERS
// =============================================================================

var refPattern = regexp.MustCompile(`\[REF\]\s*(\d+)\s*\[/REF\]`)

// ReplaceRefs rewrites every [REF]N[/REF] marker using resolve for markers
// within range and dangling for the rest.
func ReplaceRefs(content string, citations []model.Citation, resolve func(n int, c model.Citation) string, dangling func(n int) string) string {
	return refPattern.ReplaceAllStringFunc(content, func(marker string) string {
		sub := refPattern.FindStringSubmatch(marker)
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			return marker
		}
		if c, ok := model.Resolve(citations, n); ok {
			return resolve(n, c)
		}
		return dangling(n)
	})
}

// =============================================================================
// THINK BLOCKS
// =============================================================================

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// SplitThink separates <think> blocks from content. An unterminated block
// (still streaming) runs to the end of the content.
func SplitThink(content string) (body, think string, found bool) {
	var bodyB, thinkB strings.Builder
	rest := content
	for {
		i := strings.Index(rest, thinkOpen)
		if i < 0 {
			bodyB.WriteString(rest)
			break
		}
		found = true
		bodyB.WriteString(rest[:i])
		rest = rest[i+len(thinkOpen):]

		j := strings.Index(rest, thinkClose)
		if j < 0 {
			appendBlock(&thinkB, rest)
			break
		}
		appendBlock(&thinkB, rest[:j])
		rest = rest[j+len(thinkClose):]
	}
	return strings.TrimSpace(bodyB.String()), thinkB.String(), found
}

func appendBlock(sb *strings.Builder, s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n\n")
	}
	sb.WriteString(s)
}

// normalize resolves the think-tag fallback: explicit reasoning wins, and
// think blocks are always removed from the body.
func normalize(v View) View {
	body, think, found := SplitThink(v.Content)
	if !found {
		return v
	}
	v.Content = body
	if !v.HasReasoning {
		v.Reasoning = think
		v.HasReasoning = true
	}
	return v
}

// escapeURL keeps a URL from terminating a markdown link early.
func escapeURL(u string) string {
	r := strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29", "<", "%3C", ">", "%3E")
	return r.Replace(u)
}

// escapeLinkText keeps brackets in titles from breaking link syntax.
func escapeLinkText(s string) string {
	r := strings.NewReplacer("[", `\[`, "]", `\]`, "\n", " ")
	return r.Replace(s)
}
