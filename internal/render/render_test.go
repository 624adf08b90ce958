// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/model"
)

func citationA() []model.Citation {
	return []model.Citation{{Title: "A", URL: "http://a"}}
}

func TestMarkdown_ResolvesCitationMarker(t *testing.T) {
	out := Markdown{}.Format(View{
		Content:   "See [REF]1[/REF] and [REF]2[/REF].",
		Citations: citationA(),
	})

	assert.Contains(t, out, "[[1]](http://a)")
	assert.Contains(t, out, " [2].", "out-of-range marker should render as dangling")
	assert.NotContains(t, out, "[REF]")
	assert.Contains(t, out, "**Web Search Results (1)**")
	assert.Contains(t, out, "1. [A](http://a)")
}

func TestMarkdown_MarkerWithoutCitations(t *testing.T) {
	out := Markdown{}.Format(View{Content: "claim [REF]3[/REF]"})
	assert.Equal(t, "claim [3]", out)
}

func TestMarkdown_Reasoning(t *testing.T) {
	out := Markdown{}.Format(View{
		Content:      "answer",
		Reasoning:    "step one\nstep two",
		HasReasoning: true,
	})
	assert.True(t, strings.HasPrefix(out, "> **Reasoning**"))
	assert.Contains(t, out, "> step one\n> step two\n")
	assert.True(t, strings.HasSuffix(out, "answer"))

	hidden := Markdown{HideReasoning: true}.Format(View{Content: "answer", Reasoning: "x", HasReasoning: true})
	assert.Equal(t, "answer", hidden)
}

func TestMarkdown_ThinkFallback(t *testing.T) {
	out := Markdown{}.Format(View{Content: "<think>pondering</think>The answer is 4."})
	assert.Contains(t, out, "> pondering")
	assert.Contains(t, out, "The answer is 4.")
	assert.NotContains(t, out, "<think>")

	// Explicit reasoning wins over think tags.
	out = Markdown{}.Format(View{
		Content:      "<think>tag</think>body",
		Reasoning:    "explicit",
		HasReasoning: true,
	})
	assert.Contains(t, out, "> explicit")
	assert.NotContains(t, out, "tag")
}

func TestSplitThink(t *testing.T) {
	tests := []struct {
		in        string
		body      string
		think     string
		wantFound bool
	}{
		{"plain", "plain", "", false},
		{"<think>a</think>b", "b", "a", true},
		{"x<think>a</think>y<think>c</think>z", "xyz", "a\n\nc", true},
		{"<think>still going", "", "still going", true},
	}
	for _, tt := range tests {
		body, think, found := SplitThink(tt.in)
		assert.Equal(t, tt.body, body, tt.in)
		assert.Equal(t, tt.think, think, tt.in)
		assert.Equal(t, tt.wantFound, found, tt.in)
	}
}

func TestFormatters_Idempotent(t *testing.T) {
	term, err := NewTerminal("notty", 80)
	require.NoError(t, err)

	formatters := map[string]Formatter{
		"markdown": Markdown{},
		"html":     NewHTML(DefaultCodeStyle, log.New(io.Discard, "", 0)),
		"terminal": term,
	}

	v := View{
		Content:      "Hello [REF]1[/REF]\n\n```go\nfmt.Println(1)\n```\n",
		Reasoning:    "think",
		HasReasoning: true,
		Citations:    citationA(),
	}

	for name, f := range formatters {
		t.Run(name, func(t *testing.T) {
			first := f.Format(v)
			second := f.Format(v)
			assert.Equal(t, first, second)
			assert.NotEmpty(t, first)
		})
	}
}

func TestHTML_CitationsAndSanitizing(t *testing.T) {
	h := NewHTML(DefaultCodeStyle, log.New(io.Discard, "", 0))

	out := h.Format(View{
		Content:   "Fact [REF]1[/REF] and [REF]9[/REF] <script>alert(1)</script>",
		Citations: citationA(),
	})

	assert.Contains(t, out, `href="http://a"`)
	assert.Contains(t, out, "[9]")
	assert.Contains(t, out, "Web Search Results (1)")
	assert.Contains(t, out, "<details")
	assert.NotContains(t, out, "<script>")
}

func TestHTML_HighlightsCode(t *testing.T) {
	h := NewHTML(DefaultCodeStyle, nil)

	out := h.Format(View{Content: "```go\npackage main\n```\n"})
	assert.Contains(t, out, `class="chroma"`)
	assert.Contains(t, out, "package")

	var css bytes.Buffer
	require.NoError(t, h.StyleSheet(&css))
	assert.Contains(t, css.String(), ".chroma")
}

func TestViewOf(t *testing.T) {
	reasoning := "r"
	v := ViewOf(model.Message{Role: model.RoleAssistant, Content: "c", Reasoning: &reasoning, Citations: citationA()})
	assert.Equal(t, "c", v.Content)
	assert.True(t, v.HasReasoning)
	assert.Equal(t, "r", v.Reasoning)
	assert.Len(t, v.Citations, 1)

	v = ViewOf(model.Message{Role: model.RoleAssistant, Content: "c"})
	assert.False(t, v.HasReasoning)
}
