// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"log"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	gmutil "github.com/yuin/goldmark/util"

	"github.com/jeranaias/rigchat/internal/model"
)

// DefaultCodeStyle is the chroma style used for fenced code blocks.
const DefaultCodeStyle = "monokai"

// HTML renders a View as sanitized HTML. Reasoning and citations are placed
// in collapsible <details> elements.
type HTML struct {
	md        goldmark.Markdown
	policy    *bluemonday.Policy
	formatter *chromahtml.Formatter
	style     *chroma.Style
	logger    *log.Logger
}

// NewHTML creates an HTML formatter using the named chroma style.
func NewHTML(codeStyle string, logger *log.Logger) *HTML {
	if logger == nil {
		logger = log.Default()
	}
	style := chromaStyles.Get(codeStyle)
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := chromahtml.New(chromahtml.WithClasses(true))

	h := &HTML{
		policy:    newPolicy(),
		formatter: formatter,
		style:     style,
		logger:    logger,
	}
	h.md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithUnsafe(),
			renderer.WithNodeRenderers(
				gmutil.Prioritized(&codeBlockRenderer{formatter: formatter, style: style}, 200),
			),
		),
	)
	return h
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowElements("details", "summary")
	p.AllowAttrs("open").OnElements("details")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Format implements Formatter.
func (h *HTML) Format(v View) string {
	v = normalize(v)

	var sb strings.Builder
	if v.HasReasoning && strings.TrimSpace(v.Reasoning) != "" {
		sb.WriteString(`<details class="reasoning"><summary>Reasoning</summary>`)
		sb.WriteString(h.markdown(v.Reasoning))
		sb.WriteString(`</details>`)
	}

	sb.WriteString(`<div class="content">`)
	sb.WriteString(h.markdown(resolveHTMLRefs(v.Content, v.Citations)))
	sb.WriteString(`</div>`)

	if len(v.Citations) > 0 {
		sb.WriteString(citationsHTML(v.Citations))
	}
	return h.policy.Sanitize(sb.String())
}

// StyleSheet writes the CSS for highlighted code blocks.
func (h *HTML) StyleSheet(w io.Writer) error {
	return h.formatter.WriteCSS(w, h.style)
}

func (h *HTML) markdown(src string) string {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(src), &buf); err != nil {
		h.logger.Printf("RENDER_MARKDOWN_FAILED | error=%q", err)
		return "<pre>" + html.EscapeString(src) + "</pre>"
	}
	return buf.String()
}

func resolveHTMLRefs(content string, citations []model.Citation) string {
	return ReplaceRefs(content, citations,
		func(n int, c model.Citation) string {
			return fmt.Sprintf(`<a class="citation-ref" href="%s">[%d]</a>`, html.EscapeString(c.URL), n)
		},
		func(n int) string {
			return fmt.Sprintf(`<span class="citation-ref dangling">[%d]</span>`, n)
		},
	)
}

func citationsHTML(citations []model.Citation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<details class="citations" open><summary>Web Search Results (%d)</summary><ol>`, len(citations))
	for _, c := range citations {
		c = c.Normalize()
		fmt.Fprintf(&sb, `<li><a href="%s">%s</a>`, html.EscapeString(c.URL), html.EscapeString(c.Title))
		if c.PublishedDate != "" {
			fmt.Fprintf(&sb, ` <span class="date">%s</span>`, html.EscapeString(c.PublishedDate))
		}
		if c.Content != "" {
			fmt.Fprintf(&sb, `<p class="snippet">%s</p>`, html.EscapeString(c.Content))
		}
		sb.WriteString(`</li>`)
	}
	sb.WriteString(`</ol></details>`)
	return sb.String()
}

// =============================================================================
// CODE BLOCKS
// =============================================================================

// codeBlockRenderer highlights fenced code blocks with chroma.
type codeBlockRenderer struct {
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w gmutil.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lexer := lexers.Get(string(n.Language(source)))
	if lexer == nil {
		lexer = lexers.Analyse(code.String())
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code.String())
	if err == nil {
		err = r.formatter.Format(w, r.style, iterator)
	}
	if err != nil {
		_, _ = w.WriteString("<pre><code>" + html.EscapeString(code.String()) + "</code></pre>\n")
	}
	return ast.WalkSkipChildren, nil
}
