// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports transcripts to a standalone HTML page with embedded
// CSS. Message bodies go through render.HTML, so markdown is rendered,
// code is highlighted and the output is sanitized.
type HTMLExporter struct {
	options  *Options
	renderer *render.HTML
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options:  opts,
		renderer: render.NewHTML(opts.CodeStyle, log.Default()),
	}
}

// Export converts a transcript to HTML format.
func (e *HTMLExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(t.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"rigchat\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", t.CreatedAt.Format(time.RFC3339))

	sb.WriteString("    <style>\n")
	sb.WriteString(pageCSS)
	if err := e.renderer.StyleSheet(&sb); err != nil {
		return nil, fmt.Errorf("code stylesheet: %w", err)
	}
	sb.WriteString("    </style>\n")
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(t))
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range t.Messages {
		sb.WriteString(e.renderMessage(msg))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>rigchat</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("            <button class=\"theme-toggle\" onclick=\"toggleTheme()\">Toggle theme</button>\n")
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString(themeScript)
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(t *Transcript) string {
	var sb strings.Builder
	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(t.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	if t.Model != "" {
		fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n", html.EscapeString(t.Model))
	}
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(t.CreatedAt))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(t.Messages))
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")
	return sb.String()
}

func (e *HTMLExporter) renderMessage(msg model.Message) string {
	view := render.ViewOf(msg)
	if msg.Role != model.RoleAssistant || e.options.HideReasoning {
		view.Reasoning, view.HasReasoning = "", false
	}
	if msg.Role != model.RoleAssistant {
		view.Content = msg.Text()
		view.Citations = nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "            <article class=\"message %s\">\n", html.EscapeString(string(msg.Role)))
	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(&sb, "                    <span class=\"role\">%s</span>\n", html.EscapeString(roleLabel(msg.Role)))
	if msg.Model != "" && msg.Role == model.RoleAssistant {
		fmt.Fprintf(&sb, "                    <span class=\"model\">%s</span>\n", html.EscapeString(msg.Model))
	}
	if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
		fmt.Fprintf(&sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.Timestamp))
	}
	sb.WriteString("                </div>\n")
	sb.WriteString("                <div class=\"message-body\">\n")
	sb.WriteString(e.renderer.Format(view))
	if n := msg.ImageCount(); n > 0 {
		fmt.Fprintf(&sb, "<p class=\"attachments\">%d image(s) attached</p>\n", n)
	}
	sb.WriteString("                </div>\n")
	sb.WriteString("            </article>\n")
	return sb.String()
}

// =============================================================================
// EMBEDDED ASSETS
// =============================================================================

const pageCSS = `        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Inconsolata", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --bg-tertiary: #414868;
            --text-primary: #c0caf5;
            --text-secondary: #a9b1d6;
            --text-muted: #565f89;
            --border-color: #414868;
            --user-bg: #1f2335;
            --assistant-bg: #24283b;
            --accent-blue: #7aa2f7;
            --accent-purple: #bb9af7;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --bg-tertiary: #e1e4e8;
            --text-primary: #24292e;
            --text-secondary: #586069;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --user-bg: #f6f8fa;
            --assistant-bg: #ffffff;
            --accent-blue: #0366d6;
            --accent-purple: #6f42c1;
        }

        body {
            font-family: var(--font-sans);
            font-size: 16px;
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; overflow: hidden; }
        .header { padding: 32px; background: var(--bg-tertiary); border-bottom: 2px solid var(--border-color); }
        .header h1 { font-size: 28px; margin-bottom: 16px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; color: var(--text-secondary); }

        .conversation { padding: 24px; }
        .message { margin-bottom: 20px; padding: 16px 20px; border-radius: 8px; border: 1px solid var(--border-color); }
        .message.user { background: var(--user-bg); border-left: 4px solid var(--accent-blue); }
        .message.assistant { background: var(--assistant-bg); border-left: 4px solid var(--accent-purple); }
        .message-header { display: flex; gap: 12px; align-items: baseline; margin-bottom: 8px; }
        .role { font-weight: 700; }
        .model, .timestamp { font-size: 12px; color: var(--text-muted); }
        .message-body p { margin: 0.5em 0; }
        .message-body pre { padding: 12px; border-radius: 6px; overflow-x: auto; font-family: var(--font-mono); font-size: 14px; }
        .message-body code { font-family: var(--font-mono); }
        .message-body a { color: var(--accent-blue); }

        details.reasoning { margin-bottom: 12px; padding: 8px 12px; border-left: 3px solid var(--text-muted); color: var(--text-secondary); font-style: italic; }
        details.citations { margin-top: 12px; padding-top: 8px; border-top: 1px dashed var(--border-color); font-size: 14px; }
        details summary { cursor: pointer; color: var(--text-secondary); }
        .citation-ref { font-size: 0.8em; vertical-align: super; text-decoration: none; }
        .citation-ref.dangling { color: var(--text-muted); }
        .attachments { font-size: 13px; color: var(--text-muted); }

        .footer { padding: 16px 24px; font-size: 13px; color: var(--text-muted); display: flex; justify-content: space-between; }
        .theme-toggle { background: none; border: 1px solid var(--border-color); color: var(--text-secondary); border-radius: 4px; padding: 2px 8px; cursor: pointer; }
`

const themeScript = `    <script>
        function toggleTheme() {
            const body = document.body;
            if (body.classList.contains('dark-theme')) {
                body.classList.replace('dark-theme', 'light-theme');
                localStorage.setItem('theme', 'light');
            } else {
                body.classList.replace('light-theme', 'dark-theme');
                localStorage.setItem('theme', 'dark');
            }
        }

        document.addEventListener('DOMContentLoaded', function() {
            const savedTheme = localStorage.getItem('theme');
            if (savedTheme) {
                document.body.classList.remove('dark-theme', 'light-theme');
                document.body.classList.add(savedTheme + '-theme');
            }
        });
    </script>
`
