// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jeranaias/chatline/internal/markdown"
	"github.com/jeranaias/chatline/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports transcripts to a standalone HTML page with embedded
// CSS. Message bodies are rendered through the markdown pipeline, so the
// page shows the same markup the live client produced.
type HTMLExporter struct {
	options  *Options
	renderer *markdown.Renderer
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options:  opts,
		renderer: markdown.NewRenderer(opts.LinkBase),
	}
}

// Export converts a transcript to HTML.
func (e *HTMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(conv.Title)))
	sb.WriteString("    <meta name=\"generator\" content=\"chatline\">\n")
	sb.WriteString(fmt.Sprintf("    <meta name=\"date\" content=\"%s\">\n", conv.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", e.options.Theme))
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(conv))
	}

	sb.WriteString("        <main class=\"transcript\">\n")
	for _, msg := range conv.Messages {
		sb.WriteString(e.renderMessage(msg))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("            <p>Exported from <strong>chatline</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns ".html".
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING
// =============================================================================

func (e *HTMLExporter) renderHeader(conv *model.Conversation) string {
	var sb strings.Builder
	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(conv.Title)))
	sb.WriteString("            <div class=\"metadata\">\n")
	if conv.ServerURL != "" {
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Server:</strong> %s</span>\n", html.EscapeString(conv.ServerURL)))
	}
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(conv.CreatedAt)))
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(conv.Messages)))
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")
	return sb.String()
}

func (e *HTMLExporter) renderMessage(msg *model.Message) string {
	var sb strings.Builder

	roleClass := strings.ToLower(msg.Role.String())
	sb.WriteString(fmt.Sprintf("            <div class=\"message %s-message\">\n", roleClass))

	sb.WriteString("                <div class=\"message-header\">\n")
	sb.WriteString(fmt.Sprintf("                    <span class=\"role-label\">%s</span>\n", html.EscapeString(msg.Role.DisplayName())))
	if e.options.IncludeTimestamps {
		sb.WriteString(fmt.Sprintf("                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.Timestamp)))
	}
	sb.WriteString("                </div>\n")

	if e.options.IncludeReasoning && msg.Reasoning != "" {
		sb.WriteString("                <details class=\"reasoning\">\n")
		sb.WriteString("                    <summary>Reasoning</summary>\n")
		sb.WriteString("                    <div class=\"reasoning-content\">" + e.renderer.Render(msg.Reasoning) + "</div>\n")
		sb.WriteString("                </details>\n")
	}

	sb.WriteString("                <div class=\"message-content\">")
	sb.WriteString(e.renderer.Render(msg.Content))
	sb.WriteString("</div>\n")

	if stats := msg.FormatStats(); stats != "" && e.options.IncludeMetadata {
		sb.WriteString(fmt.Sprintf("                <div class=\"message-stats\">%s</div>\n", html.EscapeString(stats)))
	}

	sb.WriteString("            </div>\n")
	return sb.String()
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const pageCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
            --font-mono: "SF Mono", "Monaco", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --bg-tertiary: #414868;
            --text-primary: #c0caf5;
            --text-muted: #565f89;
            --border-color: #414868;
            --user-accent: #7aa2f7;
            --assistant-accent: #9ece6a;
            --notice-accent: #f7768e;
            --code-bg: #1a1b26;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --bg-tertiary: #e1e4e8;
            --text-primary: #24292e;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --user-accent: #0366d6;
            --assistant-accent: #22863a;
            --notice-accent: #d73a49;
            --code-bg: #f6f8fa;
        }

        body {
            font-family: var(--font-sans);
            font-size: 16px;
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container {
            max-width: 900px;
            margin: 0 auto;
            background: var(--bg-secondary);
            border-radius: 12px;
            overflow: hidden;
        }

        .header {
            padding: 32px;
            background: var(--bg-tertiary);
            border-bottom: 2px solid var(--border-color);
        }

        .header h1 { font-size: 28px; margin-bottom: 16px; }

        .metadata {
            display: flex;
            flex-wrap: wrap;
            gap: 16px;
            font-size: 14px;
            color: var(--text-muted);
        }

        .transcript { padding: 24px 32px; }

        .message {
            margin-bottom: 24px;
            padding: 20px;
            border-radius: 8px;
            border-left: 4px solid transparent;
            background: var(--bg-primary);
        }

        .user-message { border-left-color: var(--user-accent); }
        .assistant-message { border-left-color: var(--assistant-accent); }
        .notice-message { border-left-color: var(--notice-accent); }

        .message-header {
            display: flex;
            justify-content: space-between;
            margin-bottom: 12px;
            font-size: 14px;
        }

        .role-label { font-weight: 600; }

        .timestamp {
            color: var(--text-muted);
            font-size: 13px;
            font-family: var(--font-mono);
        }

        .reasoning {
            margin-bottom: 12px;
            font-size: 14px;
            color: var(--text-muted);
        }

        .reasoning summary { cursor: pointer; }

        .reasoning-content {
            margin-top: 8px;
            padding: 12px;
            background: var(--code-bg);
            border-radius: 6px;
        }

        .message-content pre {
            margin: 12px 0;
            padding: 16px;
            background: var(--code-bg);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            overflow-x: auto;
        }

        .message-content code {
            font-family: var(--font-mono);
            font-size: 14px;
        }

        .message-content table {
            margin: 12px 0;
            border-collapse: collapse;
        }

        .message-content th, .message-content td {
            padding: 6px 12px;
            border: 1px solid var(--border-color);
        }

        .message-content a { color: var(--user-accent); }

        .message-stats {
            margin-top: 12px;
            padding-top: 12px;
            border-top: 1px solid var(--border-color);
            font-size: 13px;
            color: var(--text-muted);
        }

        .footer {
            padding: 20px 32px;
            text-align: center;
            font-size: 14px;
            color: var(--text-muted);
            border-top: 1px solid var(--border-color);
        }
    </style>
`
