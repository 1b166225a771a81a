// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown converts a supported markdown subset to sanitized HTML.
//
// The renderer is re-invoked with the entire accumulated text on every
// content update, so it must behave at any truncation point: an unclosed
// fence, a table header with no separator yet, a link with no closing paren
// all come out as plain escaped text instead of corrupting later output.
// Rendering is a pure function of its input and never fails.
//
// The pipeline order is load-bearing. Escaping runs first so no raw input
// can inject markup; headings check ### before ## before # so longer runs
// are not partially matched; fenced code runs before inline code; bold runs
// before italic so ** is not misparsed as nested single stars.
package markdown

import (
	"net/url"
	"regexp"
	"strings"
)

// =============================================================================
// RENDERER
// =============================================================================

// Renderer transforms raw markdown text into HTML markup. The base origin,
// when set, resolves relative link targets; without one, relative links get
// the placeholder target.
type Renderer struct {
	base *url.URL
}

// NewRenderer creates a renderer. baseOrigin may be empty; a value that does
// not parse as an absolute http(s) URL is ignored rather than rejected.
func NewRenderer(baseOrigin string) *Renderer {
	r := &Renderer{}
	if baseOrigin != "" {
		if u, err := url.Parse(baseOrigin); err == nil && isAllowedScheme(u.Scheme) {
			r.base = u
		}
	}
	return r
}

// Render runs the full transform pipeline over raw.
func (r *Renderer) Render(raw string) string {
	s := escapeHTML(raw)
	s = convertTables(s)
	s = convertHeadings(s)
	s = convertFencedCode(s)
	s = convertInlineCode(s)
	s = r.convertLinks(s)
	s = convertBold(s)
	s = convertItalic(s)
	s = convertLineBreaks(s)
	return s
}

// =============================================================================
// STAGE 1: ESCAPING
// =============================================================================

// htmlEscaper rewrites the five HTML-significant characters. The ampersand
// rule runs in the same pass, so already-escaped entities in the input are
// double-escaped instead of smuggled through.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// =============================================================================
// STAGE 2: TABLES
// =============================================================================

var (
	// tableRowPattern matches any pipe-delimited line.
	tableRowPattern = regexp.MustCompile(`^\s*\|(.+)\|\s*$`)
	// tableSeparatorPattern matches the dashes/colons line under a header.
	tableSeparatorPattern = regexp.MustCompile(`^\s*\|(\s*:?-+:?\s*\|)+\s*$`)
)

// convertTables rewrites pipe-delimited table blocks. A block starts at a
// header row immediately followed by a separator row and consumes body rows
// until the first non-matching line. Recognition is line-range-wise; tables
// do not nest.
func convertTables(s string) string {
	lines := strings.Split(s, "\n")
	var out []string

	for i := 0; i < len(lines); {
		header := tableRowPattern.FindStringSubmatch(lines[i])
		if header == nil || i+1 >= len(lines) || !tableSeparatorPattern.MatchString(lines[i+1]) {
			out = append(out, lines[i])
			i++
			continue
		}

		var table strings.Builder
		table.WriteString("<table><thead><tr>")
		for _, cell := range splitCells(header[1]) {
			table.WriteString("<th>")
			table.WriteString(cell)
			table.WriteString("</th>")
		}
		table.WriteString("</tr></thead><tbody>")

		i += 2
		for i < len(lines) {
			row := tableRowPattern.FindStringSubmatch(lines[i])
			if row == nil {
				break
			}
			table.WriteString("<tr>")
			for _, cell := range splitCells(row[1]) {
				table.WriteString("<td>")
				table.WriteString(cell)
				table.WriteString("</td>")
			}
			table.WriteString("</tr>")
			i++
		}
		table.WriteString("</tbody></table>")
		out = append(out, table.String())
	}

	return strings.Join(out, "\n")
}

// splitCells splits the inner part of a pipe row into trimmed cells.
func splitCells(inner string) []string {
	parts := strings.Split(inner, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

// =============================================================================
// STAGE 3: HEADINGS
// =============================================================================

var (
	h3Pattern = regexp.MustCompile(`(?m)^### (.*)$`)
	h2Pattern = regexp.MustCompile(`(?m)^## (.*)$`)
	h1Pattern = regexp.MustCompile(`(?m)^# (.*)$`)
)

// convertHeadings rewrites ATX headings for levels 1-3. Longer hash runs are
// not supported and stay literal text.
func convertHeadings(s string) string {
	s = h3Pattern.ReplaceAllString(s, "<h3>$1</h3>")
	s = h2Pattern.ReplaceAllString(s, "<h2>$1</h2>")
	s = h1Pattern.ReplaceAllString(s, "<h1>$1</h1>")
	return s
}

// =============================================================================
// STAGE 4: CODE
// =============================================================================

var (
	// fencedCodePattern spans lines non-greedily; an unclosed fence never
	// matches and the partial block stays escaped text.
	fencedCodePattern = regexp.MustCompile("(?s)```(.*?)```")
	inlineCodePattern = regexp.MustCompile("`([^`\n]+)`")
)

func convertFencedCode(s string) string {
	return fencedCodePattern.ReplaceAllString(s, "<pre><code>$1</code></pre>")
}

func convertInlineCode(s string) string {
	return inlineCodePattern.ReplaceAllString(s, "<code>$1</code>")
}

// =============================================================================
// STAGE 5: LINKS
// =============================================================================

// linkPattern stops the target at the first closing paren, so a target like
// javascript:alert(1) still matches and gets the placeholder instead of
// escaping recognition entirely.
var linkPattern = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)

// placeholderHref replaces any link target that is malformed, relative with
// no base origin, or outside the http/https allow-list. Substituting instead
// of rejecting keeps rendering total.
const placeholderHref = "#"

func (r *Renderer) convertLinks(s string) string {
	return linkPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := linkPattern.FindStringSubmatch(match)
		text, target := parts[1], parts[2]
		return `<a href="` + r.resolveHref(target) + `">` + text + `</a>`
	})
}

// resolveHref resolves target against the base origin and applies the scheme
// allow-list. The target arrives HTML-escaped from stage 1; unescape the
// entities that can legally appear in a URL before parsing, then re-escape.
func (r *Renderer) resolveHref(target string) string {
	target = strings.ReplaceAll(target, "&amp;", "&")

	u, err := url.Parse(target)
	if err != nil {
		return placeholderHref
	}
	if r.base != nil {
		u = r.base.ResolveReference(u)
	}
	if !isAllowedScheme(u.Scheme) {
		return placeholderHref
	}
	return strings.ReplaceAll(u.String(), "&", "&amp;")
}

func isAllowedScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}

// =============================================================================
// STAGE 6: EMPHASIS
// =============================================================================

var (
	boldPattern   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicPattern = regexp.MustCompile(`\*([^*\n]+)\*`)
)

func convertBold(s string) string {
	return boldPattern.ReplaceAllString(s, "<strong>$1</strong>")
}

func convertItalic(s string) string {
	return italicPattern.ReplaceAllString(s, "<em>$1</em>")
}

// =============================================================================
// STAGE 7: LINE BREAKS
// =============================================================================

func convertLineBreaks(s string) string {
	return strings.ReplaceAll(s, "\n", "<br>")
}
