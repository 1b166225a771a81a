// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"strings"
	"testing"
)

func render(raw string) string {
	return NewRenderer("https://chat.example.com").Render(raw)
}

// =============================================================================
// ESCAPING TESTS
// =============================================================================

func TestEscapeBeforeConvert(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"script tag", "<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"ampersand", "fish & chips", "fish &amp; chips"},
		{"quotes", `say "hi" and 'bye'`, "say &quot;hi&quot; and &#39;bye&#39;"},
		{"pre-escaped entity is double escaped", "&lt;", "&amp;lt;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(tt.raw); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// TestNoUnescapedInputCharacters feeds markup-heavy input through every stage
// and checks no raw <, > or & from the input survives outside generated tags.
func TestNoUnescapedInputCharacters(t *testing.T) {
	raw := "# <b>title</b>\n**bold & <i>sneaky</i>** `x < y` [a&b](https://e.com/?a=1&b=2)"
	got := render(raw)

	stripped := got
	for _, tag := range []string{
		"<h1>", "</h1>", "<strong>", "</strong>", "<code>", "</code>",
		"</a>", "<br>",
	} {
		stripped = strings.ReplaceAll(stripped, tag, "")
	}
	// The anchor open tag carries the href attribute.
	if i := strings.Index(stripped, "<a href="); i >= 0 {
		if j := strings.Index(stripped[i:], ">"); j >= 0 {
			stripped = stripped[:i] + stripped[i+j+1:]
		}
	}

	for _, c := range []string{"<", ">"} {
		if strings.Contains(stripped, c) {
			t.Errorf("Unescaped %q leaked into output: %q", c, got)
		}
	}
}

// =============================================================================
// CONSTRUCT TESTS
// =============================================================================

func TestEmphasis(t *testing.T) {
	got := render("**bold** and *italic*")
	if !strings.Contains(got, "<strong>bold</strong>") {
		t.Errorf("Missing bold span in %q", got)
	}
	if !strings.Contains(got, "<em>italic</em>") {
		t.Errorf("Missing italic span in %q", got)
	}
}

func TestBoldRunsBeforeItalic(t *testing.T) {
	got := render("**x**")
	if got != "<strong>x</strong>" {
		t.Errorf("Render(**x**) = %q, want %q", got, "<strong>x</strong>")
	}
}

func TestHeadings(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"# One", "<h1>One</h1>"},
		{"## Two", "<h2>Two</h2>"},
		{"### Three", "<h3>Three</h3>"},
		{"#### Four", "#### Four"}, // level 4 unsupported, stays literal
		{"#NoSpace", "#NoSpace"},
	}

	for _, tt := range tests {
		if got := render(tt.raw); got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestFencedCode(t *testing.T) {
	got := render("```\nx := 1\n```")
	if !strings.Contains(got, "<pre><code>") || !strings.Contains(got, "x := 1") {
		t.Errorf("Fenced block not converted: %q", got)
	}
}

func TestUnclosedFenceStaysLiteral(t *testing.T) {
	got := render("```\nstill streaming")
	if strings.Contains(got, "<pre>") {
		t.Errorf("Unclosed fence must not open a code block: %q", got)
	}
	if !strings.Contains(got, "```") {
		t.Errorf("Unclosed fence markers should stay visible: %q", got)
	}
}

func TestInlineCode(t *testing.T) {
	got := render("use `go test` here")
	if !strings.Contains(got, "<code>go test</code>") {
		t.Errorf("Inline code not converted: %q", got)
	}
}

func TestTable(t *testing.T) {
	raw := "| Name | Value |\n|------|:-----:|\n| a | 1 |\n| b | 2 |\nafter"
	got := render(raw)

	for _, want := range []string{
		"<table><thead><tr><th>Name</th><th>Value</th></tr></thead><tbody>",
		"<tr><td>a</td><td>1</td></tr>",
		"<tr><td>b</td><td>2</td></tr>",
		"</tbody></table>",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Table output missing %q in %q", want, got)
		}
	}
	if !strings.Contains(got, "after") {
		t.Errorf("Line after table lost: %q", got)
	}
}

func TestTableHeaderWithoutSeparatorStaysLiteral(t *testing.T) {
	got := render("| a | b |")
	if strings.Contains(got, "<table>") {
		t.Errorf("Header without separator must not begin a table: %q", got)
	}
}

func TestLineBreaks(t *testing.T) {
	if got := render("one\ntwo"); got != "one<br>two" {
		t.Errorf("Render = %q, want %q", got, "one<br>two")
	}
}

// =============================================================================
// LINK TESTS
// =============================================================================

func TestLinks(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantHref string
	}{
		{"https allowed", "[x](https://example.com/doc)", "https://example.com/doc"},
		{"http allowed", "[x](http://example.com)", "http://example.com"},
		{"javascript blocked", "[click](javascript:alert(1))", placeholderHref},
		{"data blocked", "[x](data:text/html;base64,AAAA)", placeholderHref},
		{"relative resolved against base", "[x](/help)", "https://chat.example.com/help"},
		{"malformed url", "[x](https://exa%zzmple.com)", placeholderHref},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(tt.raw)
			want := `<a href="` + tt.wantHref + `">`
			if !strings.Contains(got, want) {
				t.Errorf("Render(%q) = %q, want href %q", tt.raw, got, tt.wantHref)
			}
		})
	}
}

func TestRelativeLinkWithoutBaseGetsPlaceholder(t *testing.T) {
	got := NewRenderer("").Render("[x](/help)")
	if !strings.Contains(got, `<a href="#">`) {
		t.Errorf("Relative link without base should get placeholder: %q", got)
	}
}

func TestUnterminatedLinkStaysLiteral(t *testing.T) {
	got := render("[text](https://example.com")
	if strings.Contains(got, "<a ") {
		t.Errorf("Unterminated link must not produce an anchor: %q", got)
	}
}

// =============================================================================
// PROPERTY TESTS
// =============================================================================

// TestRenderIsDeterministic runs the full pipeline twice over the same input;
// a hidden state leak between calls would show up as differing output.
func TestRenderIsDeterministic(t *testing.T) {
	r := NewRenderer("https://chat.example.com")
	raw := "# Title\n| a |\n|---|\n| 1 |\n```go\ncode\n```\n**b** *i* [l](/x) `c`"

	first := r.Render(raw)
	second := r.Render(raw)
	if first != second {
		t.Errorf("Render not deterministic:\nfirst:  %q\nsecond: %q", first, second)
	}
}

// TestRenderTotalOnTruncations renders every prefix of a construct-heavy
// document; any panic or empty output on non-empty input is a failure.
func TestRenderTotalOnTruncations(t *testing.T) {
	r := NewRenderer("https://chat.example.com")
	doc := "# H\n| a | b |\n|---|---|\n| **x** | [l](https://e.com) |\n```\nblock\n```\n*tail*"

	for i := 1; i <= len(doc); i++ {
		got := r.Render(doc[:i])
		if got == "" {
			t.Fatalf("Empty output for non-empty prefix %q", doc[:i])
		}
	}
}
