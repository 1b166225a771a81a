// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewThemeInitializesStyles(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme returned nil")
	}

	// Styles must render without panicking and keep their text.
	out := theme.UserBubble.Render("hello")
	if !strings.Contains(out, "hello") {
		t.Errorf("UserBubble.Render lost content: %q", out)
	}
	out = theme.NoticeBubble.Render("notice")
	if !strings.Contains(out, "notice") {
		t.Errorf("NoticeBubble.Render lost content: %q", out)
	}
}

func TestNewThemeForName(t *testing.T) {
	for _, name := range []string{"dark", "light"} {
		theme := NewThemeForName(name)
		if theme == nil {
			t.Fatalf("NewThemeForName(%q) returned nil", name)
		}
	}
}

func TestSetSize(t *testing.T) {
	theme := NewTheme()
	theme.SetSize(120, 40)
	if theme.Width != 120 || theme.Height != 40 {
		t.Errorf("SetSize stored %dx%d, want 120x40", theme.Width, theme.Height)
	}
}

func TestRenderError(t *testing.T) {
	out := RenderError("boom")
	if !strings.Contains(out, "[X]") || !strings.Contains(out, "boom") {
		t.Errorf("RenderError missing indicator or message: %q", out)
	}
}
