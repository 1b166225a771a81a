// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatline/internal/ui/styles"
	"github.com/jeranaias/chatline/internal/util"
)

// =============================================================================
// CONNECTION STATE
// =============================================================================

// ConnState tracks the lifecycle of the websocket session for display.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnOnline
	ConnOffline
)

// String returns the display label for the state.
func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnOnline:
		return "online"
	case ConnOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// =============================================================================
// STATUS BAR
// =============================================================================

// Shortcut is one key hint shown in the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar renders the bottom status line: connection state, server,
// and key hints.
type StatusBar struct {
	theme *styles.Theme
	width int

	State     ConnState
	ServerURL string
	Shortcuts []Shortcut
}

// NewStatusBar creates a status bar with the default shortcuts.
func NewStatusBar(theme *styles.Theme, width int) *StatusBar {
	return &StatusBar{
		theme: theme,
		width: width,
		State: ConnConnecting,
		Shortcuts: []Shortcut{
			{Key: "enter", Desc: "send"},
			{Key: "ctrl+r", Desc: "reasoning"},
			{Key: "ctrl+s", Desc: "save"},
			{Key: "ctrl+c", Desc: "quit"},
		},
	}
}

// SetWidth updates the render width.
func (b *StatusBar) SetWidth(width int) {
	b.width = width
}

// Render returns the styled status line.
func (b *StatusBar) Render() string {
	conn := b.renderConn()

	server := ""
	if b.ServerURL != "" {
		server = b.theme.ShortcutDesc.Render(util.TruncateWidth(b.ServerURL, 40))
	}

	var hints []string
	for _, s := range b.Shortcuts {
		hints = append(hints, b.theme.ShortcutKey.Render(s.Key)+" "+
			b.theme.ShortcutDesc.Render(s.Desc))
	}

	left := conn
	if server != "" {
		left += "  " + server
	}
	right := strings.Join(hints, "  ")

	gap := b.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}

	return b.theme.StatusBar.Width(b.width).
		Render(left + strings.Repeat(" ", gap) + right)
}

func (b *StatusBar) renderConn() string {
	switch b.State {
	case ConnOnline:
		return b.theme.ConnOnline.Render("● " + b.State.String())
	case ConnOffline:
		return b.theme.ConnOffline.Render("● " + b.State.String())
	default:
		return b.theme.ConnPending.Render("● " + b.State.String())
	}
}
