// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the application. It detects the
// terminal's color capability and adapts.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Container
	App       lipgloss.Style
	Container lipgloss.Style

	// Header
	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// Message bubbles
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	NoticeBubble    lipgloss.Style
	RoleLabel       lipgloss.Style
	Timestamp       lipgloss.Style
	StatsLine       lipgloss.Style

	// Reasoning display
	ReasoningHeader lipgloss.Style
	ReasoningBody   lipgloss.Style

	// Input area
	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputText        lipgloss.Style
	InputPlaceholder lipgloss.Style

	// Status bar
	StatusBar    lipgloss.Style
	ConnOnline   lipgloss.Style
	ConnOffline  lipgloss.Style
	ConnPending  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// Streaming indicator
	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style

	// Errors
	ErrorText lipgloss.Style
}

// NewTheme creates a theme with all styles configured for the detected
// terminal.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// NewThemeForName creates a theme forcing the configured light/dark
// variant instead of detecting the terminal background.
func NewThemeForName(name string) *Theme {
	lipgloss.SetHasDarkBackground(name != "light")
	return NewTheme()
}

func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()
	t.Container = lipgloss.NewStyle().Padding(0, 1)

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 2)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBubbleBorder).
		PaddingLeft(2).
		MarginLeft(2)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBubbleBorder).
		PaddingLeft(2)

	t.NoticeBubble = lipgloss.NewStyle().
		Foreground(NoticeBubbleFg).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderLeft(true).
		BorderForeground(NoticeBubbleBorder).
		PaddingLeft(2)

	t.RoleLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatsLine = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ReasoningHeader = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ReasoningBody = lipgloss.NewStyle().
		Foreground(TextMuted).
		PaddingLeft(2)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.InputText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ConnOnline = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.ConnOffline = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.ConnPending = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
}

// SetSize records the terminal dimensions for layout decisions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}
