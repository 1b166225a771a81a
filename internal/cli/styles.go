// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatline/internal/ui/styles"
)

// =============================================================================
// CLI STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	noticeStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	reasoningStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	headingStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)
)
