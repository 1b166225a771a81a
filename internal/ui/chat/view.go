// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full chat screen: header, transcript viewport, input box
// and status bar.
func (m *Model) View() string {
	if !m.ready {
		return m.spin.View() + " starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.statusBar.Render())
	return b.String()
}

func (m *Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("chatline")
	subtitle := ""
	if m.conversation.Title != "" {
		subtitle = m.theme.HeaderSubtitle.Render(" | " + m.conversation.Title)
	}
	return m.theme.Header.Width(m.width).Render(title + subtitle)
}

func (m *Model) renderInput() string {
	if m.searching {
		return m.theme.InputContainer.Width(m.width - 2).Render(m.searchInput.View())
	}
	if m.streamingID != "" {
		return m.theme.InputContainer.Width(m.width - 2).
			Render(m.spin.View() + " " + m.theme.ThinkingText.Render("assistant is responding..."))
	}
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

// refreshViewport re-renders the transcript into the viewport, pinned to the
// bottom so new content stays visible.
func (m *Model) refreshViewport() {
	if !m.ready || m.searching {
		return
	}

	var blocks []string
	for _, msg := range m.conversation.Messages {
		blocks = append(blocks, m.renderer.Render(msg))
	}

	content := strings.Join(blocks, "\n\n")
	if content == "" {
		content = m.theme.ThinkingText.Render("Send a message to start the conversation.")
	}

	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.viewport.Width).Render(content))
	if atBottom || m.streamingID != "" {
		m.viewport.GotoBottom()
	}
}
