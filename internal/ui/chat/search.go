// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Transcript search overlay. Ctrl+F swaps the input line for a query box;
// results from the sqlite index replace the viewport until Esc returns to
// the live transcript.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatline/internal/index"
)

// SearchResultsMsg delivers index hits for the overlay.
type SearchResultsMsg struct {
	Query   string
	Results []index.SearchResult
	Err     error
}

// openSearch enters the overlay. No-op when indexing is disabled.
func (m *Model) openSearch() {
	if m.idx == nil {
		m.notice("search index disabled")
		m.refreshViewport()
		return
	}
	if m.searchInput.Value() == "" {
		input := textinput.New()
		input.Placeholder = "Search transcripts..."
		input.Prompt = "/ "
		m.searchInput = input
	}
	m.searching = true
	m.searchInput.Focus()
	m.input.Blur()
}

// closeSearch returns to the live transcript.
func (m *Model) closeSearch() {
	m.searching = false
	m.searchInput.Reset()
	m.input.Focus()
	m.refreshViewport()
}

// handleSearchKey processes keys while the overlay is open.
func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeSearch()
		return m, nil
	case "enter":
		query := strings.TrimSpace(m.searchInput.Value())
		if query == "" {
			return m, nil
		}
		return m, m.searchCmd(query)
	case "ctrl+c":
		if m.session != nil {
			m.session.Close()
		}
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m *Model) searchCmd(query string) tea.Cmd {
	idx := m.idx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		results, err := idx.Search(ctx, query, 20)
		return SearchResultsMsg{Query: query, Results: results, Err: err}
	}
}

// showSearchResults renders hits into the viewport.
func (m *Model) showSearchResults(msg SearchResultsMsg) {
	if msg.Err != nil {
		m.viewport.SetContent(m.theme.ErrorText.Render("search failed: " + msg.Err.Error()))
		return
	}

	if len(msg.Results) == 0 {
		m.viewport.SetContent(m.theme.ThinkingText.Render("no matches for " + msg.Query))
		return
	}

	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render(
		fmt.Sprintf("%d match(es) for %q", len(msg.Results), msg.Query)))
	b.WriteString("\n")
	for _, r := range msg.Results {
		b.WriteString("\n")
		b.WriteString(m.theme.RoleLabel.Render(r.Title))
		b.WriteString(" ")
		b.WriteString(m.theme.Timestamp.Render(r.TranscriptID + " | " + r.Role))
		b.WriteString("\n")
		b.WriteString("  " + r.Snippet + "\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoTop()
}
