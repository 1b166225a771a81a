// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatline/internal/config"
	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/storage"
	"github.com/jeranaias/chatline/internal/transport"
	"github.com/jeranaias/chatline/internal/ui/components"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()
	store, err := storage.NewTranscriptStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewTranscriptStore: %v", err)
	}
	m := New(config.Default(), store, nil)
	m.resize(100, 40)
	return m
}

// feedChunks pushes raw wire chunks through the pipeline the way Update
// does, then forces any pending frame so assertions see the latest content.
func feedChunks(m *Model, chunks ...string) {
	for _, c := range chunks {
		m.pipeline.HandleChunk(c)
	}
	if snapshot, ok := m.frames.ForceTake(); ok {
		m.applySnapshot(snapshot)
	}
}

func TestUserMessageAppendsToTranscript(t *testing.T) {
	m := newTestModel(t)
	m.ShowUserMessage("hello")

	if m.conversation.MessageCount() != 1 {
		t.Fatalf("expected 1 message, got %d", m.conversation.MessageCount())
	}
	if got := m.conversation.Messages[0].Role; got != model.RoleUser {
		t.Errorf("expected user role, got %v", got)
	}
}

func TestStreamedTurnBuildsAssistantMessage(t *testing.T) {
	m := newTestModel(t)

	feedChunks(m,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n",
		"data: [DONE]\n",
	)

	msg := m.conversation.GetLastMessage()
	if msg == nil || msg.Role != model.RoleAssistant {
		t.Fatal("expected an assistant message")
	}
	if msg.Content != "Hello world" {
		t.Errorf("expected accumulated content, got %q", msg.Content)
	}
	if msg.IsStreaming {
		t.Error("expected message finalized after done sentinel")
	}
	if m.streamingID != "" {
		t.Error("expected streaming state cleared")
	}
}

func TestFragmentedChunksAccumulateIdentically(t *testing.T) {
	m := newTestModel(t)

	// A chunk boundary in the middle of the line must not change the result.
	feedChunks(m,
		"data: {\"choices\":[{\"delta\":{\"con",
		"tent\":\"split\"}}]}\ndata: [DONE]\n",
	)

	msg := m.conversation.GetLastMessage()
	if msg == nil || msg.Content != "split" {
		t.Fatalf("expected reassembled content, got %+v", msg)
	}
}

func TestReasoningAccumulates(t *testing.T) {
	m := newTestModel(t)

	feedChunks(m,
		"data: {\"choices\":[{\"delta\":{\"reasoning\":\"step one. \"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"reasoning\":\"step two.\",\"content\":\"answer\"}}]}\n",
		"data: [DONE]\n",
	)

	msg := m.conversation.GetLastMessage()
	if msg.Reasoning != "step one. step two." {
		t.Errorf("expected accumulated reasoning, got %q", msg.Reasoning)
	}
	if msg.Content != "answer" {
		t.Errorf("expected content, got %q", msg.Content)
	}
}

func TestErrorLineBecomesNotice(t *testing.T) {
	m := newTestModel(t)

	feedChunks(m, "[error] upstream overloaded\n")

	msg := m.conversation.GetLastMessage()
	if msg == nil || msg.Role != model.RoleNotice {
		t.Fatal("expected a notice message")
	}
	if !strings.Contains(msg.Content, "upstream overloaded") {
		t.Errorf("expected error text in notice, got %q", msg.Content)
	}
}

func TestConnClosedDuringTurnLeavesPartialContent(t *testing.T) {
	m := newTestModel(t)

	feedChunks(m, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n")

	m.Update(ConnClosedMsg{Err: nil})

	streaming := m.conversation.GetStreamingMessage()
	if streaming == nil {
		t.Fatal("expected turn left open after closure")
	}
	if streaming.Content != "partial" {
		t.Errorf("expected partial content preserved, got %q", streaming.Content)
	}

	last := m.conversation.GetLastMessage()
	if last.Role != model.RoleNotice {
		t.Error("expected closure notice appended")
	}
}

func TestConnOpenedStoresSession(t *testing.T) {
	m := newTestModel(t)

	// The dial command hands the session back in its message; Update is the
	// only place the model field is assigned.
	s := &transport.Session{}
	m.Update(ConnOpenedMsg{Session: s})

	if m.session != s {
		t.Error("expected session stored from ConnOpenedMsg")
	}
	if m.statusBar.State != components.ConnOnline {
		t.Errorf("expected online state, got %v", m.statusBar.State)
	}
}

// streamTicksIn executes a command tree and counts the StreamTickMsg
// results it produces.
func streamTicksIn(cmd tea.Cmd) int {
	if cmd == nil {
		return 0
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		n := 0
		for _, c := range msg {
			n += streamTicksIn(c)
		}
		return n
	case StreamTickMsg:
		return 1
	}
	return 0
}

func TestStreamTickChainNotStackedPerChunk(t *testing.T) {
	m := newTestModel(t)
	chunk := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n"

	_, first := m.Update(ChunkMsg{Chunk: chunk})
	if got := streamTicksIn(first); got != 1 {
		t.Fatalf("expected one tick from the first streaming chunk, got %d", got)
	}

	// Further chunks ride the pending tick instead of starting new chains.
	_, second := m.Update(ChunkMsg{Chunk: chunk})
	if got := streamTicksIn(second); got != 0 {
		t.Errorf("expected no extra tick while one is pending, got %d", got)
	}

	_, rearmed := m.Update(StreamTickMsg{Time: time.Now()})
	if got := streamTicksIn(rearmed); got != 1 {
		t.Errorf("expected the tick re-armed while streaming, got %d", got)
	}

	m.Update(ChunkMsg{Chunk: "data: [DONE]\n"})
	_, after := m.Update(StreamTickMsg{Time: time.Now()})
	if got := streamTicksIn(after); got != 0 {
		t.Errorf("expected the chain stopped after the turn ended, got %d", got)
	}
}

func TestViewRendersTranscript(t *testing.T) {
	m := newTestModel(t)
	m.ShowUserMessage("what is Go?")

	view := m.View()
	if !strings.Contains(view, "what is Go?") {
		t.Error("expected user message in view")
	}
	if !strings.Contains(view, "chatline") {
		t.Error("expected header in view")
	}
}

func TestWindowResize(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	got := updated.(*Model)
	if got.width != 60 || got.height != 20 {
		t.Errorf("expected size applied, got %dx%d", got.width, got.height)
	}
}

func TestSearchOverlayWithoutIndex(t *testing.T) {
	m := newTestModel(t)

	m.openSearch()
	if m.searching {
		t.Error("expected overlay to stay closed without an index")
	}
	last := m.conversation.GetLastMessage()
	if last == nil || !strings.Contains(last.Content, "search index disabled") {
		t.Error("expected a notice explaining the missing index")
	}
}

func TestReasoningToggle(t *testing.T) {
	m := newTestModel(t)

	feedChunks(m,
		"data: {\"choices\":[{\"delta\":{\"reasoning\":\"hidden thoughts\",\"content\":\"visible\"}}]}\n",
		"data: [DONE]\n",
	)

	m.refreshViewport()
	if !strings.Contains(m.viewport.View(), "hidden thoughts") {
		t.Skip("reasoning clipped by viewport height")
	}

	m.renderer.ShowReasoning = false
	m.refreshViewport()
	if strings.Contains(m.viewport.View(), "hidden thoughts") {
		t.Error("expected reasoning hidden after toggle")
	}
}
