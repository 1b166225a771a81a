// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"testing"

	"github.com/jeranaias/chatline/internal/stream"
)

// event feeds a data line through a fresh classification.
func event(payload string) stream.Frame {
	return stream.Frame{Kind: stream.FrameEvent, Raw: payload}
}

// kinds extracts the event kinds for compact assertions.
func kinds(events []Event) []EventKind {
	ks := make([]EventKind, len(events))
	for i, ev := range events {
		ks[i] = ev.Kind
	}
	return ks
}

func kindsEqual(a, b []EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

// TestContentAccumulation streams two content fragments and a done sentinel:
// one turn, final content "Hello", turn ends.
func TestContentAccumulation(t *testing.T) {
	a := NewAccumulator()

	first := a.Apply(event(`{"choices":[{"delta":{"content":"Hel"}}]}`))
	if !kindsEqual(kinds(first), []EventKind{EventTurnStarted, EventContentUpdated}) {
		t.Fatalf("First delta events = %v", kinds(first))
	}

	second := a.Apply(event(`{"choices":[{"delta":{"content":"lo"}}]}`))
	if !kindsEqual(kinds(second), []EventKind{EventContentUpdated}) {
		t.Fatalf("Second delta events = %v", kinds(second))
	}
	if got := a.Active().ContentText(); got != "Hello" {
		t.Errorf("ContentText = %q, want %q", got, "Hello")
	}

	done := a.Apply(event("[DONE]"))
	if !kindsEqual(kinds(done), []EventKind{EventTurnEnded}) {
		t.Fatalf("Done events = %v", kinds(done))
	}
	if done[0].Turn.ContentText() != "Hello" {
		t.Errorf("Ended turn content = %q, want %q", done[0].Turn.ContentText(), "Hello")
	}
	if a.Active() != nil {
		t.Error("Expected no active turn after done sentinel")
	}
}

// TestDoneWithoutTurn verifies the stray done sentinel is a no-op.
func TestDoneWithoutTurn(t *testing.T) {
	a := NewAccumulator()

	if events := a.Apply(event("[DONE]")); len(events) != 0 {
		t.Errorf("Expected no events for stray done, got %v", kinds(events))
	}
	if a.Active() != nil {
		t.Error("Expected no turn to be created by stray done")
	}
}

func TestDoneEndsEmptyTurn(t *testing.T) {
	a := NewAccumulator()

	// An empty structured delta opens a turn even though it appends nothing.
	a.Apply(event(`{"choices":[{"delta":{}}]}`))
	if a.Active() == nil {
		t.Fatal("Expected an active turn after empty structured delta")
	}

	events := a.Apply(event("[DONE]"))
	if !kindsEqual(kinds(events), []EventKind{EventTurnEnded}) {
		t.Fatalf("Done events = %v", kinds(events))
	}
	if events[0].Turn.ContentText() != "" {
		t.Errorf("Expected empty content, got %q", events[0].Turn.ContentText())
	}
}

// TestFinishMarkerAppliesFragmentFirst covers a final delta carrying both new
// text and the finish marker: appends are reflected before the turn ends.
func TestFinishMarkerAppliesFragmentFirst(t *testing.T) {
	a := NewAccumulator()

	a.Apply(event(`{"choices":[{"delta":{"content":"almost"}}]}`))
	events := a.Apply(event(`{"choices":[{"delta":{"content":" done"},"finish_reason":"stop"}]}`))

	if !kindsEqual(kinds(events), []EventKind{EventContentUpdated, EventTurnEnded}) {
		t.Fatalf("Events = %v", kinds(events))
	}
	if got := events[1].Turn.ContentText(); got != "almost done" {
		t.Errorf("Ended turn content = %q, want %q", got, "almost done")
	}
	if a.Active() != nil {
		t.Error("Expected no active turn after finish marker")
	}
}

func TestFirstDeltaWithFinishMarker(t *testing.T) {
	a := NewAccumulator()

	events := a.Apply(event(`{"choices":[{"delta":{"content":"hi"},"finish_reason":"stop"}]}`))
	want := []EventKind{EventTurnStarted, EventContentUpdated, EventTurnEnded}
	if !kindsEqual(kinds(events), want) {
		t.Errorf("Events = %v, want %v", kinds(events), want)
	}
}

func TestReasoningAndContentInOneDelta(t *testing.T) {
	a := NewAccumulator()

	events := a.Apply(event(`{"choices":[{"delta":{"reasoning":"let me think","content":"Sure"}}]}`))
	want := []EventKind{EventTurnStarted, EventReasoningUpdated, EventContentUpdated}
	if !kindsEqual(kinds(events), want) {
		t.Fatalf("Events = %v, want %v", kinds(events), want)
	}
	if got := a.Active().ReasoningText(); got != "let me think" {
		t.Errorf("ReasoningText = %q", got)
	}
}

// =============================================================================
// FALLBACK AND SIDE-CHANNEL TESTS
// =============================================================================

func TestRawTextFallbackBecomesContent(t *testing.T) {
	a := NewAccumulator()

	events := a.Apply(event("not json at all"))
	if !kindsEqual(kinds(events), []EventKind{EventTurnStarted, EventContentUpdated}) {
		t.Fatalf("Events = %v", kinds(events))
	}
	if got := a.Active().ContentText(); got != "not json at all" {
		t.Errorf("ContentText = %q", got)
	}
}

func TestErrorFrameIsSideChannelOnly(t *testing.T) {
	a := NewAccumulator()
	a.Apply(event(`{"choices":[{"delta":{"content":"partial"}}]}`))

	events := a.Apply(stream.Frame{Kind: stream.FrameError, Raw: "[error] upstream hiccup"})
	if !kindsEqual(kinds(events), []EventKind{EventSystemNotice}) {
		t.Fatalf("Events = %v", kinds(events))
	}
	if events[0].Notice != "[error] upstream hiccup" {
		t.Errorf("Notice = %q", events[0].Notice)
	}
	if a.Active() == nil || a.Active().ContentText() != "partial" {
		t.Error("Error frame must not disturb the active turn")
	}
}

func TestIgnorableFrameProducesNothing(t *testing.T) {
	a := NewAccumulator()
	if events := a.Apply(stream.Frame{Kind: stream.FrameIgnorable}); events != nil {
		t.Errorf("Expected nil events, got %v", kinds(events))
	}
}

// =============================================================================
// INVARIANT TESTS
// =============================================================================

// TestMonotonicAccumulation checks buffers never shrink across a long,
// adversarial event sequence.
func TestMonotonicAccumulation(t *testing.T) {
	a := NewAccumulator()
	payloads := []string{
		`{"choices":[{"delta":{"content":"a"}}]}`,
		"garbage",
		`{"choices":[{"delta":{"reasoning":"r1"}}]}`,
		`{"choices":[]}`,
		`{"choices":[{"delta":{"reasoning":"r2","content":"b"}}]}`,
	}

	var lastReasoning, lastContent int
	for _, p := range payloads {
		a.Apply(event(p))
		if a.Active() == nil {
			t.Fatalf("Turn unexpectedly ended after %q", p)
		}
		r := len(a.Active().ReasoningText())
		c := len(a.Active().ContentText())
		if r < lastReasoning || c < lastContent {
			t.Fatalf("Buffers shrank after %q: reasoning %d->%d content %d->%d",
				p, lastReasoning, r, lastContent, c)
		}
		lastReasoning, lastContent = r, c
	}
}

// TestAtMostOneActiveTurn drives several turn lifecycles and checks a new
// turn only appears after the previous one ended.
func TestAtMostOneActiveTurn(t *testing.T) {
	a := NewAccumulator()

	var seen []string
	for i := 0; i < 3; i++ {
		a.Apply(event(`{"choices":[{"delta":{"content":"x"}}]}`))
		active := a.Active()
		if active == nil {
			t.Fatal("Expected an active turn")
		}
		for _, id := range seen {
			if id == active.ID {
				t.Fatalf("Turn ID %s reused while a previous turn existed", id)
			}
		}
		seen = append(seen, active.ID)
		a.Apply(event("[DONE]"))
		if a.Active() != nil {
			t.Fatal("Expected turn to end")
		}
	}
}
