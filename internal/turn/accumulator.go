// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn accumulates stream deltas into conversational turns.
//
// The accumulator holds at most one active turn at a time. Reasoning and
// content buffers only ever grow by appending; a turn is destroyed when the
// done sentinel arrives or a delta carries the finish marker. A session that
// closes mid-turn simply stops applying frames and the turn is abandoned in
// its last state.
package turn

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/chatline/internal/stream"
)

// =============================================================================
// TURN STATE
// =============================================================================

// Turn is one assistant response being accumulated from stream deltas.
type Turn struct {
	ID        string
	StartedAt time.Time

	reasoning strings.Builder
	content   strings.Builder
}

// ReasoningText returns the reasoning accumulated so far.
func (t *Turn) ReasoningText() string {
	return t.reasoning.String()
}

// ContentText returns the content accumulated so far.
func (t *Turn) ContentText() string {
	return t.content.String()
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies what happened while applying a frame.
type EventKind int

const (
	// EventTurnStarted is emitted when a delta arrives with no active turn.
	// It always precedes any update event returned alongside it.
	EventTurnStarted EventKind = iota
	// EventReasoningUpdated is emitted after a reasoning fragment append.
	EventReasoningUpdated
	// EventContentUpdated is emitted after a content fragment append.
	EventContentUpdated
	// EventTurnEnded is emitted when the done sentinel or a finish marker
	// destroys the active turn. Fragment appends carried by the same delta
	// are applied first.
	EventTurnEnded
	// EventSystemNotice is the side channel for upstream error lines; it
	// never touches turn state.
	EventSystemNotice
)

// String returns a short name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventTurnStarted:
		return "turn_started"
	case EventReasoningUpdated:
		return "reasoning_updated"
	case EventContentUpdated:
		return "content_updated"
	case EventTurnEnded:
		return "turn_ended"
	case EventSystemNotice:
		return "system_notice"
	default:
		return "unknown"
	}
}

// Event is one observable outcome of applying a frame. Turn is set for all
// kinds except EventSystemNotice; Notice is set only for EventSystemNotice.
type Event struct {
	Kind   EventKind
	Turn   *Turn
	Notice string
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// Accumulator is the turn state machine for one transport session.
// Not safe for concurrent use; frames must be applied from the session's
// read loop in delivery order.
type Accumulator struct {
	active *Turn
}

// NewAccumulator creates an accumulator with no active turn.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Active returns the active turn, or nil when none is live.
func (a *Accumulator) Active() *Turn {
	return a.active
}

// Apply advances the state machine with one frame and returns the events it
// produced, in the order they must be delivered to the sink.
func (a *Accumulator) Apply(frame stream.Frame) []Event {
	switch frame.Kind {
	case stream.FrameError:
		return []Event{{Kind: EventSystemNotice, Notice: frame.Raw}}
	case stream.FrameEvent:
		return a.applyDelta(stream.DecodeDelta(frame.Raw))
	default:
		return nil
	}
}

func (a *Accumulator) applyDelta(d stream.Delta) []Event {
	if d.Kind == stream.DeltaDone {
		// Idempotent: a stray done sentinel with no active turn is a no-op.
		if a.active == nil {
			return nil
		}
		ended := a.active
		a.active = nil
		return []Event{{Kind: EventTurnEnded, Turn: ended}}
	}

	var events []Event
	if a.active == nil {
		a.active = &Turn{
			ID:        uuid.NewString(),
			StartedAt: time.Now(),
		}
		events = append(events, Event{Kind: EventTurnStarted, Turn: a.active})
	}

	if d.Reasoning != "" {
		a.active.reasoning.WriteString(d.Reasoning)
		events = append(events, Event{Kind: EventReasoningUpdated, Turn: a.active})
	}
	if d.Content != "" {
		a.active.content.WriteString(d.Content)
		events = append(events, Event{Kind: EventContentUpdated, Turn: a.active})
	}

	if d.Finished {
		ended := a.active
		a.active = nil
		events = append(events, Event{Kind: EventTurnEnded, Turn: ended})
	}
	return events
}
