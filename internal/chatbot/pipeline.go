// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatbot wires the stream decoder, turn accumulator and markdown
// renderer into one inbound pipeline feeding a transcript sink.
//
// Everything runs synchronously on delivery of each chunk: the transport
// hands over one chunk at a time and the previous chunk is fully decoded and
// rendered before the next is processed. No queuing layer sits in between.
package chatbot

import (
	"github.com/jeranaias/chatline/internal/markdown"
	"github.com/jeranaias/chatline/internal/stream"
	"github.com/jeranaias/chatline/internal/turn"
)

// =============================================================================
// TRANSCRIPT SINK
// =============================================================================

// TurnHandle identifies one assistant turn for update calls. Handles are
// opaque to the pipeline; the sink mints them.
type TurnHandle string

// Sink receives transcript notifications and owns presentation. The pipeline
// calls it from the goroutine delivering chunks, one call at a time.
type Sink interface {
	// ShowUserMessage displays text the local user submitted.
	ShowUserMessage(text string)

	// BeginAssistantTurn opens a new assistant bubble and returns its handle.
	BeginAssistantTurn() TurnHandle

	// UpdateReasoning replaces the reasoning text shown for the turn.
	UpdateReasoning(h TurnHandle, text string)

	// UpdateContent replaces the content shown for the turn. markup is the
	// sanitized HTML rendering of raw; sinks pick whichever form suits
	// their surface.
	UpdateContent(h TurnHandle, markup, raw string)

	// EndTurn marks the turn finished.
	EndTurn(h TurnHandle)

	// ShowSystemNotice displays an out-of-band notice line.
	ShowSystemNotice(text string)
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline is the inbound half of one chat session.
type Pipeline struct {
	decoder     *stream.Decoder
	accumulator *turn.Accumulator
	renderer    *markdown.Renderer
	sink        Sink

	// handles maps the accumulator's turn IDs to sink handles for the
	// (at most one) turn currently open in the sink.
	handles map[string]TurnHandle
}

// NewPipeline creates a pipeline delivering to sink. renderer must not be
// nil; pass markdown.NewRenderer("") when no link base origin is configured.
func NewPipeline(renderer *markdown.Renderer, sink Sink) *Pipeline {
	return &Pipeline{
		decoder:     stream.NewDecoder(),
		accumulator: turn.NewAccumulator(),
		renderer:    renderer,
		sink:        sink,
		handles:     make(map[string]TurnHandle),
	}
}

// HandleChunk decodes one raw inbound chunk and delivers every resulting
// transcript notification before returning.
func (p *Pipeline) HandleChunk(chunk string) {
	for _, frame := range p.decoder.Feed(chunk) {
		for _, ev := range p.accumulator.Apply(frame) {
			p.deliver(ev)
		}
	}
}

// HandleClose surfaces transport closure as a system notice. Any active turn
// is left in its last-rendered state; that is documented behavior, not
// cleanup we forgot.
func (p *Pipeline) HandleClose(reason string) {
	if reason == "" {
		reason = "connection closed"
	}
	p.sink.ShowSystemNotice(reason)
}

// ActiveTurn exposes the accumulator's active turn for status displays.
func (p *Pipeline) ActiveTurn() *turn.Turn {
	return p.accumulator.Active()
}

func (p *Pipeline) deliver(ev turn.Event) {
	switch ev.Kind {
	case turn.EventTurnStarted:
		p.handles[ev.Turn.ID] = p.sink.BeginAssistantTurn()
	case turn.EventReasoningUpdated:
		p.sink.UpdateReasoning(p.handles[ev.Turn.ID], ev.Turn.ReasoningText())
	case turn.EventContentUpdated:
		raw := ev.Turn.ContentText()
		p.sink.UpdateContent(p.handles[ev.Turn.ID], p.renderer.Render(raw), raw)
	case turn.EventTurnEnded:
		p.sink.EndTurn(p.handles[ev.Turn.ID])
		delete(p.handles, ev.Turn.ID)
	case turn.EventSystemNotice:
		p.sink.ShowSystemNotice(ev.Notice)
	}
}
