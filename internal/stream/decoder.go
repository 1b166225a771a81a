// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the chatbot event stream into classified frames.
//
// The transport delivers raw text in arbitrarily-fragmented chunks; a chunk
// boundary may fall in the middle of a logical line. The Decoder keeps the
// unterminated trailing fragment (the carry) across Feed calls, so the
// sequence of frames it produces depends only on the concatenated input,
// never on how the transport happened to split it.
package stream

import "strings"

// =============================================================================
// FRAME TYPES
// =============================================================================

// FrameKind classifies one logical line of the inbound stream.
type FrameKind int

const (
	// FrameIgnorable is an empty line or an auxiliary metadata line.
	FrameIgnorable FrameKind = iota
	// FrameEvent is a line carrying an event payload ("data: ..." form).
	FrameEvent
	// FrameError is an upstream-signaled error line ("[error] ..." form).
	FrameError
)

// String returns a short name for the frame kind, for tests and debugging.
func (k FrameKind) String() string {
	switch k {
	case FrameEvent:
		return "event"
	case FrameError:
		return "error"
	default:
		return "ignorable"
	}
}

// Frame is one classified logical line of the inbound stream.
type Frame struct {
	Kind FrameKind

	// Raw holds the event payload for FrameEvent frames (the remainder of
	// the line after the "data:" prefix, surrounding whitespace trimmed),
	// or the whole line for FrameError frames. Empty for FrameIgnorable.
	Raw string
}

// eventPrefix marks a line carrying an event payload.
const eventPrefix = "data:"

// errorPrefix marks an upstream-signaled error line.
const errorPrefix = "[error]"

// =============================================================================
// DECODER
// =============================================================================

// Decoder splits an incoming text stream into discrete logical lines and
// classifies each one. Lines are delimited by "\n" or "\r\n".
//
// A Decoder is scoped to one transport session and is not safe for
// concurrent use; all Feed calls must come from the session's read loop.
type Decoder struct {
	carry string
}

// NewDecoder creates a decoder with an empty carry.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the carry, splits off every complete line, and
// returns the classified frames in input order. The trailing segment with no
// terminating newline becomes the new carry. A chunk with no newline only
// grows the carry and yields no frames.
func (d *Decoder) Feed(chunk string) []Frame {
	data := d.carry + chunk
	if !strings.Contains(data, "\n") {
		d.carry = data
		return nil
	}

	lines := strings.Split(data, "\n")
	d.carry = lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	frames := make([]Frame, 0, len(lines))
	for _, line := range lines {
		frames = append(frames, classify(line))
	}
	return frames
}

// Carry returns the unterminated trailing fragment retained from previous
// Feed calls. Exposed for tests and session diagnostics.
func (d *Decoder) Carry() string {
	return d.carry
}

// classify maps one complete line to a frame.
func classify(line string) Frame {
	line = strings.TrimSuffix(line, "\r")

	if strings.TrimSpace(line) == "" {
		return Frame{Kind: FrameIgnorable}
	}
	if strings.HasPrefix(line, eventPrefix) {
		return Frame{
			Kind: FrameEvent,
			Raw:  strings.TrimSpace(line[len(eventPrefix):]),
		}
	}
	if strings.HasPrefix(line, errorPrefix) {
		return Frame{Kind: FrameError, Raw: line}
	}

	// Reserved stream metadata fields (id:, retry:, comments) and anything
	// else we do not recognize.
	return Frame{Kind: FrameIgnorable}
}
