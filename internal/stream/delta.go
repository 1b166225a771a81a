// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "encoding/json"

// =============================================================================
// DELTA TYPES
// =============================================================================

// DeltaKind identifies the decoded body of an event payload.
type DeltaKind int

const (
	// DeltaDone is the literal "[DONE]" end-of-turn sentinel.
	DeltaDone DeltaKind = iota
	// DeltaStructured is a payload with the choices[0].delta shape.
	DeltaStructured
	// DeltaRawText is any payload that does not parse as the structured
	// shape. The whole payload is treated as literal content text; some
	// upstream producers emit plain-text heartbeats without JSON framing,
	// so this is graceful degradation, not an error.
	DeltaRawText
)

// Delta is the decoded body of one event payload.
type Delta struct {
	Kind DeltaKind

	// Reasoning and Content are the incremental text fragments of a
	// structured delta; either may be empty. For DeltaRawText, Content
	// holds the entire payload.
	Reasoning string
	Content   string

	// Finished reports whether the choice carried the "stop" finish marker.
	// A final delta may carry both new text and the finish marker.
	Finished bool
}

// doneSentinel terminates the current turn regardless of accumulated content.
const doneSentinel = "[DONE]"

// finishReasonStop is the only finish marker that ends a turn.
const finishReasonStop = "stop"

// eventChunk mirrors the upstream streaming response shape.
type eventChunk struct {
	Choices []struct {
		Delta struct {
			Reasoning string `json:"reasoning"`
			Content   string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// =============================================================================
// DECODING
// =============================================================================

// DecodeDelta decodes the raw payload of an event frame. It never fails:
// payloads that are neither the done sentinel nor the structured shape come
// back as DeltaRawText carrying the payload verbatim.
func DecodeDelta(raw string) Delta {
	if raw == doneSentinel {
		return Delta{Kind: DeltaDone}
	}

	var chunk eventChunk
	if err := json.Unmarshal([]byte(raw), &chunk); err != nil || len(chunk.Choices) == 0 {
		return Delta{Kind: DeltaRawText, Content: raw}
	}

	choice := chunk.Choices[0]
	return Delta{
		Kind:      DeltaStructured,
		Reasoning: choice.Delta.Reasoning,
		Content:   choice.Delta.Content,
		Finished:  choice.FinishReason == finishReasonStop,
	}
}
