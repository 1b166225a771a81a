// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import "time"

// =============================================================================
// OUTBOUND ENVELOPES
// =============================================================================

// Every outbound message is one structured object per transport send call;
// there is no batching. The field names below are the service's wire format
// and must not change.

// StartEnvelope announces a new chat session with the client's clock.
type StartEnvelope struct {
	Chatbot struct {
		BrowserTSMS int64 `json:"browser_ts_ms"`
	} `json:"Chatbot"`
}

// NewStartEnvelope builds the session-start envelope for the given instant.
func NewStartEnvelope(now time.Time) StartEnvelope {
	var e StartEnvelope
	e.Chatbot.BrowserTSMS = now.UnixMilli()
	return e
}

// UserInputEnvelope carries one submitted user message verbatim.
type UserInputEnvelope struct {
	ChatbotUserInput struct {
		Text string `json:"text"`
	} `json:"ChatbotUserInput"`
}

// NewUserInputEnvelope builds the user-input envelope. Callers are expected
// to have trimmed and rejected empty text already.
func NewUserInputEnvelope(text string) UserInputEnvelope {
	var e UserInputEnvelope
	e.ChatbotUserInput.Text = text
	return e
}
