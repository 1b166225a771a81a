// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for transcripts and messages.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the origin of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleNotice marks out-of-band system notices: upstream error lines,
	// connection state changes, rate-limit rejections.
	RoleNotice Role = "notice"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleNotice:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single transcript entry. Assistant messages are built
// up incrementally from one stream turn; Content and Reasoning hold the raw
// accumulated markdown, never rendered markup, so persistence and export stay
// independent of any one presentation surface.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`

	// TurnID ties an assistant message to the stream turn that produced it.
	TurnID string `json:"turn_id,omitempty"`

	// Streaming state (not persisted).
	IsStreaming bool `json:"-"`

	// Timing metrics for assistant messages.
	TTFT          time.Duration `json:"ttft_ns,omitempty"`
	TotalDuration time.Duration `json:"total_duration_ns,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new streaming assistant message bound to a
// stream turn.
func NewAssistantMessage(turnID string) *Message {
	return &Message{
		ID:          generateID(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		TurnID:      turnID,
		IsStreaming: true,
	}
}

// NewNoticeMessage creates a new system notice entry.
func NewNoticeMessage(content string) *Message {
	return NewMessage(RoleNotice, content)
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// SetContent replaces the accumulated content of a streaming message. The
// accumulator only ever grows its buffers, so each call carries a superset
// of the previous text.
func (m *Message) SetContent(content string) {
	if m.IsStreaming {
		m.Content = content
	}
}

// SetReasoning replaces the accumulated reasoning of a streaming message.
func (m *Message) SetReasoning(reasoning string) {
	if m.IsStreaming {
		m.Reasoning = reasoning
	}
}

// FinalizeStream completes streaming and records timing.
func (m *Message) FinalizeStream(ttft, total time.Duration) {
	if !m.IsStreaming {
		return
	}
	m.IsStreaming = false
	m.TTFT = ttft
	m.TotalDuration = total
}

// Preview returns a truncated preview of the message content.
// Rune-based so multi-byte characters are never split.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content or reasoning.
func (m *Message) IsEmpty() bool {
	return m.Content == "" && m.Reasoning == ""
}

// FormatStats returns the timing line shown under finished assistant
// messages, or "" when no timing was recorded.
func (m *Message) FormatStats() string {
	if m.Role != RoleAssistant || m.TotalDuration == 0 {
		return ""
	}
	return fmt.Sprintf("%.1fs | first token %dms",
		m.TotalDuration.Seconds(), m.TTFT.Milliseconds())
}

// generateID creates a unique message ID.
func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
