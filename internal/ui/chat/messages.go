// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the TUI.
//
// This file defines the Bubble Tea message types the chat view handles.
// Transport events cross goroutines as messages: the websocket read loop
// calls tea.Program.Send, and the pipeline then runs inside Update on the
// Bubble Tea goroutine, so no view state needs locking.
package chat

import (
	"time"

	"github.com/jeranaias/chatline/internal/transport"
)

// =============================================================================
// TRANSPORT MESSAGES
// =============================================================================

// ConnOpenedMsg signals that the websocket session is up and delivers it to
// Update, which is the only place model state is assigned.
type ConnOpenedMsg struct {
	Session *transport.Session
}

// ConnClosedMsg signals that the session ended. Err is nil on a clean local
// close.
type ConnClosedMsg struct {
	Err error
}

// ChunkMsg carries one raw inbound chunk from the read loop.
type ChunkMsg struct {
	Chunk string
}

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamTickMsg paces streaming re-renders.
type StreamTickMsg struct {
	Time time.Time
}

// =============================================================================
// PERSISTENCE MESSAGES
// =============================================================================

// TranscriptSavedMsg reports the result of a background transcript save.
type TranscriptSavedMsg struct {
	Err error
}

// ExportDoneMsg reports the result of an export command.
type ExportDoneMsg struct {
	Path string
	Err  error
}
