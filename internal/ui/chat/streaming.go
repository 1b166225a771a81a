// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the TUI.
//
// This file implements streaming render pacing. The accumulator delivers a
// full content snapshot on every inbound fragment, which can arrive far
// faster than a terminal can usefully repaint. FrameBuffer coalesces those
// snapshots and releases the latest one at a capped frame rate, so the
// viewport re-renders at most maxFPS times per second no matter how fast
// the stream runs.
package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// FRAME BUFFER
// =============================================================================

// frameSnapshot is one released frame. A turn can be in a reasoning-only
// phase, so content and reasoning carry their own presence flags.
type frameSnapshot struct {
	content      string
	hasContent   bool
	reasoning    string
	hasReasoning bool
}

func (s frameSnapshot) empty() bool {
	return !s.hasContent && !s.hasReasoning
}

// FrameBuffer coalesces streaming snapshots for paced rendering. Each
// SetContent or SetReasoning replaces the matching pending snapshot; Take
// releases the frame once the frame interval has elapsed or enough updates
// have piled up.
//
// Thread-safety: snapshots arrive from the transport read loop while Take
// runs on the Bubble Tea loop, so all operations lock.
type FrameBuffer struct {
	mu          sync.Mutex
	pending     frameSnapshot
	updateCount int
	lastFlush   time.Time

	batchSize    int
	maxFPS       int
	minFlushWait time.Duration
}

// NewFrameBuffer creates a frame buffer with default pacing: release after
// 15 coalesced updates or one frame interval at 30fps, whichever first.
func NewFrameBuffer() *FrameBuffer {
	return NewFrameBufferWithConfig(15, 30)
}

// NewFrameBufferWithConfig creates a frame buffer with custom pacing.
// Out-of-range values fall back to the defaults.
func NewFrameBufferWithConfig(batchSize, maxFPS int) *FrameBuffer {
	if batchSize <= 0 {
		batchSize = 15
	}
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &FrameBuffer{
		batchSize:    batchSize,
		maxFPS:       maxFPS,
		minFlushWait: time.Duration(1000/maxFPS) * time.Millisecond,
		lastFlush:    time.Now(),
	}
}

// SetContent replaces the pending content snapshot. Later snapshots
// supersede earlier ones; the accumulator only ever grows its buffers, so
// dropping intermediate snapshots loses nothing.
func (fb *FrameBuffer) SetContent(snapshot string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.pending.content = snapshot
	fb.pending.hasContent = true
	fb.updateCount++
}

// SetReasoning replaces the pending reasoning snapshot. Reasoning-only
// phases release frames too, so the thinking indicator stays live before
// the first content delta lands.
func (fb *FrameBuffer) SetReasoning(snapshot string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.pending.reasoning = snapshot
	fb.pending.hasReasoning = true
	fb.updateCount++
}

// Take returns the pending frame if one is due. The second return is false
// when nothing is pending or the frame interval has not elapsed yet.
func (fb *FrameBuffer) Take() (frameSnapshot, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.pending.empty() || !fb.dueLocked() {
		return frameSnapshot{}, false
	}
	return fb.takeLocked()
}

// ForceTake returns the pending frame regardless of pacing. Used when a
// turn ends so the last fragment is never held back a frame.
func (fb *FrameBuffer) ForceTake() (frameSnapshot, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.pending.empty() {
		return frameSnapshot{}, false
	}
	return fb.takeLocked()
}

// Reset discards any pending frame.
func (fb *FrameBuffer) Reset() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.pending = frameSnapshot{}
	fb.updateCount = 0
	fb.lastFlush = time.Now()
}

// Pending reports whether a frame is waiting.
func (fb *FrameBuffer) Pending() bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return !fb.pending.empty()
}

func (fb *FrameBuffer) dueLocked() bool {
	if fb.updateCount >= fb.batchSize {
		return true
	}
	return time.Since(fb.lastFlush) >= fb.minFlushWait
}

func (fb *FrameBuffer) takeLocked() (frameSnapshot, bool) {
	snapshot := fb.pending
	fb.pending = frameSnapshot{}
	fb.updateCount = 0
	fb.lastFlush = time.Now()
	return snapshot, true
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// streamTickCmd drives paced re-renders while a turn is streaming.
func streamTickCmd(maxFPS int) tea.Cmd {
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	interval := time.Duration(1000/maxFPS) * time.Millisecond
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
