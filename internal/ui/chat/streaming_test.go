// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"
	"time"
)

func TestFrameBufferCoalescesSnapshots(t *testing.T) {
	fb := NewFrameBufferWithConfig(3, 30)

	fb.SetContent("one")
	fb.SetContent("one two")
	fb.SetContent("one two three")

	// Third update hits the batch threshold.
	snapshot, ok := fb.Take()
	if !ok {
		t.Fatal("expected a frame after batch threshold")
	}
	if !snapshot.hasContent || snapshot.content != "one two three" {
		t.Errorf("expected latest snapshot, got %q", snapshot.content)
	}
}

func TestFrameBufferHoldsUntilIntervalElapses(t *testing.T) {
	fb := NewFrameBufferWithConfig(100, 30)

	fb.SetContent("early")
	if _, ok := fb.Take(); ok {
		t.Error("expected frame held before interval elapsed")
	}

	time.Sleep(40 * time.Millisecond)
	snapshot, ok := fb.Take()
	if !ok {
		t.Fatal("expected frame after interval")
	}
	if snapshot.content != "early" {
		t.Errorf("got %q", snapshot.content)
	}
}

func TestFrameBufferReasoningOnlyReleasesFrames(t *testing.T) {
	fb := NewFrameBufferWithConfig(2, 30)

	// A turn can spend a while thinking before any content arrives; those
	// updates must still produce frames or the view sits frozen.
	fb.SetReasoning("considering")
	fb.SetReasoning("considering the question")

	snapshot, ok := fb.Take()
	if !ok {
		t.Fatal("expected a frame from reasoning-only updates")
	}
	if !snapshot.hasReasoning || snapshot.reasoning != "considering the question" {
		t.Errorf("expected latest reasoning, got %q", snapshot.reasoning)
	}
	if snapshot.hasContent {
		t.Error("expected no content in a reasoning-only frame")
	}
}

func TestFrameBufferCarriesBothChannels(t *testing.T) {
	fb := NewFrameBufferWithConfig(2, 30)

	fb.SetReasoning("thinking")
	fb.SetContent("partial answer")

	snapshot, ok := fb.ForceTake()
	if !ok {
		t.Fatal("expected a frame")
	}
	if snapshot.reasoning != "thinking" || snapshot.content != "partial answer" {
		t.Errorf("got reasoning=%q content=%q", snapshot.reasoning, snapshot.content)
	}
}

func TestFrameBufferForceTake(t *testing.T) {
	fb := NewFrameBufferWithConfig(100, 1)

	fb.SetContent("final text")
	snapshot, ok := fb.ForceTake()
	if !ok || snapshot.content != "final text" {
		t.Fatalf("expected forced frame, got %q, %v", snapshot.content, ok)
	}

	if _, ok := fb.ForceTake(); ok {
		t.Error("expected empty buffer after take")
	}
}

func TestFrameBufferEmptyTake(t *testing.T) {
	fb := NewFrameBuffer()
	if _, ok := fb.Take(); ok {
		t.Error("expected no frame from empty buffer")
	}
	if fb.Pending() {
		t.Error("expected nothing pending")
	}
}

func TestFrameBufferReset(t *testing.T) {
	fb := NewFrameBufferWithConfig(1, 30)
	fb.SetContent("stale")
	fb.SetReasoning("stale thought")
	fb.Reset()

	if _, ok := fb.ForceTake(); ok {
		t.Error("expected reset to discard pending frame")
	}
}

func TestFrameBufferConfigBounds(t *testing.T) {
	// Out-of-range values fall back to defaults rather than erroring.
	fb := NewFrameBufferWithConfig(0, 500)
	if fb.batchSize != 15 || fb.maxFPS != 30 {
		t.Errorf("expected defaults, got batch=%d fps=%d", fb.batchSize, fb.maxFPS)
	}
}
