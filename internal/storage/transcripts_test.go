// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/secure"
)

func newTestStore(t *testing.T) *TranscriptStore {
	t.Helper()
	store, err := NewTranscriptStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewTranscriptStore: %v", err)
	}
	return store
}

func sampleConversation(userText string) *model.Conversation {
	conv := model.NewConversation()
	conv.AddUserMessage(userText)
	msg := conv.AddAssistantMessage("turn-1")
	msg.SetContent("Hello back")
	msg.FinalizeStream(50*time.Millisecond, 800*time.Millisecond)
	return conv
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation("What is Go?")

	id, err := store.Save(conv)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != conv.ID {
		t.Errorf("loaded ID = %q, want %q", loaded.ID, conv.ID)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("loaded %d messages, want 2", len(loaded.Messages))
	}
	if loaded.Messages[0].Content != "What is Go?" {
		t.Errorf("first message = %q", loaded.Messages[0].Content)
	}
	if loaded.Messages[1].TurnID != "turn-1" {
		t.Errorf("assistant turn ID = %q", loaded.Messages[1].TurnID)
	}
}

func TestLoadMissingTranscript(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Load("conv_nothere"); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrTranscriptNotFound", err)
	}
}

func TestListOrdersByUpdateTime(t *testing.T) {
	store := newTestStore(t)

	older := sampleConversation("first question")
	if _, err := store.Save(older); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Force distinct update times.
	time.Sleep(10 * time.Millisecond)
	newer := sampleConversation("second question")
	if _, err := store.Save(newer); err != nil {
		t.Fatalf("Save: %v", err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(metas))
	}
	if metas[0].ID != newer.ID {
		t.Errorf("most recent first: got %q, want %q", metas[0].ID, newer.ID)
	}
	if metas[0].Preview != "second question" {
		t.Errorf("preview = %q", metas[0].Preview)
	}
}

func TestSearchMatchesMessageContent(t *testing.T) {
	store := newTestStore(t)
	store.Save(sampleConversation("Tell me about goroutines"))
	store.Save(sampleConversation("Weather tomorrow"))

	results, err := store.Search("GOROUTINES")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search returned %d results, want 1", len(results))
	}
	if !strings.Contains(results[0].Preview, "goroutines") {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestDeleteRemovesTranscript(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation("ephemeral")
	id, _ := store.Save(conv)

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(id); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("Load after delete error = %v, want ErrTranscriptNotFound", err)
	}
	if err := store.Delete(id); !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("second Delete error = %v, want ErrTranscriptNotFound", err)
	}
}

func TestLimitEnforcement(t *testing.T) {
	store := newTestStore(t)
	store.MaxTranscripts = 2

	for i := 0; i < 4; i++ {
		conv := sampleConversation("question")
		if _, err := store.Save(conv); err != nil {
			t.Fatalf("Save: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Errorf("stored %d transcripts after cap, want 2", len(metas))
	}
}

func TestEncryptedStoreSealsOnDisk(t *testing.T) {
	key, err := secure.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	box, err := secure.NewBox(key)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	dir := t.TempDir()
	store, err := NewEncryptedTranscriptStore(dir, box)
	if err != nil {
		t.Fatalf("NewEncryptedTranscriptStore: %v", err)
	}
	if !store.Encrypted() {
		t.Fatal("Encrypted() = false")
	}

	conv := sampleConversation("a very private question")
	id, err := store.Save(conv)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(store.filePath(id))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(raw), "private question") {
		t.Error("Plaintext visible in encrypted transcript file")
	}
	if !secure.IsEncrypted(string(raw)) {
		t.Error("Transcript file lacks encryption marker")
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Messages[0].Content != "a very private question" {
		t.Errorf("decrypted content = %q", loaded.Messages[0].Content)
	}
}

func TestEncryptedStoreReadsLegacyPlaintext(t *testing.T) {
	dir := t.TempDir()

	// Written before encryption was switched on.
	plain, err := NewTranscriptStore(dir)
	if err != nil {
		t.Fatalf("NewTranscriptStore: %v", err)
	}
	conv := sampleConversation("old plaintext transcript")
	id, _ := plain.Save(conv)

	key, _ := secure.GenerateKey()
	box, _ := secure.NewBox(key)
	enc, err := NewEncryptedTranscriptStore(dir, box)
	if err != nil {
		t.Fatalf("NewEncryptedTranscriptStore: %v", err)
	}

	loaded, err := enc.Load(id)
	if err != nil {
		t.Fatalf("Load legacy plaintext: %v", err)
	}
	if loaded.Messages[0].Content != "old plaintext transcript" {
		t.Errorf("content = %q", loaded.Messages[0].Content)
	}
}
