// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat transcripts as JSON files, one per
// transcript, optionally encrypted at rest.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/secure"
	"github.com/jeranaias/chatline/internal/util"
)

// ErrTranscriptNotFound is returned when no transcript exists for an ID.
var ErrTranscriptNotFound = errors.New("transcript not found")

// TranscriptMeta is the listing view of a stored transcript.
type TranscriptMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ServerURL    string    `json:"server_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
	Encrypted    bool      `json:"encrypted"`
}

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// TranscriptStore handles transcript persistence under a single directory.
// When a Box is set, transcript bodies are sealed before hitting disk and
// opened transparently on load; plaintext files written before encryption
// was enabled still load.
type TranscriptStore struct {
	BaseDir string

	// MaxTranscripts caps stored transcripts (0 = unlimited). The oldest
	// by update time are removed first.
	MaxTranscripts int

	box *secure.Box
}

// NewTranscriptStore creates a store rooted at dir.
func NewTranscriptStore(dir string) (*TranscriptStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &TranscriptStore{
		BaseDir:        dir,
		MaxTranscripts: 100,
	}, nil
}

// NewEncryptedTranscriptStore creates a store that seals transcript files
// with the given box.
func NewEncryptedTranscriptStore(dir string, box *secure.Box) (*TranscriptStore, error) {
	s, err := NewTranscriptStore(dir)
	if err != nil {
		return nil, err
	}
	s.box = box
	return s, nil
}

// Encrypted reports whether the store seals transcripts at rest.
func (s *TranscriptStore) Encrypted() bool {
	return s.box != nil
}

// =============================================================================
// SAVE AND LOAD
// =============================================================================

// Save persists a transcript and returns its ID. Streaming state is
// in-memory only; callers should save after turns finish.
func (s *TranscriptStore) Save(conv *model.Conversation) (string, error) {
	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", err
	}

	if s.box != nil {
		data, err = s.box.SealFile(data)
		if err != nil {
			return "", err
		}
	}

	if err := util.AtomicWriteFile(s.filePath(conv.ID), data, 0600); err != nil {
		return "", err
	}

	if s.MaxTranscripts > 0 {
		s.enforceLimit()
	}

	return conv.ID, nil
}

// Load retrieves a transcript by ID.
func (s *TranscriptStore) Load(id string) (*model.Conversation, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTranscriptNotFound
		}
		return nil, err
	}

	if s.box != nil {
		data, err = s.box.OpenFile(data)
		if err != nil {
			return nil, err
		}
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// LoadByIndex loads a transcript by its position in the listing
// (0 = most recently updated).
func (s *TranscriptStore) LoadByIndex(index int) (*model.Conversation, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(metas) {
		return nil, ErrTranscriptNotFound
	}
	return s.Load(metas[index].ID)
}

// =============================================================================
// LISTING AND SEARCH
// =============================================================================

// List returns metadata for all stored transcripts, most recent first.
// Corrupted or undecryptable files are skipped.
func (s *TranscriptStore) List() ([]TranscriptMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TranscriptMeta{}, nil
		}
		return nil, err
	}

	var metas []TranscriptMeta
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		conv, err := s.Load(id)
		if err != nil {
			continue
		}
		metas = append(metas, s.metaFor(conv))
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Search returns transcripts whose title or any message content contains
// the query, case-insensitive. An empty query lists everything.
func (s *TranscriptStore) Search(query string) ([]TranscriptMeta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}

	query = strings.ToLower(query)
	var results []TranscriptMeta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) {
			results = append(results, meta)
			continue
		}
		conv, err := s.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results, nil
}

func (s *TranscriptStore) metaFor(conv *model.Conversation) TranscriptMeta {
	preview := ""
	for _, msg := range conv.Messages {
		if msg.Role == model.RoleUser && msg.Content != "" {
			preview = util.TruncateRunes(strings.ReplaceAll(msg.Content, "\n", " "), 80)
			break
		}
	}
	return TranscriptMeta{
		ID:           conv.ID,
		Title:        conv.Title,
		ServerURL:    conv.ServerURL,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		MessageCount: len(conv.Messages),
		Preview:      preview,
		Encrypted:    s.box != nil,
	}
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a transcript by ID.
func (s *TranscriptStore) Delete(id string) error {
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrTranscriptNotFound
		}
		return err
	}
	return nil
}

// Clear removes all stored transcripts.
func (s *TranscriptStore) Clear() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}
	return nil
}

// enforceLimit removes the oldest transcripts above the cap.
func (s *TranscriptStore) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxTranscripts {
		return
	}
	// List is newest-first; everything past the cap goes.
	for _, meta := range metas[s.MaxTranscripts:] {
		s.Delete(meta.ID)
	}
}

func (s *TranscriptStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}
