// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides full-text search over stored transcripts. It keeps
// a SQLite FTS database alongside the transcript files and updates it
// incrementally as transcripts are written.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrClosed     = errors.New("index is closed")
	ErrEmptyQuery = errors.New("empty search query")
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds index configuration.
type Config struct {
	// DatabasePath is where the SQLite database lives.
	DatabasePath string

	// EnableWatch keeps the index updated as transcript files change.
	EnableWatch bool

	// WatchDebounce is the settle time before a changed file is reindexed.
	WatchDebounce time.Duration
}

// DefaultConfig returns the default index configuration.
func DefaultConfig(dbPath string) *Config {
	return &Config{
		DatabasePath:  dbPath,
		EnableWatch:   true,
		WatchDebounce: 500 * time.Millisecond,
	}
}

// =============================================================================
// TRANSCRIPT INDEX
// =============================================================================

// TranscriptIndex indexes transcripts for full-text search. Transcripts are
// loaded through the store so encrypted files index their plaintext.
type TranscriptIndex struct {
	db      *sql.DB
	store   *storage.TranscriptStore
	config  *Config
	watcher watcher

	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if needed) the index database and starts the file
// watcher when enabled.
func Open(store *storage.TranscriptStore, config *Config) (*TranscriptIndex, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	if err := os.MkdirAll(filepath.Dir(config.DatabasePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	// Single writer; the watcher goroutine and callers share this handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if _, err := db.Exec(initMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init metadata: %w", err)
	}

	idx := &TranscriptIndex{
		db:     db,
		store:  store,
		config: config,
	}

	if config.EnableWatch {
		if err := idx.startWatcher(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to start watcher: %w", err)
		}
	}

	return idx, nil
}

// Close stops the watcher and closes the database.
func (idx *TranscriptIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	if idx.watcher != nil {
		idx.watcher.Close()
	}
	return idx.db.Close()
}

// =============================================================================
// INDEXING
// =============================================================================

// Rebuild drops and reindexes every stored transcript.
func (idx *TranscriptIndex) Rebuild(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}

	metas, err := idx.store.List()
	if err != nil {
		return fmt.Errorf("failed to list transcripts: %w", err)
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM messages"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM transcripts"); err != nil {
		return err
	}

	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}
		conv, err := idx.store.Load(meta.ID)
		if err != nil {
			continue
		}
		if err := insertTranscript(tx, conv); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(
		"UPDATE metadata SET value = ? WHERE key = 'last_full_index'",
		fmt.Sprintf("%d", time.Now().Unix())); err != nil {
		return err
	}

	return tx.Commit()
}

// Update reindexes a single transcript, replacing any previous entry.
func (idx *TranscriptIndex) Update(conv *model.Conversation) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteTranscript(tx, conv.ID); err != nil {
		return err
	}
	if err := insertTranscript(tx, conv); err != nil {
		return err
	}
	return tx.Commit()
}

// Remove drops a transcript from the index.
func (idx *TranscriptIndex) Remove(transcriptID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteTranscript(tx, transcriptID); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTranscript(tx *sql.Tx, conv *model.Conversation) error {
	res, err := tx.Exec(`
		INSERT INTO transcripts (transcript_id, title, server_url, created_at, updated_at, message_count, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, conv.ID, conv.Title, conv.ServerURL,
		conv.CreatedAt.Unix(), conv.UpdatedAt.Unix(), len(conv.Messages), time.Now().Unix())
	if err != nil {
		return err
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, msg := range conv.Messages {
		if _, err := tx.Exec(`
			INSERT INTO messages (transcript_rowid, message_id, role, content, reasoning, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rowid, msg.ID, msg.Role.String(), msg.Content, msg.Reasoning, msg.Timestamp.Unix()); err != nil {
			return err
		}
	}
	return nil
}

func deleteTranscript(tx *sql.Tx, transcriptID string) error {
	var rowid int64
	err := tx.QueryRow("SELECT id FROM transcripts WHERE transcript_id = ?", transcriptID).Scan(&rowid)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	// Delete messages explicitly so the FTS triggers fire.
	if _, err := tx.Exec("DELETE FROM messages WHERE transcript_rowid = ?", rowid); err != nil {
		return err
	}
	_, err = tx.Exec("DELETE FROM transcripts WHERE id = ?", rowid)
	return err
}

// =============================================================================
// SEARCH
// =============================================================================

// SearchResult is one matching message.
type SearchResult struct {
	TranscriptID string
	Title        string
	MessageID    string
	Role         string
	Snippet      string
	Timestamp    time.Time
}

// Search runs a full-text query over message content and reasoning and
// returns the best matches, most relevant first.
func (idx *TranscriptIndex) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}

	match := buildMatchExpr(query)
	if match == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT t.transcript_id, t.title, m.message_id, m.role,
		       snippet(messages_fts, 0, '[', ']', '...', 12),
		       m.timestamp
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		JOIN transcripts t ON t.id = m.transcript_rowid
		WHERE messages_fts MATCH ?
		ORDER BY bm25(messages_fts)
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var ts int64
		if err := rows.Scan(&r.TranscriptID, &r.Title, &r.MessageID, &r.Role, &r.Snippet, &ts); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(ts, 0)
		results = append(results, r)
	}
	return results, rows.Err()
}

// buildMatchExpr turns free text into an FTS5 match expression. Each term
// is quoted so user input cannot inject FTS syntax.
func buildMatchExpr(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}

// =============================================================================
// STATS
// =============================================================================

// Stats reports index size.
type Stats struct {
	Transcripts   int
	Messages      int
	LastFullIndex time.Time
}

// Stats returns current index statistics.
func (idx *TranscriptIndex) Stats() (*Stats, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, ErrClosed
	}

	var s Stats
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM transcripts").Scan(&s.Transcripts); err != nil {
		return nil, err
	}
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&s.Messages); err != nil {
		return nil, err
	}
	var last string
	if err := idx.db.QueryRow("SELECT value FROM metadata WHERE key = 'last_full_index'").Scan(&last); err == nil {
		var unix int64
		fmt.Sscanf(last, "%d", &unix)
		if unix > 0 {
			s.LastFullIndex = time.Unix(unix, 0)
		}
	}
	return &s, nil
}
