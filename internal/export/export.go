// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat transcripts out as Markdown, HTML, or JSON
// files. HTML bodies go through the incremental markdown renderer so the
// exported page matches what the client displayed.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/chatline/internal/model"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a transcript to one output format.
type Exporter interface {
	// Export converts a transcript to the target format.
	Export(conv *model.Conversation) ([]byte, error)

	// FileExtension returns the output file extension (e.g. ".md").
	FileExtension() string

	// MimeType returns the MIME type of the exported format.
	MimeType() string
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where exported files land. Default: current directory.
	OutputDir string

	// IncludeMetadata adds a transcript header (server, timestamps, counts).
	IncludeMetadata bool

	// IncludeTimestamps adds per-message timestamps.
	IncludeTimestamps bool

	// IncludeReasoning includes assistant reasoning sections.
	IncludeReasoning bool

	// Theme for HTML export ("dark" or "light").
	Theme string

	// LinkBase resolves relative links in HTML export. Empty means
	// relative links render with a placeholder target.
	LinkBase string
}

// DefaultOptions returns the default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		IncludeReasoning:  true,
		Theme:             "dark",
	}
}

// =============================================================================
// FILE EXPORT
// =============================================================================

// ExportToFile exports a transcript through the given exporter and writes
// the result under opts.OutputDir. Returns the output path.
func ExportToFile(conv *model.Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("transcript_%s_%s%s",
		sanitizeFilename(conv.Title), timestamp, exporter.FileExtension())

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(opts.OutputDir, filename)
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// sanitizeFilename replaces characters invalid in filenames on either
// Windows or Unix.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		s = string(runes[:50])
	}

	replacer := map[rune]rune{
		'/': '-', '\\': '-', ':': '-', '*': '-', '?': '-',
		'"': '-', '<': '-', '>': '-', '|': '-',
		' ': '_', '\t': '_', '\n': '_', '\r': '_',
	}

	var result []rune
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}
	if len(result) == 0 {
		return "transcript"
	}
	return string(result)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}

func validate(conv *model.Conversation) error {
	if conv == nil {
		return fmt.Errorf("transcript is nil")
	}
	if len(conv.Messages) == 0 {
		return fmt.Errorf("transcript has no messages")
	}
	return nil
}
