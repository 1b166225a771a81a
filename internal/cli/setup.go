// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/jeranaias/chatline/internal/config"
	"github.com/jeranaias/chatline/internal/index"
	"github.com/jeranaias/chatline/internal/secure"
	"github.com/jeranaias/chatline/internal/storage"
)

// =============================================================================
// SHARED SETUP
// =============================================================================

// LoadConfig loads configuration and applies command-line overrides. An
// encrypted auth token is decrypted in place so callers can use it directly.
func LoadConfig(args *Args) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if args.Server != "" {
		cfg.Server.URL = args.Server
	}

	if secure.IsEncrypted(cfg.Server.AuthToken) {
		token, err := decryptAuthToken(cfg.Server.AuthToken)
		if err != nil {
			return nil, fmt.Errorf("decrypt auth token: %w", err)
		}
		cfg.Server.AuthToken = token
	}
	return cfg, nil
}

func decryptAuthToken(sealed string) (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	key, err := secure.LoadOrCreateKey(filepath.Join(configDir, "transcript.key"))
	if err != nil {
		return "", err
	}
	box, err := secure.NewBox(key)
	if err != nil {
		return "", err
	}
	return box.OpenString(sealed)
}

// OpenStore opens the transcript store, encrypted when configured. The key
// lives next to the transcripts and is created on first use.
func OpenStore(cfg *config.Config) (*storage.TranscriptStore, error) {
	dir, err := cfg.TranscriptsDir()
	if err != nil {
		return nil, err
	}
	if !cfg.Storage.Encrypt {
		return storage.NewTranscriptStore(dir)
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	key, err := secure.LoadOrCreateKey(filepath.Join(configDir, "transcript.key"))
	if err != nil {
		return nil, fmt.Errorf("load transcript key: %w", err)
	}
	box, err := secure.NewBox(key)
	if err != nil {
		return nil, err
	}
	return storage.NewEncryptedTranscriptStore(dir, box)
}

// OpenIndex opens the search index, or returns nil when indexing is
// disabled. Index failures are not fatal to chat itself; callers decide.
func OpenIndex(cfg *config.Config, store *storage.TranscriptStore) (*index.TranscriptIndex, error) {
	if !cfg.Index.Enabled {
		return nil, nil
	}
	path, err := cfg.IndexPath()
	if err != nil {
		return nil, err
	}
	return index.Open(store, index.DefaultConfig(path))
}
