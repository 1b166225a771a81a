// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package secure provides authenticated encryption for data at rest:
// transcript files and the server auth token. It uses AES-256-GCM with
// PBKDF2-SHA-256 key derivation for passphrase-based keys.
package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/chatline/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// EncryptedPrefix marks a value as encrypted (format: ENC:base64(nonce|ciphertext|tag)).
const EncryptedPrefix = "ENC:"

// NonceSize is the AES-GCM nonce size (96 bits).
const NonceSize = 12

// KeySize is the AES-256 key size.
const KeySize = 32

// SaltSize is the PBKDF2 salt size.
const SaltSize = 32

// PBKDF2Iterations follows the OWASP 2023 recommendation for PBKDF2-SHA-256.
const PBKDF2Iterations = 600000

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCiphertext indicates the ciphertext is too short or malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	// ErrDecryptionFailed indicates a wrong key or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
	// ErrInvalidKeySize indicates the key is not 32 bytes.
	ErrInvalidKeySize = errors.New("key must be 32 bytes")
)

// ZeroBytes zeros sensitive byte slices after use.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// =============================================================================
// KEY MATERIAL
// =============================================================================

// GenerateSalt returns a cryptographically random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateKey returns a cryptographically random AES-256 key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// DeriveKey derives an AES-256 key from a passphrase and salt using
// PBKDF2-SHA-256.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// LoadOrCreateKey reads a raw key file, generating and persisting a fresh
// key on first use. The key file is written 0600 under a 0700 directory.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != KeySize {
			return nil, fmt.Errorf("key file %s: %w", path, ErrInvalidKeySize)
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := util.AtomicWriteFileWithDir(path, key, 0600, 0700); err != nil {
		ZeroBytes(key)
		return nil, fmt.Errorf("failed to store key: %w", err)
	}
	return key, nil
}

// =============================================================================
// BOX
// =============================================================================

// Box performs AES-256-GCM authenticated encryption with a fixed key.
type Box struct {
	aead cipher.AEAD
}

// NewBox creates a Box from a raw 32-byte key. The caller may zero the key
// after the call returns.
func NewBox(key []byte) (*Box, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return &Box{aead: aead}, nil
}

// NewBoxFromPassphrase derives the key from a passphrase and salt.
func NewBoxFromPassphrase(passphrase string, salt []byte) (*Box, error) {
	key := DeriveKey(passphrase, salt)
	defer ZeroBytes(key)
	return NewBox(key)
}

// Seal encrypts plaintext. Output layout: nonce || ciphertext || tag.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal.
func (b *Box) Open(data []byte) ([]byte, error) {
	if len(data) < NonceSize {
		return nil, ErrInvalidCiphertext
	}
	nonce, ciphertext := data[:NonceSize], data[NonceSize:]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// SealString encrypts a string into the ENC:base64 wire form.
func (b *Box) SealString(plaintext string) (string, error) {
	data, err := b.Seal([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// OpenString decrypts an ENC:base64 value. Values without the prefix are
// returned unchanged, so callers can treat stored fields uniformly.
func (b *Box) OpenString(value string) (string, error) {
	if !strings.HasPrefix(value, EncryptedPrefix) {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid base64 encoding: %w", err)
	}
	plaintext, err := b.Open(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether value carries the encrypted marker.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// SealFile encrypts a whole file body into the ENC:base64 form.
func (b *Box) SealFile(plaintext []byte) ([]byte, error) {
	s, err := b.SealString(string(plaintext))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// OpenFile decrypts a file body written by SealFile. Bodies without the
// marker are returned unchanged to keep plaintext transcripts readable.
func (b *Box) OpenFile(data []byte) ([]byte, error) {
	s, err := b.OpenString(string(data))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
