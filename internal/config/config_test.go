// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config failed validation: %v", err)
	}
}

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"ws allowed", "ws://localhost:9122/chat", false},
		{"wss allowed", "wss://chat.example.com/chat", false},
		{"http rejected", "http://example.com", true},
		{"garbage rejected", "::not a url::", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.URL = tt.url
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() with url %q error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.URL = "http://wrong"
	cfg.UI.Theme = "neon"
	cfg.UI.MaxFPS = 500

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	msg := err.Error()
	for _, field := range []string{"server.url", "ui.theme", "ui.max_fps"} {
		if !strings.Contains(msg, field) {
			t.Errorf("Validation message missing %q: %s", field, msg)
		}
	}
}

func TestResolvedLinkBase(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		linkBase string
		want     string
	}{
		{"explicit base wins", "ws://h:1/chat", "https://docs.example.com", "https://docs.example.com"},
		{"derived from ws", "ws://localhost:9122/chat", "", "http://localhost:9122"},
		{"derived from wss", "wss://chat.example.com/ws?x=1", "", "https://chat.example.com"},
		{"unparseable url", "::bad::", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.URL = tt.url
			cfg.Server.LinkBase = tt.linkBase
			if got := cfg.ResolvedLinkBase(); got != tt.want {
				t.Errorf("ResolvedLinkBase() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHATLINE_SERVER_URL", "wss://override.example.com/chat")
	t.Setenv("CHATLINE_THEME", "light")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Server.URL != "wss://override.example.com/chat" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.UI.Theme != "light" {
		t.Errorf("UI.Theme = %q", cfg.UI.Theme)
	}
}
