// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"

	"github.com/jeranaias/chatline/internal/config"
)

func TestParseDefaultsToTUI(t *testing.T) {
	args := Parse(nil)
	if args.Command != CmdTUI {
		t.Errorf("expected TUI default, got %v", args.Command)
	}
}

func TestParseCommands(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
	}{
		{[]string{"chat"}, CmdChat},
		{[]string{"transcripts"}, CmdTranscripts},
		{[]string{"t", "list"}, CmdTranscripts},
		{[]string{"search", "goroutines"}, CmdSearch},
		{[]string{"export", "conv_abc"}, CmdExport},
		{[]string{"config", "show"}, CmdConfig},
		{[]string{"reindex"}, CmdReindex},
		{[]string{"version"}, CmdVersion},
		{[]string{"help"}, CmdHelp},
		{[]string{"--help"}, CmdHelp},
		{[]string{"bogus"}, CmdHelp},
	}
	for _, tt := range tests {
		if got := Parse(tt.argv).Command; got != tt.want {
			t.Errorf("Parse(%v) = %v, want %v", tt.argv, got, tt.want)
		}
	}
}

func TestParseGlobalFlags(t *testing.T) {
	args := Parse([]string{"--server", "ws://example.com/chat", "-v", "chat"})
	if args.Server != "ws://example.com/chat" {
		t.Errorf("server = %q", args.Server)
	}
	if !args.Verbose {
		t.Error("expected verbose")
	}
	if args.Command != CmdChat {
		t.Errorf("command = %v", args.Command)
	}
}

func TestParsePassesRemainingArgs(t *testing.T) {
	args := Parse([]string{"search", "worker", "pools"})
	if len(args.Raw) != 2 || args.Raw[0] != "worker" || args.Raw[1] != "pools" {
		t.Errorf("raw = %v", args.Raw)
	}
}

func TestSetConfigValue(t *testing.T) {
	cfg := config.Default()

	if err := setConfigValue(cfg, "ui.max_fps", "15"); err != nil {
		t.Fatalf("set max_fps: %v", err)
	}
	if cfg.UI.MaxFPS != 15 {
		t.Errorf("max_fps = %d", cfg.UI.MaxFPS)
	}

	if err := setConfigValue(cfg, "server.url", "wss://chat.example.com/ws"); err != nil {
		t.Fatalf("set server.url: %v", err)
	}

	if err := setConfigValue(cfg, "server.url", "http://nope"); err == nil {
		t.Error("expected validation error for non-websocket URL")
	}

	if err := setConfigValue(cfg, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}

	if err := setConfigValue(cfg, "ui.max_fps", "lots"); err == nil {
		t.Error("expected error for non-numeric fps")
	}
}
