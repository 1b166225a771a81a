// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses arguments and dispatches chatline commands.
//
// With no arguments chatline starts the TUI. Subcommands cover the
// non-interactive surfaces: a line-mode chat REPL, transcript search,
// export, and config management.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command identifies the chatline command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdTranscripts
	CmdSearch
	CmdExport
	CmdConfig
	CmdReindex
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	Command Command

	// Global flags.
	Server  string
	Quiet   bool
	Verbose bool

	// Remaining arguments after the command word.
	Raw []string
}

const usageText = `chatline - terminal client for a streaming chatbot service

Chatline connects to a chatbot service over a websocket, renders the
streamed replies as they arrive, and keeps searchable local transcripts.

Usage:
  chatline                        Start the TUI (default)
  chatline chat                   Line-mode chat REPL
  chatline transcripts [list|show|delete]  Manage saved transcripts
  chatline search QUERY           Full-text search over transcripts
  chatline export ID [--format md|html|json]  Export a transcript
  chatline config [show|set KEY VALUE]  Configuration
  chatline reindex                Rebuild the transcript search index
  chatline version                Show version
  chatline help                   Show this help

Global flags:
  --server URL    Override the configured websocket endpoint
  -q, --quiet     Minimal output
  -v, --verbose   Verbose output

Config lives at ~/.chatline/config.toml; CHATLINE_* environment
variables override individual settings.`

// Parse interprets os.Args-style arguments (without the program name).
func Parse(argv []string) *Args {
	args := &Args{Command: CmdTUI}

	var rest []string
	for i := 0; i < len(argv); i++ {
		switch arg := argv[i]; arg {
		case "--server":
			if i+1 < len(argv) {
				args.Server = argv[i+1]
				i++
			}
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "-h", "--help", "help":
			args.Command = CmdHelp
		default:
			rest = append(rest, arg)
		}
	}

	if len(rest) == 0 || args.Command == CmdHelp {
		return args
	}

	switch strings.ToLower(rest[0]) {
	case "chat":
		args.Command = CmdChat
	case "transcripts", "t":
		args.Command = CmdTranscripts
	case "search":
		args.Command = CmdSearch
	case "export":
		args.Command = CmdExport
	case "config":
		args.Command = CmdConfig
	case "reindex":
		args.Command = CmdReindex
	case "version":
		args.Command = CmdVersion
	default:
		// Unknown word; show help rather than guessing.
		args.Command = CmdHelp
		args.Raw = rest
		return args
	}

	args.Raw = rest[1:]
	return args
}

// Run executes the parsed command. Returns the process exit code.
func Run(args *Args) int {
	switch args.Command {
	case CmdChat:
		return runChat(args)
	case CmdTranscripts:
		return runTranscripts(args)
	case CmdSearch:
		return runSearch(args)
	case CmdExport:
		return runExport(args)
	case CmdConfig:
		return runConfig(args)
	case CmdReindex:
		return runReindex(args)
	case CmdVersion:
		fmt.Printf("chatline %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		return 0
	case CmdHelp:
		fmt.Println(usageText)
		if len(args.Raw) > 0 {
			fmt.Fprintf(os.Stderr, "\nunknown command: %s\n", args.Raw[0])
			return 2
		}
		return 0
	default:
		fmt.Println(usageText)
		return 0
	}
}

// fail prints an error line and returns a non-zero exit code.
func fail(err error) int {
	fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
	return 1
}
