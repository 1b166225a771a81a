// chatline - terminal client for a streaming chatbot service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatline/internal/cli"
	"github.com/jeranaias/chatline/internal/ui/chat"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	args := cli.Parse(os.Args[1:])

	if args.Command != cli.CmdTUI {
		os.Exit(cli.Run(args))
	}

	os.Exit(runTUI(args))
}

// runTUI wires config, storage and the search index into the Bubble Tea
// program.
func runTUI(args *cli.Args) int {
	cfg, err := cli.LoadConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	store, err := cli.OpenStore(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	idx, err := cli.OpenIndex(cfg, store)
	if err != nil {
		// Search degrades, chat still works.
		fmt.Fprintln(os.Stderr, "warning: search index unavailable:", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	m := chat.New(cfg, store, idx)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	m.SetProgram(p)

	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
