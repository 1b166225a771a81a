// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Non-interactive command handlers: transcripts, search, export, config,
// reindex.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatline/internal/config"
	"github.com/jeranaias/chatline/internal/export"
	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/storage"
)

// =============================================================================
// TRANSCRIPTS
// =============================================================================

func runTranscripts(args *Args) int {
	cfg, err := LoadConfig(args)
	if err != nil {
		return fail(err)
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return fail(err)
	}

	sub := "list"
	if len(args.Raw) > 0 {
		sub = args.Raw[0]
	}

	switch sub {
	case "list", "ls":
		return listTranscripts(store)

	case "show":
		if len(args.Raw) < 2 {
			return fail(errors.New("usage: chatline transcripts show ID"))
		}
		return showTranscript(store, args.Raw[1])

	case "delete", "rm":
		if len(args.Raw) < 2 {
			return fail(errors.New("usage: chatline transcripts delete ID"))
		}
		if err := store.Delete(args.Raw[1]); err != nil {
			return fail(err)
		}
		fmt.Println(infoStyle.Render("deleted " + args.Raw[1]))
		return 0

	default:
		return fail(fmt.Errorf("unknown transcripts subcommand: %s", sub))
	}
}

func listTranscripts(store *storage.TranscriptStore) int {
	metas, err := store.List()
	if err != nil {
		return fail(err)
	}
	if len(metas) == 0 {
		fmt.Println(infoStyle.Render("no saved transcripts"))
		return 0
	}

	fmt.Println(headingStyle.Render(fmt.Sprintf("%d transcript(s)", len(metas))))
	for i, meta := range metas {
		marker := ""
		if meta.Encrypted {
			marker = " [encrypted]"
		}
		fmt.Printf("%2d. %s  %s  (%d messages)%s\n    %s\n",
			i+1,
			meta.ID,
			meta.UpdatedAt.Format("2006-01-02 15:04"),
			meta.MessageCount,
			marker,
			infoStyle.Render(meta.Preview))
	}
	return 0
}

// showTranscript prints one transcript. ID may also be the 1-based index
// from the list output. Assistant markdown is rendered through glamour when
// stdout is a terminal.
func showTranscript(store *storage.TranscriptStore, id string) int {
	conv, err := loadByIDOrIndex(store, id)
	if err != nil {
		return fail(err)
	}

	var render func(string) string = func(s string) string { return s }
	if IsStdoutTTY() {
		if g, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(TerminalWidth()),
		); err == nil {
			render = func(s string) string {
				out, err := g.Render(s)
				if err != nil {
					return s
				}
				return strings.TrimRight(out, "\n")
			}
		}
	}

	fmt.Println(headingStyle.Render(conv.Title))
	fmt.Println(infoStyle.Render(conv.UpdatedAt.Format("2006-01-02 15:04") + " | " + conv.ServerURL))
	for _, msg := range conv.Messages {
		fmt.Println()
		fmt.Println(promptStyle.Render(msg.Role.DisplayName()) + " " +
			infoStyle.Render(msg.Timestamp.Format("15:04")))
		switch msg.Role {
		case model.RoleAssistant:
			if msg.Reasoning != "" {
				fmt.Println(reasoningStyle.Render(msg.Reasoning))
			}
			fmt.Println(render(msg.Content))
			if stats := msg.FormatStats(); stats != "" {
				fmt.Println(infoStyle.Render(stats))
			}
		default:
			fmt.Println(msg.Content)
		}
	}
	return 0
}

func loadByIDOrIndex(store *storage.TranscriptStore, id string) (*model.Conversation, error) {
	if n, err := strconv.Atoi(id); err == nil && n > 0 {
		return store.LoadByIndex(n - 1)
	}
	return store.Load(id)
}

// =============================================================================
// SEARCH
// =============================================================================

func runSearch(args *Args) int {
	if len(args.Raw) == 0 {
		return fail(errors.New("usage: chatline search QUERY"))
	}
	query := strings.Join(args.Raw, " ")

	cfg, err := LoadConfig(args)
	if err != nil {
		return fail(err)
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return fail(err)
	}
	idx, err := OpenIndex(cfg, store)
	if err != nil {
		return fail(err)
	}
	if idx == nil {
		return fail(errors.New("search index disabled in config (index.enabled)"))
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	results, err := idx.Search(ctx, query, 20)
	if err != nil {
		return fail(err)
	}

	if len(results) == 0 {
		fmt.Println(infoStyle.Render("no matches"))
		return 0
	}

	fmt.Println(headingStyle.Render(fmt.Sprintf("%d match(es)", len(results))))
	for _, r := range results {
		fmt.Printf("%s  %s\n    %s\n",
			promptStyle.Render(r.TranscriptID),
			infoStyle.Render(r.Title+" ("+r.Role+")"),
			r.Snippet)
	}
	return 0
}

// =============================================================================
// EXPORT
// =============================================================================

func runExport(args *Args) int {
	if len(args.Raw) == 0 {
		return fail(errors.New("usage: chatline export ID [--format md|html|json]"))
	}
	id := args.Raw[0]

	format := "md"
	for i, arg := range args.Raw {
		if (arg == "--format" || arg == "-f") && i+1 < len(args.Raw) {
			format = args.Raw[i+1]
		}
		if strings.HasPrefix(arg, "--format=") {
			format = strings.TrimPrefix(arg, "--format=")
		}
	}

	cfg, err := LoadConfig(args)
	if err != nil {
		return fail(err)
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return fail(err)
	}

	conv, err := loadByIDOrIndex(store, id)
	if err != nil {
		return fail(err)
	}

	opts := export.DefaultOptions()
	opts.Theme = cfg.UI.Theme
	opts.LinkBase = cfg.ResolvedLinkBase()

	var exporter export.Exporter
	switch format {
	case "md", "markdown":
		exporter = export.NewMarkdownExporter(opts)
	case "html":
		exporter = export.NewHTMLExporter(opts)
	case "json":
		exporter = export.NewJSONExporter()
	default:
		return fail(fmt.Errorf("unknown format: %s (md, html, json)", format))
	}

	path, err := export.ExportToFile(conv, exporter, opts)
	if err != nil {
		return fail(err)
	}
	fmt.Println(infoStyle.Render("exported to " + path))
	return 0
}

// =============================================================================
// CONFIG
// =============================================================================

func runConfig(args *Args) int {
	cfg, err := LoadConfig(args)
	if err != nil {
		return fail(err)
	}

	sub := "show"
	if len(args.Raw) > 0 {
		sub = args.Raw[0]
	}

	switch sub {
	case "show":
		path, _ := config.ConfigPath()
		fmt.Println(headingStyle.Render("chatline configuration") + infoStyle.Render(" ("+path+")"))
		fmt.Printf("server.url      = %s\n", cfg.Server.URL)
		fmt.Printf("server.link_base = %s\n", cfg.ResolvedLinkBase())
		fmt.Printf("ui.theme        = %s\n", cfg.UI.Theme)
		fmt.Printf("ui.show_reasoning = %v\n", cfg.UI.ShowReasoning)
		fmt.Printf("ui.max_fps      = %d\n", cfg.UI.MaxFPS)
		fmt.Printf("storage.encrypt = %v\n", cfg.Storage.Encrypt)
		fmt.Printf("index.enabled   = %v\n", cfg.Index.Enabled)
		return 0

	case "set":
		if len(args.Raw) < 3 {
			return fail(errors.New("usage: chatline config set KEY VALUE"))
		}
		if err := setConfigValue(cfg, args.Raw[1], args.Raw[2]); err != nil {
			return fail(err)
		}
		if err := config.Save(cfg); err != nil {
			return fail(err)
		}
		fmt.Println(infoStyle.Render("saved " + args.Raw[1]))
		return 0

	default:
		return fail(fmt.Errorf("unknown config subcommand: %s", sub))
	}
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "server.url":
		cfg.Server.URL = value
	case "server.link_base":
		cfg.Server.LinkBase = value
	case "ui.theme":
		cfg.UI.Theme = value
	case "ui.show_reasoning":
		cfg.UI.ShowReasoning = value == "true"
	case "ui.max_fps":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("ui.max_fps must be a number: %q", value)
		}
		cfg.UI.MaxFPS = n
	case "storage.encrypt":
		cfg.Storage.Encrypt = value == "true"
	case "index.enabled":
		cfg.Index.Enabled = value == "true"
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return cfg.Validate()
}

// =============================================================================
// REINDEX
// =============================================================================

func runReindex(args *Args) int {
	cfg, err := LoadConfig(args)
	if err != nil {
		return fail(err)
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return fail(err)
	}
	idx, err := OpenIndex(cfg, store)
	if err != nil {
		return fail(err)
	}
	if idx == nil {
		return fail(errors.New("search index disabled in config (index.enabled)"))
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	if err := idx.Rebuild(ctx); err != nil {
		return fail(err)
	}
	stats, err := idx.Stats()
	if err != nil {
		return fail(err)
	}
	fmt.Println(infoStyle.Render(fmt.Sprintf(
		"indexed %d transcript(s), %d message(s) in %s",
		stats.Transcripts, stats.Messages, time.Since(start).Round(time.Millisecond))))
	return 0
}
