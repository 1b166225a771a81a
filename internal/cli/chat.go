// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Line-mode chat REPL. This is the non-TUI surface: one prompt per turn,
// streamed reply text printed as it arrives, liner-backed input history.
//
// Interactive commands:
//
//	/help          Show available commands
//	/save          Save the transcript
//	/history       List transcript entries so far
//	/clear         Clear the transcript
//	/quit          Exit (also Ctrl+D)
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/chatline/internal/chatbot"
	"github.com/jeranaias/chatline/internal/config"
	"github.com/jeranaias/chatline/internal/markdown"
	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/transport"
)

// turnTimeout bounds how long the REPL waits for a reply to finish.
const turnTimeout = 2 * time.Minute

// =============================================================================
// CONSOLE SINK
// =============================================================================

// consoleSink prints pipeline notifications straight to its writer. Content
// arrives as a growing snapshot; the sink prints only the unseen suffix so
// the reply streams in place.
//
// Sink callbacks run on the transport read loop while ShowUserMessage and
// the slash commands run on the REPL goroutine, so every access to the
// conversation goes through mu. The prompt can also resume on turn timeout
// with the stream still delivering; the lock covers that overlap too.
type consoleSink struct {
	mu           sync.Mutex
	conversation *model.Conversation
	out          io.Writer
	verbose      bool

	printedContent   int
	printedReasoning int
	current          *model.Message

	turnDone chan struct{}
}

func newConsoleSink(conv *model.Conversation, verbose bool) *consoleSink {
	return &consoleSink{
		conversation: conv,
		out:          os.Stdout,
		verbose:      verbose,
		turnDone:     make(chan struct{}, 1),
	}
}

func (s *consoleSink) ShowUserMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation.AddUserMessage(text)
}

func (s *consoleSink) BeginAssistantTurn() chatbot.TurnHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = s.conversation.AddAssistantMessage("")
	s.printedContent = 0
	s.printedReasoning = 0
	fmt.Fprint(s.out, promptStyle.Render("assistant")+" ")
	return chatbot.TurnHandle(s.current.ID)
}

func (s *consoleSink) UpdateReasoning(h chatbot.TurnHandle, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current.SetReasoning(text)
	if !s.verbose {
		return
	}
	if suffix := text[s.printedReasoning:]; suffix != "" {
		fmt.Fprint(s.out, reasoningStyle.Render(suffix))
		s.printedReasoning = len(text)
	}
}

func (s *consoleSink) UpdateContent(h chatbot.TurnHandle, markup, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current.SetContent(raw)
	if suffix := raw[s.printedContent:]; suffix != "" {
		fmt.Fprint(s.out, suffix)
		s.printedContent = len(raw)
	}
}

func (s *consoleSink) EndTurn(h chatbot.TurnHandle) {
	s.mu.Lock()
	if s.current != nil {
		s.current.FinalizeStream(0, 0)
		s.current = nil
	}
	fmt.Fprintln(s.out)
	s.mu.Unlock()

	select {
	case s.turnDone <- struct{}{}:
	default:
	}
}

func (s *consoleSink) ShowSystemNotice(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversation.AddNoticeMessage(text)
	fmt.Fprintln(s.out, noticeStyle.Render("! "+text))
}

// =============================================================================
// REPL
// =============================================================================

func runChat(args *Args) int {
	cfg, err := LoadConfig(args)
	if err != nil {
		return fail(err)
	}

	store, err := OpenStore(cfg)
	if err != nil {
		return fail(err)
	}

	idx, err := OpenIndex(cfg, store)
	if err != nil && !args.Quiet {
		fmt.Fprintln(os.Stderr, noticeStyle.Render("search index unavailable: "+err.Error()))
	}
	if idx != nil {
		defer idx.Close()
	}

	conv := model.NewConversation()
	conv.ServerURL = cfg.Server.URL
	sink := newConsoleSink(conv, args.Verbose)
	pipeline := chatbot.NewPipeline(markdown.NewRenderer(cfg.ResolvedLinkBase()), sink)

	closed := make(chan error, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	session, err := transport.Dial(ctx, cfg.Server.URL, transport.Callbacks{
		OnChunk: pipeline.HandleChunk,
		OnClose: func(err error) {
			closed <- err
		},
	}, transport.WithAuthToken(cfg.Server.AuthToken))
	cancel()
	if err != nil {
		return fail(err)
	}
	defer session.Close()

	if !args.Quiet {
		fmt.Println(welcomeStyle.Render("chatline") + infoStyle.Render(" | "+cfg.Server.URL))
		fmt.Println(infoStyle.Render("Type /help for commands, /quit to exit."))
	}

	line := newLiner()
	defer saveLinerHistory(line)
	defer line.Close()

	for {
		input, err := line.Prompt(promptStyle.Render("you") + " ")
		if err != nil {
			// Ctrl+D or Ctrl+C.
			fmt.Println()
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			// A nil concrete pointer must not become a non-nil interface.
			var idxOpt indexAPI
			if idx != nil {
				idxOpt = idx
			}
			// Slash commands read and mutate the conversation on this
			// goroutine; hold the sink lock against the read loop.
			sink.mu.Lock()
			quit := handleSlashCommand(input, conv, store, idxOpt)
			sink.mu.Unlock()
			if quit {
				break
			}
			continue
		}

		if err := session.SendUserInput(input); err != nil {
			switch err {
			case transport.ErrRateLimited:
				fmt.Println(noticeStyle.Render("! sending too fast, message dropped"))
			case transport.ErrClosed:
				fmt.Println(errorStyle.Render("connection closed"))
				return 1
			default:
				fmt.Println(errorStyle.Render("send failed: " + err.Error()))
			}
			continue
		}
		sink.ShowUserMessage(input)

		select {
		case <-sink.turnDone:
		case err := <-closed:
			if err != nil {
				fmt.Println(errorStyle.Render("connection lost: " + err.Error()))
			}
			return 1
		case <-time.After(turnTimeout):
			fmt.Println(noticeStyle.Render("! no reply within timeout"))
		}
	}

	return 0
}

// handleSlashCommand runs one interactive command. Returns true to exit.
func handleSlashCommand(input string, conv *model.Conversation, store storeAPI, idx indexAPI) bool {
	switch strings.Fields(input)[0] {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		fmt.Println(infoStyle.Render(`/save     save the transcript
/history  list transcript entries
/clear    clear the transcript
/quit     exit`))

	case "/save":
		if conv.IsEmpty() {
			fmt.Println(infoStyle.Render("nothing to save"))
			break
		}
		id, err := store.Save(conv)
		if err != nil {
			fmt.Println(errorStyle.Render("save failed: " + err.Error()))
			break
		}
		if idx != nil {
			if err := idx.Update(conv); err != nil {
				fmt.Println(noticeStyle.Render("! index update failed: " + err.Error()))
			}
		}
		fmt.Println(infoStyle.Render("saved " + id))

	case "/history":
		for _, msg := range conv.Messages {
			fmt.Printf("%s %s\n",
				promptStyle.Render(msg.Role.DisplayName()+":"),
				msg.Preview(100))
		}

	case "/clear", "/c":
		conv.ClearHistory()
		fmt.Println(infoStyle.Render("transcript cleared"))

	default:
		fmt.Println(noticeStyle.Render("unknown command, /help for the list"))
	}
	return false
}

// storeAPI and indexAPI narrow the persistence types for slash commands.
type storeAPI interface {
	Save(conv *model.Conversation) (string, error)
}

type indexAPI interface {
	Update(conv *model.Conversation) error
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

func newLiner() *liner.State {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	if path, err := historyPath(); err == nil {
		if f, err := os.Open(path); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	return line
}

func saveLinerHistory(line *liner.State) {
	path, err := historyPath()
	if err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}

func historyPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "chat_history"), nil
}
