// mockd - mock chatbot service for chatline development.
//
// Serves the chatline websocket protocol: accepts the session-start
// envelope, and replies to each user input with a scripted stream of
// "data:" event lines ending in the done sentinel. Chunk fragmentation and
// inter-chunk delay are configurable so decoder carry handling can be
// exercised against a live connection.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var (
	addr     = flag.String("addr", "localhost:9122", "listen address")
	path     = flag.String("path", "/chat", "websocket path")
	fragment = flag.Int("fragment", 0, "split outbound text into chunks of N bytes (0 = one line per chunk)")
	delay    = flag.Duration("delay", 30*time.Millisecond, "delay between chunks")
	reason   = flag.Bool("reasoning", true, "emit reasoning deltas before content")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// reply is the canned response streamed for every user input. It exercises
// most of the markdown surface: headings, tables, fences, inline code,
// links, emphasis.
const reply = "# Mock reply\n\n" +
	"You said: %q\n\n" +
	"Here is a **bold** claim, an _aside_, and some `inline code`.\n\n" +
	"```go\nfunc main() {\n\tfmt.Println(\"hello from mockd\")\n}\n```\n\n" +
	"| Step | State |\n| --- | --- |\n| 1 | done |\n| 2 | pending |\n\n" +
	"Docs live at [the site](https://example.com/docs) and [nearby](/relative).\n"

const reasoningText = "The user sent a message. A scripted reply covering " +
	"the markdown surface is the right demonstration. "

func main() {
	flag.Parse()

	http.HandleFunc(*path, handle)
	log.Printf("mockd listening on ws://%s%s", *addr, *path)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("session from %s", conn.RemoteAddr())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("session ended: %v", err)
			return
		}

		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(data, &envelope); err != nil {
			send(conn, "[error] malformed envelope\n")
			continue
		}

		if _, ok := envelope["Chatbot"]; ok {
			log.Printf("session start received")
			continue
		}

		raw, ok := envelope["ChatbotUserInput"]
		if !ok {
			send(conn, "[error] unknown envelope\n")
			continue
		}

		var input struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &input); err != nil {
			send(conn, "[error] malformed user input\n")
			continue
		}

		log.Printf("user input: %q", input.Text)
		streamReply(conn, input.Text)
	}
}

// streamReply emits the canned response as event lines, split into words so
// the client sees realistic incremental deltas.
func streamReply(conn *websocket.Conn, userText string) {
	// Metadata lines clients must ignore.
	send(conn, ": keepalive\n")
	send(conn, "id: 1\n\n")

	if *reason {
		for _, word := range strings.SplitAfter(reasoningText, " ") {
			send(conn, eventLine(word, "", ""))
		}
	}

	full := fmt.Sprintf(reply, userText)
	words := strings.SplitAfter(full, " ")
	for i, word := range words {
		finish := ""
		if i == len(words)-1 {
			finish = "stop"
		}
		send(conn, eventLine("", word, finish))
	}
	send(conn, "data: [DONE]\n")
}

// eventLine builds one "data:" line in the upstream delta shape.
func eventLine(reasoning, content, finishReason string) string {
	type delta struct {
		Reasoning string `json:"reasoning,omitempty"`
		Content   string `json:"content,omitempty"`
	}
	type choice struct {
		Delta        delta  `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	}
	payload, _ := json.Marshal(struct {
		Choices []choice `json:"choices"`
	}{
		Choices: []choice{{
			Delta:        delta{Reasoning: reasoning, Content: content},
			FinishReason: finishReason,
		}},
	})
	return "data: " + string(payload) + "\n"
}

// send writes text to the connection, optionally refragmented into fixed
// byte windows with a delay between writes.
func send(conn *websocket.Conn, text string) {
	if *fragment <= 0 {
		write(conn, text)
		return
	}
	for len(text) > 0 {
		n := *fragment
		if n > len(text) {
			n = len(text)
		}
		write(conn, text[:n])
		text = text[n:]
	}
}

func write(conn *websocket.Conn, chunk string) {
	if err := conn.WriteMessage(websocket.TextMessage, []byte(chunk)); err != nil {
		log.Printf("write: %v", err)
		return
	}
	if *delay > 0 {
		time.Sleep(*delay)
	}
}
