// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport owns the duplex connection to the chatbot service.
//
// A Session wraps one websocket connection: it sends the session-start
// envelope on open, delivers raw inbound text chunks to a callback from a
// single read loop, and serializes outbound envelopes one object per write.
// There is no reconnect or retry here; when the connection drops, the close
// callback fires once and the session is done.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by SendUserInput when submissions outpace the
// outbound limiter. The caller surfaces it as a notice and drops the send.
var ErrRateLimited = errors.New("transport: user input rate limited")

// ErrEmptyInput is returned when the trimmed user input is empty; the
// envelope is never sent in that case.
var ErrEmptyInput = errors.New("transport: empty user input")

// ErrClosed is returned for sends after the session ended.
var ErrClosed = errors.New("transport: session closed")

// Outbound user inputs per second, with a small burst for quick follow-ups.
const (
	userInputRate  = rate.Limit(2)
	userInputBurst = 5
)

// =============================================================================
// CALLBACKS
// =============================================================================

// Callbacks are the session's delivery surface. OnChunk runs on the read
// loop goroutine, one chunk at a time; OnClose runs once, after the last
// chunk, with the read error (nil on clean shutdown via Close).
type Callbacks struct {
	OnOpen  func()
	OnChunk func(text string)
	OnClose func(err error)
}

func (c *Callbacks) defaults() {
	if c.OnOpen == nil {
		c.OnOpen = func() {}
	}
	if c.OnChunk == nil {
		c.OnChunk = func(string) {}
	}
	if c.OnClose == nil {
		c.OnClose = func(error) {}
	}
}

// =============================================================================
// DIAL OPTIONS
// =============================================================================

// DialOption adjusts the websocket handshake.
type DialOption func(*dialConfig)

type dialConfig struct {
	header http.Header
}

// WithAuthToken sends token as a bearer credential during the handshake.
func WithAuthToken(token string) DialOption {
	return func(dc *dialConfig) {
		if token == "" {
			return
		}
		if dc.header == nil {
			dc.header = make(http.Header)
		}
		dc.header.Set("Authorization", "Bearer "+token)
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one live connection to the chatbot service.
type Session struct {
	ID string

	conn      *websocket.Conn
	callbacks Callbacks
	limiter   *rate.Limiter

	sendMu    sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the chatbot service, sends the session-start envelope and
// starts the read loop. The context bounds the handshake only; the session
// itself lives until Close or a read error.
func Dial(ctx context.Context, serverURL string, callbacks Callbacks, opts ...DialOption) (*Session, error) {
	callbacks.defaults()

	var dc dialConfig
	for _, opt := range opts {
		opt(&dc)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, serverURL, dc.header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}

	s := &Session{
		ID:        uuid.NewString(),
		conn:      conn,
		callbacks: callbacks,
		limiter:   rate.NewLimiter(userInputRate, userInputBurst),
		closed:    make(chan struct{}),
	}

	if err := s.send(NewStartEnvelope(time.Now())); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send session start: %w", err)
	}

	s.callbacks.OnOpen()
	go s.readLoop()
	return s, nil
}

// SendUserInput normalizes, trims and sends one user message. Empty input
// and rate-limited input are rejected without touching the wire.
func (s *Session) SendUserInput(text string) error {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return ErrEmptyInput
	}
	if !s.limiter.Allow() {
		return ErrRateLimited
	}
	return s.send(NewUserInputEnvelope(text))
}

// Close shuts the connection down. The close callback still fires from the
// read loop; any in-progress turn upstream is abandoned in place.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		deadline := time.Now().Add(time.Second)
		s.sendMu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.sendMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// send serializes one envelope as a single text message. Writes are
// serialized because gorilla/websocket allows one concurrent writer only.
func (s *Session) send(envelope any) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write envelope: %w", err)
	}
	return nil
}

// readLoop delivers inbound text chunks until the connection dies.
func (s *Session) readLoop() {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				err = nil // deliberate local close
			default:
			}
			s.callbacks.OnClose(err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.callbacks.OnChunk(string(data))
	}
}
