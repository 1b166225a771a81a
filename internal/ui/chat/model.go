// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatline/internal/chatbot"
	"github.com/jeranaias/chatline/internal/config"
	"github.com/jeranaias/chatline/internal/export"
	"github.com/jeranaias/chatline/internal/index"
	"github.com/jeranaias/chatline/internal/markdown"
	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/storage"
	"github.com/jeranaias/chatline/internal/transport"
	"github.com/jeranaias/chatline/internal/ui/components"
	"github.com/jeranaias/chatline/internal/ui/styles"
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view. It is also the pipeline's
// transcript sink: the transport read loop forwards each raw chunk as a
// ChunkMsg, Update feeds it to the pipeline, and the sink callbacks below run
// synchronously on the Bubble Tea goroutine. View state therefore never
// needs a lock.
type Model struct {
	cfg   *config.Config
	theme *styles.Theme

	conversation *model.Conversation
	pipeline     *chatbot.Pipeline
	session      *transport.Session

	store *storage.TranscriptStore
	idx   *index.TranscriptIndex

	// Presentation.
	viewport  viewport.Model
	input     textinput.Model
	spin      spinner.Model
	statusBar *components.StatusBar
	renderer  *components.MessageRenderer
	keys      KeyMap
	glam      *glamour.TermRenderer

	// Search overlay state.
	searching   bool
	searchInput textinput.Model

	// Streaming state.
	frames        *FrameBuffer
	streamingID   string
	tickScheduled bool
	turnStarted   time.Time
	firstToken    time.Time

	width   int
	height  int
	ready   bool
	program *tea.Program
}

// New creates the chat model. The websocket session is dialed from Init so
// the UI comes up immediately and shows connection progress.
func New(cfg *config.Config, store *storage.TranscriptStore, idx *index.TranscriptIndex) *Model {
	theme := styles.NewThemeForName(cfg.UI.Theme)

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = theme.Spinner

	m := &Model{
		cfg:          cfg,
		theme:        theme,
		conversation: model.NewConversation(),
		store:        store,
		idx:          idx,
		input:        input,
		spin:         spin,
		statusBar:    components.NewStatusBar(theme, 80),
		keys:         DefaultKeyMap(),
		frames:       NewFrameBufferWithConfig(15, cfg.UI.MaxFPS),
	}
	m.conversation.ServerURL = cfg.Server.URL
	m.statusBar.ServerURL = cfg.Server.URL

	m.renderer = components.NewMessageRenderer(theme, 80)
	m.renderer.ShowReasoning = cfg.UI.ShowReasoning
	m.renderer.RenderMarkdown = m.renderFinished

	m.pipeline = chatbot.NewPipeline(markdown.NewRenderer(cfg.ResolvedLinkBase()), m)
	return m
}

// SetProgram hands the model its running program so transport callbacks can
// post messages. Must be called before the first Update.
func (m *Model) SetProgram(p *tea.Program) {
	m.program = p
}

// renderFinished renders finished assistant markdown through glamour,
// building the renderer lazily at the current width.
func (m *Model) renderFinished(raw string) (string, error) {
	if m.glam == nil {
		wrap := m.width - 8
		if wrap < 40 {
			wrap = 80
		}
		g, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return "", err
		}
		m.glam = g
	}
	return m.glam.Render(raw)
}

// =============================================================================
// BUBBLE TEA LIFECYCLE
// =============================================================================

// Init starts the spinner and dials the session.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.connectCmd())
}

// connectCmd dials the websocket session. The command runs on its own
// goroutine, so the session travels back in the ConnOpenedMsg and Update
// stores it; chunks and closure cross over as messages the same way.
func (m *Model) connectCmd() tea.Cmd {
	program := m.program
	cfg := m.cfg
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		session, err := transport.Dial(ctx, cfg.Server.URL, transport.Callbacks{
			OnChunk: func(text string) {
				program.Send(ChunkMsg{Chunk: text})
			},
			OnClose: func(err error) {
				program.Send(ConnClosedMsg{Err: err})
			},
		}, transport.WithAuthToken(cfg.Server.AuthToken))
		if err != nil {
			return ConnClosedMsg{Err: err}
		}
		return ConnOpenedMsg{Session: session}
	}
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleKey(msg)

	case SearchResultsMsg:
		m.showSearchResults(msg)
		return m, nil

	case ConnOpenedMsg:
		m.session = msg.Session
		m.statusBar.State = components.ConnOnline
		m.refreshViewport()
		return m, nil

	case ConnClosedMsg:
		m.statusBar.State = components.ConnOffline
		reason := ""
		if msg.Err != nil {
			reason = fmt.Sprintf("connection lost: %v", msg.Err)
		}
		m.pipeline.HandleClose(reason)
		m.refreshViewport()
		return m, nil

	case ChunkMsg:
		m.pipeline.HandleChunk(msg.Chunk)
		if m.streamingID != "" {
			// At most one tick chain; StreamTickMsg re-arms it.
			if !m.tickScheduled {
				m.tickScheduled = true
				cmds = append(cmds, streamTickCmd(m.cfg.UI.MaxFPS))
			}
		} else {
			m.refreshViewport()
		}

	case StreamTickMsg:
		m.tickScheduled = false
		if snapshot, ok := m.frames.Take(); ok {
			m.applySnapshot(snapshot)
		}
		if m.streamingID != "" {
			m.tickScheduled = true
			cmds = append(cmds, streamTickCmd(m.cfg.UI.MaxFPS))
		}

	case TranscriptSavedMsg:
		if msg.Err != nil {
			m.notice(fmt.Sprintf("save failed: %v", msg.Err))
		}

	case ExportDoneMsg:
		if msg.Err != nil {
			m.notice(fmt.Sprintf("export failed: %v", msg.Err))
		} else {
			m.notice("exported to " + msg.Path)
		}
		m.refreshViewport()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.session != nil {
			m.session.Close()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		return m, m.submitInput()

	case key.Matches(msg, m.keys.Reasoning):
		m.renderer.ShowReasoning = !m.renderer.ShowReasoning
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.Save):
		return m, m.saveCmd()

	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd()

	case key.Matches(msg, m.keys.Search):
		m.openSearch()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.conversation.ClearHistory()
		m.refreshViewport()
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submitInput sends the input box content as one user message.
func (m *Model) submitInput() tea.Cmd {
	text := m.input.Value()
	if text == "" || m.session == nil {
		return nil
	}

	if err := m.session.SendUserInput(text); err != nil {
		switch err {
		case transport.ErrRateLimited:
			m.notice("sending too fast, message dropped")
		case transport.ErrEmptyInput:
			// Nothing to do.
		default:
			m.notice(fmt.Sprintf("send failed: %v", err))
		}
		m.refreshViewport()
		return nil
	}

	m.input.Reset()
	m.ShowUserMessage(text)
	return nil
}

// saveCmd persists the transcript and refreshes the index in the background.
func (m *Model) saveCmd() tea.Cmd {
	if m.conversation.IsEmpty() {
		return nil
	}
	conv := m.conversation
	store := m.store
	idx := m.idx
	return func() tea.Msg {
		if _, err := store.Save(conv); err != nil {
			return TranscriptSavedMsg{Err: err}
		}
		if idx != nil {
			if err := idx.Update(conv); err != nil {
				return TranscriptSavedMsg{Err: err}
			}
		}
		return TranscriptSavedMsg{}
	}
}

// exportCmd writes the transcript as a markdown file in the working
// directory.
func (m *Model) exportCmd() tea.Cmd {
	if m.conversation.IsEmpty() {
		return nil
	}
	conv := m.conversation
	opts := export.DefaultOptions()
	opts.LinkBase = m.cfg.ResolvedLinkBase()
	return func() tea.Msg {
		path, err := export.ExportToFile(conv, export.NewMarkdownExporter(opts), opts)
		return ExportDoneMsg{Path: path, Err: err}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)
	m.renderer.SetWidth(width)
	m.statusBar.SetWidth(width)
	m.glam = nil // rebuild at the new wrap width

	headerHeight := 2
	footerHeight := 3
	if !m.ready {
		m.viewport = viewport.New(width, height-headerHeight-footerHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = height - headerHeight - footerHeight
	}
	m.input.Width = width - 6
	m.refreshViewport()
}

// =============================================================================
// TRANSCRIPT SINK
// =============================================================================

// ShowUserMessage appends a user message to the transcript.
func (m *Model) ShowUserMessage(text string) {
	m.conversation.AddUserMessage(text)
	m.refreshViewport()
}

// BeginAssistantTurn opens a streaming assistant message. The message ID is
// the turn handle.
func (m *Model) BeginAssistantTurn() chatbot.TurnHandle {
	msg := m.conversation.AddAssistantMessage("")
	m.streamingID = msg.ID
	m.turnStarted = time.Now()
	m.firstToken = time.Time{}
	m.frames.Reset()
	m.refreshViewport()
	return chatbot.TurnHandle(msg.ID)
}

// UpdateReasoning queues the latest reasoning snapshot for the next frame,
// so a reasoning-only phase still repaints the thinking indicator.
func (m *Model) UpdateReasoning(h chatbot.TurnHandle, text string) {
	m.markFirstToken()
	if string(h) == m.streamingID {
		m.frames.SetReasoning(text)
	}
}

// UpdateContent queues the latest content snapshot for the next frame. The
// raw text is what terminal rendering works from; the HTML markup is for
// sinks with an HTML surface.
func (m *Model) UpdateContent(h chatbot.TurnHandle, markup, raw string) {
	m.markFirstToken()
	if string(h) == m.streamingID {
		m.frames.SetContent(raw)
	}
}

// EndTurn finalizes the streaming message and records timing.
func (m *Model) EndTurn(h chatbot.TurnHandle) {
	if snapshot, ok := m.frames.ForceTake(); ok {
		m.applySnapshot(snapshot)
	}
	if msg := m.conversation.GetMessageByID(string(h)); msg != nil {
		ttft := time.Duration(0)
		if !m.firstToken.IsZero() {
			ttft = m.firstToken.Sub(m.turnStarted)
		}
		msg.FinalizeStream(ttft, time.Since(m.turnStarted))
	}
	m.streamingID = ""
	m.refreshViewport()
}

// ShowSystemNotice appends an out-of-band notice to the transcript.
func (m *Model) ShowSystemNotice(text string) {
	m.notice(text)
	m.refreshViewport()
}

func (m *Model) notice(text string) {
	m.conversation.AddNoticeMessage(text)
}

func (m *Model) markFirstToken() {
	if m.firstToken.IsZero() {
		m.firstToken = time.Now()
	}
}

// applySnapshot writes a released frame into the streaming message and
// repaints.
func (m *Model) applySnapshot(snapshot frameSnapshot) {
	if msg := m.conversation.GetMessageByID(m.streamingID); msg != nil {
		if snapshot.hasReasoning {
			msg.SetReasoning(snapshot.reasoning)
		}
		if snapshot.hasContent {
			msg.SetContent(snapshot.content)
		}
	}
	m.refreshViewport()
}
