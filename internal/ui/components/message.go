// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/ui/styles"
)

// =============================================================================
// MESSAGE RENDERER
// =============================================================================

// MessageRenderer turns transcript entries into styled terminal blocks.
// Finished assistant messages are rendered through the markdown renderer
// supplied by the caller; streaming messages show their raw accumulated text
// with only code fences highlighted, so partial markdown never flickers
// between styled and unstyled states mid-stream.
type MessageRenderer struct {
	theme *styles.Theme
	width int

	// RenderMarkdown renders finished assistant markdown. When nil, the
	// raw text is shown instead.
	RenderMarkdown func(string) (string, error)

	// ShowReasoning toggles display of the reasoning channel.
	ShowReasoning bool
}

// NewMessageRenderer creates a renderer bound to a theme.
func NewMessageRenderer(theme *styles.Theme, width int) *MessageRenderer {
	return &MessageRenderer{
		theme:         theme,
		width:         width,
		ShowReasoning: true,
	}
}

// SetWidth updates the render width.
func (r *MessageRenderer) SetWidth(width int) {
	r.width = width
}

// Render returns the full styled block for a message.
func (r *MessageRenderer) Render(msg *model.Message) string {
	switch msg.Role {
	case model.RoleUser:
		return r.renderUser(msg)
	case model.RoleAssistant:
		return r.renderAssistant(msg)
	case model.RoleNotice:
		return r.renderNotice(msg)
	default:
		return msg.Content
	}
}

func (r *MessageRenderer) renderUser(msg *model.Message) string {
	header := r.theme.RoleLabel.Render(msg.Role.DisplayName()) + " " +
		r.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	body := msg.Content
	return r.theme.UserBubble.Width(r.bubbleWidth()).Render(header + "\n" + body)
}

func (r *MessageRenderer) renderAssistant(msg *model.Message) string {
	var parts []string

	header := r.theme.RoleLabel.Render(msg.Role.DisplayName()) + " " +
		r.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	parts = append(parts, header)

	if r.ShowReasoning && msg.Reasoning != "" {
		parts = append(parts, r.renderReasoning(msg))
	}

	if msg.Content != "" {
		parts = append(parts, r.renderBody(msg))
	} else if msg.IsStreaming && msg.Reasoning == "" {
		parts = append(parts, r.theme.ThinkingText.Render("thinking..."))
	}

	if stats := msg.FormatStats(); stats != "" {
		parts = append(parts, r.theme.StatsLine.Render(stats))
	}

	return r.theme.AssistantBubble.Width(r.bubbleWidth()).
		Render(strings.Join(parts, "\n"))
}

func (r *MessageRenderer) renderBody(msg *model.Message) string {
	if msg.IsStreaming || r.RenderMarkdown == nil {
		return RenderCodeBlocks(msg.Content, r.bubbleWidth())
	}
	rendered, err := r.RenderMarkdown(msg.Content)
	if err != nil {
		return RenderCodeBlocks(msg.Content, r.bubbleWidth())
	}
	return strings.TrimRight(rendered, "\n")
}

func (r *MessageRenderer) renderReasoning(msg *model.Message) string {
	header := r.theme.ReasoningHeader.Render("reasoning")
	body := r.theme.ReasoningBody.Render(msg.Reasoning)
	return header + "\n" + body
}

func (r *MessageRenderer) renderNotice(msg *model.Message) string {
	label := r.theme.RoleLabel.Render(msg.Role.DisplayName())
	return r.theme.NoticeBubble.Width(r.bubbleWidth()).
		Render(label + " " + msg.Content)
}

// bubbleWidth leaves room for the bubble border and padding.
func (r *MessageRenderer) bubbleWidth() int {
	w := r.width - 4
	if w < 20 {
		w = 20
	}
	return w
}
