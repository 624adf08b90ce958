// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Starting rigchat..."
	}
	parts := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
	}
	if m.showHelp {
		parts = append(parts, m.help.FullHelpView(m.keyMap.FullHelp()))
	}
	parts = append(parts, m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// helpHeight is the number of rows of the full help view.
func helpHeight(k KeyMap) int {
	rows := 0
	for _, col := range k.FullHelp() {
		rows = max(rows, len(col))
	}
	return rows
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	left := m.theme.Title.Render(" rigchat ")
	if m.sess != nil {
		opts := m.sess.Options()
		left += m.theme.ModelName.Render(opts.Model)
		if opts.Expert {
			left += m.theme.Badge.Render(" [expert]")
		}
		if opts.WebSearch {
			left += m.theme.Badge.Render(" [web]")
		}
	}
	if n := len(m.images); n > 0 {
		left += m.theme.Badge.Render(fmt.Sprintf(" [%d img]", n))
	}

	right := m.renderState() + " "
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return m.theme.Bar.Width(m.width).MaxWidth(m.width).Render(left)
	}
	return left + m.theme.Bar.Render(strings.Repeat(" ", gap)) + right
}

func (m Model) renderState() string {
	switch m.state {
	case StateStreaming:
		elapsed := time.Since(m.started).Truncate(100 * time.Millisecond)
		return m.theme.Streaming.Render(m.spinner.View()+" streaming ") + m.theme.Hint.Render(elapsed.String())
	case StateError:
		return m.theme.Failed.Render(styles.StatusIndicators.Error + " error")
	default:
		return m.theme.Ready.Render(styles.StatusIndicators.Active + " ready")
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

// renderMessages renders the display log and the reply in progress.
func (m *Model) renderMessages() string {
	if len(m.entries) == 0 && m.state != StateStreaming {
		return m.renderWelcome()
	}
	blocks := make([]string, 0, len(m.entries)+1)
	for i := range m.entries {
		blocks = append(blocks, m.renderEntry(&m.entries[i]))
	}
	if m.state == StateStreaming {
		blocks = append(blocks, m.renderLive())
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderEntry(msg *model.Message) string {
	switch msg.Role {
	case model.RoleUser:
		return m.renderUser(msg)
	case model.RoleAssistant:
		return m.renderAssistant(msg)
	case model.RoleError:
		return m.theme.Error.Render(wrapText(styles.StatusIndicators.Error+" "+msg.Text(), calculateContentWidth(m.width, 4)))
	default:
		return m.theme.System.Render(wrapText(msg.Text(), calculateContentWidth(m.width, 4)))
	}
}

// renderUser draws a right-aligned bubble at most three quarters wide.
func (m *Model) renderUser(msg *model.Message) string {
	text := msg.Text()
	if n := msg.ImageCount(); n > 0 {
		if text != "" {
			text += "\n"
		}
		text += fmt.Sprintf("[%d image(s)]", n)
	}
	bubbleWidth := max(m.width*3/4, 10)
	bubble := m.theme.UserBubble.Render(wrapText(text, calculateContentWidth(bubbleWidth, 4)))
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, bubble)
}

func (m *Model) renderAssistant(msg *model.Message) string {
	label := m.theme.AssistantLabel.Render("Assistant")
	if msg.Model != "" {
		label += m.theme.Muted.Render(" (" + msg.Model + ")")
	}
	body, ok := m.cache[msg.ID]
	if !ok {
		body = strings.TrimRight(m.formatter.Format(render.ViewOf(*msg)), "\n")
		if msg.ID != "" {
			m.cache[msg.ID] = body
		}
	}
	return label + "\n" + body
}

// renderLive draws the reply being streamed.
func (m *Model) renderLive() string {
	label := m.theme.AssistantLabel.Render("Assistant") + " " + m.spinner.View()
	if m.liveOut == "" {
		return label + "\n" + m.theme.Muted.PaddingLeft(2).Render("Thinking"+styles.DotsSpinner.Frame(time.Since(m.started)))
	}
	return label + "\n" + strings.TrimRight(m.liveOut, "\n")
}

func (m *Model) renderWelcome() string {
	lines := []string{
		m.theme.AssistantLabel.Render("rigchat"),
		"",
	}
	if m.sess != nil {
		lines = append(lines, m.theme.Muted.Render("Model: "+m.sess.Options().Model))
	}
	lines = append(lines,
		m.theme.Muted.Render("Type a message and press Enter."),
		m.theme.Muted.Render("/help lists commands, F1 shows keys."),
	)
	block := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center, block)
}

// =============================================================================
// INPUT AND STATUS BAR
// =============================================================================

func (m Model) renderInput() string {
	if m.state == StateStreaming {
		return m.theme.InputBusy.Render(m.input.View())
	}
	return m.theme.Input.Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	bar := m.theme.Bar

	var left string
	switch {
	case m.notice != "" && m.noticeError:
		left = m.theme.Alert.Render(" " + m.notice)
	case m.notice != "":
		left = m.theme.Notice.Render(" " + m.notice)
	case len(m.images) > 0:
		left = m.theme.Badge.Render(fmt.Sprintf(" %d image(s) attached", len(m.images)))
	case m.state == StateStreaming:
		left = m.theme.Hint.Render(" Esc stops the reply")
	default:
		left = m.theme.Hint.Render(" " + m.turnSummary())
	}

	right := m.help.ShortHelpView(m.keyMap.ShortHelp()) + " "
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return bar.Width(m.width).MaxWidth(m.width).Render(left)
	}
	return left + bar.Render(strings.Repeat(" ", gap)) + right
}

func (m Model) turnSummary() string {
	if m.sess == nil {
		return ""
	}
	st := m.sess.GetStatus()
	return fmt.Sprintf("%d turns, %d messages", st.Turns, st.Messages)
}
