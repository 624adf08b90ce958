// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
)

// commandHandler handles one slash command.
type commandHandler func(m *Model, args []string) (tea.Model, tea.Cmd)

// commandHandlers maps command names, without the slash, to handlers.
var commandHandlers map[string]commandHandler

func init() {
	commandHandlers = map[string]commandHandler{
		"help": handleHelpCommand,
		"h":    handleHelpCommand,
		"?":    handleHelpCommand,

		"clear": handleClearCommand,
		"c":     handleClearCommand,

		"model":  handleModelCommand,
		"m":      handleModelCommand,
		"models": handleModelsCommand,

		"expert": handleExpertCommand,
		"web":    handleWebCommand,
		"image":  handleImageCommand,
		"img":    handleImageCommand,
		"export": handleExportCommand,

		"status": handleStatusCommand,
		"s":      handleStatusCommand,

		"quit": handleQuitCommand,
		"q":    handleQuitCommand,
		"exit": handleQuitCommand,
	}
}

// commandHelp is the /help listing.
var commandHelp = []struct {
	cmd  string
	desc string
}{
	{"/help", "Show this help"},
	{"/clear", "Clear the conversation"},
	{"/model [name]", "Show or switch model"},
	{"/models", "List provider models"},
	{"/expert [on|off]", "Toggle expert mode"},
	{"/web [on|off]", "Toggle web search"},
	{"/image PATH|URL", "Attach an image to the next message"},
	{"/export FMT [PATH]", "Export as markdown, json or html"},
	{"/status", "Show session statistics"},
	{"/quit", "Exit"},
}

// handleCommand processes slash commands.
func (m Model) handleCommand(content string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(content)
	if len(parts) == 0 {
		return m, nil
	}
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	handler, ok := commandHandlers[name]
	if !ok {
		msg := fmt.Sprintf("Unknown command: /%s", name)
		if hint := suggestCommand(name); hint != "" {
			msg += fmt.Sprintf(" (did you mean /%s?)", hint)
		}
		return m, m.setNotice(msg, true)
	}
	m.logger.Printf("TUI_COMMAND | name=%s args=%d", name, len(args))
	return handler(&m, args)
}

// suggestCommand returns the only command starting with prefix, or the
// closest command name one edit away.
func suggestCommand(prefix string) string {
	if prefix == "" {
		return ""
	}
	var names []string
	for name := range commandHandlers {
		if len(name) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var matches []string
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 1 {
		return matches[0]
	}
	for _, name := range names {
		if oneEditApart(prefix, name) {
			return name
		}
	}
	return ""
}

// =============================================================================
// HANDLERS
// =============================================================================

func handleHelpCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, c := range commandHelp {
		fmt.Fprintf(&sb, "  %-20s %s\n", c.cmd, c.desc)
	}
	sb.WriteString("\nKeys: Enter send, Alt+Enter newline, Esc stop reply, Ctrl+R reasoning, F1 key help, Ctrl+Q quit")
	m.addNotice(model.RoleSystem, sb.String())
	m.refresh(false)
	return *m, nil
}

func handleQuitCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	return m.quit()
}

func handleClearCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	return m.clearConversation()
}

func handleModelCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return *m, m.setNotice("Current model: "+m.sess.Options().Model, false)
	}
	m.sess.Update(func(o *session.Options) { o.Model = args[0] })
	m.logger.Printf("TUI_MODEL | model=%s", args[0])
	return *m, m.setNotice("Switched to model "+args[0], false)
}

func handleModelsCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if m.listModels == nil {
		return *m, m.setNotice("Model listing is not available", true)
	}
	return *m, listModelsCmd(m.listModels)
}

func (m Model) handleModels(msg ModelsMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.addNotice(model.RoleError, fmt.Sprintf("Could not list models: %v", msg.Err))
		m.refresh(false)
		return m, nil
	}
	if len(msg.Models) == 0 {
		return m, m.setNotice("The provider listed no models", false)
	}

	current := m.sess.Options().Model
	var sb strings.Builder
	fmt.Fprintf(&sb, "Models (%d):\n", len(msg.Models))
	for _, id := range msg.Models {
		marker := "  "
		if id == current {
			marker = "* "
		}
		sb.WriteString(marker + id + "\n")
	}
	m.addNotice(model.RoleSystem, strings.TrimRight(sb.String(), "\n"))
	m.refresh(false)
	return m, nil
}

func handleExpertCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	on, err := parseToggle(args, m.sess.Options().Expert)
	if err != nil {
		return *m, m.setNotice(err.Error(), true)
	}
	if on && !m.sess.HasExpert() {
		return *m, m.setNotice("Expert mode is not configured: set expert.models in the config file", true)
	}
	m.sess.Update(func(o *session.Options) { o.Expert = on })
	return *m, m.setNotice("Expert mode "+onOff(on), false)
}

func handleWebCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	on, err := parseToggle(args, m.sess.Options().WebSearch)
	if err != nil {
		return *m, m.setNotice(err.Error(), true)
	}
	m.sess.Update(func(o *session.Options) { o.WebSearch = on })
	return *m, m.setNotice("Web search "+onOff(on), false)
}

// handleImageCommand attaches an image to the next turn. With no argument
// it drops pending attachments.
func handleImageCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		if len(m.images) == 0 {
			return *m, m.setNotice("Usage: /image ./diagram.png", true)
		}
		m.images = nil
		return *m, m.setNotice("Attachments cleared", false)
	}
	url, err := session.ImageURL(strings.Join(args, " "))
	if err != nil {
		return *m, m.setNotice(err.Error(), true)
	}
	m.images = append(m.images, url)
	return *m, m.setNotice(fmt.Sprintf("%d image(s) attached to the next message", len(m.images)), false)
}

func handleExportCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if m.export == nil {
		return *m, m.setNotice("Export is not available", true)
	}
	if len(args) == 0 {
		return *m, m.setNotice("Usage: /export markdown|json|html [path]", true)
	}
	path := ""
	if len(args) > 1 {
		path = args[1]
	}
	return *m, exportCmd(m.export, args[0], path)
}

func handleStatusCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	st := m.sess.GetStatus()
	opts := m.sess.Options()

	lines := []string{
		"Session status:",
		"  Session:     " + st.SessionID,
		"  Model:       " + st.Model,
		"  Web search:  " + onOff(opts.WebSearch),
		"  Expert:      " + onOff(st.Expert),
		fmt.Sprintf("  Turns:       %d", st.Turns),
		fmt.Sprintf("  Messages:    %d", st.Messages),
		"  Duration:    " + session.FormatDuration(st.Duration),
	}
	if len(m.images) > 0 {
		lines = append(lines, fmt.Sprintf("  Attachments: %d", len(m.images)))
	}
	updates, skips := m.guard.stats()
	lines = append(lines, fmt.Sprintf("  Redraws:     %d (%d skipped)", updates-skips, skips))
	m.addNotice(model.RoleSystem, strings.Join(lines, "\n"))
	m.refresh(false)
	return *m, nil
}
