// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and top-level command handlers for rigchat.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdDefault Command = iota // chat, or tui when ui.tui is set
	CmdChat
	CmdAsk
	CmdTUI
	CmdHistory
	CmdModels
	CmdConfig
	CmdServe
	CmdDoctor
	CmdVersion
	CmdHelp
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdTUI:
		return "tui"
	case CmdHistory:
		return "history"
	case CmdModels:
		return "models"
	case CmdConfig:
		return "config"
	case CmdServe:
		return "serve"
	case CmdDoctor:
		return "doctor"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "default"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Model      string
	Verbose    bool
	NoColor    bool
	JSON       bool

	// Command-specific
	Subcommand string
	Query      string
	ConfigKey  string
	ConfigVal  string
	Format     string
	Path       string
	Addr       string
	Images     []string
	Limit      int
	Expert     bool
	WebSearch  bool
	Save       bool
	Yes        bool
	Force      bool

	// Raw args (remaining after the command name)
	Raw []string
}

const usageText = `rigchat - streaming chat client for OpenAI-compatible providers

Usage:
  rigchat                          Start chat (or the TUI when ui.tui = true)
  rigchat chat                     Interactive line-mode chat
  rigchat ask "question"           Ask a single question
  rigchat tui                      Full-screen chat
  rigchat history [show|clear|export <fmt> [path]]
  rigchat models                   List provider models
  rigchat config [show|init|set <key> <value>|path]
  rigchat serve [--addr host:port] Run the HTTP relay
  rigchat doctor                   Check config, provider and storage
  rigchat version                  Show version information
  rigchat help                     Show this help

Ask Options:
  --image PATH|URL                 Attach an image (repeatable)
  --expert                         Answer through expert mode
  --web                            Enable provider web search
  --save                           Record the exchange in the chat history

Chat and TUI Options:
  --expert                         Start with expert mode on
  --web                            Start with web search on

History Commands:
  rigchat history show [--limit N] Show the stored transcript
  rigchat history clear [--yes]    Delete the stored transcript
  rigchat history export md out.md Export as markdown, json or html

Chat Commands (inside chat):
  /help                            Show chat commands
  /clear                           Clear the conversation
  /history                         Show the conversation
  /export <fmt> [path]             Export the conversation
  /models                          List provider models
  /model [name]                    Show or switch model
  /expert [on|off]                 Toggle expert mode
  /web [on|off]                    Toggle web search
  /image <path|url>                Attach an image to the next message
  /status                          Show session status
  /quit                            Exit chat

Global Flags:
  --config PATH                    Use a specific config file
  --model NAME                     Override the configured model
  -v, --verbose                    Log to stderr instead of the log file
  --no-color                       Disable colored output
  --json                           JSON output (ask, history show, models, config show, doctor, version)

Examples:
  rigchat ask "What is Go?"
  rigchat ask --image diagram.png "Explain this diagram"
  echo "Summarize this" | rigchat ask
  rigchat config set chat.api_key YOUR_KEY
  rigchat config set expert.models "mistral-31-24b,llama-3.3-70b"
  rigchat history export html chat.html
  rigchat serve --addr 127.0.0.1:9090

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("rigchat version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses os.Args.
func Parse() (Command, Args, error) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses command-line arguments and returns the command and args.
func ParseArgs(argv []string) (Command, Args, error) {
	remaining, parsed := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdDefault, parsed, nil
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsed.Raw = remaining

	switch cmd {
	case "chat":
		parseChatArgs(&parsed, remaining)
		return CmdChat, parsed, nil

	case "ask", "a":
		if err := parseAskArgs(&parsed, remaining); err != nil {
			return CmdAsk, parsed, err
		}
		return CmdAsk, parsed, nil

	case "tui":
		parseChatArgs(&parsed, remaining)
		return CmdTUI, parsed, nil

	case "history", "hist":
		if err := parseHistoryArgs(&parsed, remaining); err != nil {
			return CmdHistory, parsed, err
		}
		return CmdHistory, parsed, nil

	case "models":
		return CmdModels, parsed, nil

	case "config":
		parseConfigArgs(&parsed, remaining)
		return CmdConfig, parsed, nil

	case "serve", "relay":
		p := NewArgParser(remaining)
		parsed.Addr = p.Flag("addr")
		return CmdServe, parsed, nil

	case "doctor", "diag":
		return CmdDoctor, parsed, nil

	case "version", "--version":
		return CmdVersion, parsed, nil

	case "help", "-h", "--help":
		return CmdHelp, parsed, nil

	default:
		example := "rigchat help"
		if s := SuggestCommand(cmd); s != "" {
			example = "did you mean 'rigchat " + s + "'?"
		}
		return CmdHelp, parsed, NewValidationErrorWithExample("command", cmd, "unknown command", example)
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
// Global flags may appear anywhere on the command line.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-v", "--verbose":
			parsed.Verbose = true
		case "--no-color":
			parsed.NoColor = true
		case "--json":
			parsed.JSON = true
		case "--model", "--config":
			if i+1 < len(args) {
				i++
				if arg == "--model" {
					parsed.Model = args[i]
				} else {
					parsed.ConfigPath = args[i]
				}
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--model="):
				parsed.Model = strings.TrimPrefix(arg, "--model=")
			case strings.HasPrefix(arg, "--config="):
				parsed.ConfigPath = strings.TrimPrefix(arg, "--config=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsed
}

// parseChatArgs parses the startup toggles shared by chat and tui.
func parseChatArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining, "expert", "web")
	args.Expert = p.BoolFlag("expert")
	args.WebSearch = p.BoolFlag("web")
}

// parseAskArgs parses ask command specific arguments.
func parseAskArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, "expert", "web", "save")
	args.Images = p.FlagAll("image")
	args.Expert = p.BoolFlag("expert")
	args.WebSearch = p.BoolFlag("web")
	args.Save = p.BoolFlag("save")
	args.Query = JoinPositionalArgs(p, 0)
	return nil
}

// parseHistoryArgs parses history command specific arguments.
func parseHistoryArgs(args *Args, remaining []string) error {
	p := NewArgParser(remaining, "yes", "y")
	args.Subcommand = p.Subcommand()
	args.Yes = p.BoolFlag("yes") || p.BoolFlag("y")

	if s := p.Flag("limit"); s != "" {
		n, err := ParseIntWithValidation(s, "limit")
		if err != nil {
			return NewValidationErrorWithExample("limit", s, err.Error(), "rigchat history show --limit 20")
		}
		args.Limit = n
	}

	if args.Subcommand == "export" {
		args.Format = p.Positional(1)
		args.Path = p.Positional(2)
		if args.Format == "" {
			return ErrMissingArgument("format", "rigchat history export md chat.md")
		}
	}
	return nil
}

// parseConfigArgs parses config command specific arguments.
func parseConfigArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining, "force")
	args.Subcommand = p.Subcommand()
	args.ConfigKey = p.Positional(1)
	args.ConfigVal = strings.Join(p.PositionalFrom(2), " ")
	args.Force = p.BoolFlag("force")
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// HandleVersion handles the "version" command.
func HandleVersion(args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print()
	}
	PrintVersion()
	return nil
}

// HandleDefault runs the full-screen interface when ui.tui is set and a
// terminal is attached, otherwise the line chat.
func HandleDefault(args Args) error {
	app, err := NewApp(args)
	if err != nil {
		return err
	}
	tui := app.Config.UI.TUI && IsTTY()
	app.Close()
	if tui {
		return HandleTUI(args)
	}
	return HandleChatCommand(args)
}

// HandleHelp handles the "help" command.
func HandleHelp() {
	PrintUsage()
}
