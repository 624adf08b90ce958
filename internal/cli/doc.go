// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the command handlers for
// rigchat.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - App: Configuration, logging, provider client and transcript storage
//     shared by the handlers
//   - JSONResponse: The envelope for --json output
//
// # Usage
//
//	cmd, args, err := cli.Parse()
//	if err != nil {
//	    cli.HandleErrorAndExit(cmd.String(), err, args.JSON)
//	}
//	switch cmd {
//	case cli.CmdAsk:
//	    err = cli.HandleAskCommand(args)
//	case cli.CmdChat:
//	    err = cli.HandleChatCommand(args)
//	// ... other commands
//	}
//
// # Commands Overview
//
//   - chat: Line-mode REPL over the saved transcript (default)
//   - ask: Single question, optionally with images, web search or expert mode
//   - tui: Full-screen chat
//   - history: Show, clear or export the saved transcript
//   - models: List provider models
//   - config: Show, create or edit the config file
//   - serve: Run the relay server
//
// Handlers return errors; main displays them once and exits with the code
// from GetExitCode.
package cli
