// rigchat - A terminal client for OpenAI-compatible chat providers.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	"github.com/jeranaias/rigchat/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args, err := cli.Parse()
	if err != nil {
		cli.HandleErrorAndExit("rigchat", err, args.JSON)
	}

	switch cmd {
	case cli.CmdDefault:
		err = cli.HandleDefault(args)
	case cli.CmdChat:
		err = cli.HandleChatCommand(args)
	case cli.CmdAsk:
		err = cli.HandleAskCommand(args)
	case cli.CmdTUI:
		err = cli.HandleTUI(args)
	case cli.CmdHistory:
		err = cli.HandleHistory(args)
	case cli.CmdModels:
		err = cli.HandleModels(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdServe:
		err = cli.HandleServe(args)
	case cli.CmdDoctor:
		err = cli.HandleDoctor(args)
	case cli.CmdVersion:
		err = cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %v\n", cmd)
		os.Exit(2)
	}

	cli.HandleErrorAndExit(cmd.String(), err, args.JSON)
}
