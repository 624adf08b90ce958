// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Relay server command handler for rigchat CLI.
//
// Command: serve [--addr HOST:PORT]
// Short:   Run the relay in front of the provider
// Aliases: relay
//
// Examples:
//   rigchat serve
//   rigchat serve --addr 0.0.0.0:9000
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/rigchat/internal/server"
)

// HandleServe handles the "serve" command. It returns after a graceful
// shutdown on SIGINT or SIGTERM.
func HandleServe(args Args) error {
	app, err := NewApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.RequireAPIKey(); err != nil {
		return err
	}

	srv := newRelay(app, args)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(app.errOut, "%s relay listening on http://%s\n", RenderConditional(SuccessStyle, "[OK]"), srv.Addr())
	if app.Config.Server.AuthToken == "" {
		fmt.Fprintf(app.errOut, "%s no server.auth_token set; the relay is open to anyone who can reach it\n",
			RenderConditional(WarningStyle, "[Warning]"))
	}
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("relay failed: %w", err)
	}
	fmt.Fprintln(app.errOut, RenderConditional(DimStyle, "relay stopped"))
	return nil
}

// newRelay builds the relay server from configuration. --addr overrides
// server.addr.
func newRelay(app *App, args Args) *server.Server {
	sc := app.Config.Server
	addr := sc.Addr
	if args.Addr != "" {
		addr = args.Addr
	}
	return server.New(app.Client, server.Config{
		Addr:           addr,
		MaxBodyBytes:   sc.MaxBodyBytes,
		AuthToken:      sc.AuthToken,
		RateLimit:      sc.RateLimit,
		RateBurst:      sc.RateBurst,
		AllowedOrigins: sc.AllowedOrigins,
		Expert:         ExpertConfig(app.Config),
	}).WithLogger(app.Logger)
}
