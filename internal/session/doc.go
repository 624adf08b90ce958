// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session ties the chat pieces together for one user.
//
// A Session owns the transcript, the stream assembler and the optional
// retrieval and expert collaborators. Send runs one turn:
//
//  1. abandon any stream still in flight
//  2. snapshot the committed history
//  3. append the user turn
//  4. augment the system prompt with retrieved context (if enabled)
//  5. build the request and stream it, or run expert mode
//
// The assembler commits the assistant message, so Send never writes the
// reply itself.
//
// # Usage
//
//	sess, err := session.New(session.Config{
//	    Store:     transcript.New(kv),
//	    Transport: cloud.NewClient(apiKey),
//	    Options:   session.DefaultOptions(),
//	})
//	res, err := sess.Send(ctx, session.Turn{Text: "Hello"}, func(f stream.Frame) {
//	    fmt.Print(f.Rendered)
//	})
package session
