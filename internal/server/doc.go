// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is a small HTTP relay in front of the chat provider.
//
// # Endpoints
//
//   - POST /chat/stream - streaming chat, re-emitted as normalized SSE frames
//   - POST /chat/expert - multi-model answer with synthesis
//   - GET  /models      - provider model list
//   - GET  /health      - liveness and traffic counters
//
// The stream endpoint decodes upstream payloads with the stream package,
// salvage rules included, and writes a clean provider-shaped stream back,
// so its output can be consumed by stream.Assembler like the provider's.
//
// # Middleware
//
// Panic recovery, request logging, CORS, optional bearer token, per-client
// rate limiting and a request body limit, composed with Chain.
//
// # Usage
//
//	srv := server.New(cloud.NewClient(key), server.Config{Addr: ":8080"})
//	err := srv.ListenAndServe(ctx) // returns after ctx is cancelled
package server
