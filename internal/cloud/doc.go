// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud talks to an OpenAI-compatible chat-completion endpoint
// (Venice by default).
//
// The client does not interpret streaming bodies: Open returns the raw
// response for any status and leaves framing and error classification to
// the stream package. Complete and ListModels are ordinary request/response
// calls with bounded body reads and typed errors.
//
// # Key Types
//
//   - Client: HTTP client with shared connection pool and TLS 1.2+
//   - ChatRequest / ChatMessage: request body for /chat/completions
//   - APIError: non-2xx response from the API
//
// # Usage
//
//	client := cloud.NewClient(apiKey).WithBaseURL(cfg.Chat.Endpoint)
//	resp, err := client.Open(ctx, cloud.ChatRequest{
//	    Model:    "mistral-31-24b",
//	    Messages: []cloud.ChatMessage{cloud.TextMessage("user", "Hello")},
//	    Stream:   true,
//	})
//
// API keys are never logged; use APIKeyMasked for display.
package cloud
