// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream assembles a streamed chat-completion response into a single
// assistant message.
//
// An Assembler drives one request at a time through
//
//	Idle -> Sending -> Streaming -> Completed | Failed
//
// with Abandoned reachable from any non-terminal state. Each "data:" line of
// the response body is decoded into an Event (content delta, reasoning delta,
// citation batch, error, or the [DONE] sentinel) and applied to an
// Accumulator. After every change the render callback receives a freshly
// formatted Frame.
//
// Commit rules:
//
//   - Completed: the accumulated content is appended to the transcript once,
//     unless it is blank.
//   - Failed by transport (network error, timeout, cancellation, EOF without
//     [DONE]): non-blank partial content is still committed.
//   - Failed by HTTP status or an upstream error payload: nothing is committed.
//   - Abandoned: nothing is committed and no further frames are rendered.
//
// Malformed payloads are skipped. A bounded regex salvage recovers content or
// citations from them where it safely can.
package stream
