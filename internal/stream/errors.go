// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedChunk marks a payload that could not be decoded. It is
	// recovered locally and never ends a stream.
	ErrMalformedChunk = errors.New("malformed chunk")

	// ErrTransportFailure is matched by every TransportError.
	ErrTransportFailure = errors.New("transport failure")

	// ErrIncompleteStream means the body ended without the [DONE] sentinel.
	ErrIncompleteStream = errors.New("stream ended without completion signal")

	// ErrAbandoned is returned for streams cancelled through Abandon or
	// superseded by a newer stream.
	ErrAbandoned = errors.New("stream abandoned")

	// ErrPayloadTooLarge is returned by Reader for oversized lines.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
)

// HTTPError is a non-success response status.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP error %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("HTTP error %d", e.Status)
}

// UpstreamError is an explicit error payload sent inside the stream.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return "upstream error: " + e.Message
}

// TransportError wraps network errors, timeouts and cancellations.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTransportFailure) true for any TransportError.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransportFailure
}

// StreamError is returned for failed streams and preserves whatever content
// had been rendered before the failure.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
