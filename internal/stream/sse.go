// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const (
	// Sentinel is the payload that ends a stream.
	Sentinel = "[DONE]"

	// MaxPayloadSize is the largest single data line accepted.
	MaxPayloadSize = 1024 * 1024

	dataPrefix = "data:"
)

// Reader splits a response body into data payloads. Lines without the
// "data:" prefix (comments, event:, id:, blank lines) are ignored. The
// result does not depend on how the body is chunked by the transport.
type Reader struct {
	r       *bufio.Reader
	maxSize int
}

// NewReader creates a payload reader with the default size limit.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024), maxSize: MaxPayloadSize}
}

// Next returns the next data payload with the prefix and surrounding
// whitespace removed. It returns io.EOF at the end of the body and
// ErrPayloadTooLarge (recoverable) for an oversized line.
func (s *Reader) Next() ([]byte, error) {
	for {
		line, err := s.readLine()
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if !bytes.HasPrefix(line, []byte(dataPrefix)) {
			if err != nil {
				return nil, err
			}
			continue
		}

		payload := bytes.TrimSpace(line[len(dataPrefix):])
		if len(payload) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}
		return payload, nil
	}
}

// readLine reads through the next newline. Oversized lines are consumed and
// reported as ErrPayloadTooLarge so the caller can move on.
func (s *Reader) readLine() ([]byte, error) {
	var buf []byte
	tooLarge := false
	for {
		frag, err := s.r.ReadSlice('\n')
		if !tooLarge {
			if len(buf)+len(frag) > s.maxSize {
				tooLarge = true
				buf = nil
			} else {
				buf = append(buf, frag...)
			}
		}

		switch {
		case err == nil:
			if tooLarge {
				return nil, ErrPayloadTooLarge
			}
			return buf, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			if tooLarge {
				return nil, ErrPayloadTooLarge
			}
			return buf, err
		}
	}
}
