// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned by Get when the key has never been set or was deleted.
	ErrNotFound = &KVError{Code: "not_found", Message: "key not found"}

	// ErrQuotaExceeded is returned by Set when the value exceeds the backend quota.
	ErrQuotaExceeded = &KVError{Code: "quota_exceeded", Message: "storage quota exceeded"}

	// ErrInvalidKey is returned for empty keys or keys containing path separators.
	ErrInvalidKey = &KVError{Code: "invalid_key", Message: "invalid key"}

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("storage closed")
)

// KVError represents a storage error identified by a code.
type KVError struct {
	Code    string
	Message string
}

func (e *KVError) Error() string {
	return e.Message
}

// Is matches KVErrors by code so wrapped instances compare equal.
func (e *KVError) Is(target error) bool {
	t, ok := target.(*KVError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// =============================================================================
// INTERFACE
// =============================================================================

// KV is a durable key-value slot store.
type KV interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// =============================================================================
// FACTORY
// =============================================================================

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	// Backend is one of "file", "sqlite" or "memory". Default: "file".
	Backend string

	// Path is the directory (file backend) or database file (sqlite backend).
	Path string

	// MaxValueSize limits the size of a single value in bytes (0 = unlimited).
	MaxValueSize int
}

// Open creates the backend described by opts.
func Open(opts Options) (KV, error) {
	switch opts.Backend {
	case "", BackendFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("file backend requires a path")
		}
		return NewFileKV(opts.Path, opts.MaxValueSize)
	case BackendSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		if filepath.Ext(opts.Path) == "" {
			opts.Path = filepath.Join(opts.Path, "rigchat.db")
		}
		return NewSQLiteKV(opts.Path, opts.MaxValueSize)
	case BackendMemory:
		return NewMemoryKV(opts.MaxValueSize), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// DefaultDir returns ~/.rigchat/data.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".rigchat", "data"), nil
}

func checkQuota(max int, value []byte) error {
	if max > 0 && len(value) > max {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrQuotaExceeded, len(value), max)
	}
	return nil
}
