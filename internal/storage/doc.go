// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key-value slots that back the chat
// transcript.
//
// # Backends
//
//   - FileKV: one JSON file per key under a directory, written atomically
//   - SQLiteKV: a single kv table in a SQLite database (modernc.org/sqlite)
//   - MemoryKV: in-process map, used by tests and --ephemeral sessions
//
// Every backend honours an optional per-value quota and reports
// ErrQuotaExceeded when a value is too large, the way browser storage
// rejects oversized writes.
//
// # Usage
//
//	kv, err := storage.Open(storage.Options{Backend: "file", Path: dir})
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//
//	data, err := kv.Get("chatHistory")
//	if errors.Is(err, storage.ErrNotFound) {
//	    // nothing saved yet
//	}
package storage
