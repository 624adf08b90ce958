// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T, quota int) map[string]KV {
	t.Helper()

	file, err := NewFileKV(t.TempDir(), quota)
	require.NoError(t, err)

	sqlite, err := NewSQLiteKV(filepath.Join(t.TempDir(), "kv.db"), quota)
	require.NoError(t, err)

	kvs := map[string]KV{
		"file":   file,
		"sqlite": sqlite,
		"memory": NewMemoryKV(quota),
	}
	t.Cleanup(func() {
		for _, kv := range kvs {
			kv.Close()
		}
	})
	return kvs
}

func TestKV_SetGetDelete(t *testing.T) {
	for name, kv := range backends(t, 0) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get("chatHistory")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set("chatHistory", []byte(`[{"role":"user"}]`)))

			got, err := kv.Get("chatHistory")
			require.NoError(t, err)
			assert.Equal(t, `[{"role":"user"}]`, string(got))

			require.NoError(t, kv.Set("chatHistory", []byte(`[]`)))
			got, err = kv.Get("chatHistory")
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(got))

			require.NoError(t, kv.Delete("chatHistory"))
			_, err = kv.Get("chatHistory")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting again is a no-op.
			assert.NoError(t, kv.Delete("chatHistory"))
		})
	}
}

func TestKV_Quota(t *testing.T) {
	for name, kv := range backends(t, 8) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Set("k", []byte("12345678")))

			err := kv.Set("k", []byte("123456789"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrQuotaExceeded), "got %v", err)

			// The previous value survives a rejected write.
			got, err := kv.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "12345678", string(got))
		})
	}
}

func TestFileKV_RejectsPathKeys(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), 0)
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b", ".."} {
		err := kv.Set(key, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestFileKV_Closed(t *testing.T) {
	kv, err := NewFileKV(t.TempDir(), 0)
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	_, err = kv.Get("k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSQLiteKV_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	kv, err := NewSQLiteKV(path, 0)
	require.NoError(t, err)
	require.NoError(t, kv.Set("chatHistory", []byte("persisted")))
	require.NoError(t, kv.Close())

	kv, err = NewSQLiteKV(path, 0)
	require.NoError(t, err)
	defer kv.Close()

	got, err := kv.Get("chatHistory")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	kv, err := Open(Options{Backend: BackendFile, Path: dir})
	require.NoError(t, err)
	assert.IsType(t, &FileKV{}, kv)
	kv.Close()

	kv, err = Open(Options{Backend: BackendSQLite, Path: dir})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteKV{}, kv)
	kv.Close()

	kv, err = Open(Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, kv)

	_, err = Open(Options{Backend: "redis"})
	assert.Error(t, err)

	_, err = Open(Options{Backend: BackendFile})
	assert.Error(t, err)
}
