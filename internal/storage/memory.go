// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "sync"

// MemoryKV keeps values in a map. Values are copied on the way in and out.
type MemoryKV struct {
	mu           sync.RWMutex
	data         map[string][]byte
	maxValueSize int
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV(maxValueSize int) *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte), maxValueSize: maxValueSize}
}

func (m *MemoryKV) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Set(key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := checkQuota(m.maxValueSize, value); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Close() error {
	return nil
}
