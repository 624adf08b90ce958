// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/storage"
)

// DefaultKey is the durable slot the transcript is stored under.
const DefaultKey = "chatHistory"

var (
	// ErrPersistenceCorrupt indicates the durable slot could not be decoded.
	ErrPersistenceCorrupt = errors.New("persisted transcript is corrupt")

	// ErrRoleMismatch is returned by ReplaceLast when the roles differ.
	ErrRoleMismatch = errors.New("replacement must keep the message role")

	// ErrEmpty is returned by ReplaceLast on an empty transcript.
	ErrEmpty = errors.New("transcript is empty")
)

// =============================================================================
// STORE
// =============================================================================

// Store is an ordered, persisted message sequence. It is safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	kv       storage.KV
	key      string
	messages []model.Message
	logger   *log.Logger

	onPersistError func(error)
	lastPersistErr error
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the durable slot name.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// OnPersistError registers a callback invoked (outside the lock) whenever a
// persist triggered by Append or Clear fails.
func OnPersistError(fn func(error)) Option {
	return func(s *Store) {
		s.onPersistError = fn
	}
}

// New creates an empty store backed by kv. A nil kv keeps the transcript in
// memory only.
func New(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    DefaultKey,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the durable slot name.
func (s *Store) Key() string {
	return s.key
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Append validates msg and adds a copy to the end of the transcript, then
// persists. An invalid message is rejected with model.ErrInvalidMessage and
// leaves the transcript unchanged. Persist failures are not returned.
func (s *Store) Append(msg *model.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg.Clone())
	perr := s.persistLocked()
	s.mu.Unlock()

	s.reportPersist("append", perr)
	return nil
}

// ReplaceLast swaps the final message for msg. The role must match.
func (s *Store) ReplaceLast(msg *model.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if len(s.messages) == 0 {
		s.mu.Unlock()
		return ErrEmpty
	}
	last := &s.messages[len(s.messages)-1]
	if last.Role != msg.Role {
		s.mu.Unlock()
		return fmt.Errorf("%w: have %s, got %s", ErrRoleMismatch, last.Role, msg.Role)
	}
	*last = msg.Clone()
	perr := s.persistLocked()
	s.mu.Unlock()

	s.reportPersist("replace", perr)
	return nil
}

// Clear empties the transcript and removes the durable slot. Calling it on
// an empty transcript is a no-op apart from the slot delete.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.messages = nil
	var perr error
	if s.kv != nil {
		if err := s.kv.Delete(s.key); err != nil {
			perr = fmt.Errorf("failed to delete %q: %w", s.key, err)
		}
	}
	s.lastPersistErr = perr
	s.mu.Unlock()

	s.reportPersist("clear", perr)
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Snapshot returns a deep copy of the committed messages.
func (s *Store) Snapshot() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneMessages(s.messages)
}

// Len returns the number of committed messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Last returns a copy of the final message.
func (s *Store) Last() (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return model.Message{}, false
	}
	return s.messages[len(s.messages)-1].Clone(), true
}

// LastPersistError returns the error from the most recent persist attempt,
// or nil if it succeeded.
func (s *Store) LastPersistError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPersistErr
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Persist writes the full transcript to the durable slot.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if s.kv == nil {
		return nil
	}

	msgs := s.messages
	if msgs == nil {
		msgs = []model.Message{}
	}
	data, err := json.Marshal(msgs)
	if err == nil {
		err = s.kv.Set(s.key, data)
	}
	if err != nil {
		err = fmt.Errorf("failed to persist transcript: %w", err)
	}
	s.lastPersistErr = err
	return err
}

// Restore replaces the in-memory transcript with the durable copy.
//
// A missing slot yields an empty transcript and nil. A slot that cannot be
// read or decoded also yields an empty transcript; the returned error wraps
// ErrPersistenceCorrupt and is informational only. Entries that fail
// validation are dropped.
func (s *Store) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	if s.kv == nil {
		return nil
	}

	data, err := s.kv.Get(s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Printf("TRANSCRIPT_RESTORE_CORRUPT | key=%s error=%q", s.key, err)
		return fmt.Errorf("%w: %v", ErrPersistenceCorrupt, err)
	}

	var msgs []model.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		s.logger.Printf("TRANSCRIPT_RESTORE_CORRUPT | key=%s bytes=%d error=%q", s.key, len(data), err)
		return fmt.Errorf("%w: %v", ErrPersistenceCorrupt, err)
	}

	dropped := 0
	for i := range msgs {
		if err := msgs[i].Validate(); err != nil {
			dropped++
			continue
		}
		s.messages = append(s.messages, msgs[i])
	}
	if dropped > 0 {
		s.logger.Printf("TRANSCRIPT_RESTORE_DROPPED | key=%s dropped=%d kept=%d", s.key, dropped, len(s.messages))
	}
	return nil
}

func (s *Store) reportPersist(op string, err error) {
	if err == nil {
		return
	}
	s.logger.Printf("TRANSCRIPT_PERSIST_FAILED | op=%s key=%s error=%q", op, s.key, err)
	if s.onPersistError != nil {
		s.onPersistError(err)
	}
}
