// Package memory provides an in-process state store for local runs and tests.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	lists   map[string][]string
	now     func() time.Time
}

func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		lists:   make(map[string][]string),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for expiry checks.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) Get(_ context.Context, key string, dst any) (bool, error) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && !e.live(s.now()) {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.value, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = s.newEntry(data, ttl)
	return nil
}

func (s *Store) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.live(s.now()) {
		return false, nil
	}
	s.entries[key] = s.newEntry(data, ttl)
	return true, nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	delete(s.entries, key)
	return ok && e.live(s.now()), nil
}

func (s *Store) CompareAndDelete(_ context.Context, key string, value any) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !bytes.Equal(e.value, data) {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *Store) Push(_ context.Context, key string, value string, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append([]string{value}, s.lists[key]...)
	if max > 0 && len(list) > max {
		list = list[:max]
	}
	s.lists[key] = list
	return nil
}

func (s *Store) Range(_ context.Context, key string, n int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[key]
	if n >= 0 && len(list) > n {
		list = list[:n]
	}
	out := make([]string, len(list))
	copy(out, list)
	return out, nil
}

// Len reports the number of live keys, excluding lists.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for _, e := range s.entries {
		if e.live(now) {
			n++
		}
	}
	return n
}

func (s *Store) newEntry(data []byte, ttl time.Duration) entry {
	e := entry{value: data}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}
