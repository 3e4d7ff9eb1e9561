package statestore

import (
	"context"
	"sync"
)

type MemoryStore struct {
	values map[string]map[string]string
	mu     sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]map[string]string),
	}
}

func (s *MemoryStore) Get(_ context.Context, device, key string) (string, bool, error) {
	if device == "" {
		return "", false, ErrNoDevice
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[device][key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, device, key, value string) error {
	if device == "" {
		return ErrNoDevice
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, ok := s.values[device]
	if !ok {
		kv = make(map[string]string)
		s.values[device] = kv
	}
	kv[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, device string, keys ...string) error {
	if device == "" {
		return ErrNoDevice
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	kv, ok := s.values[device]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(kv, key)
	}
	if len(kv) == 0 {
		delete(s.values, device)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
