package session

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, deviceID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.entries[deviceID][key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, deviceID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.entries[deviceID]
	if !ok {
		dev = make(map[string]string)
		s.entries[deviceID] = dev
	}
	dev[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, deviceID string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.entries[deviceID]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(dev, k)
	}
	if len(dev) == 0 {
		delete(s.entries, deviceID)
	}
	return nil
}

func (s *MemoryStore) Devices(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for id, dev := range s.entries {
		if _, ok := dev[key]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
