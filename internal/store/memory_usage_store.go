package store

import (
	"context"
	"sync"
)

type MemoryUsageStore struct {
	mu      sync.RWMutex
	records map[string]UsageRecord
}

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{
		records: make(map[string]UsageRecord),
	}
}

func (s *MemoryUsageStore) CreateUsageRecord(_ context.Context, record UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

func (s *MemoryUsageStore) GetUsageRecord(_ context.Context, id string) (UsageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	return record, ok, nil
}
