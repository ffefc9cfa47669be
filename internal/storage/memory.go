package storage

import (
	"context"
	"sync"

	"nanoforge/internal/model"
)

type MemoryStore struct {
	mu     sync.RWMutex
	models map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.models = make(map[string][]byte)
	return nil
}

// SaveModel stores the encoded snapshot, so Get round-trips through the
// same codec path the durable backends use.
func (s *MemoryStore) SaveModel(_ context.Context, name string, m model.OptimizerModel) error {
	payload, err := EncodeModel(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[name] = payload
	return nil
}

func (s *MemoryStore) GetModel(_ context.Context, name string) (model.OptimizerModel, bool, error) {
	s.mu.RLock()
	payload, ok := s.models[name]
	s.mu.RUnlock()

	if !ok {
		return model.OptimizerModel{}, false, nil
	}
	m, err := DecodeModel(payload)
	if err != nil {
		return model.OptimizerModel{}, false, err
	}
	return m, true, nil
}
