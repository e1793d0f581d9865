package blob

import (
	"context"
	"sync"
)

// MemoryStorage keeps blobs in process memory. Used in tests and with
// STORE_DRIVER=memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	objs  map[string]Object
	bytes map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objs:  make(map[string]Object),
		bytes: make(map[string][]byte),
	}
}

func (s *MemoryStorage) Put(_ context.Context, obj Object, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs[obj.ID] = obj
	s.bytes[obj.ID] = cp
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, id string) (Object, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objs[id]
	if !ok || obj.Archived {
		return Object{}, nil, ErrNotFound
	}
	return obj, s.bytes[id], nil
}

func (s *MemoryStorage) Claim(_ context.Context, id, ownerID string) (Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objs[id]
	if !ok || obj.Archived {
		return Object{}, ErrNotFound
	}
	if obj.OwnerID != "" && obj.OwnerID != ownerID {
		return Object{}, ErrNotOwner
	}
	obj.OwnerID = ownerID
	s.objs[id] = obj
	return obj, nil
}

func (s *MemoryStorage) Archive(_ context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objs[id]
	if !ok {
		return ErrNotFound
	}
	if obj.OwnerID != ownerID {
		return ErrNotOwner
	}
	obj.Archived = true
	s.objs[id] = obj
	return nil
}
