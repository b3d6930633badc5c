package storage

import (
	"context"
	"errors"
	"sync"
)

// Keys of the per-tenant slots.
const (
	KeyHistory      = "drawHistory"
	KeyTheme        = "theme"
	KeyParticipants = "participants"
)

// ErrClosed is returned by a backend after Close.
var ErrClosed = errors.New("storage: backend closed")

// Store is one tenant's key-value slot.
type Store interface {
	// Get returns the stored value; ok is false when the key was never set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Backend hands out tenant slots.
type Backend interface {
	Slot(tenantID string) Store
	// Delete drops every key of a tenant.
	Delete(ctx context.Context, tenantID string) error
	Close() error
}

// Memory keeps every slot in process memory.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]map[string]string
	closed bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]string)}
}

func (m *Memory) Slot(tenantID string) Store {
	return &memorySlot{backend: m, tenantID: tenantID}
}

func (m *Memory) Delete(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.data, tenantID)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type memorySlot struct {
	backend  *Memory
	tenantID string
}

func (s *memorySlot) Get(_ context.Context, key string) (string, bool, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	if s.backend.closed {
		return "", false, ErrClosed
	}
	v, ok := s.backend.data[s.tenantID][key]
	return v, ok, nil
}

func (s *memorySlot) Set(_ context.Context, key, value string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	if s.backend.closed {
		return ErrClosed
	}
	kv, ok := s.backend.data[s.tenantID]
	if !ok {
		kv = make(map[string]string)
		s.backend.data[s.tenantID] = kv
	}
	kv[key] = value
	return nil
}
