package store

import (
	"context"
	"strings"
	"sync"

	"routeplan/internal/model"
)

// Memory is an in-memory pincode table used when no DATABASE_URL is set.
type Memory struct {
	mu   sync.RWMutex
	pins map[string]model.Position
}

func NewMemory() *Memory {
	return &Memory{pins: map[string]model.Position{}}
}

func (m *Memory) Pincode(_ context.Context, pincode string) (model.Position, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pins[strings.TrimSpace(pincode)]
	return p, ok, nil
}

func (m *Memory) PutPincodes(_ context.Context, entries map[string]model.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pin, p := range entries {
		m.pins[strings.TrimSpace(pin)] = p
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
