package store

import (
	"fmt"
	"sync"
)

// MemStore is an in-memory Store used by tests and by deployments that do
// not want state to survive restarts.
type MemStore struct {
	mu       sync.RWMutex
	channels map[[2]uint8]*ChannelState
	units    map[uint8]*UnitState
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		channels: make(map[[2]uint8]*ChannelState),
		units:    make(map[uint8]*UnitState),
	}
}

func (s *MemStore) SaveChannel(st *ChannelState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.channels[[2]uint8{st.Unit, st.Channel}] = &cp
	return nil
}

func (s *MemStore) GetChannel(unit, channel uint8) (*ChannelState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.channels[[2]uint8{unit, channel}]
	if !ok {
		return nil, fmt.Errorf("channel %d/%d: %w", unit, channel, ErrNotFound)
	}
	cp := *st
	return &cp, nil
}

func (s *MemStore) ListChannels() ([]*ChannelState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ChannelState, 0, len(s.channels))
	for _, st := range s.channels {
		cp := *st
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) SaveUnit(st *UnitState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.units[st.Unit] = &cp
	return nil
}

func (s *MemStore) GetUnit(unit uint8) (*UnitState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.units[unit]
	if !ok {
		return nil, fmt.Errorf("unit %d: %w", unit, ErrNotFound)
	}
	cp := *st
	return &cp, nil
}

func (s *MemStore) ListUnits() ([]*UnitState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*UnitState, 0, len(s.units))
	for _, st := range s.units {
		cp := *st
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) Close() error { return nil }
