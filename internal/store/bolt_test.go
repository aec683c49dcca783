package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChannelRoundTrip(t *testing.T) {
	s := openTestStore(t)

	st := &ChannelState{
		Unit:       1,
		Channel:    7,
		On:         true,
		Brightness: 0.75,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.SaveChannel(st); err != nil {
		t.Fatalf("SaveChannel: %v", err)
	}

	got, err := s.GetChannel(1, 7)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if got.Unit != 1 || got.Channel != 7 || !got.On || got.Brightness != 0.75 {
		t.Errorf("got %+v", got)
	}
}

func TestChannelNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetChannel(9, 9)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListChannels(t *testing.T) {
	s := openTestStore(t)
	for ch := uint8(0); ch < 4; ch++ {
		if err := s.SaveChannel(&ChannelState{Unit: 2, Channel: ch}); err != nil {
			t.Fatalf("SaveChannel: %v", err)
		}
	}
	states, err := s.ListChannels()
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if len(states) != 4 {
		t.Errorf("len = %d, want 4", len(states))
	}
}

func TestUnitRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveUnit(&UnitState{Unit: 3, On: true, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("SaveUnit: %v", err)
	}
	got, err := s.GetUnit(3)
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if !got.On {
		t.Error("unit state not persisted")
	}

	if _, err := s.GetUnit(4); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing unit err = %v, want ErrNotFound", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveChannel(&ChannelState{Unit: 1, Channel: 1, Brightness: 0.2}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveChannel(&ChannelState{Unit: 1, Channel: 1, Brightness: 0.9}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetChannel(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Brightness != 0.9 {
		t.Errorf("Brightness = %v, want 0.9", got.Brightness)
	}
}
