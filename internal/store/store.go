package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// ChannelState is the last commanded state of one output channel.
type ChannelState struct {
	Unit       uint8     `json:"unit"`
	Channel    uint8     `json:"channel"`
	On         bool      `json:"on"`
	Brightness float64   `json:"brightness"` // normalized 0-1
	UpdatedAt  time.Time `json:"updated_at"`
}

// UnitState is the last commanded power state of one controller unit.
type UnitState struct {
	Unit      uint8     `json:"unit"`
	On        bool      `json:"on"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the persistence interface.
type Store interface {
	SaveChannel(st *ChannelState) error
	GetChannel(unit, channel uint8) (*ChannelState, error)
	ListChannels() ([]*ChannelState, error)

	SaveUnit(st *UnitState) error
	GetUnit(unit uint8) (*UnitState, error)
	ListUnits() ([]*UnitState, error)

	Close() error
}
