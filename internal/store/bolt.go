package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketChannels = []byte("channels")
	bucketUnits    = []byte("units")
)

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketChannels, bucketUnits} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func channelKey(unit, channel uint8) []byte {
	return []byte{unit, channel}
}

func (s *BoltStore) SaveChannel(st *ChannelState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChannels)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketChannels)
		}
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		return b.Put(channelKey(st.Unit, st.Channel), data)
	})
}

func (s *BoltStore) GetChannel(unit, channel uint8) (*ChannelState, error) {
	var st ChannelState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChannels)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketChannels)
		}
		data := b.Get(channelKey(unit, channel))
		if data == nil {
			return fmt.Errorf("channel %d/%d: %w", unit, channel, ErrNotFound)
		}
		return json.Unmarshal(data, &st)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *BoltStore) ListChannels() ([]*ChannelState, error) {
	var states []*ChannelState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChannels)
		if b == nil {
			return nil // no bucket = no channels
		}
		states = make([]*ChannelState, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var st ChannelState
			if err := json.Unmarshal(v, &st); err != nil {
				return err
			}
			states = append(states, &st)
			return nil
		})
	})
	return states, err
}

func (s *BoltStore) SaveUnit(st *UnitState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUnits)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketUnits)
		}
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		return b.Put([]byte{st.Unit}, data)
	})
}

func (s *BoltStore) GetUnit(unit uint8) (*UnitState, error) {
	var st UnitState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUnits)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketUnits)
		}
		data := b.Get([]byte{unit})
		if data == nil {
			return fmt.Errorf("unit %d: %w", unit, ErrNotFound)
		}
		return json.Unmarshal(data, &st)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *BoltStore) ListUnits() ([]*UnitState, error) {
	var states []*UnitState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketUnits)
		if b == nil {
			return nil
		}
		states = make([]*UnitState, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var st UnitState
			if err := json.Unmarshal(v, &st); err != nil {
				return err
			}
			states = append(states, &st)
			return nil
		})
	})
	return states, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
