// Package checkpoint stores snapshots of the latent rate model state in
// a bolt database.
package checkpoint

import (
	"encoding/json"
	"errors"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// MAIN is the bucket name for all snapshots.
var MAIN = []byte("main")

// Snapshot stores parameter values, log-likelihood and statistics.
type Snapshot struct {
	Parameters    map[string]float64
	LogLikelihood float64
	Statistics    map[string]float64
	Final         bool
}

// Store saves and loads snapshots by key.
type Store struct {
	db *bolt.DB
}

// NewStore creates a new Store. A nil database makes every operation
// a no-op.
func NewStore(db *bolt.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the database file and returns a Store.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save saves the snapshot under the key.
func (s *Store) Save(key string, data *Snapshot) error {
	if data == nil {
		return errors.New("nil snapshot")
	}
	dataB, err := json.Marshal(data)
	if err != nil {
		log.Error("Error serializing snapshot", err)
		return err
	}
	err = SaveData(s.db, []byte(key), dataB)
	if err != nil {
		log.Error("Error saving snapshot", err)
	}
	return err
}

// Load returns the snapshot saved under the key or nil if there is
// none.
func (s *Store) Load(key string) (*Snapshot, error) {
	var data *Snapshot

	b, err := LoadData(s.db, []byte(key))
	if err != nil || b == nil {
		return nil, err
	}

	err = json.Unmarshal(b, &data)
	if err != nil {
		return nil, err
	}

	if data.Final {
		log.Debugf("Found final snapshot %s (lnL=%v)", key, data.LogLikelihood)
	} else {
		log.Debugf("Found snapshot %s (lnL=%v)", key, data.LogLikelihood)
	}

	return data, nil
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(MAIN)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(MAIN)
		if b == nil {
			return nil
		}
		// value is only valid within the transaction
		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
