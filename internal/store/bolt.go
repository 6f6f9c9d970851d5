package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var stateBucket = []byte("state")

// Bolt is a Backend over a single bbolt bucket.
type Bolt struct {
	db *bolt.DB

	mu    sync.Mutex
	usage usage
}

// OpenBolt opens (or creates) the database at path. quota <= 0 disables the quota.
func OpenBolt(path string, quota int64) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	b := &Bolt{db: db, usage: newUsage(quota)}
	err = db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(stateBucket)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, v []byte) error {
			b.usage.set(string(k), int64(len(v)))
			return nil
		})
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init store bucket: %w", err)
	}
	return b, nil
}

func (b *Bolt) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(stateBucket).Get([]byte(key))
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (b *Bolt) Put(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.usage.admit(key, int64(len(value))); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Put([]byte(key), value)
	})
	if err != nil {
		return err
	}
	b.usage.set(key, int64(len(value)))
	return nil
}

func (b *Bolt) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stateBucket).Delete([]byte(key))
	})
	if err != nil {
		return err
	}
	b.usage.remove(key)
	return nil
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
