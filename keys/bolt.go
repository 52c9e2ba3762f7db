package keys

import (
	"errors"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"ledgerclient/crypto"
)

var (
	bucketPrivate  = []byte("private_keys")
	bucketBindings = []byte("bindings")

	errBoltNotConfigured = errors.New("bolt key store not configured")
)

// BoltBackend persists key material and entity bindings in a single bbolt
// file, one bucket each.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend opens (or creates) the bbolt file at path.
func NewBoltBackend(path string) (*BoltBackend, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("bolt key store path required")
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt key store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPrivate, bucketBindings} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt key store: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

// Close releases the file lock.
func (b *BoltBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *BoltBackend) PutPrivate(id PublicID, key *crypto.PrivateKey) error {
	if b == nil || b.db == nil {
		return errBoltNotConfigured
	}
	value := append([]byte{byte(key.Type())}, key.Bytes()...)
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPrivate).Put([]byte(id), value)
	})
}

func (b *BoltBackend) PutBinding(ref EntityRef, key Key) error {
	if b == nil || b.db == nil {
		return errBoltNotConfigured
	}
	encoded, err := MarshalJSON(key)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBindings).Put([]byte(ref), encoded)
	})
}

// Load replays private keys first, then bindings.
func (b *BoltBackend) Load(fn func(Record) error) error {
	if b == nil || b.db == nil {
		return errBoltNotConfigured
	}
	return b.db.View(func(tx *bolt.Tx) error {
		err := tx.Bucket(bucketPrivate).ForEach(func(k, v []byte) error {
			if len(v) < 2 {
				return fmt.Errorf("corrupt key record %q", k)
			}
			priv, err := crypto.PrivateKeyFromBytes(crypto.KeyType(v[0]), v[1:])
			if err != nil {
				return fmt.Errorf("decode key record %q: %w", k, err)
			}
			return fn(Record{Private: priv})
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketBindings).ForEach(func(k, v []byte) error {
			ref := EntityRef(k)
			key, err := UnmarshalJSON(v)
			if err != nil {
				return fmt.Errorf("decode binding %s: %w", ref, err)
			}
			return fn(Record{Ref: ref, Binding: key})
		})
	})
}
