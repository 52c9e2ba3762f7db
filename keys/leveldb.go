package keys

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"ledgerclient/crypto"
)

const (
	privateKeyPrefix = "priv:"
	bindingKeyPrefix = "bind:"
)

// LevelDBBackend persists key material and entity bindings in LevelDB.
type LevelDBBackend struct {
	db *leveldb.DB
}

// NewLevelDBBackend opens (or creates) a LevelDB database at the provided path.
func NewLevelDBBackend(path string) (*LevelDBBackend, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("leveldb key store path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve leveldb key store path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb key store: %w", err)
	}
	return &LevelDBBackend{db: db}, nil
}

// Close releases the underlying LevelDB resources.
func (b *LevelDBBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// PutPrivate stores the key as its type byte followed by the raw key bytes.
func (b *LevelDBBackend) PutPrivate(id PublicID, key *crypto.PrivateKey) error {
	if b == nil || b.db == nil {
		return fmt.Errorf("leveldb key store not configured")
	}
	value := append([]byte{byte(key.Type())}, key.Bytes()...)
	return b.db.Put([]byte(privateKeyPrefix+string(id)), value, nil)
}

// PutBinding stores the JSON form of the entity key.
func (b *LevelDBBackend) PutBinding(ref EntityRef, key Key) error {
	if b == nil || b.db == nil {
		return fmt.Errorf("leveldb key store not configured")
	}
	encoded, err := MarshalJSON(key)
	if err != nil {
		return err
	}
	return b.db.Put([]byte(bindingKeyPrefix+string(ref)), encoded, nil)
}

// Load replays every persisted record.
func (b *LevelDBBackend) Load(fn func(Record) error) error {
	if b == nil || b.db == nil {
		return fmt.Errorf("leveldb key store not configured")
	}
	iter := b.db.NewIterator(util.BytesPrefix([]byte(privateKeyPrefix)), nil)
	for iter.Next() {
		value := iter.Value()
		if len(value) < 2 {
			iter.Release()
			return fmt.Errorf("corrupt key record %q", iter.Key())
		}
		priv, err := crypto.PrivateKeyFromBytes(crypto.KeyType(value[0]), value[1:])
		if err != nil {
			iter.Release()
			return fmt.Errorf("decode key record %q: %w", iter.Key(), err)
		}
		if err := fn(Record{Private: priv}); err != nil {
			iter.Release()
			return err
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}

	iter = b.db.NewIterator(util.BytesPrefix([]byte(bindingKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		ref := EntityRef(strings.TrimPrefix(string(iter.Key()), bindingKeyPrefix))
		k, err := UnmarshalJSON(iter.Value())
		if err != nil {
			return fmt.Errorf("decode binding %s: %w", ref, err)
		}
		if err := fn(Record{Ref: ref, Binding: k}); err != nil {
			return err
		}
	}
	return iter.Error()
}
