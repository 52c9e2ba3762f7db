package keys

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"ledgerclient/crypto"
)

// PublicID is the identity of a public key inside the Store.
type PublicID string

// EntityRef names a ledger entity (account, file, contract) whose
// authorization key is tracked by the Store.
type EntityRef string

// ErrNilPrivateKey is returned when registering a nil key.
var ErrNilPrivateKey = errors.New("keys: nil private key")

// Backend persists store mutations. Implementations must be safe for
// concurrent use.
type Backend interface {
	PutPrivate(id PublicID, key *crypto.PrivateKey) error
	PutBinding(ref EntityRef, key Key) error
	Load(fn func(Record) error) error
	Close() error
}

// Record is one persisted entry yielded by Backend.Load. Exactly one of
// Private or Binding is set.
type Record struct {
	Private *crypto.PrivateKey
	Ref     EntityRef
	Binding Key
}

// Store maps public key identities to private key material and ledger
// entities to their authorization keys. It is append-only shared state;
// concurrent writers follow last-writer-wins.
type Store struct {
	mu       sync.RWMutex
	material map[PublicID]*crypto.PrivateKey
	entities map[EntityRef]Key
	backend  Backend
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		material: make(map[PublicID]*crypto.PrivateKey),
		entities: make(map[EntityRef]Key),
	}
}

// OpenStore returns a store primed from backend; later writes are persisted
// to it.
func OpenStore(backend Backend) (*Store, error) {
	s := NewStore()
	if backend == nil {
		return s, nil
	}
	err := backend.Load(func(rec Record) error {
		switch {
		case rec.Private != nil:
			s.material[FromPublic(rec.Private.PubKey()).ID()] = rec.Private
		case rec.Binding != nil:
			s.entities[rec.Ref] = rec.Binding
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("keys: load backend: %w", err)
	}
	s.backend = backend
	return s, nil
}

// Close releases the backend, if any.
func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// Add registers a private key and returns the leaf that names it.
func (s *Store) Add(priv *crypto.PrivateKey) (Single, error) {
	if priv == nil {
		return Single{}, ErrNilPrivateKey
	}
	leaf := FromPublic(priv.PubKey())
	id := leaf.ID()
	s.mu.Lock()
	s.material[id] = priv
	s.mu.Unlock()
	if s.backend != nil {
		if err := s.backend.PutPrivate(id, priv); err != nil {
			return leaf, fmt.Errorf("keys: persist %s: %w", id, err)
		}
	}
	return leaf, nil
}

// Generate creates and registers a fresh key of the given type.
func (s *Store) Generate(t crypto.KeyType) (Single, error) {
	priv, err := crypto.GeneratePrivateKey(t)
	if err != nil {
		return Single{}, err
	}
	return s.Add(priv)
}

// GenerateN creates n fresh keys of the given type.
func (s *Store) GenerateN(t crypto.KeyType, n int) ([]Key, error) {
	out := make([]Key, 0, n)
	for i := 0; i < n; i++ {
		leaf, err := s.Generate(t)
		if err != nil {
			return nil, err
		}
		out = append(out, leaf)
	}
	return out, nil
}

// Private returns the private key for the identity.
func (s *Store) Private(id PublicID) (*crypto.PrivateKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	priv, ok := s.material[id]
	return priv, ok
}

// Lookup returns the private counterpart of a leaf.
func (s *Store) Lookup(leaf Single) (*crypto.PrivateKey, bool) {
	return s.Private(leaf.ID())
}

// Bind records the authorization key of an entity.
func (s *Store) Bind(ref EntityRef, k Key) error {
	if strings.TrimSpace(string(ref)) == "" {
		return errors.New("keys: empty entity reference")
	}
	if k == nil {
		return fmt.Errorf("%w: nil key for %s", ErrInvalidKey, ref)
	}
	if err := k.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.entities[ref] = k
	s.mu.Unlock()
	if s.backend != nil {
		if err := s.backend.PutBinding(ref, k); err != nil {
			return fmt.Errorf("keys: persist binding %s: %w", ref, err)
		}
	}
	return nil
}

// KeyFor returns the authorization key bound to an entity.
func (s *Store) KeyFor(ref EntityRef) (Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.entities[ref]
	return k, ok
}

// Len returns the number of private keys held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.material)
}
