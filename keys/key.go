// Package keys models authorization key trees and the process-wide store of
// private key material used to satisfy them.
package keys

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"ledgerclient/crypto"
)

// ErrInvalidKey reports a structurally malformed key tree.
var ErrInvalidKey = errors.New("keys: invalid key")

// Key is an authorization key tree. Exactly three variants exist: Single,
// KeyList and Threshold. Trees are immutable once built.
type Key interface {
	isKey()
	// Validate checks the structural invariants of the tree.
	Validate() error
}

// Single is a leaf holding one public key.
type Single struct {
	Type      crypto.KeyType
	PublicKey []byte
}

// KeyList requires every member to sign.
type KeyList struct {
	Keys []Key
}

// Threshold requires at least Threshold of Keys to sign.
type Threshold struct {
	Threshold uint32
	Keys      []Key
}

func (Single) isKey()    {}
func (KeyList) isKey()   {}
func (Threshold) isKey() {}

// FromPublic builds a Single leaf from a public key.
func FromPublic(pub *crypto.PublicKey) Single {
	return Single{Type: pub.Type(), PublicKey: pub.Bytes()}
}

// List builds a KeyList.
func List(members ...Key) KeyList {
	return KeyList{Keys: members}
}

// NewThreshold builds a Threshold key requiring t of members.
func NewThreshold(t uint32, members ...Key) Threshold {
	return Threshold{Threshold: t, Keys: members}
}

// ID returns the identity under which the leaf's private key is stored.
func (s Single) ID() PublicID {
	return PublicID(s.Type.String() + ":" + hex.EncodeToString(s.PublicKey))
}

func (s Single) Validate() error {
	size := s.Type.PublicKeySize()
	if size == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidKey, crypto.ErrUnsupportedKeyType)
	}
	if len(s.PublicKey) != size {
		return fmt.Errorf("%w: %s public key has %d bytes, want %d", ErrInvalidKey, s.Type, len(s.PublicKey), size)
	}
	return nil
}

func (l KeyList) Validate() error {
	if len(l.Keys) == 0 {
		return fmt.Errorf("%w: empty key list", ErrInvalidKey)
	}
	for i, k := range l.Keys {
		if k == nil {
			return fmt.Errorf("%w: key list member %d is nil", ErrInvalidKey, i)
		}
		if err := k.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (t Threshold) Validate() error {
	if len(t.Keys) == 0 {
		return fmt.Errorf("%w: empty threshold key", ErrInvalidKey)
	}
	if t.Threshold == 0 || int(t.Threshold) > len(t.Keys) {
		return fmt.Errorf("%w: threshold %d outside 1..%d", ErrInvalidKey, t.Threshold, len(t.Keys))
	}
	for i, k := range t.Keys {
		if k == nil {
			return fmt.Errorf("%w: threshold member %d is nil", ErrInvalidKey, i)
		}
		if err := k.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Leaves returns every Single reachable from k in depth-first order.
func Leaves(k Key) []Single {
	var out []Single
	var walk func(Key)
	walk = func(node Key) {
		switch v := node.(type) {
		case Single:
			out = append(out, v)
		case KeyList:
			for _, m := range v.Keys {
				walk(m)
			}
		case Threshold:
			for _, m := range v.Keys {
				walk(m)
			}
		}
	}
	walk(k)
	return out
}

// Equal reports whether two trees are structurally identical.
func Equal(a, b Key) bool {
	switch av := a.(type) {
	case Single:
		bv, ok := b.(Single)
		return ok && av.Type == bv.Type && bytes.Equal(av.PublicKey, bv.PublicKey)
	case KeyList:
		bv, ok := b.(KeyList)
		return ok && equalMembers(av.Keys, bv.Keys)
	case Threshold:
		bv, ok := b.(Threshold)
		return ok && av.Threshold == bv.Threshold && equalMembers(av.Keys, bv.Keys)
	default:
		return a == nil && b == nil
	}
}

func equalMembers(a, b []Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
