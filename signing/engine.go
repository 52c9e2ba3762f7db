// Package signing produces signature maps that satisfy authorization key
// trees using the private material held in a keys.Store.
package signing

import (
	"bytes"
	"errors"
	"fmt"

	"ledgerclient/crypto"
	"ledgerclient/keys"
	"ledgerclient/ledger"
)

// ErrMissingKeyMaterial is returned when a leaf that must sign has no private
// counterpart in the store. It indicates a caller setup error.
var ErrMissingKeyMaterial = errors.New("signing: missing key material")

// ThresholdPolicy decides how many members of a threshold key are signed.
type ThresholdPolicy int

const (
	// SignAll signs every member whose material is available.
	SignAll ThresholdPolicy = iota
	// SignMinimum stops once exactly the threshold of members is satisfied.
	SignMinimum
)

// Engine signs body bytes against key trees.
type Engine struct {
	store         *keys.Store
	policy        ThresholdPolicy
	omit          map[keys.PublicID]struct{}
	shortPrefixes bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the threshold policy.
func WithPolicy(p ThresholdPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithOmit leaves the given leaves unsigned. Omitted leaves are skipped
// silently and count as unsatisfied.
func WithOmit(leaves ...keys.Single) Option {
	return func(e *Engine) {
		if e.omit == nil {
			e.omit = make(map[keys.PublicID]struct{}, len(leaves))
		}
		for _, leaf := range leaves {
			e.omit[leaf.ID()] = struct{}{}
		}
	}
}

// WithShortPrefixes emits the shortest unique public key prefix per
// signature instead of the full key.
func WithShortPrefixes() Option {
	return func(e *Engine) { e.shortPrefixes = true }
}

// NewEngine returns an engine backed by store.
func NewEngine(store *keys.Store, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// With returns a copy of the engine with extra options applied.
func (e *Engine) With(opts ...Option) *Engine {
	clone := &Engine{store: e.store, policy: e.policy, shortPrefixes: e.shortPrefixes}
	if len(e.omit) > 0 {
		clone.omit = make(map[keys.PublicID]struct{}, len(e.omit))
		for id := range e.omit {
			clone.omit[id] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(clone)
	}
	return clone
}

type signature struct {
	leaf keys.Single
	sig  []byte
}

type collector struct {
	engine *Engine
	body   []byte
	seen   map[keys.PublicID]bool
	out    []signature
}

// Sign signs body once per distinct leaf required by the key trees. Leaves
// appear in first-seen depth-first order.
func (e *Engine) Sign(body []byte, trees ...keys.Key) (ledger.SignatureMap, error) {
	sigs, err := e.collect(body, trees)
	if err != nil {
		return ledger.SignatureMap{}, err
	}
	return e.pairs(sigs), nil
}

// SignTransaction re-encodes the body of tx and appends the signatures the
// key trees require. A leaf whose signature is already attached is not signed
// twice. With short prefixes, prefixes are recomputed over the combined map so
// the new pairs stay distinguishable from the existing ones.
func (e *Engine) SignTransaction(tx *ledger.Transaction, trees ...keys.Key) error {
	if tx == nil {
		return errors.New("signing: nil transaction")
	}
	if err := tx.Seal(); err != nil {
		return err
	}
	sigs, err := e.collect(tx.BodyBytes, trees)
	if err != nil {
		return err
	}

	existing := tx.SigMap.Pairs
	known := make([][]byte, len(existing))
	fresh := make([]signature, 0, len(sigs))
	for _, s := range sigs {
		if i := signedBy(existing, tx.BodyBytes, s.leaf); i >= 0 {
			known[i] = s.leaf.PublicKey
			continue
		}
		fresh = append(fresh, s)
	}
	if len(fresh) == 0 {
		return nil
	}

	added := e.pairs(fresh)
	if e.shortPrefixes && len(existing) > 0 {
		// Pairs whose signer is not among the trees keep their prefix.
		ids := make([][]byte, 0, len(existing)+len(fresh))
		for i, pair := range existing {
			if known[i] != nil {
				ids = append(ids, known[i])
			} else {
				ids = append(ids, pair.PubKeyPrefix)
			}
		}
		for _, s := range fresh {
			ids = append(ids, s.leaf.PublicKey)
		}
		prefixes := ShortestPrefixes(ids)
		for i := range existing {
			if known[i] != nil {
				existing[i].PubKeyPrefix = append([]byte(nil), prefixes[i]...)
			}
		}
		for j := range added.Pairs {
			added.Pairs[j].PubKeyPrefix = append([]byte(nil), prefixes[len(existing)+j]...)
		}
	}
	tx.SigMap.Pairs = append(existing, added.Pairs...)
	return nil
}

func (e *Engine) collect(body []byte, trees []keys.Key) ([]signature, error) {
	c := &collector{engine: e, body: body, seen: make(map[keys.PublicID]bool)}
	for _, tree := range trees {
		if tree == nil {
			continue
		}
		if err := tree.Validate(); err != nil {
			return nil, err
		}
		if _, err := c.sign(tree); err != nil {
			return nil, err
		}
	}
	return c.out, nil
}

// sign reports whether k is satisfied by the signatures collected so far.
func (c *collector) sign(k keys.Key) (bool, error) {
	switch v := k.(type) {
	case keys.Single:
		return c.signLeaf(v)
	case keys.KeyList:
		satisfied := true
		for _, member := range v.Keys {
			ok, err := c.sign(member)
			if err != nil {
				return false, err
			}
			satisfied = satisfied && ok
		}
		return satisfied, nil
	case keys.Threshold:
		return c.signThreshold(v)
	default:
		return false, fmt.Errorf("%w: unexpected key %T", keys.ErrInvalidKey, k)
	}
}

func (c *collector) signLeaf(leaf keys.Single) (bool, error) {
	id := leaf.ID()
	if _, omitted := c.engine.omit[id]; omitted {
		return false, nil
	}
	if c.seen[id] {
		return true, nil
	}
	priv, ok := c.engine.store.Lookup(leaf)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrMissingKeyMaterial, id)
	}
	sig, err := priv.Sign(c.body)
	if err != nil {
		return false, fmt.Errorf("signing: sign with %s: %w", id, err)
	}
	c.seen[id] = true
	c.out = append(c.out, signature{leaf: leaf, sig: sig})
	return true, nil
}

func (c *collector) signThreshold(t keys.Threshold) (bool, error) {
	need := int(t.Threshold)
	satisfied := 0
	var firstErr error
	for _, member := range t.Keys {
		if c.engine.policy == SignMinimum && satisfied >= need {
			break
		}
		ok, err := c.sign(member)
		if err != nil {
			if !errors.Is(err, ErrMissingKeyMaterial) {
				return false, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			satisfied++
		}
	}
	if satisfied < need && firstErr != nil {
		return false, fmt.Errorf("%d of %d threshold members satisfiable: %w", satisfied, need, firstErr)
	}
	return satisfied >= need, nil
}

func (e *Engine) pairs(sigs []signature) ledger.SignatureMap {
	pubs := make([][]byte, len(sigs))
	for i, s := range sigs {
		pubs[i] = s.leaf.PublicKey
	}
	prefixes := pubs
	if e.shortPrefixes {
		prefixes = ShortestPrefixes(pubs)
	}
	out := ledger.SignatureMap{Pairs: make([]ledger.SignaturePair, 0, len(sigs))}
	for i, s := range sigs {
		pair := ledger.SignaturePair{PubKeyPrefix: append([]byte(nil), prefixes[i]...)}
		switch s.leaf.Type {
		case crypto.KeyTypeEd25519:
			pair.Ed25519 = s.sig
		case crypto.KeyTypeSecp256k1:
			pair.ECDSASecp256k1 = s.sig
		}
		out.Pairs = append(out.Pairs, pair)
	}
	return out
}

// signedBy returns the index of the pair in existing that carries a valid
// signature by leaf over body, or -1.
func signedBy(existing []ledger.SignaturePair, body []byte, leaf keys.Single) int {
	for i, pair := range existing {
		if len(pair.PubKeyPrefix) == 0 || !bytes.HasPrefix(leaf.PublicKey, pair.PubKeyPrefix) {
			continue
		}
		if verifyLeaf(leaf, body, ledger.SignatureMap{Pairs: []ledger.SignaturePair{pair}}) {
			return i
		}
	}
	return -1
}
