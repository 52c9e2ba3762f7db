package ledger

import (
	"bytes"
	"errors"
)

// ErrBodyMismatch is returned when BodyBytes no longer encode Body.
var ErrBodyMismatch = errors.New("ledger: body bytes do not match body")

// SignaturePair is one signature in a SignatureMap. PubKeyPrefix is a
// prefix of the signer's public key, long enough to be unique in the map.
type SignaturePair struct {
	PubKeyPrefix   []byte `json:"pubKeyPrefix"`
	Ed25519        []byte `json:"ed25519,omitempty"`
	ECDSASecp256k1 []byte `json:"ECDSASecp256k1,omitempty"`
}

// Signature returns whichever signature the pair carries.
func (p SignaturePair) Signature() []byte {
	if len(p.Ed25519) > 0 {
		return p.Ed25519
	}
	return p.ECDSASecp256k1
}

// SignatureMap is the ordered set of signatures attached to a transaction.
type SignatureMap struct {
	Pairs []SignaturePair `json:"sigPair"`
}

// Len returns the number of signatures held.
func (m SignatureMap) Len() int { return len(m.Pairs) }

// Transaction is the signed envelope submitted to a node.
type Transaction struct {
	Body      TransactionBody `json:"body"`
	BodyBytes []byte          `json:"bodyBytes"`
	SigMap    SignatureMap    `json:"sigMap"`
}

// NewTransaction validates body and returns an unsigned envelope carrying its
// canonical encoding.
func NewTransaction(body TransactionBody) (*Transaction, error) {
	if err := body.Validate(); err != nil {
		return nil, err
	}
	tx := &Transaction{Body: body}
	if err := tx.Seal(); err != nil {
		return nil, err
	}
	return tx, nil
}

// ID returns the transaction id carried by the body.
func (tx *Transaction) ID() TransactionID { return tx.Body.TransactionID }

// Seal re-encodes Body into BodyBytes. Any signatures already attached are
// dropped since they no longer bind to the new bytes.
func (tx *Transaction) Seal() error {
	encoded, err := EncodeBody(&tx.Body)
	if err != nil {
		return err
	}
	if !bytes.Equal(encoded, tx.BodyBytes) {
		tx.SigMap = SignatureMap{}
	}
	tx.BodyBytes = encoded
	return nil
}

// CheckBody reports ErrBodyMismatch when BodyBytes do not encode Body.
func (tx *Transaction) CheckBody() error {
	encoded, err := EncodeBody(&tx.Body)
	if err != nil {
		return err
	}
	if !bytes.Equal(encoded, tx.BodyBytes) {
		return ErrBodyMismatch
	}
	return nil
}

// Clone returns a deep enough copy for independent re-signing: body bytes and
// signatures are copied, key trees are shared since they are immutable.
func (tx *Transaction) Clone() *Transaction {
	if tx == nil {
		return nil
	}
	out := &Transaction{Body: tx.Body}
	out.BodyBytes = append([]byte(nil), tx.BodyBytes...)
	out.SigMap.Pairs = append([]SignaturePair(nil), tx.SigMap.Pairs...)
	return out
}
