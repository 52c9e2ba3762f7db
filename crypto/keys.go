package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyType identifies the signature scheme a key belongs to.
type KeyType uint8

const (
	KeyTypeEd25519 KeyType = iota + 1
	KeyTypeSecp256k1
)

// ErrUnsupportedKeyType is returned for key types outside the known set.
var ErrUnsupportedKeyType = errors.New("crypto: unsupported key type")

func (t KeyType) String() string {
	switch t {
	case KeyTypeEd25519:
		return "ed25519"
	case KeyTypeSecp256k1:
		return "secp256k1"
	default:
		return fmt.Sprintf("KeyType(%d)", uint8(t))
	}
}

// ParseKeyType accepts the names produced by KeyType.String.
func ParseKeyType(raw string) (KeyType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ed25519", "":
		return KeyTypeEd25519, nil
	case "secp256k1", "ecdsa", "ecdsa_secp256k1":
		return KeyTypeSecp256k1, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, raw)
	}
}

// PublicKeySize returns the encoded public key length for the key type.
func (t KeyType) PublicKeySize() int {
	switch t {
	case KeyTypeEd25519:
		return ed25519.PublicKeySize
	case KeyTypeSecp256k1:
		return 33
	default:
		return 0
	}
}

// --- Key Management ---

// PrivateKey holds either an ed25519 or a secp256k1 private key.
type PrivateKey struct {
	*ecdsa.PrivateKey
	ed ed25519.PrivateKey
}

// PublicKey is the verifying half of a PrivateKey.
type PublicKey struct {
	*ecdsa.PublicKey
	ed ed25519.PublicKey
}

func GeneratePrivateKey(t KeyType) (*PrivateKey, error) {
	switch t {
	case KeyTypeEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return &PrivateKey{ed: priv}, nil
	case KeyTypeSecp256k1:
		key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
		if err != nil {
			return nil, err
		}
		return &PrivateKey{PrivateKey: key}, nil
	default:
		return nil, ErrUnsupportedKeyType
	}
}

// Type reports the signature scheme of the key.
func (k *PrivateKey) Type() KeyType {
	if k.ed != nil {
		return KeyTypeEd25519
	}
	return KeyTypeSecp256k1
}

// Bytes returns the byte representation of the private key. Ed25519 keys are
// returned as their 32 byte seed.
func (k *PrivateKey) Bytes() []byte {
	if k.ed != nil {
		return append([]byte(nil), k.ed.Seed()...)
	}
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	if k.ed != nil {
		return &PublicKey{ed: k.ed.Public().(ed25519.PublicKey)}
	}
	return &PublicKey{PublicKey: &k.PrivateKey.PublicKey}
}

// Sign signs message with the key. Ed25519 signs the message bytes directly;
// secp256k1 signs the keccak256 digest and returns the 64 byte r||s form.
func (k *PrivateKey) Sign(message []byte) ([]byte, error) {
	if k == nil || (k.ed == nil && k.PrivateKey == nil) {
		return nil, errors.New("crypto: nil private key")
	}
	if k.ed != nil {
		return ed25519.Sign(k.ed, message), nil
	}
	sig, err := crypto.Sign(crypto.Keccak256(message), k.PrivateKey)
	if err != nil {
		return nil, err
	}
	return sig[:64], nil
}

// Type reports the signature scheme of the key.
func (k *PublicKey) Type() KeyType {
	if k.ed != nil {
		return KeyTypeEd25519
	}
	return KeyTypeSecp256k1
}

// Bytes returns the raw ed25519 key or the compressed secp256k1 point.
func (k *PublicKey) Bytes() []byte {
	if k.ed != nil {
		return append([]byte(nil), k.ed...)
	}
	return crypto.CompressPubkey(k.PublicKey)
}

// Verify checks a signature produced by PrivateKey.Sign.
func (k *PublicKey) Verify(message, sig []byte) bool {
	if k.ed != nil {
		return len(sig) == ed25519.SignatureSize && ed25519.Verify(k.ed, message, sig)
	}
	if len(sig) == 65 {
		sig = sig[:64]
	}
	return crypto.VerifySignature(crypto.CompressPubkey(k.PublicKey), crypto.Keccak256(message), sig)
}

func PrivateKeyFromBytes(t KeyType, b []byte) (*PrivateKey, error) {
	switch t {
	case KeyTypeEd25519:
		if len(b) != ed25519.SeedSize {
			return nil, fmt.Errorf("crypto: ed25519 seed must be %d bytes", ed25519.SeedSize)
		}
		return &PrivateKey{ed: ed25519.NewKeyFromSeed(b)}, nil
	case KeyTypeSecp256k1:
		key, err := crypto.ToECDSA(b)
		if err != nil {
			return nil, err
		}
		return &PrivateKey{PrivateKey: key}, nil
	default:
		return nil, ErrUnsupportedKeyType
	}
}

// PrivateKeyFromHex decodes a hex encoded private key, with or without 0x prefix.
func PrivateKeyFromHex(t KeyType, raw string) (*PrivateKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("crypto: empty private key")
	}
	return PrivateKeyFromBytes(t, common.FromHex(trimmed))
}

func PublicKeyFromBytes(t KeyType, b []byte) (*PublicKey, error) {
	switch t {
	case KeyTypeEd25519:
		if len(b) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("crypto: ed25519 public key must be %d bytes", ed25519.PublicKeySize)
		}
		return &PublicKey{ed: append(ed25519.PublicKey(nil), b...)}, nil
	case KeyTypeSecp256k1:
		pub, err := crypto.DecompressPubkey(b)
		if err != nil {
			return nil, err
		}
		return &PublicKey{PublicKey: pub}, nil
	default:
		return nil, ErrUnsupportedKeyType
	}
}
