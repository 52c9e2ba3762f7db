package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var errEmptyKeystorePath = errors.New("crypto: empty keystore path")

// SaveToKeystore encrypts a secp256k1 key into a v3 keystore file at path,
// replacing any existing file. Missing parent directories are created 0700.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	if key == nil || key.PrivateKey == nil {
		return errors.New("crypto: nil private key")
	}
	if key.Type() != KeyTypeSecp256k1 {
		return fmt.Errorf("%w: keystore files hold secp256k1 keys only", ErrUnsupportedKeyType)
	}
	if path == "" {
		return errEmptyKeystorePath
	}
	blob, err := keystore.EncryptKey(&keystore.Key{
		Id:         uuid.New(),
		Address:    gethcrypto.PubkeyToAddress(key.PrivateKey.PublicKey),
		PrivateKey: key.PrivateKey,
	}, passphrase, keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		return fmt.Errorf("crypto: encrypt keystore: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromKeystore decrypts a v3 keystore file with passphrase.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errEmptyKeystorePath
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := keystore.DecryptKey(blob, passphrase)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{PrivateKey: key.PrivateKey}, nil
}

// LoadKeyFile reads a hex encoded private key of type t from path. Ed25519
// payer keys are distributed this way.
func LoadKeyFile(path string, t KeyType) (*PrivateKey, error) {
	contents, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	return PrivateKeyFromHex(t, string(contents))
}
