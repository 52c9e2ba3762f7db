package crypto

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	for _, kt := range []KeyType{KeyTypeEd25519, KeyTypeSecp256k1} {
		t.Run(kt.String(), func(t *testing.T) {
			key, err := GeneratePrivateKey(kt)
			require.NoError(t, err)
			require.Equal(t, kt, key.Type())

			msg := []byte("transfer 10 from 0.0.1001 to 0.0.1002")
			sig, err := key.Sign(msg)
			require.NoError(t, err)

			pub := key.PubKey()
			require.Len(t, pub.Bytes(), kt.PublicKeySize())
			require.True(t, pub.Verify(msg, sig))
			require.False(t, pub.Verify([]byte("tampered"), sig))

			decoded, err := PublicKeyFromBytes(kt, pub.Bytes())
			require.NoError(t, err)
			require.True(t, decoded.Verify(msg, sig))
		})
	}
}

func TestPrivateKeyBytesRoundTrip(t *testing.T) {
	for _, kt := range []KeyType{KeyTypeEd25519, KeyTypeSecp256k1} {
		key, err := GeneratePrivateKey(kt)
		require.NoError(t, err)
		restored, err := PrivateKeyFromBytes(kt, key.Bytes())
		require.NoError(t, err)
		require.Equal(t, key.PubKey().Bytes(), restored.PubKey().Bytes())
	}
}

func TestParseKeyType(t *testing.T) {
	kt, err := ParseKeyType("ECDSA_SECP256K1")
	require.NoError(t, err)
	require.Equal(t, KeyTypeSecp256k1, kt)

	_, err = ParseKeyType("rsa")
	require.ErrorIs(t, err, ErrUnsupportedKeyType)
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey(KeyTypeSecp256k1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "payer.json")
	require.NoError(t, SaveToKeystore(path, key, "correct horse"))

	loaded, err := LoadFromKeystore(path, "correct horse")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}

func TestKeystoreRejectsEd25519(t *testing.T) {
	key, err := GeneratePrivateKey(KeyTypeEd25519)
	require.NoError(t, err)
	err = SaveToKeystore(filepath.Join(t.TempDir(), "k.json"), key, "pw")
	require.ErrorIs(t, err, ErrUnsupportedKeyType)
}
