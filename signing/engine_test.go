package signing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ledgerclient/crypto"
	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/signing"
)

func newLeaves(t *testing.T, store *keys.Store, n int) []keys.Single {
	t.Helper()
	out := make([]keys.Single, 0, n)
	for i := 0; i < n; i++ {
		kt := crypto.KeyTypeEd25519
		if i%2 == 1 {
			kt = crypto.KeyTypeSecp256k1
		}
		leaf, err := store.Generate(kt)
		require.NoError(t, err)
		out = append(out, leaf)
	}
	return out
}

func members(leaves []keys.Single) []keys.Key {
	out := make([]keys.Key, len(leaves))
	for i, l := range leaves {
		out[i] = l
	}
	return out
}

func TestThresholdSignAllMeetsThreshold(t *testing.T) {
	store := keys.NewStore()
	leaves := newLeaves(t, store, 3)
	tree := keys.NewThreshold(2, members(leaves)...)
	body := []byte("body")

	sigs, err := signing.NewEngine(store).Sign(body, tree)
	require.NoError(t, err)
	require.Equal(t, 3, sigs.Len())
	require.True(t, signing.Verify(tree, body, sigs))

	minimal, err := signing.NewEngine(store, signing.WithPolicy(signing.SignMinimum)).Sign(body, tree)
	require.NoError(t, err)
	require.Equal(t, 2, minimal.Len())
	require.True(t, signing.Verify(tree, body, minimal))
}

func TestThresholdWithMissingMaterial(t *testing.T) {
	store := keys.NewStore()
	leaves := newLeaves(t, store, 2)
	stranger, err := crypto.GeneratePrivateKey(crypto.KeyTypeEd25519)
	require.NoError(t, err)
	foreign := keys.FromPublic(stranger.PubKey())

	body := []byte("body")
	tree := keys.NewThreshold(2, leaves[0], foreign, leaves[1])
	sigs, err := signing.NewEngine(store).Sign(body, tree)
	require.NoError(t, err)
	require.True(t, signing.Verify(tree, body, sigs))

	_, err = signing.NewEngine(store).Sign(body, keys.NewThreshold(3, leaves[0], foreign, leaves[1]))
	require.ErrorIs(t, err, signing.ErrMissingKeyMaterial)

	_, err = signing.NewEngine(store).Sign(body, keys.List(leaves[0], foreign))
	require.ErrorIs(t, err, signing.ErrMissingKeyMaterial)
}

func TestKeyListRequiresEveryMember(t *testing.T) {
	store := keys.NewStore()
	leaves := newLeaves(t, store, 3)
	tree := keys.List(members(leaves)...)
	body := []byte("list")

	sigs, err := signing.NewEngine(store).Sign(body, tree)
	require.NoError(t, err)
	require.True(t, signing.Verify(tree, body, sigs))

	partial, err := signing.NewEngine(store, signing.WithOmit(leaves[1])).Sign(body, tree)
	require.NoError(t, err)
	require.Equal(t, 2, partial.Len())
	require.False(t, signing.Verify(tree, body, partial))
}

func TestOmitBelowThreshold(t *testing.T) {
	store := keys.NewStore()
	leaves := newLeaves(t, store, 3)
	tree := keys.NewThreshold(2, members(leaves)...)
	body := []byte("one of three")

	sigs, err := signing.NewEngine(store, signing.WithOmit(leaves[0], leaves[2])).Sign(body, tree)
	require.NoError(t, err)
	require.Equal(t, 1, sigs.Len())
	require.False(t, signing.Verify(tree, body, sigs))
}

func TestNestedTreeDeduplicatesLeaves(t *testing.T) {
	store := keys.NewStore()
	leaves := newLeaves(t, store, 3)
	tree := keys.List(leaves[0], keys.NewThreshold(1, leaves[0], leaves[1]), leaves[2])

	sigs, err := signing.NewEngine(store).Sign([]byte("nested"), tree, leaves[2])
	require.NoError(t, err)
	require.Equal(t, 3, sigs.Len())
	require.Equal(t, leaves[0].PublicKey, sigs.Pairs[0].PubKeyPrefix)
	require.Equal(t, leaves[1].PublicKey, sigs.Pairs[1].PubKeyPrefix)
	require.Equal(t, leaves[2].PublicKey, sigs.Pairs[2].PubKeyPrefix)
}

func TestResignAfterMutationChangesSignatures(t *testing.T) {
	store := keys.NewStore()
	leaves := newLeaves(t, store, 2)
	engine := signing.NewEngine(store)
	tree := keys.List(members(leaves)...)

	tx, err := ledger.NewTransaction(ledger.TransactionBody{
		TransactionID:  ledger.TransactionID{Payer: ledger.AccountID{Num: 2}, ValidStart: ledger.Timestamp{Seconds: 100}},
		NodeAccount:    ledger.AccountID{Num: 3},
		TransactionFee: 10,
		ValidDuration:  ledger.DefaultValidDuration,
		FileDelete:     &ledger.FileDelete{File: ledger.FileID{Num: 9}},
	})
	require.NoError(t, err)
	require.NoError(t, engine.SignTransaction(tx, tree))
	before := tx.SigMap.Pairs[0].Signature()
	require.True(t, signing.Verify(tree, tx.BodyBytes, tx.SigMap))

	require.NoError(t, engine.SignTransaction(tx, tree))
	require.Equal(t, 2, tx.SigMap.Len())

	tx.Body.Memo = "mutated"
	require.NoError(t, engine.SignTransaction(tx, tree))
	require.Equal(t, 2, tx.SigMap.Len())
	require.NotEqual(t, before, tx.SigMap.Pairs[0].Signature())
	require.True(t, signing.Verify(tree, tx.BodyBytes, tx.SigMap))
}

func TestShortPrefixes(t *testing.T) {
	got := signing.ShortestPrefixes([][]byte{{1, 2, 3}, {1, 2, 4}, {9, 9}})
	require.Equal(t, [][]byte{{1, 2, 3}, {1, 2, 4}, {9}}, got)

	store := keys.NewStore()
	leaves := newLeaves(t, store, 4)
	tree := keys.List(members(leaves)...)
	body := []byte("short")
	sigs, err := signing.NewEngine(store, signing.WithShortPrefixes()).Sign(body, tree)
	require.NoError(t, err)
	for _, pair := range sigs.Pairs {
		require.Less(t, len(pair.PubKeyPrefix), 32)
	}
	require.True(t, signing.Verify(tree, body, sigs))
}

func TestMalformedTreesFailFast(t *testing.T) {
	store := keys.NewStore()
	leaves := newLeaves(t, store, 2)
	engine := signing.NewEngine(store)
	body := []byte("malformed")

	for name, tree := range map[string]keys.Key{
		"threshold above members": keys.NewThreshold(5, members(leaves)...),
		"zero threshold":          keys.NewThreshold(0, members(leaves)...),
		"empty threshold":         keys.NewThreshold(0),
		"empty key list":          keys.List(),
		"nested empty key list":   keys.List(leaves[0], keys.List()),
	} {
		t.Run(name, func(t *testing.T) {
			sigs, err := engine.Sign(body, tree)
			require.ErrorIs(t, err, keys.ErrInvalidKey)
			require.Zero(t, sigs.Len())
		})
	}

	tx := newFileDelete(t)
	require.ErrorIs(t, engine.SignTransaction(tx, leaves[0], keys.NewThreshold(3, leaves[1])), keys.ErrInvalidKey)
	require.Zero(t, tx.SigMap.Len())
}

// collidingLeaves returns two ed25519 leaves whose public keys share their
// first byte.
func collidingLeaves(t *testing.T, store *keys.Store) (keys.Single, keys.Single) {
	t.Helper()
	byFirst := make(map[byte]*crypto.PrivateKey)
	for i := 0; i < 4096; i++ {
		priv, err := crypto.GeneratePrivateKey(crypto.KeyTypeEd25519)
		require.NoError(t, err)
		first := priv.PubKey().Bytes()[0]
		if prev, ok := byFirst[first]; ok {
			a, err := store.Add(prev)
			require.NoError(t, err)
			b, err := store.Add(priv)
			require.NoError(t, err)
			return a, b
		}
		byFirst[first] = priv
	}
	t.Fatal("no colliding keys generated")
	return keys.Single{}, keys.Single{}
}

func TestIncrementalCoSignWithShortPrefixes(t *testing.T) {
	store := keys.NewStore()
	a, b := collidingLeaves(t, store)
	engine := signing.NewEngine(store, signing.WithShortPrefixes())
	tree := keys.List(a, b)

	tx := newFileDelete(t)
	require.NoError(t, engine.SignTransaction(tx, a))
	require.Len(t, tx.SigMap.Pairs[0].PubKeyPrefix, 1)

	require.NoError(t, engine.SignTransaction(tx, tree))
	require.Equal(t, 2, tx.SigMap.Len())
	require.True(t, signing.Verify(b, tx.BodyBytes, tx.SigMap))
	require.True(t, signing.Verify(tree, tx.BodyBytes, tx.SigMap))
	require.NotEqual(t, tx.SigMap.Pairs[0].PubKeyPrefix, tx.SigMap.Pairs[1].PubKeyPrefix)
	require.Greater(t, len(tx.SigMap.Pairs[0].PubKeyPrefix), 1)

	require.NoError(t, engine.SignTransaction(tx, tree))
	require.Equal(t, 2, tx.SigMap.Len())
}

func newFileDelete(t *testing.T) *ledger.Transaction {
	t.Helper()
	tx, err := ledger.NewTransaction(ledger.TransactionBody{
		TransactionID:  ledger.TransactionID{Payer: ledger.AccountID{Num: 2}, ValidStart: ledger.Timestamp{Seconds: 100}},
		NodeAccount:    ledger.AccountID{Num: 3},
		TransactionFee: 10,
		ValidDuration:  ledger.DefaultValidDuration,
		FileDelete:     &ledger.FileDelete{File: ledger.FileID{Num: 9}},
	})
	require.NoError(t, err)
	return tx
}
