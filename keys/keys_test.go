package keys

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ledgerclient/crypto"
)

func genLeaves(t *testing.T, s *Store, n int) []Key {
	t.Helper()
	out, err := s.GenerateN(crypto.KeyTypeEd25519, n)
	require.NoError(t, err)
	return out
}

func TestValidate(t *testing.T) {
	s := NewStore()
	leaves := genLeaves(t, s, 3)

	require.NoError(t, NewThreshold(2, leaves...).Validate())
	require.NoError(t, List(leaves[0], NewThreshold(1, leaves[1], leaves[2])).Validate())

	require.ErrorIs(t, NewThreshold(4, leaves...).Validate(), ErrInvalidKey)
	require.ErrorIs(t, NewThreshold(0, leaves...).Validate(), ErrInvalidKey)
	require.ErrorIs(t, List().Validate(), ErrInvalidKey)
	require.ErrorIs(t, List(leaves[0], nil).Validate(), ErrInvalidKey)
	require.ErrorIs(t, Single{Type: crypto.KeyTypeSecp256k1, PublicKey: []byte{1, 2}}.Validate(), ErrInvalidKey)
}

func TestLeavesDepthFirst(t *testing.T) {
	s := NewStore()
	l := genLeaves(t, s, 4)
	tree := List(l[0], NewThreshold(1, l[1], List(l[2], l[3])))

	got := Leaves(tree)
	require.Len(t, got, 4)
	for i := range l {
		require.True(t, Equal(l[i], got[i]))
	}
}

func TestJSONRoundTrip(t *testing.T) {
	s := NewStore()
	ed := genLeaves(t, s, 2)
	ec, err := s.Generate(crypto.KeyTypeSecp256k1)
	require.NoError(t, err)
	tree := NewThreshold(2, ed[0], List(ed[1], ec), ec)

	raw, err := MarshalJSON(tree)
	require.NoError(t, err)
	decoded, err := UnmarshalJSON(raw)
	require.NoError(t, err)
	require.True(t, Equal(tree, decoded))

	nilKey, err := UnmarshalJSON([]byte("null"))
	require.NoError(t, err)
	require.Nil(t, nilKey)
}

func TestStoreBindAndLookup(t *testing.T) {
	s := NewStore()
	leaf, err := s.Generate(crypto.KeyTypeSecp256k1)
	require.NoError(t, err)

	priv, ok := s.Lookup(leaf)
	require.True(t, ok)
	require.Equal(t, leaf.PublicKey, priv.PubKey().Bytes())

	require.NoError(t, s.Bind("account/0.0.1001", leaf))
	bound, ok := s.KeyFor("account/0.0.1001")
	require.True(t, ok)
	require.True(t, Equal(leaf, bound))

	require.ErrorIs(t, s.Bind("account/0.0.1002", NewThreshold(3, leaf)), ErrInvalidKey)
	_, err = s.Add(nil)
	require.ErrorIs(t, err, ErrNilPrivateKey)
}

func TestStoreConcurrentWriters(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				leaf, err := s.Generate(crypto.KeyTypeEd25519)
				if err != nil {
					t.Error(err)
					return
				}
				if _, ok := s.Lookup(leaf); !ok {
					t.Error("missing freshly added key")
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 80, s.Len())
}

func TestBackendsPersist(t *testing.T) {
	backends := map[string]func(path string) (Backend, error){
		"leveldb": func(path string) (Backend, error) { return NewLevelDBBackend(path) },
		"bolt":    func(path string) (Backend, error) { return NewBoltBackend(path) },
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "keys")
			backend, err := open(path)
			require.NoError(t, err)
			s, err := OpenStore(backend)
			require.NoError(t, err)

			a, err := s.Generate(crypto.KeyTypeEd25519)
			require.NoError(t, err)
			b, err := s.Generate(crypto.KeyTypeSecp256k1)
			require.NoError(t, err)
			tree := NewThreshold(1, a, b)
			require.NoError(t, s.Bind("account/0.0.77", tree))
			require.NoError(t, s.Close())

			backend, err = open(path)
			require.NoError(t, err)
			reopened, err := OpenStore(backend)
			require.NoError(t, err)
			defer reopened.Close()

			require.Equal(t, 2, reopened.Len())
			_, ok := reopened.Lookup(b)
			require.True(t, ok)
			bound, ok := reopened.KeyFor("account/0.0.77")
			require.True(t, ok)
			require.True(t, Equal(tree, bound))
		})
	}
}

func TestBoltBackendRequiresPath(t *testing.T) {
	_, err := NewBoltBackend("  ")
	require.Error(t, err)

	var nilBackend *BoltBackend
	require.NoError(t, nilBackend.Close())
	require.Error(t, nilBackend.Load(func(Record) error { return nil }))
}
