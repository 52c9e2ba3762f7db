package ledger

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerclient/crypto"
	"ledgerclient/keys"
)

func TestParseEntityIDs(t *testing.T) {
	acct, err := ParseAccountID("0.0.1001")
	require.NoError(t, err)
	require.Equal(t, AccountID{Num: 1001}, acct)
	require.Equal(t, "0.0.1001", acct.String())
	require.Equal(t, keys.EntityRef("account/0.0.1001"), acct.Ref())

	for _, raw := range []string{"", "0.0", "0.0.x", "0.-1.2", "1.2.3.4"} {
		_, err := ParseAccountID(raw)
		require.ErrorIs(t, err, ErrInvalidEntityID, raw)
	}

	file, err := ParseFileID(" 0.1.150 ")
	require.NoError(t, err)
	require.Equal(t, FileID{Realm: 1, Num: 150}, file)
}

func TestTransactionIDRoundTrip(t *testing.T) {
	id := TransactionID{Payer: AccountID{Num: 2}, ValidStart: Timestamp{Seconds: 1700000000, Nanos: 42}}
	require.Equal(t, "0.0.2@1700000000.000000042", id.String())
	parsed, err := ParseTransactionID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = ParseTransactionID("0.0.2")
	require.Error(t, err)
}

func TestIDGeneratorStrictlyIncreasing(t *testing.T) {
	frozen := time.Unix(1700000000, 0)
	gen := NewIDGenerator(WithIDClock(func() time.Time { return frozen }))
	payer := AccountID{Num: 2}

	first := gen.Next(payer)
	require.Equal(t, frozen.Add(-DefaultWindBack).Unix(), first.ValidStart.Seconds)

	seen := make(map[TransactionID]struct{})
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := gen.Next(payer)
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 200)
	_, dup := seen[first]
	require.False(t, dup)
}

func transferBody(t *testing.T) TransactionBody {
	t.Helper()
	return TransactionBody{
		TransactionID:  TransactionID{Payer: AccountID{Num: 2}, ValidStart: Timestamp{Seconds: 10, Nanos: 5}},
		NodeAccount:    AccountID{Num: 3},
		TransactionFee: 100_000,
		ValidDuration:  DefaultValidDuration,
		Memo:           "transfer",
		CryptoTransfer: &CryptoTransfer{Transfers: []AccountAmount{
			{Account: AccountID{Num: 2}, Amount: -10},
			{Account: AccountID{Num: 1001}, Amount: 10},
		}},
	}
}

func TestEncodeBodyDeterministic(t *testing.T) {
	body := transferBody(t)
	a, err := EncodeBody(&body)
	require.NoError(t, err)
	b, err := EncodeBody(&body)
	require.NoError(t, err)
	require.Equal(t, a, b)

	body.Memo = "changed"
	c, err := EncodeBody(&body)
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestEncodeKeyTrees(t *testing.T) {
	store := keys.NewStore()
	leaves, err := store.GenerateN(crypto.KeyTypeEd25519, 3)
	require.NoError(t, err)

	one, err := EncodeKey(keys.NewThreshold(1, leaves...))
	require.NoError(t, err)
	two, err := EncodeKey(keys.NewThreshold(2, leaves...))
	require.NoError(t, err)
	list, err := EncodeKey(keys.List(leaves...))
	require.NoError(t, err)
	require.NotEqual(t, one, two)
	require.NotEqual(t, two, list)

	_, err = EncodeKey(nil)
	require.ErrorIs(t, err, keys.ErrInvalidKey)
}

func TestBodyValidate(t *testing.T) {
	body := transferBody(t)
	require.NoError(t, body.Validate())
	require.Equal(t, KindCryptoTransfer, body.Kind())

	body.FileDelete = &FileDelete{File: FileID{Num: 5}}
	require.ErrorIs(t, body.Validate(), ErrAmbiguousBody)
	require.Equal(t, KindUnknown, body.Kind())

	empty := TransactionBody{TransactionID: body.TransactionID, NodeAccount: body.NodeAccount}
	require.ErrorIs(t, empty.Validate(), ErrEmptyBody)

	create := transferBody(t)
	create.CryptoTransfer = nil
	create.CryptoCreate = &CryptoCreate{InitialBalance: 1}
	require.ErrorIs(t, create.Validate(), keys.ErrInvalidKey)
}

func TestTransactionSealDropsStaleSignatures(t *testing.T) {
	tx, err := NewTransaction(transferBody(t))
	require.NoError(t, err)
	require.NoError(t, tx.CheckBody())

	tx.SigMap.Pairs = append(tx.SigMap.Pairs, SignaturePair{PubKeyPrefix: []byte{1}, Ed25519: []byte{2}})
	require.NoError(t, tx.Seal())
	require.Equal(t, 1, tx.SigMap.Len())

	tx.Body.Memo = "mutated"
	require.ErrorIs(t, tx.CheckBody(), ErrBodyMismatch)
	require.NoError(t, tx.Seal())
	require.Zero(t, tx.SigMap.Len())
	require.NoError(t, tx.CheckBody())
}

func TestTransactionJSONCarriesKeys(t *testing.T) {
	store := keys.NewStore()
	ed, err := store.Generate(crypto.KeyTypeEd25519)
	require.NoError(t, err)
	ec, err := store.Generate(crypto.KeyTypeSecp256k1)
	require.NoError(t, err)

	body := transferBody(t)
	body.CryptoTransfer = nil
	body.CryptoCreate = &CryptoCreate{Key: keys.NewThreshold(1, ed, ec), InitialBalance: 50}
	tx, err := NewTransaction(body)
	require.NoError(t, err)

	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	var decoded Transaction
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NoError(t, decoded.CheckBody())
	require.True(t, keys.Equal(body.CryptoCreate.Key, decoded.Body.CryptoCreate.Key))
	require.Equal(t, uint64(50), decoded.Body.CryptoCreate.InitialBalance)
}

func TestStatusNames(t *testing.T) {
	require.Equal(t, "INSUFFICIENT_TX_FEE", StatusInsufficientTxFee.String())
	require.True(t, StatusBusy.Known())
	require.False(t, Status(999).Known())
	require.Equal(t, "Status(999)", Status(999).String())

	s, err := ParseStatus("DUPLICATE_TRANSACTION")
	require.NoError(t, err)
	require.Equal(t, StatusDuplicateTransaction, s)
	require.True(t, CostAnswer.IsCost())
	require.False(t, AnswerOnly.IsCost())
}
