package ledger_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"ledgerclient/confirm"
	"ledgerclient/crypto"
	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/ledger/ledgertest"
	"ledgerclient/lifecycle"
	ledgersdk "ledgerclient/sdk/ledger"
	"ledgerclient/submit"
)

type harness struct {
	net   *ledgertest.Network
	nodes []ledger.Node
	pool  *ledgersdk.Pool
}

// startNodes serves every ledgertest node over its own bufconn listener and
// returns client-side node entries addressed by listener name.
func startNodes(t *testing.T) *harness {
	t.Helper()
	network := ledgertest.New()
	listeners := make(map[string]*bufconn.Listener)
	var nodes []ledger.Node
	for _, node := range network.Nodes() {
		svc, err := network.Service(node)
		require.NoError(t, err)
		lis := bufconn.Listen(1 << 20)
		server := grpc.NewServer()
		ledgersdk.RegisterService(server, svc)
		go func() { _ = server.Serve(lis) }()
		t.Cleanup(server.Stop)

		addr := "bufnet-" + node.Account.String()
		listeners[addr] = lis
		nodes = append(nodes, ledger.Node{Account: node.Account, Address: addr})
	}

	dialer := func(ctx context.Context, addr string) (net.Conn, error) {
		lis, ok := listeners[addr]
		if !ok {
			return nil, &net.AddrError{Err: "unknown listener", Addr: addr}
		}
		return lis.DialContext(ctx)
	}
	pool := ledgersdk.NewPool(
		ledgersdk.WithInsecure(),
		ledgersdk.WithContextDialer(dialer),
		ledgersdk.WithCallTimeout(5*time.Second),
		ledgersdk.WithUserAgent("ledgerclient-test"),
	)
	t.Cleanup(func() { _ = pool.Close() })
	return &harness{net: network, nodes: nodes, pool: pool}
}

func TestLifecycleOverGRPC(t *testing.T) {
	h := startNodes(t)
	store := keys.NewStore()
	leaf, err := store.Generate(crypto.KeyTypeEd25519)
	require.NoError(t, err)
	genesis := h.net.Genesis(leaf, 1_000_000_000_000)
	require.NoError(t, store.Bind(genesis.Ref(), leaf))

	client, err := lifecycle.New(submit.New(h.pool), store, h.nodes,
		lifecycle.WithSleep(func(context.Context, time.Duration) error { return nil }),
		lifecycle.WithPolicy(confirm.Policy{MaxAttempts: 5, Interval: time.Millisecond}))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	ctx := context.Background()

	members, err := store.GenerateN(crypto.KeyTypeSecp256k1, 3)
	require.NoError(t, err)
	res, err := client.Execute(ctx, lifecycle.Request{
		Payer: genesis,
		Body:  ledger.TransactionBody{CryptoCreate: &ledger.CryptoCreate{Key: keys.NewThreshold(2, members...), InitialBalance: 10_000_000}},
	})
	require.NoError(t, err)
	acct := *res.Receipt.AccountID

	tx, err := client.Prepare(ctx, lifecycle.Request{
		Payer: acct,
		Node:  h.nodes[0],
		Body: ledger.TransactionBody{CryptoTransfer: &ledger.CryptoTransfer{Transfers: []ledger.AccountAmount{
			{Account: acct, Amount: -500},
			{Account: genesis, Amount: 500},
		}}},
	})
	require.NoError(t, err)
	_, err = client.SubmitSigned(ctx, tx, h.nodes[0])
	require.NoError(t, err)
	require.NoError(t, client.ExpectDuplicate(ctx, tx, h.nodes[1]))

	info, err := client.AccountInfo(ctx, acct, genesis)
	require.NoError(t, err)
	require.True(t, keys.Equal(keys.NewThreshold(2, members...), info.Key))
}

func TestMethodMustMatchBodyKind(t *testing.T) {
	h := startNodes(t)
	svc, err := h.pool.Service(h.nodes[0])
	require.NoError(t, err)
	conn := svc.(*ledgersdk.Client).Conn()

	body := ledger.TransactionBody{
		TransactionID: ledger.TransactionID{Payer: ledger.AccountID{Num: 2}, ValidStart: ledger.TimestampOf(time.Now().Add(-time.Second))},
		NodeAccount:   h.nodes[0].Account,
		ValidDuration: ledger.DefaultValidDuration,
		CryptoTransfer: &ledger.CryptoTransfer{Transfers: []ledger.AccountAmount{
			{Account: ledger.AccountID{Num: 2}, Amount: -1},
			{Account: h.nodes[0].Account, Amount: 1},
		}},
	}
	tx, err := ledger.NewTransaction(body)
	require.NoError(t, err)

	resp := new(ledger.TransactionResponse)
	err = conn.Invoke(context.Background(), "/"+ledgersdk.CryptoService+"/createAccount", tx, resp, grpc.CallContentSubtype(ledgersdk.CodecName))
	require.NoError(t, err)
	require.Equal(t, ledger.StatusInvalidTransactionBody, resp.Precheck)
}

func TestTransportFailureSurfacesAsTransportError(t *testing.T) {
	h := startNodes(t)
	unknown := ledger.Node{Account: ledger.AccountID{Num: 99}, Address: "bufnet-missing"}
	_, err := submit.New(h.pool).Query(context.Background(), ledger.ReceiptQuery(ledger.TransactionID{Payer: ledger.AccountID{Num: 2}}), unknown)
	require.True(t, submit.IsTransport(err))
}

func TestNilClientAndClosedPool(t *testing.T) {
	var c *ledgersdk.Client
	_, err := c.SubmitTransaction(context.Background(), &ledger.Transaction{})
	require.ErrorIs(t, err, grpc.ErrClientConnClosing)
	_, err = c.Query(context.Background(), ledger.ReceiptQuery(ledger.TransactionID{}))
	require.ErrorIs(t, err, grpc.ErrClientConnClosing)
	require.NoError(t, c.Close())

	pool := ledgersdk.NewPool(ledgersdk.WithInsecure())
	require.NoError(t, pool.Close())
	_, err = pool.Service(ledger.Node{Account: ledger.AccountID{Num: 3}, Address: "localhost:1"})
	require.Error(t, err)
}
