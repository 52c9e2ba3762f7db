package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"ledgerclient/crypto"
	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/ledger/ledgertest"
	ledgersdk "ledgerclient/sdk/ledger"
)

const localGenesisBalance = 1_000_000_000_000

// localNetwork is an in-process ledger served over loopback gRPC.
type localNetwork struct {
	net     *ledgertest.Network
	nodes   []ledger.Node
	payer   ledger.AccountID
	servers []*grpc.Server
}

// startLocal serves size in-memory nodes on loopback listeners and funds a
// genesis payer whose fresh key is added to store. serverOpts apply to every
// node's server.
func startLocal(size int, keyType crypto.KeyType, store *keys.Store, logger *slog.Logger, serverOpts ...grpc.ServerOption) (*localNetwork, error) {
	network := ledgertest.New(ledgertest.WithNodes(size))
	leaf, err := store.Generate(keyType)
	if err != nil {
		return nil, fmt.Errorf("generate payer key: %w", err)
	}
	local := &localNetwork{net: network, payer: network.Genesis(leaf, localGenesisBalance)}
	if err := store.Bind(local.payer.Ref(), leaf); err != nil {
		return nil, fmt.Errorf("bind payer key: %w", err)
	}

	for _, node := range network.Nodes() {
		svc, err := network.Service(node)
		if err != nil {
			local.Stop()
			return nil, err
		}
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			local.Stop()
			return nil, fmt.Errorf("listen for %s: %w", node.Account, err)
		}
		server := grpc.NewServer(append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, serverOpts...)...)
		ledgersdk.RegisterService(server, svc)
		go func(account ledger.AccountID) {
			if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				logger.Error("local node stopped", slog.String("node", account.String()), slog.Any("error", err))
			}
		}(node.Account)
		local.servers = append(local.servers, server)
		local.nodes = append(local.nodes, ledger.Node{Account: node.Account, Address: lis.Addr().String()})
		logger.Info("local node listening",
			slog.String("node", node.Account.String()),
			slog.String("address", lis.Addr().String()))
	}
	return local, nil
}

func (l *localNetwork) Stop() {
	for _, server := range l.servers {
		server.GracefulStop()
	}
}
