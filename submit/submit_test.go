package submit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"ledgerclient/ledger"
)

type stubService struct {
	calls    int
	precheck ledger.Status
	cost     uint64
	err      error
}

func (s *stubService) SubmitTransaction(context.Context, *ledger.Transaction) (*ledger.TransactionResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &ledger.TransactionResponse{Precheck: s.precheck, Cost: s.cost}, nil
}

func (s *stubService) Query(context.Context, *ledger.Query) (*ledger.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &ledger.Response{Header: ledger.ResponseHeader{Precheck: s.precheck}}, nil
}

type stubNetwork struct {
	svc ledger.Service
	err error
}

func (n stubNetwork) Service(ledger.Node) (ledger.Service, error) { return n.svc, n.err }

var testNode = ledger.Node{Account: ledger.AccountID{Num: 3}, Address: "node-a"}

func testTx(t *testing.T) *ledger.Transaction {
	t.Helper()
	tx, err := ledger.NewTransaction(ledger.TransactionBody{
		TransactionID: ledger.TransactionID{Payer: ledger.AccountID{Num: 2}, ValidStart: ledger.Timestamp{Seconds: 1}},
		NodeAccount:   testNode.Account,
		FileDelete:    &ledger.FileDelete{File: ledger.FileID{Num: 7}},
	})
	require.NoError(t, err)
	return tx
}

func TestSubmitReturnsPrecheckAsValue(t *testing.T) {
	svc := &stubService{precheck: ledger.StatusInsufficientTxFee, cost: 4200}
	s := New(stubNetwork{svc: svc})

	pre, err := s.Submit(context.Background(), testTx(t), testNode)
	require.NoError(t, err)
	require.False(t, pre.OK())
	require.Equal(t, ledger.StatusInsufficientTxFee, pre.Status)
	require.Equal(t, uint64(4200), pre.Cost)
	require.Equal(t, 1, svc.calls)
}

func TestSubmitTransportFailureNeverRetries(t *testing.T) {
	svc := &stubService{err: errors.New("connection reset")}
	s := New(stubNetwork{svc: svc})

	_, err := s.Submit(context.Background(), testTx(t), testNode)
	require.Error(t, err)
	require.True(t, IsTransport(err))
	var te *TransportError
	require.ErrorAs(t, err, &te)
	require.Equal(t, testNode, te.Node)
	require.Equal(t, 1, svc.calls)

	_, err = New(stubNetwork{err: errors.New("dial failed")}).Submit(context.Background(), testTx(t), testNode)
	require.True(t, IsTransport(err))
}

func TestSubmitRejectsUnrecognizedStatus(t *testing.T) {
	s := New(stubNetwork{svc: &stubService{precheck: ledger.Status(4242)}})
	_, err := s.Submit(context.Background(), testTx(t), testNode)
	require.ErrorIs(t, err, ErrUnrecognizedStatus)
	require.False(t, IsTransport(err))

	_, err = s.Query(context.Background(), ledger.ReceiptQuery(testTx(t).ID()), testNode)
	require.ErrorIs(t, err, ErrUnrecognizedStatus)
}

func TestQueryWrapsTransportError(t *testing.T) {
	s := New(stubNetwork{svc: &stubService{err: errors.New("unavailable")}})
	_, err := s.Query(context.Background(), ledger.ReceiptQuery(testTx(t).ID()), testNode)
	require.True(t, IsTransport(err))
}
