package ledgertest

import (
	"context"

	"ledgerclient/ledger"
	"ledgerclient/signing"
)

func (s *nodeService) Query(ctx context.Context, q *ledger.Query) (*ledger.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := s.net
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.injectedFailure(s.node); err != nil {
		return nil, err
	}
	if q == nil {
		return header(ledger.StatusMissingQueryHeader, ledger.AnswerOnly, 0), nil
	}
	if q.Kind == ledger.QueryReceipt {
		return n.receipt(q.TransactionID), nil
	}

	mode := q.Header.ResponseType
	cost := n.queryFee
	amount, status := n.checkPayment(s.node, q.Header.Payment)
	if status != ledger.StatusOK {
		return header(status, mode, 0), nil
	}
	if amount < cost {
		return header(ledger.StatusInsufficientTxFee, mode, cost), nil
	}
	if mode.IsCost() {
		return header(ledger.StatusOK, mode, cost), nil
	}
	payer := n.accounts[q.Header.Payment.Body.TransactionID.Payer]
	if payer.balance < amount {
		return header(ledger.StatusInsufficientPayerBalance, mode, 0), nil
	}
	payer.balance -= amount
	n.accounts[s.node.Account].balance += amount
	return n.answer(q), nil
}

func header(status ledger.Status, mode ledger.ResponseType, cost uint64) *ledger.Response {
	return &ledger.Response{Header: ledger.ResponseHeader{Precheck: status, ResponseType: mode, Cost: cost}}
}

func (n *Network) receipt(id ledger.TransactionID) *ledger.Response {
	if n.busyReceipts > 0 {
		n.busyReceipts--
		return header(ledger.StatusBusy, ledger.AnswerOnly, 0)
	}
	st, ok := n.txs[id]
	if !ok {
		return header(ledger.StatusReceiptNotFound, ledger.AnswerOnly, 0)
	}
	resp := header(ledger.StatusOK, ledger.AnswerOnly, 0)
	if st.pending > 0 {
		st.pending--
		resp.Receipt = &ledger.Receipt{Status: ledger.StatusUnknown}
		return resp
	}
	receipt := st.receipt
	resp.Receipt = &receipt
	return resp
}

// checkPayment validates a query payment and returns the amount credited to
// the node. Payment ids are single use.
func (n *Network) checkPayment(node ledger.Node, payment *ledger.Transaction) (uint64, ledger.Status) {
	if payment == nil {
		return 0, ledger.StatusInvalidQueryHeader
	}
	if payment.CheckBody() != nil || payment.Body.CryptoTransfer == nil {
		return 0, ledger.StatusInvalidTransactionBody
	}
	body := &payment.Body
	if body.NodeAccount != node.Account {
		return 0, ledger.StatusInvalidNodeAccount
	}
	if _, used := n.payments[body.TransactionID]; used {
		return 0, ledger.StatusDuplicateTransaction
	}
	if _, used := n.txs[body.TransactionID]; used {
		return 0, ledger.StatusDuplicateTransaction
	}
	if status := n.checkWindow(body); status != ledger.StatusOK {
		return 0, status
	}
	payer, ok := n.accounts[body.TransactionID.Payer]
	if !ok || payer.key == nil {
		return 0, ledger.StatusPayerAccountNotFound
	}
	if !signing.Verify(payer.key, payment.BodyBytes, payment.SigMap) {
		return 0, ledger.StatusInvalidSignature
	}
	var amount uint64
	var sum int64
	for _, leg := range body.CryptoTransfer.Transfers {
		sum += leg.Amount
		switch leg.Account {
		case node.Account:
			if leg.Amount > 0 {
				amount += uint64(leg.Amount)
			}
		case body.TransactionID.Payer:
		default:
			return 0, ledger.StatusInvalidAccountAmounts
		}
	}
	if sum != 0 {
		return 0, ledger.StatusInvalidAccountAmounts
	}
	n.payments[body.TransactionID] = struct{}{}
	return amount, ledger.StatusOK
}

func (n *Network) answer(q *ledger.Query) *ledger.Response {
	resp := header(ledger.StatusOK, ledger.AnswerOnly, 0)
	switch q.Kind {
	case ledger.QueryRecord:
		st, ok := n.txs[q.TransactionID]
		if !ok {
			resp.Header.Precheck = ledger.StatusRecordNotFound
			return resp
		}
		record := st.record
		resp.Record = &record

	case ledger.QueryAccountInfo, ledger.QueryAccountBalance, ledger.QueryAccountRecords:
		acct, ok := n.accounts[q.Account]
		if !ok {
			resp.Header.Precheck = ledger.StatusInvalidAccountID
			return resp
		}
		if acct.deleted {
			resp.Header.Precheck = ledger.StatusAccountDeleted
			return resp
		}
		switch q.Kind {
		case ledger.QueryAccountInfo:
			resp.AccountInfo = &ledger.AccountInfo{
				Account:             q.Account,
				Key:                 acct.key,
				Balance:             acct.balance,
				ReceiverSigRequired: acct.receiverSigRequired,
				Expiration:          acct.expiration,
				AutoRenewPeriod:     acct.autoRenew,
			}
		case ledger.QueryAccountBalance:
			resp.Balance = acct.balance
		default:
			resp.Records = append([]ledger.Record(nil), acct.records...)
		}

	case ledger.QueryFileContents, ledger.QueryFileInfo:
		f, ok := n.files[q.File]
		if !ok {
			resp.Header.Precheck = ledger.StatusInvalidFileID
			return resp
		}
		if q.Kind == ledger.QueryFileContents {
			if f.deleted {
				resp.Header.Precheck = ledger.StatusFileDeleted
				return resp
			}
			resp.FileContents = append([]byte(nil), f.contents...)
			return resp
		}
		resp.FileInfo = &ledger.FileInfo{
			File:       q.File,
			Size:       int64(len(f.contents)),
			Expiration: f.expiration,
			Deleted:    f.deleted,
			Keys:       f.keys,
		}

	case ledger.QueryContractInfo, ledger.QueryContractBytecode, ledger.QueryContractCallLocal:
		c, ok := n.contracts[q.Contract]
		if !ok {
			resp.Header.Precheck = ledger.StatusInvalidContractID
			return resp
		}
		if c.deleted {
			resp.Header.Precheck = ledger.StatusContractDeleted
			return resp
		}
		switch q.Kind {
		case ledger.QueryContractInfo:
			resp.ContractInfo = &ledger.ContractInfo{
				Contract:        q.Contract,
				Account:         ledger.AccountID{Shard: q.Contract.Shard, Realm: q.Contract.Realm, Num: q.Contract.Num},
				AdminKey:        c.adminKey,
				Expiration:      c.expiration,
				AutoRenewPeriod: c.autoRenew,
				StorageSize:     int64(len(c.bytecode)),
				Memo:            c.memo,
				Balance:         c.balance,
			}
		case ledger.QueryContractBytecode:
			resp.Bytecode = append([]byte(nil), c.bytecode...)
		default:
			if q.Call == nil || q.Call.Gas <= 0 {
				resp.Header.Precheck = ledger.StatusInsufficientGas
				return resp
			}
			resp.CallResult = callResult(q.Contract, q.Call.Gas, q.Call.FunctionParameters)
		}

	default:
		resp.Header.Precheck = ledger.StatusNotSupported
	}
	return resp
}
