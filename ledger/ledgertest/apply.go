package ledgertest

import (
	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/signing"
)

// privileged accounts may run system delete, undelete and freeze.
var privileged = map[int64]bool{2: true, 50: true, 58: true}

type verifier struct {
	body []byte
	sigs ledger.SignatureMap
}

func (v verifier) ok(k keys.Key) bool {
	if k == nil {
		return false
	}
	return signing.Verify(k, v.body, v.sigs)
}

// apply executes the body against state and returns its receipt. Fees have
// already been charged; a failed receipt leaves entity state untouched.
func (n *Network) apply(body *ledger.TransactionBody, bodyBytes []byte, sigs ledger.SignatureMap) ledger.Receipt {
	v := verifier{body: bodyBytes, sigs: sigs}
	payerID := body.TransactionID.Payer
	payer := n.accounts[payerID]
	result := func(status ledger.Status) ledger.Receipt { return ledger.Receipt{Status: status} }
	success := ledger.Receipt{Status: ledger.StatusSuccess}

	switch {
	case body.CryptoCreate != nil:
		c := body.CryptoCreate
		if c.Key == nil || c.Key.Validate() != nil {
			return result(ledger.StatusBadEncoding)
		}
		if !v.ok(c.Key) {
			return result(ledger.StatusInvalidSignature)
		}
		if payer.balance < c.InitialBalance {
			return result(ledger.StatusInsufficientPayerBalance)
		}
		payer.balance -= c.InitialBalance
		id := ledger.AccountID{Num: n.allocate()}
		n.accounts[id] = &account{
			key:                 c.Key,
			balance:             c.InitialBalance,
			receiverSigRequired: c.ReceiverSigRequired,
			autoRenew:           c.AutoRenewPeriod,
		}
		success.AccountID = &id
		return success

	case body.CryptoUpdate != nil:
		c := body.CryptoUpdate
		target, status := n.liveAccount(c.Account)
		if status != ledger.StatusOK {
			return result(status)
		}
		if !v.ok(target.key) {
			return result(ledger.StatusInvalidSignature)
		}
		if c.Key != nil {
			if c.Key.Validate() != nil {
				return result(ledger.StatusBadEncoding)
			}
			if !v.ok(c.Key) {
				return result(ledger.StatusInvalidSignature)
			}
			target.key = c.Key
		}
		if c.AutoRenewPeriod > 0 {
			target.autoRenew = c.AutoRenewPeriod
		}
		if c.Expiration != (ledger.Timestamp{}) {
			target.expiration = c.Expiration
		}
		return success

	case body.CryptoDelete != nil:
		c := body.CryptoDelete
		target, status := n.liveAccount(c.Account)
		if status != ledger.StatusOK {
			return result(status)
		}
		beneficiary, status := n.liveAccount(c.TransferAccount)
		if status != ledger.StatusOK {
			return result(status)
		}
		if c.Account == c.TransferAccount {
			return result(ledger.StatusInvalidAccountID)
		}
		if !v.ok(target.key) {
			return result(ledger.StatusInvalidSignature)
		}
		beneficiary.balance += target.balance
		target.balance = 0
		target.deleted = true
		return success

	case body.CryptoTransfer != nil:
		return result(n.transfer(body.CryptoTransfer.Transfers, v))

	case body.FileCreate != nil:
		c := body.FileCreate
		if len(c.Keys.Keys) > 0 && !v.ok(c.Keys) {
			return result(ledger.StatusInvalidSignature)
		}
		id := ledger.FileID{Num: n.allocate()}
		n.files[id] = &file{keys: c.Keys, contents: append([]byte(nil), c.Contents...), expiration: c.Expiration}
		success.FileID = &id
		return success

	case body.FileUpdate != nil:
		c := body.FileUpdate
		f, status := n.mutableFile(c.File, v)
		if status != ledger.StatusOK {
			return result(status)
		}
		if len(c.Keys.Keys) > 0 {
			if !v.ok(c.Keys) {
				return result(ledger.StatusInvalidSignature)
			}
			f.keys = c.Keys
		}
		if c.Contents != nil {
			f.contents = append([]byte(nil), c.Contents...)
		}
		if c.Expiration != (ledger.Timestamp{}) {
			f.expiration = c.Expiration
		}
		return success

	case body.FileAppend != nil:
		c := body.FileAppend
		f, status := n.mutableFile(c.File, v)
		if status != ledger.StatusOK {
			return result(status)
		}
		f.contents = append(f.contents, c.Contents...)
		return success

	case body.FileDelete != nil:
		f, status := n.mutableFile(body.FileDelete.File, v)
		if status != ledger.StatusOK {
			return result(status)
		}
		f.deleted = true
		return success

	case body.ContractCreate != nil:
		c := body.ContractCreate
		f, ok := n.files[c.File]
		if !ok || f.deleted {
			return result(ledger.StatusInvalidFileID)
		}
		if len(f.contents) == 0 {
			return result(ledger.StatusFileContentEmpty)
		}
		if c.AdminKey != nil && !v.ok(c.AdminKey) {
			return result(ledger.StatusInvalidSignature)
		}
		if c.Gas <= 0 {
			return result(ledger.StatusInsufficientGas)
		}
		if c.InitialBalance < 0 || payer.balance < uint64(c.InitialBalance) {
			return result(ledger.StatusInsufficientPayerBalance)
		}
		payer.balance -= uint64(c.InitialBalance)
		id := ledger.ContractID{Num: n.allocate()}
		n.contracts[id] = &contract{
			adminKey:  c.AdminKey,
			bytecode:  append([]byte(nil), f.contents...),
			memo:      c.Memo,
			balance:   uint64(c.InitialBalance),
			autoRenew: c.AutoRenewPeriod,
		}
		success.ContractID = &id
		return success

	case body.ContractUpdate != nil:
		c := body.ContractUpdate
		target, status := n.adminContract(c.Contract, v)
		if status != ledger.StatusOK {
			return result(status)
		}
		if c.AdminKey != nil {
			if !v.ok(c.AdminKey) {
				return result(ledger.StatusInvalidSignature)
			}
			target.adminKey = c.AdminKey
		}
		if c.File != (ledger.FileID{}) {
			f, ok := n.files[c.File]
			if !ok || f.deleted {
				return result(ledger.StatusInvalidFileID)
			}
			target.bytecode = append([]byte(nil), f.contents...)
		}
		if c.Memo != "" {
			target.memo = c.Memo
		}
		if c.Expiration != (ledger.Timestamp{}) {
			target.expiration = c.Expiration
		}
		return success

	case body.ContractDelete != nil:
		c := body.ContractDelete
		target, status := n.adminContract(c.Contract, v)
		if status != ledger.StatusOK {
			return result(status)
		}
		beneficiary, status := n.liveAccount(c.TransferAccount)
		if status != ledger.StatusOK {
			return result(status)
		}
		beneficiary.balance += target.balance
		target.balance = 0
		target.deleted = true
		return success

	case body.ContractCall != nil:
		c := body.ContractCall
		target, ok := n.contracts[c.Contract]
		if !ok {
			return result(ledger.StatusInvalidContractID)
		}
		if target.deleted {
			return result(ledger.StatusContractDeleted)
		}
		if c.Gas <= 0 {
			return result(ledger.StatusInsufficientGas)
		}
		if c.Amount < 0 || payer.balance < uint64(c.Amount) {
			return result(ledger.StatusInsufficientPayerBalance)
		}
		payer.balance -= uint64(c.Amount)
		target.balance += uint64(c.Amount)
		return success

	case body.SystemDelete != nil:
		if !privileged[payerID.Num] {
			return result(ledger.StatusAuthorizationFailed)
		}
		return result(n.setDeleted(body.SystemDelete.File, body.SystemDelete.Contract, true))

	case body.SystemUndelete != nil:
		if !privileged[payerID.Num] {
			return result(ledger.StatusAuthorizationFailed)
		}
		return result(n.setDeleted(body.SystemUndelete.File, body.SystemUndelete.Contract, false))

	case body.Freeze != nil:
		if !privileged[payerID.Num] {
			return result(ledger.StatusAuthorizationFailed)
		}
		f := body.Freeze
		if !validClock(f.StartHour, f.StartMin) || !validClock(f.EndHour, f.EndMin) {
			return result(ledger.StatusInvalidFreezeTransactionBody)
		}
		return success
	}
	return result(ledger.StatusNotSupported)
}

func validClock(hour, minute int32) bool {
	return hour >= 0 && hour < 24 && minute >= 0 && minute < 60
}

func (n *Network) liveAccount(id ledger.AccountID) (*account, ledger.Status) {
	acct, ok := n.accounts[id]
	if !ok {
		return nil, ledger.StatusInvalidAccountID
	}
	if acct.deleted {
		return nil, ledger.StatusAccountDeleted
	}
	return acct, ledger.StatusOK
}

func (n *Network) mutableFile(id ledger.FileID, v verifier) (*file, ledger.Status) {
	f, ok := n.files[id]
	if !ok {
		return nil, ledger.StatusInvalidFileID
	}
	if f.deleted {
		return nil, ledger.StatusFileDeleted
	}
	if len(f.keys.Keys) == 0 {
		return nil, ledger.StatusAuthorizationFailed
	}
	if !v.ok(f.keys) {
		return nil, ledger.StatusInvalidSignature
	}
	return f, ledger.StatusOK
}

func (n *Network) adminContract(id ledger.ContractID, v verifier) (*contract, ledger.Status) {
	c, ok := n.contracts[id]
	if !ok {
		return nil, ledger.StatusInvalidContractID
	}
	if c.deleted {
		return nil, ledger.StatusContractDeleted
	}
	if c.adminKey == nil {
		return nil, ledger.StatusAuthorizationFailed
	}
	if !v.ok(c.adminKey) {
		return nil, ledger.StatusInvalidSignature
	}
	return c, ledger.StatusOK
}

func (n *Network) transfer(legs []ledger.AccountAmount, v verifier) ledger.Status {
	if len(legs) == 0 {
		return ledger.StatusInvalidAccountAmounts
	}
	var sum int64
	for _, leg := range legs {
		sum += leg.Amount
	}
	if sum != 0 {
		return ledger.StatusInvalidAccountAmounts
	}
	for _, leg := range legs {
		acct, status := n.liveAccount(leg.Account)
		if status != ledger.StatusOK {
			return status
		}
		if leg.Amount < 0 || acct.receiverSigRequired {
			if !v.ok(acct.key) {
				return ledger.StatusInvalidSignature
			}
		}
		if leg.Amount < 0 && acct.balance < uint64(-leg.Amount) {
			return ledger.StatusInsufficientAccountBalance
		}
	}
	for _, leg := range legs {
		acct := n.accounts[leg.Account]
		if leg.Amount < 0 {
			acct.balance -= uint64(-leg.Amount)
		} else {
			acct.balance += uint64(leg.Amount)
		}
	}
	return ledger.StatusSuccess
}

func (n *Network) setDeleted(fileID ledger.FileID, contractID ledger.ContractID, deleted bool) ledger.Status {
	switch {
	case fileID != (ledger.FileID{}):
		f, ok := n.files[fileID]
		if !ok {
			return ledger.StatusInvalidFileID
		}
		f.deleted = deleted
	case contractID != (ledger.ContractID{}):
		c, ok := n.contracts[contractID]
		if !ok {
			return ledger.StatusInvalidContractID
		}
		c.deleted = deleted
	default:
		return ledger.StatusInvalidTransactionBody
	}
	return ledger.StatusSuccess
}
