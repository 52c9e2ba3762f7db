package lifecycle

import (
	"fmt"

	"ledgerclient/keys"
	"ledgerclient/ledger"
)

// RequiredSigners lists the key trees that must sign body: the payer, the
// existing keys of entities the body modifies or debits, and any new keys
// the body attaches. Trees are returned in that order; the signing engine
// drops repeated leaves.
func RequiredSigners(store *keys.Store, body *ledger.TransactionBody) ([]keys.Key, error) {
	var out []keys.Key
	bound := func(ref keys.EntityRef) error {
		k, ok := store.KeyFor(ref)
		if !ok {
			return fmt.Errorf("%w: %s", ErrEntityKeyUnknown, ref)
		}
		out = append(out, k)
		return nil
	}
	attach := func(k keys.Key) {
		if k != nil {
			out = append(out, k)
		}
	}
	attachList := func(l keys.KeyList) {
		if len(l.Keys) > 0 {
			out = append(out, l)
		}
	}

	if err := bound(body.TransactionID.Payer.Ref()); err != nil {
		return nil, err
	}
	switch {
	case body.CryptoCreate != nil:
		attach(body.CryptoCreate.Key)
	case body.CryptoUpdate != nil:
		if err := bound(body.CryptoUpdate.Account.Ref()); err != nil {
			return nil, err
		}
		attach(body.CryptoUpdate.Key)
	case body.CryptoDelete != nil:
		if err := bound(body.CryptoDelete.Account.Ref()); err != nil {
			return nil, err
		}
	case body.CryptoTransfer != nil:
		for _, leg := range body.CryptoTransfer.Transfers {
			if leg.Amount >= 0 {
				continue
			}
			if err := bound(leg.Account.Ref()); err != nil {
				return nil, err
			}
		}
	case body.FileCreate != nil:
		attachList(body.FileCreate.Keys)
	case body.FileUpdate != nil:
		if err := bound(body.FileUpdate.File.Ref()); err != nil {
			return nil, err
		}
		attachList(body.FileUpdate.Keys)
	case body.FileAppend != nil:
		if err := bound(body.FileAppend.File.Ref()); err != nil {
			return nil, err
		}
	case body.FileDelete != nil:
		if err := bound(body.FileDelete.File.Ref()); err != nil {
			return nil, err
		}
	case body.ContractCreate != nil:
		attach(body.ContractCreate.AdminKey)
	case body.ContractUpdate != nil:
		if err := bound(body.ContractUpdate.Contract.Ref()); err != nil {
			return nil, err
		}
		attach(body.ContractUpdate.AdminKey)
	case body.ContractDelete != nil:
		if err := bound(body.ContractDelete.Contract.Ref()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// bindCreated records the keys of entities a successful body created or
// re-keyed so later requests can sign for them.
func bindCreated(store *keys.Store, body *ledger.TransactionBody, receipt *ledger.Receipt) error {
	switch {
	case body.CryptoCreate != nil && receipt.AccountID != nil:
		return store.Bind(receipt.AccountID.Ref(), body.CryptoCreate.Key)
	case body.CryptoUpdate != nil && body.CryptoUpdate.Key != nil:
		return store.Bind(body.CryptoUpdate.Account.Ref(), body.CryptoUpdate.Key)
	case body.FileCreate != nil && receipt.FileID != nil && len(body.FileCreate.Keys.Keys) > 0:
		return store.Bind(receipt.FileID.Ref(), body.FileCreate.Keys)
	case body.FileUpdate != nil && len(body.FileUpdate.Keys.Keys) > 0:
		return store.Bind(body.FileUpdate.File.Ref(), body.FileUpdate.Keys)
	case body.ContractCreate != nil && receipt.ContractID != nil && body.ContractCreate.AdminKey != nil:
		return store.Bind(receipt.ContractID.Ref(), body.ContractCreate.AdminKey)
	case body.ContractUpdate != nil && body.ContractUpdate.AdminKey != nil:
		return store.Bind(body.ContractUpdate.Contract.Ref(), body.ContractUpdate.AdminKey)
	}
	return nil
}
