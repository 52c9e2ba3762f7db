package ledger

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"ledgerclient/crypto"
	"ledgerclient/keys"
)

// Field numbers of the body encoding. Fields are always written in ascending
// order and zero scalars are omitted, so equal bodies encode to equal bytes.
const (
	fieldBodyTransactionID  protowire.Number = 1
	fieldBodyNodeAccount    protowire.Number = 2
	fieldBodyTransactionFee protowire.Number = 3
	fieldBodyValidDuration  protowire.Number = 4
	fieldBodyGenerateRecord protowire.Number = 5
	fieldBodyMemo           protowire.Number = 6
	fieldBodyContractCall   protowire.Number = 7
	fieldBodyContractCreate protowire.Number = 8
	fieldBodyContractUpdate protowire.Number = 9
	fieldBodyCryptoCreate   protowire.Number = 11
	fieldBodyCryptoDelete   protowire.Number = 12
	fieldBodyCryptoTransfer protowire.Number = 14
	fieldBodyCryptoUpdate   protowire.Number = 15
	fieldBodyFileAppend     protowire.Number = 16
	fieldBodyFileCreate     protowire.Number = 17
	fieldBodyFileDelete     protowire.Number = 18
	fieldBodyFileUpdate     protowire.Number = 19
	fieldBodySystemDelete   protowire.Number = 20
	fieldBodySystemUndelete protowire.Number = 21
	fieldBodyContractDelete protowire.Number = 22
	fieldBodyFreeze         protowire.Number = 23

	fieldKeyEd25519   protowire.Number = 2
	fieldKeyList      protowire.Number = 5
	fieldKeyThreshold protowire.Number = 6
	fieldKeySecp256k1 protowire.Number = 7
)

// EncodeBody returns the canonical byte encoding of body. Signatures bind to
// exactly these bytes.
func EncodeBody(body *TransactionBody) ([]byte, error) {
	if body == nil {
		return nil, ErrEmptyBody
	}
	var b []byte
	b = appendMessage(b, fieldBodyTransactionID, appendTransactionID(nil, body.TransactionID))
	b = appendMessage(b, fieldBodyNodeAccount, appendTriple(nil, body.NodeAccount.Shard, body.NodeAccount.Realm, body.NodeAccount.Num))
	b = appendUint(b, fieldBodyTransactionFee, body.TransactionFee)
	b = appendMessage(b, fieldBodyValidDuration, appendInt(nil, 1, body.ValidDuration))
	b = appendBool(b, fieldBodyGenerateRecord, body.GenerateRecord)
	b = appendString(b, fieldBodyMemo, body.Memo)

	var err error
	switch {
	case body.ContractCall != nil:
		c := body.ContractCall
		var m []byte
		m = appendMessage(m, 1, appendContractID(nil, c.Contract))
		m = appendInt(m, 2, c.Gas)
		m = appendInt(m, 3, c.Amount)
		m = appendBytes(m, 4, c.FunctionParameters)
		b = appendMessage(b, fieldBodyContractCall, m)
	case body.ContractCreate != nil:
		c := body.ContractCreate
		var m []byte
		m = appendMessage(m, 1, appendFileID(nil, c.File))
		if m, err = appendOptionalKey(m, 3, c.AdminKey); err != nil {
			return nil, err
		}
		m = appendInt(m, 4, c.Gas)
		m = appendInt(m, 5, c.InitialBalance)
		m = appendInt(m, 8, c.AutoRenewPeriod)
		m = appendBytes(m, 9, c.ConstructorParameters)
		m = appendString(m, 11, c.Memo)
		b = appendMessage(b, fieldBodyContractCreate, m)
	case body.ContractUpdate != nil:
		c := body.ContractUpdate
		var m []byte
		m = appendMessage(m, 1, appendContractID(nil, c.Contract))
		m = appendMessage(m, 2, appendTimestamp(nil, c.Expiration))
		if m, err = appendOptionalKey(m, 3, c.AdminKey); err != nil {
			return nil, err
		}
		m = appendMessage(m, 8, appendFileID(nil, c.File))
		m = appendString(m, 9, c.Memo)
		b = appendMessage(b, fieldBodyContractUpdate, m)
	case body.CryptoCreate != nil:
		c := body.CryptoCreate
		var m []byte
		if m, err = appendOptionalKey(m, 1, c.Key); err != nil {
			return nil, err
		}
		m = appendUint(m, 2, c.InitialBalance)
		m = appendBool(m, 8, c.ReceiverSigRequired)
		m = appendMessage(m, 9, appendInt(nil, 1, c.AutoRenewPeriod))
		b = appendMessage(b, fieldBodyCryptoCreate, m)
	case body.CryptoDelete != nil:
		c := body.CryptoDelete
		var m []byte
		m = appendMessage(m, 1, appendAccountID(nil, c.TransferAccount))
		m = appendMessage(m, 2, appendAccountID(nil, c.Account))
		b = appendMessage(b, fieldBodyCryptoDelete, m)
	case body.CryptoTransfer != nil:
		var list []byte
		for _, leg := range body.CryptoTransfer.Transfers {
			var aa []byte
			aa = appendMessage(aa, 1, appendAccountID(nil, leg.Account))
			aa = appendSint(aa, 2, leg.Amount)
			list = appendMessage(list, 1, aa)
		}
		b = appendMessage(b, fieldBodyCryptoTransfer, appendMessage(nil, 1, list))
	case body.CryptoUpdate != nil:
		c := body.CryptoUpdate
		var m []byte
		m = appendMessage(m, 2, appendAccountID(nil, c.Account))
		if m, err = appendOptionalKey(m, 3, c.Key); err != nil {
			return nil, err
		}
		m = appendMessage(m, 8, appendInt(nil, 1, c.AutoRenewPeriod))
		m = appendMessage(m, 9, appendTimestamp(nil, c.Expiration))
		b = appendMessage(b, fieldBodyCryptoUpdate, m)
	case body.FileAppend != nil:
		c := body.FileAppend
		var m []byte
		m = appendMessage(m, 2, appendFileID(nil, c.File))
		m = appendBytes(m, 4, c.Contents)
		b = appendMessage(b, fieldBodyFileAppend, m)
	case body.FileCreate != nil:
		c := body.FileCreate
		var m []byte
		m = appendMessage(m, 2, appendTimestamp(nil, c.Expiration))
		list, err := appendKeyList(nil, c.Keys.Keys)
		if err != nil {
			return nil, err
		}
		m = appendMessage(m, 3, list)
		m = appendBytes(m, 4, c.Contents)
		b = appendMessage(b, fieldBodyFileCreate, m)
	case body.FileDelete != nil:
		b = appendMessage(b, fieldBodyFileDelete, appendMessage(nil, 2, appendFileID(nil, body.FileDelete.File)))
	case body.FileUpdate != nil:
		c := body.FileUpdate
		var m []byte
		m = appendMessage(m, 1, appendFileID(nil, c.File))
		m = appendMessage(m, 2, appendTimestamp(nil, c.Expiration))
		if len(c.Keys.Keys) > 0 {
			list, err := appendKeyList(nil, c.Keys.Keys)
			if err != nil {
				return nil, err
			}
			m = appendMessage(m, 3, list)
		}
		m = appendBytes(m, 4, c.Contents)
		b = appendMessage(b, fieldBodyFileUpdate, m)
	case body.SystemDelete != nil:
		c := body.SystemDelete
		var m []byte
		m = appendMessage(m, 1, appendFileID(nil, c.File))
		m = appendMessage(m, 2, appendContractID(nil, c.Contract))
		m = appendMessage(m, 3, appendTimestamp(nil, c.Expiration))
		b = appendMessage(b, fieldBodySystemDelete, m)
	case body.SystemUndelete != nil:
		c := body.SystemUndelete
		var m []byte
		m = appendMessage(m, 1, appendFileID(nil, c.File))
		m = appendMessage(m, 2, appendContractID(nil, c.Contract))
		b = appendMessage(b, fieldBodySystemUndelete, m)
	case body.ContractDelete != nil:
		c := body.ContractDelete
		var m []byte
		m = appendMessage(m, 1, appendContractID(nil, c.Contract))
		m = appendMessage(m, 3, appendAccountID(nil, c.TransferAccount))
		b = appendMessage(b, fieldBodyContractDelete, m)
	case body.Freeze != nil:
		c := body.Freeze
		var m []byte
		m = appendInt(m, 1, int64(c.StartHour))
		m = appendInt(m, 2, int64(c.StartMin))
		m = appendInt(m, 3, int64(c.EndHour))
		m = appendInt(m, 4, int64(c.EndMin))
		b = appendMessage(b, fieldBodyFreeze, m)
	default:
		return nil, ErrEmptyBody
	}
	return b, nil
}

// EncodeKey returns the canonical encoding of a key tree.
func EncodeKey(k keys.Key) ([]byte, error) {
	switch v := k.(type) {
	case keys.Single:
		switch v.Type {
		case crypto.KeyTypeEd25519:
			return appendBytes(nil, fieldKeyEd25519, v.PublicKey), nil
		case crypto.KeyTypeSecp256k1:
			return appendBytes(nil, fieldKeySecp256k1, v.PublicKey), nil
		default:
			return nil, fmt.Errorf("%w: %v", keys.ErrInvalidKey, crypto.ErrUnsupportedKeyType)
		}
	case keys.KeyList:
		list, err := appendKeyList(nil, v.Keys)
		if err != nil {
			return nil, err
		}
		return appendMessage(nil, fieldKeyList, list), nil
	case keys.Threshold:
		list, err := appendKeyList(nil, v.Keys)
		if err != nil {
			return nil, err
		}
		var m []byte
		m = appendUint(m, 1, uint64(v.Threshold))
		m = appendMessage(m, 2, list)
		return appendMessage(nil, fieldKeyThreshold, m), nil
	default:
		return nil, fmt.Errorf("%w: nil key", keys.ErrInvalidKey)
	}
}

func appendKeyList(b []byte, members []keys.Key) ([]byte, error) {
	for _, member := range members {
		enc, err := EncodeKey(member)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, 1, enc)
	}
	return b, nil
}

func appendOptionalKey(b []byte, num protowire.Number, k keys.Key) ([]byte, error) {
	if k == nil {
		return b, nil
	}
	enc, err := EncodeKey(k)
	if err != nil {
		return nil, err
	}
	return appendMessage(b, num, enc), nil
}

func appendTransactionID(b []byte, id TransactionID) []byte {
	b = appendMessage(b, 1, appendTimestamp(nil, id.ValidStart))
	return appendMessage(b, 2, appendAccountID(nil, id.Payer))
}

func appendAccountID(b []byte, id AccountID) []byte {
	return appendTriple(b, id.Shard, id.Realm, id.Num)
}

func appendFileID(b []byte, id FileID) []byte {
	return appendTriple(b, id.Shard, id.Realm, id.Num)
}

func appendContractID(b []byte, id ContractID) []byte {
	return appendTriple(b, id.Shard, id.Realm, id.Num)
}

func appendTriple(b []byte, shard, realm, num int64) []byte {
	b = appendInt(b, 1, shard)
	b = appendInt(b, 2, realm)
	return appendInt(b, 3, num)
}

func appendTimestamp(b []byte, ts Timestamp) []byte {
	b = appendInt(b, 1, ts.Seconds)
	return appendInt(b, 2, int64(ts.Nanos))
}

func appendMessage(b []byte, num protowire.Number, inner []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, inner)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	return appendMessage(b, num, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	return appendUint(b, num, uint64(v))
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}
