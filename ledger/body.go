package ledger

import (
	"errors"
	"fmt"

	"ledgerclient/keys"
)

var (
	// ErrEmptyBody is returned when a body carries no kind-specific payload.
	ErrEmptyBody = errors.New("ledger: transaction body has no payload")
	// ErrAmbiguousBody is returned when a body carries more than one payload.
	ErrAmbiguousBody = errors.New("ledger: transaction body has more than one payload")
)

// TransactionKind names the kind-specific payload of a body.
type TransactionKind int

const (
	KindUnknown TransactionKind = iota
	KindCryptoCreate
	KindCryptoUpdate
	KindCryptoDelete
	KindCryptoTransfer
	KindFileCreate
	KindFileUpdate
	KindFileAppend
	KindFileDelete
	KindContractCreate
	KindContractUpdate
	KindContractDelete
	KindContractCall
	KindSystemDelete
	KindSystemUndelete
	KindFreeze
)

var kindNames = [...]string{
	KindUnknown:        "unknown",
	KindCryptoCreate:   "crypto_create",
	KindCryptoUpdate:   "crypto_update",
	KindCryptoDelete:   "crypto_delete",
	KindCryptoTransfer: "crypto_transfer",
	KindFileCreate:     "file_create",
	KindFileUpdate:     "file_update",
	KindFileAppend:     "file_append",
	KindFileDelete:     "file_delete",
	KindContractCreate: "contract_create",
	KindContractUpdate: "contract_update",
	KindContractDelete: "contract_delete",
	KindContractCall:   "contract_call",
	KindSystemDelete:   "system_delete",
	KindSystemUndelete: "system_undelete",
	KindFreeze:         "freeze",
}

func (k TransactionKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// AccountAmount is one leg of a transfer. Negative amounts debit.
type AccountAmount struct {
	Account AccountID `json:"accountID"`
	Amount  int64     `json:"amount"`
}

// CryptoCreate creates an account guarded by Key.
type CryptoCreate struct {
	Key                 keys.Key `json:"-"`
	InitialBalance      uint64   `json:"initialBalance"`
	ReceiverSigRequired bool     `json:"receiverSigRequired,omitempty"`
	AutoRenewPeriod     int64    `json:"autoRenewPeriod,omitempty"`
}

// CryptoUpdate changes an account. A nil Key leaves the key unchanged.
type CryptoUpdate struct {
	Account         AccountID `json:"accountIDToUpdate"`
	Key             keys.Key  `json:"-"`
	AutoRenewPeriod int64     `json:"autoRenewPeriod,omitempty"`
	Expiration      Timestamp `json:"expirationTime"`
}

// CryptoDelete removes Account and moves its balance to TransferAccount.
type CryptoDelete struct {
	Account         AccountID `json:"deleteAccountID"`
	TransferAccount AccountID `json:"transferAccountID"`
}

// CryptoTransfer moves value between accounts. The node rejects legs that
// do not sum to zero.
type CryptoTransfer struct {
	Transfers []AccountAmount `json:"accountAmounts"`
}

// FileCreate creates a file whose modifications require every key in Keys.
// A file created with no keys is immutable.
type FileCreate struct {
	Keys       keys.KeyList `json:"keys"`
	Contents   []byte       `json:"contents,omitempty"`
	Expiration Timestamp    `json:"expirationTime"`
}

// FileUpdate replaces the contents and optionally the keys of a file. An
// empty Keys list leaves the keys unchanged.
type FileUpdate struct {
	File       FileID       `json:"fileID"`
	Keys       keys.KeyList `json:"keys"`
	Contents   []byte       `json:"contents,omitempty"`
	Expiration Timestamp    `json:"expirationTime"`
}

type FileAppend struct {
	File     FileID `json:"fileID"`
	Contents []byte `json:"contents"`
}

type FileDelete struct {
	File FileID `json:"fileID"`
}

// ContractCreate instantiates the bytecode stored in File.
type ContractCreate struct {
	File                  FileID   `json:"fileID"`
	AdminKey              keys.Key `json:"-"`
	Gas                   int64    `json:"gas"`
	InitialBalance        int64    `json:"initialBalance"`
	ConstructorParameters []byte   `json:"constructorParameters,omitempty"`
	AutoRenewPeriod       int64    `json:"autoRenewPeriod,omitempty"`
	Memo                  string   `json:"memo,omitempty"`
}

// ContractUpdate changes a contract. A nil AdminKey leaves it unchanged.
type ContractUpdate struct {
	Contract   ContractID `json:"contractID"`
	AdminKey   keys.Key   `json:"-"`
	File       FileID     `json:"fileID"`
	Expiration Timestamp  `json:"expirationTime"`
	Memo       string     `json:"memo,omitempty"`
}

type ContractDelete struct {
	Contract        ContractID `json:"contractID"`
	TransferAccount AccountID  `json:"transferAccountID"`
}

type ContractCall struct {
	Contract           ContractID `json:"contractID"`
	Gas                int64      `json:"gas"`
	Amount             int64      `json:"amount,omitempty"`
	FunctionParameters []byte     `json:"functionParameters,omitempty"`
}

// SystemDelete is a privileged delete of a file or contract. Exactly one of
// File or Contract is set.
type SystemDelete struct {
	File       FileID     `json:"fileID"`
	Contract   ContractID `json:"contractID"`
	Expiration Timestamp  `json:"expirationTime"`
}

type SystemUndelete struct {
	File     FileID     `json:"fileID"`
	Contract ContractID `json:"contractID"`
}

// Freeze schedules a network freeze window in UTC hours and minutes.
type Freeze struct {
	StartHour int32 `json:"startHour"`
	StartMin  int32 `json:"startMin"`
	EndHour   int32 `json:"endHour"`
	EndMin    int32 `json:"endMin"`
}

// TransactionBody is the signed content of a transaction: a common header and
// exactly one kind-specific payload.
type TransactionBody struct {
	TransactionID  TransactionID `json:"transactionID"`
	NodeAccount    AccountID     `json:"nodeAccountID"`
	TransactionFee uint64        `json:"transactionFee"`
	ValidDuration  int64         `json:"transactionValidDuration"` // seconds
	GenerateRecord bool          `json:"generateRecord,omitempty"`
	Memo           string        `json:"memo,omitempty"`

	CryptoCreate   *CryptoCreate   `json:"cryptoCreateAccount,omitempty"`
	CryptoUpdate   *CryptoUpdate   `json:"cryptoUpdateAccount,omitempty"`
	CryptoDelete   *CryptoDelete   `json:"cryptoDelete,omitempty"`
	CryptoTransfer *CryptoTransfer `json:"cryptoTransfer,omitempty"`
	FileCreate     *FileCreate     `json:"fileCreate,omitempty"`
	FileUpdate     *FileUpdate     `json:"fileUpdate,omitempty"`
	FileAppend     *FileAppend     `json:"fileAppend,omitempty"`
	FileDelete     *FileDelete     `json:"fileDelete,omitempty"`
	ContractCreate *ContractCreate `json:"contractCreateInstance,omitempty"`
	ContractUpdate *ContractUpdate `json:"contractUpdateInstance,omitempty"`
	ContractDelete *ContractDelete `json:"contractDeleteInstance,omitempty"`
	ContractCall   *ContractCall   `json:"contractCall,omitempty"`
	SystemDelete   *SystemDelete   `json:"systemDelete,omitempty"`
	SystemUndelete *SystemUndelete `json:"systemUndelete,omitempty"`
	Freeze         *Freeze         `json:"freeze,omitempty"`
}

// DefaultValidDuration is the validity window, in seconds, applied by
// builders that leave ValidDuration unset.
const DefaultValidDuration = 120

func (b *TransactionBody) payloads() []TransactionKind {
	var set []TransactionKind
	add := func(present bool, k TransactionKind) {
		if present {
			set = append(set, k)
		}
	}
	add(b.CryptoCreate != nil, KindCryptoCreate)
	add(b.CryptoUpdate != nil, KindCryptoUpdate)
	add(b.CryptoDelete != nil, KindCryptoDelete)
	add(b.CryptoTransfer != nil, KindCryptoTransfer)
	add(b.FileCreate != nil, KindFileCreate)
	add(b.FileUpdate != nil, KindFileUpdate)
	add(b.FileAppend != nil, KindFileAppend)
	add(b.FileDelete != nil, KindFileDelete)
	add(b.ContractCreate != nil, KindContractCreate)
	add(b.ContractUpdate != nil, KindContractUpdate)
	add(b.ContractDelete != nil, KindContractDelete)
	add(b.ContractCall != nil, KindContractCall)
	add(b.SystemDelete != nil, KindSystemDelete)
	add(b.SystemUndelete != nil, KindSystemUndelete)
	add(b.Freeze != nil, KindFreeze)
	return set
}

// Kind returns the payload kind, or KindUnknown when the body does not carry
// exactly one payload.
func (b *TransactionBody) Kind() TransactionKind {
	set := b.payloads()
	if len(set) != 1 {
		return KindUnknown
	}
	return set[0]
}

// Validate checks the structural invariants the client is responsible for.
// Ledger semantics are left to the node.
func (b *TransactionBody) Validate() error {
	switch set := b.payloads(); {
	case len(set) == 0:
		return ErrEmptyBody
	case len(set) > 1:
		return fmt.Errorf("%w: %v", ErrAmbiguousBody, set)
	}
	if b.TransactionID.IsZero() {
		return errors.New("ledger: transaction id required")
	}
	if b.NodeAccount.IsZero() {
		return errors.New("ledger: node account required")
	}
	switch {
	case b.CryptoCreate != nil:
		if b.CryptoCreate.Key == nil {
			return fmt.Errorf("%w: account key required", keys.ErrInvalidKey)
		}
		return b.CryptoCreate.Key.Validate()
	case b.CryptoUpdate != nil:
		if b.CryptoUpdate.Key != nil {
			return b.CryptoUpdate.Key.Validate()
		}
	case b.FileCreate != nil:
		if len(b.FileCreate.Keys.Keys) > 0 {
			return b.FileCreate.Keys.Validate()
		}
	case b.FileUpdate != nil:
		if len(b.FileUpdate.Keys.Keys) > 0 {
			return b.FileUpdate.Keys.Validate()
		}
	case b.ContractCreate != nil:
		if b.ContractCreate.AdminKey != nil {
			return b.ContractCreate.AdminKey.Validate()
		}
	case b.ContractUpdate != nil:
		if b.ContractUpdate.AdminKey != nil {
			return b.ContractUpdate.AdminKey.Validate()
		}
	}
	return nil
}
