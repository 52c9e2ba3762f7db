package ledger

import "ledgerclient/keys"

// TransactionResponse is a node's precheck verdict on a submission. Cost is
// set when the precheck is INSUFFICIENT_TX_FEE and carries the fee the node
// would accept.
type TransactionResponse struct {
	Precheck Status `json:"nodeTransactionPrecheckCode"`
	Cost     uint64 `json:"cost,omitempty"`
}

// ResponseHeader is the common header of every query response.
type ResponseHeader struct {
	Precheck     Status       `json:"nodeTransactionPrecheckCode"`
	ResponseType ResponseType `json:"responseType"`
	Cost         uint64       `json:"cost,omitempty"`
}

// Receipt is the postcheck outcome of a transaction. The entity id fields
// are set by create transactions that reached SUCCESS.
type Receipt struct {
	Status     Status      `json:"status"`
	AccountID  *AccountID  `json:"accountID,omitempty"`
	FileID     *FileID     `json:"fileID,omitempty"`
	ContractID *ContractID `json:"contractID,omitempty"`
}

// ContractFunctionResult is the output of a contract call.
type ContractFunctionResult struct {
	Contract     ContractID `json:"contractID"`
	Result       []byte     `json:"contractCallResult,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	GasUsed      uint64     `json:"gasUsed"`
}

// Record is the full post-consensus description of a transaction.
type Record struct {
	Receipt            Receipt                 `json:"receipt"`
	TransactionHash    []byte                  `json:"transactionHash,omitempty"`
	ConsensusTimestamp Timestamp               `json:"consensusTimestamp"`
	TransactionID      TransactionID           `json:"transactionID"`
	Memo               string                  `json:"memo,omitempty"`
	TransactionFee     uint64                  `json:"transactionFee"`
	Transfers          []AccountAmount         `json:"transferList,omitempty"`
	CallResult         *ContractFunctionResult `json:"contractCallResult,omitempty"`
}

// AccountInfo describes an account.
type AccountInfo struct {
	Account             AccountID `json:"accountID"`
	Key                 keys.Key  `json:"-"`
	Balance             uint64    `json:"balance"`
	Deleted             bool      `json:"deleted,omitempty"`
	ReceiverSigRequired bool      `json:"receiverSigRequired,omitempty"`
	Expiration          Timestamp `json:"expirationTime"`
	AutoRenewPeriod     int64     `json:"autoRenewPeriod,omitempty"`
}

// FileInfo describes a file.
type FileInfo struct {
	File       FileID       `json:"fileID"`
	Size       int64        `json:"size"`
	Expiration Timestamp    `json:"expirationTime"`
	Deleted    bool         `json:"deleted,omitempty"`
	Keys       keys.KeyList `json:"keys"`
}

// ContractInfo describes a contract instance.
type ContractInfo struct {
	Contract        ContractID `json:"contractID"`
	Account         AccountID  `json:"accountID"`
	AdminKey        keys.Key   `json:"-"`
	Expiration      Timestamp  `json:"expirationTime"`
	AutoRenewPeriod int64      `json:"autoRenewPeriod,omitempty"`
	StorageSize     int64      `json:"storage"`
	Memo            string     `json:"memo,omitempty"`
	Balance         uint64     `json:"balance"`
}

// Response answers a Query. Only the field matching the query kind is set.
type Response struct {
	Header       ResponseHeader          `json:"header"`
	Receipt      *Receipt                `json:"receipt,omitempty"`
	Record       *Record                 `json:"record,omitempty"`
	Records      []Record                `json:"records,omitempty"`
	AccountInfo  *AccountInfo            `json:"accountInfo,omitempty"`
	Balance      uint64                  `json:"balance,omitempty"`
	FileContents []byte                  `json:"fileContents,omitempty"`
	FileInfo     *FileInfo               `json:"fileInfo,omitempty"`
	ContractInfo *ContractInfo           `json:"contractInfo,omitempty"`
	Bytecode     []byte                  `json:"bytecode,omitempty"`
	CallResult   *ContractFunctionResult `json:"functionResult,omitempty"`
}
