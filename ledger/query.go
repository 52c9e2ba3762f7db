package ledger

import "fmt"

// QueryKind names the information a query asks for.
type QueryKind int

const (
	QueryUnknown QueryKind = iota
	QueryReceipt
	QueryRecord
	QueryAccountInfo
	QueryAccountBalance
	QueryAccountRecords
	QueryFileContents
	QueryFileInfo
	QueryContractInfo
	QueryContractBytecode
	QueryContractCallLocal
)

var queryNames = [...]string{
	QueryUnknown:           "unknown",
	QueryReceipt:           "receipt",
	QueryRecord:            "record",
	QueryAccountInfo:       "account_info",
	QueryAccountBalance:    "account_balance",
	QueryAccountRecords:    "account_records",
	QueryFileContents:      "file_contents",
	QueryFileInfo:          "file_info",
	QueryContractInfo:      "contract_info",
	QueryContractBytecode:  "contract_bytecode",
	QueryContractCallLocal: "contract_call_local",
}

func (k QueryKind) String() string {
	if k < 0 || int(k) >= len(queryNames) {
		return fmt.Sprintf("query(%d)", int(k))
	}
	return queryNames[k]
}

// Free reports whether the query is answered without payment.
func (k QueryKind) Free() bool { return k == QueryReceipt }

// QueryHeader carries the payment and the requested answer mode.
type QueryHeader struct {
	Payment      *Transaction `json:"payment,omitempty"`
	ResponseType ResponseType `json:"responseType"`
}

// ContractCallLocal runs a contract function against local state without
// creating a transaction.
type ContractCallLocal struct {
	Gas                int64  `json:"gas"`
	FunctionParameters []byte `json:"functionParameters,omitempty"`
	MaxResultSize      int64  `json:"maxResultSize,omitempty"`
}

// Query is a read request. Which target field is consulted depends on Kind.
type Query struct {
	Kind          QueryKind          `json:"kind"`
	Header        QueryHeader        `json:"header"`
	TransactionID TransactionID      `json:"transactionID"`
	Account       AccountID          `json:"accountID"`
	File          FileID             `json:"fileID"`
	Contract      ContractID         `json:"contractID"`
	Call          *ContractCallLocal `json:"call,omitempty"`
}

// WithHeader returns a copy of q carrying h.
func (q Query) WithHeader(h QueryHeader) *Query {
	q.Header = h
	return &q
}

func ReceiptQuery(id TransactionID) *Query {
	return &Query{Kind: QueryReceipt, TransactionID: id}
}

func RecordQuery(id TransactionID) *Query {
	return &Query{Kind: QueryRecord, TransactionID: id}
}

func AccountInfoQuery(id AccountID) *Query {
	return &Query{Kind: QueryAccountInfo, Account: id}
}

func AccountBalanceQuery(id AccountID) *Query {
	return &Query{Kind: QueryAccountBalance, Account: id}
}

func AccountRecordsQuery(id AccountID) *Query {
	return &Query{Kind: QueryAccountRecords, Account: id}
}

func FileContentsQuery(id FileID) *Query {
	return &Query{Kind: QueryFileContents, File: id}
}

func FileInfoQuery(id FileID) *Query {
	return &Query{Kind: QueryFileInfo, File: id}
}

func ContractInfoQuery(id ContractID) *Query {
	return &Query{Kind: QueryContractInfo, Contract: id}
}

func ContractBytecodeQuery(id ContractID) *Query {
	return &Query{Kind: QueryContractBytecode, Contract: id}
}

func ContractCallLocalQuery(id ContractID, call ContractCallLocal) *Query {
	return &Query{Kind: QueryContractCallLocal, Contract: id, Call: &call}
}
