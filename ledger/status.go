package ledger

import "fmt"

// Status is a ledger response code. It doubles as the precheck verdict of a
// submission and the postcheck outcome carried by receipts. The set is
// closed: codes outside it are reported by Known as unrecognised and callers
// must treat them as fatal.
type Status int32

const (
	StatusOK                             Status = 0
	StatusInvalidTransaction             Status = 1
	StatusPayerAccountNotFound           Status = 2
	StatusInvalidNodeAccount             Status = 3
	StatusTransactionExpired             Status = 4
	StatusInvalidTransactionStart        Status = 5
	StatusInvalidTransactionDuration     Status = 6
	StatusInvalidSignature               Status = 7
	StatusMemoTooLong                    Status = 8
	StatusInsufficientTxFee              Status = 9
	StatusInsufficientPayerBalance       Status = 10
	StatusDuplicateTransaction           Status = 11
	StatusBusy                           Status = 12
	StatusNotSupported                   Status = 13
	StatusInvalidFileID                  Status = 14
	StatusInvalidAccountID               Status = 15
	StatusInvalidContractID              Status = 16
	StatusInvalidTransactionID           Status = 17
	StatusReceiptNotFound                Status = 18
	StatusRecordNotFound                 Status = 19
	StatusInvalidSolidityID              Status = 20
	StatusUnknown                        Status = 21
	StatusSuccess                        Status = 22
	StatusFailInvalid                    Status = 23
	StatusFailFee                        Status = 24
	StatusFailBalance                    Status = 25
	StatusKeyRequired                    Status = 26
	StatusBadEncoding                    Status = 27
	StatusInsufficientAccountBalance     Status = 28
	StatusInvalidSolidityAddress         Status = 29
	StatusInsufficientGas                Status = 30
	StatusContractSizeLimitExceeded      Status = 31
	StatusLocalCallModificationException Status = 32
	StatusContractRevertExecuted         Status = 33
	StatusContractExecutionException     Status = 34
	StatusInvalidReceivingNodeAccount    Status = 35
	StatusMissingQueryHeader             Status = 36
	StatusAccountUpdateFailed            Status = 37
	StatusInvalidKeyEncoding             Status = 38
	StatusNullSolidityAddress            Status = 39
	StatusContractUpdateFailed           Status = 40
	StatusInvalidQueryHeader             Status = 41
	StatusInvalidFeeSubmitted            Status = 42
	StatusInvalidPayerSignature          Status = 43
	StatusKeyNotProvided                 Status = 44
	StatusInvalidExpirationTime          Status = 45
	StatusNoWaclKey                      Status = 46
	StatusFileContentEmpty               Status = 47
	StatusInvalidAccountAmounts          Status = 48
	StatusEmptyTransactionBody           Status = 49
	StatusInvalidTransactionBody         Status = 50
	StatusPlatformTransactionNotCreated  Status = 51
	StatusPlatformNotActive              Status = 52
	StatusAccountDeleted                 Status = 53
	StatusFileDeleted                    Status = 54
	StatusContractDeleted                Status = 55
	StatusEntityNotAllowedToDelete       Status = 56
	StatusAuthorizationFailed            Status = 57
	StatusTransactionOversize            Status = 58
	StatusAccountIsTreasury              Status = 59
	StatusInvalidFreezeTransactionBody   Status = 60
)

var statusNames = map[Status]string{
	StatusOK:                             "OK",
	StatusInvalidTransaction:             "INVALID_TRANSACTION",
	StatusPayerAccountNotFound:           "PAYER_ACCOUNT_NOT_FOUND",
	StatusInvalidNodeAccount:             "INVALID_NODE_ACCOUNT",
	StatusTransactionExpired:             "TRANSACTION_EXPIRED",
	StatusInvalidTransactionStart:        "INVALID_TRANSACTION_START",
	StatusInvalidTransactionDuration:     "INVALID_TRANSACTION_DURATION",
	StatusInvalidSignature:               "INVALID_SIGNATURE",
	StatusMemoTooLong:                    "MEMO_TOO_LONG",
	StatusInsufficientTxFee:              "INSUFFICIENT_TX_FEE",
	StatusInsufficientPayerBalance:       "INSUFFICIENT_PAYER_BALANCE",
	StatusDuplicateTransaction:           "DUPLICATE_TRANSACTION",
	StatusBusy:                           "BUSY",
	StatusNotSupported:                   "NOT_SUPPORTED",
	StatusInvalidFileID:                  "INVALID_FILE_ID",
	StatusInvalidAccountID:               "INVALID_ACCOUNT_ID",
	StatusInvalidContractID:              "INVALID_CONTRACT_ID",
	StatusInvalidTransactionID:           "INVALID_TRANSACTION_ID",
	StatusReceiptNotFound:                "RECEIPT_NOT_FOUND",
	StatusRecordNotFound:                 "RECORD_NOT_FOUND",
	StatusInvalidSolidityID:              "INVALID_SOLIDITY_ID",
	StatusUnknown:                        "UNKNOWN",
	StatusSuccess:                        "SUCCESS",
	StatusFailInvalid:                    "FAIL_INVALID",
	StatusFailFee:                        "FAIL_FEE",
	StatusFailBalance:                    "FAIL_BALANCE",
	StatusKeyRequired:                    "KEY_REQUIRED",
	StatusBadEncoding:                    "BAD_ENCODING",
	StatusInsufficientAccountBalance:     "INSUFFICIENT_ACCOUNT_BALANCE",
	StatusInvalidSolidityAddress:         "INVALID_SOLIDITY_ADDRESS",
	StatusInsufficientGas:                "INSUFFICIENT_GAS",
	StatusContractSizeLimitExceeded:      "CONTRACT_SIZE_LIMIT_EXCEEDED",
	StatusLocalCallModificationException: "LOCAL_CALL_MODIFICATION_EXCEPTION",
	StatusContractRevertExecuted:         "CONTRACT_REVERT_EXECUTED",
	StatusContractExecutionException:     "CONTRACT_EXECUTION_EXCEPTION",
	StatusInvalidReceivingNodeAccount:    "INVALID_RECEIVING_NODE_ACCOUNT",
	StatusMissingQueryHeader:             "MISSING_QUERY_HEADER",
	StatusAccountUpdateFailed:            "ACCOUNT_UPDATE_FAILED",
	StatusInvalidKeyEncoding:             "INVALID_KEY_ENCODING",
	StatusNullSolidityAddress:            "NULL_SOLIDITY_ADDRESS",
	StatusContractUpdateFailed:           "CONTRACT_UPDATE_FAILED",
	StatusInvalidQueryHeader:             "INVALID_QUERY_HEADER",
	StatusInvalidFeeSubmitted:            "INVALID_FEE_SUBMITTED",
	StatusInvalidPayerSignature:          "INVALID_PAYER_SIGNATURE",
	StatusKeyNotProvided:                 "KEY_NOT_PROVIDED",
	StatusInvalidExpirationTime:          "INVALID_EXPIRATION_TIME",
	StatusNoWaclKey:                      "NO_WACL_KEY",
	StatusFileContentEmpty:               "FILE_CONTENT_EMPTY",
	StatusInvalidAccountAmounts:          "INVALID_ACCOUNT_AMOUNTS",
	StatusEmptyTransactionBody:           "EMPTY_TRANSACTION_BODY",
	StatusInvalidTransactionBody:         "INVALID_TRANSACTION_BODY",
	StatusPlatformTransactionNotCreated:  "PLATFORM_TRANSACTION_NOT_CREATED",
	StatusPlatformNotActive:              "PLATFORM_NOT_ACTIVE",
	StatusAccountDeleted:                 "ACCOUNT_DELETED",
	StatusFileDeleted:                    "FILE_DELETED",
	StatusContractDeleted:                "CONTRACT_DELETED",
	StatusEntityNotAllowedToDelete:       "ENTITY_NOT_ALLOWED_TO_DELETE",
	StatusAuthorizationFailed:            "AUTHORIZATION_FAILED",
	StatusTransactionOversize:            "TRANSACTION_OVERSIZE",
	StatusAccountIsTreasury:              "ACCOUNT_IS_TREASURY",
	StatusInvalidFreezeTransactionBody:   "INVALID_FREEZE_TRANSACTION_BODY",
}

var statusByName = func() map[string]Status {
	out := make(map[string]Status, len(statusNames))
	for code, name := range statusNames {
		out[name] = code
	}
	return out
}()

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// Known reports whether s belongs to the closed enumeration.
func (s Status) Known() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatus resolves a status name such as "BUSY".
func ParseStatus(name string) (Status, error) {
	if s, ok := statusByName[name]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("ledger: unknown status %q", name)
}

// ResponseType selects between the two phases of a paid query.
type ResponseType int32

const (
	AnswerOnly           ResponseType = 0
	AnswerStateProof     ResponseType = 1
	CostAnswer           ResponseType = 2
	CostAnswerStateProof ResponseType = 3
)

func (r ResponseType) String() string {
	switch r {
	case AnswerOnly:
		return "ANSWER_ONLY"
	case AnswerStateProof:
		return "ANSWER_STATE_PROOF"
	case CostAnswer:
		return "COST_ANSWER"
	case CostAnswerStateProof:
		return "COST_ANSWER_STATE_PROOF"
	default:
		return fmt.Sprintf("ResponseType(%d)", int32(r))
	}
}

// IsCost reports whether the response type only asks for a cost figure.
func (r ResponseType) IsCost() bool {
	return r == CostAnswer || r == CostAnswerStateProof
}
