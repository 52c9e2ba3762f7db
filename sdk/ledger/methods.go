package ledger

import (
	"fmt"

	"ledgerclient/ledger"
)

// Service names as exposed by ledger nodes.
const (
	CryptoService        = "proto.CryptoService"
	FileService          = "proto.FileService"
	SmartContractService = "proto.SmartContractService"
	FreezeService        = "proto.FreezeService"
)

type route struct {
	service string
	method  string
}

func (r route) fullMethod() string { return "/" + r.service + "/" + r.method }

var transactionRoutes = map[ledger.TransactionKind]route{
	ledger.KindCryptoCreate:   {CryptoService, "createAccount"},
	ledger.KindCryptoUpdate:   {CryptoService, "updateAccount"},
	ledger.KindCryptoDelete:   {CryptoService, "cryptoDelete"},
	ledger.KindCryptoTransfer: {CryptoService, "cryptoTransfer"},
	ledger.KindFileCreate:     {FileService, "createFile"},
	ledger.KindFileUpdate:     {FileService, "updateFile"},
	ledger.KindFileAppend:     {FileService, "appendContent"},
	ledger.KindFileDelete:     {FileService, "deleteFile"},
	ledger.KindContractCreate: {SmartContractService, "createContract"},
	ledger.KindContractUpdate: {SmartContractService, "updateContract"},
	ledger.KindContractDelete: {SmartContractService, "deleteContract"},
	ledger.KindContractCall:   {SmartContractService, "contractCallMethod"},
	ledger.KindFreeze:         {FreezeService, "freeze"},
}

var queryRoutes = map[ledger.QueryKind]route{
	ledger.QueryReceipt:           {CryptoService, "getTransactionReceipts"},
	ledger.QueryRecord:            {CryptoService, "getTxRecordByTxID"},
	ledger.QueryAccountInfo:       {CryptoService, "getAccountInfo"},
	ledger.QueryAccountBalance:    {CryptoService, "cryptoGetBalance"},
	ledger.QueryAccountRecords:    {CryptoService, "getAccountRecords"},
	ledger.QueryFileContents:      {FileService, "getFileContent"},
	ledger.QueryFileInfo:          {FileService, "getFileInfo"},
	ledger.QueryContractInfo:      {SmartContractService, "getContractInfo"},
	ledger.QueryContractBytecode:  {SmartContractService, "ContractGetBytecode"},
	ledger.QueryContractCallLocal: {SmartContractService, "contractCallLocalMethod"},
}

// transactionRoute resolves the RPC for a body. System delete and undelete
// go to the service owning the targeted entity.
func transactionRoute(body *ledger.TransactionBody) (route, error) {
	switch kind := body.Kind(); kind {
	case ledger.KindSystemDelete:
		if body.SystemDelete.Contract != (ledger.ContractID{}) {
			return route{SmartContractService, "systemDelete"}, nil
		}
		return route{FileService, "systemDelete"}, nil
	case ledger.KindSystemUndelete:
		if body.SystemUndelete.Contract != (ledger.ContractID{}) {
			return route{SmartContractService, "systemUndelete"}, nil
		}
		return route{FileService, "systemUndelete"}, nil
	default:
		r, ok := transactionRoutes[kind]
		if !ok {
			return route{}, fmt.Errorf("sdk/ledger: no rpc for transaction kind %s", kind)
		}
		return r, nil
	}
}

func queryRoute(kind ledger.QueryKind) (route, error) {
	r, ok := queryRoutes[kind]
	if !ok {
		return route{}, fmt.Errorf("sdk/ledger: no rpc for query kind %s", kind)
	}
	return r, nil
}
