package bundler

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Receipt is the bundler's view of an included user operation, wrapping the
// transaction receipt of the bundle it landed in.
type Receipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	EntryPoint    common.Address `json:"entryPoint"`
	Sender        common.Address `json:"sender"`
	Nonce         *hexutil.Big   `json:"nonce"`
	Paymaster     common.Address `json:"paymaster"`
	ActualGasCost *hexutil.Big   `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big   `json:"actualGasUsed"`
	Success       bool           `json:"success"`
	Reason        string         `json:"reason,omitempty"`
	Receipt       TxReceipt      `json:"receipt"`
}

// TxReceipt carries the fields of the bundle transaction receipt the
// commands report on.
type TxReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockHash       common.Hash    `json:"blockHash"`
	BlockNumber     *hexutil.Big   `json:"blockNumber"`
	From            common.Address `json:"from"`
	GasUsed         *hexutil.Big   `json:"gasUsed"`
	Status          *hexutil.Big   `json:"status"`
}
