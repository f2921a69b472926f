package models

import "time"

// UserOpRow is a user operation as bundlerd records it in MySQL.
type UserOpRow struct {
	Hash      string    `json:"userOpHash"`
	Sender    string    `json:"sender"`
	Nonce     string    `json:"nonce"`
	CallData  string    `json:"callData"`
	TxHash    string    `json:"transactionHash,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Row statuses. An operation is received, then either bundled into a
// transaction or rejected by validation/submission.
const (
	StatusReceived = "received"
	StatusBundled  = "bundled"
	StatusRejected = "rejected"
)
