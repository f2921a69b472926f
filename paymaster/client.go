// Package paymaster requests fee sponsorship for user operations from a
// paymaster RPC service.
package paymaster

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/inconshreveable/log15"

	"aakit/userop"
)

// Client talks to a paymaster sponsorship endpoint over JSON-RPC.
type Client struct {
	rpc *rpc.Client
	log log15.Logger
}

// SponsorResult is the paymaster's sponsorship answer: the paymasterAndData
// to attach, plus optional gas-limit overrides the paymaster verified
// against.
type SponsorResult struct {
	PaymasterAndData     hexutil.Bytes `json:"paymasterAndData"`
	PreVerificationGas   *hexutil.Big  `json:"preVerificationGas"`
	VerificationGasLimit *hexutil.Big  `json:"verificationGasLimit"`
	CallGasLimit         *hexutil.Big  `json:"callGasLimit"`
}

// Dial connects to a paymaster endpoint.
func Dial(url string) (*Client, error) {
	c, err := rpc.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("paymaster: dialing %s: %w", url, err)
	}
	return &Client{rpc: c, log: log15.New("module", "paymaster")}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// SponsorUserOperation asks the paymaster to sponsor the operation. The
// operation must carry its final gas and fee fields; the signature may be a
// placeholder.
func (c *Client) SponsorUserOperation(ctx context.Context, op *userop.UserOperation, entryPoint common.Address) (*SponsorResult, error) {
	var result SponsorResult
	if err := c.rpc.CallContext(ctx, &result, "pm_sponsorUserOperation", op, entryPoint); err != nil {
		return nil, fmt.Errorf("paymaster: pm_sponsorUserOperation: %w", err)
	}
	if len(result.PaymasterAndData) == 0 {
		return nil, fmt.Errorf("paymaster: sponsorship declined: empty paymasterAndData")
	}
	c.log.Info("sponsorship granted", "sender", op.Sender, "paymasterAndData", len(result.PaymasterAndData))
	return &result, nil
}

// Apply copies the sponsorship onto the operation. Gas overrides replace the
// caller's values only when the paymaster returned them. Must run before
// signing: paymasterAndData is covered by the operation hash.
func Apply(op *userop.UserOperation, res *SponsorResult) {
	op.PaymasterAndData = res.PaymasterAndData
	if res.PreVerificationGas != nil {
		op.PreVerificationGas = res.PreVerificationGas
	}
	if res.VerificationGasLimit != nil {
		op.VerificationGasLimit = res.VerificationGasLimit
	}
	if res.CallGasLimit != nil {
		op.CallGasLimit = res.CallGasLimit
	}
}
