// Package bundler is a JSON-RPC client for ERC-4337 bundler endpoints.
package bundler

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/inconshreveable/log15"

	"aakit/userop"
)

// DefaultPollInterval is how often WaitForUserOperationReceipt polls when no
// interval was configured.
const DefaultPollInterval = 2 * time.Second

// Client talks to a bundler over JSON-RPC.
type Client struct {
	rpc          *rpc.Client
	pollInterval time.Duration
	log          log15.Logger
}

// GasEstimate is the bundler's answer to eth_estimateUserOperationGas.
type GasEstimate struct {
	PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
	CallGasLimit         *hexutil.Big `json:"callGasLimit"`
}

// Dial connects to a bundler endpoint.
func Dial(url string) (*Client, error) {
	return DialContext(context.Background(), url)
}

// DialContext connects to a bundler endpoint, honoring the context during
// connection setup.
func DialContext(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("bundler: dialing %s: %w", url, err)
	}
	return &Client{
		rpc:          c,
		pollInterval: DefaultPollInterval,
		log:          log15.New("module", "bundler"),
	}, nil
}

// SetPollInterval overrides the receipt polling interval.
func (c *Client) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// SupportedEntryPoints returns the EntryPoint contracts the bundler serves.
func (c *Client) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	var result []common.Address
	if err := c.rpc.CallContext(ctx, &result, "eth_supportedEntryPoints"); err != nil {
		return nil, fmt.Errorf("bundler: eth_supportedEntryPoints: %w", err)
	}
	return result, nil
}

// ChainID returns the chain the bundler submits to.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var result hexutil.Big
	if err := c.rpc.CallContext(ctx, &result, "eth_chainId"); err != nil {
		return nil, fmt.Errorf("bundler: eth_chainId: %w", err)
	}
	return (*big.Int)(&result), nil
}

// SendUserOperation submits a signed operation and returns its userOp hash.
func (c *Client) SendUserOperation(ctx context.Context, op *userop.UserOperation, entryPoint common.Address) (common.Hash, error) {
	var result common.Hash
	if err := c.rpc.CallContext(ctx, &result, "eth_sendUserOperation", op, entryPoint); err != nil {
		return common.Hash{}, fmt.Errorf("bundler: eth_sendUserOperation: %w", err)
	}
	c.log.Info("user operation submitted", "userOpHash", result, "sender", op.Sender)
	return result, nil
}

// EstimateUserOperationGas asks the bundler for gas limits. The operation
// may carry a dummy signature; fee fields must be set.
func (c *Client) EstimateUserOperationGas(ctx context.Context, op *userop.UserOperation, entryPoint common.Address) (*GasEstimate, error) {
	var result GasEstimate
	if err := c.rpc.CallContext(ctx, &result, "eth_estimateUserOperationGas", op, entryPoint); err != nil {
		return nil, fmt.Errorf("bundler: eth_estimateUserOperationGas: %w", err)
	}
	return &result, nil
}

// GetUserOperationReceipt fetches the receipt for a userOp hash. It returns
// (nil, nil) while the operation is still pending.
func (c *Client) GetUserOperationReceipt(ctx context.Context, userOpHash common.Hash) (*Receipt, error) {
	var result *Receipt
	if err := c.rpc.CallContext(ctx, &result, "eth_getUserOperationReceipt", userOpHash); err != nil {
		return nil, fmt.Errorf("bundler: eth_getUserOperationReceipt: %w", err)
	}
	return result, nil
}

// WaitForUserOperationReceipt polls until the operation is included or the
// context expires. Callers bound the wait with a context deadline.
func (c *Client) WaitForUserOperationReceipt(ctx context.Context, userOpHash common.Hash) (*Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.GetUserOperationReceipt(ctx, userOpHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			c.log.Info("user operation mined",
				"userOpHash", userOpHash, "success", receipt.Success, "txHash", receipt.Receipt.TransactionHash)
			return receipt, nil
		}

		c.log.Debug("user operation pending", "userOpHash", userOpHash)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("bundler: waiting for receipt of %s: %w", userOpHash, ctx.Err())
		case <-ticker.C:
		}
	}
}
