// Package eip7702 upgrades an EOA to a smart account by delegating its code
// to a contract through a type-0x04 SetCode transaction, and reads the
// resulting delegation back.
package eip7702

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"github.com/inconshreveable/log15"
)

// upgradeGasLimit covers delegation processing plus the empty call the
// SetCode transaction makes to the EOA itself.
const upgradeGasLimit = 120000

var log = log15.New("module", "eip7702")

// SignAuthorization signs a SetCode authorization delegating the signer's
// account to delegate at the given account nonce.
func SignAuthorization(key *ecdsa.PrivateKey, chainID *big.Int, delegate common.Address, nonce uint64) (types.SetCodeAuthorization, error) {
	auth := types.SetCodeAuthorization{
		ChainID: *uint256.MustFromBig(chainID),
		Address: delegate,
		Nonce:   nonce,
	}
	signed, err := types.SignSetCode(key, auth)
	if err != nil {
		return types.SetCodeAuthorization{}, fmt.Errorf("eip7702: signing authorization: %w", err)
	}
	return signed, nil
}

// Upgrade builds, signs, and submits the SetCode transaction delegating the
// key's EOA to delegate. The transaction is self-broadcast, so the
// authorization nonce is the transaction nonce plus one: the account nonce
// increments before authorizations are processed.
func Upgrade(ctx context.Context, client *ethclient.Client, key *ecdsa.PrivateKey, delegate common.Address) (*types.Transaction, error) {
	return sendSetCode(ctx, client, key, delegate)
}

// Revoke clears the delegation by authorizing the zero address.
func Revoke(ctx context.Context, client *ethclient.Client, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	return sendSetCode(ctx, client, key, common.Address{})
}

func sendSetCode(ctx context.Context, client *ethclient.Client, key *ecdsa.PrivateKey, delegate common.Address) (*types.Transaction, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("eip7702: getting chain ID: %w", err)
	}
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("eip7702: getting nonce: %w", err)
	}

	auth, err := SignAuthorization(key, chainID, delegate, nonce+1)
	if err != nil {
		return nil, err
	}
	authority, err := auth.Authority()
	if err != nil {
		return nil, fmt.Errorf("eip7702: recovering authority: %w", err)
	}
	if authority != from {
		return nil, fmt.Errorf("eip7702: authority mismatch: got %s, want %s", authority, from)
	}

	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("eip7702: getting gas tip cap: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("eip7702: getting gas price: %w", err)
	}
	feeCap := new(big.Int).Mul(gasPrice, big.NewInt(2))

	tx := types.NewTx(&types.SetCodeTx{
		ChainID:   uint256.MustFromBig(chainID),
		Nonce:     nonce,
		GasTipCap: uint256.MustFromBig(tip),
		GasFeeCap: uint256.MustFromBig(feeCap),
		Gas:       upgradeGasLimit,
		To:        from,
		Value:     uint256.NewInt(0),
		AuthList:  []types.SetCodeAuthorization{auth},
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("eip7702: signing transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("eip7702: sending transaction: %w", err)
	}
	log.Info("set-code transaction sent", "txHash", signed.Hash(), "authority", from, "delegate", delegate)
	return signed, nil
}

// Delegation reads the code at addr and parses the 0xef0100 delegation
// designator. ok is false when the account is not delegated.
func Delegation(ctx context.Context, client *ethclient.Client, addr common.Address) (target common.Address, ok bool, err error) {
	code, err := client.CodeAt(ctx, addr, nil)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("eip7702: reading code at %s: %w", addr, err)
	}
	target, ok = types.ParseDelegation(code)
	return target, ok, nil
}

// Execute sends a regular EIP-1559 transaction from the upgraded EOA to
// itself, running the delegate's code with the given calldata. Use
// account.PackExecuteBatch to batch calls through the delegate.
func Execute(ctx context.Context, client *ethclient.Client, key *ecdsa.PrivateKey, value *big.Int, data []byte, gasLimit uint64) (*types.Transaction, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("eip7702: getting chain ID: %w", err)
	}
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("eip7702: getting nonce: %w", err)
	}
	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("eip7702: getting gas tip cap: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("eip7702: getting gas price: %w", err)
	}
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: new(big.Int).Mul(gasPrice, big.NewInt(2)),
		Gas:       gasLimit,
		To:        &from,
		Value:     value,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("eip7702: signing transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("eip7702: sending transaction: %w", err)
	}
	log.Info("delegated execution sent", "txHash", signed.Hash(), "from", from)
	return signed, nil
}
