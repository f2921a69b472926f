// Package account builds the on-chain inputs for a SimpleAccount-style
// smart account: counterfactual addresses, factory init code, execution
// calldata, and EntryPoint nonce reads.
package account

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const factoryABI = `[{"type":"function","name":"createAccount","inputs":[{"name":"owner","type":"address"},{"name":"salt","type":"uint256"}],"outputs":[{"name":"ret","type":"address"}],"stateMutability":"nonpayable"},{"type":"function","name":"getAddress","inputs":[{"name":"owner","type":"address"},{"name":"salt","type":"uint256"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"}]`

const accountABI = `[{"type":"function","name":"execute","inputs":[{"name":"dest","type":"address"},{"name":"value","type":"uint256"},{"name":"func","type":"bytes"}],"outputs":[],"stateMutability":"nonpayable"},{"type":"function","name":"executeBatch","inputs":[{"name":"dest","type":"address[]"},{"name":"value","type":"uint256[]"},{"name":"func","type":"bytes[]"}],"outputs":[],"stateMutability":"nonpayable"}]`

const entryPointABI = `[{"type":"function","name":"getNonce","inputs":[{"name":"sender","type":"address"},{"name":"key","type":"uint192"}],"outputs":[{"name":"nonce","type":"uint256"}],"stateMutability":"view"}]`

var (
	factoryAbi    = mustParseABI(factoryABI)
	accountAbi    = mustParseABI(accountABI)
	entryPointAbi = mustParseABI(entryPointABI)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// InitCode returns the user operation initCode deploying an account for
// owner: the factory address followed by the createAccount calldata.
func InitCode(factory, owner common.Address, salt *big.Int) ([]byte, error) {
	if salt == nil {
		salt = new(big.Int)
	}
	callData, err := factoryAbi.Pack("createAccount", owner, salt)
	if err != nil {
		return nil, fmt.Errorf("account: packing createAccount: %w", err)
	}
	return append(factory.Bytes(), callData...), nil
}

// PackExecute encodes a single execute(dest, value, func) call.
func PackExecute(dest common.Address, value *big.Int, data []byte) ([]byte, error) {
	if value == nil {
		value = new(big.Int)
	}
	packed, err := accountAbi.Pack("execute", dest, value, data)
	if err != nil {
		return nil, fmt.Errorf("account: packing execute: %w", err)
	}
	return packed, nil
}

// PackExecuteBatch encodes executeBatch(dest[], value[], func[]).
func PackExecuteBatch(dests []common.Address, values []*big.Int, datas [][]byte) ([]byte, error) {
	if len(dests) != len(values) || len(dests) != len(datas) {
		return nil, fmt.Errorf("account: batch length mismatch: %d dests, %d values, %d datas",
			len(dests), len(values), len(datas))
	}
	vals := make([]*big.Int, len(values))
	for i, v := range values {
		if v == nil {
			v = new(big.Int)
		}
		vals[i] = v
	}
	packed, err := accountAbi.Pack("executeBatch", dests, vals, datas)
	if err != nil {
		return nil, fmt.Errorf("account: packing executeBatch: %w", err)
	}
	return packed, nil
}

// Address asks the factory for the counterfactual account address via its
// getAddress(owner, salt) view. The factory performs the same CREATE2
// computation createAccount later deploys with, so the returned address is
// valid before and after deployment.
func Address(ctx context.Context, client *ethclient.Client, factory, owner common.Address, salt *big.Int) (common.Address, error) {
	if salt == nil {
		salt = new(big.Int)
	}
	callData, err := factoryAbi.Pack("getAddress", owner, salt)
	if err != nil {
		return common.Address{}, fmt.Errorf("account: packing getAddress: %w", err)
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: callData}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("account: getAddress call failed: %w", err)
	}
	results, err := factoryAbi.Unpack("getAddress", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("account: decoding getAddress result: %w", err)
	}
	return results[0].(common.Address), nil
}

// Nonce reads the account's next nonce for the given key from the
// EntryPoint. A nil key reads the default sequence.
func Nonce(ctx context.Context, client *ethclient.Client, entryPoint, sender common.Address, key *big.Int) (*big.Int, error) {
	if key == nil {
		key = new(big.Int)
	}
	callData, err := entryPointAbi.Pack("getNonce", sender, key)
	if err != nil {
		return nil, fmt.Errorf("account: packing getNonce: %w", err)
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &entryPoint, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("account: getNonce call failed: %w", err)
	}
	results, err := entryPointAbi.Unpack("getNonce", out)
	if err != nil {
		return nil, fmt.Errorf("account: decoding getNonce result: %w", err)
	}
	return results[0].(*big.Int), nil
}

// IsDeployed reports whether code exists at the account address.
func IsDeployed(ctx context.Context, client *ethclient.Client, addr common.Address) (bool, error) {
	code, err := client.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}
