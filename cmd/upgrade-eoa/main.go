// Upgrades an EOA to a smart account via EIP-7702: signs a SetCode
// authorization delegating the account to a contract, submits the type-0x04
// transaction, verifies the delegation designator, then runs a batched
// execution through the upgraded account.
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"aakit/account"
	"aakit/config"
	"aakit/eip7702"
	"aakit/wallet"
)

const batchGasLimit = 200000

func main() {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Delegate == "" {
		log.Fatal("DELEGATE_ADDRESS not set")
	}
	delegate := common.HexToAddress(cfg.Delegate)
	ctx := context.Background()

	key, addr, err := wallet.Load(cfg.PrivateKey)
	if err != nil {
		log.Fatalf("Failed to load key: %v", err)
	}
	fmt.Println("EOA address:", addr.Hex())

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		log.Fatalf("Failed to connect to the Ethereum client: %v", err)
	}

	target, delegated, err := eip7702.Delegation(ctx, client, addr)
	if err != nil {
		log.Fatalf("Failed to read delegation: %v", err)
	}
	if delegated && target == delegate {
		fmt.Println("Account already delegates to", target.Hex())
	} else {
		tx, err := eip7702.Upgrade(ctx, client, key, delegate)
		if err != nil {
			log.Fatalf("Failed to upgrade EOA: %v", err)
		}
		fmt.Println("SetCode transaction:", tx.Hash().Hex())
		fmt.Printf("Explorer: %s/tx/%s\n", cfg.ExplorerURL, tx.Hash().Hex())

		waitCtx, cancel := context.WithTimeout(ctx, cfg.ReceiptPollTimeout)
		receipt, err := bind.WaitMined(waitCtx, client, tx)
		cancel()
		if err != nil {
			log.Fatalf("Failed waiting for SetCode transaction: %v", err)
		}
		if receipt.Status != 1 {
			log.Fatalf("SetCode transaction %s reverted", tx.Hash().Hex())
		}

		target, delegated, err = eip7702.Delegation(ctx, client, addr)
		if err != nil {
			log.Fatalf("Failed to read delegation: %v", err)
		}
		if !delegated || target != delegate {
			log.Fatalf("Delegation not set: got %s, want %s", target.Hex(), delegate.Hex())
		}
		fmt.Println("EOA now delegates to", target.Hex())
	}

	// Exercise the upgraded account with a two-call batch: small transfers
	// to deterministic scratch addresses.
	amount := big.NewInt(1000000000000000) // 0.001 ETH each
	dests := []common.Address{
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}
	callData, err := account.PackExecuteBatch(dests, []*big.Int{amount, amount}, [][]byte{nil, nil})
	if err != nil {
		log.Fatalf("Failed to pack batch: %v", err)
	}

	total := new(big.Int).Mul(amount, big.NewInt(2))
	tx, err := eip7702.Execute(ctx, client, key, total, callData, batchGasLimit)
	if err != nil {
		log.Fatalf("Failed to execute batch: %v", err)
	}
	fmt.Println("Batch transaction:", tx.Hash().Hex())

	waitCtx, cancel := context.WithTimeout(ctx, cfg.ReceiptPollTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, client, tx)
	if err != nil {
		log.Fatalf("Failed waiting for batch transaction: %v", err)
	}

	fmt.Printf("Batch executed in block %s (gas used %d)\n", receipt.BlockNumber, receipt.GasUsed)
	fmt.Printf("Explorer: %s/tx/%s\n", cfg.ExplorerURL, tx.Hash().Hex())
}
