// Deploys an ERC-4337 smart account: generates or loads the owner key,
// computes the counterfactual account address, and submits the first user
// operation carrying the factory init code through the bundler.
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"aakit/account"
	"aakit/bundler"
	"aakit/config"
	"aakit/userop"
	"aakit/wallet"
)

func main() {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx := context.Background()

	key, owner, generated, err := wallet.LoadOrGenerate(cfg.PrivateKey)
	if err != nil {
		log.Fatalf("Failed to prepare owner key: %v", err)
	}
	if generated {
		if err := wallet.PersistKey(config.EnvFile, key); err != nil {
			log.Fatalf("Failed to persist owner key: %v", err)
		}
		fmt.Println("Generated a new owner key and saved it to", config.EnvFile)
	}
	fmt.Println("Owner address:", owner.Hex())

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		log.Fatalf("Failed to connect to the Ethereum client: %v", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.Fatalf("Failed to get chain ID: %v", err)
	}

	bundlerClient, err := bundler.Dial(cfg.BundlerURL)
	if err != nil {
		log.Fatalf("Failed to connect to the bundler: %v", err)
	}
	defer bundlerClient.Close()
	bundlerClient.SetPollInterval(cfg.ReceiptPollInterval)

	entryPoint := common.HexToAddress(cfg.EntryPoint)
	factory := common.HexToAddress(cfg.AccountFactory)

	salt := big.NewInt(0)
	sender, err := account.Address(ctx, client, factory, owner, salt)
	if err != nil {
		log.Fatalf("Failed to compute account address: %v", err)
	}
	fmt.Println("Smart account address:", sender.Hex())

	deployed, err := account.IsDeployed(ctx, client, sender)
	if err != nil {
		log.Fatalf("Failed to check deployment: %v", err)
	}
	var initCode []byte
	if deployed {
		fmt.Println("Account is already deployed, sending a plain operation")
	} else {
		initCode, err = account.InitCode(factory, owner, salt)
		if err != nil {
			log.Fatalf("Failed to build init code: %v", err)
		}
	}

	nonce, err := account.Nonce(ctx, client, entryPoint, sender, nil)
	if err != nil {
		log.Fatalf("Failed to read account nonce: %v", err)
	}

	// The deployment operation executes a no-op call to the owner.
	callData, err := account.PackExecute(owner, nil, nil)
	if err != nil {
		log.Fatalf("Failed to pack call data: %v", err)
	}

	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		log.Fatalf("Failed to get gas tip cap: %v", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		log.Fatalf("Failed to get gas price: %v", err)
	}

	op := &userop.UserOperation{
		Sender:               sender,
		Nonce:                userop.Big(nonce),
		InitCode:             initCode,
		CallData:             callData,
		MaxFeePerGas:         userop.Big(new(big.Int).Mul(gasPrice, big.NewInt(2))),
		MaxPriorityFeePerGas: userop.Big(tip),
		Signature:            userop.DummySignature,
	}
	fillGasLimits(ctx, bundlerClient, op, entryPoint)

	if err := userop.Sign(op, key, entryPoint, chainID); err != nil {
		log.Fatalf("Failed to sign user operation: %v", err)
	}

	userOpHash, err := bundlerClient.SendUserOperation(ctx, op, entryPoint)
	if err != nil {
		log.Fatalf("Failed to send user operation: %v", err)
	}
	fmt.Println("UserOp hash:", userOpHash.Hex())

	waitCtx, cancel := context.WithTimeout(ctx, cfg.ReceiptPollTimeout)
	defer cancel()
	receipt, err := bundlerClient.WaitForUserOperationReceipt(waitCtx, userOpHash)
	if err != nil {
		log.Fatalf("Failed waiting for receipt: %v", err)
	}

	fmt.Println("Deployment transaction:", receipt.Receipt.TransactionHash.Hex())
	fmt.Printf("Explorer: %s/tx/%s\n", cfg.ExplorerURL, receipt.Receipt.TransactionHash.Hex())
	fmt.Printf("Smart account %s is live (success=%v)\n", sender.Hex(), receipt.Success)
}

// fillGasLimits asks the bundler for gas limits, falling back to local
// estimates when the endpoint does not support estimation.
func fillGasLimits(ctx context.Context, c *bundler.Client, op *userop.UserOperation, entryPoint common.Address) {
	est, err := c.EstimateUserOperationGas(ctx, op, entryPoint)
	if err == nil {
		op.CallGasLimit = est.CallGasLimit
		op.VerificationGasLimit = est.VerificationGasLimit
		op.PreVerificationGas = est.PreVerificationGas
		return
	}
	log.Printf("Gas estimation unavailable, using local estimates: %v", err)
	op.CallGasLimit = userop.Uint64(100000)
	op.VerificationGasLimit = userop.Uint64(500000)
	op.PreVerificationGas = userop.Uint64(userop.EstimatePreVerificationGas(op))
}
