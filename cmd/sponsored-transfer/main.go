// Sends a transfer from a deployed smart account, asking a paymaster to
// sponsor the fees. When sponsorship is declined the operation falls back
// to paying from the account's own balance.
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
	"aakit/paymaster"
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

	key, owner, err := wallet.Load(cfg.PrivateKey)
	if err != nil {
		log.Fatalf("Failed to load owner key (run deploy-account first): %v", err)
	}
	fmt.Println("Owner address:", owner.Hex())

	recipient := common.HexToAddress(config.GetEnv("RECIPIENT"))
	if recipient == (common.Address{}) {
		log.Fatal("RECIPIENT not set")
	}
	amount, ok := new(big.Int).SetString(config.GetEnv("AMOUNT_WEI"), 10)
	if !ok {
		amount = big.NewInt(1000000000000000) // 0.001 ETH
	}

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
	sender, err := account.Address(ctx, client, factory, owner, big.NewInt(0))
	if err != nil {
		log.Fatalf("Failed to compute account address: %v", err)
	}
	fmt.Println("Smart account address:", sender.Hex())

	deployed, err := account.IsDeployed(ctx, client, sender)
	if err != nil {
		log.Fatalf("Failed to check deployment: %v", err)
	}
	if !deployed {
		log.Fatalf("Smart account %s is not deployed, run deploy-account first", sender.Hex())
	}

	nonce, err := account.Nonce(ctx, client, entryPoint, sender, nil)
	if err != nil {
		log.Fatalf("Failed to read account nonce: %v", err)
	}
	callData, err := account.PackExecute(recipient, amount, nil)
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
		CallData:             callData,
		CallGasLimit:         userop.Uint64(100000),
		VerificationGasLimit: userop.Uint64(150000),
		MaxFeePerGas:         userop.Big(new(big.Int).Mul(gasPrice, big.NewInt(2))),
		MaxPriorityFeePerGas: userop.Big(tip),
		Signature:            userop.DummySignature,
	}
	if est, err := bundlerClient.EstimateUserOperationGas(ctx, op, entryPoint); err == nil {
		op.CallGasLimit = est.CallGasLimit
		op.VerificationGasLimit = est.VerificationGasLimit
		op.PreVerificationGas = est.PreVerificationGas
	} else {
		op.PreVerificationGas = userop.Uint64(userop.EstimatePreVerificationGas(op))
	}

	// Sponsorship is best-effort: a declined or unreachable paymaster must
	// not stop the transfer.
	if cfg.PaymasterURL != "" {
		if err := sponsor(ctx, cfg.PaymasterURL, op, entryPoint); err != nil {
			log.Printf("Paymaster sponsorship failed, paying from the account: %v", err)
		} else {
			fmt.Println("Fees sponsored by paymaster")
		}
	}

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

	fmt.Printf("Transferred %s wei to %s\n", amount, recipient.Hex())
	fmt.Println("Transaction:", receipt.Receipt.TransactionHash.Hex())
	fmt.Printf("Explorer: %s/tx/%s\n", cfg.ExplorerURL, receipt.Receipt.TransactionHash.Hex())
}

func sponsor(ctx context.Context, url string, op *userop.UserOperation, entryPoint common.Address) error {
	pm, err := paymaster.Dial(url)
	if err != nil {
		return err
	}
	defer pm.Close()

	res, err := pm.SponsorUserOperation(ctx, op, entryPoint)
	if err != nil {
		return err
	}
	paymaster.Apply(op, res)
	return nil
}
