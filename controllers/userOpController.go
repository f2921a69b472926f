package controllers

import (
	"context"
	"crypto/ecdsa"
	"database/sql"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/inconshreveable/log15"

	"aakit/config"
	"aakit/models"
	"aakit/userop"
)

// handleOps gas limit for a single-operation bundle.
const bundleGasLimit = 1500000

// handleOpsABI is the EntryPoint v0.6 fragment bundlerd needs.
const handleOpsABI = `[{"type":"function","name":"handleOps","inputs":[{"name":"ops","type":"tuple[]","components":[{"name":"sender","type":"address"},{"name":"nonce","type":"uint256"},{"name":"initCode","type":"bytes"},{"name":"callData","type":"bytes"},{"name":"callGasLimit","type":"uint256"},{"name":"verificationGasLimit","type":"uint256"},{"name":"preVerificationGas","type":"uint256"},{"name":"maxFeePerGas","type":"uint256"},{"name":"maxPriorityFeePerGas","type":"uint256"},{"name":"paymasterAndData","type":"bytes"},{"name":"signature","type":"bytes"}]},{"name":"beneficiary","type":"address"}],"outputs":[],"stateMutability":"nonpayable"}]`

var entryPointAbi abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(handleOpsABI))
	if err != nil {
		panic(err)
	}
	entryPointAbi = parsed
}

// UserOpController accepts user operations over HTTP, records them, and
// submits them to the EntryPoint as handleOps bundles.
type UserOpController struct {
	Client *ethclient.Client

	db          *sql.DB
	entryPoint  common.Address
	beneficiary common.Address
	key         *ecdsa.PrivateKey
	chainID     *big.Int
	log         log15.Logger
}

// NewUserOpController connects to the chain named by RPC_URL and prepares
// the bundler signing key from BUNDLER_PRIVATE_KEY.
func NewUserOpController(db *sql.DB, entryPoint common.Address) (*UserOpController, error) {
	rpcURL := config.GetEnv("RPC_URL")
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the Ethereum client: %w", err)
	}

	keyHex := strings.TrimPrefix(config.GetEnv("BUNDLER_PRIVATE_KEY"), "0x")
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid BUNDLER_PRIVATE_KEY: %w", err)
	}

	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &UserOpController{
		Client:      client,
		db:          db,
		entryPoint:  entryPoint,
		beneficiary: crypto.PubkeyToAddress(key.PublicKey),
		key:         key,
		chainID:     chainID,
		log:         log15.New("module", "bundlerd"),
	}, nil
}

// InitSchema creates the user operation table.
func (ctrl *UserOpController) InitSchema() error {
	_, err := ctrl.db.Exec(`
		CREATE TABLE IF NOT EXISTS user_operations (
			hash       VARCHAR(66) PRIMARY KEY,
			sender     VARCHAR(42) NOT NULL,
			nonce      VARCHAR(66) NOT NULL,
			call_data  MEDIUMTEXT,
			tx_hash    VARCHAR(66),
			status     VARCHAR(16) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_userops_sender (sender)
		)`)
	return err
}

// SubmitUserOp handles POST /userop: validate, record, bundle, submit.
func (ctrl *UserOpController) SubmitUserOp(c *gin.Context) {
	var op userop.UserOperation
	if err := c.ShouldBindJSON(&op); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userop.Normalize(&op)
	if err := userop.Validate(&op); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opHash := userop.Hash(&op, ctrl.entryPoint, ctrl.chainID)
	if err := ctrl.storeUserOp(opHash, &op); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	txHash, err := ctrl.sendHandleOps(c.Request.Context(), &op)
	if err != nil {
		ctrl.markUserOp(opHash, "", models.StatusRejected)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctrl.markUserOp(opHash, txHash, models.StatusBundled)

	ctrl.log.Info("user operation bundled", "userOpHash", opHash, "txHash", txHash)
	c.JSON(http.StatusOK, gin.H{"userOpHash": opHash.Hex(), "transactionHash": txHash})
}

// GetUserOp handles GET /userop/:hash.
func (ctrl *UserOpController) GetUserOp(c *gin.Context) {
	hash := c.Param("hash")

	var row models.UserOpRow
	var txHash sql.NullString
	err := ctrl.db.QueryRow(
		`SELECT hash, sender, nonce, call_data, tx_hash, status, created_at
		 FROM user_operations WHERE hash = ?`, strings.ToLower(hash)).
		Scan(&row.Hash, &row.Sender, &row.Nonce, &row.CallData, &txHash, &row.Status, &row.CreatedAt)
	if err == sql.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "user operation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if txHash.Valid {
		row.TxHash = txHash.String
	}

	c.JSON(http.StatusOK, row)
}

func (ctrl *UserOpController) storeUserOp(hash common.Hash, op *userop.UserOperation) error {
	_, err := ctrl.db.Exec(
		`INSERT INTO user_operations (hash, sender, nonce, call_data, status)
		 VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE status = VALUES(status)`,
		strings.ToLower(hash.Hex()),
		strings.ToLower(op.Sender.Hex()),
		op.Nonce.String(),
		op.CallData.String(),
		models.StatusReceived,
	)
	return err
}

func (ctrl *UserOpController) markUserOp(hash common.Hash, txHash, status string) {
	if _, err := ctrl.db.Exec(
		`UPDATE user_operations SET tx_hash = ?, status = ? WHERE hash = ?`,
		txHash, status, strings.ToLower(hash.Hex()),
	); err != nil {
		ctrl.log.Warn("failed to update user operation row", "userOpHash", hash, "err", err)
	}
}

// sendHandleOps packs the operation into a handleOps call, signs the bundle
// transaction, and submits it to the EntryPoint.
func (ctrl *UserOpController) sendHandleOps(ctx context.Context, op *userop.UserOperation) (string, error) {
	data, err := PackHandleOps([]*userop.UserOperation{op}, ctrl.beneficiary)
	if err != nil {
		return "", err
	}

	nonce, err := ctrl.Client.PendingNonceAt(ctx, ctrl.beneficiary)
	if err != nil {
		return "", fmt.Errorf("error getting nonce: %w", err)
	}
	gasPrice, err := ctrl.Client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &ctrl.entryPoint,
		Value:    new(big.Int),
		Gas:      bundleGasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(ctrl.chainID), ctrl.key)
	if err != nil {
		return "", fmt.Errorf("error signing transaction: %w", err)
	}

	if err := ctrl.Client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("error sending transaction: %w", err)
	}
	return signedTx.Hash().Hex(), nil
}

// entryPointOp mirrors the EntryPoint v0.6 UserOperation tuple for ABI
// packing.
type entryPointOp struct {
	Sender               common.Address
	Nonce                *big.Int
	InitCode             []byte
	CallData             []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	PaymasterAndData     []byte
	Signature            []byte
}

// PackHandleOps ABI-encodes handleOps(ops, beneficiary).
func PackHandleOps(ops []*userop.UserOperation, beneficiary common.Address) ([]byte, error) {
	packed := make([]entryPointOp, 0, len(ops))
	for _, op := range ops {
		userop.Normalize(op)
		packed = append(packed, entryPointOp{
			Sender:               op.Sender,
			Nonce:                (*big.Int)(op.Nonce),
			InitCode:             op.InitCode,
			CallData:             op.CallData,
			CallGasLimit:         (*big.Int)(op.CallGasLimit),
			VerificationGasLimit: (*big.Int)(op.VerificationGasLimit),
			PreVerificationGas:   (*big.Int)(op.PreVerificationGas),
			MaxFeePerGas:         (*big.Int)(op.MaxFeePerGas),
			MaxPriorityFeePerGas: (*big.Int)(op.MaxPriorityFeePerGas),
			PaymasterAndData:     op.PaymasterAndData,
			Signature:            op.Signature,
		})
	}
	data, err := entryPointAbi.Pack("handleOps", packed, beneficiary)
	if err != nil {
		return nil, fmt.Errorf("error packing handleOps: %w", err)
	}
	return data, nil
}
