// Package userop implements the ERC-4337 v0.6 user operation: the wire
// model bundler RPCs exchange, signing-hash computation, owner signatures,
// and static validation.
package userop

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DummySignature is a well-formed placeholder used for gas estimation
// before the real owner signature exists.
var DummySignature = hexutil.Bytes(append(bytes.Repeat([]byte{0xff}, 64), 0x1b))

const (
	// MinVerificationGas is the floor for the account validation phase.
	MinVerificationGas uint64 = 10000

	// MinCallGas is the floor for the execution phase.
	MinCallGas uint64 = 21000

	// MaxPaymasterAndDataLen caps the paymaster field.
	MaxPaymasterAndDataLen = 65536
)

var (
	ErrSenderZero       = errors.New("userop: sender is zero address")
	ErrGasTooLow        = errors.New("userop: gas limits below minimum")
	ErrFeeOrdering      = errors.New("userop: priority fee exceeds max fee")
	ErrFeeMissing       = errors.New("userop: fee caps not set")
	ErrPaymasterDataLen = errors.New("userop: paymasterAndData exceeds maximum length")
)

// UserOperation is an ERC-4337 v0.6 operation. Fields marshal to the hex
// encoding bundler endpoints expect.
type UserOperation struct {
	Sender               common.Address `json:"sender"`
	Nonce                *hexutil.Big   `json:"nonce"`
	InitCode             hexutil.Bytes  `json:"initCode"`
	CallData             hexutil.Bytes  `json:"callData"`
	CallGasLimit         *hexutil.Big   `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big   `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big   `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
	Signature            hexutil.Bytes  `json:"signature"`
}

// Normalize fills nil numeric fields with zero so the operation can be
// hashed, packed, and stored without nil checks at every use.
func Normalize(op *UserOperation) {
	for _, field := range []**hexutil.Big{
		&op.Nonce, &op.CallGasLimit, &op.VerificationGasLimit,
		&op.PreVerificationGas, &op.MaxFeePerGas, &op.MaxPriorityFeePerGas,
	} {
		if *field == nil {
			*field = new(hexutil.Big)
		}
	}
}

// Validate performs static field checks without touching state.
func Validate(op *UserOperation) error {
	if op.Sender == (common.Address{}) {
		return ErrSenderZero
	}
	if bigOf(op.VerificationGasLimit).Cmp(new(big.Int).SetUint64(MinVerificationGas)) < 0 {
		return ErrGasTooLow
	}
	if bigOf(op.CallGasLimit).Cmp(new(big.Int).SetUint64(MinCallGas)) < 0 {
		return ErrGasTooLow
	}
	maxFee := bigOf(op.MaxFeePerGas)
	tip := bigOf(op.MaxPriorityFeePerGas)
	if maxFee.Sign() <= 0 {
		return ErrFeeMissing
	}
	if tip.Cmp(maxFee) > 0 {
		return ErrFeeOrdering
	}
	if len(op.PaymasterAndData) > MaxPaymasterAndDataLen {
		return ErrPaymasterDataLen
	}
	return nil
}

// MaxGasCost returns the wei the sender (or its paymaster) must be able to
// cover: the sum of all gas limits priced at the effective gas price.
func MaxGasCost(op *UserOperation, baseFee *big.Int) *big.Int {
	total := new(big.Int).Add(bigOf(op.CallGasLimit), bigOf(op.VerificationGasLimit))
	total.Add(total, bigOf(op.PreVerificationGas))
	return total.Mul(total, effectiveGasPrice(bigOf(op.MaxFeePerGas), bigOf(op.MaxPriorityFeePerGas), baseFee))
}

// effectiveGasPrice is min(maxFee, baseFee + tip).
func effectiveGasPrice(maxFee, tip, baseFee *big.Int) *big.Int {
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	effective := new(big.Int).Add(baseFee, tip)
	if effective.Cmp(maxFee) > 0 {
		effective.Set(maxFee)
	}
	return effective
}

// bigOf unwraps a hexutil.Big, treating nil as zero.
func bigOf(v *hexutil.Big) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return (*big.Int)(v)
}

// Big wraps a big.Int for a UserOperation field.
func Big(v *big.Int) *hexutil.Big {
	return (*hexutil.Big)(v)
}

// Uint64 wraps a uint64 for a UserOperation field.
func Uint64(v uint64) *hexutil.Big {
	return (*hexutil.Big)(new(big.Int).SetUint64(v))
}
