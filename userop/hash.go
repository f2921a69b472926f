package userop

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Hash computes the EntryPoint v0.6 signing hash:
// keccak256(abi.encode(keccak256(pack(op)), entryPoint, chainID)) where
// pack(op) lays out sender, nonce, keccak(initCode), keccak(callData), the
// gas limits, the fee caps, and keccak(paymasterAndData) as 32-byte words.
func Hash(op *UserOperation, entryPoint common.Address, chainID *big.Int) common.Hash {
	var buf []byte
	buf = appendAddress(buf, op.Sender)
	buf = appendBig(buf, bigOf(op.Nonce))
	buf = append(buf, crypto.Keccak256(op.InitCode)...)
	buf = append(buf, crypto.Keccak256(op.CallData)...)
	buf = appendBig(buf, bigOf(op.CallGasLimit))
	buf = appendBig(buf, bigOf(op.VerificationGasLimit))
	buf = appendBig(buf, bigOf(op.PreVerificationGas))
	buf = appendBig(buf, bigOf(op.MaxFeePerGas))
	buf = appendBig(buf, bigOf(op.MaxPriorityFeePerGas))
	buf = append(buf, crypto.Keccak256(op.PaymasterAndData)...)

	inner := crypto.Keccak256(buf)

	var outer []byte
	outer = append(outer, common.LeftPadBytes(inner, 32)...)
	outer = appendAddress(outer, entryPoint)
	outer = appendBig(outer, chainID)

	return crypto.Keccak256Hash(outer)
}

// Sign sets op.Signature to the owner's ECDSA signature over the EIP-191
// personal-message digest of the operation hash. SimpleAccount recovers the
// signer from exactly this digest, with V in {27, 28}.
func Sign(op *UserOperation, key *ecdsa.PrivateKey, entryPoint common.Address, chainID *big.Int) error {
	digest := accounts.TextHash(Hash(op, entryPoint, chainID).Bytes())
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return fmt.Errorf("userop: signing failed: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	op.Signature = sig
	return nil
}

// appendAddress appends an address left-padded to a 32-byte word.
func appendAddress(buf []byte, addr common.Address) []byte {
	return append(buf, common.LeftPadBytes(addr.Bytes(), 32)...)
}

// appendBig appends a big.Int as a 32-byte big-endian word.
func appendBig(buf []byte, v *big.Int) []byte {
	padded := make([]byte, 32)
	if v != nil {
		b := v.Bytes()
		if len(b) > 32 {
			b = b[len(b)-32:]
		}
		copy(padded[32-len(b):], b)
	}
	return append(buf, padded...)
}
