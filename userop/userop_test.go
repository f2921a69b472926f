package userop

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testEntryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	testChainID    = big.NewInt(11155111)
)

func validOp() *UserOperation {
	return &UserOperation{
		Sender:               common.HexToAddress("0x1234567890123456789012345678901234567890"),
		Nonce:                Uint64(1),
		CallData:             []byte{0xb6, 0x1d, 0x27, 0xf6},
		CallGasLimit:         Uint64(100000),
		VerificationGasLimit: Uint64(150000),
		PreVerificationGas:   Uint64(21000),
		MaxFeePerGas:         Uint64(2000000000),
		MaxPriorityFeePerGas: Uint64(1000000000),
	}
}

func TestValidate(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(Validate(validOp()))

	op := validOp()
	op.Sender = common.Address{}
	assert.ErrorIs(Validate(op), ErrSenderZero)

	op = validOp()
	op.VerificationGasLimit = Uint64(MinVerificationGas - 1)
	assert.ErrorIs(Validate(op), ErrGasTooLow)

	op = validOp()
	op.CallGasLimit = Uint64(MinCallGas - 1)
	assert.ErrorIs(Validate(op), ErrGasTooLow)

	op = validOp()
	op.MaxFeePerGas = nil
	assert.ErrorIs(Validate(op), ErrFeeMissing)

	op = validOp()
	op.MaxPriorityFeePerGas = Uint64(3000000000)
	assert.ErrorIs(Validate(op), ErrFeeOrdering)

	op = validOp()
	op.PaymasterAndData = make([]byte, MaxPaymasterAndDataLen+1)
	assert.ErrorIs(Validate(op), ErrPaymasterDataLen)

	// Limits wider than 64 bits are above the floors, not truncated.
	op = validOp()
	op.VerificationGasLimit = Big(new(big.Int).Lsh(big.NewInt(1), 64))
	op.CallGasLimit = Big(new(big.Int).Lsh(big.NewInt(1), 64))
	assert.NoError(Validate(op))
}

func TestNormalize(t *testing.T) {
	assert := assert.New(t)

	op := &UserOperation{Sender: common.HexToAddress("0x01")}
	Normalize(op)

	assert.NotNil(op.Nonce)
	assert.NotNil(op.CallGasLimit)
	assert.NotNil(op.VerificationGasLimit)
	assert.NotNil(op.PreVerificationGas)
	assert.NotNil(op.MaxFeePerGas)
	assert.NotNil(op.MaxPriorityFeePerGas)
	assert.Equal(int64(0), (*big.Int)(op.Nonce).Int64())
}

func TestMaxGasCost(t *testing.T) {
	assert := assert.New(t)

	op := validOp()
	// baseFee + tip below maxFee: effective price is baseFee + tip.
	cost := MaxGasCost(op, big.NewInt(500000000))
	totalGas := int64(100000 + 150000 + 21000)
	assert.Equal(new(big.Int).Mul(big.NewInt(totalGas), big.NewInt(1500000000)), cost)

	// baseFee pushes the price past maxFee: capped at maxFee.
	cost = MaxGasCost(op, big.NewInt(5000000000))
	assert.Equal(new(big.Int).Mul(big.NewInt(totalGas), big.NewInt(2000000000)), cost)
}

func TestHashDeterministic(t *testing.T) {
	assert := assert.New(t)

	h1 := Hash(validOp(), testEntryPoint, testChainID)
	h2 := Hash(validOp(), testEntryPoint, testChainID)
	assert.Equal(h1, h2)

	// Known EntryPoint v0.6 value for this operation, pinning the word
	// packing order, not just determinism.
	assert.Equal(
		common.HexToHash("0xa83bbe965013f0ecec413f1e5c89f2a074c6566675a55eb3c35a878e5c827044"),
		h1)

	// Every covered field must change the hash.
	op := validOp()
	op.Nonce = Uint64(2)
	assert.NotEqual(h1, Hash(op, testEntryPoint, testChainID))

	op = validOp()
	op.CallData = []byte{0x01}
	assert.NotEqual(h1, Hash(op, testEntryPoint, testChainID))

	op = validOp()
	op.PaymasterAndData = []byte{0x01}
	assert.NotEqual(h1, Hash(op, testEntryPoint, testChainID))

	assert.NotEqual(h1, Hash(validOp(), testEntryPoint, big.NewInt(1)))
	assert.NotEqual(h1, Hash(validOp(), common.HexToAddress("0x01"), testChainID))
}

func TestSignRecoversOwner(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)
	owner := crypto.PubkeyToAddress(key.PublicKey)

	op := validOp()
	require.NoError(Sign(op, key, testEntryPoint, testChainID))
	require.Len(op.Signature, 65)
	assert.True(op.Signature[64] == 27 || op.Signature[64] == 28)

	// Recover the signer the way SimpleAccount does: from the EIP-191
	// digest of the operation hash.
	digest := accounts.TextHash(Hash(op, testEntryPoint, testChainID).Bytes())
	sig := make([]byte, 65)
	copy(sig, op.Signature)
	sig[64] -= 27
	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(err)
	assert.Equal(owner, crypto.PubkeyToAddress(*pub))
}

func TestNonceRoundTrip(t *testing.T) {
	assert := assert.New(t)

	nonce := EncodeNonce(big.NewInt(7), 42)
	key, seq := DecodeNonce(nonce)
	assert.Equal(int64(7), key.Int64())
	assert.Equal(uint64(42), seq)

	// Default key is zero.
	key, seq = DecodeNonce(big.NewInt(5))
	assert.Equal(int64(0), key.Int64())
	assert.Equal(uint64(5), seq)

	key, seq = DecodeNonce(nil)
	assert.Equal(int64(0), key.Int64())
	assert.Equal(uint64(0), seq)
}

func TestEstimatePreVerificationGas(t *testing.T) {
	assert := assert.New(t)

	op := validOp()
	base := EstimatePreVerificationGas(op)
	assert.Greater(base, opGasOverhead)

	// Non-zero calldata bytes cost more than zero bytes.
	op.CallData = make([]byte, 100)
	zeros := EstimatePreVerificationGas(op)
	op.CallData = bytes.Repeat([]byte{0xff}, 100)
	nonZeros := EstimatePreVerificationGas(op)
	assert.Greater(nonZeros, zeros)
}
