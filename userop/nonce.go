package userop

import "math/big"

// The EntryPoint nonce is a 256-bit slot split into a 192-bit key and a
// 64-bit sequence, so independent streams of operations can run in parallel
// under distinct keys.
const nonceSeqBits = 64

// EncodeNonce combines a nonce key and sequence into the 256-bit slot value.
func EncodeNonce(key *big.Int, seq uint64) *big.Int {
	if key == nil {
		return new(big.Int).SetUint64(seq)
	}
	result := new(big.Int).Lsh(key, nonceSeqBits)
	return result.Or(result, new(big.Int).SetUint64(seq))
}

// DecodeNonce splits a 256-bit nonce into its key and sequence parts.
func DecodeNonce(nonce *big.Int) (key *big.Int, seq uint64) {
	if nonce == nil {
		return new(big.Int), 0
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	seq = new(big.Int).And(nonce, mask).Uint64()
	key = new(big.Int).Rsh(nonce, nonceSeqBits)
	return key, seq
}
