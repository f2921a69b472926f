package userop

// Local gas estimation, used when the bundler's estimate RPC is
// unavailable. The bundler's own numbers are always preferred.

// opGasOverhead is the intrinsic per-operation overhead beyond calldata.
const opGasOverhead uint64 = 21000

// EstimatePreVerificationGas approximates the calldata cost of including
// the packed operation in the bundle transaction.
func EstimatePreVerificationGas(op *UserOperation) uint64 {
	gas := opGasOverhead
	gas += calldataCost(op.Sender.Bytes())
	gas += calldataCost(bigOf(op.Nonce).Bytes())
	gas += calldataCost(op.InitCode)
	gas += calldataCost(op.CallData)
	gas += calldataCost(op.PaymasterAndData)
	gas += calldataCost(op.Signature)
	return gas
}

// calldataCost is 4 gas per zero byte, 16 per non-zero byte.
func calldataCost(data []byte) uint64 {
	var gas uint64
	for _, b := range data {
		if b == 0 {
			gas += 4
		} else {
			gas += 16
		}
	}
	return gas
}
