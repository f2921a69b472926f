package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aakit/userop"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newTestServer serves JSON-RPC with per-method results. A nil handler result
// is sent as a JSON null.
func newTestServer(t *testing.T, handle func(req *rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding rpc request: %v", err)
			return
		}
		result, err := json.Marshal(handle(&req))
		if err != nil {
			t.Errorf("encoding rpc result: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
	}))
}

func TestSendUserOperation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	wantHash := common.HexToHash("0xdeadbeef00000000000000000000000000000000000000000000000000000001")
	var gotMethod string
	srv := newTestServer(t, func(req *rpcRequest) interface{} {
		gotMethod = req.Method
		require.Len(req.Params, 2)
		return wantHash
	})
	defer srv.Close()

	c, err := Dial(srv.URL)
	require.NoError(err)
	defer c.Close()

	op := &userop.UserOperation{Sender: common.HexToAddress("0x01")}
	userop.Normalize(op)
	hash, err := c.SendUserOperation(context.Background(), op, common.HexToAddress("0x02"))
	require.NoError(err)
	assert.Equal(wantHash, hash)
	assert.Equal("eth_sendUserOperation", gotMethod)
}

func TestEstimateUserOperationGas(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := newTestServer(t, func(req *rpcRequest) interface{} {
		return map[string]string{
			"preVerificationGas":   "0xc350",
			"verificationGasLimit": "0x186a0",
			"callGasLimit":         "0x30d40",
		}
	})
	defer srv.Close()

	c, err := Dial(srv.URL)
	require.NoError(err)
	defer c.Close()

	op := &userop.UserOperation{Sender: common.HexToAddress("0x01")}
	userop.Normalize(op)
	est, err := c.EstimateUserOperationGas(context.Background(), op, common.HexToAddress("0x02"))
	require.NoError(err)
	assert.Equal(uint64(50000), est.PreVerificationGas.ToInt().Uint64())
	assert.Equal(uint64(100000), est.VerificationGasLimit.ToInt().Uint64())
	assert.Equal(uint64(200000), est.CallGasLimit.ToInt().Uint64())
}

func TestWaitForUserOperationReceipt(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	opHash := common.HexToHash("0xabc0000000000000000000000000000000000000000000000000000000000001")
	txHash := common.HexToHash("0xdef0000000000000000000000000000000000000000000000000000000000002")

	// Pending on the first poll, included on the second.
	var calls int32
	srv := newTestServer(t, func(req *rpcRequest) interface{} {
		require.Equal("eth_getUserOperationReceipt", req.Method)
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil
		}
		return map[string]interface{}{
			"userOpHash": opHash,
			"success":    true,
			"receipt": map[string]interface{}{
				"transactionHash": txHash,
				"blockNumber":     "0x10",
			},
		}
	})
	defer srv.Close()

	c, err := Dial(srv.URL)
	require.NoError(err)
	defer c.Close()
	c.SetPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	receipt, err := c.WaitForUserOperationReceipt(ctx, opHash)
	require.NoError(err)
	assert.True(receipt.Success)
	assert.Equal(opHash, receipt.UserOpHash)
	assert.Equal(txHash, receipt.Receipt.TransactionHash)
	assert.GreaterOrEqual(atomic.LoadInt32(&calls), int32(2))
}

func TestWaitForUserOperationReceiptTimeout(t *testing.T) {
	require := require.New(t)

	srv := newTestServer(t, func(req *rpcRequest) interface{} {
		return nil
	})
	defer srv.Close()

	c, err := Dial(srv.URL)
	require.NoError(err)
	defer c.Close()
	c.SetPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.WaitForUserOperationReceipt(ctx, common.Hash{})
	require.ErrorIs(err, context.DeadlineExceeded)
}

func TestSupportedEntryPoints(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ep := common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	srv := newTestServer(t, func(req *rpcRequest) interface{} {
		return []common.Address{ep}
	})
	defer srv.Close()

	c, err := Dial(srv.URL)
	require.NoError(err)
	defer c.Close()

	eps, err := c.SupportedEntryPoints(context.Background())
	require.NoError(err)
	assert.Equal([]common.Address{ep}, eps)
}
