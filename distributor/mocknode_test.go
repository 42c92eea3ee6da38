package distributor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/tds/lib/chain/ethereum"
	"github.com/tarancss/tds/lib/chain/pool"
)

const (
	testToken  = "0x37BC77fc80E85E7B76Ee59dEd861D0e40E9c58d5"
	testTxHash = "0x2ba030485e79b5a98275b45d940e6fdd07b40dea593ef3b2a69b0a02a68a5872"
)

// mockNode is an httptest JSON-RPC node with method-keyed canned handlers. It
// records call counts and the last raw transaction it was asked to broadcast.
type mockNode struct {
	t *testing.T

	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]func(params []json.RawMessage) (interface{}, map[string]interface{})
	lastRaw  string

	srv *httptest.Server
}

func newMockNode(t *testing.T) *mockNode {
	m := &mockNode{
		t:        t,
		calls:    make(map[string]int),
		handlers: make(map[string]func([]json.RawMessage) (interface{}, map[string]interface{})),
	}
	m.srv = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.srv.Close)

	return m
}

// newHealthyNode returns a mock node pre-loaded with the full happy path: a
// sepolia identity, a 10-token balance, fee price 100 and confirmed receipts.
func newHealthyNode(t *testing.T) *mockNode {
	m := newMockNode(t)
	m.result("eth_chainId", "0xaa36a7")
	m.result("eth_getBalance", "0x166c761c586733c0")
	m.result("eth_call", "0x8ac7230489e80000") // 10e18 base units
	m.result("eth_gasPrice", "0x64")
	m.result("eth_getTransactionCount", "0x15")
	m.result("eth_getTransactionReceipt", map[string]interface{}{
		"transactionHash": testTxHash,
		"blockNumber":     "0x29bf9b",
		"gasUsed":         "0xf67f",
		"status":          "0x1",
	})
	m.handle("eth_sendRawTransaction", func(params []json.RawMessage) (interface{}, map[string]interface{}) {
		var raw string
		require.NoError(t, json.Unmarshal(params[0], &raw))

		m.mu.Lock()
		m.lastRaw = raw
		m.mu.Unlock()

		return testTxHash, nil
	})

	return m
}

func (m *mockNode) handle(method string, fn func(params []json.RawMessage) (interface{}, map[string]interface{})) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = fn
}

func (m *mockNode) result(method string, res interface{}) {
	m.handle(method, func([]json.RawMessage) (interface{}, map[string]interface{}) {
		return res, nil
	})
}

func (m *mockNode) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[method]
}

func (m *mockNode) lastRawTx() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastRaw
}

func (m *mockNode) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	m.mu.Lock()
	m.calls[req.Method]++
	fn, ok := m.handlers[req.Method]
	m.mu.Unlock()

	res := map[string]interface{}{"jsonrpc": "2.0", "id": json.RawMessage(req.ID)}

	if !ok {
		res["error"] = map[string]interface{}{"code": -32601, "message": "method not handled: " + req.Method}
	} else if result, rpcErr := fn(req.Params); rpcErr != nil {
		res["error"] = rpcErr
	} else {
		res["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

// newTestManager binds a fresh signing key to a pool over the given endpoint URLs.
func newTestManager(t *testing.T, urls ...string) *ethereum.Manager {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	eps := make([]pool.Endpoint, len(urls))
	for i, u := range urls {
		eps[i] = pool.Endpoint{URL: u, Timeout: 2 * time.Second}
	}

	p, err := pool.New(eps)
	require.NoError(t, err)

	mgr, err := ethereum.NewManager(p, key, common.HexToAddress(testToken), crypto.PubkeyToAddress(key.PublicKey))
	require.NoError(t, err)

	return mgr
}
