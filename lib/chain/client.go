// Package chain implements resilient access to an ethereum-type network across
// an ordered pool of JSON-RPC endpoints.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/tarancss/tds/lib/chain/pool"
	"github.com/tarancss/tds/lib/metrics"
)

// Client presents a single logical "send request to the ledger" operation.
// On transport failure it advances the pool cursor and retries against the
// next endpoint, visiting every endpoint at most once per call. Advancing the
// cursor is observable process-wide: a failure discovered by one request
// biases all subsequent requests away from the bad endpoint.
type Client struct {
	pool *pool.Pool

	mu      sync.Mutex
	handles map[int]*rpc.Client // dialed endpoints by pool index
}

// NewClient returns a client over p. Endpoint connections are dialed lazily.
func NewClient(p *pool.Pool) *Client {
	return &Client{
		pool:    p,
		handles: make(map[int]*rpc.Client),
	}
}

// Pool returns the endpoint pool the client operates on.
func (c *Client) Pool() *pool.Pool {
	return c.pool
}

// CallContext performs method against the pool's current endpoint, failing
// over to the next endpoint on any transport error. Endpoints are tried in
// pool order starting from wherever the cursor currently points. If every
// endpoint fails, ErrNetworkExhausted is returned wrapping the last error.
//
// A well-formed JSON-RPC error response means the endpoint itself is healthy,
// so it is returned as-is without consuming the remaining endpoints.
func (c *Client) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	var last error

	for i := 0; i < c.pool.Len(); i++ {
		idx := c.pool.Index()
		ep := c.pool.Current()

		h, err := c.handle(ctx, idx, ep)
		if err == nil {
			cctx, cancel := context.WithTimeout(ctx, ep.Timeout)
			err = h.CallContext(cctx, result, method, args...)

			cancel()

			if err == nil {
				return nil
			}

			var rpcErr rpc.Error
			if errors.As(err, &rpcErr) {
				return err
			}
		}

		last = err

		log.Printf("[chain] endpoint %s failed on %s: %v, trying next", ep.URL, method, err)
		metrics.EndpointFailovers.Inc()
		c.drop(idx)
		c.pool.Advance()
	}

	return fmt.Errorf("%w: %w", ErrNetworkExhausted, last)
}

// handle returns the dialed connection for the endpoint at idx, dialing it
// first if needed.
func (c *Client) handle(ctx context.Context, idx int, ep pool.Endpoint) (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[idx]; ok {
		return h, nil
	}

	h, err := rpc.DialContext(ctx, ep.URL)
	if err != nil {
		return nil, err
	}

	c.handles[idx] = h

	return h, nil
}

// drop discards the cached connection for idx so the next use re-dials.
func (c *Client) drop(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[idx]; ok {
		h.Close()
		delete(c.handles, idx)
	}
}

// Close releases every dialed endpoint connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for idx, h := range c.handles {
		h.Close()
		delete(c.handles, idx)
	}
}
