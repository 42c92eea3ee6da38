// Package pool holds the ordered set of candidate JSON-RPC endpoints and the
// cursor to the currently preferred one.
package pool

import (
	"errors"
	"sync/atomic"
	"time"
)

// DefaultTimeout is applied to endpoints configured without one.
const DefaultTimeout = 30 * time.Second

// ErrNoEndpoints is returned when a pool is created without any endpoint.
var ErrNoEndpoints = errors.New("endpoint pool requires at least one endpoint")

// Endpoint is a single network-accessible address through which ledger
// operations can be issued.
type Endpoint struct {
	URL     string
	Timeout time.Duration
}

// Pool is an immutable, ordered sequence of endpoints with a wrapping cursor.
// Only the cursor mutates after construction. The cursor is a heuristic hint,
// not a correctness-critical value: concurrent advances race and the last
// writer wins.
type Pool struct {
	eps []Endpoint
	cur uint64
}

// New returns a pool over a copy of eps. Endpoints without a timeout get
// DefaultTimeout.
func New(eps []Endpoint) (*Pool, error) {
	if len(eps) == 0 {
		return nil, ErrNoEndpoints
	}

	cp := make([]Endpoint, len(eps))
	copy(cp, eps)

	for i := range cp {
		if cp[i].Timeout <= 0 {
			cp[i].Timeout = DefaultTimeout
		}
	}

	return &Pool{eps: cp}, nil
}

// Current returns the active endpoint.
func (p *Pool) Current() Endpoint {
	return p.eps[p.Index()]
}

// Advance moves the cursor to the next endpoint, wrapping, and returns it.
func (p *Pool) Advance() Endpoint {
	n := atomic.AddUint64(&p.cur, 1)

	return p.eps[int(n%uint64(len(p.eps)))]
}

// Index returns the position of the active endpoint in the configured order.
func (p *Pool) Index() int {
	return int(atomic.LoadUint64(&p.cur) % uint64(len(p.eps)))
}

// Len returns the number of configured endpoints.
func (p *Pool) Len() int {
	return len(p.eps)
}
