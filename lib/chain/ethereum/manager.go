package ethereum

import (
	"context"
	"crypto/ecdsa"
	"log"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/tds/lib/chain"
	"github.com/tarancss/tds/lib/chain/pool"
)

// Manager owns the process-wide network session lifecycle. Callers obtain the
// current session through Current and never capture one across a reset: a
// reset discards the session and installs a freshly built one bound to the
// next endpoint.
type Manager struct {
	pool  *pool.Pool
	key   *ecdsa.PrivateKey
	token common.Address
	owner common.Address

	cur atomic.Pointer[Session]
}

// NewManager builds the first session and returns the manager.
func NewManager(p *pool.Pool, key *ecdsa.PrivateKey, token, owner common.Address) (*Manager, error) {
	m := &Manager{pool: p, key: key, token: token, owner: owner}

	s, err := NewSession(chain.NewClient(p), key, token, owner)
	if err != nil {
		return nil, err
	}

	m.cur.Store(s)

	return m, nil
}

// Current returns the active session.
func (m *Manager) Current() *Session {
	return m.cur.Load()
}

// RPCURL returns the URL of the currently preferred endpoint.
func (m *Manager) RPCURL() string {
	return m.pool.Current().URL
}

// Reset advances the endpoint pool and replaces the session with a fresh one.
// It is best-effort: failure is logged and reported, never raised.
func (m *Manager) Reset() bool {
	log.Print("[session] resetting connection...")

	ep := m.pool.Advance()

	old := m.cur.Load()

	s, err := NewSession(chain.NewClient(m.pool), m.key, m.token, m.owner)
	if err != nil {
		log.Printf("[session] error resetting connection: %v", err)

		return false
	}

	m.cur.Store(s)

	if old != nil {
		old.Client().Close()
	}

	log.Printf("[session] connection reset completed, endpoint %s", ep.URL)

	return true
}

// CheckConnection runs the session's read-only health probe. Any failure
// triggers a reset and reports unhealthy; it never returns an error.
func (m *Manager) CheckConnection(ctx context.Context) bool {
	if err := m.Current().CheckConnection(ctx); err != nil {
		log.Printf("[session] connection error: %v", err)
		m.Reset()

		return false
	}

	return true
}
