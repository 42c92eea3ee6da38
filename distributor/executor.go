package distributor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/tds/lib/chain"
	"github.com/tarancss/tds/lib/chain/ethereum"
	"github.com/tarancss/tds/lib/metrics"
)

// Executor tuning. The gas limit ceiling is generous for a standard ERC20
// transfer; the fee premium biases submissions toward faster inclusion.
const (
	transferAttempts = 3
	backoffBase      = 2 * time.Second
	receiptInterval  = 3 * time.Second
	confirmTimeout   = 90 * time.Second
	transferGasLimit = 300000

	feePremiumNum = 120
	feePremiumDen = 100
)

// Errors returned by the executor.
var (
	ErrTransferFailed      = errors.New("token transfer failed")
	ErrConfirmationTimeout = errors.New("timed out waiting for transaction confirmation")
)

// Executor performs signed token transfers with bounded retry and escalating
// backoff, tolerant of transient network and gas-pricing issues.
//
// All submissions are funneled through one critical section per signing
// identity so that nonce assignment stays strictly increasing even when
// distribution requests arrive concurrently.
type Executor struct {
	mgr *ethereum.Manager

	attempts     int
	backoff      time.Duration
	pollInterval time.Duration
	waitTimeout  time.Duration
	gasLimit     uint64
	sleep        func(time.Duration)

	submitMu sync.Mutex
}

// NewExecutor returns an executor bound to the session manager.
func NewExecutor(mgr *ethereum.Manager) *Executor {
	return &Executor{
		mgr:          mgr,
		attempts:     transferAttempts,
		backoff:      backoffBase,
		pollInterval: receiptInterval,
		waitTimeout:  confirmTimeout,
		gasLimit:     transferGasLimit,
		sleep:        time.Sleep,
	}
}

// Execute transfers amount base units of the token to the destination and
// waits for one confirmation. Each attempt queries the fee price fresh, and a
// network-category failure resets the session before the next attempt. After
// every failed attempt the executor waits attempt-index times the backoff
// base. When the retry budget is exhausted it returns ErrTransferFailed
// wrapping the last underlying cause.
func (e *Executor) Execute(ctx context.Context, to common.Address, amount *big.Int) (*ethereum.Receipt, error) {
	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	var last error

	for attempt := 1; attempt <= e.attempts; attempt++ {
		log.Printf("[executor] transfer attempt %d...", attempt)

		rcpt, err := e.attempt(ctx, to, amount)
		if err == nil {
			metrics.Transfers.WithLabelValues(metrics.OutcomeConfirmed).Inc()

			return rcpt, nil
		}

		last = err

		log.Printf("[executor] transfer attempt %d failed: %v", attempt, err)

		if chain.IsNetworkError(err) || errors.Is(err, ErrConfirmationTimeout) {
			e.mgr.Reset()
		}

		e.sleep(time.Duration(attempt) * e.backoff)
	}

	metrics.Transfers.WithLabelValues(metrics.OutcomeFailed).Inc()

	return nil, fmt.Errorf("%w: %w", ErrTransferFailed, last)
}

// attempt performs one fee query, submission and confirmation wait.
func (e *Executor) attempt(ctx context.Context, to common.Address, amount *big.Int) (*ethereum.Receipt, error) {
	metrics.TransferAttempts.Inc()

	s := e.mgr.Current()

	price, err := s.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("fee query: %w", err)
	}

	nonce, err := s.PendingNonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("nonce query: %w", err)
	}

	hash, err := s.SendTransfer(ctx, to, amount, applyFeePremium(price), e.gasLimit, nonce)
	if err != nil {
		return nil, fmt.Errorf("submission: %w", err)
	}

	log.Printf("[executor] transaction sent: %s", hash.Hex())

	return e.wait(ctx, s, hash)
}

// wait polls for the transaction receipt until it is mined or the wait budget
// runs out. One confirmation is sufficient.
func (e *Executor) wait(ctx context.Context, s *ethereum.Session, hash common.Hash) (*ethereum.Receipt, error) {
	deadline := time.Now().Add(e.waitTimeout)

	for {
		rcpt, err := s.TransactionReceipt(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("confirmation wait: %w", err)
		}

		if rcpt != nil {
			if !rcpt.Confirmed() {
				return nil, fmt.Errorf("transaction %s reverted by token contract", hash.Hex())
			}

			log.Printf("[executor] transaction confirmed: %s", hash.Hex())

			return rcpt, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrConfirmationTimeout, hash.Hex())
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.sleep(e.pollInterval)
	}
}

// applyFeePremium scales the network-suggested fee price by 120/100 in
// integer arithmetic, truncating toward zero.
func applyFeePremium(price *big.Int) *big.Int {
	p := new(big.Int).Mul(price, big.NewInt(feePremiumNum))

	return p.Div(p, big.NewInt(feePremiumDen))
}
