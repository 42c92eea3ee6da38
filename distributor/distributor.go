// Package distributor implements the token distribution microservice.
//
// The service exposes a RESTful API for clients that completed an upstream checkout to
// receive ERC20 tokens from the configured signing identity. It validates requests,
// guards liquidity, and executes transfers with bounded retry and endpoint failover.
package distributor

import (
	"context"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/tds/lib/chain/ethereum"
	"github.com/tarancss/tds/lib/msg"
	"github.com/tarancss/tds/lib/util"
)

// Distributor contains the data necessary to deliver the service.
type Distributor struct {
	mgr  *ethereum.Manager // network session lifecycle
	mb   msg.Broker        // distribution event broker, may be nil
	exec *Executor         // transfer executor
	s    *http.Server      // http server
	ss   *http.Server      // https server
	sc   chan struct{}     // http server channel used for graceful shutdowns
}

// New returns a pointer to a new Distributor service.
func New(mgr *ethereum.Manager, mb msg.Broker) *Distributor {
	return &Distributor{
		mgr:  mgr,
		mb:   mb,
		exec: NewExecutor(mgr),
	}
}

// Stop shuts down the http servers implementing the RESTful API and closes gracefully
// the connection to the message broker.
func (d *Distributor) Stop() {
	var err error
	// shutdown http server
	if d.s != nil {
		if err = d.s.Shutdown(context.Background()); err != nil {
			log.Printf("Error in http server shutdown: %v", err)
		}
	}

	if d.ss != nil {
		if err = d.ss.Shutdown(context.Background()); err != nil {
			log.Printf("Error in https server shutdown: %v", err)
		}
	}

	close(d.sc) // close server channel to indicate shutdowns have finished

	// close message broker
	if d.mb != nil {
		if err = d.mb.Close(); err != nil {
			log.Printf("Error closing message broker: %v", err)
		}
	}
}

// publish sends a confirmed distribution event to the broker. Publishing is
// best-effort: failures are logged, the client already got its response.
func (d *Distributor) publish(ctx context.Context, rcpt *ethereum.Receipt, to common.Address, amount *big.Int) {
	if d.mb == nil {
		return
	}

	s := d.mgr.Current()

	net := "unknown"
	if id, err := s.ChainID(ctx); err == nil {
		net = ethereum.NetworkName(id)
	}

	ev := msg.DistributionEvent{
		Net:    net,
		Hash:   rcpt.TxHash.Hex(),
		From:   s.Address().Hex(),
		To:     to.Hex(),
		Amount: util.FormatTokenAmount(amount),
		TS:     time.Now().UTC(),
	}

	if err := d.mb.SendDistribution(ev); err != nil {
		log.Printf("[%s] Error publishing distribution event %s: %v", net, ev.Hash, err)
	}
}
