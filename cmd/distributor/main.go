// Package main: distributor service.
//
// The service holds exactly one signing identity and one token contract target. The
// identity is loaded from the configured hex private key or derived from an HD wallet
// seed, and its address is verified against the configured owner address before any
// traffic is served: a mismatch is a configuration error, not a runtime fault.
package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tarancss/hd"

	"github.com/tarancss/tds/distributor"
	"github.com/tarancss/tds/lib/chain/ethereum"
	"github.com/tarancss/tds/lib/chain/pool"
	"github.com/tarancss/tds/lib/config"
	"github.com/tarancss/tds/lib/msg"
	"github.com/tarancss/tds/lib/msg/amqp"
)

var errNoCredential = errors.New("no signing credential configured: set privkey or hdseed")

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9100")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	log.Printf("Configuration: endpoint:%s port:%s nodes:%d token:%s owner:%s mbtype:%s",
		conf.RestfulEndpoint, conf.Port, len(conf.Nodes), conf.Token, conf.Owner, conf.MbType)

	// build the endpoint pool
	eps := make([]pool.Endpoint, len(conf.Nodes))
	for i, n := range conf.Nodes {
		eps[i] = pool.Endpoint{URL: n.URL, Timeout: time.Duration(n.Timeout) * time.Second}
	}

	p, err := pool.New(eps)
	if err != nil {
		panic(err)
	}

	// load the signing credential
	key, err := loadKey(conf)
	if err != nil {
		panic(err)
	}

	if !common.IsHexAddress(conf.Token) {
		log.Fatalf("Invalid token contract address: %s", conf.Token)
	}

	if !common.IsHexAddress(conf.Owner) {
		log.Fatalf("Invalid owner address: %s", conf.Owner)
	}

	// bind the identity to the network
	mgr, err := ethereum.NewManager(p, key, common.HexToAddress(conf.Token), common.HexToAddress(conf.Owner))
	if err != nil {
		panic(err)
	}

	// the process must not serve traffic with a mismatched identity
	if err := mgr.Current().VerifyIdentity(); err != nil {
		log.Fatalf("Identity check failed: %v", err)
	}

	log.Printf("Signing identity verified: %s", mgr.Current().Address().Hex())

	// load Prometheus monitor
	if *monitor {
		go func() {
			log.Println("Serving metrics API")

			h := http.NewServeMux()

			h.Handle("/metrics", promhttp.Handler())
			_ = http.ListenAndServe(":9100", h)
		}()
	}

	// load message broker
	var mb msg.Broker

	switch conf.MbType {
	case "amqp":
		if mb, err = amqp.New(conf.MbConn); err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				panic(err)
			}
		}

		if err = mb.Setup(nil); err != nil {
			panic(err)
		}
	case "":
		log.Print("Message broker disabled")
	default:
		log.Printf("Unknown message broker type: %s", conf.MbType)
	}

	// check the network connection on startup, best-effort
	if !mgr.CheckConnection(context.Background()) {
		log.Print("Warning: network connection check failed at startup")
	}

	// create distributor service
	d := distributor.New(mgr, mb)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	finish := make(chan int)

	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// do last actions and wait for all write operations to end
		d.Stop()
		close(finish)
	}()

	// init RESTful API, wait for its return and log response
	log.Printf("Distributor: %s", d.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))

	<-finish
}

// loadKey returns the signing key from the hex private key or, alternatively,
// derives it from the HD wallet seed and path in the configuration.
func loadKey(conf config.ServiceConfig) (*ecdsa.PrivateKey, error) {
	if conf.PrivKey != "" {
		return crypto.HexToECDSA(strings.TrimPrefix(conf.PrivKey, "0x"))
	}

	if conf.Seed != "" {
		seed, err := hex.DecodeString(conf.Seed)
		if err != nil {
			return nil, err
		}

		hdw, err := hd.Init(seed)
		if err != nil {
			return nil, err
		}

		_, keyBytes, _, err := hdw.Address(conf.HDWallet, conf.HDChange, conf.HDID)
		if err != nil {
			return nil, err
		}

		return crypto.ToECDSA(keyBytes)
	}

	return nil, errNoCredential
}
