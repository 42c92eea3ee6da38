package distributor

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const (
	readTimeout = 15
	// a distribution request can span three submission attempts with escalating
	// backoff and confirmation waits, so writes get a far larger budget
	writeTimeout = 360
)

// router builds the API route table.
func (d *Distributor) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", d.homeHandler)
	r.HandleFunc("/distribute", d.distributeHandler).Methods("POST") // execute a token transfer
	r.HandleFunc("/health", d.healthHandler).Methods("GET")          // report network and liquidity state

	return r
}

// Init sets up and starts the http/https server to service the RESTful API for the
// distributor service. If sslPort, sslCert and sslKey are informed, it will start an
// https (TLS) server on the specified endpoint.
func (d *Distributor) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	r := d.router()
	http.Handle("/", r)

	// setup shutdown channel
	d.sc = make(chan struct{})

	// start http server
	if port != "" {
		d.s = &http.Server{
			Handler:      r,
			Addr:         endpoint + ":" + port,
			WriteTimeout: writeTimeout * time.Second,
			ReadTimeout:  readTimeout * time.Second,
		}

		go func() {
			err = d.s.ListenAndServe()
		}()

		log.Printf("Listening to API http requests on %s:%s", endpoint, port)
	}
	// start https server
	if sslPort != "" && sslCert != "" && sslKey != "" {
		d.ss = &http.Server{
			Handler:      r,
			Addr:         endpoint + ":" + sslPort,
			WriteTimeout: writeTimeout * time.Second,
			ReadTimeout:  readTimeout * time.Second,
		}

		go func() {
			errTLS = d.ss.ListenAndServeTLS(sslCert, sslKey)
		}()

		log.Printf("Listening to API https requests on %s:%s", endpoint, sslPort)
	}
	// wait for servers to be shutdown
	<-d.sc

	return fmt.Sprintf("shutdown http server:%v, https server:%v", err, errTLS)
}
