package distributor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tarancss/tds/lib/chain"
	"github.com/tarancss/tds/lib/chain/ethereum"
	"github.com/tarancss/tds/lib/metrics"
	"github.com/tarancss/tds/lib/util"
)

// Errors returned to client requests.
var (
	ErrBadRequest          = errors.New("bad request")
	ErrBadAddress          = errors.New("invalid user address")
	ErrBadQuantity         = errors.New("invalid quantity")
	ErrInsufficientBalance = errors.New("insufficient token balance")
)

// User-facing messages for server-side failures, selected by error category.
const (
	msgNetwork    = "Network connection issue. Please try again in a few moments."
	msgOwnerFunds = "Contract owner has insufficient funds for gas."
	msgGeneric    = "Failed to distribute tokens. Please try again."
)

// quantity accepts a JSON string or number and keeps its exact decimal text.
type quantity string

func (q *quantity) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}

		*q = quantity(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}

	*q = quantity(n.String())

	return nil
}

// distributeRequest is the inbound payload of the distribution endpoint.
type distributeRequest struct {
	UserAddress string   `json:"userAddress"`
	Quantity    quantity `json:"quantity"`
}

// distributeResponse is returned on a confirmed transfer.
type distributeResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Amount          string `json:"amount"`
}

// errorResponse carries a human-readable error, the raw cause for diagnostics
// and an optional category code.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
}

// healthResponse reports network identity and liquidity state. Fields degrade
// to "unknown" individually instead of failing the whole response.
type healthResponse struct {
	Status        string `json:"status"`
	Network       string `json:"network"`
	ChainID       string `json:"chainId"`
	Timestamp     string `json:"timestamp"`
	WalletAddress string `json:"walletAddress"`
	TokenBalance  string `json:"tokenBalance"`
	RPCURL        string `json:"rpcUrl"`
}

// writeJSON replies to the client with the given status and body.
func writeJSON(rw http.ResponseWriter, status int, body interface{}) {
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(body)
}

// homeHandler just replies a welcome message to the client.
func (d *Distributor) homeHandler(rw http.ResponseWriter, r *http.Request) {
	log.Printf("httpreq from %v %s", r.RemoteAddr, r.RequestURI)
	writeJSON(rw, http.StatusOK, map[string]string{"body": "Hello, this is your token distributor!"})
}

// distributeHandler validates the request, guards liquidity and executes the
// token transfer, translating outcomes to the API responses.
func (d *Distributor) distributeHandler(rw http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.HTTPDuration.WithLabelValues("distribute"))
	defer timer.ObserveDuration()

	ctx := r.Context()

	var req distributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("httpreq from %v %s err:%v", r.RemoteAddr, r.RequestURI, err)
		writeJSON(rw, http.StatusBadRequest, errorResponse{Error: ErrBadRequest.Error()})

		return
	}

	// validate input before touching the network
	if !common.IsHexAddress(req.UserAddress) {
		log.Printf("httpreq from %v %s err:%v", r.RemoteAddr, r.RequestURI, ErrBadAddress)
		writeJSON(rw, http.StatusBadRequest, errorResponse{Error: "Invalid user address"})

		return
	}

	amount, err := util.ParseTokenAmount(string(req.Quantity))
	if err != nil {
		log.Printf("httpreq from %v %s err:%v (%v)", r.RemoteAddr, r.RequestURI, ErrBadQuantity, err)
		writeJSON(rw, http.StatusBadRequest, errorResponse{Error: "Invalid quantity", Details: err.Error()})

		return
	}

	// best-effort freshness probe; its result does not block the request
	d.mgr.CheckConnection(ctx)

	// liquidity guard: one pre-check per inbound request, not re-verified
	// between the executor's internal retries
	s := d.mgr.Current()

	bal, err := s.TokenBalance(ctx, s.Address())
	if err != nil {
		log.Printf("httpreq from %v %s balance check err:%v", r.RemoteAddr, r.RequestURI, err)
		d.writeDistributionError(rw, err)

		return
	}

	if bal.Cmp(amount) < 0 {
		log.Printf("httpreq from %v %s err:%v", r.RemoteAddr, r.RequestURI, ErrInsufficientBalance)
		writeJSON(rw, http.StatusBadRequest, errorResponse{
			Error: "Insufficient token balance",
			Details: fmt.Sprintf("Required: %s, Available: %s",
				util.FormatTokenAmount(amount), util.FormatTokenAmount(bal)),
		})

		return
	}

	to := common.HexToAddress(req.UserAddress)

	rcpt, err := d.exec.Execute(ctx, to, amount)
	if err != nil {
		log.Printf("httpreq from %v %s distribution err:%v", r.RemoteAddr, r.RequestURI, err)
		d.writeDistributionError(rw, err)

		return
	}

	log.Printf("httpreq from %v %s hash:%s", r.RemoteAddr, r.RequestURI, rcpt.TxHash.Hex())

	writeJSON(rw, http.StatusOK, distributeResponse{
		Success:         true,
		TransactionHash: rcpt.TxHash.Hex(),
		From:            s.Address().Hex(),
		To:              to.Hex(),
		Amount:          util.FormatTokenAmount(amount),
	})

	d.publish(ctx, rcpt, to, amount)
}

// writeDistributionError maps a server-side failure to the user-facing
// message of its category, preserving the raw cause in details.
func (d *Distributor) writeDistributionError(rw http.ResponseWriter, err error) {
	msg, code := userMessage(err)
	writeJSON(rw, http.StatusInternalServerError, errorResponse{Error: msg, Details: err.Error(), Code: code})
}

// userMessage selects the user-facing message and category code for err:
// contract-supplied reason verbatim, owner-funds message for fee shortfalls,
// connectivity message for network failures, generic retry message otherwise.
func userMessage(err error) (string, string) {
	if reason := chain.RevertReason(err); reason != "" {
		return reason, "CALL_EXCEPTION"
	}

	if chain.IsInsufficientFunds(err) {
		return msgOwnerFunds, "INSUFFICIENT_FUNDS"
	}

	if chain.IsNetworkError(err) || errors.Is(err, ErrConfirmationTimeout) {
		return msgNetwork, "NETWORK_ERROR"
	}

	return msgGeneric, ""
}

// healthHandler reports connection health, network identity, token balance
// and the active endpoint. It always replies 200: probe failures downgrade
// individual fields to "unknown" rather than failing the whole response.
func (d *Distributor) healthHandler(rw http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(metrics.HTTPDuration.WithLabelValues("health"))
	defer timer.ObserveDuration()

	ctx := r.Context()

	ok := d.mgr.CheckConnection(ctx)

	// re-fetch the session: the probe may have reset it
	s := d.mgr.Current()

	res := healthResponse{
		Status:        "error",
		Network:       "unknown",
		ChainID:       "unknown",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		WalletAddress: s.Address().Hex(),
		TokenBalance:  "unknown",
		RPCURL:        d.mgr.RPCURL(),
	}

	if ok {
		res.Status = "ok"
	}

	if id, err := s.ChainID(ctx); err == nil {
		res.ChainID = id.String()
		res.Network = ethereum.NetworkName(id)
	}

	if bal, err := s.TokenBalance(ctx, s.Address()); err == nil {
		res.TokenBalance = util.FormatTokenAmount(bal)
	}

	log.Printf("httpreq from %v %s status:%s", r.RemoteAddr, r.RequestURI, res.Status)

	writeJSON(rw, http.StatusOK, res)
}
