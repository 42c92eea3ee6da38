// Package ethereum binds a signing identity to a resilient network client and
// exposes the token and network operations the distributor needs.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tarancss/tds/lib/chain"
)

// ERC20 token methodIDs (first 4 bytes of the keccak-256 of the function
// signature). This is the whole ABI surface the service uses.
const (
	ERC20transfer  = "a9059cbb" // transfer(address,uint256)
	ERC20balanceOf = "70a08231" // balanceOf(address)
	ERC20allowance = "dd62ed3e" // allowance(address,address)
	ERC20approve   = "095ea7b3" // approve(address,uint256)
)

// Errors returned by the session.
var (
	ErrIdentityMismatch = errors.New("signing identity does not match the configured owner address")
	ErrNilKey           = errors.New("session requires a signing key")
)

// Session binds the signing credential to a network client and the token
// contract. Sessions are immutable: recovery replaces the whole session (see
// Manager) instead of mutating one in place, so an in-flight request never
// observes partially updated state.
type Session struct {
	c     *chain.Client
	key   *ecdsa.PrivateKey
	addr  common.Address // derived from key
	owner common.Address // configured, expected to equal addr
	token common.Address // token contract target

	mu      sync.Mutex
	chainID *big.Int // cached after first query
}

// NewSession derives the signing address from key and binds it to client.
func NewSession(client *chain.Client, key *ecdsa.PrivateKey, token, owner common.Address) (*Session, error) {
	if key == nil {
		return nil, ErrNilKey
	}

	return &Session{
		c:     client,
		key:   key,
		addr:  crypto.PubkeyToAddress(key.PublicKey),
		owner: owner,
		token: token,
	}, nil
}

// Address returns the address derived from the signing key.
func (s *Session) Address() common.Address {
	return s.addr
}

// Token returns the token contract address the session targets.
func (s *Session) Token() common.Address {
	return s.token
}

// Client returns the underlying resilient network client.
func (s *Session) Client() *chain.Client {
	return s.c
}

// VerifyIdentity fails if the derived signing address does not equal the
// configured owner address. This is a configuration-integrity check: on
// mismatch the process must not serve traffic.
func (s *Session) VerifyIdentity() error {
	if s.addr != s.owner {
		return fmt.Errorf("%w: expected %s but got %s", ErrIdentityMismatch, s.owner.Hex(), s.addr.Hex())
	}

	return nil
}

// ChainID returns the network's chain id, cached after the first query.
func (s *Session) ChainID(ctx context.Context) (*big.Int, error) {
	s.mu.Lock()
	if s.chainID != nil {
		id := new(big.Int).Set(s.chainID)
		s.mu.Unlock()

		return id, nil
	}
	s.mu.Unlock()

	var id hexutil.Big
	if err := s.c.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.chainID = (*big.Int)(&id)
	s.mu.Unlock()

	return new(big.Int).Set((*big.Int)(&id)), nil
}

// EtherBalance returns the native-currency balance of the signing identity.
func (s *Session) EtherBalance(ctx context.Context) (*big.Int, error) {
	var bal hexutil.Big
	if err := s.c.CallContext(ctx, &bal, "eth_getBalance", s.addr, "latest"); err != nil {
		return nil, err
	}

	return (*big.Int)(&bal), nil
}

// TokenBalance returns the token balance of the given account, in the token's
// fixed-point base units.
func (s *Session) TokenBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	call := map[string]interface{}{
		"to":   s.token,
		"data": hexutil.Encode(packCall(ERC20balanceOf, account.Bytes())),
	}

	var ret hexutil.Bytes
	if err := s.c.CallContext(ctx, &ret, "eth_call", call, "latest"); err != nil {
		return nil, err
	}

	return new(big.Int).SetBytes(ret), nil
}

// Allowance returns the amount spender may move from owner's token holdings.
func (s *Session) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	call := map[string]interface{}{
		"to":   s.token,
		"data": hexutil.Encode(packCall(ERC20allowance, owner.Bytes(), spender.Bytes())),
	}

	var ret hexutil.Bytes
	if err := s.c.CallContext(ctx, &ret, "eth_call", call, "latest"); err != nil {
		return nil, err
	}

	return new(big.Int).SetBytes(ret), nil
}

// SuggestGasPrice returns the network-suggested fee price.
func (s *Session) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price hexutil.Big
	if err := s.c.CallContext(ctx, &price, "eth_gasPrice"); err != nil {
		return nil, err
	}

	return (*big.Int)(&price), nil
}

// PendingNonce returns the next nonce for the signing identity, including
// transactions still in the pool.
func (s *Session) PendingNonce(ctx context.Context) (uint64, error) {
	var nonce hexutil.Uint64
	if err := s.c.CallContext(ctx, &nonce, "eth_getTransactionCount", s.addr, "pending"); err != nil {
		return 0, err
	}

	return uint64(nonce), nil
}

// SendTransfer signs and submits an ERC20 transfer of amount base units to
// the given destination, returning the transaction hash accepted by the
// network.
func (s *Session) SendTransfer(ctx context.Context, to common.Address, amount, gasPrice *big.Int,
	gasLimit, nonce uint64) (common.Hash, error) {
	chainID, err := s.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.token,
		Value:    new(big.Int),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     packCall(ERC20transfer, to.Bytes(), amount.Bytes()),
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return common.Hash{}, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, err
	}

	var hash common.Hash
	if err := s.c.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, err
	}

	return hash, nil
}

// Receipt is the confirmation record of a mined transaction.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber *big.Int
	GasUsed     uint64
	Status      uint64
}

// Confirmed reports whether the receipt's transaction executed successfully.
func (r *Receipt) Confirmed() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// rpcReceipt mirrors the fields of eth_getTransactionReceipt we consume.
type rpcReceipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     *hexutil.Big   `json:"blockNumber"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
	Status          hexutil.Uint64 `json:"status"`
}

// TransactionReceipt returns the receipt for hash, or (nil, nil) while the
// transaction has not been mined yet.
func (s *Session) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var r *rpcReceipt
	if err := s.c.CallContext(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}

	if r == nil || r.BlockNumber == nil {
		return nil, nil
	}

	return &Receipt{
		TxHash:      r.TransactionHash,
		BlockNumber: (*big.Int)(r.BlockNumber),
		GasUsed:     uint64(r.GasUsed),
		Status:      uint64(r.Status),
	}, nil
}

// CheckConnection performs the read-only health probe: network identity,
// native balance and token balance of the signing identity. It returns the
// first failure observed.
func (s *Session) CheckConnection(ctx context.Context) error {
	if _, err := s.ChainID(ctx); err != nil {
		return fmt.Errorf("network identity: %w", err)
	}

	if _, err := s.EtherBalance(ctx); err != nil {
		return fmt.Errorf("native balance: %w", err)
	}

	if _, err := s.TokenBalance(ctx, s.addr); err != nil {
		return fmt.Errorf("token balance: %w", err)
	}

	return nil
}

// packCall builds ERC20 call data: a 4-byte methodID followed by each
// argument left-padded to 32 bytes.
func packCall(methodID string, args ...[]byte) []byte {
	data := common.FromHex(methodID)
	for _, a := range args {
		data = append(data, common.LeftPadBytes(a, 32)...)
	}

	return data
}
