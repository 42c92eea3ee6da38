package chain

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrNetworkExhausted is returned when one logical call has failed against
// every configured endpoint. It always wraps the last observed error.
var ErrNetworkExhausted = errors.New("all network endpoints failed")

// IsNetworkError reports whether err belongs to the network failure category:
// such errors are eligible for a session reset and a later retry, as opposed
// to validation or contract errors which are final.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNetworkExhausted) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr)
}

// IsInsufficientFunds reports whether err is a node rejection caused by the
// signing identity lacking native currency to pay transaction fees.
func IsInsufficientFunds(err error) bool {
	return err != nil && strings.Contains(err.Error(), "insufficient funds")
}

// revertPrefix is the message prefix nodes use for contract-supplied reasons.
const revertPrefix = "execution reverted: "

// RevertReason extracts the contract-supplied reason string from err, or the
// provider-supplied revert message when no structured reason is present.
// It returns "" when err is not a revert.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	if i := strings.Index(msg, revertPrefix); i >= 0 {
		return msg[i+len(revertPrefix):]
	}

	if strings.Contains(msg, "revert") {
		return msg
	}

	return ""
}
