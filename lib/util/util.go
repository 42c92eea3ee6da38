// Package util contains helper functions used around the code.
package util

import (
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the token's declared fixed-point precision.
const TokenDecimals = 18

// MaxAmountDigits caps the integer digits of a requested amount. No token
// supply reaches 10^30 whole tokens, and the cap must be enforced on the
// parsed exponent before the amount is materialized as an integer: quantities
// like "1e1000000000" are otherwise expanded in full, burning CPU and memory
// on an unauthenticated request long before any balance check rejects them.
const MaxAmountDigits = 30

// Errors returned when parsing token amounts.
var (
	ErrBadAmount         = errors.New("invalid token amount")
	ErrAmountNotPositive = errors.New("token amount must be a positive number")
	ErrAmountTooLarge    = errors.New("token amount exceeds 30 integer digits")
	ErrAmountPrecision   = errors.New("token amount has more than 18 fractional digits")
)

// ParseTokenAmount converts a decimal quantity such as "1.5" to the token's
// fixed-point integer representation (scaled by 10^18). Amounts are handled
// as exact decimals end-to-end, never as floats.
func ParseTokenAmount(quantity string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(quantity))
	if err != nil {
		return nil, ErrBadAmount
	}

	if d.Sign() <= 0 {
		return nil, ErrAmountNotPositive
	}

	// coefficient digits plus exponent bounds the integer digits of the value
	if d.NumDigits()+int(d.Exponent()) > MaxAmountDigits {
		return nil, ErrAmountTooLarge
	}

	scaled := d.Shift(TokenDecimals)
	if !scaled.IsInteger() {
		return nil, ErrAmountPrecision
	}

	return scaled.BigInt(), nil
}

// FormatTokenAmount renders a fixed-point integer amount back as a decimal
// token string, e.g. 1500000000000000000 -> "1.5".
func FormatTokenAmount(units *big.Int) string {
	if units == nil {
		return "0"
	}

	return decimal.NewFromBigInt(units, -TokenDecimals).String()
}
