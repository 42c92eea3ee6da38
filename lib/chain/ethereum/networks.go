package ethereum

import (
	"fmt"
	"math/big"
)

// networkNames maps well-known chain ids to their common names.
var networkNames = map[uint64]string{
	1:        "mainnet",
	5:        "goerli",
	17000:    "holesky",
	11155111: "sepolia",
}

// NetworkName returns the common name for a chain id, or "chain-<id>" for
// networks not in the table.
func NetworkName(chainID *big.Int) string {
	if chainID != nil && chainID.IsUint64() {
		if name, ok := networkNames[chainID.Uint64()]; ok {
			return name
		}
	}

	return fmt.Sprintf("chain-%v", chainID)
}
