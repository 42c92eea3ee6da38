// Package msg defines the interface for publishing distribution events to
// different message brokers.
package msg

import "time"

// DistributionEvent is published for every confirmed token transfer so that
// downstream accounting can consume it.
type DistributionEvent struct {
	Net    string    `json:"net"`    // network name the transfer confirmed on
	Hash   string    `json:"hash"`   // transaction hash
	From   string    `json:"from"`   // signing identity
	To     string    `json:"to"`     // destination address
	Amount string    `json:"amount"` // decimal token amount
	TS     time.Time `json:"ts"`     // confirmation time
}

// Broker publishes distribution events. Implementations must be safe for use
// by concurrent request handlers.
type Broker interface {
	Setup(interface{}) error
	Close() error

	SendDistribution(ev DistributionEvent) error
}
