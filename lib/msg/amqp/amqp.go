// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/streadway/amqp"

	"github.com/tarancss/tds/lib/msg"
)

// exchange is where distribution events are published.
const exchange = "td"

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection

	mu sync.Mutex
	ch *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (msg.Broker, error) {
	r := Amqp{}

	var err error
	if r.conn, err = amqp.Dial(uri); err != nil {
		return &r, err
	}

	log.Printf("Connected to %s", uri)

	return &r, nil
}

// Setup obtains a one-use amqp channel and declares the "td" topic exchange
// where the distributor publishes confirmed-transfer events.
func (r *Amqp) Setup(_ interface{}) error {
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	return channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker.
func (r *Amqp) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			log.Printf("Error closing amqp.Channel: %v", err)
		}

		r.ch = nil
	}

	return r.conn.Close()
}

// SendDistribution publishes a confirmed distribution event to the "td"
// exchange with routing key <net>.dist.<hash>.
func (r *Amqp) SendDistribution(ev msg.DistributionEvent) error {
	jsonDoc, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// obtain channel if not present
	if r.ch == nil {
		if r.ch, err = r.conn.Channel(); err != nil {
			return err
		}
	}

	pub := amqp.Publishing{
		Headers:     amqp.Table{"x-dist-name": ev.Net + "." + ev.Hash},
		Body:        jsonDoc,
		ContentType: "application/json",
	}

	if err = r.ch.Publish(exchange, ev.Net+".dist."+ev.Hash, false, false, pub); err != nil {
		log.Printf("[%s] Error sending distribution event to message broker: %v", ev.Net, err)
	}

	return err
}
