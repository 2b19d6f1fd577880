package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// Subjects published by the queue processors.
const (
	SubjectPaymentCompleted = "mintgate.payment.completed"
	SubjectPaymentFailed    = "mintgate.payment.failed"
	SubjectMintCompleted    = "mintgate.mint.completed"
)

// Publisher emits queue lifecycle events for downstream consumers.
type Publisher interface {
	Publish(subject string, payload interface{}) error
	Close()
}

// NATSPublisher publishes events to a NATS server.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to NATS at the given URL.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish marshals payload as JSON and publishes it on subject.
func (p *NATSPublisher) Publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, data)
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// NoopPublisher discards all events. Used when no NATS URL is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, interface{}) error { return nil }
func (NoopPublisher) Close()                            {}
