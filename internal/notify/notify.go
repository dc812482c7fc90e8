// Package notify broadcasts object-change events over NATS so that
// other processes sharing a store (a second client editing the same
// sourced object, a sibling tracker watching the same mount) learn of a
// write without polling the store. It is advisory only: the core never
// waits on a notification to decide correctness, per the "the store is
// the only shared resource" concurrency policy. A missed or delayed
// event just means a peer discovers the new version on its next read.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Event is one object-change notification.
type Event struct {
	ObjectID string `json:"object_id"`
	Type     string `json:"type"`
	Result   string `json:"result"`
}

// Publisher broadcasts Events on a subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// Connect dials url and returns a Publisher bound to subject. A blank
// url uses the NATS client's default (nats://127.0.0.1:4222).
func Connect(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(defaultURL(url))
	if err != nil {
		return nil, fmt.Errorf("notify: connect: %w", err)
	}
	return &Publisher{nc: nc, subject: subject}, nil
}

// Publish broadcasts ev. Errors are the caller's to decide whether to
// log or ignore; a failed publish never rolls back the write that
// triggered it.
func (p *Publisher) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	return p.nc.Publish(p.subject, data)
}

// Close drains and closes the underlying connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}

// Subscriber delivers Events received on a subject to a handler.
type Subscriber struct {
	nc  *nats.Conn
	sub *nats.Subscription
}

// Subscribe dials url, subscribes to subject, and invokes handler for
// every event received. Malformed payloads are dropped silently; a
// single bad message must never take down the subscription.
func Subscribe(url, subject string, handler func(Event)) (*Subscriber, error) {
	nc, err := nats.Connect(defaultURL(url))
	if err != nil {
		return nil, fmt.Errorf("notify: connect: %w", err)
	}
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		handler(ev)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("notify: subscribe: %w", err)
	}
	return &Subscriber{nc: nc, sub: sub}, nil
}

// Close unsubscribes and closes the underlying connection.
func (s *Subscriber) Close() error {
	if err := s.sub.Unsubscribe(); err != nil {
		return err
	}
	s.nc.Close()
	return nil
}

func defaultURL(url string) string {
	if url == "" {
		return nats.DefaultURL
	}
	return url
}
