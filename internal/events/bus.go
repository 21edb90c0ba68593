// Package events publishes workflow lifecycle events.
//
// A Bus delivers opaque JSON payloads by NATS-style subject. The
// in-process MemoryBus is the default transport; configuring a NATS URL
// swaps in NATSBus without changing any publisher or subscriber.
// WorkflowEvents is the typed publisher the orchestrator and runner use.
package events

import (
	"context"

	"github.com/fyrsmithlabs/triad/internal/config"
	"github.com/fyrsmithlabs/triad/internal/logging"
)

// Handler receives messages delivered to a subscription. Handlers run
// asynchronously; returned errors are logged by the bus, never surfaced
// to the publisher.
type Handler func(ctx context.Context, subject string, data []byte) error

// Subscription is an active subject subscription.
type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// Bus is the event transport. Subjects follow NATS conventions: dot
// separated tokens, "*" matching exactly one token and ">" the rest.
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(subject string, handler Handler) (Subscription, error)
	Close()
	IsConnected() bool
}

// New selects the bus for cfg: the in-process MemoryBus when no URL is
// configured, otherwise a connection to the NATS server at that URL.
func New(cfg config.EventsConfig, log *logging.Logger) (Bus, error) {
	if cfg.URL == "" {
		return NewMemoryBus(log), nil
	}
	return NewNATSBus(cfg.URL, log)
}
