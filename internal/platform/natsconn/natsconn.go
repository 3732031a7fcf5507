// Package natsconn provides a shared NATS connection factory with
// configurable reconnect behaviour and fail-fast semantics.
package natsconn

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Options configures the NATS connection behaviour.
type Options struct {
	URL           string
	MaxReconnects int           // default 5
	ReconnectWait time.Duration // default 2s
}

// Connect establishes a NATS connection with the configured retry policy.
// On failure it returns an error so the caller can fail-fast.
func Connect(opts Options) (*nats.Conn, error) {
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = 5
	}
	if opts.ReconnectWait == 0 {
		opts.ReconnectWait = 2 * time.Second
	}

	nc, err := nats.Connect(opts.URL,
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s (max_reconnects=%d, wait=%s): %w",
			opts.URL, opts.MaxReconnects, opts.ReconnectWait, err)
	}
	return nc, nil
}
