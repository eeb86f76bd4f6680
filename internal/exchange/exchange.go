// Package exchange defines the uniform capability surface every exchange
// price feed exposes. Adapters compose a websocket manager, a parser and the
// exchange's subscription quirks behind this interface; nothing here touches
// authentication material.
package exchange

import (
	"context"

	"arbflow/config"
	"arbflow/internal/market"
	"arbflow/internal/ws"
)

// Feed is one exchange's live ticker feed. SubscribeTicker tears down any
// existing connection for the feed and starts a fresh one; order placement
// and balance queries live on separate authenticated REST clients, not here.
type Feed interface {
	// SubscribeTicker connects and subscribes to ticker updates for a
	// canonical pair. It waits a bounded time for the first price; the
	// wait timing out is not an error, callers may poll LatestPrice.
	SubscribeTicker(ctx context.Context, pair string) error

	// LatestPrice returns the most recent price seen for a pair,
	// regardless of age.
	LatestPrice(pair string) (market.Price, error)

	// Subscribe registers a consumer for every normalized price this feed
	// produces. Subscriptions survive reconnections and re-subscriptions.
	Subscribe() *ws.Subscription

	Name() string
	ID() market.ExchangeID

	// IsConnected reports whether the feed has produced price data.
	IsConnected() bool

	// Disconnect stops the connection and its workers. Safe to call when
	// not connected.
	Disconnect() error
}

// Strategy builds a reconnection strategy from feed configuration. A zero
// max_attempts retries forever; a zero multiplier keeps the default doubling.
func Strategy(cfg config.ReconnectConfig) *ws.ReconnectionStrategy {
	s := ws.NewReconnectionStrategy(cfg.MaxAttempts, cfg.BaseDelay, cfg.MaxDelay)
	if cfg.Multiplier > 0 {
		s.Multiplier = cfg.Multiplier
	}
	return s
}
