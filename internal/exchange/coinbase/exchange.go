// Package coinbase streams ticker data from the Coinbase Exchange websocket
// feed and normalizes it into the internal market model.
package coinbase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"arbflow/config"
	"arbflow/internal/exchange"
	"arbflow/internal/market"
	"arbflow/internal/symbols"
	"arbflow/internal/ws"
	"arbflow/logger"
)

const firstPricePollInterval = 100 * time.Millisecond

// subscribeRequest is the channel subscription sent after every (re)connect.
type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// Exchange is the Coinbase ticker feed. Unlike Binance the subscription is
// negotiated in-band: each connect must send a subscribe frame, which the
// feed answers with a confirmation before tickers flow. Subscribe frames are
// rate limited so a reconnect storm cannot trip the exchange's limits.
type Exchange struct {
	cfg     config.ExchangeSourceConfig
	feed    config.FeedConfig
	log     *logger.Entry
	hub     *ws.Hub
	limiter *rate.Limiter

	mu     sync.RWMutex
	latest map[string]market.Price

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ exchange.Feed = (*Exchange)(nil)

func New(cfg config.ExchangeSourceConfig, feed config.FeedConfig) *Exchange {
	return &Exchange{
		cfg:  cfg,
		feed: feed,
		log:  logger.GetLogger().WithComponent("coinbase_feed"),
		hub:  ws.NewHub(feed.Buffer),
		// Coinbase allows bursts but throttles sustained subscribe traffic.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
		latest:  make(map[string]market.Price),
	}
}

func (e *Exchange) Name() string          { return "coinbase" }
func (e *Exchange) ID() market.ExchangeID { return market.ExchangeCoinbase }

// Subscribe registers a consumer for normalized prices. The subscription
// outlives reconnections and SubscribeTicker calls.
func (e *Exchange) Subscribe() *ws.Subscription {
	return e.hub.Subscribe()
}

// SubscribeTicker connects to the feed and subscribes to the ticker channel
// for a canonical pair, replacing any previous subscription. It returns once
// the first price arrives or the configured wait elapses; the timeout is
// logged, not fatal.
func (e *Exchange) SubscribeTicker(ctx context.Context, pair string) error {
	if err := e.Disconnect(); err != nil {
		return err
	}

	productID := symbols.ToCoinbase(pair)
	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	mgr := ws.NewManager(ws.ManagerConfig{
		URL:                 e.cfg.URL,
		Parser:              NewParser(),
		Strategy:            exchange.Strategy(e.feed.Reconnect),
		HealthCheckInterval: e.feed.HealthCheckInterval,
		Buffer:              e.feed.Buffer,
		OnConnect: func(conn *websocket.Conn) error {
			if err := e.limiter.Wait(runCtx); err != nil {
				return err
			}
			req := subscribeRequest{
				Type:       "subscribe",
				ProductIDs: []string{productID},
				Channels:   []string{"ticker"},
			}
			if err := conn.WriteJSON(req); err != nil {
				return fmt.Errorf("sending ticker subscription: %w", err)
			}
			return nil
		},
	})
	sub := mgr.Subscribe()

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		if err := mgr.Run(runCtx); err != nil && runCtx.Err() == nil {
			e.log.WithError(err).WithFields(logger.Fields{"pair": pair}).Error("ticker stream terminated")
		}
	}()
	go e.consume(runCtx, sub)

	e.log.WithFields(logger.Fields{"pair": pair, "product_id": productID}).Info("subscribed to ticker channel")
	return e.waitFirstPrice(runCtx, pair)
}

func (e *Exchange) consume(ctx context.Context, sub *ws.Subscription) {
	defer e.wg.Done()
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case price, ok := <-sub.C():
			if !ok {
				return
			}
			e.mu.Lock()
			e.latest[price.Pair] = price
			e.mu.Unlock()
			e.hub.Publish(price)
		}
	}
}

func (e *Exchange) waitFirstPrice(ctx context.Context, pair string) error {
	timeout := e.feed.FirstPriceTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(firstPricePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			e.log.WithFields(logger.Fields{"pair": pair, "timeout": timeout}).Warn("no price received before deadline, continuing")
			return nil
		case <-ticker.C:
			if _, err := e.LatestPrice(pair); err == nil {
				return nil
			}
		}
	}
}

// LatestPrice returns the most recent price seen for a pair regardless of
// its age.
func (e *Exchange) LatestPrice(pair string) (market.Price, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	price, ok := e.latest[pair]
	if !ok {
		return market.Price{}, fmt.Errorf("no price data available for %s", pair)
	}
	return price, nil
}

// IsConnected reports whether the feed has produced any price data.
func (e *Exchange) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.latest) > 0
}

// Disconnect stops the stream and waits for its workers to exit.
func (e *Exchange) Disconnect() error {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	return nil
}
