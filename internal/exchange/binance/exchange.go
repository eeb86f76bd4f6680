// Package binance streams ticker data from the Binance websocket API and
// normalizes it into the internal market model.
package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"arbflow/config"
	"arbflow/internal/exchange"
	"arbflow/internal/market"
	"arbflow/internal/symbols"
	"arbflow/internal/ws"
	"arbflow/logger"
)

// firstPricePollInterval is how often SubscribeTicker checks whether the
// stream has delivered its first ticker.
const firstPricePollInterval = 100 * time.Millisecond

// Exchange is the Binance ticker feed. Binance encodes the subscription in
// the stream path, so connecting and subscribing are the same act.
type Exchange struct {
	cfg  config.ExchangeSourceConfig
	feed config.FeedConfig
	log  *logger.Entry
	hub  *ws.Hub

	mu     sync.RWMutex
	latest map[string]market.Price

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ exchange.Feed = (*Exchange)(nil)

func New(cfg config.ExchangeSourceConfig, feed config.FeedConfig) *Exchange {
	return &Exchange{
		cfg:    cfg,
		feed:   feed,
		log:    logger.GetLogger().WithComponent("binance_feed"),
		hub:    ws.NewHub(feed.Buffer),
		latest: make(map[string]market.Price),
	}
}

func (e *Exchange) Name() string          { return "binance" }
func (e *Exchange) ID() market.ExchangeID { return market.ExchangeBinance }

// Subscribe registers a consumer for normalized prices. The subscription
// outlives reconnections and SubscribeTicker calls.
func (e *Exchange) Subscribe() *ws.Subscription {
	return e.hub.Subscribe()
}

// SubscribeTicker connects to the <symbol>@ticker stream for a canonical
// pair, replacing any previous subscription. It returns once the first price
// arrives or the configured wait elapses; the timeout is logged, not fatal.
func (e *Exchange) SubscribeTicker(ctx context.Context, pair string) error {
	if err := e.Disconnect(); err != nil {
		return err
	}

	symbol := strings.ToLower(symbols.ToBinance(pair))
	url := strings.TrimSuffix(e.cfg.URL, "/") + "/" + symbol + "@ticker"

	mgr := ws.NewManager(ws.ManagerConfig{
		URL:                 url,
		Parser:              NewParser(),
		Strategy:            exchange.Strategy(e.feed.Reconnect),
		HealthCheckInterval: e.feed.HealthCheckInterval,
		Buffer:              e.feed.Buffer,
	})
	sub := mgr.Subscribe()

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		if err := mgr.Run(runCtx); err != nil && runCtx.Err() == nil {
			e.log.WithError(err).WithFields(logger.Fields{"pair": pair}).Error("ticker stream terminated")
		}
	}()
	go e.consume(runCtx, sub)

	e.log.WithFields(logger.Fields{"pair": pair, "url": url}).Info("subscribed to ticker stream")
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
