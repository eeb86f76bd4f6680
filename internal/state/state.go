// Package state provides the thread-safe last-value price cache shared by
// all exchange feeds, with staleness detection and cross-exchange spread
// computation.
package state

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arbflow/internal/market"
)

var hundred = decimal.NewFromInt(100)

// Key addresses one cache slot: the latest price for a trading pair on one
// exchange.
type Key struct {
	Exchange market.ExchangeID
	Pair     string
}

// PriceState stores the latest price per (exchange, pair) across any number
// of concurrent writer and reader goroutines. Reads never block other
// readers; each update replaces its entry atomically.
//
// Staleness is evaluated by the reader: single-exchange lookups return data
// regardless of age, and only the derived spread methods gate on MaxAge
// internally. When comparing two exchanges the capture timestamps may differ
// by at most MaxAge/2 — comparing a price from seconds ago against one from
// now can manufacture a false spread in a fast-moving market.
type PriceState struct {
	mu     sync.RWMutex
	prices map[Key]market.PriceData
	maxAge time.Duration
}

// New creates an empty PriceState with the given staleness threshold.
func New(maxAge time.Duration) *PriceState {
	return &PriceState{
		prices: make(map[Key]market.PriceData),
		maxAge: maxAge,
	}
}

// MaxAge returns the configured staleness threshold.
func (s *PriceState) MaxAge() time.Duration {
	return s.maxAge
}

// UpdatePrice upserts the entry for (exchange, pair) with a freshly stamped
// record. Last write wins; the sequence number is stored but not checked
// against the previous entry, so out-of-order delivery can overwrite a newer
// price with an older one.
func (s *PriceState) UpdatePrice(exchange market.ExchangeID, pair string, price market.Price, sequence uint64) {
	data := market.NewPriceData(price, sequence)
	s.mu.Lock()
	s.prices[Key{Exchange: exchange, Pair: pair}] = data
	s.mu.Unlock()
}

// GetPrice returns the latest entry for (exchange, pair) without any
// staleness filtering.
func (s *PriceState) GetPrice(exchange market.ExchangeID, pair string) (market.PriceData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.prices[Key{Exchange: exchange, Pair: pair}]
	return data, ok
}

// IsStale reports whether the cached price exceeds MaxAge. An absent entry
// is not stale; callers distinguish "no data" from "old data" by combining
// this with GetPrice.
func (s *PriceState) IsStale(exchange market.ExchangeID, pair string) bool {
	data, ok := s.GetPrice(exchange, pair)
	if !ok {
		return false
	}
	return data.IsStale(s.maxAge)
}

// GetSpread returns the absolute difference of mid prices for a pair across
// two exchanges. The second return value is false when either price is
// absent, either price is older than MaxAge, or the two capture timestamps
// differ by more than MaxAge/2.
func (s *PriceState) GetSpread(ex1, ex2 market.ExchangeID, pair string) (decimal.Decimal, bool) {
	price1, ok := s.GetPrice(ex1, pair)
	if !ok {
		return decimal.Zero, false
	}
	price2, ok := s.GetPrice(ex2, pair)
	if !ok {
		return decimal.Zero, false
	}

	if price1.IsStale(s.maxAge) || price2.IsStale(s.maxAge) {
		return decimal.Zero, false
	}

	timeDiff := price1.ReceivedAt.Sub(price2.ReceivedAt)
	if timeDiff < 0 {
		timeDiff = -timeDiff
	}
	if timeDiff > s.maxAge/2 {
		return decimal.Zero, false
	}

	mid1 := price1.Price.MidPrice()
	mid2 := price2.Price.MidPrice()
	return mid2.Sub(mid1).Abs(), true
}

// GetSpreadPercentage returns the spread as a percentage of the first
// exchange's mid price. The same rejection rules as GetSpread apply, plus a
// false return when that mid price is exactly zero.
func (s *PriceState) GetSpreadPercentage(ex1, ex2 market.ExchangeID, pair string) (decimal.Decimal, bool) {
	spread, ok := s.GetSpread(ex1, ex2, pair)
	if !ok {
		return decimal.Zero, false
	}
	price1, ok := s.GetPrice(ex1, pair)
	if !ok {
		return decimal.Zero, false
	}
	mid1 := price1.Price.MidPrice()
	if mid1.IsZero() {
		return decimal.Zero, false
	}
	return spread.Div(mid1).Mul(hundred), true
}

// RemoveStalePrices deletes every entry older than MaxAge and returns how
// many were removed. Intended for periodic housekeeping; nothing expires
// automatically on read.
func (s *PriceState) RemoveStalePrices() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, data := range s.prices {
		if data.IsStale(s.maxAge) {
			delete(s.prices, key)
			removed++
		}
	}
	return removed
}

// GetAllPrices returns a snapshot copy of the cache, for diagnostics.
func (s *PriceState) GetAllPrices() map[Key]market.PriceData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Key]market.PriceData, len(s.prices))
	for k, v := range s.prices {
		out[k] = v
	}
	return out
}

// Clear wipes the cache.
func (s *PriceState) Clear() {
	s.mu.Lock()
	s.prices = make(map[Key]market.PriceData)
	s.mu.Unlock()
}
