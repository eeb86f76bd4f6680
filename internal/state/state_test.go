package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"arbflow/internal/market"
)

func testPrice(t *testing.T, pair, bid, ask string) market.Price {
	t.Helper()
	b, err := decimal.NewFromString(bid)
	if err != nil {
		t.Fatalf("bad bid %q: %v", bid, err)
	}
	a, err := decimal.NewFromString(ask)
	if err != nil {
		t.Fatalf("bad ask %q: %v", ask, err)
	}
	return market.Price{
		Pair:      pair,
		Bid:       b,
		Ask:       a,
		Last:      b,
		Timestamp: time.Now(),
	}
}

func TestUpdateAndGetPrice(t *testing.T) {
	s := New(5 * time.Second)

	s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "100", "101"), 7)

	data, ok := s.GetPrice(market.ExchangeBinance, "SOL/USDC")
	if !ok {
		t.Fatal("price missing after update")
	}
	if data.Price.Pair != "SOL/USDC" {
		t.Errorf("unexpected pair: %s", data.Price.Pair)
	}
	if !data.Price.Bid.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unexpected bid: %s", data.Price.Bid)
	}
	if data.Sequence != 7 {
		t.Errorf("unexpected sequence: %d", data.Sequence)
	}
}

func TestGetPriceMissing(t *testing.T) {
	s := New(5 * time.Second)
	if _, ok := s.GetPrice(market.ExchangeCoinbase, "BTC/USD"); ok {
		t.Fatal("expected miss for empty state")
	}
}

func TestSpreadCalculation(t *testing.T) {
	s := New(5 * time.Second)

	// Binance mid 100.5, Coinbase mid 102.5 -> spread 2
	s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "100", "101"), 1)
	s.UpdatePrice(market.ExchangeCoinbase, "SOL/USDC", testPrice(t, "SOL/USDC", "102", "103"), 1)

	spread, ok := s.GetSpread(market.ExchangeBinance, market.ExchangeCoinbase, "SOL/USDC")
	if !ok {
		t.Fatal("expected spread")
	}
	if !spread.Equal(decimal.NewFromInt(2)) {
		t.Errorf("spread = %s, want 2", spread)
	}
}

func TestSpreadMissingSide(t *testing.T) {
	s := New(5 * time.Second)
	s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "100", "101"), 1)

	if _, ok := s.GetSpread(market.ExchangeBinance, market.ExchangeCoinbase, "SOL/USDC"); ok {
		t.Fatal("expected no spread with one side missing")
	}
}

func TestSpreadStalePriceRejected(t *testing.T) {
	s := New(40 * time.Millisecond)

	s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "100", "101"), 1)
	time.Sleep(60 * time.Millisecond)
	s.UpdatePrice(market.ExchangeCoinbase, "SOL/USDC", testPrice(t, "SOL/USDC", "102", "103"), 1)

	if _, ok := s.GetSpread(market.ExchangeBinance, market.ExchangeCoinbase, "SOL/USDC"); ok {
		t.Fatal("expected stale side to reject spread")
	}
}

func TestSpreadCaptureSkewRejected(t *testing.T) {
	// maxAge 200ms: neither sample goes stale within the test, but captures
	// more than 100ms apart must be rejected.
	s := New(200 * time.Millisecond)

	s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "100", "101"), 1)
	time.Sleep(130 * time.Millisecond)
	s.UpdatePrice(market.ExchangeCoinbase, "SOL/USDC", testPrice(t, "SOL/USDC", "102", "103"), 1)

	if _, ok := s.GetSpread(market.ExchangeBinance, market.ExchangeCoinbase, "SOL/USDC"); ok {
		t.Fatal("expected capture-time skew to reject spread")
	}
}

func TestSpreadPercentage(t *testing.T) {
	s := New(5 * time.Second)

	s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "100", "101"), 1)
	s.UpdatePrice(market.ExchangeCoinbase, "SOL/USDC", testPrice(t, "SOL/USDC", "102", "103"), 1)

	pct, ok := s.GetSpreadPercentage(market.ExchangeBinance, market.ExchangeCoinbase, "SOL/USDC")
	if !ok {
		t.Fatal("expected spread percentage")
	}
	want := decimal.NewFromInt(2).
		Div(decimal.RequireFromString("100.5")).
		Mul(decimal.NewFromInt(100))
	if !pct.Equal(want) {
		t.Errorf("spread percentage = %s, want %s", pct, want)
	}
}

func TestSpreadPercentageZeroMid(t *testing.T) {
	s := New(5 * time.Second)

	s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "0", "0"), 1)
	s.UpdatePrice(market.ExchangeCoinbase, "SOL/USDC", testPrice(t, "SOL/USDC", "102", "103"), 1)

	if _, ok := s.GetSpreadPercentage(market.ExchangeBinance, market.ExchangeCoinbase, "SOL/USDC"); ok {
		t.Fatal("expected zero mid to reject spread percentage")
	}
}

func TestIsStale(t *testing.T) {
	s := New(30 * time.Millisecond)

	// Absent entries are not stale.
	if s.IsStale(market.ExchangeBinance, "SOL/USDC") {
		t.Fatal("absent entry reported stale")
	}

	s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "100", "101"), 1)
	if s.IsStale(market.ExchangeBinance, "SOL/USDC") {
		t.Fatal("fresh entry reported stale")
	}

	time.Sleep(50 * time.Millisecond)
	if !s.IsStale(market.ExchangeBinance, "SOL/USDC") {
		t.Fatal("aged entry not reported stale")
	}
}

func TestRemoveStalePrices(t *testing.T) {
	s := New(50 * time.Millisecond)

	s.UpdatePrice(market.ExchangeCoinbase, "BTC/USD", testPrice(t, "BTC/USD", "50000", "50001"), 1)
	time.Sleep(70 * time.Millisecond)
	s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "100", "101"), 1)

	removed := s.RemoveStalePrices()
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := s.GetPrice(market.ExchangeBinance, "SOL/USDC"); !ok {
		t.Error("fresh entry was swept")
	}
	if _, ok := s.GetPrice(market.ExchangeCoinbase, "BTC/USD"); ok {
		t.Error("stale entry survived sweep")
	}
}

func TestClear(t *testing.T) {
	s := New(5 * time.Second)
	s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "100", "101"), 1)

	s.Clear()
	if len(s.GetAllPrices()) != 0 {
		t.Fatal("state not empty after clear")
	}
}

func TestConcurrentUpdatesNoLostWrites(t *testing.T) {
	s := New(5 * time.Second)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pair := fmt.Sprintf("PAIR%d/USDC", i)
			s.UpdatePrice(market.ExchangeBinance, pair, testPrice(t, pair, "100", "101"), uint64(i))
		}(i)
	}
	wg.Wait()

	all := s.GetAllPrices()
	if len(all) != n {
		t.Fatalf("got %d entries, want %d", len(all), n)
	}
	for i := 0; i < n; i++ {
		key := Key{Exchange: market.ExchangeBinance, Pair: fmt.Sprintf("PAIR%d/USDC", i)}
		if _, ok := all[key]; !ok {
			t.Errorf("missing entry for %s", key.Pair)
		}
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := New(5 * time.Second)
	s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "100", "101"), 0)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			seq := uint64(0)
			for {
				select {
				case <-done:
					return
				default:
					seq++
					s.UpdatePrice(market.ExchangeBinance, "SOL/USDC", testPrice(t, "SOL/USDC", "100", "101"), seq)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					s.GetPrice(market.ExchangeBinance, "SOL/USDC")
					s.GetSpread(market.ExchangeBinance, market.ExchangeCoinbase, "SOL/USDC")
					s.IsStale(market.ExchangeBinance, "SOL/USDC")
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(done)
	wg.Wait()

	if _, ok := s.GetPrice(market.ExchangeBinance, "SOL/USDC"); !ok {
		t.Fatal("entry lost during concurrent access")
	}
}
