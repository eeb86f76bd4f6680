package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestMidPrice(t *testing.T) {
	p := Price{
		Pair: "SOL/USDC",
		Bid:  dec(t, "100"),
		Ask:  dec(t, "101"),
	}
	if got := p.MidPrice(); !got.Equal(dec(t, "100.5")) {
		t.Errorf("mid price = %s, want 100.5", got)
	}
}

func TestSpread(t *testing.T) {
	p := Price{
		Bid: dec(t, "143.48"),
		Ask: dec(t, "143.52"),
	}
	if got := p.Spread(); !got.Equal(dec(t, "0.04")) {
		t.Errorf("spread = %s, want 0.04", got)
	}
}

func TestSpreadPercentageZeroMid(t *testing.T) {
	p := Price{
		Bid: decimal.Zero,
		Ask: decimal.Zero,
	}
	if got := p.SpreadPercentage(); !got.IsZero() {
		t.Errorf("spread percentage with zero mid = %s, want 0", got)
	}
}

func TestSpreadPercentage(t *testing.T) {
	p := Price{
		Bid: dec(t, "100"),
		Ask: dec(t, "101"),
	}
	// spread 1 over mid 100.5
	want := dec(t, "1").Div(dec(t, "100.5")).Mul(dec(t, "100"))
	if got := p.SpreadPercentage(); !got.Equal(want) {
		t.Errorf("spread percentage = %s, want %s", got, want)
	}
}

func TestPriceDataAgeAndStaleness(t *testing.T) {
	d := NewPriceData(Price{Pair: "SOL/USDC"}, 1)
	if d.IsStale(time.Second) {
		t.Error("fresh price reported stale")
	}

	time.Sleep(30 * time.Millisecond)
	if d.Age() < 30*time.Millisecond {
		t.Errorf("age = %s, want >= 30ms", d.Age())
	}
	if !d.IsStale(10 * time.Millisecond) {
		t.Error("aged price not reported stale")
	}
}

func TestExchangeIDString(t *testing.T) {
	if ExchangeBinance.String() != "binance" {
		t.Errorf("unexpected name: %s", ExchangeBinance)
	}
	if ExchangeCoinbase.String() != "coinbase" {
		t.Errorf("unexpected name: %s", ExchangeCoinbase)
	}
}
