package binance

import (
	"errors"
	"testing"

	"arbflow/internal/ws"
)

const sampleTicker = `{"e":"24hrTicker","E":1700000000000,"s":"SOLUSDC","c":"143.50","b":"143.48","a":"143.52","v":"1234567.89"}`

func TestParseTicker(t *testing.T) {
	price, err := NewParser().Parse(sampleTicker)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if price.Pair != "SOL/USDC" {
		t.Errorf("pair = %q, want SOL/USDC", price.Pair)
	}
	if got := price.Last.String(); got != "143.5" {
		t.Errorf("last = %s, want 143.5", got)
	}
	if got := price.Bid.String(); got != "143.48" {
		t.Errorf("bid = %s, want 143.48", got)
	}
	if got := price.Ask.String(); got != "143.52" {
		t.Errorf("ask = %s, want 143.52", got)
	}
	if got := price.Volume24h.String(); got != "1234567.89" {
		t.Errorf("volume = %s, want 1234567.89", got)
	}
	if price.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestParsePreservesDecimalFidelity(t *testing.T) {
	price, err := NewParser().Parse(sampleTicker)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	// 143.52 - 143.48 must be exactly 0.04, not a float approximation.
	if got := price.Spread().String(); got != "0.04" {
		t.Errorf("spread = %s, want 0.04", got)
	}
}

func TestParseRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `not json at all`},
		{"wrong event type", `{"e":"aggTrade","s":"SOLUSDC","c":"1","b":"1","a":"1"}`},
		{"missing symbol", `{"e":"24hrTicker","c":"1","b":"1","a":"1"}`},
		{"missing bid", `{"e":"24hrTicker","s":"SOLUSDC","c":"1","a":"1"}`},
		{"bad decimal", `{"e":"24hrTicker","s":"SOLUSDC","c":"oops","b":"1","a":"1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewParser().Parse(tc.raw)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var parseErr *ws.ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("error type = %T, want *ws.ParseError", err)
			}
		})
	}
}

func TestParseDefaultsMissingVolume(t *testing.T) {
	price, err := NewParser().Parse(`{"e":"24hrTicker","s":"BTCUSDT","c":"50000","b":"49999","a":"50001"}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !price.Volume24h.IsZero() {
		t.Errorf("volume = %s, want 0", price.Volume24h)
	}
	if price.Pair != "BTC/USDT" {
		t.Errorf("pair = %q, want BTC/USDT", price.Pair)
	}
}
