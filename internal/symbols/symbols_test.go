package symbols

import "testing"

func TestPairFromBinance(t *testing.T) {
	cases := map[string]string{
		"SOLUSDC":  "SOL/USDC",
		"BTCUSDT":  "BTC/USDT",
		"ETHUSD":   "ETH/USD",
		"solusdc":  "SOL/USDC",
		"PEPEBTC":  "PEPE/BTC",
		"USDCUSDT": "USDC/USDT",
		// Unknown quote: midpoint fallback
		"AAABBB": "AAA/BBB",
		// Too short to split
		"SOL": "UNKNOWN/SOL",
	}
	for symbol, want := range cases {
		if got := PairFromBinance(symbol); got != want {
			t.Errorf("PairFromBinance(%q) = %q, want %q", symbol, got, want)
		}
	}
}

func TestToBinance(t *testing.T) {
	if got := ToBinance("SOL/USDC"); got != "SOLUSDC" {
		t.Errorf("ToBinance = %q, want SOLUSDC", got)
	}
	if got := ToBinance("btc/usdt"); got != "BTCUSDT" {
		t.Errorf("ToBinance lowercase = %q, want BTCUSDT", got)
	}
}

func TestCoinbaseRoundTrip(t *testing.T) {
	if got := PairFromCoinbase("SOL-USDC"); got != "SOL/USDC" {
		t.Errorf("PairFromCoinbase = %q, want SOL/USDC", got)
	}
	if got := ToCoinbase("SOL/USDC"); got != "SOL-USDC" {
		t.Errorf("ToCoinbase = %q, want SOL-USDC", got)
	}
}
