// Package symbols converts between the canonical "BASE/QUOTE" pair form and
// each exchange's native symbol syntax. The core cache and parsers operate on
// canonical pairs only; conversion happens at the exchange boundary.
package symbols

import "strings"

// Known quote assets, longest first so e.g. USDC is not mistaken for USD.
var quoteAssets = []string{
	"FDUSD", "USDT", "USDC", "TUSD", "BUSD",
	"USD", "EUR", "GBP", "BTC", "ETH", "BNB", "DAI",
}

// PairFromBinance converts a concatenated Binance symbol into the canonical
// pair form, e.g. "SOLUSDC" -> "SOL/USDC".
//
// Binance symbols carry no separator, so the split is resolved against the
// known quote-asset table first. Symbols with an unrecognized quote fall back
// to a midpoint split, which is only correct when base and quote have equal
// length.
func PairFromBinance(symbol string) string {
	sym := strings.ToUpper(symbol)
	for _, quote := range quoteAssets {
		if base, ok := strings.CutSuffix(sym, quote); ok && base != "" {
			return base + "/" + quote
		}
	}
	if len(sym) >= 6 {
		mid := len(sym) / 2
		return sym[:mid] + "/" + sym[mid:]
	}
	return "UNKNOWN/" + sym
}

// ToBinance converts a canonical pair to Binance symbol form,
// e.g. "SOL/USDC" -> "SOLUSDC".
func ToBinance(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
}

// PairFromCoinbase converts a Coinbase product id to the canonical pair form,
// e.g. "SOL-USDC" -> "SOL/USDC".
func PairFromCoinbase(productID string) string {
	return strings.ReplaceAll(productID, "-", "/")
}

// ToCoinbase converts a canonical pair to Coinbase product id form,
// e.g. "SOL/USDC" -> "SOL-USDC".
func ToCoinbase(pair string) string {
	return strings.ReplaceAll(pair, "/", "-")
}
