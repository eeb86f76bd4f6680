// Package market holds the normalized price representation shared by every
// exchange feed. All monetary values are exact decimals; float64 is never
// used for prices because it silently corrupts financial comparisons.
package market

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// Price is an immutable snapshot of market state for one trading pair on one
// exchange. Pair uses the canonical "BASE/QUOTE" form. Ask >= Bid is expected
// but not enforced; exchanges may transiently violate it and callers must
// tolerate crossed books.
type Price struct {
	Pair      string
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Last      decimal.Decimal
	Volume24h decimal.Decimal
	Timestamp time.Time
}

// MidPrice returns the arithmetic mean of bid and ask, used as a fair-value
// proxy for spread calculations.
func (p Price) MidPrice() decimal.Decimal {
	return p.Bid.Add(p.Ask).Div(two)
}

// Spread returns ask minus bid.
func (p Price) Spread() decimal.Decimal {
	return p.Ask.Sub(p.Bid)
}

// SpreadPercentage returns the spread as a percentage of the mid price.
// A zero mid yields zero rather than a division error.
func (p Price) SpreadPercentage() decimal.Decimal {
	mid := p.MidPrice()
	if mid.IsZero() {
		return decimal.Zero
	}
	return p.Spread().Div(mid).Mul(hundred)
}
