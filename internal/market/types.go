package market

import "time"

// ExchangeID identifies an exchange for price tracking. It is a closed
// enumeration rather than an open string so cache keys stay finite and cheap
// to hash.
type ExchangeID uint8

const (
	ExchangeBinance ExchangeID = iota
	ExchangeCoinbase
)

func (e ExchangeID) String() string {
	switch e {
	case ExchangeBinance:
		return "binance"
	case ExchangeCoinbase:
		return "coinbase"
	default:
		return "unknown"
	}
}

// PriceData wraps a Price with the metadata the cache needs: a local receipt
// timestamp used for staleness math (local so it is immune to clock skew
// between exchanges) and an opaque sequence number retained for future
// ordering guarantees.
type PriceData struct {
	Price      Price
	ReceivedAt time.Time
	Sequence   uint64
}

// NewPriceData stamps the price with the current local time.
func NewPriceData(price Price, sequence uint64) PriceData {
	return PriceData{
		Price:      price,
		ReceivedAt: time.Now(),
		Sequence:   sequence,
	}
}

// Age returns how long ago this price was received.
func (d PriceData) Age() time.Duration {
	return time.Since(d.ReceivedAt)
}

// IsStale reports whether the price is older than maxAge.
func (d PriceData) IsStale(maxAge time.Duration) bool {
	return d.Age() > maxAge
}
