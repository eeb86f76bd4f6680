package coinbase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"arbflow/internal/market"
	"arbflow/internal/symbols"
	"arbflow/internal/ws"
)

// envelope covers every frame shape the Coinbase feed sends: the legacy flat
// ticker (top-level "type":"ticker" with inline fields), the newer nested
// form ("channel":"ticker" wrapping events[].tickers[]), subscription
// confirmations and server-side error notices.
type envelope struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	Message   string `json:"message"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
	Events    []struct {
		Tickers []tickerPayload `json:"tickers"`
	} `json:"events"`

	// Flat-format ticker fields.
	tickerPayload
}

// tickerPayload holds the price fields common to both formats. The 24h
// volume key has shipped under two spellings; both are accepted.
type tickerPayload struct {
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	BestBid   string `json:"best_bid"`
	BestAsk   string `json:"best_ask"`
	Volume24h string `json:"volume_24h"`
	VolumeAlt string `json:"volume_24_h"`
	Time      string `json:"time"`
}

func (t tickerPayload) volume() string {
	if t.Volume24h != "" {
		return t.Volume24h
	}
	return t.VolumeAlt
}

// Parser converts raw Coinbase frames into normalized prices.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

var _ ws.MessageParser = (*Parser)(nil)

func (p *Parser) Parse(raw string) (market.Price, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return market.Price{}, ws.WrapParseError("invalid json", raw, err)
	}

	switch {
	case env.Type == "error":
		msg := env.Message
		if msg == "" {
			msg = env.Reason
		}
		if msg == "" {
			msg = "unknown error"
		}
		return market.Price{}, &ws.ExchangeError{Exchange: "coinbase", Message: msg}
	case env.Type == "subscriptions":
		return market.Price{}, &ws.SubscribeAckError{Excerpt: ws.Excerpt(raw)}
	case env.Type == "ticker":
		return buildPrice(env.tickerPayload, env.Timestamp, raw)
	case env.Channel == "ticker":
		if len(env.Events) == 0 {
			return market.Price{}, ws.NewParseError("ticker channel frame has no events", raw)
		}
		if len(env.Events[0].Tickers) == 0 {
			return market.Price{}, ws.NewParseError("ticker event has no tickers", raw)
		}
		return buildPrice(env.Events[0].Tickers[0], env.Timestamp, raw)
	default:
		return market.Price{}, ws.NewParseError(fmt.Sprintf("not a ticker frame: type=%q channel=%q", env.Type, env.Channel), raw)
	}
}

func buildPrice(t tickerPayload, envelopeTime, raw string) (market.Price, error) {
	if t.ProductID == "" {
		return market.Price{}, ws.NewParseError("missing product_id", raw)
	}
	last, err := parseDecimal("price", t.Price, raw)
	if err != nil {
		return market.Price{}, err
	}
	bid, err := parseDecimal("best_bid", t.BestBid, raw)
	if err != nil {
		return market.Price{}, err
	}
	ask, err := parseDecimal("best_ask", t.BestAsk, raw)
	if err != nil {
		return market.Price{}, err
	}

	volume := decimal.Zero
	if v := t.volume(); v != "" {
		if volume, err = parseDecimal("volume", v, raw); err != nil {
			return market.Price{}, err
		}
	}

	// Timestamp preference: the ticker's own time, then the envelope
	// timestamp, then now. An unparseable value falls through rather than
	// rejecting an otherwise good price.
	ts := time.Now().UTC()
	for _, candidate := range []string{t.Time, envelopeTime} {
		if candidate == "" {
			continue
		}
		if parsed, err := time.Parse(time.RFC3339, candidate); err == nil {
			ts = parsed
			break
		}
	}

	return market.Price{
		Pair:      symbols.PairFromCoinbase(t.ProductID),
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Volume24h: volume,
		Timestamp: ts,
	}, nil
}

func parseDecimal(field, value, raw string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Decimal{}, ws.NewParseError("missing "+field, raw)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, ws.WrapParseError("bad "+field, raw, err)
	}
	return d, nil
}
