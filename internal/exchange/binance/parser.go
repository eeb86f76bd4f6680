package binance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"arbflow/internal/market"
	"arbflow/internal/symbols"
	"arbflow/internal/ws"
)

// tickerMessage is the 24hr rolling window ticker pushed on the
// <symbol>@ticker stream. Prices arrive as decimal strings.
type tickerMessage struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
	BidPrice  string `json:"b"`
	AskPrice  string `json:"a"`
	Volume    string `json:"v"`
}

// Parser converts raw Binance ticker frames into normalized prices.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

var _ ws.MessageParser = (*Parser)(nil)

func (p *Parser) Parse(raw string) (market.Price, error) {
	var msg tickerMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return market.Price{}, ws.WrapParseError("invalid json", raw, err)
	}
	if msg.EventType != "24hrTicker" {
		return market.Price{}, ws.NewParseError(fmt.Sprintf("not a ticker event: %q", msg.EventType), raw)
	}
	if msg.Symbol == "" {
		return market.Price{}, ws.NewParseError("missing symbol", raw)
	}

	last, err := parseDecimal("last price", msg.LastPrice, raw)
	if err != nil {
		return market.Price{}, err
	}
	bid, err := parseDecimal("bid price", msg.BidPrice, raw)
	if err != nil {
		return market.Price{}, err
	}
	ask, err := parseDecimal("ask price", msg.AskPrice, raw)
	if err != nil {
		return market.Price{}, err
	}

	volume := decimal.Zero
	if msg.Volume != "" {
		if volume, err = parseDecimal("volume", msg.Volume, raw); err != nil {
			return market.Price{}, err
		}
	}

	return market.Price{
		Pair:      symbols.PairFromBinance(msg.Symbol),
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Volume24h: volume,
		Timestamp: time.Now().UTC(),
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
