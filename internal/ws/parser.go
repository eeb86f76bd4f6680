// Package ws owns the exchange-facing websocket machinery: the reconnecting
// connection manager, the exponential-backoff reconnection strategy, the
// message-parser contract and the broadcast fan-out for parsed prices.
package ws

import (
	"fmt"

	"arbflow/internal/market"
)

// MessageParser converts one exchange-specific text frame into a normalized
// Price. Implementations must be pure: no I/O, no shared mutable state, safe
// for any number of concurrent callers. Parsers never log; failure context
// travels in the returned error.
type MessageParser interface {
	Parse(message string) (market.Price, error)
}

// excerptLen bounds how much of a failing message is carried in errors.
const excerptLen = 200

// Excerpt returns a truncated copy of a wire message suitable for embedding
// in parse errors.
func Excerpt(message string) string {
	if len(message) > excerptLen {
		return message[:excerptLen] + "..."
	}
	return message
}

// ParseError reports that a wire message could not be converted into a
// Price: malformed JSON, a wrong or absent message-type discriminant, a
// missing field or a non-decimal numeric string. Excerpt carries the start
// of the offending message for debugging.
type ParseError struct {
	Reason  string
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (message: %s)", e.Reason, e.Err, e.Excerpt)
	}
	return fmt.Sprintf("%s (message: %s)", e.Reason, e.Excerpt)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError builds a ParseError with an excerpt of the message.
func NewParseError(reason, message string) *ParseError {
	return &ParseError{Reason: reason, Excerpt: Excerpt(message)}
}

// WrapParseError builds a ParseError that wraps an underlying cause.
func WrapParseError(reason, message string, err error) *ParseError {
	return &ParseError{Reason: reason, Excerpt: Excerpt(message), Err: err}
}

// SubscribeAckError marks a subscription-confirmation frame. Not a ticker,
// but also not a malformed message; callers typically log it at debug level
// at most.
type SubscribeAckError struct {
	Excerpt string
}

func (e *SubscribeAckError) Error() string {
	return fmt.Sprintf("subscription confirmation, not a ticker (message: %s)", e.Excerpt)
}

// ExchangeError carries an error notification sent by the exchange itself
// over the stream, as opposed to a message our parser could not understand.
type ExchangeError struct {
	Exchange string
	Message  string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s reported error: %s", e.Exchange, e.Message)
}
