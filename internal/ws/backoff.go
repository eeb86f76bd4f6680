package ws

import (
	"math"
	"time"
)

// Exponent cap keeps multiplier^n inside float64 range.
const maxBackoffExponent = 30

// ReconnectionStrategy decides whether another connection attempt is
// permitted and how long to wait before it. One instance belongs to one
// manager's run loop; it is not safe for concurrent use.
type ReconnectionStrategy struct {
	// MaxRetries of zero or less means retry forever.
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	attempt int
}

// NewReconnectionStrategy builds a strategy with the classic 2.0 multiplier.
func NewReconnectionStrategy(maxRetries int, initialDelay, maxDelay time.Duration) *ReconnectionStrategy {
	return &ReconnectionStrategy{
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
		Multiplier:   2.0,
	}
}

// ExponentialBackoff returns the default production strategy: up to ten
// retries, starting at one second, capped at one minute.
func ExponentialBackoff() *ReconnectionStrategy {
	return NewReconnectionStrategy(10, time.Second, 60*time.Second)
}

// ShouldRetry reports whether another attempt is permitted.
func (s *ReconnectionStrategy) ShouldRetry() bool {
	if s.MaxRetries <= 0 {
		return true
	}
	return s.attempt < s.MaxRetries
}

// NextDelay computes initialDelay * multiplier^attempt clamped to MaxDelay,
// and increments the attempt counter. Call at most once per attempt.
func (s *ReconnectionStrategy) NextDelay() time.Duration {
	exponent := s.attempt
	if exponent > maxBackoffExponent {
		exponent = maxBackoffExponent
	}
	s.attempt++

	delay := float64(s.InitialDelay) * math.Pow(s.Multiplier, float64(exponent))
	if delay < 0 || delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// Reset zeroes the attempt counter. Called once per successful connection,
// so a long-lived healthy connection restarts backoff from the minimum
// delay on its next failure.
func (s *ReconnectionStrategy) Reset() {
	s.attempt = 0
}

// Attempt returns the number of NextDelay calls since the last Reset.
func (s *ReconnectionStrategy) Attempt() int {
	return s.attempt
}
