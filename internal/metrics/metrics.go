// Package metrics tracks feed-health counters: parsed messages, parse
// errors, reconnect attempts, broadcast drops and swept stale prices.
// Counters are process-global and safe for concurrent use.
package metrics

import "sync/atomic"

var (
	messagesParsed atomic.Int64
	parseErrors    atomic.Int64
	reconnects     atomic.Int64
	broadcastDrops atomic.Int64
	pricesSwept    atomic.Int64
)

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	MessagesParsed int64
	ParseErrors    int64
	Reconnects     int64
	BroadcastDrops int64
	PricesSwept    int64
}

func IncMessageParsed() { messagesParsed.Add(1) }

func IncParseError() { parseErrors.Add(1) }

func IncReconnect() { reconnects.Add(1) }

func AddBroadcastDrops(n int64) { broadcastDrops.Add(n) }

func AddPricesSwept(n int64) { pricesSwept.Add(n) }

// Read returns the current counter totals.
func Read() Snapshot {
	return Snapshot{
		MessagesParsed: messagesParsed.Load(),
		ParseErrors:    parseErrors.Load(),
		Reconnects:     reconnects.Load(),
		BroadcastDrops: broadcastDrops.Load(),
		PricesSwept:    pricesSwept.Load(),
	}
}

// Reset zeroes all counters. Intended for tests.
func Reset() {
	messagesParsed.Store(0)
	parseErrors.Store(0)
	reconnects.Store(0)
	broadcastDrops.Store(0)
	pricesSwept.Store(0)
}

// Delta returns the counter increments since a previous snapshot.
func Delta(prev Snapshot) Snapshot {
	cur := Read()
	return Snapshot{
		MessagesParsed: cur.MessagesParsed - prev.MessagesParsed,
		ParseErrors:    cur.ParseErrors - prev.ParseErrors,
		Reconnects:     cur.Reconnects - prev.Reconnects,
		BroadcastDrops: cur.BroadcastDrops - prev.BroadcastDrops,
		PricesSwept:    cur.PricesSwept - prev.PricesSwept,
	}
}
