package logger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type componentTally struct {
	warns  int64
	errors int64
}

var tallies sync.Map // map[string]*componentTally

func recordWarn(component string) {
	v, _ := tallies.LoadOrStore(component, &componentTally{})
	atomic.AddInt64(&v.(*componentTally).warns, 1)
}

func recordError(component string) {
	v, _ := tallies.LoadOrStore(component, &componentTally{})
	atomic.AddInt64(&v.(*componentTally).errors, 1)
}

// WarnCount returns the number of warnings recorded for a component.
func WarnCount(component string) int64 {
	if v, ok := tallies.Load(component); ok {
		return atomic.LoadInt64(&v.(*componentTally).warns)
	}
	return 0
}

// ErrorCount returns the number of errors recorded for a component.
func ErrorCount(component string) int64 {
	if v, ok := tallies.Load(component); ok {
		return atomic.LoadInt64(&v.(*componentTally).errors)
	}
	return 0
}

// StartReport periodically logs per-component warning and error tallies.
// Used with the "report" log level to keep long-running feeds observable
// without per-message noise.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fields := Fields{}
				tallies.Range(func(k, v interface{}) bool {
					t := v.(*componentTally)
					fields[k.(string)+"_warns"] = atomic.LoadInt64(&t.warns)
					fields[k.(string)+"_errors"] = atomic.LoadInt64(&t.errors)
					return true
				})
				log.WithComponent("report").WithFields(fields).Info("component health report")
			}
		}
	}()
}
