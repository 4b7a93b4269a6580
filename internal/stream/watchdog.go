package stream

import (
	"context"
	"fmt"
	"time"
)

const (
	// WatchInterval is how often the watchdog samples a channel.
	WatchInterval = 1000 * time.Millisecond
	// StaleAfter is the silence after which an open feed counts as stale.
	StaleAfter = 3000 * time.Millisecond
)

// HealthStatus is the watchdog verdict.
type HealthStatus int

const (
	HealthHealthy HealthStatus = iota
	HealthStale
)

// Health is one watchdog reading.
type Health struct {
	Status HealthStatus
	State  State
	// Elapsed is the silence since the last message.
	Elapsed time.Duration
	// ElapsedSeconds is Elapsed floored to whole seconds.
	ElapsedSeconds int
}

func (h Health) String() string {
	if h.Status == HealthStale {
		return fmt.Sprintf("no data for %ds", h.ElapsedSeconds)
	}
	return "healthy"
}

// Evaluate reports stale only for an open channel silent for StaleAfter or
// longer. Every other case is healthy; connection state is carried along for
// the caller to render separately.
func Evaluate(state State, lastMessage, now time.Time) Health {
	h := Health{Status: HealthHealthy, State: state}
	if state != StateOpen || lastMessage.IsZero() {
		return h
	}
	elapsed := now.Sub(lastMessage)
	if elapsed < 0 {
		elapsed = 0
	}
	h.Elapsed = elapsed
	h.ElapsedSeconds = int(elapsed / time.Second)
	if elapsed >= StaleAfter {
		h.Status = HealthStale
	}
	return h
}

// Source is what the watchdog polls; *Channel implements it.
type Source interface {
	Status() (State, time.Time)
}

// Watchdog polls a Source and reports health readings. It is layered on top
// of a channel and never changes the channel's state.
type Watchdog struct {
	source   Source
	report   func(Health)
	now      func() time.Time
	interval time.Duration
}

// NewWatchdog builds a watchdog ticking every WatchInterval.
func NewWatchdog(source Source, report func(Health)) *Watchdog {
	return &Watchdog{source: source, report: report, now: time.Now, interval: WatchInterval}
}

// Check takes one reading and reports it.
func (w *Watchdog) Check() Health {
	state, last := w.source.Status()
	h := Evaluate(state, last, w.now())
	if w.report != nil {
		w.report(h)
	}
	return h
}

// Run checks every interval until ctx ends.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Check()
		}
	}
}
