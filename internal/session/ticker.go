package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Ticker drives the shared one-second sweep across all rooms. One ticker
// serves every room; there is no per-room timer.
type Ticker struct {
	coord *Coordinator
	clock clockwork.Clock
}

// NewTicker creates the tick scheduler. Pass clockwork.NewRealClock() in
// production and a fake clock in tests.
func NewTicker(coord *Coordinator, clock clockwork.Clock) *Ticker {
	return &Ticker{coord: coord, clock: clock}
}

// Run blocks until ctx is cancelled. The scheduler itself never stops on
// per-room errors; those are handled inside Tick.
func (t *Ticker) Run(ctx context.Context) {
	ticker := t.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.coord.Tick(ctx)
		}
	}
}
