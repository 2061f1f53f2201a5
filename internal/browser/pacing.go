package browser

import (
	"context"
	"math/rand/v2"
	"time"
)

// Range is an inclusive random delay interval.
type Range struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// Pick returns a random duration within the range.
func (r Range) Pick() time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rand.Int64N(int64(r.Max-r.Min)+1))
}

// Pacing holds the human-cadence delays applied between steps.
type Pacing struct {
	Navigation Range `json:"navigation"`
	Field      Range `json:"field"`
	Keystroke  Range `json:"keystroke"`
}

// DefaultPacing returns the delays used in live runs.
func DefaultPacing() Pacing {
	return Pacing{
		Navigation: Range{Min: 2 * time.Second, Max: 5 * time.Second},
		Field:      Range{Min: 500 * time.Millisecond, Max: time.Second},
		Keystroke:  Range{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond},
	}
}

// NoPacing returns zero delays.
func NoPacing() Pacing {
	return Pacing{}
}

// Pause sleeps for a random duration in r, returning early with ctx.Err() if ctx ends.
func Pause(ctx context.Context, r Range) error {
	d := r.Pick()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
