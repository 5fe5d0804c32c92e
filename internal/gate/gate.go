// Package gate holds the two tiny time gates the manager threads through
// its cycle: a recurring interval check and a one-shot cooldown. Both are
// plain value state passed explicitly, never package globals, so they can
// be tested with a fixed clock.
package gate

import "time"

// Interval gates a feature to run at most once per Every. A zero Interval
// is always due.
type Interval struct {
	Every time.Duration
	last  time.Time
}

// Due reports whether the interval has elapsed since the last run, and if
// so marks now as the last run.
func (i *Interval) Due(now time.Time) bool {
	if !i.last.IsZero() && now.Sub(i.last) < i.Every {
		return false
	}
	i.last = now
	return true
}

// Reset forgets the last run so the next Due fires.
func (i *Interval) Reset() { i.last = time.Time{} }

// Cooldown blocks until a deadline set by Set.
type Cooldown struct {
	until time.Time
}

func (c *Cooldown) Set(now time.Time, d time.Duration) { c.until = now.Add(d) }

func (c *Cooldown) Active(now time.Time) bool {
	return !c.until.IsZero() && now.Before(c.until)
}

func (c *Cooldown) Clear() { c.until = time.Time{} }

// Until exposes the deadline, zero when no cooldown is set.
func (c *Cooldown) Until() time.Time { return c.until }
