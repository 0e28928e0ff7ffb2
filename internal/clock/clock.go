// Package clock is the single source of truth for "now" and the trading
// session's open/close/window boundaries.
//
// Design rules (from spec):
//   - Time is always Eastern; timestamps are stored as absolute instants.
//   - The trading window is [open+5min, close-5min] minus a configurable
//     lunch break.
//   - If the holiday-calendar lookup fails, degrade to wall-clock ET
//     market hours and log it — never block the engine on calendar I/O.
package clock

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Window is the configurable intraday trading window, expressed as ET
// wall-clock bounds plus an optional lunch break.
type Window struct {
	TradingStart time.Duration // offset from midnight ET, e.g. 10h for 10:00
	TradingEnd   time.Duration // e.g. 15h30m for 15:30
	LunchStart   time.Duration // zero value disables the lunch break
	LunchEnd     time.Duration
}

// Calendar supplies market holidays/half-days. A broker adapter implements
// this; a failing lookup is non-fatal — Clock falls back to wall-clock ET
// hours when it errors.
type Calendar interface {
	// IsHoliday reports whether date (ET calendar day) has no session.
	IsHoliday(date time.Time) (bool, error)
	// SessionHours returns today's open/close instants, accounting for
	// early closes. ok is false if date has no session.
	SessionHours(date time.Time) (open, close time.Time, ok bool, err error)
}

// Clock is the engine's authoritative notion of time and session state.
type Clock struct {
	loc      *time.Location
	window   Window
	calendar Calendar
}

// New builds a Clock anchored to America/New_York, falling back to a fixed
// UTC-5 offset if the tzdata lookup fails (degraded but still safe: ET
// hours are always compared against loc-local wall-clock times).
func New(window Window, calendar Calendar) *Clock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Warn().Err(err).Msg("clock: failed to load America/New_York, using fixed offset")
		loc = time.FixedZone("ET", -5*60*60)
	}
	return &Clock{loc: loc, window: window, calendar: calendar}
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// sessionBounds returns today's open/close instants for t's calendar day,
// degrading to the configured wall-clock window on calendar failure.
func (c *Clock) sessionBounds(t time.Time) (open, close time.Time, ok bool) {
	t = t.In(c.loc)
	if c.calendar != nil {
		if holiday, err := c.calendar.IsHoliday(t); err != nil {
			log.Warn().Err(err).Msg("clock: holiday calendar lookup failed, degrading to wall-clock hours")
		} else if holiday {
			return time.Time{}, time.Time{}, false
		} else if o, cl, sok, err := c.calendar.SessionHours(t); err != nil {
			log.Warn().Err(err).Msg("clock: session-hours lookup failed, degrading to wall-clock hours")
		} else if sok {
			return o, cl, true
		}
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
	return midnight.Add(c.window.TradingStart), midnight.Add(c.window.TradingEnd), true
}

// IsMarketOpen reports whether t falls within today's regular session.
func (c *Clock) IsMarketOpen(t time.Time) bool {
	open, close, ok := c.sessionBounds(t)
	if !ok {
		return false
	}
	return !t.Before(open) && t.Before(close)
}

// IsTradingWindow reports whether t is inside the cycle-eligible window:
// [open+5min, close-5min], excluding any configured lunch break.
func (c *Clock) IsTradingWindow(t time.Time) bool {
	open, close, ok := c.sessionBounds(t)
	if !ok {
		return false
	}
	start := open.Add(5 * time.Minute)
	end := close.Add(-5 * time.Minute)
	if t.Before(start) || !t.Before(end) {
		return false
	}
	if c.window.LunchStart != 0 || c.window.LunchEnd != 0 {
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
		lunchStart := midnight.Add(c.window.LunchStart)
		lunchEnd := midnight.Add(c.window.LunchEnd)
		if !t.Before(lunchStart) && t.Before(lunchEnd) {
			return false
		}
	}
	return true
}

// NextOpen returns the next session open instant strictly after t, skipping
// holidays by probing forward one calendar day at a time (bounded to avoid
// an unbounded loop on a pathological calendar).
func (c *Clock) NextOpen(t time.Time) time.Time {
	t = t.In(c.loc)
	for i := 0; i < 14; i++ {
		open, _, ok := c.sessionBounds(t)
		if ok && t.Before(open) {
			return open
		}
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
		t = midnight.AddDate(0, 0, 1)
	}
	open, _, _ := c.sessionBounds(t)
	return open
}

// NextClose returns today's close instant if t is before it, otherwise the
// next session's close.
func (c *Clock) NextClose(t time.Time) time.Time {
	t = t.In(c.loc)
	_, close, ok := c.sessionBounds(t)
	if ok && t.Before(close) {
		return close
	}
	for i := 0; i < 14; i++ {
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
		t = midnight.AddDate(0, 0, 1)
		_, close, ok := c.sessionBounds(t)
		if ok {
			return close
		}
	}
	return time.Time{}
}
