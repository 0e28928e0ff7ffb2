package engine

import (
	"context"
	"sync"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/broker"
)

// BrokerCalendar adapts broker.Broker's MarketCalendar (a single snapshot:
// today's open/close plus a holiday list) into clock.Calendar, which clock
// calls without a context. It keeps one fetched snapshot and refetches
// whenever it is asked about a different day than the one it last fetched
// for, and again after a failed fetch. A fetch failure is returned as an
// error, which clock.Clock treats as "fall back to wall-clock hours"
// (spec §4.1).
type BrokerCalendar struct {
	b         broker.Broker
	fetchCtx  context.Context
	timeout   time.Duration

	mu      sync.Mutex
	day     time.Time // midnight of the day `cal` was fetched for
	cal     broker.Calendar
	fetched bool
}

func NewBrokerCalendar(b broker.Broker, fetchCtx context.Context, timeout time.Duration) *BrokerCalendar {
	return &BrokerCalendar{b: b, fetchCtx: fetchCtx, timeout: timeout}
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (c *BrokerCalendar) refresh(date time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	day := dayOf(date)
	if c.fetched && c.day.Equal(day) {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.fetchCtx, c.timeout)
	defer cancel()
	cal, err := c.b.MarketCalendar(ctx)
	if err != nil {
		return err
	}
	c.cal = cal
	c.day = day
	c.fetched = true
	return nil
}

// IsHoliday reports whether date has no session, per the broker's holiday
// list. A fetch failure is surfaced as an error so clock can degrade.
func (c *BrokerCalendar) IsHoliday(date time.Time) (bool, error) {
	if err := c.refresh(date); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	day := dayOf(date)
	for _, h := range c.cal.Holidays {
		if dayOf(h).Equal(day) {
			return true, nil
		}
	}
	return false, nil
}

// SessionHours returns the broker-reported open/close for date. ok is false
// if the fetched calendar's Open/Close don't fall on date (e.g. the broker
// only ever reports "today", and date is a different day).
func (c *BrokerCalendar) SessionHours(date time.Time) (open, close time.Time, ok bool, err error) {
	if err := c.refresh(date); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cal.Open.IsZero() || !dayOf(c.cal.Open).Equal(dayOf(date)) {
		return time.Time{}, time.Time{}, false, nil
	}
	return c.cal.Open, c.cal.Close, true, nil
}
