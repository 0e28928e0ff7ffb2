package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func defaultWindow() Window {
	return Window{
		TradingStart: 10 * time.Hour,
		TradingEnd:   15*time.Hour + 30*time.Minute,
	}
}

func TestIsTradingWindow(t *testing.T) {
	c := New(defaultWindow(), nil)
	loc, _ := time.LoadLocation("America/New_York")
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc) // a Monday

	assert.False(t, c.IsTradingWindow(day.Add(10*time.Hour+4*time.Minute)), "before open+5m buffer")
	assert.True(t, c.IsTradingWindow(day.Add(10*time.Hour+5*time.Minute)), "exactly open+5m")
	assert.True(t, c.IsTradingWindow(day.Add(12*time.Hour)))
	assert.False(t, c.IsTradingWindow(day.Add(15*time.Hour+25*time.Minute)), "inside close-5m buffer")
}

func TestIsTradingWindow_LunchBreak(t *testing.T) {
	w := defaultWindow()
	w.LunchStart = 12 * time.Hour
	w.LunchEnd = 13 * time.Hour
	c := New(w, nil)
	loc, _ := time.LoadLocation("America/New_York")
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	assert.False(t, c.IsTradingWindow(day.Add(12*time.Hour+30*time.Minute)))
	assert.True(t, c.IsTradingWindow(day.Add(13*time.Hour+1*time.Minute)))
}

type stubCalendar struct {
	holiday bool
	err     error
}

func (s stubCalendar) IsHoliday(time.Time) (bool, error) { return s.holiday, s.err }
func (s stubCalendar) SessionHours(time.Time) (time.Time, time.Time, bool, error) {
	return time.Time{}, time.Time{}, false, s.err
}

func TestCalendarFailureDegradesToWallClock(t *testing.T) {
	c := New(defaultWindow(), stubCalendar{err: assertErr{}})
	loc, _ := time.LoadLocation("America/New_York")
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	assert.True(t, c.IsMarketOpen(day.Add(12*time.Hour)), "should fall back to wall-clock hours on calendar error")
}

type assertErr struct{}

func (assertErr) Error() string { return "calendar unavailable" }
