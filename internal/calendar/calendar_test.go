package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-06-04 is a Wednesday.
func cst(hour, min, sec int) time.Time {
	return time.Date(2025, 6, 4, hour, min, sec, 0, CST)
}

func TestIsTradingTimeBoundaries(t *testing.T) {
	c := New(nil, nil)

	assert.True(t, c.IsTradingTimeAt(cst(9, 25, 0)))
	assert.True(t, c.IsTradingTimeAt(cst(11, 32, 0)))
	assert.True(t, c.IsTradingTimeAt(cst(12, 55, 0)))
	assert.True(t, c.IsTradingTimeAt(cst(15, 2, 0)))
	assert.True(t, c.IsTradingTimeAt(cst(10, 30, 0)))

	assert.False(t, c.IsTradingTimeAt(cst(9, 24, 59)))
	assert.False(t, c.IsTradingTimeAt(cst(11, 33, 0)))
	assert.False(t, c.IsTradingTimeAt(cst(12, 0, 0)))
	assert.False(t, c.IsTradingTimeAt(cst(15, 3, 0)))
}

func TestIsTradingTimeWeekend(t *testing.T) {
	c := New(nil, nil)
	// 2025-06-07 is a Saturday.
	sat := time.Date(2025, 6, 7, 10, 0, 0, 0, CST)
	assert.False(t, c.IsTradingTimeAt(sat))
	assert.False(t, c.IsTradingTimeAt(sat.Add(4*time.Hour)))
}

func TestIsTradingTimeHolidayCalendar(t *testing.T) {
	c := New([]string{"2025-06-04"}, []string{"2025-06-07"})

	assert.False(t, c.IsTradingTimeAt(cst(10, 0, 0)), "configured holiday should be closed")
	// makeup workday on a Saturday
	sat := time.Date(2025, 6, 7, 10, 0, 0, 0, CST)
	assert.True(t, c.IsTradingTimeAt(sat))
}

func TestNextTradingOpenMiddayBreak(t *testing.T) {
	c := New(nil, nil)
	target, reason := c.NextTradingOpen(cst(11, 40, 0))
	assert.Equal(t, "中午休市", reason)
	assert.Equal(t, cst(12, 55, 0), target)
}

func TestNextTradingOpenAfterClose(t *testing.T) {
	c := New(nil, nil)
	target, reason := c.NextTradingOpen(cst(15, 10, 0))
	assert.Equal(t, "休市", reason)
	assert.Equal(t, time.Date(2025, 6, 5, 9, 25, 0, 0, CST), target)
}

func TestNextTradingOpenRollsOverWeekend(t *testing.T) {
	c := New(nil, nil)
	// Friday 2025-06-06 after close: next open is Monday 06-09.
	fri := time.Date(2025, 6, 6, 16, 0, 0, 0, CST)
	target, reason := c.NextTradingOpen(fri)
	assert.Equal(t, "周末/节假日", reason)
	assert.Equal(t, time.Date(2025, 6, 9, 9, 25, 0, 0, CST), target)
}

func TestNextTradingOpenPreMarket(t *testing.T) {
	c := New(nil, nil)
	target, reason := c.NextTradingOpen(cst(8, 0, 0))
	assert.Equal(t, "休市", reason)
	assert.Equal(t, cst(9, 25, 0), target)
}

func TestSleepDuration(t *testing.T) {
	c := New(nil, nil)
	d, reason, target := c.SleepDuration(cst(11, 40, 0))
	assert.Equal(t, "中午休市", reason)
	assert.Equal(t, cst(12, 55, 0), target)
	assert.Equal(t, 75*time.Minute, d)

	// already past target: clamped to one second
	d, _, _ = c.SleepDuration(cst(12, 54, 59).Add(2 * time.Second))
	require.GreaterOrEqual(t, d, time.Second)
}

func TestInAnyPeriod(t *testing.T) {
	c := New(nil, nil)
	periods := []Period{
		{Start: "09:25", End: "11:35"},
		{Start: "12:55", End: "15:05"},
	}
	assert.True(t, c.InAnyPeriod(cst(9, 25, 0), periods))
	assert.True(t, c.InAnyPeriod(cst(13, 0, 0), periods))
	assert.False(t, c.InAnyPeriod(cst(12, 0, 0), periods))
	assert.False(t, c.InAnyPeriod(cst(20, 0, 0), periods))
}

func TestInAnyPeriodSkipsMalformed(t *testing.T) {
	c := New(nil, nil)
	periods := []Period{
		{Start: "garbage", End: "11:35"},
		{Start: "12:55", End: ""},
		{Start: "09:00", End: "10:00"},
	}
	assert.True(t, c.InAnyPeriod(cst(9, 30, 0), periods))
	assert.False(t, c.InAnyPeriod(cst(13, 0, 0), periods))
}

func TestNowUsesInjectedClock(t *testing.T) {
	c := New(nil, nil)
	fixed := cst(10, 0, 0)
	c.SetNowFunc(func() time.Time { return fixed })
	assert.True(t, c.IsTradingTime())
	assert.Equal(t, fixed, c.Now())
}
