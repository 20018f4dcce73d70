// Package calendar implements A-share trading-hours scheduling.
package calendar

import (
	"time"
)

// 北京时间。
var CST = time.FixedZone("CST", 8*3600)

// 交易时段（含边界）：9:25-11:32，12:55-15:02。
// 早于正式开盘、晚于收盘各留几分钟缓冲，覆盖集合竞价与收盘价产生。
var (
	morningStart   = clock{9, 25}
	morningEnd     = clock{11, 32}
	afternoonStart = clock{12, 55}
	afternoonEnd   = clock{15, 2}
)

type clock struct{ hour, minute int }

func (c clock) seconds() int { return (c.hour*60 + c.minute) * 60 }

func daySeconds(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// Period 自定义时间段，HH:MM 闭区间。
type Period struct {
	Start string `mapstructure:"start" json:"start"`
	End   string `mapstructure:"end" json:"end"`
}

// Calendar 判定交易日/交易时段并计算休眠时长。
// 节假日与调休补班日来自外部配置；两者都为空时退化为
// 周一至周五近似（会把交易所假日误判为开市）。
type Calendar struct {
	holidays map[string]bool
	workdays map[string]bool
	nowFn    func() time.Time
}

// New 构造日历。holidays/workdays 为 "2006-01-02" 格式的日期列表。
func New(holidays, workdays []string) *Calendar {
	c := &Calendar{
		holidays: make(map[string]bool, len(holidays)),
		workdays: make(map[string]bool, len(workdays)),
		nowFn:    func() time.Time { return time.Now().In(CST) },
	}
	for _, d := range holidays {
		c.holidays[d] = true
	}
	for _, d := range workdays {
		c.workdays[d] = true
	}
	return c
}

// SetNowFunc 注入时钟，仅测试使用。
func (c *Calendar) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		c.nowFn = fn
	}
}

// Now 当前北京时间。
func (c *Calendar) Now() time.Time {
	return c.nowFn().In(CST)
}

// IsTradingTime 当前是否处于交易时段。
func (c *Calendar) IsTradingTime() bool {
	return c.IsTradingTimeAt(c.Now())
}

// IsTradingTimeAt 指定时刻是否处于交易时段。
func (c *Calendar) IsTradingTimeAt(now time.Time) bool {
	now = now.In(CST)
	if !c.isMarketOpenDay(now) {
		return false
	}
	s := daySeconds(now)
	return (s >= morningStart.seconds() && s <= morningEnd.seconds()) ||
		(s >= afternoonStart.seconds() && s <= afternoonEnd.seconds())
}

// NextTradingOpen 计算下一个交易时段开始时间。
// 中午休市返回当天 12:55，其余情况返回下一交易日 9:25。
func (c *Calendar) NextTradingOpen(now time.Time) (time.Time, string) {
	now = now.In(CST)
	s := daySeconds(now)

	if s > morningEnd.seconds() && s < afternoonStart.seconds() {
		target := time.Date(now.Year(), now.Month(), now.Day(),
			afternoonStart.hour, afternoonStart.minute, 0, 0, CST)
		return target, "中午休市"
	}

	targetDate := now
	if s >= afternoonEnd.seconds() {
		targetDate = targetDate.AddDate(0, 0, 1)
	}
	for !c.isMarketOpenDay(targetDate) {
		targetDate = targetDate.AddDate(0, 0, 1)
	}

	target := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(),
		morningStart.hour, morningStart.minute, 0, 0, CST)

	reason := "休市"
	if daySpan(now, target) > 1 {
		reason = "周末/节假日"
	}
	return target, reason
}

// SleepDuration 距离下一个交易时段的休眠时长，至少 1 秒。
func (c *Calendar) SleepDuration(now time.Time) (time.Duration, string, time.Time) {
	target, reason := c.NextTradingOpen(now)
	d := target.Sub(now)
	if d < time.Second {
		d = time.Second
	}
	return d, reason, target
}

// InAnyPeriod 当前时刻是否落在任一时间段内（含边界）。
// 无法解析的时间段跳过，不视为错误。
func (c *Calendar) InAnyPeriod(now time.Time, periods []Period) bool {
	now = now.In(CST)
	s := daySeconds(now)
	for _, p := range periods {
		start, ok1 := parseClock(p.Start)
		end, ok2 := parseClock(p.End)
		if !ok1 || !ok2 {
			continue
		}
		if s >= start.seconds() && s <= end.seconds() {
			return true
		}
	}
	return false
}

func (c *Calendar) isMarketOpenDay(t time.Time) bool {
	key := t.In(CST).Format("2006-01-02")
	if len(c.holidays) > 0 || len(c.workdays) > 0 {
		if c.workdays[key] {
			return true
		}
		if c.holidays[key] {
			return false
		}
	}
	wd := t.In(CST).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func daySpan(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, CST)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, CST)
	return int(t.Sub(f) / (24 * time.Hour))
}

func parseClock(s string) (clock, bool) {
	var h, m int
	n := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9':
			if n == 0 {
				h = h*10 + int(ch-'0')
			} else {
				m = m*10 + int(ch-'0')
			}
		case ch == ':':
			n++
			if n > 1 {
				return clock{}, false
			}
		default:
			return clock{}, false
		}
	}
	if n != 1 || h > 23 || m > 59 || len(s) < 3 {
		return clock{}, false
	}
	return clock{h, m}, true
}
