// Package strategy implements the built-in alert strategy variants and
// the hot-reloadable catalogue that describes them.
package strategy

import (
	"strings"
	"time"

	"asharewatch/internal/indicator"
	"asharewatch/internal/market"
)

// Signal 策略判定结果："BUY"、"SELL"、"WARNING:xxx" 或空（无信号）。
type Signal string

const (
	SignalNone Signal = ""
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
)

// IsWarning 是否为预警类信号。
func (s Signal) IsWarning() bool {
	return strings.HasPrefix(string(s), "WARNING:")
}

// WarningDetail 预警正文（去掉 WARNING: 前缀）。
func (s Signal) WarningDetail() string {
	if !s.IsWarning() {
		return string(s)
	}
	return strings.TrimPrefix(string(s), "WARNING:")
}

// 策略变体 ID。任务配置中的 strategy 字段取这些值。
const (
	IDMATrend        = "MA_TREND"
	IDMACDMomentum   = "MACD_MOMENTUM"
	IDBollReversion  = "BOLL_REVERSION"
	IDTimeBreakout   = "TIME_BREAKOUT"
	IDGrid           = "GRID"
	IDLimitBoardWarn = "LIMIT_BOARD_WARNING"
)

// Context 策略实例的私有可变状态。每个任务持有独立实例，
// 仅在显式重载或跨日时重置，不在任务间共享。
type Context struct {
	LastTradeType string
	LastBuyPrice  float64
	LastSellPrice float64
	EntryLow      float64

	GridBasePrice *float64
	LastGridLevel *int

	DayHigh     float64
	DayLow      float64
	CurrentDate string

	// 涨跌停预警状态
	WarnDate         string
	WasLimit         bool
	LastLimitVol     *float64
	InitLimitVol     *float64
	MaxLimitVol      float64
	ConsecutiveDrops int
	LastWarningAt    time.Time
	LastWarningType  string
	LastSnapTime     *string
}

// Reset 恢复初始状态。
func (c *Context) Reset() {
	*c = Context{
		DayHigh: -1.0,
		DayLow:  99999.0,
	}
}

// Strategy 单个策略实例：变体 ID + 私有上下文。
type Strategy struct {
	ID      string
	Context Context

	// Now 时钟注入点，TIME_BREAKOUT 与涨跌停冷却依赖墙钟。
	Now func() time.Time
}

// New 构造策略实例。
func New(id string) *Strategy {
	s := &Strategy{ID: id, Now: time.Now}
	s.Context.Reset()
	return s
}

// CheckSignal 用最新指标行、持仓、快照与完整历史做一次判定。
// 缺失所需数据时返回无信号，从不报错。
func (s *Strategy) CheckSignal(row indicator.Row, position int, snap *market.Snapshot, hist *indicator.Series) Signal {
	switch s.ID {
	case IDMATrend:
		return s.maTrend(row, position)
	case IDMACDMomentum:
		return s.macdMomentum(row, position)
	case IDBollReversion:
		return s.bollReversion(row, position)
	case IDTimeBreakout:
		return s.timeBreakout(row, position, hist)
	case IDGrid:
		return s.grid(row, position)
	case IDLimitBoardWarn:
		return s.limitBoardWarning(snap)
	}
	return SignalNone
}
