package strategy

import (
	"fmt"
	"math"
	"time"

	"asharewatch/internal/indicator"
	"asharewatch/internal/market"
)

// 各变体的判定逻辑。指标列可能为 NaN，NaN 参与的比较均为 false，
// 因此热身期内自然不出信号，无需显式判空。

// maTrend 均线趋势：MA10 上穿 MA60 且 MA60 向上、放量 1.5 倍则买入，
// 下穿则卖出。
func (s *Strategy) maTrend(row indicator.Row, position int) Signal {
	golden := row.MA10 > row.MA60 && row.MA10Prev <= row.MA60Prev
	trendUp := row.MA60Slope > 0
	volumeOK := row.Volume > 1.5*row.VolMA5

	if golden && trendUp && volumeOK {
		s.Context.EntryLow = row.Low
		return SignalBuy
	}
	if row.MA10 < row.MA60 && row.MA10Prev >= row.MA60Prev {
		return SignalSell
	}
	return SignalNone
}

// macdMomentum MACD 动量：零轴上方金叉买入，死叉卖出。
func (s *Strategy) macdMomentum(row indicator.Row, position int) Signal {
	if row.DIF > row.DEA && row.DIFPrev <= row.DEAPrev && row.DIF > 0 {
		return SignalBuy
	}
	if row.DIF < row.DEA && row.DIFPrev >= row.DEAPrev {
		return SignalSell
	}
	return SignalNone
}

// bollReversion 布林带回归：触及下轨（1% 容差）买入，触及上轨卖出。
func (s *Strategy) bollReversion(row indicator.Row, position int) Signal {
	if row.Close <= row.LowerBand*1.01 {
		return SignalBuy
	}
	if row.Close >= row.UpperBand*0.99 {
		return SignalSell
	}
	return SignalNone
}

// timeBreakout 时间突破：盘中突破当日高/低点（0.1% 容差）。
// 9 点整段内不判定，避免集合竞价后的假突破。
func (s *Strategy) timeBreakout(row indicator.Row, position int, hist *indicator.Series) Signal {
	if hist == nil || len(hist.Rows) == 0 {
		return SignalNone
	}

	now := s.Now()
	date := now.Format("2006-01-02")
	if s.Context.CurrentDate != date {
		s.Context.CurrentDate = date
		s.Context.DayHigh = -1.0
		s.Context.DayLow = 99999.0
	}
	if row.High > s.Context.DayHigh {
		s.Context.DayHigh = row.High
	}
	if row.Low < s.Context.DayLow {
		s.Context.DayLow = row.Low
	}

	if now.Hour() == 9 && now.Minute() < 60 {
		return SignalNone
	}

	if row.Close > s.Context.DayHigh*1.001 {
		return SignalBuy
	}
	if row.Close < s.Context.DayLow*0.999 {
		return SignalSell
	}
	return SignalNone
}

// grid 网格交易：以首次见到的价格为基准，每 2% 一档。
// 档位下移买入，上移卖出；档位计算 int 截断（向零取整）。
func (s *Strategy) grid(row indicator.Row, position int) Signal {
	close := row.Close
	if close <= 0 {
		return SignalNone
	}

	if s.Context.GridBasePrice == nil {
		base := close
		level := 0
		s.Context.GridBasePrice = &base
		s.Context.LastGridLevel = &level
		return SignalNone
	}

	base := *s.Context.GridBasePrice
	level := int((close - base) / (base * 0.02))
	last := *s.Context.LastGridLevel

	if level < last {
		s.Context.LastGridLevel = &level
		return SignalBuy
	}
	if level > last {
		s.Context.LastGridLevel = &level
		return SignalSell
	}
	return SignalNone
}

const (
	limitTolerance   = 0.001
	sealDropTrigger  = 0.10
	sealRemainFloor  = 0.20
	warnCooldownSame = 60 * time.Second
	warnCooldownSwap = 10 * time.Second
)

// limitBoardWarning 涨跌停开板预警。仅依赖实时快照：
//   - 封单量较上一笔下降 ≥10% 记一次，连续 3 次触发"连续减少"预警；
//   - 剩余封单低于历史峰值 20% 触发"严重不足"预警；
//   - 同类预警 60 秒冷却，切换类型 10 秒冷却。
func (s *Strategy) limitBoardWarning(snap *market.Snapshot) Signal {
	if snap == nil {
		return SignalNone
	}
	ctx := &s.Context
	now := s.Now()

	// 跨日重置全部封单状态。
	date := now.Format("2006-01-02")
	if ctx.WarnDate != date {
		ctx.WarnDate = date
		ctx.WasLimit = false
		ctx.LastLimitVol = nil
		ctx.InitLimitVol = nil
		ctx.MaxLimitVol = 0
		ctx.ConsecutiveDrops = 0
		ctx.LastWarningAt = time.Time{}
		ctx.LastWarningType = ""
		ctx.LastSnapTime = nil
	}

	// 同一笔快照只处理一次。
	if ctx.LastSnapTime != nil && *ctx.LastSnapTime == snap.Time {
		return SignalNone
	}
	snapTime := snap.Time
	ctx.LastSnapTime = &snapTime

	price := snap.Price
	if price == 0 || snap.HighLimit == 0 || snap.LowLimit == 0 {
		return SignalNone
	}

	// 相对误差 0.1% 内视为封板。
	isHigh := math.Abs(price-snap.HighLimit)/snap.HighLimit < limitTolerance
	isLow := math.Abs(price-snap.LowLimit)/snap.LowLimit < limitTolerance

	if !isHigh && !isLow {
		if ctx.WasLimit {
			ctx.LastLimitVol = nil
			ctx.InitLimitVol = nil
			ctx.ConsecutiveDrops = 0
		}
		ctx.WasLimit = false
		return SignalNone
	}
	ctx.WasLimit = true

	currentVol := snap.Bid1Vol
	if isLow {
		currentVol = snap.Ask1Vol
	}
	if currentVol <= 0 {
		return SignalNone
	}

	if ctx.LastLimitVol == nil || ctx.InitLimitVol == nil {
		v := currentVol
		v2 := currentVol
		ctx.LastLimitVol = &v
		ctx.InitLimitVol = &v2
		ctx.MaxLimitVol = currentVol
		ctx.ConsecutiveDrops = 0
		return SignalNone
	}

	if currentVol > ctx.MaxLimitVol {
		ctx.MaxLimitVol = currentVol
	}
	baseVol := ctx.MaxLimitVol
	if baseVol < 1 {
		baseVol = 1
	}

	lastVol := *ctx.LastLimitVol
	dropPct := 0.0
	if lastVol > 0 && currentVol < lastVol {
		dropPct = (lastVol - currentVol) / lastVol
	}
	remainPct := currentVol / baseVol
	v := currentVol
	ctx.LastLimitVol = &v

	if dropPct >= sealDropTrigger {
		ctx.ConsecutiveDrops++
	} else if ctx.ConsecutiveDrops > 0 {
		ctx.ConsecutiveDrops--
	}

	boardType := "涨停"
	if isLow {
		boardType = "跌停"
	}

	var warningType, msg string
	if ctx.ConsecutiveDrops >= 3 {
		warningType = "consecutive_drop"
		msg = fmt.Sprintf("WARNING:%s封单连续减少，注意开板风险", boardType)
		ctx.ConsecutiveDrops = 0
	} else if remainPct < sealRemainFloor {
		warningType = "low_seal"
		msg = fmt.Sprintf("WARNING:%s封单严重不足 (剩余%.0f%%)，即将开板", boardType, remainPct*100)
	}

	if msg == "" {
		return SignalNone
	}

	cooldown := warnCooldownSwap
	if warningType == ctx.LastWarningType {
		cooldown = warnCooldownSame
	}
	if now.Sub(ctx.LastWarningAt) < cooldown {
		return SignalNone
	}
	ctx.LastWarningAt = now
	ctx.LastWarningType = warningType
	return Signal(msg)
}
