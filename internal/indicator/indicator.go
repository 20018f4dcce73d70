// Package indicator enriches OHLCV series with the technical columns
// the alert strategies read: MACD 链、均线、布林带、RSI、量能均线，
// 以及用于金叉/死叉判断的前值列。
package indicator

import (
	"math"
	"time"

	"asharewatch/internal/market"

	talib "github.com/markcheno/go-talib"
)

// MinDataLength 策略所需的最小K线数量，窗口最长的指标为 MA60。
const MinDataLength = 60

// Row 单根K线及其指标值。窗口未满的位置为 NaN。
type Row struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	EMAFast float64
	EMASlow float64
	DIF     float64
	DEA     float64
	MACD    float64

	MA5       float64
	MA10      float64
	MA20      float64
	MA60      float64
	MA60Slope float64

	Std20     float64
	UpperBand float64
	LowerBand float64

	RSI    float64
	VolMA5 float64

	DIFPrev  float64
	DEAPrev  float64
	MACDPrev float64
	MA10Prev float64
	MA60Prev float64
}

// Series 旧→新排列的指标表。
type Series struct {
	Rows []Row
}

// Valid 数据量是否足以让全部滚动窗口收敛。
func (s *Series) Valid() bool {
	return s != nil && len(s.Rows) >= MinDataLength
}

// Latest 最新一行；序列为空时返回 false。
func (s *Series) Latest() (Row, bool) {
	if s == nil || len(s.Rows) == 0 {
		return Row{}, false
	}
	return s.Rows[len(s.Rows)-1], true
}

// Compute 计算全部指标列。输入必须按时间旧→新排列。
func Compute(bars []market.Bar) *Series {
	n := len(bars)
	if n == 0 {
		return &Series{}
	}

	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	emaFast := ewm(closes, 12)
	emaSlow := ewm(closes, 26)
	dif := sub(emaFast, emaSlow)
	dea := ewm(dif, 9)
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = 2 * (dif[i] - dea[i])
	}

	ma5 := rollingMean(closes, 5)
	ma10 := rollingMean(closes, 10)
	ma20 := rollingMean(closes, 20)
	ma60 := rollingMean(closes, 60)
	ma60Slope := diff(ma60)

	std20 := rollingStd(closes, 20)
	upper := make([]float64, n)
	lower := make([]float64, n)
	for i := range upper {
		upper[i] = ma20[i] + 2*std20[i]
		lower[i] = ma20[i] - 2*std20[i]
	}

	rsi := computeRSI(closes, 14)
	volMA5 := rollingMean(volumes, 5)

	rows := make([]Row, n)
	for i, b := range bars {
		rows[i] = Row{
			Time:      b.Time,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			EMAFast:   emaFast[i],
			EMASlow:   emaSlow[i],
			DIF:       dif[i],
			DEA:       dea[i],
			MACD:      macd[i],
			MA5:       ma5[i],
			MA10:      ma10[i],
			MA20:      ma20[i],
			MA60:      ma60[i],
			MA60Slope: ma60Slope[i],
			Std20:     std20[i],
			UpperBand: upper[i],
			LowerBand: lower[i],
			RSI:       rsi[i],
			VolMA5:    volMA5[i],
			DIFPrev:   shifted(dif, i),
			DEAPrev:   shifted(dea, i),
			MACDPrev:  shifted(macd, i),
			MA10Prev:  shifted(ma10, i),
			MA60Prev:  shifted(ma60, i),
		}
	}
	return &Series{Rows: rows}
}

// ewm 指数加权均线，span 语义与 pandas ewm(span, adjust=False) 一致：
// 以首值作种子递推，从第一根K线起即有定义。
func ewm(xs []float64, span int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rollingMean 简单滚动均线，窗口未满的位置为 NaN。
func rollingMean(xs []float64, period int) []float64 {
	n := len(xs)
	if n < period {
		return nanSlice(n)
	}
	out := talib.Sma(xs, period)
	for i := 0; i < period-1 && i < n; i++ {
		out[i] = math.NaN()
	}
	return out
}

// rollingStd 滚动样本标准差（ddof=1），窗口未满的位置为 NaN。
// talib 的 StdDev 是总体标准差，这里保持样本口径以免移动布林带。
func rollingStd(xs []float64, period int) []float64 {
	n := len(xs)
	out := nanSlice(n)
	if n < period || period < 2 {
		return out
	}
	for i := period - 1; i < n; i++ {
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += xs[j]
		}
		mean := sum / float64(period)
		var sq float64
		for j := i - period + 1; j <= i; j++ {
			d := xs[j] - mean
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(period-1))
	}
	return out
}

// computeRSI 滚动均值口径的 RSI：14 根内上涨均幅 / 下跌均幅。
// 下跌均幅为 0 时依浮点语义得到 100（全涨）或 NaN（无波动）。
func computeRSI(closes []float64, period int) []float64 {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	avgGain := rollingMean(gains, period)
	avgLoss := rollingMean(losses, period)
	out := make([]float64, n)
	for i := range out {
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func diff(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) > 0 {
		out[0] = math.NaN()
	}
	for i := 1; i < len(xs); i++ {
		out[i] = xs[i] - xs[i-1]
	}
	return out
}

func shifted(xs []float64, i int) float64 {
	if i == 0 {
		return math.NaN()
	}
	return xs[i-1]
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
