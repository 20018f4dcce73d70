package fetcher

import (
	"context"
	"net/http"
	"time"

	"asharewatch/internal/logger"
	"asharewatch/internal/market"
)

// Kline 面向单个 (symbol, period) 的多源K线获取器。
// 按首选源优先、其余源兜底的顺序逐个尝试，单源错误只记录不上抛；
// 全部失败时 FetchBars 返回 nil，由调用方按"本轮无数据"处理。
type Kline struct {
	symbol    string
	period    string
	preferred string

	providers []Provider
	client    *http.Client
	nowFn     func() time.Time
}

// NewKline 构造获取器。preferred 必须是 SourceNames 之一，
// 非法值按 "em" 处理。
func NewKline(sym, period, preferred string) *Kline {
	client := newHTTPClient()
	k := &Kline{
		symbol:    sym,
		period:    period,
		preferred: preferred,
		client:    client,
		nowFn:     time.Now,
		providers: []Provider{
			newEastmoney(client),
			newTencent(client),
			newSina(client),
		},
	}
	if !validSource(preferred) {
		k.preferred = SourceNames[0]
	}
	return k
}

func validSource(name string) bool {
	for _, s := range SourceNames {
		if s == name {
			return true
		}
	}
	return false
}

// Symbol 监控标的代码。
func (k *Kline) Symbol() string { return k.symbol }

// Period 周期（分钟）。
func (k *Kline) Period() string { return k.period }

// Preferred 首选数据源名。
func (k *Kline) Preferred() string { return k.preferred }

// FetchBars 获取最新K线。所有源都失败时返回 nil，不向上抛错。
func (k *Kline) FetchBars(ctx context.Context) []market.Bar {
	var lastErr error
	for _, p := range k.tryOrder() {
		bars, err := p.FetchBars(ctx, k.symbol, k.period)
		if err != nil {
			lastErr = err
			continue
		}
		if len(bars) > 0 {
			return bars
		}
	}
	if lastErr != nil {
		logger.Warnf("获取K线数据失败 %s(%s分): %v", k.symbol, k.period, lastErr)
	}
	return nil
}

// FetchSnapshot 获取实时快照，单源尽力而为，失败返回 nil。
func (k *Kline) FetchSnapshot(ctx context.Context) *market.Snapshot {
	snap, err := fetchSnapshotEM(ctx, k.client, k.symbol, k.nowFn())
	if err != nil {
		logger.Debugf("获取快照失败 %s: %v", k.symbol, err)
		return nil
	}
	return snap
}

// tryOrder 首选源在前，其余按固定顺序兜底。
func (k *Kline) tryOrder() []Provider {
	ordered := make([]Provider, 0, len(k.providers))
	for _, p := range k.providers {
		if p.Name() == k.preferred {
			ordered = append(ordered, p)
			break
		}
	}
	for _, p := range k.providers {
		if p.Name() != k.preferred {
			ordered = append(ordered, p)
		}
	}
	return ordered
}
