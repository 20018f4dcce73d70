package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"asharewatch/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name  string
	bars  []market.Bar
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchBars(ctx context.Context, sym, period string) ([]market.Bar, error) {
	f.calls++
	return f.bars, f.err
}

func sampleBars(n int) []market.Bar {
	base := time.Date(2025, 6, 4, 9, 30, 0, 0, cstZone)
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{Time: base.Add(time.Duration(i) * time.Minute), Close: 10 + float64(i)}
	}
	return bars
}

func newTestKline(preferred string, providers ...Provider) *Kline {
	return &Kline{
		symbol:    "sh600519",
		period:    "5",
		preferred: preferred,
		providers: providers,
		client:    newHTTPClient(),
		nowFn:     time.Now,
	}
}

func TestFetchBarsFailover(t *testing.T) {
	em := &fakeProvider{name: "em", err: errors.New("boom")}
	tx := &fakeProvider{name: "tx", bars: sampleBars(3)}
	sina := &fakeProvider{name: "sina", bars: sampleBars(9)}

	k := newTestKline("em", em, tx, sina)
	bars := k.FetchBars(context.Background())

	require.Len(t, bars, 3, "first succeeding provider wins")
	assert.Equal(t, 1, em.calls)
	assert.Equal(t, 1, tx.calls)
	assert.Equal(t, 0, sina.calls, "later providers are not consulted after a hit")
}

func TestFetchBarsAllFail(t *testing.T) {
	em := &fakeProvider{name: "em", err: errors.New("em down")}
	tx := &fakeProvider{name: "tx", err: errors.New("tx down")}
	sina := &fakeProvider{name: "sina", err: errors.New("sina down")}

	k := newTestKline("em", em, tx, sina)
	bars := k.FetchBars(context.Background())

	assert.Nil(t, bars, "all-failed outcome surfaces as nil, never as a panic or error")
	assert.Equal(t, 1, em.calls)
	assert.Equal(t, 1, tx.calls)
	assert.Equal(t, 1, sina.calls)
}

func TestFetchBarsSkipsEmptyResult(t *testing.T) {
	em := &fakeProvider{name: "em", bars: nil} // 成功但空载荷
	tx := &fakeProvider{name: "tx", bars: sampleBars(2)}

	k := newTestKline("em", em, tx)
	bars := k.FetchBars(context.Background())
	require.Len(t, bars, 2)
}

func TestTryOrderHonorsPreferred(t *testing.T) {
	em := &fakeProvider{name: "em"}
	tx := &fakeProvider{name: "tx"}
	sina := &fakeProvider{name: "sina"}

	k := newTestKline("tx", em, tx, sina)
	order := k.tryOrder()

	require.Len(t, order, 3)
	assert.Equal(t, "tx", order[0].Name())
	assert.Equal(t, "em", order[1].Name())
	assert.Equal(t, "sina", order[2].Name())
}

func TestNewKlineRejectsUnknownSource(t *testing.T) {
	k := NewKline("sh600519", "5", "bogus")
	assert.Equal(t, "em", k.Preferred())
}

func TestParseBarTime(t *testing.T) {
	for _, s := range []string{
		"2025-06-04 09:35:00",
		"2025-06-04 09:35",
		"202506040935",
		"2025-06-04",
	} {
		ts, ok := parseBarTime(s)
		require.True(t, ok, s)
		assert.Equal(t, 2025, ts.Year())
		assert.Equal(t, time.June, ts.Month())
	}
	_, ok := parseBarTime("garbage")
	assert.False(t, ok)
}
