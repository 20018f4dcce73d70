package fetcher

import (
	"context"
	"fmt"
	"net/http"

	"asharewatch/internal/market"
	"asharewatch/internal/pkg/symbol"

	"github.com/tidwall/gjson"
)

var txPeriodMap = map[string]string{
	"1":  "m1",
	"5":  "m5",
	"15": "m15",
	"30": "m30",
	"60": "m60",
}

// tencentProvider 腾讯分钟K线。
type tencentProvider struct {
	client *http.Client
}

func newTencent(client *http.Client) *tencentProvider {
	if client == nil {
		client = newHTTPClient()
	}
	return &tencentProvider{client: client}
}

func (p *tencentProvider) Name() string { return "tx" }

func (p *tencentProvider) FetchBars(ctx context.Context, sym, period string) ([]market.Bar, error) {
	prefix, pure := symbol.MarketPrefix(sym)
	fullCode := prefix + pure
	txPeriod, ok := txPeriodMap[period]
	if !ok {
		txPeriod = "m5"
	}

	url := fmt.Sprintf("http://ifzq.gtimg.cn/appstock/app/kline/mkline?param=%s,%s,,%d",
		fullCode, txPeriod, barLimit)

	body, err := getWithRetry(ctx, p.client, url, nil)
	if err != nil {
		return nil, err
	}
	klines := gjson.GetBytes(body, "data."+fullCode+"."+txPeriod)
	if !klines.Exists() || !klines.IsArray() {
		return nil, fmt.Errorf("tx: no kline data for %s", sym)
	}

	var bars []market.Bar
	klines.ForEach(func(_, line gjson.Result) bool {
		arr := line.Array()
		if len(arr) < 5 {
			return true
		}
		ts, ok := parseBarTime(arr[0].String())
		if !ok {
			return true
		}
		bar := market.Bar{
			Time:  ts,
			Open:  arr[1].Float(),
			Close: arr[2].Float(),
			High:  arr[3].Float(),
			Low:   arr[4].Float(),
		}
		if len(arr) > 5 {
			bar.Volume = arr[5].Float()
		}
		bars = append(bars, bar)
		return true
	})
	if len(bars) == 0 {
		return nil, fmt.Errorf("tx: empty kline payload for %s", sym)
	}
	return bars, nil
}
