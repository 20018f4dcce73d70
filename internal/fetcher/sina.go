package fetcher

import (
	"context"
	"fmt"
	"net/http"

	"asharewatch/internal/market"
	"asharewatch/internal/pkg/symbol"

	"github.com/tidwall/gjson"
)

// sinaProvider 新浪分钟K线。
type sinaProvider struct {
	client *http.Client
}

func newSina(client *http.Client) *sinaProvider {
	if client == nil {
		client = newHTTPClient()
	}
	return &sinaProvider{client: client}
}

func (p *sinaProvider) Name() string { return "sina" }

func (p *sinaProvider) FetchBars(ctx context.Context, sym, period string) ([]market.Bar, error) {
	prefix, pure := symbol.MarketPrefix(sym)
	fullCode := prefix + pure

	url := fmt.Sprintf(
		"http://money.finance.sina.com.cn/quotes_service/api/json_v2.php/CN_MarketData.getKLineData?symbol=%s&scale=%s&ma=no&datalen=%d",
		fullCode, period, barLimit)

	headers := map[string]string{"Referer": "https://finance.sina.com.cn"}
	body, err := getWithRetry(ctx, p.client, url, headers)
	if err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("sina: unexpected payload for %s", sym)
	}

	var bars []market.Bar
	root.ForEach(func(_, item gjson.Result) bool {
		ts, ok := parseBarTime(item.Get("day").String())
		if !ok {
			return true
		}
		bars = append(bars, market.Bar{
			Time:   ts,
			Open:   item.Get("open").Float(),
			Close:  item.Get("close").Float(),
			High:   item.Get("high").Float(),
			Low:    item.Get("low").Float(),
			Volume: item.Get("volume").Float(),
		})
		return true
	})
	if len(bars) == 0 {
		return nil, fmt.Errorf("sina: empty kline payload for %s", sym)
	}
	return bars, nil
}
