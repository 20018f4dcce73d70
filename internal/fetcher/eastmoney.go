package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"asharewatch/internal/market"
	"asharewatch/internal/pkg/symbol"

	"github.com/tidwall/gjson"
)

// 东财 push2 接口的固定 token。
const emUT = "fa5fd1943c7b386f172d6893dbfba10b"

// eastmoneyProvider 东方财富分钟K线。股票/ETF/可转债共用同一接口，
// 仅 secid 的市场位不同。
type eastmoneyProvider struct {
	client *http.Client
}

func newEastmoney(client *http.Client) *eastmoneyProvider {
	if client == nil {
		client = newHTTPClient()
	}
	return &eastmoneyProvider{client: client}
}

func (p *eastmoneyProvider) Name() string { return "em" }

func (p *eastmoneyProvider) FetchBars(ctx context.Context, sym, period string) ([]market.Bar, error) {
	secid := symbol.EastmoneySecID(sym)
	url := fmt.Sprintf(
		"https://push2his.eastmoney.com/api/qt/stock/kline/get?secid=%s&klt=%s&fqt=1&lmt=%d&end=20500101&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56,f57&ut=%s",
		secid, period, barLimit, emUT)

	body, err := getWithRetry(ctx, p.client, url, nil)
	if err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(body)
	if root.Get("rc").Int() != 0 {
		return nil, fmt.Errorf("em rc=%d", root.Get("rc").Int())
	}
	klines := root.Get("data.klines")
	if !klines.Exists() || !klines.IsArray() {
		return nil, fmt.Errorf("em: no kline data for %s", sym)
	}

	var bars []market.Bar
	klines.ForEach(func(_, line gjson.Result) bool {
		// "2025-06-04 09:35,开,收,高,低,量,额"
		parts := strings.Split(line.String(), ",")
		if len(parts) < 6 {
			return true
		}
		ts, ok := parseBarTime(parts[0])
		if !ok {
			return true
		}
		bars = append(bars, market.Bar{
			Time:   ts,
			Open:   gjson.Parse(parts[1]).Float(),
			Close:  gjson.Parse(parts[2]).Float(),
			High:   gjson.Parse(parts[3]).Float(),
			Low:    gjson.Parse(parts[4]).Float(),
			Volume: gjson.Parse(parts[5]).Float(),
		})
		return true
	})
	if len(bars) == 0 {
		return nil, fmt.Errorf("em: empty kline payload for %s", sym)
	}
	return bars, nil
}

// fetchSnapshotEM 东财单股快照。价格字段单位为"分"，换算成"元"；
// 非股票类证券没有有效涨跌停价，置 0。
func fetchSnapshotEM(ctx context.Context, client *http.Client, sym string, now time.Time) (*market.Snapshot, error) {
	secid := symbol.EastmoneySecID(sym)
	url := fmt.Sprintf(
		"https://push2.eastmoney.com/api/qt/stock/get?secid=%s&fields=f43,f44,f45,f46,f47,f48,f51,f52,f57,f58,f60,f19,f20,f17,f18&ut=%s",
		secid, emUT)

	body, err := getOnce(ctx, client, url, nil)
	if err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(body)
	if root.Get("rc").Int() != 0 || !root.Get("data").Exists() {
		return nil, fmt.Errorf("em snapshot: no data for %s", sym)
	}
	d := root.Get("data")

	snap := &market.Snapshot{
		Time:    now.In(cstZone).Format("15:04:05"),
		Price:   d.Get("f43").Float() / 100,
		Bid1Vol: d.Get("f20").Float(),
		Ask1Vol: d.Get("f18").Float(),
		Volume:  d.Get("f47").Float(),
	}
	if symbol.Type(sym) == symbol.TypeStock {
		snap.HighLimit = d.Get("f51").Float() / 100
		snap.LowLimit = d.Get("f52").Float() / 100
	}
	return snap, nil
}

// fetchNameEM 东财单股名称查询（f57=代码，f58=名称），供名称缓存使用。
func fetchNameEM(ctx context.Context, client *http.Client, sym string) (string, error) {
	secid := symbol.EastmoneySecID(sym)
	url := fmt.Sprintf(
		"https://push2.eastmoney.com/api/qt/stock/get?secid=%s&fields=f57,f58&ut=%s",
		secid, emUT)

	body, err := getOnce(ctx, client, url, nil)
	if err != nil {
		return "", err
	}
	root := gjson.ParseBytes(body)
	if root.Get("rc").Int() != 0 || !root.Get("data").Exists() {
		return "", fmt.Errorf("em name: no data for %s", sym)
	}
	name := strings.TrimSpace(root.Get("data.f58").String())
	if name == "" {
		return "", fmt.Errorf("em name: empty name for %s", sym)
	}
	return name, nil
}

// FetchName 查询证券显示名称。
func FetchName(ctx context.Context, sym string) (string, error) {
	return fetchNameEM(ctx, newHTTPClient(), sym)
}
