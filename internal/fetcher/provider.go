// Package fetcher retrieves minute kline data and realtime snapshots
// for A-share securities from multiple upstream providers with failover.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"asharewatch/internal/market"
)

var cstZone = time.FixedZone("CST", 8*3600)

// 数据源固定顺序：东方财富、腾讯、新浪。
var SourceNames = []string{"em", "tx", "sina"}

// Provider 单个K线数据源。period 取值 "1"/"5"/"15"/"30"/"60"（分钟）。
type Provider interface {
	Name() string
	FetchBars(ctx context.Context, sym, period string) ([]market.Bar, error)
}

const (
	fetchTimeout  = 5 * time.Second
	fetchAttempts = 3
	retryBackoff  = time.Second
	barLimit      = 500
)

var defaultHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: fetchTimeout}
}

// getWithRetry 带重试的 GET：最多 3 次，每次间隔 1 秒。
func getWithRetry(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	var lastErr error
	for i := 0; i < fetchAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
		body, err := getOnce(ctx, client, url, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func getOnce(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status=%d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parseBarTime 解析各家接口返回的时间字符串。
func parseBarTime(s string) (time.Time, bool) {
	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"200601021504",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, cstZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
