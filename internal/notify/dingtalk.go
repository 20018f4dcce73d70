package notify

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"asharewatch/internal/logger"
)

// 中文说明：
// 钉钉通知器：信号触发时将文本推送到机器人 webhook。
// 相同内容 30 秒内只发一次，记录保留 60 秒后惰性清理。

const (
	dedupWindow  = 30 * time.Second
	dedupRetain  = 60 * time.Second
	sendTimeout  = 10 * time.Second
	sendAttempts = 3
	sendBackoff  = time.Second
)

// DingTalk 钉钉机器人通知器。Send 为 fire-and-forget：
// 去重通过后在独立 goroutine 中投递，不与扫描循环协调。
type DingTalk struct {
	mu      sync.Mutex
	webhook string
	secret  string
	recent  map[uint64]time.Time

	client *http.Client
	nowFn  func() time.Time
	// sendFn 实际投递函数，测试中可替换。
	sendFn func(content string)
}

func NewDingTalk(webhook, secret string) *DingTalk {
	d := &DingTalk{
		webhook: webhook,
		secret:  secret,
		recent:  make(map[uint64]time.Time),
		client:  &http.Client{Timeout: sendTimeout},
		nowFn:   time.Now,
	}
	d.sendFn = d.sendSync
	return d
}

// UpdateConfig 更新 webhook 与签名密钥。
func (d *DingTalk) UpdateConfig(webhook, secret string) {
	d.mu.Lock()
	d.webhook = webhook
	d.secret = secret
	d.mu.Unlock()
}

// Send 异步发送文本消息。webhook 未配置或 30 秒内重复时静默丢弃。
func (d *DingTalk) Send(content string) {
	d.mu.Lock()
	if d.webhook == "" {
		d.mu.Unlock()
		return
	}
	if !d.allowLocked(content) {
		d.mu.Unlock()
		return
	}
	send := d.sendFn
	d.mu.Unlock()

	go send(content)
}

// allowLocked 去重判定，调用方负责持锁。
func (d *DingTalk) allowLocked(content string) bool {
	now := d.nowFn()

	for h, at := range d.recent {
		if now.Sub(at) > dedupRetain {
			delete(d.recent, h)
		}
	}

	h := fnv.New64a()
	h.Write([]byte(content))
	key := h.Sum64()

	if at, ok := d.recent[key]; ok && now.Sub(at) < dedupWindow {
		return false
	}
	d.recent[key] = now
	return true
}

// sendSync 同步投递（带最多 3 次重试）。
func (d *DingTalk) sendSync(content string) {
	d.mu.Lock()
	webhook, secret := d.webhook, d.secret
	d.mu.Unlock()
	if webhook == "" {
		return
	}

	postURL := webhook
	if secret != "" {
		timestamp := fmt.Sprintf("%d", d.nowFn().UnixMilli())
		postURL = fmt.Sprintf("%s&timestamp=%s&sign=%s", webhook, timestamp, sign(timestamp, secret))
	}

	payload := map[string]any{
		"msgtype": "text",
		"text":    map[string]string{"content": content},
		"at":      map[string]any{"isAtAll": false},
	}
	body, _ := json.Marshal(payload)

	var lastErr error
	for i := 0; i < sendAttempts; i++ {
		req, err := http.NewRequest(http.MethodPost, postURL, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * sendBackoff)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return
		}
		lastErr = fmt.Errorf("dingtalk status=%d", resp.StatusCode)
		time.Sleep(time.Duration(i+1) * sendBackoff)
	}
	if lastErr != nil {
		logger.Warnf("钉钉消息发送失败: %v", lastErr)
	}
}

// sign 钉钉加签：HMAC-SHA256("timestamp\nsecret")，base64 后 URL 编码。
func sign(timestamp, secret string) string {
	stringToSign := timestamp + "\n" + secret
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}
