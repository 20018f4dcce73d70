package admin

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"asharewatch/internal/calendar"
	"asharewatch/internal/engine"
	"asharewatch/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type recordNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordNotifier) Send(text string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, text)
	n.mu.Unlock()
}

func (n *recordNotifier) UpdateConfig(webhook, secret string) {}

func newTestServer(t *testing.T) (*Server, *engine.Engine, *recordNotifier) {
	t.Helper()
	reg, err := strategy.NewRegistry(filepath.Join(t.TempDir(), "strategies.yaml"))
	require.NoError(t, err)

	n := &recordNotifier{}
	cal := calendar.New(nil, nil)
	eng := engine.New(engine.Params{
		Registry: reg,
		Calendar: cal,
		Notifier: n,
	})
	srv, err := NewServer(ServerConfig{
		Engine:   eng,
		Registry: reg,
		Notifier: n,
		Calendar: cal,
		Windows:  []calendar.Period{{Start: "09:00", End: "15:30"}},
	})
	require.NoError(t, err)
	return srv, eng, n
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.False(t, gjson.Get(body, "running").Bool())
	assert.Equal(t, int64(0), gjson.Get(body, "tasks").Int())
	assert.Equal(t, int64(1), gjson.Get(body, "catalog_version").Int())
	assert.True(t, gjson.Get(body, "trading").Exists())
	assert.True(t, gjson.Get(body, "in_watch_window").Exists())
}

func TestStrategiesEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(srv, http.MethodGet, "/api/strategies", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, "均线趋势", gjson.Get(body, "strategies.MA_TREND.name").String())
	assert.Equal(t, "涨跌停预警", gjson.Get(body, "strategies.LIMIT_BOARD_WARNING.name").String())
}

func TestUpdateTasksEndpoint(t *testing.T) {
	srv, eng, _ := newTestServer(t)

	payload := `{"tasks":[{"symbol":"sh600519","strategy":"GRID","period":"5"}],"scan_interval":15}`
	w := do(srv, http.MethodPost, "/api/engine/tasks", payload)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, eng.TaskCount())
	assert.Equal(t, 15, eng.ScanInterval())
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "fetchers").Int())

	// 缺少 tasks 字段。
	w = do(srv, http.MethodPost, "/api/engine/tasks", `{"scan_interval":15}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReloadEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(srv, http.MethodPost, "/api/strategies/reload", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), gjson.Get(w.Body.String(), "version").Int())
}

func TestNotifyTestEndpoint(t *testing.T) {
	srv, _, n := newTestServer(t)

	w := do(srv, http.MethodPost, "/api/notify/test", `{"text":"ping"}`)
	require.Equal(t, http.StatusOK, w.Code)

	n.mu.Lock()
	defer n.mu.Unlock()
	require.Len(t, n.msgs, 1)
	assert.Equal(t, "ping", n.msgs[0])
}

func TestEngineStartStopEndpoints(t *testing.T) {
	srv, eng, _ := newTestServer(t)

	// 无任务时启动被跳过。
	w := do(srv, http.MethodPost, "/api/engine/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "running").Bool())
	assert.False(t, eng.IsRunning())

	w = do(srv, http.MethodPost, "/api/engine/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "running").Bool())
}
