// Package admin exposes a small management HTTP API over the alert
// engine: status, task updates, catalog reload and a notification test
// endpoint.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"asharewatch/internal/calendar"
	"asharewatch/internal/config"
	"asharewatch/internal/engine"
	"asharewatch/internal/logger"
	"asharewatch/internal/namestore"
	"asharewatch/internal/notify"
	"asharewatch/internal/strategy"

	"github.com/gin-gonic/gin"
)

// Server 管理 HTTP 服务。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述管理服务依赖。
type ServerConfig struct {
	Addr     string
	Engine   *engine.Engine
	Registry *strategy.Registry
	Names    *namestore.Store
	Notifier notify.Notifier
	Calendar *calendar.Calendar
	// Windows 自定义关注时段，状态接口据此报告 in_watch_window。
	Windows []calendar.Period
}

// NewServer 构建管理 HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil || cfg.Registry == nil {
		return nil, errors.New("admin server requires engine and registry")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8823"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{
		engine:   cfg.Engine,
		registry: cfg.Registry,
		names:    cfg.Names,
		notifier: cfg.Notifier,
		cal:      cfg.Calendar,
		windows:  cfg.Windows,
	}
	h.register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

type handlers struct {
	engine   *engine.Engine
	registry *strategy.Registry
	names    *namestore.Store
	notifier notify.Notifier
	cal      *calendar.Calendar
	windows  []calendar.Period
}

func (h *handlers) register(group *gin.RouterGroup) {
	group.GET("/status", h.handleStatus)
	group.GET("/strategies", h.handleStrategies)
	group.POST("/strategies/reload", h.handleReload)
	group.POST("/engine/start", h.handleStart)
	group.POST("/engine/stop", h.handleStop)
	group.POST("/engine/tasks", h.handleUpdateTasks)
	group.POST("/notify/test", h.handleNotifyTest)
}

func (h *handlers) handleStatus(c *gin.Context) {
	resp := gin.H{
		"running":         h.engine.IsRunning(),
		"tasks":           h.engine.TaskCount(),
		"fetchers":        h.engine.FetcherCount(),
		"scan_interval":   h.engine.ScanInterval(),
		"catalog_version": h.registry.Version(),
		"cached_names":    h.cachedNames(),
	}
	if h.cal != nil {
		resp["trading"] = h.cal.IsTradingTime()
		if len(h.windows) > 0 {
			resp["in_watch_window"] = h.cal.InAnyPeriod(h.cal.Now(), h.windows)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) cachedNames() int {
	if h.names == nil {
		return 0
	}
	return h.names.Len()
}

func (h *handlers) handleStrategies(c *gin.Context) {
	snap := h.registry.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"version":    snap.Version,
		"loaded_at":  snap.LoadedAt,
		"strategies": snap.Strategies,
	})
}

func (h *handlers) handleReload(c *gin.Context) {
	if err := h.registry.Reload(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": h.registry.Version()})
}

func (h *handlers) handleStart(c *gin.Context) {
	h.engine.Start()
	c.JSON(http.StatusOK, gin.H{"running": h.engine.IsRunning()})
}

func (h *handlers) handleStop(c *gin.Context) {
	h.engine.Stop()
	c.JSON(http.StatusOK, gin.H{"running": h.engine.IsRunning()})
}

type updateTasksRequest struct {
	Tasks        []config.TaskConfig `json:"tasks" binding:"required"`
	ScanInterval int                 `json:"scan_interval"`
}

func (h *handlers) handleUpdateTasks(c *gin.Context) {
	var req updateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.engine.UpdateTasks(req.Tasks, req.ScanInterval)
	c.JSON(http.StatusOK, gin.H{
		"tasks":    h.engine.TaskCount(),
		"fetchers": h.engine.FetcherCount(),
	})
}

type notifyTestRequest struct {
	Text string `json:"text"`
}

func (h *handlers) handleNotifyTest(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifier not configured"})
		return
	}
	var req notifyTestRequest
	_ = c.ShouldBindJSON(&req)
	if req.Text == "" {
		req.Text = "【交易提醒】通知通道测试"
	}
	h.notifier.Send(req.Text)
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		client := c.ClientIP()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), client, time.Since(start))
	}
}
