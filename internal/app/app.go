// Package app wires the application together: config, calendar,
// strategy catalog, name cache, notifier, alert engine and the admin
// HTTP surface.
package app

import (
	"context"
	"fmt"

	"asharewatch/internal/calendar"
	awcfg "asharewatch/internal/config"
	"asharewatch/internal/engine"
	"asharewatch/internal/logger"
	"asharewatch/internal/namestore"
	"asharewatch/internal/notify"
	"asharewatch/internal/strategy"
	admin "asharewatch/internal/transport/http/admin"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动引擎与管理服务。
type App struct {
	cfg      *awcfg.Config
	engine   *engine.Engine
	adminSrv *admin.Server
	names    *namestore.Store
	notifier *notify.DingTalk
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *awcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	notifier := notify.NewDingTalk(cfg.Alert.DingTalk.Webhook, cfg.Alert.DingTalk.Secret)
	// Error 级日志同步推送一份到通知通道。
	logger.SetErrorHook(func(msg string) {
		notifier.Send("【程序报错】\n" + msg)
	})

	registry, err := strategy.NewRegistry(cfg.Strategies.Path)
	if err != nil {
		return nil, fmt.Errorf("init strategy registry: %w", err)
	}

	names, err := namestore.Open(cfg.Data.NameCachePath)
	if err != nil {
		return nil, fmt.Errorf("open name cache: %w", err)
	}

	cal := calendar.New(cfg.Calendar.Holidays, cfg.Calendar.Workdays)

	eng := engine.New(engine.Params{
		Registry:     registry,
		Calendar:     cal,
		Names:        names,
		Notifier:     notifier,
		ScanInterval: cfg.Alert.ScanInterval,
		MaxWorkers:   cfg.Alert.MaxWorkers,
	})
	eng.UpdateTasks(cfg.Alert.Tasks, cfg.Alert.ScanInterval)

	a := &App{
		cfg:      cfg,
		engine:   eng,
		names:    names,
		notifier: notifier,
	}
	if cfg.Admin.Enabled {
		srv, err := admin.NewServer(admin.ServerConfig{
			Addr:     cfg.Admin.Listen,
			Engine:   eng,
			Registry: registry,
			Names:    names,
			Notifier: notifier,
			Calendar: cal,
			Windows:  cfg.Calendar.Windows,
		})
		if err != nil {
			return nil, fmt.Errorf("init admin server: %w", err)
		}
		a.adminSrv = srv
	}
	return a, nil
}

// Run 启动预警引擎与管理服务，阻塞到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}

	group, ctx := errgroup.WithContext(ctx)

	if a.adminSrv != nil {
		logger.Infof("管理接口启动: %s", a.adminSrv.Addr())
		group.Go(func() error {
			if err := a.adminSrv.Start(ctx); err != nil {
				return fmt.Errorf("admin http server error: %w", err)
			}
			return nil
		})
	}

	if a.cfg.Alert.Enabled {
		a.engine.Start()
	} else {
		logger.Infof("预警引擎未启用 (alert.enabled=false)")
	}
	group.Go(func() error {
		<-ctx.Done()
		a.engine.Stop()
		return nil
	})

	return group.Wait()
}

// Engine 暴露底层引擎实例。
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}
