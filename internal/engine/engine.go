// Package engine drives the alert scan loop: it schedules around the
// trading calendar, fetches bars and snapshots for every watched
// (symbol, period) pair, runs the bound strategies and dispatches
// signals to the notifier.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"asharewatch/internal/calendar"
	"asharewatch/internal/config"
	"asharewatch/internal/fetcher"
	"asharewatch/internal/indicator"
	"asharewatch/internal/logger"
	"asharewatch/internal/market"
	"asharewatch/internal/namestore"
	"asharewatch/internal/notify"
	"asharewatch/internal/pkg/format"
	"asharewatch/internal/strategy"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultScanInterval = 20
	defaultMaxWorkers   = 10
	panicBackoff        = 5 * time.Second
	maxSleepSlice       = 60
)

// FetchKey 标识一个独立的数据流：同 symbol+period 的任务共享一个 fetcher。
type FetchKey struct {
	Symbol string
	Period string
}

// BarSource 引擎消费的数据面。*fetcher.Kline 是生产实现。
type BarSource interface {
	FetchBars(ctx context.Context) []market.Bar
	FetchSnapshot(ctx context.Context) *market.Snapshot
	Preferred() string
}

// SourceFactory 构造数据源，测试中可注入桩实现。
type SourceFactory func(sym, period, preferred string) BarSource

// SignalCallback 信号外部回调。
type SignalCallback func(sym, strategyID string, signal strategy.Signal, message string)

// fetcherState 每个数据流的运行时状态。拉取失败时保留旧数据，
// 策略继续在 stale 数据上评估。
type fetcherState struct {
	source            BarSource
	pollInterval      int
	series            *indicator.Series
	snapshot          *market.Snapshot
	lastFetch         time.Time
	consecutiveErrors int
}

type task struct {
	cfg      config.TaskConfig
	strat    *strategy.Strategy
	key      FetchKey
	position int
}

// Params 引擎依赖。
type Params struct {
	Registry  *strategy.Registry
	Calendar  *calendar.Calendar
	Names     *namestore.Store
	Notifier  notify.Notifier
	OnSignal  SignalCallback
	NewSource SourceFactory

	ScanInterval int
	MaxWorkers   int
}

// Engine 预警引擎。
type Engine struct {
	mu       sync.Mutex
	registry *strategy.Registry
	cal      *calendar.Calendar
	names    *namestore.Store
	notifier notify.Notifier
	onSignal SignalCallback

	newSource    SourceFactory
	scanInterval int
	maxWorkers   int

	tasks      []*task
	fetchers   map[FetchKey]*fetcherState
	fetchOrder []FetchKey

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	nowFn   func() time.Time
}

// New 构造引擎并订阅策略目录热更新。
func New(p Params) *Engine {
	e := &Engine{
		registry:     p.Registry,
		cal:          p.Calendar,
		names:        p.Names,
		notifier:     p.Notifier,
		onSignal:     p.OnSignal,
		newSource:    p.NewSource,
		scanInterval: p.ScanInterval,
		maxWorkers:   p.MaxWorkers,
		fetchers:     make(map[FetchKey]*fetcherState),
		nowFn:        time.Now,
	}
	if e.scanInterval <= 0 {
		e.scanInterval = defaultScanInterval
	}
	if e.maxWorkers <= 0 {
		e.maxWorkers = defaultMaxWorkers
	}
	if e.newSource == nil {
		e.newSource = func(sym, period, preferred string) BarSource {
			return fetcher.NewKline(sym, period, preferred)
		}
	}
	if e.registry != nil {
		e.registry.OnChange(func(strategy.Snapshot) { e.rebindStrategies() })
	}
	return e
}

// UpdateTasks 重建任务与数据流。任务按 (symbol, strategy, period) 去重，
// 数据流按 (symbol, period) 去重并轮转分配首选数据源。
func (e *Engine) UpdateTasks(tasks []config.TaskConfig, scanInterval int) {
	symbols := make([]string, 0, len(tasks))
	seenSym := make(map[string]bool)
	for _, t := range tasks {
		if !seenSym[t.Symbol] {
			seenSym[t.Symbol] = true
			symbols = append(symbols, t.Symbol)
		}
	}
	if e.names != nil && len(symbols) > 0 {
		e.names.EnsureSymbols(context.Background(), symbols)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if scanInterval > 0 {
		e.scanInterval = scanInterval
	}
	e.tasks = nil
	e.fetchers = make(map[FetchKey]*fetcherState)
	e.fetchOrder = nil

	// 涨跌停预警的标的需要更快的轮询。
	fastSymbols := make(map[string]bool)
	for _, t := range tasks {
		if t.Strategy == strategy.IDLimitBoardWarn {
			fastSymbols[t.Symbol] = true
		}
	}

	// 按首次出现的顺序轮转分配数据源，重启后分配稳定。
	sourceIndex := 0
	for _, t := range tasks {
		period := t.Period
		if period == "" {
			period = "5"
		}
		key := FetchKey{Symbol: t.Symbol, Period: period}
		if _, ok := e.fetchers[key]; ok {
			continue
		}
		preferred := fetcher.SourceNames[sourceIndex%len(fetcher.SourceNames)]
		sourceIndex++

		st := &fetcherState{
			source:       e.newSource(key.Symbol, key.Period, preferred),
			pollInterval: e.scanInterval,
		}
		if fastSymbols[key.Symbol] {
			st.pollInterval = 1
		}
		e.fetchers[key] = st
		e.fetchOrder = append(e.fetchOrder, key)
		logger.Infof("数据源加载: %s - %s分 (首选: %s)", key.Symbol, key.Period, preferred)
	}

	seenTask := make(map[config.TaskConfig]bool)
	for _, t := range tasks {
		if t.Period == "" {
			t.Period = "5"
		}
		if seenTask[t] {
			continue
		}
		seenTask[t] = true

		strat, err := e.registry.Construct(t.Strategy)
		if err != nil {
			logger.Warnf("未知策略: %s", t.Strategy)
			continue
		}
		e.tasks = append(e.tasks, &task{
			cfg:   t,
			strat: strat,
			key:   FetchKey{Symbol: t.Symbol, Period: t.Period},
		})
	}
	logger.Infof("预警任务更新完成，共 %d 个任务", len(e.tasks))
}

// rebindStrategies 目录热更新后为所有任务重建策略实例（状态清零）。
func (e *Engine) rebindStrategies() {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.tasks[:0]
	for _, t := range e.tasks {
		strat, err := e.registry.Construct(t.cfg.Strategy)
		if err != nil {
			logger.Warnf("策略已从目录移除，任务下线: %s %s", t.cfg.Symbol, t.cfg.Strategy)
			continue
		}
		t.strat = strat
		kept = append(kept, t)
	}
	e.tasks = kept
	logger.Infof("策略目录更新，已重建 %d 个任务的策略实例", len(e.tasks))
}

// Start 启动扫描循环。无任务时直接跳过。
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	if len(e.tasks) == 0 {
		e.mu.Unlock()
		logger.Infof("没有预警任务，跳过启动")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	fetcherCount, taskCount := len(e.fetchers), len(e.tasks)
	done := e.done
	e.mu.Unlock()

	go e.run(ctx, done)

	var startMsg string
	if e.cal.IsTradingTime() {
		startMsg = fmt.Sprintf("【系统启动】\n智能监控已启动\n当前状态: 交易中\n监控标的数: %d\n策略任务数: %d",
			fetcherCount, taskCount)
	} else {
		_, reason, wakeAt := e.cal.SleepDuration(e.cal.Now())
		startMsg = fmt.Sprintf("【系统启动】\n智能监控已启动\n当前状态: 休市\n原因: %s\n预计开盘: %s\n监控标的数: %d\n策略任务数: %d",
			reason, wakeAt.Format("2006-01-02 15:04:05"), fetcherCount, taskCount)
	}
	logger.Infof("%s", strings.ReplaceAll(startMsg, "\n", " "))
	if e.notifier != nil {
		e.notifier.Send(startMsg)
	}
}

// Stop 停止扫描循环并等待其退出。未启动时为空操作。
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done
	logger.Infof("预警引擎已停止")
}

// IsRunning 是否正在运行。
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// TaskCount 当前任务数。
func (e *Engine) TaskCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

// FetcherCount 当前数据流数。
func (e *Engine) FetcherCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fetchers)
}

// ScanInterval 当前扫描间隔（秒）。
func (e *Engine) ScanInterval() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scanInterval
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	wasTrading := e.cal.IsTradingTime()
	for ctx.Err() == nil {
		e.runCycle(ctx, &wasTrading)
	}
}

// runCycle 单轮循环，panic 不会终止引擎。
func (e *Engine) runCycle(ctx context.Context, wasTrading *bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("预警循环异常: %v", r)
			sleepSlices(ctx, int(panicBackoff/time.Second))
		}
	}()

	isTrading := e.cal.IsTradingTime()

	if *wasTrading && !isTrading {
		sleepFor, reason, wakeAt := e.cal.SleepDuration(e.cal.Now())
		msg := fmt.Sprintf("【系统休眠】\n原因: %s\n预计唤醒: %s\n休眠时长: %.1f小时",
			reason, wakeAt.Format("2006-01-02 15:04:05"), sleepFor.Hours())
		logger.Infof("%s", strings.ReplaceAll(msg, "\n", " "))
		if e.notifier != nil {
			e.notifier.Send(msg)
		}
	}
	if !*wasTrading && isTrading {
		msg := fmt.Sprintf("【系统唤醒】\n当前时间: %s\n开始监控...",
			e.cal.Now().Format("2006-01-02 15:04:05"))
		logger.Infof("系统唤醒")
		if e.notifier != nil {
			e.notifier.Send(msg)
		}
	}
	*wasTrading = isTrading

	if !isTrading {
		sleepFor, _, _ := e.cal.SleepDuration(e.cal.Now())
		slices := int(sleepFor / time.Second)
		if slices > maxSleepSlice {
			slices = maxSleepSlice
		}
		sleepSlices(ctx, slices)
		return
	}

	e.scanOnce(ctx)
	sleepSlices(ctx, e.ScanInterval())
}

// scanOnce 一轮扫描：并发拉数据，串行评估策略。
func (e *Engine) scanOnce(ctx context.Context) {
	e.mu.Lock()
	if len(e.tasks) == 0 {
		e.mu.Unlock()
		return
	}
	order := append([]FetchKey(nil), e.fetchOrder...)
	states := make(map[FetchKey]*fetcherState, len(e.fetchers))
	for k, st := range e.fetchers {
		states[k] = st
	}
	tasks := append([]*task(nil), e.tasks...)
	workers := e.maxWorkers
	e.mu.Unlock()

	if n := len(tasks) + 3; n < workers {
		workers = n
	}
	now := e.nowFn()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, key := range order {
		st := states[key]
		if !st.lastFetch.IsZero() && now.Sub(st.lastFetch) < time.Duration(st.pollInterval)*time.Second {
			continue
		}
		key := key
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logger.Warnf("获取数据失败 %s-%s分: %v", key.Symbol, key.Period, r)
					st.consecutiveErrors++
				}
			}()
			bars := st.source.FetchBars(gctx)
			if len(bars) > 0 {
				st.series = indicator.Compute(bars)
				st.consecutiveErrors = 0
			} else {
				st.consecutiveErrors++
			}
			st.snapshot = st.source.FetchSnapshot(gctx)
			st.lastFetch = now
			return nil
		})
	}
	g.Wait()

	for _, t := range tasks {
		e.evaluateTask(t, states[t.key])
	}
}

// evaluateTask 在最新数据上评估单个任务。策略 panic 只影响本任务。
func (e *Engine) evaluateTask(t *task, st *fetcherState) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("策略执行失败 %s %s: %v", t.cfg.Symbol, t.cfg.Strategy, r)
		}
	}()
	if st == nil || st.series == nil {
		return
	}
	row, ok := st.series.Latest()
	if !ok {
		return
	}
	signal := t.strat.CheckSignal(row, t.position, st.snapshot, st.series)
	if signal == strategy.SignalNone {
		return
	}
	e.handleSignal(t, signal, st)
}

func (e *Engine) handleSignal(t *task, signal strategy.Signal, st *fetcherState) {
	sym := t.cfg.Symbol
	name := sym
	isFund := false
	if e.names != nil {
		name = e.names.GetName(sym)
		isFund = e.names.GetType(sym) == "基"
	}

	price := ""
	signalTime := e.nowFn().Format("15:04:05")
	if row, ok := st.series.Latest(); ok {
		price = format.Price(row.Close, isFund)
		if !row.Time.IsZero() {
			signalTime = row.Time.Format("2006-01-02 15:04:05")
		}
	}

	var message string
	if signal.IsWarning() {
		message = fmt.Sprintf("【开板预警】\n%s(%s)\n%s\n时间: %s",
			name, sym, signal.WarningDetail(), signalTime)
	} else {
		action := "买点"
		if signal == strategy.SignalSell {
			action = "卖点"
		}
		message = fmt.Sprintf("【交易提醒】\n%s(%s) 触发 %s\n策略: %s (%s分)\n时间: %s\n价格: %s",
			name, sym, action, t.cfg.Strategy, t.cfg.Period, signalTime, price)
	}

	traceID := uuid.NewString()[:8]
	logger.Infof("触发信号 [%s]: %s", traceID, strings.ReplaceAll(message, "\n", " "))

	if e.notifier != nil {
		e.notifier.Send(message)
	}
	if e.onSignal != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Warnf("信号回调失败: %v", r)
				}
			}()
			e.onSignal(sym, t.cfg.Strategy, signal, message)
		}()
	}
}

// sleepSlices 分段休眠，每秒检查一次取消。
func sleepSlices(ctx context.Context, seconds int) {
	if seconds < 1 {
		seconds = 1
	}
	timer := time.NewTicker(time.Second)
	defer timer.Stop()
	for i := 0; i < seconds; i++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}
