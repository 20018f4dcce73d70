package strategy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"asharewatch/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Info 描述单个策略变体的展示信息与允许的 K 线周期。
type Info struct {
	Name        string   `mapstructure:"name" yaml:"name"`
	Description string   `mapstructure:"description" yaml:"description"`
	Periods     []string `mapstructure:"periods" yaml:"periods"`
}

// FileConfig 映射 strategies 配置文件。
type FileConfig struct {
	Strategies map[string]Info `mapstructure:"strategies" yaml:"strategies"`
}

// Snapshot 公开的目录快照。Version 每次成功重载递增。
type Snapshot struct {
	Version    int64
	LoadedAt   time.Time
	Strategies map[string]Info
}

// ChangeListener 在目录成功重载后触发。
type ChangeListener func(Snapshot)

// Registry 管理策略目录：文件变更自动重载，重载失败保留旧目录。
type Registry struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// catalogSchema 约束目录文件结构：至少一个条目，周期只允许分钟级枚举。
const catalogSchema = `{
  "type": "object",
  "required": ["strategies"],
  "properties": {
    "strategies": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "periods": {
            "type": "array",
            "items": {"enum": ["1", "5", "15", "30", "60"]}
          }
        }
      }
    }
  }
}`

var compiledCatalogSchema = jsonschema.MustCompileString("strategies.json", catalogSchema)

// NewRegistry 读取目录文件并监听更新。文件不存在时先写入内置目录。
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy registry requires path")
	}
	if err := ensureCatalogFile(path); err != nil {
		return nil, err
	}

	r := &Registry{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}

	// viper 只负责盯文件；解码走 yaml，避免 key 被小写化弄丢变体 ID。
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read strategy catalog failed: %w", err)
	}
	r.v = v
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.Reload(); err != nil {
			logger.Errorf("策略目录重载失败: %v", err)
		}
	})
	v.WatchConfig()
	return r, nil
}

// Reload 重新读取目录文件。任何解析或校验错误都使本次重载整体失败，
// 当前快照保持不变。
func (r *Registry) Reload() error {
	cfg, err := readCatalogFile(r.path)
	if err != nil {
		return err
	}

	strategies := make(map[string]Info, len(cfg.Strategies))
	for id, info := range cfg.Strategies {
		id = strings.TrimSpace(id)
		if !knownVariant(id) {
			return fmt.Errorf("unknown strategy variant %q in %s", id, filepath.Base(r.path))
		}
		info.Name = strings.TrimSpace(info.Name)
		strategies[id] = info
	}

	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:    r.snapshot.Version + 1,
		LoadedAt:   time.Now(),
		Strategies: strategies,
	}
	snap := cloneSnapshot(r.snapshot)
	listeners := append([]ChangeListener(nil), r.listeners...)
	r.mu.Unlock()

	logger.Infof("策略目录加载完成，共 %d 个策略 (%s)", len(strategies), filepath.Base(r.path))
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Errorf("策略目录监听器 panic: %v", rec)
				}
			}()
			cb(snap)
		}(fn)
	}
	return nil
}

// OnChange 注册重载回调。回调在独立 goroutine 中执行。
func (r *Registry) OnChange(fn ChangeListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Snapshot 返回当前目录快照的副本。
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Info 返回指定变体的目录条目。
func (r *Registry) Info(id string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.snapshot.Strategies[strings.TrimSpace(id)]
	return info, ok
}

// IDs 返回目录中的变体 ID（排序后）。
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.snapshot.Strategies))
	for id := range r.snapshot.Strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Version 当前目录版本号。
func (r *Registry) Version() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.Version
}

// Construct 按目录构造策略实例。目录中不存在的 ID 报错。
func (r *Registry) Construct(id string) (*Strategy, error) {
	id = strings.TrimSpace(id)
	if _, ok := r.Info(id); !ok {
		return nil, fmt.Errorf("strategy %q not in catalog", id)
	}
	return New(id), nil
}

// AllowsPeriod 判断变体是否允许在给定周期上运行。
// 目录未列出周期时视为全部允许。
func (r *Registry) AllowsPeriod(id, period string) bool {
	info, ok := r.Info(id)
	if !ok {
		return false
	}
	if len(info.Periods) == 0 {
		return true
	}
	for _, p := range info.Periods {
		if p == period {
			return true
		}
	}
	return false
}

func knownVariant(id string) bool {
	switch id {
	case IDMATrend, IDMACDMomentum, IDBollReversion, IDTimeBreakout, IDGrid, IDLimitBoardWarn:
		return true
	}
	return false
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:    src.Version,
		LoadedAt:   src.LoadedAt,
		Strategies: make(map[string]Info, len(src.Strategies)),
	}
	for id, info := range src.Strategies {
		dst.Strategies[id] = info
	}
	return dst
}

func readCatalogFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read strategy catalog failed: %w", err)
	}

	// 先过 schema，错误信息比解码失败更可读。
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return FileConfig{}, fmt.Errorf("parse strategy catalog failed: %w", err)
	}
	if err := compiledCatalogSchema.Validate(normalizeYAML(generic)); err != nil {
		return FileConfig{}, fmt.Errorf("strategy catalog schema: %w", err)
	}

	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse strategy catalog failed: %w", err)
	}
	return cfg, nil
}

// normalizeYAML 把 yaml 解码出的 map[any]any 归一成 jsonschema 接受的结构。
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalizeYAML(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[fmt.Sprint(k)] = normalizeYAML(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeYAML(child)
		}
		return out
	default:
		return v
	}
}

// defaultCatalog 内置六个策略变体的目录。
func defaultCatalog() FileConfig {
	return FileConfig{Strategies: map[string]Info{
		IDMATrend: {
			Name:        "均线趋势",
			Description: "MA10金叉MA60且MA60向上、放量时买入，死叉卖出",
			Periods:     []string{"5", "15", "30", "60"},
		},
		IDMACDMomentum: {
			Name:        "MACD动量",
			Description: "零轴上方MACD金叉买入，死叉卖出",
			Periods:     []string{"5", "15", "30", "60"},
		},
		IDBollReversion: {
			Name:        "布林带回归",
			Description: "触及下轨买入，触及上轨卖出",
			Periods:     []string{"5", "15", "30"},
		},
		IDTimeBreakout: {
			Name:        "时间突破",
			Description: "突破日内高点买入，跌破日内低点卖出",
			Periods:     []string{"1", "5"},
		},
		IDGrid: {
			Name:        "网格交易",
			Description: "以基准价2%为一档，下移买入上移卖出",
			Periods:     []string{"1", "5", "15"},
		},
		IDLimitBoardWarn: {
			Name:        "涨跌停预警",
			Description: "监控封单变化，开板风险预警",
			Periods:     []string{"1"},
		},
	}}
}

func ensureCatalogFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	raw, err := yaml.Marshal(defaultCatalog())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write default strategy catalog failed: %w", err)
	}
	logger.Infof("策略目录不存在，已写入默认目录: %s", path)
	return nil
}
