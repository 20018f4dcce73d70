// Package namestore keeps a durable symbol→{名称, 类型, 市场} cache so
// notification messages can show display names without hitting the
// quote providers on every signal.
package namestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"asharewatch/internal/fetcher"
	"asharewatch/internal/logger"
	"asharewatch/internal/pkg/symbol"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Info 单只证券的缓存信息。
type Info struct {
	Name   string
	Type   string
	Market string
}

type stockInfoModel struct {
	Symbol string `gorm:"primaryKey;column:symbol"`
	Name   string `gorm:"column:name"`
	Type   string `gorm:"column:type"`
	Market string `gorm:"column:market"`
}

func (stockInfoModel) TableName() string { return "stock_infos" }

// LookupFunc 拉取单只证券显示名称的能力，缓存未命中时调用。
type LookupFunc func(ctx context.Context, sym string) (string, error)

// Store 名称缓存服务。进程内共享同一实例，内部自带锁；
// 只增不删，每批新增后落盘。
type Store struct {
	mu     sync.RWMutex
	db     *gorm.DB
	stocks map[string]Info
	lookup LookupFunc
}

// Open 打开（或创建）缓存数据库并载入全部条目。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("namestore: 缓存路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&stockInfoModel{}); err != nil {
		return nil, err
	}

	s := &Store{db: db, stocks: make(map[string]Info), lookup: fetcher.FetchName}
	var models []stockInfoModel
	if err := db.Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		s.stocks[m.Symbol] = Info{Name: m.Name, Type: m.Type, Market: m.Market}
	}
	logger.Infof("已加载股票信息缓存，共 %d 条", len(s.stocks))
	return s, nil
}

// SetLookup 替换名称查询能力，仅测试使用。
func (s *Store) SetLookup(fn LookupFunc) {
	if fn != nil {
		s.mu.Lock()
		s.lookup = fn
		s.mu.Unlock()
	}
}

// EnsureSymbols 确保给定代码都有缓存信息：逐个查询缺失项并合并入库。
// 单个代码查询失败只记录，不影响其余代码。
func (s *Store) EnsureSymbols(ctx context.Context, symbols []string) {
	var missing []string
	s.mu.RLock()
	lookup := s.lookup
	for _, sym := range symbols {
		if sym == "" {
			continue
		}
		if _, ok := s.cachedLocked(sym); !ok {
			missing = append(missing, sym)
		}
	}
	s.mu.RUnlock()
	if len(missing) == 0 {
		return
	}

	fetched := make(map[string]Info)
	for _, sym := range missing {
		name, err := lookup(ctx, sym)
		if err != nil {
			logger.Debugf("查询 %s 名称失败: %v", sym, err)
			continue
		}
		fetched[sym] = Info{
			Name:   name,
			Type:   string(symbol.Type(sym)),
			Market: symbol.MarketShortName(sym),
		}
	}
	if len(fetched) == 0 {
		return
	}

	s.mu.Lock()
	for sym, info := range fetched {
		s.stocks[sym] = info
	}
	s.mu.Unlock()

	if err := s.persist(fetched); err != nil {
		logger.Errorf("保存名称缓存失败: %v", err)
		return
	}
	logger.Infof("本次共更新 %d 条股票信息", len(fetched))
}

func (s *Store) persist(batch map[string]Info) error {
	models := make([]stockInfoModel, 0, len(batch))
	for sym, info := range batch {
		models = append(models, stockInfoModel{
			Symbol: sym,
			Name:   info.Name,
			Type:   info.Type,
			Market: info.Market,
		})
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&models).Error
}

// GetName 显示名称，未缓存时回退为代码本身。
func (s *Store) GetName(sym string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if info, ok := s.cachedLocked(sym); ok && info.Name != "" {
		return info.Name
	}
	return sym
}

// GetType 证券类型（股/基/债）。
func (s *Store) GetType(sym string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if info, ok := s.cachedLocked(sym); ok && info.Type != "" {
		return info.Type
	}
	return string(symbol.Type(sym))
}

// GetInfo 完整缓存信息，未缓存时按代码前缀推断。
func (s *Store) GetInfo(sym string) Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if info, ok := s.cachedLocked(sym); ok {
		return info
	}
	return Info{
		Name:   sym,
		Type:   string(symbol.Type(sym)),
		Market: symbol.MarketShortName(sym),
	}
}

// Len 缓存条目数。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stocks)
}

// cachedLocked 兼容带前缀/纯数字两种写法查缓存。调用方负责持锁。
func (s *Store) cachedLocked(sym string) (Info, bool) {
	if info, ok := s.stocks[sym]; ok {
		return info, true
	}
	pure := symbol.PureCode(sym)
	if pure != sym {
		if info, ok := s.stocks[pure]; ok {
			return info, true
		}
	} else {
		for _, prefix := range []string{"sh", "sz"} {
			if info, ok := s.stocks[prefix+sym]; ok {
				return info, true
			}
		}
	}
	return Info{}, false
}
