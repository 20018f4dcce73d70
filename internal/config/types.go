package config

import "asharewatch/internal/calendar"

// Config 顶层配置。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Alert      AlertConfig      `mapstructure:"alert"`
	Data       DataConfig       `mapstructure:"data"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
	Calendar   CalendarConfig   `mapstructure:"calendar"`
	Admin      AdminConfig      `mapstructure:"admin"`
}

// AppConfig 进程级设置。
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

// AlertConfig 扫描引擎与通知配置。
type AlertConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	ScanInterval int            `mapstructure:"scan_interval"`
	MaxWorkers   int            `mapstructure:"max_workers"`
	Tasks        []TaskConfig   `mapstructure:"tasks"`
	DingTalk     DingTalkConfig `mapstructure:"dingtalk"`
}

// TaskConfig 单个预警任务：标的 + 策略变体 + K 线周期（分钟）。
type TaskConfig struct {
	Symbol   string `mapstructure:"symbol" json:"symbol"`
	Strategy string `mapstructure:"strategy" json:"strategy"`
	Period   string `mapstructure:"period" json:"period"`
}

// DingTalkConfig 钉钉机器人。
type DingTalkConfig struct {
	Webhook string `mapstructure:"webhook"`
	Secret  string `mapstructure:"secret"`
}

// DataConfig 行情数据配置。
type DataConfig struct {
	Sources       []string `mapstructure:"sources"`
	NameCachePath string   `mapstructure:"name_cache_path"`
}

// StrategiesConfig 策略目录文件位置。
type StrategiesConfig struct {
	Path string `mapstructure:"path"`
}

// CalendarConfig 交易日历增补：holidays 为休市日，workdays 为调休补班日，
// 均为 YYYY-MM-DD。windows 为自定义关注时段（HH:MM 闭区间）。
type CalendarConfig struct {
	Holidays []string          `mapstructure:"holidays"`
	Workdays []string          `mapstructure:"workdays"`
	Windows  []calendar.Period `mapstructure:"windows"`
}

// AdminConfig 管理 HTTP 接口。
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}
