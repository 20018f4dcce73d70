// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"strings"

	"asharewatch/internal/pkg/symbol"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var validPeriods = map[string]bool{"1": true, "5": true, "15": true, "30": true, "60": true}

// Load 读取配置文件，应用默认值并校验。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}

	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogPath == "" {
		c.App.LogPath = "logs/asharewatch.log"
	}
	if c.Alert.ScanInterval <= 0 {
		c.Alert.ScanInterval = 20
	}
	if c.Alert.MaxWorkers <= 0 {
		c.Alert.MaxWorkers = 10
	}
	if len(c.Data.Sources) == 0 {
		c.Data.Sources = []string{"em", "tx", "sina"}
	}
	if c.Data.NameCachePath == "" {
		c.Data.NameCachePath = "data/stock_names.db"
	}
	if c.Strategies.Path == "" {
		c.Strategies.Path = "configs/strategies.yaml"
	}
	if c.Admin.Listen == "" {
		c.Admin.Listen = ":8823"
	}
	for i := range c.Alert.Tasks {
		if c.Alert.Tasks[i].Period == "" {
			c.Alert.Tasks[i].Period = "5"
		}
	}
}

func validate(c *Config) error {
	for i := range c.Alert.Tasks {
		t := &c.Alert.Tasks[i]
		t.Symbol = symbol.Normalize(strings.TrimSpace(t.Symbol))
		if t.Symbol == "" {
			return fmt.Errorf("alert.tasks[%d]: symbol cannot be empty", i)
		}
		t.Strategy = strings.TrimSpace(t.Strategy)
		if t.Strategy == "" {
			return fmt.Errorf("alert.tasks[%d]: strategy cannot be empty", i)
		}
		if !validPeriods[t.Period] {
			return fmt.Errorf("alert.tasks[%d]: invalid period %q (want 1/5/15/30/60)", i, t.Period)
		}
	}
	for _, src := range c.Data.Sources {
		switch src {
		case "em", "tx", "sina":
		default:
			return fmt.Errorf("data.sources: unknown source %q", src)
		}
	}
	for _, d := range append(append([]string(nil), c.Calendar.Holidays...), c.Calendar.Workdays...) {
		if len(d) != 10 || d[4] != '-' || d[7] != '-' {
			return fmt.Errorf("calendar: date %q must be YYYY-MM-DD", d)
		}
	}
	return nil
}
