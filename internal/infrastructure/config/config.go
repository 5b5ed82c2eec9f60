package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// VenueConfig 单交易所连接配置
type VenueConfig struct {
	Enabled bool   `toml:"enabled"`
	WsURL   string `toml:"ws_url"`
	RestURL string `toml:"rest_url"`
}

type Config struct {
	App struct {
		Name     string `toml:"name"`
		LogLevel string `toml:"log_level"`
	} `toml:"app"`

	Engine struct {
		MaxListeners int `toml:"max_listeners"`
	} `toml:"engine"`

	Stream struct {
		BaseDelayMs        int `toml:"base_delay_ms"`
		MaxDelayMs         int `toml:"max_delay_ms"`
		HandshakeTimeoutMs int `toml:"handshake_timeout_ms"`
	} `toml:"stream"`

	HTTP struct {
		Addr string `toml:"addr"`
	} `toml:"http"`

	Exchange map[string]VenueConfig `toml:"exchange"`

	SQLite struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"sqlite"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn"`
	} `toml:"postgres"`

	Redis struct {
		Enabled     bool   `toml:"enabled"`
		Addr        string `toml:"addr"`
		Password    string `toml:"password"`
		DB          int    `toml:"db"`
		Prefix      string `toml:"prefix"`
		TTLSec      int    `toml:"ttl_sec"`
		EventStream string `toml:"event_stream"`
		EventChan   string `toml:"event_chan"`
	} `toml:"redis"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.App.Name) == "" {
		cfg.App.Name = "arbsig"
	}
	if strings.TrimSpace(cfg.App.LogLevel) == "" {
		cfg.App.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if strings.TrimSpace(cfg.SQLite.Path) == "" {
		cfg.SQLite.Path = "data/arbsig.db"
	}
	if strings.TrimSpace(cfg.Redis.Prefix) == "" {
		cfg.Redis.Prefix = "arbsig"
	}

	// exchange 段的 key 统一大写，venue 名对外一律大写
	normalized := make(map[string]VenueConfig, len(cfg.Exchange))
	for name, vc := range cfg.Exchange {
		normalized[strings.ToUpper(strings.TrimSpace(name))] = vc
	}
	cfg.Exchange = normalized
}

func validate(cfg *Config) error {
	enabled := 0
	for name, vc := range cfg.Exchange {
		if !vc.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(vc.WsURL) == "" {
			return fmt.Errorf("exchange.%s.ws_url empty but enabled", strings.ToLower(name))
		}
	}
	if enabled == 0 {
		return errors.New("no exchange enabled")
	}

	if cfg.Postgres.Enabled && strings.TrimSpace(cfg.Postgres.DSN) == "" {
		return errors.New("postgres.dsn empty but enabled")
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but enabled")
	}
	return nil
}

// RedisTTL 读取 latest hash 的过期时间
func (c *Config) RedisTTL() time.Duration {
	if c.Redis.TTLSec <= 0 {
		return 0
	}
	return time.Duration(c.Redis.TTLSec) * time.Second
}

// StreamBaseDelay 重连退避起始间隔（0 表示用默认值）
func (c *Config) StreamBaseDelay() time.Duration {
	return time.Duration(c.Stream.BaseDelayMs) * time.Millisecond
}

func (c *Config) StreamMaxDelay() time.Duration {
	return time.Duration(c.Stream.MaxDelayMs) * time.Millisecond
}

func (c *Config) StreamHandshakeTimeout() time.Duration {
	return time.Duration(c.Stream.HandshakeTimeoutMs) * time.Millisecond
}
