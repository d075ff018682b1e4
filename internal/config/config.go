package config

import (
	"time"

	"github.com/spf13/viper"
	pkgconfig "github.com/streakmates/sync-client/pkg/config"
)

type Config struct {
	API      APIConfig
	Realtime RealtimeConfig
	Unread   UnreadConfig
	Auth     AuthConfig
	Log      LogConfig
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RealtimeConfig struct {
	URL            string        `mapstructure:"url"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type UnreadConfig struct {
	MinFetchInterval time.Duration `mapstructure:"min_fetch_interval"`
}

type AuthConfig struct {
	Token string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("api.base_url", "https://api.streakmates.app")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("realtime.url", "wss://api.streakmates.app/realtime")
	v.SetDefault("realtime.ping_interval", "30s")
	v.SetDefault("realtime.pong_wait", "60s")
	v.SetDefault("realtime.write_wait", "10s")
	v.SetDefault("realtime.max_message_size", 4096)
	v.SetDefault("realtime.dial_timeout", "10s")
	v.SetDefault("realtime.max_backoff", "30s")
	v.SetDefault("unread.min_fetch_interval", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("api.base_url", "API_BASE_URL")
	v.BindEnv("realtime.url", "REALTIME_URL")
	v.BindEnv("auth.token", "AUTH_TOKEN")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.API.Timeout = parseDuration(v, "api.timeout", 15*time.Second)
	cfg.Realtime.PingInterval = parseDuration(v, "realtime.ping_interval", 30*time.Second)
	cfg.Realtime.PongWait = parseDuration(v, "realtime.pong_wait", 60*time.Second)
	cfg.Realtime.WriteWait = parseDuration(v, "realtime.write_wait", 10*time.Second)
	cfg.Realtime.DialTimeout = parseDuration(v, "realtime.dial_timeout", 10*time.Second)
	cfg.Realtime.MaxBackoff = parseDuration(v, "realtime.max_backoff", 30*time.Second)
	cfg.Unread.MinFetchInterval = parseDuration(v, "unread.min_fetch_interval", 30*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
