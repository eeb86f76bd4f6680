package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Arbflow ArbflowConfig `yaml:"arbflow"`
	Logging LoggingConfig `yaml:"logging"`
	State   StateConfig   `yaml:"state"`
	Feed    FeedConfig    `yaml:"feed"`
	Source  SourceConfig  `yaml:"source"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ArbflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type StateConfig struct {
	// MaxAge is the staleness threshold for cached prices. Prices older
	// than this are excluded from cross-exchange spread computation.
	MaxAge        time.Duration `yaml:"max_age"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type FeedConfig struct {
	HealthCheckInterval time.Duration   `yaml:"health_check_interval"`
	Buffer              int             `yaml:"buffer"`
	FirstPriceTimeout   time.Duration   `yaml:"first_price_timeout"`
	SpreadInterval      time.Duration   `yaml:"spread_interval"`
	Reconnect           ReconnectConfig `yaml:"reconnect"`
}

type ReconnectConfig struct {
	// MaxAttempts of zero means retry forever.
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
}

type SourceConfig struct {
	Binance  ExchangeSourceConfig `yaml:"binance"`
	Coinbase ExchangeSourceConfig `yaml:"coinbase"`
}

type ExchangeSourceConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Pairs   []string `yaml:"pairs"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Region    string        `yaml:"region"`
	Namespace string        `yaml:"namespace"`
	Interval  time.Duration `yaml:"interval"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override CloudWatch settings from environment variables if available
	if config.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func defaultConfig() Config {
	return Config{
		Arbflow: ArbflowConfig{
			Name:    "arbflow",
			Version: "dev",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		State: StateConfig{
			MaxAge:        5 * time.Second,
			SweepInterval: 30 * time.Second,
		},
		Feed: FeedConfig{
			HealthCheckInterval: 30 * time.Second,
			Buffer:              100,
			FirstPriceTimeout:   10 * time.Second,
			SpreadInterval:      5 * time.Second,
			Reconnect: ReconnectConfig{
				MaxAttempts: 0,
				BaseDelay:   time.Second,
				MaxDelay:    60 * time.Second,
				Multiplier:  2.0,
			},
		},
		Source: SourceConfig{
			Binance: ExchangeSourceConfig{
				URL: "wss://stream.binance.us:9443/ws",
			},
			Coinbase: ExchangeSourceConfig{
				URL: "wss://ws-feed.exchange.coinbase.com",
			},
		},
		Metrics: MetricsConfig{
			CloudWatch: CloudWatchConfig{
				Namespace: "Arbflow",
				Interval:  time.Minute,
			},
		},
	}
}

func (c *Config) validate() error {
	if c.State.MaxAge <= 0 {
		return fmt.Errorf("state.max_age must be positive, got %s", c.State.MaxAge)
	}
	if c.Feed.Reconnect.BaseDelay <= 0 {
		return fmt.Errorf("feed.reconnect.base_delay must be positive, got %s", c.Feed.Reconnect.BaseDelay)
	}
	if c.Feed.Reconnect.MaxDelay < c.Feed.Reconnect.BaseDelay {
		return fmt.Errorf("feed.reconnect.max_delay %s is below base_delay %s", c.Feed.Reconnect.MaxDelay, c.Feed.Reconnect.BaseDelay)
	}
	if c.Feed.Reconnect.Multiplier < 1 {
		return fmt.Errorf("feed.reconnect.multiplier must be >= 1, got %v", c.Feed.Reconnect.Multiplier)
	}
	for name, src := range map[string]ExchangeSourceConfig{"binance": c.Source.Binance, "coinbase": c.Source.Coinbase} {
		if src.Enabled && src.URL == "" {
			return fmt.Errorf("source.%s.url is required when enabled", name)
		}
		if src.Enabled && len(src.Pairs) == 0 {
			return fmt.Errorf("source.%s.pairs is required when enabled", name)
		}
	}
	return nil
}
