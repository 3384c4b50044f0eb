package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"options_go/internal/domain"
)

const (
	// DefaultUserAgent is sent by the rate poller.
	DefaultUserAgent = "options-go/1.0 (+rate-poller)"
)

// PositionConfig is one option line of the monitored book as written in YAML.
type PositionConfig struct {
	ID       string  `yaml:"id"`
	Kind     string  `yaml:"kind"`  // call | put
	Style    string  `yaml:"style"` // european | american
	Strike   float64 `yaml:"strike"`
	Maturity float64 `yaml:"maturity"`
	Vol      float64 `yaml:"vol"`
	Quantity float64 `yaml:"quantity"`
}

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	// Market holds the default inputs used when a request omits them.
	Market domain.MarketParams `yaml:"market"`

	Engine struct {
		LatticeSteps  int      `yaml:"lattice_steps"`
		Simulations   int      `yaml:"simulations"`
		PathSteps     int      `yaml:"path_steps"`
		Seed          *uint64  `yaml:"seed"`           // nil means entropy
		DigitalPayout *float64 `yaml:"digital_payout"` // nil pays 1
		BatchRows     int      `yaml:"batch_rows"`
		SweepWorkers  int      `yaml:"sweep_workers"`
	} `yaml:"engine"`

	Storage struct {
		Path         string `yaml:"path"`
		CacheEnabled bool   `yaml:"cache_enabled"`
		RedisAddr    string `yaml:"redis_addr"`
		RedisTTLSec  int    `yaml:"redis_ttl_sec"`
	} `yaml:"storage"`

	Feed struct {
		Enabled bool   `yaml:"enabled"`
		WSURL   string `yaml:"ws_url"`
		Symbol  string `yaml:"symbol"`
	} `yaml:"feed"`

	Rates struct {
		Enabled         bool   `yaml:"enabled"`
		URL             string `yaml:"url"`
		PollIntervalSec int    `yaml:"poll_interval_sec"`
	} `yaml:"rates"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Book struct {
		Symbol    string           `yaml:"symbol"`
		HedgeBand float64          `yaml:"hedge_band"`
		FeeRate   float64          `yaml:"fee_rate"` // paper hedge fee on notional
		Positions []PositionConfig `yaml:"positions"`
	} `yaml:"book"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration that prices the standard at-the-money case.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "options-go"
	cfg.App.Version = "dev"
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Market == (domain.MarketParams{}) {
		c.Market = domain.MarketParams{Spot: 100, Strike: 100, Maturity: 1, Rate: 0.05, Vol: 0.2}
	}
	if c.Engine.LatticeSteps == 0 {
		c.Engine.LatticeSteps = 500
	}
	if c.Engine.Simulations == 0 {
		c.Engine.Simulations = 100_000
	}
	if c.Engine.PathSteps == 0 {
		c.Engine.PathSteps = 252
	}
	if c.Engine.DigitalPayout == nil {
		one := 1.0
		c.Engine.DigitalPayout = &one
	}
	if c.Engine.BatchRows == 0 {
		c.Engine.BatchRows = 4096
	}
	if c.Engine.SweepWorkers == 0 {
		c.Engine.SweepWorkers = 4
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/options.db"
	}
	if c.Storage.RedisTTLSec == 0 {
		c.Storage.RedisTTLSec = 3600
	}
	if c.Rates.PollIntervalSec == 0 {
		c.Rates.PollIntervalSec = 60
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Book.HedgeBand == 0 {
		c.Book.HedgeBand = 0.1
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

// LoadConfig는 .env와 설정 파일을 읽고 파싱합니다.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; variables already set in the process win
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := overrideWithEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if err := c.Market.Validate(); err != nil {
		return &domain.ConfigError{Field: "market", Err: err}
	}
	if c.Engine.LatticeSteps <= 0 {
		return &domain.ConfigError{Field: "engine.lattice_steps", Err: fmt.Errorf("must be positive, got %d", c.Engine.LatticeSteps)}
	}
	if c.Engine.Simulations <= 0 {
		return &domain.ConfigError{Field: "engine.simulations", Err: fmt.Errorf("must be positive, got %d", c.Engine.Simulations)}
	}
	if c.Engine.PathSteps <= 0 {
		return &domain.ConfigError{Field: "engine.path_steps", Err: fmt.Errorf("must be positive, got %d", c.Engine.PathSteps)}
	}

	if c.Feed.Enabled {
		if !hasPrefix(c.Feed.WSURL, "ws://") && !hasPrefix(c.Feed.WSURL, "wss://") {
			return &domain.ConfigError{Field: "feed.ws_url", Err: fmt.Errorf("invalid websocket url %q", c.Feed.WSURL)}
		}
		if c.Feed.Symbol == "" {
			return &domain.ConfigError{Field: "feed.symbol", Err: errors.New("symbol is required when the feed is enabled")}
		}
	}
	if c.Rates.Enabled && !hasPrefix(c.Rates.URL, "http://") && !hasPrefix(c.Rates.URL, "https://") {
		return &domain.ConfigError{Field: "rates.url", Err: fmt.Errorf("invalid url %q", c.Rates.URL)}
	}
	if c.Book.FeeRate < 0 || c.Book.FeeRate >= 1 {
		return &domain.ConfigError{Field: "book.fee_rate", Err: fmt.Errorf("must be in [0, 1), got %v", c.Book.FeeRate)}
	}
	if c.Book.HedgeBand < 0 {
		return &domain.ConfigError{Field: "book.hedge_band", Err: errors.New("must not be negative")}
	}
	if _, err := c.Positions(); err != nil {
		return &domain.ConfigError{Field: "book.positions", Err: err}
	}

	return nil
}

// Positions converts the YAML book into domain positions.
func (c *Config) Positions() ([]domain.Position, error) {
	out := make([]domain.Position, 0, len(c.Book.Positions))
	for i, pc := range c.Book.Positions {
		kind, err := domain.ParseOptionKind(pc.Kind)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		style, err := domain.ParseExerciseStyle(pc.Style)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		id := pc.ID
		if id == "" {
			id = fmt.Sprintf("%s-%s-%g", strings.ToLower(kind.String()), strings.ToLower(style.String()), pc.Strike)
		}
		pos := domain.Position{
			ID:       id,
			Kind:     kind,
			Style:    style,
			Strike:   pc.Strike,
			Maturity: pc.Maturity,
			Vol:      pc.Vol,
			Quantity: pc.Quantity,
		}
		if err := pos.Params(1, 0).Validate(); err != nil {
			return nil, fmt.Errorf("position %s: %w", id, err)
		}
		out = append(out, pos)
	}
	return out, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
func overrideWithEnv(cfg *Config) error {
	if v := os.Getenv("OPTIONS_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("OPTIONS_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("OPTIONS_REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("OPTIONS_FEED_URL"); v != "" {
		cfg.Feed.WSURL = v
	}
	if v := os.Getenv("OPTIONS_RATES_URL"); v != "" {
		cfg.Rates.URL = v
	}
	if v := os.Getenv("OPTIONS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OPTIONS_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &domain.ConfigError{Field: "OPTIONS_SEED", Err: err}
		}
		cfg.Engine.Seed = &seed
	}
	return nil
}
