package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	CEX       CEXConfig       `yaml:"cex"`
	DEX       DEXConfig       `yaml:"dex"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	State     StateConfig     `yaml:"state"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Timescale TimescaleConfig `yaml:"timescale"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CEXConfig covers the Binance futures side. API credentials come from the
// environment (BINANCE_API_KEY / BINANCE_SECRET_KEY), never from yaml.
type CEXConfig struct {
	WSURL       string        `yaml:"ws_url"`
	RESTTimeout time.Duration `yaml:"rest_timeout"`
	Symbol      string        `yaml:"symbol"`
	MakerFee    float64       `yaml:"maker_fee"`
	TakerFee    float64       `yaml:"taker_fee"`
	Testnet     bool          `yaml:"testnet"`
}

// DEXConfig covers the Hyperliquid side. The wallet address and private key
// come from the environment (HL_WALLET_ADDRESS / HL_PRIVATE_KEY).
type DEXConfig struct {
	WSURL          string        `yaml:"ws_url"`
	RESTURL        string        `yaml:"rest_url"`
	RESTTimeout    time.Duration `yaml:"rest_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	Symbol         string        `yaml:"symbol"`
	MakerFee       float64       `yaml:"maker_fee"`
	TakerFee       float64       `yaml:"taker_fee"`
	Testnet        bool          `yaml:"testnet"`
}

type StrategyConfig struct {
	MinSpreadThreshold float64       `yaml:"min_spread_threshold"`
	CycleQty           float64       `yaml:"cycle_qty"`
	OrderTimeout       time.Duration `yaml:"t_order"`
	CancelTimeout      time.Duration `yaml:"t_cancel"`
	CancelRetries      int           `yaml:"n_cancel_retry"`
	ChaseLimitAttempts int           `yaml:"chase_limit_attempts"`
	MaxQuoteAge        time.Duration `yaml:"max_quote_age"`
	BookDepth          int           `yaml:"book_depth"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

const (
	mainnetDEXWSURL   = "wss://api.hyperliquid.xyz/ws"
	testnetDEXWSURL   = "wss://api.hyperliquid-testnet.xyz/ws"
	mainnetDEXRESTURL = "https://api.hyperliquid.xyz"
	testnetDEXRESTURL = "https://api.hyperliquid-testnet.xyz"
)

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.CEX.RESTTimeout == 0 {
		cfg.CEX.RESTTimeout = 10 * time.Second
	}
	if cfg.CEX.Symbol == "" {
		cfg.CEX.Symbol = "BTCUSDT"
	}
	if cfg.CEX.MakerFee == 0 {
		cfg.CEX.MakerFee = 0.0002
	}
	if cfg.CEX.TakerFee == 0 {
		cfg.CEX.TakerFee = 0.0004
	}
	if cfg.DEX.WSURL == "" {
		if cfg.DEX.Testnet {
			cfg.DEX.WSURL = testnetDEXWSURL
		} else {
			cfg.DEX.WSURL = mainnetDEXWSURL
		}
	}
	if cfg.DEX.RESTURL == "" {
		if cfg.DEX.Testnet {
			cfg.DEX.RESTURL = testnetDEXRESTURL
		} else {
			cfg.DEX.RESTURL = mainnetDEXRESTURL
		}
	}
	if cfg.DEX.RESTTimeout == 0 {
		cfg.DEX.RESTTimeout = 10 * time.Second
	}
	if cfg.DEX.ReconnectDelay == 0 {
		cfg.DEX.ReconnectDelay = 3 * time.Second
	}
	if cfg.DEX.PingInterval == 0 {
		cfg.DEX.PingInterval = 30 * time.Second
	}
	if cfg.DEX.Symbol == "" {
		cfg.DEX.Symbol = "BTC"
	}
	if cfg.DEX.MakerFee == 0 {
		cfg.DEX.MakerFee = 0.0002
	}
	if cfg.DEX.TakerFee == 0 {
		cfg.DEX.TakerFee = 0.0004
	}
	if cfg.Strategy.OrderTimeout == 0 {
		cfg.Strategy.OrderTimeout = 5 * time.Second
	}
	if cfg.Strategy.CancelTimeout == 0 {
		cfg.Strategy.CancelTimeout = 5 * time.Second
	}
	if cfg.Strategy.CancelRetries == 0 {
		cfg.Strategy.CancelRetries = 3
	}
	if cfg.Strategy.ChaseLimitAttempts == 0 {
		cfg.Strategy.ChaseLimitAttempts = 3
	}
	if cfg.Strategy.MaxQuoteAge == 0 {
		cfg.Strategy.MaxQuoteAge = time.Second
	}
	if cfg.Strategy.BookDepth == 0 {
		cfg.Strategy.BookDepth = 10
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/arb-bot.db"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
}

func validate(cfg *Config) error {
	if cfg.Strategy.CycleQty <= 0 {
		return errors.New("strategy.cycle_qty must be > 0")
	}
	if cfg.Strategy.MinSpreadThreshold < 0 {
		return errors.New("strategy.min_spread_threshold must be >= 0")
	}
	if cfg.Strategy.BookDepth < 10 {
		return errors.New("strategy.book_depth must be >= 10")
	}
	if cfg.CEX.Symbol == "" || cfg.DEX.Symbol == "" {
		return errors.New("cex.symbol and dex.symbol are required")
	}
	if cfg.Timescale.Enabled && cfg.Timescale.DSN == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	return nil
}
