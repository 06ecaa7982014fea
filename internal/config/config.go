package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server           ServerConfig       `yaml:"server"`
	Logging          LoggingConfig      `yaml:"logging"`
	Networks         []NetworkConfig    `yaml:"networks"`
	Cache            CacheConfig        `yaml:"cache"`
	Scanner          ScannerConfig      `yaml:"scanner"`
	PriceService     PriceServiceConfig `yaml:"priceService"`
	TrackedAddresses []TrackedAddress   `yaml:"trackedAddresses"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// NetworkConfig describes one network and its tracked tokens.
type NetworkConfig struct {
	ID               string        `yaml:"id"`
	Name             string        `yaml:"name"`
	ChainID          uint64        `yaml:"chainId"`
	RPCEndpoint      string        `yaml:"rpcEndpoint"`
	NativeSymbol     string        `yaml:"nativeSymbol"`
	NativeDecimals   uint8         `yaml:"nativeDecimals"`
	NativePriceID    string        `yaml:"nativePriceId"`
	MulticallAddress string        `yaml:"multicallAddress"`
	Tokens           []TokenConfig `yaml:"tokens"`
}

// TokenConfig describes one tracked token.
type TokenConfig struct {
	Symbol          string `yaml:"symbol"`
	ContractAddress string `yaml:"contractAddress"`
	Decimals        uint8  `yaml:"decimals"`
	PriceID         string `yaml:"priceId"`
}

// CacheConfig drives the balance and price caching policy.
type CacheConfig struct {
	BalanceActiveTTLMinutes   int `yaml:"balanceActiveTTLMinutes"`
	BalanceInactiveTTLMinutes int `yaml:"balanceInactiveTTLMinutes"`
	PriceTTLMinutes           int `yaml:"priceTTLMinutes"`
	SweepIntervalMinutes      int `yaml:"sweepIntervalMinutes"`
	RefreshWindowMinutes      int `yaml:"refreshWindowMinutes"`
}

// ScannerConfig holds configuration for the balance scan orchestrator.
type ScannerConfig struct {
	FetchTimeoutMs         int64 `yaml:"fetchTimeoutMs"`
	RateLimit              int   `yaml:"rateLimit"`
	BurstLimit             int   `yaml:"burstLimit"`
	MaxConcurrentNetworks  int   `yaml:"maxConcurrentNetworks"`
	MaxConcurrentAddresses int   `yaml:"maxConcurrentAddresses"`
}

// PriceServiceConfig holds configuration for the price cache service.
type PriceServiceConfig struct {
	BaseURL          string            `yaml:"baseURL"`
	APIKey           string            `yaml:"apiKey"`
	RequestTimeoutMs int64             `yaml:"requestTimeoutMs"`
	Stablecoins      []string          `yaml:"stablecoins"`
	WrappedTokens    map[string]string `yaml:"wrappedTokens"`
}

// TrackedAddress is an externally supplied address record mirrored into the
// config for initial warm-up; the durable list lives outside this process.
type TrackedAddress struct {
	ID          string `yaml:"id"`
	Address     string `yaml:"address"`
	ChainFamily string `yaml:"chainFamily"`
	Label       string `yaml:"label"`
}

// LoadConfig loads configuration from a YAML file and applies defaults for
// unset fields.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	applyDefaults(&cfg)

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Cache.BalanceActiveTTLMinutes == 0 {
		cfg.Cache.BalanceActiveTTLMinutes = 10
		logrus.Infof("BalanceActiveTTLMinutes not set, defaulting to %d", cfg.Cache.BalanceActiveTTLMinutes)
	}
	if cfg.Cache.BalanceInactiveTTLMinutes == 0 {
		cfg.Cache.BalanceInactiveTTLMinutes = 60
		logrus.Infof("BalanceInactiveTTLMinutes not set, defaulting to %d", cfg.Cache.BalanceInactiveTTLMinutes)
	}
	if cfg.Cache.PriceTTLMinutes == 0 {
		cfg.Cache.PriceTTLMinutes = 10
		logrus.Infof("PriceTTLMinutes not set, defaulting to %d", cfg.Cache.PriceTTLMinutes)
	}
	if cfg.Cache.SweepIntervalMinutes == 0 {
		cfg.Cache.SweepIntervalMinutes = 5
	}
	if cfg.Cache.RefreshWindowMinutes == 0 {
		cfg.Cache.RefreshWindowMinutes = 2
	}
	if cfg.Scanner.FetchTimeoutMs == 0 {
		cfg.Scanner.FetchTimeoutMs = 10000
	}
	if cfg.Scanner.RateLimit == 0 {
		cfg.Scanner.RateLimit = 20
	}
	if cfg.Scanner.BurstLimit == 0 {
		cfg.Scanner.BurstLimit = 40
	}
	if cfg.Scanner.MaxConcurrentNetworks == 0 {
		cfg.Scanner.MaxConcurrentNetworks = 8
	}
	if cfg.Scanner.MaxConcurrentAddresses == 0 {
		cfg.Scanner.MaxConcurrentAddresses = 4
	}
	if cfg.PriceService.BaseURL == "" {
		cfg.PriceService.BaseURL = "https://api.coingecko.com"
		logrus.Infof("PriceService.BaseURL not set, defaulting to %s", cfg.PriceService.BaseURL)
	}
	if cfg.PriceService.RequestTimeoutMs == 0 {
		cfg.PriceService.RequestTimeoutMs = 10000
	}
}
