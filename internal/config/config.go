package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	OpenAI    OpenAIConfig    `yaml:"openAI"`
	Explorer  ExplorerConfig  `yaml:"explorer"`
	TokenList TokenListConfig `yaml:"tokenList"`
	DefiLlama DefiLlamaConfig `yaml:"defiLlama"`
	Chain     ChainConfig     `yaml:"chain"`
	Lookup    LookupConfig    `yaml:"lookup"`
	Pools     PoolsConfig     `yaml:"pools"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig holds the server-specific configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // e.g., "debug", "info", "warn", "error"
	File  string `yaml:"file"`
}

// DatabaseConfig holds the sqlite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// OpenAIConfig holds the configuration for the OpenAI client.
type OpenAIConfig struct {
	ApiKey               string `yaml:"apiKey"`
	Model                string `yaml:"model"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
}

// ExplorerConfig holds the configuration for the block-explorer client
// (Ethplorer-compatible API).
type ExplorerConfig struct {
	BaseURL              string  `yaml:"baseURL"`
	ApiKey               string  `yaml:"apiKey"`
	RequestTimeoutMillis int64   `yaml:"requestTimeoutMillis"`
	RateLimit            float64 `yaml:"rateLimit"`
	BurstLimit           int     `yaml:"burstLimit"`
}

// TokenListConfig holds the configuration for the DEX token list source.
type TokenListConfig struct {
	URL                  string `yaml:"url"`
	ChainID              int64  `yaml:"chainID"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	CacheTTLMinutes      int    `yaml:"cacheTTLMinutes"`
}

// DefiLlamaConfig holds the configuration for the yields API client.
type DefiLlamaConfig struct {
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	CacheTTLMinutes      int    `yaml:"cacheTTLMinutes"`
}

// ChainConfig holds the configuration for on-chain deployment. Deployment
// endpoints stay disabled unless SignerKey is set.
type ChainConfig struct {
	Endpoint          string   `yaml:"endpoint"`
	FallbackEndpoints []string `yaml:"fallbackEndpoints"`
	ChainID           int64    `yaml:"chainID"`
	RouterAddress     string   `yaml:"routerAddress"`
	WETHAddress       string   `yaml:"wethAddress"`
	SignerKey         string   `yaml:"signerKey"`
	RPCTimeoutMs      int64    `yaml:"rpcTimeoutMs"`
}

// LookupConfig holds configuration for the lookup adapters.
type LookupConfig struct {
	MaxHoldings  int `yaml:"maxHoldings"`
	HistoryLimit int `yaml:"historyLimit"`
}

// PoolsConfig holds configuration for pool discovery.
type PoolsConfig struct {
	MinTVLUSD  float64 `yaml:"minTvlUsd"`
	MaxResults int     `yaml:"maxResults"`
}

// CacheConfig holds configuration for in-memory caching.
type CacheConfig struct {
	DefaultExpirationMinutes int `yaml:"defaultExpirationMinutes"`
	CleanupIntervalMinutes   int `yaml:"cleanupIntervalMinutes"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	applyDefaults(&cfg)

	// API keys can come from the environment instead of the file.
	if envKey := os.Getenv("OPENAI_API_KEY"); envKey != "" {
		cfg.OpenAI.ApiKey = envKey
	}
	if envKey := os.Getenv("EXPLORER_API_KEY"); envKey != "" {
		cfg.Explorer.ApiKey = envKey
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
		logrus.Infof("Server.Port not set, defaulting to %s", cfg.Server.Port)
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "copyfolio.db"
		logrus.Infof("Database.Path not set, defaulting to %s", cfg.Database.Path)
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
		logrus.Infof("OpenAI.Model not set, defaulting to %s", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.RequestTimeoutMillis == 0 {
		cfg.OpenAI.RequestTimeoutMillis = 30000
	}
	if cfg.Explorer.BaseURL == "" {
		cfg.Explorer.BaseURL = "https://api.ethplorer.io"
		logrus.Infof("Explorer.BaseURL not set, defaulting to %s", cfg.Explorer.BaseURL)
	}
	if cfg.Explorer.ApiKey == "" {
		cfg.Explorer.ApiKey = "freekey"
	}
	if cfg.Explorer.RequestTimeoutMillis == 0 {
		cfg.Explorer.RequestTimeoutMillis = 10000
	}
	if cfg.Explorer.RateLimit == 0 {
		// Ethplorer free tier allows roughly 2 requests per second.
		cfg.Explorer.RateLimit = 2
	}
	if cfg.Explorer.BurstLimit == 0 {
		cfg.Explorer.BurstLimit = 2
	}
	if cfg.TokenList.URL == "" {
		cfg.TokenList.URL = "https://tokens.uniswap.org"
		logrus.Infof("TokenList.URL not set, defaulting to %s", cfg.TokenList.URL)
	}
	if cfg.TokenList.ChainID == 0 {
		cfg.TokenList.ChainID = 1 // Ethereum mainnet
	}
	if cfg.TokenList.RequestTimeoutMillis == 0 {
		cfg.TokenList.RequestTimeoutMillis = 10000
	}
	if cfg.TokenList.CacheTTLMinutes == 0 {
		cfg.TokenList.CacheTTLMinutes = 60
	}
	if cfg.DefiLlama.BaseURL == "" {
		cfg.DefiLlama.BaseURL = "https://yields.llama.fi"
		logrus.Infof("DefiLlama.BaseURL not set, defaulting to %s", cfg.DefiLlama.BaseURL)
	}
	if cfg.DefiLlama.RequestTimeoutMillis == 0 {
		cfg.DefiLlama.RequestTimeoutMillis = 15000
	}
	if cfg.DefiLlama.CacheTTLMinutes == 0 {
		cfg.DefiLlama.CacheTTLMinutes = 10
	}
	if cfg.Chain.RPCTimeoutMs == 0 {
		cfg.Chain.RPCTimeoutMs = 15000
	}
	if cfg.Chain.RouterAddress == "" {
		// Uniswap V3 SwapRouter on mainnet.
		cfg.Chain.RouterAddress = "0xE592427A0AEce92De3Edee1F18E0157C05861564"
	}
	if cfg.Chain.WETHAddress == "" {
		cfg.Chain.WETHAddress = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	}
	if cfg.Lookup.MaxHoldings == 0 {
		cfg.Lookup.MaxHoldings = 5
		logrus.Infof("Lookup.MaxHoldings not set, defaulting to %d", cfg.Lookup.MaxHoldings)
	}
	if cfg.Lookup.HistoryLimit == 0 {
		cfg.Lookup.HistoryLimit = 50
	}
	if cfg.Pools.MinTVLUSD == 0 {
		cfg.Pools.MinTVLUSD = 100000
	}
	if cfg.Pools.MaxResults == 0 {
		cfg.Pools.MaxResults = 20
	}
	if cfg.Cache.DefaultExpirationMinutes == 0 {
		cfg.Cache.DefaultExpirationMinutes = 10
	}
	if cfg.Cache.CleanupIntervalMinutes == 0 {
		cfg.Cache.CleanupIntervalMinutes = 10
	}
}
