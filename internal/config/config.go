package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	liveAPIURL = "https://api.tradestation.com/v3"
	simAPIURL  = "https://sim-api.tradestation.com/v3"
	signinURL  = "https://signin.tradestation.com"
)

type Config struct {
	Broker struct {
		Mode            string `yaml:"mode"` // "live" or "sim"
		FocusSymbol     string `yaml:"focus_symbol"`
		StreamRetries   int    `yaml:"stream_retries"`
		StreamBackoffMs int    `yaml:"stream_backoff_ms"`
		TokenRefreshMin int    `yaml:"token_refresh_min"`
	} `yaml:"broker"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "json" or "console"
	} `yaml:"logging"`

	// Credentials come from the environment, never the YAML file.
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	RedirectURL  string `yaml:"-"`
	RefreshToken string `yaml:"-"`
}

// Load reads the YAML config and overlays broker credentials from the
// environment (a .env file is honored when present).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Broker.Mode == "" {
		cfg.Broker.Mode = "sim"
	}
	if cfg.Broker.Mode != "live" && cfg.Broker.Mode != "sim" {
		return nil, fmt.Errorf("broker.mode must be \"live\" or \"sim\", got %q", cfg.Broker.Mode)
	}
	if cfg.Broker.FocusSymbol == "" {
		cfg.Broker.FocusSymbol = "SPY"
	}
	if cfg.Broker.StreamRetries == 0 {
		cfg.Broker.StreamRetries = 3
	}
	if cfg.Broker.StreamBackoffMs == 0 {
		cfg.Broker.StreamBackoffMs = 2000
	}
	if cfg.Broker.TokenRefreshMin == 0 {
		cfg.Broker.TokenRefreshMin = 15
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "session.db"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8077
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	cfg.ClientID = os.Getenv("TS_CLIENT_ID")
	cfg.ClientSecret = os.Getenv("TS_CLIENT_SECRET")
	cfg.RedirectURL = os.Getenv("TS_REDIRECT_URL")
	cfg.RefreshToken = os.Getenv("TS_REFRESH_TOKEN")
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("TS_CLIENT_ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("TS_CLIENT_SECRET is required")
	}
	if cfg.RefreshToken == "" {
		return nil, fmt.Errorf("TS_REFRESH_TOKEN is required")
	}

	return &cfg, nil
}

// APIBaseURL selects the live or simulated brokerage endpoint.
func (c *Config) APIBaseURL() string {
	if c.Broker.Mode == "live" {
		return liveAPIURL
	}
	return simAPIURL
}

func (c *Config) SigninBaseURL() string {
	return signinURL
}
