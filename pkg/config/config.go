package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const ConfigFileName = ".hbarpay.json"

// Config holds the client settings. File values can be overridden by
// HBARPAY_* environment variables.
type Config struct {
	APIBaseURL          string `json:"api_base_url" env:"HBARPAY_API_URL"`
	Network             string `json:"network" env:"HBARPAY_NETWORK"`
	TwitterHandle       string `json:"twitter_handle" env:"HBARPAY_HANDLE"`
	SessionToken        string `json:"session_token" env:"HBARPAY_SESSION_TOKEN"`
	PollIntervalSeconds int    `json:"poll_interval_seconds" env:"HBARPAY_POLL_INTERVAL"`
	TokenPageSize       int    `json:"token_page_size"`
	FiatDecimals        int    `json:"fiat_decimals"`
	PriceOverrideUSD    string `json:"price_override_usd" env:"HBARPAY_PRICE_USD"`
	CoinGeckoID         string `json:"coingecko_id"`
}

func defaults() Config {
	return Config{
		APIBaseURL:          "http://localhost:3000",
		Network:             "testnet",
		PollIntervalSeconds: 30,
		TokenPageSize:       100,
		FiatDecimals:        2,
		CoinGeckoID:         "hedera-hashgraph",
	}
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// LoadFromFile reads the config file, fills defaults for missing fields
// and applies environment overrides. A missing file yields pure defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := defaults()

	f, err := os.Open(path)
	if err == nil {
		defer func() { _ = f.Close() }()
		if cfg, err = Load(f); err != nil {
			return Config{}, err
		}
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("apply env overrides: %w", err)
	}
	return cfg, cfg.Validate()
}

// Load decodes a config document, filling defaults for absent fields.
func Load(r io.Reader) (Config, error) {
	cfg := defaults()
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaults().APIBaseURL
	}
	if cfg.Network == "" {
		cfg.Network = defaults().Network
	}
	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = defaults().PollIntervalSeconds
	}
	if cfg.TokenPageSize <= 0 {
		cfg.TokenPageSize = defaults().TokenPageSize
	}
	if cfg.FiatDecimals <= 0 {
		cfg.FiatDecimals = defaults().FiatDecimals
	}
	if cfg.CoinGeckoID == "" {
		cfg.CoinGeckoID = defaults().CoinGeckoID
	}
	return cfg, nil
}

// Validate checks the fields that would otherwise fail deep inside the
// gateway.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("validation failed: api_base_url %q must start with http:// or https://", c.APIBaseURL)
	}
	switch strings.ToLower(c.Network) {
	case "testnet", "mainnet", "previewnet":
	default:
		return fmt.Errorf("validation failed: network %q (allowed: testnet, mainnet, previewnet)", c.Network)
	}
	return nil
}

// PollInterval returns the poll setting as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Save writes the config with a timestamped backup of any existing file,
// then an atomic rename.
func Save(cfg Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
