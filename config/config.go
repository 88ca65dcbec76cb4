package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress    string    `toml:"ListenAddress"`
	DataDir          string    `toml:"DataDir"`
	IndexerDriver    string    `toml:"IndexerDriver"`
	IndexerDSN       string    `toml:"IndexerDSN"`
	NetworkName      string    `toml:"NetworkName"`
	Environment      string    `toml:"Environment"`
	LogLevel         string    `toml:"LogLevel"`
	AddressPrefix    string    `toml:"AddressPrefix"`
	StakingProgramID string    `toml:"StakingProgramID"`
	Genesis          string    `toml:"Genesis"`
	RateLimit        RateLimit `toml:"RateLimit"`
	Pauses           Pauses    `toml:"Pauses"`
	Telemetry        Telemetry `toml:"Telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		ListenAddress: ":8080",
		DataDir:       "./nftstake-data",
		IndexerDriver: DriverSQLite,
		NetworkName:   "nftstake-local",
		Environment:   "dev",
		LogLevel:      "info",
		AddressPrefix: "stk",
		RateLimit: RateLimit{
			RequestsPerMinute: 120,
			Burst:             20,
		},
	}
}

func (c *Config) normalize() {
	defaults := Default()
	c.ListenAddress = strings.TrimSpace(c.ListenAddress)
	if c.ListenAddress == "" {
		c.ListenAddress = defaults.ListenAddress
	}
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = defaults.DataDir
	}
	c.IndexerDriver = strings.ToLower(strings.TrimSpace(c.IndexerDriver))
	if c.IndexerDriver == "" {
		c.IndexerDriver = defaults.IndexerDriver
	}
	c.IndexerDSN = strings.TrimSpace(c.IndexerDSN)
	if c.IndexerDSN == "" && c.IndexerDriver == DriverSQLite {
		c.IndexerDSN = filepath.Join(c.DataDir, "index.db")
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = defaults.NetworkName
	}
	c.Environment = strings.TrimSpace(c.Environment)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	c.AddressPrefix = strings.ToLower(strings.TrimSpace(c.AddressPrefix))
	if c.AddressPrefix == "" {
		c.AddressPrefix = defaults.AddressPrefix
	}
	c.StakingProgramID = strings.TrimSpace(c.StakingProgramID)
	c.Genesis = strings.TrimSpace(c.Genesis)
	c.Telemetry.Endpoint = strings.TrimSpace(c.Telemetry.Endpoint)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
