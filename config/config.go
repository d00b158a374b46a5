// Package config loads the TOML configuration of the lulod daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultRPCAddress  = "127.0.0.1:8645"
	DefaultDataDir     = "./lulo-data"
	DefaultChainID     = 7001
	DefaultRPCTokenEnv = "LULO_RPC_TOKEN"
)

type Config struct {
	RPCAddress      string `toml:"RPCAddress"`
	DataDir         string `toml:"DataDir"`
	GenesisFile     string `toml:"GenesisFile"`
	ChainID         uint64 `toml:"ChainID"`
	RequireApproval bool   `toml:"RequireApproval"`
	// RPCTokenEnv names the environment variable holding the bearer token
	// required by lulo_sendTransaction. An unset variable disables the check.
	RPCTokenEnv          string `toml:"RPCTokenEnv"`
	RPCReadHeaderTimeout int    `toml:"RPCReadHeaderTimeout"`
	RPCReadTimeout       int    `toml:"RPCReadTimeout"`
	RPCWriteTimeout      int    `toml:"RPCWriteTimeout"`
	RPCIdleTimeout       int    `toml:"RPCIdleTimeout"`

	RateLimit RateLimit `toml:"rate_limit"`
	Journal   Journal   `toml:"journal"`
	Indexer   Indexer   `toml:"indexer"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
}

// RateLimit bounds requests per client address. A zero rate disables it.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

type Journal struct {
	// Dir defaults to <DataDir>/events.
	Dir      string `toml:"Dir"`
	Disabled bool   `toml:"Disabled"`
}

type Indexer struct {
	// DSN selects postgres for postgres:// URLs and sqlite otherwise. Empty
	// means <DataDir>/index.db.
	DSN      string `toml:"DSN"`
	Disabled bool   `toml:"Disabled"`
}

type Logging struct {
	Level       string `toml:"Level"`
	Environment string `toml:"Environment"`
	File        string `toml:"File"`
	MaxSizeMB   int    `toml:"MaxSizeMB"`
	MaxBackups  int    `toml:"MaxBackups"`
	MaxAgeDays  int    `toml:"MaxAgeDays"`
}

type Telemetry struct {
	ServiceName string  `toml:"ServiceName"`
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Metrics     bool    `toml:"Metrics"`
	Traces      bool    `toml:"Traces"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		RPCAddress:           DefaultRPCAddress,
		DataDir:              DefaultDataDir,
		ChainID:              DefaultChainID,
		RPCTokenEnv:          DefaultRPCTokenEnv,
		RPCReadHeaderTimeout: 5,
		RPCReadTimeout:       15,
		RPCWriteTimeout:      15,
		RPCIdleTimeout:       60,
		RateLimit:            RateLimit{RequestsPerSecond: 20, Burst: 40},
		Logging:              Logging{Level: "info", Environment: "local", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Telemetry:            Telemetry{ServiceName: "lulod", SampleRatio: 1},
	}
}

// Load loads the configuration from the given path. A missing file is created
// with the defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// resolvePaths makes relative paths relative to the config file directory.
func (c *Config) resolvePaths(configPath string) {
	base := filepath.Dir(configPath)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.DataDir = resolve(c.DataDir)
	c.GenesisFile = resolve(c.GenesisFile)
	c.Journal.Dir = resolve(c.Journal.Dir)
	c.Logging.File = resolve(c.Logging.File)
}

// StateDir is the LevelDB directory of the state trie.
func (c *Config) StateDir() string { return filepath.Join(c.DataDir, "state") }

// JournalDir is the event journal directory.
func (c *Config) JournalDir() string {
	if c.Journal.Dir != "" {
		return c.Journal.Dir
	}
	return filepath.Join(c.DataDir, "events")
}

// IndexerDSN is the contract index database.
func (c *Config) IndexerDSN() string {
	if c.Indexer.DSN != "" {
		return c.Indexer.DSN
	}
	return filepath.Join(c.DataDir, "index.db")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths(path)
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
