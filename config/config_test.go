package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.ChainID != DefaultChainID || cfg.RPCAddress != DefaultRPCAddress {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DataDir != filepath.Join(dir, "nested", "lulo-data") {
		t.Fatalf("data dir not resolved against config dir: %s", cfg.DataDir)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload default: %v", err)
	}
	if reloaded.RateLimit != cfg.RateLimit || reloaded.Telemetry != cfg.Telemetry {
		t.Fatalf("reloaded config differs: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadParsesSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `RPCAddress = "0.0.0.0:9000"
DataDir = "/var/lib/lulo"
GenesisFile = "genesis.json"
ChainID = 42
RequireApproval = true
RPCTokenEnv = "MY_TOKEN"

[rate_limit]
RequestsPerSecond = 5.5
Burst = 10

[journal]
Dir = "journal"

[indexer]
DSN = "postgres://lulo@localhost/lulo"

[logging]
Level = "debug"
File = "/var/log/lulod.log"

[telemetry]
Metrics = true
Endpoint = "otel:4318"
Headers = "x-api-key=secret"
SampleRatio = 0.25
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChainID != 42 || !cfg.RequireApproval || cfg.RPCTokenEnv != "MY_TOKEN" {
		t.Fatalf("unexpected top-level settings %+v", cfg)
	}
	if cfg.GenesisFile != filepath.Join(dir, "genesis.json") {
		t.Fatalf("genesis path not resolved: %s", cfg.GenesisFile)
	}
	if cfg.JournalDir() != filepath.Join(dir, "journal") {
		t.Fatalf("unexpected journal dir %s", cfg.JournalDir())
	}
	if cfg.IndexerDSN() != "postgres://lulo@localhost/lulo" {
		t.Fatalf("unexpected indexer dsn %s", cfg.IndexerDSN())
	}
	if cfg.StateDir() != filepath.Join("/var/lib/lulo", "state") {
		t.Fatalf("unexpected state dir %s", cfg.StateDir())
	}
	if cfg.RateLimit.RequestsPerSecond != 5.5 || cfg.RateLimit.Burst != 10 {
		t.Fatalf("unexpected rate limit %+v", cfg.RateLimit)
	}
	if cfg.Telemetry.ServiceName != "lulod" || cfg.Telemetry.SampleRatio != 0.25 {
		t.Fatalf("unexpected telemetry %+v", cfg.Telemetry)
	}
	// Unset keys keep their defaults.
	if cfg.RPCIdleTimeout != 60 {
		t.Fatalf("default idle timeout lost: %d", cfg.RPCIdleTimeout)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("ChainID = 1\nValidatorKey = \"abc\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ValidatorKey") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero chain id":    func(c *Config) { c.ChainID = 0 },
		"bad address":      func(c *Config) { c.RPCAddress = "localhost" },
		"empty data dir":   func(c *Config) { c.DataDir = " " },
		"negative timeout": func(c *Config) { c.RPCReadTimeout = -1 },
		"burst missing":    func(c *Config) { c.RateLimit.Burst = 0 },
		"bad level":        func(c *Config) { c.Logging.Level = "loud" },
		"bad ratio":        func(c *Config) { c.Telemetry.SampleRatio = 2 },
		"no service name": func(c *Config) {
			c.Telemetry.Traces = true
			c.Telemetry.ServiceName = ""
		},
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
