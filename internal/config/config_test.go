package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "turbo" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "unknown log_level"},
		{"bad port", func(c *Config) { c.Server.Port = 99999 }, "port must be"},
		{"bad chain id", func(c *Config) { c.Signing.ChainID = 0 }, "chain_id must be positive"},
		{"bad contract", func(c *Config) { c.Signing.VerifyingContract = "not-hex" }, "verifying_contract"},
		{"archive without bucket", func(c *Config) {
			c.Mode = "archive"
			c.S3.Bucket = ""
		}, "bucket must not be empty"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "full"
log_level = "debug"

[server]
port = 9100

[signing]
chain_id = 1
verifying_contract = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"

[archive]
interval = "6h"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("INTENT_SERVER_PORT", "9200")
	t.Setenv("INTENT_SIGNING_CHAIN_ID", "137")
	t.Setenv("INTENT_DATABASE_PASSWORD", "hunter2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Mode != "full" {
		t.Errorf("mode = %q, want full", cfg.Mode)
	}
	// Env wins over the file.
	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d, want 9200", cfg.Server.Port)
	}
	if cfg.Signing.ChainID != 137 {
		t.Errorf("chain id = %d, want 137", cfg.Signing.ChainID)
	}
	if cfg.Database.Password != "hunter2" {
		t.Errorf("database password override not applied")
	}
	// File wins over defaults.
	if cfg.Archive.Interval.Duration != 6*time.Hour {
		t.Errorf("archive interval = %s, want 6h", cfg.Archive.Interval.Duration)
	}
	// Defaults survive where neither file nor env sets a value.
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q, want default", cfg.Redis.Addr)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Server.APIKey = "topsecret"
	cfg.Database.Password = "hunter2"
	cfg.S3.SecretKey = "aws-secret"

	red := RedactedConfig(&cfg)
	if red.Server.APIKey != "***" || red.Database.Password != "***" || red.S3.SecretKey != "***" {
		t.Error("secrets not redacted")
	}
	if cfg.Server.APIKey != "topsecret" {
		t.Error("original config mutated")
	}
}
