package config

import (
	"flag"
	"testing"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	if cfg.Port != DefaultServerPort {
		t.Errorf("Expected port %d, got %d", DefaultServerPort, cfg.Port)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Expected host 0.0.0.0, got %s", cfg.Host)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Expected %d workers, got %d", DefaultWorkers, cfg.Workers)
	}
	if cfg.Backlog != DefaultBacklog {
		t.Errorf("Expected backlog %d, got %d", DefaultBacklog, cfg.Backlog)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestServerConfigApplyEnv(t *testing.T) {
	t.Setenv("HASHLINE_PORT", "9090")
	t.Setenv("HASHLINE_HOST", "127.0.0.1")
	t.Setenv("HASHLINE_WORKERS", "8")
	t.Setenv("HASHLINE_BACKLOG", "128")

	cfg := DefaultServerConfig()
	cfg.ApplyEnv()

	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Host)
	}
	if cfg.Workers != 8 {
		t.Errorf("Expected 8 workers, got %d", cfg.Workers)
	}
	if cfg.Backlog != 128 {
		t.Errorf("Expected backlog 128, got %d", cfg.Backlog)
	}
}

func TestServerConfigApplyEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("HASHLINE_PORT", "not-a-number")

	cfg := DefaultServerConfig()
	cfg.ApplyEnv()

	if cfg.Port != DefaultServerPort {
		t.Errorf("Unparseable port should be ignored, got %d", cfg.Port)
	}
}

func TestLoadServerConfigPrecedence(t *testing.T) {
	t.Setenv("HASHLINE_PORT", "9091")
	t.Setenv("HASHLINE_HOST", "10.0.0.1")

	fs := flag.NewFlagSet("precedence", flag.ContinueOnError)
	cfg := loadServerConfig(fs, []string{"-port", "7070"})

	if cfg.Port != 7070 {
		t.Errorf("Flag should override environment, got %d", cfg.Port)
	}
	if cfg.Host != "10.0.0.1" {
		t.Errorf("Environment should override default, got %s", cfg.Host)
	}
	if cfg.Workers != DefaultWorkers {
		t.Errorf("Untouched field should keep its default, got %d", cfg.Workers)
	}
}

func TestServerConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"port zero", func(c *ServerConfig) { c.Port = 0 }},
		{"port too high", func(c *ServerConfig) { c.Port = 70000 }},
		{"no workers", func(c *ServerConfig) { c.Workers = 0 }},
		{"no backlog", func(c *ServerConfig) { c.Backlog = 0 }},
		{"bad read timeout", func(c *ServerConfig) { c.ReadTimeout = 0 }},
		{"bad write timeout", func(c *ServerConfig) { c.WriteTimeout = 0 }},
		{"bad log level", func(c *ServerConfig) { c.LogLevel = "loud" }},
	}

	for _, tc := range cases {
		cfg := DefaultServerConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestServerConfigAddress(t *testing.T) {
	cfg := &ServerConfig{Host: "0.0.0.0", Port: 8080}
	if addr := cfg.Address(); addr != "0.0.0.0:8080" {
		t.Errorf("Expected 0.0.0.0:8080, got %s", addr)
	}
}

func TestLoadClientConfig(t *testing.T) {
	t.Setenv("HASHLINE_ADDR", "cache.internal:9090")
	t.Setenv("HASHLINE_CONN_TIMEOUT", "30")

	cfg := LoadClientConfig()

	if cfg.Addr != "cache.internal:9090" {
		t.Errorf("Expected cache.internal:9090, got %s", cfg.Addr)
	}
	if cfg.ConnTimeout != 30 {
		t.Errorf("Expected conn timeout 30, got %d", cfg.ConnTimeout)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Config should be valid: %v", err)
	}
}

func TestClientConfigValidate(t *testing.T) {
	cfg := &ClientConfig{Addr: "", ConnTimeout: 5, ReadTimeout: 300, WriteTimeout: 10}
	if err := cfg.Validate(); err == nil {
		t.Error("Empty address should fail validation")
	}

	cfg.Addr = "localhost:8080"
	cfg.ConnTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Zero conn timeout should fail validation")
	}
}
