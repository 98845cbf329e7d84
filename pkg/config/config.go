// Package config provides configuration management for the Hashline server
// and client components.
//
// The package supports configuration through multiple sources with the
// following precedence:
//  1. Command-line flags (highest priority)
//  2. Environment variables
//  3. Default values (lowest priority)
//
// Server configuration covers the listen address, the worker-pool size,
// the accept backlog, socket timeouts, and logging. Client configuration
// covers the server address and socket timeouts.
//
// Example server usage:
//
//	cfg := config.LoadServerConfig()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//	srv := server.New(cfg, store.New())
//
// Environment variables are prefixed with "HASHLINE_" and use uppercase
// names. For example, the server port can be set with HASHLINE_PORT=8080.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Default server configuration constants.
const (
	DefaultServerPort       = 8080
	DefaultWorkers          = 4
	DefaultBacklog          = 64
	DefaultReadTimeoutSecs  = 300
	DefaultWriteTimeoutSecs = 10
	DefaultConnTimeoutSecs  = 5
)

// ServerConfig holds all configuration options for a Hashline server
// instance.
//
// Configuration sources (in order of precedence):
//  1. Command-line flags: -port, -host, -workers, etc.
//  2. Environment variables: HASHLINE_PORT, HASHLINE_HOST, etc.
//  3. Default values
type ServerConfig struct {
	Host         string // Host address to bind to (default: "0.0.0.0")
	LogLevel     string // Log level: debug, info, warn, error (default: "info")
	Port         int    // TCP port to listen on (default: 8080)
	Workers      int    // Fixed worker-pool size (default: 4)
	Backlog      int    // Maximum concurrent client connections (default: 64)
	ReadTimeout  int    // Idle read timeout in seconds (default: 300)
	WriteTimeout int    // Write timeout in seconds (default: 10)
}

// ClientConfig holds configuration for a Hashline client connection.
type ClientConfig struct {
	Addr         string // Server address in "host:port" format
	ConnTimeout  int    // Dial timeout in seconds (default: 5)
	ReadTimeout  int    // Read timeout in seconds (default: 300)
	WriteTimeout int    // Write timeout in seconds (default: 10)
}

// LoadServerConfig creates a ServerConfig by loading values from
// command-line flags and environment variables, with sensible defaults.
//
// Command-line flags:
//
//	-port: Server port (default: 8080)
//	-host: Server host (default: "0.0.0.0")
//	-workers: Worker-pool size (default: 4)
//	-backlog: Maximum concurrent client connections (default: 64)
//	-read-timeout: Idle read timeout in seconds (default: 300)
//	-write-timeout: Write timeout in seconds (default: 10)
//	-log-level: Log level (default: "info")
//
// Environment variables:
//
//	HASHLINE_PORT, HASHLINE_HOST, HASHLINE_WORKERS, HASHLINE_BACKLOG
//
// Returns:
//   - ServerConfig with values loaded from the various sources
func LoadServerConfig() *ServerConfig {
	return loadServerConfig(flag.CommandLine, os.Args[1:])
}

// loadServerConfig applies the environment first and registers the flags
// with the resulting values as defaults, so a flag given on the command
// line overrides its environment variable.
func loadServerConfig(fs *flag.FlagSet, args []string) *ServerConfig {
	cfg := DefaultServerConfig()
	cfg.ApplyEnv()

	fs.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Server host")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker-pool size")
	fs.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "Maximum concurrent client connections")
	fs.IntVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Idle read timeout in seconds")
	fs.IntVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Write timeout in seconds")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	_ = fs.Parse(args)

	return cfg
}

// DefaultServerConfig returns a ServerConfig populated with defaults only.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:         "0.0.0.0",
		Port:         DefaultServerPort,
		Workers:      DefaultWorkers,
		Backlog:      DefaultBacklog,
		ReadTimeout:  DefaultReadTimeoutSecs,
		WriteTimeout: DefaultWriteTimeoutSecs,
		LogLevel:     "info",
	}
}

// ApplyEnv overrides fields from HASHLINE_* environment variables.
// Unset or unparseable variables leave the current value untouched.
func (c *ServerConfig) ApplyEnv() {
	if port := os.Getenv("HASHLINE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}

	if host := os.Getenv("HASHLINE_HOST"); host != "" {
		c.Host = host
	}

	if workers := os.Getenv("HASHLINE_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			c.Workers = w
		}
	}

	if backlog := os.Getenv("HASHLINE_BACKLOG"); backlog != "" {
		if b, err := strconv.Atoi(backlog); err == nil {
			c.Backlog = b
		}
	}
}

// LoadClientConfig creates a ClientConfig from environment variables with
// sensible defaults.
//
// Environment variables:
//
//	HASHLINE_ADDR: Server address (default: "localhost:8080")
//	HASHLINE_CONN_TIMEOUT: Dial timeout in seconds
//
// Returns:
//   - ClientConfig with values loaded from the environment and defaults
func LoadClientConfig() *ClientConfig {
	cfg := &ClientConfig{
		Addr:         "localhost:8080",
		ConnTimeout:  DefaultConnTimeoutSecs,
		ReadTimeout:  DefaultReadTimeoutSecs,
		WriteTimeout: DefaultWriteTimeoutSecs,
	}

	if addr := os.Getenv("HASHLINE_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	if connTimeout := os.Getenv("HASHLINE_CONN_TIMEOUT"); connTimeout != "" {
		if ct, err := strconv.Atoi(connTimeout); err == nil {
			cfg.ConnTimeout = ct
		}
	}

	return cfg
}

// Address returns the full address string for the server to bind to.
//
// Example:
//
//	cfg := &ServerConfig{Host: "0.0.0.0", Port: 8080}
//	addr := cfg.Address() // Returns "0.0.0.0:8080"
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the ServerConfig contains valid values.
//
// Validation rules:
//   - Port must be between 1 and 65535
//   - Workers must be positive
//   - Backlog must be positive
//   - ReadTimeout and WriteTimeout must be positive
//   - LogLevel must be one of: debug, info, warn, error
//
// Returns:
//   - nil if the configuration is valid
//   - Error describing the first validation failure found
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive: %d", c.Workers)
	}

	if c.Backlog < 1 {
		return fmt.Errorf("backlog must be positive: %d", c.Backlog)
	}

	if c.ReadTimeout < 1 {
		return fmt.Errorf("read timeout must be positive: %d", c.ReadTimeout)
	}

	if c.WriteTimeout < 1 {
		return fmt.Errorf("write timeout must be positive: %d", c.WriteTimeout)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// Validate checks if the ClientConfig contains valid values.
//
// Returns:
//   - nil if the configuration is valid
//   - Error describing the first validation failure found
func (c *ClientConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("empty server address")
	}

	if c.ConnTimeout < 1 {
		return fmt.Errorf("connection timeout must be positive: %d", c.ConnTimeout)
	}

	if c.ReadTimeout < 1 {
		return fmt.Errorf("read timeout must be positive: %d", c.ReadTimeout)
	}

	if c.WriteTimeout < 1 {
		return fmt.Errorf("write timeout must be positive: %d", c.WriteTimeout)
	}

	return nil
}
