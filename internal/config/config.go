package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"livepage/internal/capabilities"
)

const envPrefix = "LIVEPAGE_"

type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Server       ServerConfig       `yaml:"server"`
	Gateway      GatewayConfig      `yaml:"gateway"`
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
	Log          LogConfig          `yaml:"log"`
}

type DatabaseConfig struct {
	// Path defaults to the build's standard location when empty.
	Path     string `yaml:"path"`
	LogLevel string `yaml:"logLevel"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type GatewayConfig struct {
	DefaultModel     string        `yaml:"defaultModel"`
	MaxRetries       int           `yaml:"maxRetries"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"`
	InitialInterval  time.Duration `yaml:"initialInterval"`
	FireworksBaseURL string        `yaml:"fireworksBaseURL"`
}

type CapabilitiesConfig struct {
	Theme            map[string]string        `yaml:"theme"`
	Connectors       []capabilities.Connector `yaml:"connectors"`
	Agents           []capabilities.Agent     `yaml:"agents"`
	Instructions     []string                 `yaml:"instructions"`
	InstructionsFile string                   `yaml:"instructionsFile"`
	ScriptsDir       string                   `yaml:"scriptsDir"`
	ScriptsGlob      string                   `yaml:"scriptsGlob"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() Config {
	return Config{
		Database: DatabaseConfig{LogLevel: "warn"},
		Server:   ServerConfig{Addr: "127.0.0.1:8080", ShutdownTimeout: 10 * time.Second},
		Gateway: GatewayConfig{
			MaxRetries:      2,
			RequestTimeout:  90 * time.Second,
			InitialInterval: 500 * time.Millisecond,
		},
		Capabilities: CapabilitiesConfig{ScriptsGlob: "**/*.js"},
		Log:          LogConfig{Level: "info"},
	}
}

// Load layers configuration: defaults, then the YAML file at path (optional
// when empty), then a .env file next to it or in the project root, then
// LIVEPAGE_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	path = strings.TrimSpace(path)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := LoadEnv(path); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnv loads the first .env found next to the config file or in the
// project root. Variables already set in the environment win.
func LoadEnv(configPath string) error {
	var candidates []string
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	if root, err := FindProjectRoot(); err == nil {
		candidates = append(candidates, filepath.Join(root, ".env"))
	}
	for _, envPath := range candidates {
		err := godotenv.Load(envPath)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
	}
	return nil
}

func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	str("DB_PATH", &cfg.Database.Path)
	str("DB_LOG_LEVEL", &cfg.Database.LogLevel)
	str("ADDR", &cfg.Server.Addr)
	str("DEFAULT_MODEL", &cfg.Gateway.DefaultModel)
	str("FIREWORKS_BASE_URL", &cfg.Gateway.FireworksBaseURL)
	str("SCRIPTS_DIR", &cfg.Capabilities.ScriptsDir)
	str("SCRIPTS_GLOB", &cfg.Capabilities.ScriptsGlob)
	str("INSTRUCTIONS_FILE", &cfg.Capabilities.InstructionsFile)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FILE", &cfg.Log.File)

	if v, ok := lookup(envPrefix + "MAX_RETRIES"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sMAX_RETRIES: %w", envPrefix, err)
		}
		cfg.Gateway.MaxRetries = n
	}
	for name, dst := range map[string]*time.Duration{
		"REQUEST_TIMEOUT":  &cfg.Gateway.RequestTimeout,
		"INITIAL_INTERVAL": &cfg.Gateway.InitialInterval,
		"SHUTDOWN_TIMEOUT": &cfg.Server.ShutdownTimeout,
	} {
		if v, ok := lookup(envPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = d
		}
	}
	return nil
}

func (c Config) Validate() error {
	if c.Gateway.MaxRetries < 0 {
		return fmt.Errorf("gateway.maxRetries must not be negative")
	}
	if c.Gateway.RequestTimeout <= 0 {
		return fmt.Errorf("gateway.requestTimeout must be positive")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	for i, conn := range c.Capabilities.Connectors {
		if strings.TrimSpace(conn.Name) == "" {
			return fmt.Errorf("capabilities.connectors[%d]: name is required", i)
		}
	}
	for i, agent := range c.Capabilities.Agents {
		if strings.TrimSpace(agent.Name) == "" {
			return fmt.Errorf("capabilities.agents[%d]: name is required", i)
		}
	}
	return nil
}
