// Package config resolves Zettel's runtime configuration.
//
// Values are layered from lowest to highest priority: built-in defaults,
// an optional config.yaml in the data directory, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the optional config file looked up in the data directory.
const FileName = "config.yaml"

// Environment variable names.
const (
	EnvDataDir         = "ZETTEL_DATA_DIR"
	EnvMirrorDir       = "ZETTEL_MIRROR_DIR"
	EnvVocabularyPath  = "ZETTEL_VOCABULARY"
	EnvLogLevel        = "ZETTEL_LOG_LEVEL"
	EnvMetricsAddr     = "ZETTEL_METRICS_ADDR"
	EnvMaxFeatures     = "ZETTEL_MAX_FEATURES"
	EnvAnthropicModel  = "ZETTEL_ANTHROPIC_MODEL"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
)

// Config is the fully resolved configuration.
type Config struct {
	DataDir        string    `yaml:"data_dir" validate:"required"`
	MirrorDir      string    `yaml:"mirror_dir"`
	VocabularyPath string    `yaml:"vocabulary_path"`
	LogLevel       string    `yaml:"log_level" validate:"oneof=debug info warn error"`
	MetricsAddr    string    `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	MaxFeatures    int       `yaml:"max_features" validate:"gte=1,lte=100000"`
	Anthropic      Anthropic `yaml:"anthropic"`
}

// Anthropic configures the optional LLM narrative generator. It is enabled
// only when APIKey is set.
type Anthropic struct {
	APIKey  string        `yaml:"-"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Default returns the built-in configuration rooted at ~/.zettel.
func Default() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".zettel")
	return Config{
		DataDir:     dataDir,
		MirrorDir:   filepath.Join(dataDir, "vault"),
		LogLevel:    "info",
		MaxFeatures: 1000,
		Anthropic: Anthropic{
			Timeout: 30 * time.Second,
		},
	}
}

// Load resolves the configuration from defaults, file and environment.
func Load() (Config, error) {
	cfg := Default()

	// The data dir decides where config.yaml is, so resolve it first.
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
		cfg.MirrorDir = filepath.Join(v, "vault")
	}

	if err := cfg.loadFile(filepath.Join(cfg.DataDir, FileName)); err != nil {
		return cfg, err
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvMirrorDir); v != "" {
		if v == "off" {
			v = ""
		}
		c.MirrorDir = v
	}
	if v := os.Getenv(EnvVocabularyPath); v != "" {
		c.VocabularyPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv(EnvMaxFeatures); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvMaxFeatures, err)
		}
		c.MaxFeatures = n
	}
	if v := os.Getenv(EnvAnthropicModel); v != "" {
		c.Anthropic.Model = v
	}
	if v := os.Getenv(EnvAnthropicAPIKey); v != "" {
		c.Anthropic.APIKey = v
	}
	return nil
}

var validate = validator.New()

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: invalid %s (%s=%s): got %v", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
