// ABOUTME: Process configuration: YAML file with environment overrides.
// ABOUTME: Thresholds and the loop ceiling are exposed as first-class parameters.

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/seam-research/lacuna/pipeline"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration. Zero values fall back to
// defaults in Normalize, so a partial YAML file or bare environment works.
type Config struct {
	Addr    string `yaml:"addr"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`

	Thresholds       pipeline.Thresholds `yaml:"thresholds"`
	SupportThreshold int                 `yaml:"support_threshold"`
	EventBuffer      int                 `yaml:"event_buffer"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:             "127.0.0.1:8386",
		Thresholds:       pipeline.DefaultThresholds(),
		SupportThreshold: 3,
	}
}

// Load reads configuration in layers: defaults, then the YAML file at path
// (skipped when path is empty or missing), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine; env and defaults carry it.
		case err != nil:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays LACUNA_* environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("LACUNA_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("LACUNA_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("LACUNA_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("LACUNA_CRITICAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Thresholds.Critical = f
		}
	}
	if v := os.Getenv("LACUNA_ADEQUATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Thresholds.Adequate = f
		}
	}
	if v := os.Getenv("LACUNA_MAX_LOOPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Thresholds.MaxLoops = n
		}
	}
	if v := os.Getenv("LACUNA_SUPPORT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SupportThreshold = n
		}
	}
}

// Normalize fills gaps left by a partial file or environment.
func (c *Config) Normalize() {
	def := Default()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.Thresholds.Critical == 0 && c.Thresholds.Adequate == 0 && c.Thresholds.MaxLoops == 0 {
		c.Thresholds = def.Thresholds
	}
	if c.SupportThreshold <= 0 {
		c.SupportThreshold = def.SupportThreshold
	}
}

// Validate rejects configurations the routing rule cannot work with.
func (c *Config) Validate() error {
	th := c.Thresholds
	if th.Critical < 0 || th.Critical > 1 {
		return fmt.Errorf("thresholds.critical %.2f outside [0,1]", th.Critical)
	}
	if th.Adequate < 0 || th.Adequate > 1 {
		return fmt.Errorf("thresholds.adequate %.2f outside [0,1]", th.Adequate)
	}
	if th.Critical > th.Adequate {
		return fmt.Errorf("thresholds.critical %.2f exceeds thresholds.adequate %.2f", th.Critical, th.Adequate)
	}
	if th.MaxLoops < 0 {
		return fmt.Errorf("thresholds.max_loops must not be negative")
	}
	return nil
}
