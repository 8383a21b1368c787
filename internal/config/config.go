// Package config loads the optimizer's YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	DataDir string        `yaml:"data_dir"`
	Run     RunConfig     `yaml:"run"`
	API     APIConfig     `yaml:"api"`
	Metrics MetricsConfig `yaml:"metrics"`
	Journal JournalConfig `yaml:"journal"`
}

// RunConfig sets the shape of the simulation run.
type RunConfig struct {
	LastDay       int `yaml:"last_day"`
	Horizon       int `yaml:"horizon_days"`
	EndgameWindow int `yaml:"endgame_window_days"`
}

// APIConfig configures the round-server client.
type APIConfig struct {
	BaseURL    string   `yaml:"base_url"`
	APIKey     string   `yaml:"api_key"`
	MaxRetries int      `yaml:"max_retries"`
	Timeout    Duration `yaml:"timeout"`
}

// Duration wraps time.Duration so YAML documents can use forms like
// "30s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// JournalConfig configures the on-disk run journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DataDir: "data",
		Run: RunConfig{
			LastDay:       42,
			Horizon:       7,
			EndgameWindow: 5,
		},
		API: APIConfig{
			BaseURL:    "http://localhost:8080",
			MaxRetries: 3,
			Timeout:    Duration(30 * time.Second),
		},
		Metrics: MetricsConfig{
			Addr: ":9091",
		},
		Journal: JournalConfig{
			Path: "fuelchain-run.db",
		},
	}
}

// Load reads a YAML config file on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// The API key may come from the environment instead of the file.
	if cfg.API.APIKey == "" {
		cfg.API.APIKey = os.Getenv("FUEL_API_KEY")
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Run.LastDay < 0 {
		return fmt.Errorf("run.last_day must not be negative, got %d", c.Run.LastDay)
	}
	if c.Run.Horizon <= 0 {
		return fmt.Errorf("run.horizon_days must be positive, got %d", c.Run.Horizon)
	}
	if c.Run.EndgameWindow < 0 {
		return fmt.Errorf("run.endgame_window_days must not be negative, got %d", c.Run.EndgameWindow)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	return nil
}
