package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models tasklens.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Cache struct {
		MaxEntries      int      `yaml:"max_entries"`
		DashboardTTL    Duration `yaml:"dashboard_ttl"`
		TrendTTL        Duration `yaml:"trend_ttl"`
		UserWorkloadTTL Duration `yaml:"user_workload_ttl"`
	} `yaml:"cache"`
	Trend struct {
		DefaultDays int `yaml:"default_days"`
		MaxDays     int `yaml:"max_days"`
	} `yaml:"trend"`
	Recommendations Thresholds `yaml:"recommendations"`
}

// Duration wraps time.Duration so yaml values like "5m" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Thresholds are the tunable rule boundaries for the recommendation
// engine. They were magic constants once; keep them here.
type Thresholds struct {
	OverloadedTasks    int `yaml:"overloaded_tasks"`
	UnderutilizedTasks int `yaml:"underutilized_tasks"`
	LowScore           int `yaml:"low_score"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("config.cache.max_entries must not be negative")
	}
	if c.Cache.DashboardTTL < 0 || c.Cache.TrendTTL < 0 || c.Cache.UserWorkloadTTL < 0 {
		return fmt.Errorf("config.cache ttls must not be negative")
	}
	if c.Trend.DefaultDays < 1 {
		return fmt.Errorf("config.trend.default_days must be at least 1")
	}
	if c.Trend.MaxDays < c.Trend.DefaultDays {
		return fmt.Errorf("config.trend.max_days must be >= default_days")
	}
	if c.Recommendations.OverloadedTasks <= c.Recommendations.UnderutilizedTasks {
		return fmt.Errorf("config.recommendations.overloaded_tasks must exceed underutilized_tasks")
	}
	if c.Recommendations.LowScore < 0 || c.Recommendations.LowScore > 100 {
		return fmt.Errorf("config.recommendations.low_score must be within 0-100")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "tasklens.yml")
}

// Load reads and validates config from the workspace, falling back to
// defaults when no file exists.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Omitted
// sections keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: :8080
  base_path: /v1

auth:
  jwt_secret: ""

cache:
  max_entries: 1024
  dashboard_ttl: 5m
  trend_ttl: 5m
  user_workload_ttl: 3m

trend:
  default_days: 30
  max_days: 365

recommendations:
  overloaded_tasks: 10
  underutilized_tasks: 2
  low_score: 70
`
