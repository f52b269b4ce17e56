package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile   = "file"
	BackendSheets = "sheets"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Workbook   WorkbookConfig   `yaml:"workbook"`
	Backup     BackupConfig     `yaml:"backup"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Redis      RedisConfig      `yaml:"redis"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// WorkbookConfig selects and tunes the persistence backend. Backend is
// either "file" (edit the serialized .xlsx directly) or "sheets"
// (delegate edits to a live Google Sheets spreadsheet).
type WorkbookConfig struct {
	Backend         string        `yaml:"backend"`
	Path            string        `yaml:"path"`
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	LockDir         string        `yaml:"lock_dir"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
	SizeDeltaRatio  float64       `yaml:"size_delta_ratio"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	RPS      float64       `yaml:"rps"`
	Burst    int           `yaml:"burst"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment variables referenced from the YAML
	// are expanded before parsing.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Workbook.Backend {
	case BackendFile:
		if c.Workbook.Path == "" {
			return errors.New("workbook path is required for the file backend")
		}
	case BackendSheets:
		if c.Workbook.SpreadsheetID == "" {
			return errors.New("workbook spreadsheet_id is required for the sheets backend")
		}
		if c.Workbook.CredentialsFile == "" {
			return errors.New("workbook credentials_file is required for the sheets backend")
		}
	default:
		return fmt.Errorf("unknown workbook backend: %q", c.Workbook.Backend)
	}

	if c.Workbook.SizeDeltaRatio <= 0 || c.Workbook.SizeDeltaRatio >= 1 {
		return fmt.Errorf("workbook size_delta_ratio must be in (0, 1), got %v", c.Workbook.SizeDeltaRatio)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Workbook.Backend == "" {
		c.Workbook.Backend = BackendFile
	}
	if c.Workbook.SizeDeltaRatio == 0 {
		c.Workbook.SizeDeltaRatio = 0.5
	}
	if c.Workbook.LockTimeout == 0 {
		c.Workbook.LockTimeout = 10 * time.Second
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 30
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
}
