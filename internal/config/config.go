package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultMaxSize  = 10 * 1024 * 1024
	defaultMaxFiles = 5
)

var (
	// ErrNotFound indicates the config file does not exist at the given path.
	ErrNotFound = errors.New("config file not found")
	// ErrMalformed indicates the config file could not be parsed or a required key is missing or invalid.
	ErrMalformed = errors.New("config file malformed")
)

// Level is the operational log level configured under logging.level.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel converts a config string into a Level, case-insensitively.
func ParseLevel(raw string) (Level, error) {
	switch level := Level(strings.ToUpper(strings.TrimSpace(raw))); level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return level, nil
	default:
		return "", fmt.Errorf("%w: unknown logging.level %q", ErrMalformed, raw)
	}
}

// Config is the immutable runtime configuration, loaded once at startup and
// shared read-only across all request-handling goroutines.
// Precedence: CLI flags > YAML config > Environment variables
type Config struct {
	Port           int
	Version        string
	WelcomeMessage string

	LogFile   string
	LogFormat string
	LogLevel  Level
	Rotate    bool
	MaxSize   int64
	MaxFiles  int

	RateLimitRPS   float64
	RateLimitBurst int

	ShutdownGracePeriod time.Duration
	ReadHeaderTimeout   time.Duration
	IdleTimeout         time.Duration
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Server  yamlServer  `yaml:"server"`
	Logging yamlLogging `yaml:"logging"`
}

type yamlServer struct {
	Port                int           `yaml:"port"`
	Version             string        `yaml:"version"`
	WelcomeMessage      string        `yaml:"welcome_message"`
	RateLimit           yamlRateLimit `yaml:"rate_limit"`
	ShutdownGracePeriod string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout   string        `yaml:"read_header_timeout"`
	IdleTimeout         string        `yaml:"idle_timeout"`
}

type yamlRateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type yamlLogging struct {
	File     string `yaml:"file"`
	Format   string `yaml:"format"`
	Level    string `yaml:"level"`
	Rotate   bool   `yaml:"rotate"`
	MaxSize  string `yaml:"max_size"`
	MaxFiles *int   `yaml:"max_files"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile string
	Port       *int
}

// Load reads the YAML config file named by overrides.ConfigFile, applies
// environment and CLI overrides, and validates the result. A missing file
// yields ErrNotFound and a missing or invalid key yields ErrMalformed;
// both are startup-fatal and must prevent the listener from binding.
func Load(overrides *CLIOverrides) (Config, error) {
	if overrides == nil || overrides.ConfigFile == "" {
		return Config{}, fmt.Errorf("%w: no config file path given", ErrNotFound)
	}

	data, err := os.ReadFile(overrides.ConfigFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrNotFound, overrides.ConfigFile)
		}
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cfg, err := fromYAML(&yamlCfg)
	if err != nil {
		return Config{}, err
	}

	applyEnvConfig(&cfg)
	applyCLIOverrides(&cfg, overrides)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// fromYAML maps the file structure onto a Config, applying defaults for the
// optional keys and rejecting malformed values of the typed ones.
func fromYAML(yamlCfg *yamlConfig) (Config, error) {
	cfg := Config{
		Port:           yamlCfg.Server.Port,
		Version:        yamlCfg.Server.Version,
		WelcomeMessage: yamlCfg.Server.WelcomeMessage,
		LogFile:        yamlCfg.Logging.File,
		LogFormat:      yamlCfg.Logging.Format,
		Rotate:         yamlCfg.Logging.Rotate,
		MaxSize:        defaultMaxSize,
		MaxFiles:       defaultMaxFiles,
		RateLimitRPS:   yamlCfg.Server.RateLimit.RPS,
		RateLimitBurst: yamlCfg.Server.RateLimit.Burst,

		ShutdownGracePeriod: 10 * time.Second,
		ReadHeaderTimeout:   5 * time.Second,
		IdleTimeout:         60 * time.Second,
	}

	if yamlCfg.Logging.Level != "" {
		level, err := ParseLevel(yamlCfg.Logging.Level)
		if err != nil {
			return Config{}, err
		}
		cfg.LogLevel = level
	}

	if yamlCfg.Logging.MaxSize != "" {
		size, err := ParseSize(yamlCfg.Logging.MaxSize)
		if err != nil {
			return Config{}, err
		}
		cfg.MaxSize = size
	}

	if yamlCfg.Logging.MaxFiles != nil {
		cfg.MaxFiles = *yamlCfg.Logging.MaxFiles
	}

	if yamlCfg.Server.ShutdownGracePeriod != "" {
		if d, err := time.ParseDuration(yamlCfg.Server.ShutdownGracePeriod); err == nil {
			cfg.ShutdownGracePeriod = d
		}
	}

	if yamlCfg.Server.ReadHeaderTimeout != "" {
		if d, err := time.ParseDuration(yamlCfg.Server.ReadHeaderTimeout); err == nil {
			cfg.ReadHeaderTimeout = d
		}
	}

	if yamlCfg.Server.IdleTimeout != "" {
		if d, err := time.ParseDuration(yamlCfg.Server.IdleTimeout); err == nil {
			cfg.IdleTimeout = d
		}
	}

	return cfg, nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if value, err := strconv.Atoi(port); err == nil && value > 0 {
			cfg.Port = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port > 0 {
		cfg.Port = *overrides.Port
	}
}

// validateConfig checks presence and ranges of the required keys.
func validateConfig(cfg Config) error {
	if cfg.Port == 0 {
		return fmt.Errorf("%w: server.port is required", ErrMalformed)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range 1-65535", ErrMalformed, cfg.Port)
	}
	if cfg.Version == "" {
		return fmt.Errorf("%w: server.version is required", ErrMalformed)
	}
	if cfg.WelcomeMessage == "" {
		return fmt.Errorf("%w: server.welcome_message is required", ErrMalformed)
	}
	if cfg.LogFile == "" {
		return fmt.Errorf("%w: logging.file is required", ErrMalformed)
	}
	if cfg.LogFormat == "" {
		return fmt.Errorf("%w: logging.format is required", ErrMalformed)
	}
	if cfg.LogLevel == "" {
		return fmt.Errorf("%w: logging.level is required", ErrMalformed)
	}
	if cfg.MaxSize <= 0 {
		return fmt.Errorf("%w: logging.max_size must be positive", ErrMalformed)
	}
	if cfg.MaxFiles < 0 {
		return fmt.Errorf("%w: logging.max_files must be >= 0", ErrMalformed)
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("%w: server.rate_limit.rps must be >= 0", ErrMalformed)
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("%w: server.rate_limit.burst must be >= 0", ErrMalformed)
	}
	return nil
}

// ParseSize parses a human-readable byte count. A trailing K, M, or G
// (case-insensitive) multiplies the integer prefix by 1024, 1024^2, or
// 1024^3; a bare integer is a raw byte count.
func ParseSize(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty size", ErrMalformed)
	}

	multiplier := int64(1)
	switch strings.ToUpper(s[len(s)-1:]) {
	case "K":
		multiplier = 1024
		s = s[:len(s)-1]
	case "M":
		multiplier = 1024 * 1024
		s = s[:len(s)-1]
	case "G":
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid size %q", ErrMalformed, raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: size %q must be >= 0", ErrMalformed, raw)
	}

	return value * multiplier, nil
}
