package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `server:
  port: 8080
  version: "1.2.0"
  welcome_message: "Welcome to Simple Server"
logging:
  file: ./data/access.log
  format: "{timestamp} {ip} {method} {path} {status}"
  level: INFO
  rotate: true
  max_size: "10M"
  max_files: 5
`

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadValidFile(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := Load(&CLIOverrides{ConfigFile: writeConfigFile(t, validYAML)})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.Version != "1.2.0" {
		t.Fatalf("unexpected version: %s", cfg.Version)
	}
	if cfg.WelcomeMessage != "Welcome to Simple Server" {
		t.Fatalf("unexpected welcome message: %s", cfg.WelcomeMessage)
	}
	if cfg.LogFile != "./data/access.log" {
		t.Fatalf("unexpected log file: %s", cfg.LogFile)
	}
	if cfg.LogFormat != "{timestamp} {ip} {method} {path} {status}" {
		t.Fatalf("unexpected log format: %s", cfg.LogFormat)
	}
	if cfg.LogLevel != LevelInfo {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
	if !cfg.Rotate {
		t.Fatalf("expected rotation enabled")
	}
	if cfg.MaxSize != 10*1024*1024 {
		t.Fatalf("unexpected max size: %d", cfg.MaxSize)
	}
	if cfg.MaxFiles != 5 {
		t.Fatalf("unexpected max files: %d", cfg.MaxFiles)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := Load(&CLIOverrides{ConfigFile: path})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadMissingRequiredKeys(t *testing.T) {
	cases := map[string]string{
		"server.port": `server:
  version: "1.0"
  welcome_message: "hi"
logging:
  file: a.log
  format: "{status}"
  level: INFO
`,
		"server.version": `server:
  port: 8080
  welcome_message: "hi"
logging:
  file: a.log
  format: "{status}"
  level: INFO
`,
		"server.welcome_message": `server:
  port: 8080
  version: "1.0"
logging:
  file: a.log
  format: "{status}"
  level: INFO
`,
		"logging.file": `server:
  port: 8080
  version: "1.0"
  welcome_message: "hi"
logging:
  format: "{status}"
  level: INFO
`,
		"logging.format": `server:
  port: 8080
  version: "1.0"
  welcome_message: "hi"
logging:
  file: a.log
  level: INFO
`,
		"logging.level": `server:
  port: 8080
  version: "1.0"
  welcome_message: "hi"
logging:
  file: a.log
  format: "{status}"
`,
	}

	for key, contents := range cases {
		t.Run(key, func(t *testing.T) {
			_, err := Load(&CLIOverrides{ConfigFile: writeConfigFile(t, contents)})
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed for missing %s, got %v", key, err)
			}
		})
	}
}

func TestLoadWrongTypes(t *testing.T) {
	contents := `server:
  port: "not a number"
  version: "1.0"
  welcome_message: "hi"
logging:
  file: a.log
  format: "{status}"
  level: INFO
`
	_, err := Load(&CLIOverrides{ConfigFile: writeConfigFile(t, contents)})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for mistyped port, got %v", err)
	}
}

func TestLoadUnknownLevel(t *testing.T) {
	contents := `server:
  port: 8080
  version: "1.0"
  welcome_message: "hi"
logging:
  file: a.log
  format: "{status}"
  level: LOUD
`
	_, err := Load(&CLIOverrides{ConfigFile: writeConfigFile(t, contents)})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for unknown level, got %v", err)
	}
}

func TestLoadPortOutOfRange(t *testing.T) {
	contents := `server:
  port: 70000
  version: "1.0"
  welcome_message: "hi"
logging:
  file: a.log
  format: "{status}"
  level: INFO
`
	_, err := Load(&CLIOverrides{ConfigFile: writeConfigFile(t, contents)})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for out-of-range port, got %v", err)
	}
}

func TestLoadOverridePrecedence(t *testing.T) {
	t.Setenv("PORT", "9000")

	cfg, err := Load(&CLIOverrides{ConfigFile: writeConfigFile(t, validYAML)})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("expected env override 9000, got %d", cfg.Port)
	}

	flagPort := 9100
	cfg, err = Load(&CLIOverrides{ConfigFile: writeConfigFile(t, validYAML), Port: &flagPort})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != 9100 {
		t.Fatalf("expected CLI override 9100, got %d", cfg.Port)
	}
}

func TestParseSize(t *testing.T) {
	valid := []struct {
		raw  string
		want int64
	}{
		{"10M", 10485760},
		{"5K", 5120},
		{"2G", 2147483648},
		{"1024", 1024},
		{"7m", 7 * 1024 * 1024},
		{"3g", 3 * 1024 * 1024 * 1024},
		{"0", 0},
	}
	for _, tc := range valid {
		got, err := ParseSize(tc.raw)
		if err != nil {
			t.Fatalf("ParseSize(%q) returned error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseSize(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}

	for _, raw := range []string{"abcK", "", "K", "1.5M", "-1K"} {
		if _, err := ParseSize(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("ParseSize(%q) expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for raw, want := range map[string]Level{
		"DEBUG": LevelDebug,
		"info":  LevelInfo,
		" Warn": LevelWarn,
		"error": LevelError,
	} {
		got, err := ParseLevel(raw)
		if err != nil {
			t.Fatalf("ParseLevel(%q) returned error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", raw, got, want)
		}
	}

	if _, err := ParseLevel("verbose"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for unknown level, got %v", err)
	}
}
