package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Duration is a time.Duration that reads and writes "90s"-style strings in settings.json.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var secs float64
		if numErr := json.Unmarshal(data, &secs); numErr != nil {
			return fmt.Errorf("duration must be a string like \"30s\" or a number of seconds")
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds all procdoc configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	ListenAddr      string            `json:"listen_addr"`
	DBPath          string            `json:"db_path"`
	LogLevel        string            `json:"log_level"`
	JWTSecret       string            `json:"jwt_secret,omitempty"`
	TokenTTL        Duration          `json:"token_ttl"`
	CookieName      string            `json:"cookie_name"`
	CookieSecure    bool              `json:"cookie_secure"`
	CompilerURL     string            `json:"compiler_url,omitempty"`
	CompilerTimeout Duration          `json:"compiler_timeout"`
	CompilerRetries int               `json:"compiler_retries"`
	BreakerLimit    int               `json:"compiler_breaker_threshold"`
	ReviewInterval  Duration          `json:"review_interval"`
	Policies        map[string]string `json:"policies,omitempty"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:      ":4200",
		DBPath:          filepath.Join(procdocDir(), "procdoc.db"),
		LogLevel:        "info",
		TokenTTL:        Duration(24 * time.Hour),
		CookieName:      "procdoc_session",
		CompilerTimeout: Duration(60 * time.Second),
		CompilerRetries: 2,
		BreakerLimit:    5,
		ReviewInterval:  Duration(time.Minute),
	}
}

func procdocDir() string {
	if v := os.Getenv("PROCDOC_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".procdoc"
	}
	return filepath.Join(home, ".procdoc")
}

func settingsPath() string {
	return filepath.Join(procdocDir(), "settings.json")
}

func pidPath() string {
	return filepath.Join(procdocDir(), "procdoc.pid")
}

// loadConfig layers defaults, the settings file and PROCDOC_* env vars.
// A missing settings file is not an error; a malformed one is.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides cfg from PROCDOC_* variables.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PROCDOC_LISTEN_ADDR", &cfg.ListenAddr)
	str("PROCDOC_DB_PATH", &cfg.DBPath)
	str("PROCDOC_LOG_LEVEL", &cfg.LogLevel)
	str("PROCDOC_JWT_SECRET", &cfg.JWTSecret)
	str("PROCDOC_COOKIE_NAME", &cfg.CookieName)
	str("PROCDOC_COMPILER_URL", &cfg.CompilerURL)

	if v, ok := lookup("PROCDOC_COMPILER_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PROCDOC_COMPILER_RETRIES: %w", err)
		}
		cfg.CompilerRetries = n
	}
	if v, ok := lookup("PROCDOC_COOKIE_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PROCDOC_COOKIE_SECURE: %w", err)
		}
		cfg.CookieSecure = b
	}
	for key, dst := range map[string]*Duration{
		"PROCDOC_TOKEN_TTL":        &cfg.TokenTTL,
		"PROCDOC_COMPILER_TIMEOUT": &cfg.CompilerTimeout,
		"PROCDOC_REVIEW_INTERVAL":  &cfg.ReviewInterval,
	} {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = Duration(d)
	}
	return nil
}

// bindFlags registers the flags that can override configuration.
func bindFlags(fs *pflag.FlagSet) {
	fs.String("listen-addr", "", "HTTP listen address")
	fs.String("db-path", "", "database path or libsql URL")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("compiler-url", "", "LaTeX-to-PDF compile service URL")
	fs.Duration("review-interval", 0, "how often due reviews are checked")
	fs.Bool("cookie-secure", false, "mark the session cookie Secure")
}

// applyFlags copies explicitly set flags onto cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "listen-addr":
			cfg.ListenAddr = f.Value.String()
		case "db-path":
			cfg.DBPath = f.Value.String()
		case "log-level":
			cfg.LogLevel = f.Value.String()
		case "compiler-url":
			cfg.CompilerURL = f.Value.String()
		case "review-interval":
			var d time.Duration
			d, err = time.ParseDuration(f.Value.String())
			cfg.ReviewInterval = Duration(d)
		case "cookie-secure":
			cfg.CookieSecure, err = strconv.ParseBool(f.Value.String())
		}
	})
	return err
}

// validate checks values that would only fail later at startup.
func (c Config) validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	if c.ReviewInterval <= 0 {
		return fmt.Errorf("review_interval must be positive")
	}
	if c.CompilerTimeout <= 0 {
		return fmt.Errorf("compiler_timeout must be positive")
	}
	if c.CompilerRetries < 0 {
		return fmt.Errorf("compiler_retries must not be negative")
	}
	return nil
}

// dbURL turns a plain file path into the file: URL the libsql driver expects.
func (c Config) dbURL() string {
	if strings.HasPrefix(c.DBPath, "file:") || strings.Contains(c.DBPath, "://") {
		return c.DBPath
	}
	return "file:" + c.DBPath
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	LogLevelChanged bool
	HandlerChanged  bool     // api handler must be rebuilt (policies, cookie)
	RestartNeeded   []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
	}
	if !maps.Equal(old.Policies, new.Policies) ||
		old.CookieName != new.CookieName ||
		old.CookieSecure != new.CookieSecure {
		d.HandlerChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.DBPath != new.DBPath {
		d.RestartNeeded = append(d.RestartNeeded, "db_path")
	}
	if old.JWTSecret != new.JWTSecret {
		d.RestartNeeded = append(d.RestartNeeded, "jwt_secret")
	}
	if old.TokenTTL != new.TokenTTL {
		d.RestartNeeded = append(d.RestartNeeded, "token_ttl")
	}
	if old.CompilerURL != new.CompilerURL || old.CompilerTimeout != new.CompilerTimeout ||
		old.CompilerRetries != new.CompilerRetries || old.BreakerLimit != new.BreakerLimit {
		d.RestartNeeded = append(d.RestartNeeded, "compiler")
	}
	if old.ReviewInterval != new.ReviewInterval {
		d.RestartNeeded = append(d.RestartNeeded, "review_interval")
	}
	return d
}
