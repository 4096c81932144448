package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, ":4200", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, Duration(24*time.Hour), cfg.TokenTTL)
	assert.Equal(t, "procdoc_session", cfg.CookieName)
	assert.Equal(t, Duration(time.Minute), cfg.ReviewInterval)
	assert.Equal(t, 2, cfg.CompilerRetries)
	assert.Equal(t, 5, cfg.BreakerLimit)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig().ListenAddr, cfg.ListenAddr)
}

func TestLoadConfig_SettingsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"listen_addr": ":9000",
		"token_ttl": "2h",
		"compiler_timeout": 30,
		"policies": {"documents.delete": "principal.role == 'admin'"}
	}`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, Duration(2*time.Hour), cfg.TokenTTL)
	assert.Equal(t, Duration(30*time.Second), cfg.CompilerTimeout)
	assert.Equal(t, "principal.role == 'admin'", cfg.Policies["documents.delete"])
	// Untouched fields keep their defaults.
	assert.Equal(t, "procdoc_session", cfg.CookieName)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token_ttl": "soon"}`), 0o600))

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := defaultConfig()
	err := applyEnv(&cfg, envMap(map[string]string{
		"PROCDOC_LISTEN_ADDR":      ":7000",
		"PROCDOC_JWT_SECRET":       "s3cret",
		"PROCDOC_COOKIE_SECURE":    "true",
		"PROCDOC_REVIEW_INTERVAL":  "5m",
		"PROCDOC_COMPILER_RETRIES": "0",
		"PROCDOC_DB_PATH":          "",
	}))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, Duration(5*time.Minute), cfg.ReviewInterval)
	assert.Equal(t, 0, cfg.CompilerRetries)
	assert.Equal(t, defaultConfig().DBPath, cfg.DBPath, "empty env values are ignored")
}

func TestApplyEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad bool", map[string]string{"PROCDOC_COOKIE_SECURE": "maybe"}},
		{"bad duration", map[string]string{"PROCDOC_TOKEN_TTL": "forever"}},
		{"bad retries", map[string]string{"PROCDOC_COMPILER_RETRIES": "many"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			assert.Error(t, applyEnv(&cfg, envMap(tc.env)))
		})
	}
	cfg := defaultConfig()
	assert.NoError(t, applyEnv(&cfg, noEnv))
}

func TestApplyFlags_OnlyChangedFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--listen-addr", ":8080", "--review-interval", "30s", "--cookie-secure"}))

	cfg := defaultConfig()
	cfg.LogLevel = "debug"
	require.NoError(t, applyFlags(&cfg, fs))
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, Duration(30*time.Second), cfg.ReviewInterval)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "debug", cfg.LogLevel, "unset flags must not override")
}

func TestDurationJSON(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, Duration(90*time.Second), d)
	require.NoError(t, json.Unmarshal([]byte(`1.5`), &d))
	assert.Equal(t, Duration(1500*time.Millisecond), d)
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.DBPath = " "
	assert.Error(t, cfg.validate())

	cfg = defaultConfig()
	cfg.TokenTTL = 0
	assert.Error(t, cfg.validate())

	cfg = defaultConfig()
	cfg.ReviewInterval = -1
	assert.Error(t, cfg.validate())

	cfg = defaultConfig()
	cfg.CompilerRetries = -1
	assert.Error(t, cfg.validate())
}

func TestDBURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/var/lib/procdoc.db", "file:/var/lib/procdoc.db"},
		{"file:/tmp/x.db", "file:/tmp/x.db"},
		{"libsql://db.example.io", "libsql://db.example.io"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Config{DBPath: tc.in}.dbURL())
	}
}

func TestDiffConfigs(t *testing.T) {
	old := defaultConfig()

	d := diffConfigs(old, old)
	assert.False(t, d.LogLevelChanged)
	assert.False(t, d.HandlerChanged)
	assert.Empty(t, d.RestartNeeded)

	next := old
	next.LogLevel = "debug"
	next.Policies = map[string]string{"reports.run": "true"}
	next.ListenAddr = ":1"
	next.CompilerURL = "http://latex:8080"
	d = diffConfigs(old, next)
	assert.True(t, d.LogLevelChanged)
	assert.True(t, d.HandlerChanged)
	assert.Equal(t, []string{"listen_addr", "compiler"}, d.RestartNeeded)

	next = old
	next.CookieSecure = true
	assert.True(t, diffConfigs(old, next).HandlerChanged)
}
