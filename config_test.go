package succession

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/succession/internal/logger"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Empty(t, cfg.Endpoint)
	require.Equal(t, 1*time.Second, cfg.Timeout)
	require.Equal(t, "/election", cfg.RootPath)
	require.Equal(t, "_", cfg.NodePrefix)
	require.Equal(t, 10*time.Second, cfg.OperationTimeout)
	require.False(t, cfg.CreateRoot)
	require.Equal(t, "stderr", cfg.Log.Output)
	require.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestSetDefaults(t *testing.T) {
	t.Run("applies defaults to empty config", func(t *testing.T) {
		cfg := Config{}
		SetDefaults(&cfg)

		require.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("preserves custom values", func(t *testing.T) {
		cfg := Config{
			Endpoint:         "zk1:2181",
			Timeout:          3 * time.Second,
			RootPath:         "/svc/leader",
			NodePrefix:       "n_",
			OperationTimeout: 30 * time.Second,
			Log:              LogConfig{Output: "stdout", Level: "debug"},
		}
		SetDefaults(&cfg)

		require.Equal(t, "zk1:2181", cfg.Endpoint)
		require.Equal(t, 3*time.Second, cfg.Timeout)
		require.Equal(t, "/svc/leader", cfg.RootPath)
		require.Equal(t, "n_", cfg.NodePrefix)
		require.Equal(t, 30*time.Second, cfg.OperationTimeout)
		require.Equal(t, "stdout", cfg.Log.Output)
		require.Equal(t, "debug", cfg.Log.Level)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty root", func(c *Config) { c.RootPath = "" }},
		{"relative root", func(c *Config) { c.RootPath = "election" }},
		{"store root", func(c *Config) { c.RootPath = "/" }},
		{"trailing slash", func(c *Config) { c.RootPath = "/election/" }},
		{"empty element", func(c *Config) { c.RootPath = "/a//b" }},
		{"prefix with slash", func(c *Config) { c.NodePrefix = "a/b" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"negative operation timeout", func(c *Config) { c.OperationTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	t.Run("nested root is valid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RootPath = "/services/scheduler/leader"
		require.NoError(t, cfg.Validate())
	})
}

func TestConfigValidateWithWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	cfg.OperationTimeout = 50 * time.Millisecond

	require.NotPanics(t, func() {
		cfg.ValidateWithWarnings(logger.NewTest(t))
	})
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()
	require.True(t, cfg.CreateRoot)
	require.Equal(t, "discard", cfg.Log.Output)
	require.NoError(t, cfg.Validate())
}

func TestParseConfig(t *testing.T) {
	t.Run("full document", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`
endpoint: zk1:2181,zk2:2181
timeout: 2s
rootPath: /services/scheduler/leader
nodePrefix: n_
operationTimeout: 5s
createRoot: true
log:
  output: discard
  level: debug
`))
		require.NoError(t, err)
		require.Equal(t, "zk1:2181,zk2:2181", cfg.Endpoint)
		require.Equal(t, 2*time.Second, cfg.Timeout)
		require.Equal(t, "/services/scheduler/leader", cfg.RootPath)
		require.Equal(t, "n_", cfg.NodePrefix)
		require.Equal(t, 5*time.Second, cfg.OperationTimeout)
		require.True(t, cfg.CreateRoot)
		require.Equal(t, LogConfig{Output: "discard", Level: "debug"}, cfg.Log)
	})

	t.Run("empty document yields defaults", func(t *testing.T) {
		cfg, err := ParseConfig(nil)
		require.NoError(t, err)
		require.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := ParseConfig([]byte("rootpath: /typo\n"))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		_, err := ParseConfig([]byte("rootPath: election\n"))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("round trip through yaml", func(t *testing.T) {
		in := TestConfig()
		in.Endpoint = "127.0.0.1:2379"

		data, err := yaml.Marshal(in)
		require.NoError(t, err)

		out, err := ParseConfig(data)
		require.NoError(t, err)
		require.Equal(t, in, out)
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "election.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rootPath: /locks/db\ntimeout: 750ms\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/locks/db", cfg.RootPath)
	require.Equal(t, 750*time.Millisecond, cfg.Timeout)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
