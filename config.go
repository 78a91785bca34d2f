package succession

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LogConfig selects where and how verbosely the default logger writes.
//
// It is only consulted when no logger is supplied with WithLogger.
type LogConfig struct {
	// Output is "stderr" (default), "stdout", "discard" or a file path.
	Output string `yaml:"output"`

	// Level is "debug", "info" (default), "warn" or "error".
	Level string `yaml:"level"`
}

// Config is the configuration for a Candidate.
//
// All duration fields accept standard Go duration strings like "1s", "500ms".
type Config struct {
	// Endpoint is the coordination store address handed to the store dialer,
	// e.g. "zk1:2181,zk2:2181" or "nats://127.0.0.1:4222".
	// Required by Elect; ignored by NewCandidate, which receives a connected store.
	Endpoint string `yaml:"endpoint"`

	// Timeout is the store session timeout. A crashed candidate's node is
	// removed by the store at most this long after the crash.
	//
	// Default: 1 second
	Timeout time.Duration `yaml:"timeout"`

	// RootPath is the election namespace. Every candidate of one election
	// registers a child under this path.
	//
	// Must start with "/", must not end with "/" and must not be "/".
	// Default: "/election"
	RootPath string `yaml:"rootPath"`

	// NodePrefix is the name prefix of candidate nodes; the store appends the
	// sequence suffix.
	//
	// Default: "_"
	NodePrefix string `yaml:"nodePrefix"`

	// OperationTimeout bounds each reelection cycle triggered by a watch.
	// Vote and Close are bounded by the caller's context instead.
	//
	// Default: 10 seconds
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// CreateRoot creates RootPath (and its ancestors) as persistent nodes on
	// Vote when the store supports it.
	CreateRoot bool `yaml:"createRoot"`

	// Log configures the default logger.
	Log LogConfig `yaml:"log"`

	// LogSink, when set, receives the default logger's output and takes
	// precedence over Log.Output.
	LogSink io.Writer `yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:          1 * time.Second,
		RootPath:         "/election",
		NodePrefix:       "_",
		OperationTimeout: 10 * time.Second,
		Log: LogConfig{
			Output: "stderr",
			Level:  "info",
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RootPath == "" {
		cfg.RootPath = defaults.RootPath
	}
	if cfg.NodePrefix == "" {
		cfg.NodePrefix = defaults.NodePrefix
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = defaults.Log.Output
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - RootPath starts with "/", is not "/" and has no trailing or empty elements
//   - NodePrefix contains no "/"
//   - Timeout > 0 and OperationTimeout > 0
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if err := validateRootPath(cfg.RootPath); err != nil {
		return err
	}

	if strings.Contains(cfg.NodePrefix, "/") {
		return fmt.Errorf("%w: NodePrefix %q must not contain '/'", ErrInvalidConfig, cfg.NodePrefix)
	}

	if cfg.Timeout <= 0 {
		return fmt.Errorf("%w: Timeout must be > 0, got %v", ErrInvalidConfig, cfg.Timeout)
	}

	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("%w: OperationTimeout must be > 0, got %v", ErrInvalidConfig, cfg.OperationTimeout)
	}

	return nil
}

func validateRootPath(root string) error {
	switch {
	case root == "":
		return fmt.Errorf("%w: RootPath is required", ErrInvalidConfig)
	case root[0] != '/':
		return fmt.Errorf("%w: RootPath %q must start with '/'", ErrInvalidConfig, root)
	case root == "/":
		return fmt.Errorf("%w: RootPath must not be the store root", ErrInvalidConfig)
	case strings.HasSuffix(root, "/"):
		return fmt.Errorf("%w: RootPath %q must not end with '/'", ErrInvalidConfig, root)
	case strings.Contains(root, "//"):
		return fmt.Errorf("%w: RootPath %q contains an empty element", ErrInvalidConfig, root)
	}

	return nil
}

// ValidateWithWarnings logs warnings for valid but non-recommended values.
//
// This is called after Validate() in NewCandidate() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Timeout < 500*time.Millisecond {
		logger.Warn(
			"session timeout is very short, transient network hiccups may expire the session",
			"timeout", cfg.Timeout,
			"recommended", "1s or higher",
		)
	}

	if cfg.OperationTimeout < cfg.Timeout {
		logger.Warn(
			"OperationTimeout is below the session timeout, reelection may give up before the store recovers",
			"operationTimeout", cfg.OperationTimeout,
			"timeout", cfg.Timeout,
		)
	}
}

// TestConfig returns a configuration for fast test execution.
//
// The root is created on Vote and default log output is discarded.
//
// Example:
//
//	cfg := succession.TestConfig()
//	cfg.RootPath = "/election-" + t.Name()
//	cand, err := succession.NewCandidate(&cfg, store)
func TestConfig() Config {
	cfg := DefaultConfig()
	cfg.OperationTimeout = 2 * time.Second
	cfg.CreateRoot = true
	cfg.Log.Output = "discard"

	return cfg
}

// ParseConfig decodes a YAML document into a Config, applies defaults and
// validates the result. Unknown fields are rejected.
//
// Example:
//
//	cfg, err := succession.ParseConfig([]byte(`
//	endpoint: zk1:2181,zk2:2181
//	timeout: 2s
//	rootPath: /services/scheduler/leader
//	`))
func ParseConfig(data []byte) (Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
//
// See ParseConfig for decoding rules.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return ParseConfig(data)
}
