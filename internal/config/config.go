package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Delivery modes the relay may use, fixed per deployment.
const (
	ModePush = "push"
	ModePoll = "poll"
)

// Bounds on the poll interval; deployments pick a value inside this range.
const (
	MinPollInterval = 500 * time.Millisecond
	MaxPollInterval = 1000 * time.Millisecond
)

type Config struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	Model   string `mapstructure:"model"`

	// Mode selects push streaming or snapshot polling.
	Mode string `mapstructure:"mode"`
	// ModelsMethod is GET or POST; the list-models method varies by
	// deployment.
	ModelsMethod string `mapstructure:"models_method"`

	StreamTimeoutSecs int `mapstructure:"stream_timeout_secs"`
	PollIntervalMs    int `mapstructure:"poll_interval_ms"`
	PollMaxAttempts   int `mapstructure:"poll_max_attempts"`
}

func Load() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(configDir, "relaychat"))
	v.AddConfigPath(".")

	applyDefaults(v)

	// Read config file (optional - won't error if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Token = expandEnv(cfg.Token)

	// Fall back to environment variables
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("RELAYCHAT_BASE_URL")
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("RELAYCHAT_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModePush)
	v.SetDefault("models_method", "GET")
	v.SetDefault("stream_timeout_secs", 30)
	v.SetDefault("poll_interval_ms", 750)
	v.SetDefault("poll_max_attempts", 100)
}

// Validate checks the fields a typo would silently break.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePush, ModePoll:
	default:
		return fmt.Errorf("invalid mode %q (want %q or %q)", c.Mode, ModePush, ModePoll)
	}
	switch strings.ToUpper(c.ModelsMethod) {
	case "GET", "POST":
	default:
		return fmt.Errorf("invalid models_method %q (want GET or POST)", c.ModelsMethod)
	}
	return nil
}

// PollInterval returns the configured poll interval clamped to the supported
// range.
func (c *Config) PollInterval() time.Duration {
	interval := time.Duration(c.PollIntervalMs) * time.Millisecond
	if interval < MinPollInterval {
		return MinPollInterval
	}
	if interval > MaxPollInterval {
		return MaxPollInterval
	}
	return interval
}

// StreamTimeout returns the push-stream deadline.
func (c *Config) StreamTimeout() time.Duration {
	if c.StreamTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.StreamTimeoutSecs) * time.Second
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "relaychat", "config.yaml"), nil
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// NeedsSetup returns true if no config file exists and no base URL is set in
// the environment.
func NeedsSetup() bool {
	return !Exists() && os.Getenv("RELAYCHAT_BASE_URL") == ""
}

// Save writes the config to disk
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`base_url: %s

# Delivery mode the relay uses: push (incremental stream) or poll
# (snapshot polling with stability detection)
mode: %s

model: %s
models_method: %s
poll_interval_ms: %d
`, cfg.BaseURL, cfg.Mode, cfg.Model, cfg.ModelsMethod, cfg.PollIntervalMs)

	return os.WriteFile(path, []byte(content), 0600)
}
