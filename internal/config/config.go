package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CadenceChoices are the cadences, in minutes, offered to the user.
var CadenceChoices = []int{5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60}

// Config holds the complete application configuration
type Config struct {
	Cadence  CadenceConfig  `mapstructure:"cadence"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Title    TitleConfig    `mapstructure:"title"`
	Update   UpdateConfig   `mapstructure:"update"`
	NetCheck NetCheckConfig `mapstructure:"netcheck"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CadenceConfig defines the initial cadence selection
type CadenceConfig struct {
	DefaultMinutes int `mapstructure:"default_minutes"` // 0 = nothing preselected
}

// AlertConfig defines how the posture alert is played
type AlertConfig struct {
	Player  string   `mapstructure:"player"`  // "auto", "command", "bell" or "none"
	Command []string `mapstructure:"command"` // argv; "{file}" is replaced with the sound path
	Sound   string   `mapstructure:"sound"`   // asset name looked up in the precache
	Bell    bool     `mapstructure:"bell"`    // ring the terminal bell as well
}

// TitleConfig defines terminal title updates
type TitleConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// UpdateConfig defines the asset bundle update notifier
type UpdateConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	ManifestURL      string   `mapstructure:"manifest_url"`
	PollURL          string   `mapstructure:"poll_url"` // defaults to manifest_url
	Period           string   `mapstructure:"period"`
	PrecachePatterns []string `mapstructure:"precache_patterns"`
	CleanupOutdated  bool     `mapstructure:"cleanup_outdated"`
}

// NetCheckConfig defines the connectivity probe used to gate update polls
type NetCheckConfig struct {
	Resolvers []string `mapstructure:"resolvers"` // empty = read /etc/resolv.conf
	Timeout   string   `mapstructure:"timeout"`
	CacheTTL  string   `mapstructure:"cache_ttl"`
}

// StorageConfig defines the precache backend
type StorageConfig struct {
	Type      string      `mapstructure:"type"`
	Path      string      `mapstructure:"path"`
	CacheSize int         `mapstructure:"cache_size"`
	Redis     RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// MetricsConfig defines the node_exporter textfile export
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // empty = disabled
	Interval string `mapstructure:"interval"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"` // used while the terminal UI owns stdout
}

// DefaultPath returns the configuration file used when none is given.
func DefaultPath() string {
	return filepath.Join(configHome(), "fixposture", "config.yaml")
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Configure viper
	v.SetEnvPrefix("FIXPOSTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		configPath = DefaultPath()
	}

	// A missing file means defaults and environment variables only
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Cadence defaults
	v.SetDefault("cadence.default_minutes", 0)

	// Alert defaults
	v.SetDefault("alert.player", "auto")
	v.SetDefault("alert.command", []string{})
	v.SetDefault("alert.sound", "beep.wav")
	v.SetDefault("alert.bell", false)

	// Title defaults
	v.SetDefault("title.enabled", true)

	// Update defaults
	v.SetDefault("update.enabled", false)
	v.SetDefault("update.manifest_url", "")
	v.SetDefault("update.poll_url", "")
	v.SetDefault("update.period", "10s")
	v.SetDefault("update.precache_patterns", []string{"**/*.{js,css,html,svg,png,ico,webp,wav}"})
	v.SetDefault("update.cleanup_outdated", true)

	// Connectivity defaults
	v.SetDefault("netcheck.resolvers", []string{})
	v.SetDefault("netcheck.timeout", "2s")
	v.SetDefault("netcheck.cache_ttl", "30s")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", filepath.Join(dataHome(), "fixposture", "precache.bolt"))
	v.SetDefault("storage.cache_size", 64)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 4)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "fixposture")

	// Metrics defaults
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.interval", "15s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", filepath.Join(stateHome(), "fixposture", "fixposture.log"))
}

// ValidCadence reports whether minutes is one of the offered cadences.
func ValidCadence(minutes int) bool {
	for _, c := range CadenceChoices {
		if c == minutes {
			return true
		}
	}
	return false
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Cadence.DefaultMinutes != 0 && !ValidCadence(cfg.Cadence.DefaultMinutes) {
		return fmt.Errorf("invalid default cadence: %d minutes", cfg.Cadence.DefaultMinutes)
	}

	switch cfg.Alert.Player {
	case "auto", "bell", "none":
	case "command":
		if len(cfg.Alert.Command) == 0 {
			return fmt.Errorf("alert.command is required when alert.player is \"command\"")
		}
	default:
		return fmt.Errorf("invalid alert player: %s", cfg.Alert.Player)
	}

	if cfg.Update.Enabled && cfg.Update.ManifestURL == "" {
		return fmt.Errorf("update.manifest_url is required when updates are enabled")
	}
	if cfg.Update.PollURL == "" {
		cfg.Update.PollURL = cfg.Update.ManifestURL
	}

	for key, value := range map[string]string{
		"update.period":      cfg.Update.Period,
		"netcheck.timeout":   cfg.NetCheck.Timeout,
		"netcheck.cache_ttl": cfg.NetCheck.CacheTTL,
		"metrics.interval":   cfg.Metrics.Interval,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "bolt"
	}
	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	return nil
}

// ParseDuration parses a duration string with a fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func configHome() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return "."
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return "."
}

func stateHome() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state")
	}
	return "."
}
