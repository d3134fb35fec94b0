package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/example/unilocal/internal/scheduler"
)

// EnvPrefix is prepended to every environment override, e.g. UNILOCAL_SERVER_PORT.
const EnvPrefix = "UNILOCAL"

// MinSessionSecretLength is the shortest accepted token signing secret.
const MinSessionSecretLength = 16

// Config captures the settings of the UniLocal service.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Log         LogConfig         `mapstructure:"log"`
	Places      PlacesConfig      `mapstructure:"places"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address for Port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// AuthConfig configures session tokens.
type AuthConfig struct {
	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PlacesConfig configures how place schedules are interpreted and searched.
type PlacesConfig struct {
	Timezone       string        `mapstructure:"timezone"`
	Locale         string        `mapstructure:"locale"`
	SearchCacheTTL time.Duration `mapstructure:"search_cache_ttl"`
}

// Location loads the configured zone.
func (c PlacesConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// MaintenanceConfig configures background jobs.
type MaintenanceConfig struct {
	SessionPruneSpec string `mapstructure:"session_prune_spec"`
}

// Options selects where configuration is read from.
type Options struct {
	// ConfigFile is an explicit YAML path. When empty, config.yaml is looked
	// up in . and ./config and may be absent.
	ConfigFile string
	// EnvFile is a dotenv file loaded before reading the environment. Missing
	// files are ignored. Defaults to .env.
	EnvFile string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.dsn", "file:unilocal.db")
	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("places.timezone", "America/Bogota")
	v.SetDefault("places.locale", scheduler.DefaultLocale)
	v.SetDefault("places.search_cache_ttl", "30s")
	v.SetDefault("maintenance.session_prune_spec", "@hourly")
}

// Load reads defaults, the optional config file and the environment, in
// increasing order of precedence, and validates the result.
func Load(opts Options) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	c.Auth.SessionSecret = strings.TrimSpace(c.Auth.SessionSecret)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Places.Timezone = strings.TrimSpace(c.Places.Timezone)
	c.Places.Locale = strings.ToLower(strings.TrimSpace(c.Places.Locale))
	c.Maintenance.SessionPruneSpec = strings.TrimSpace(c.Maintenance.SessionPruneSpec)
}

// Validate reports every missing or invalid key in one error.
func (c Config) Validate() error {
	var missing, invalid []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		invalid = append(invalid, "server.port")
	}
	if c.Server.ShutdownTimeout <= 0 {
		invalid = append(invalid, "server.shutdown_timeout")
	}
	if c.Database.DSN == "" {
		missing = append(missing, "database.dsn")
	}
	switch {
	case c.Auth.SessionSecret == "":
		missing = append(missing, "auth.session_secret")
	case len(c.Auth.SessionSecret) < MinSessionSecretLength:
		invalid = append(invalid, "auth.session_secret")
	}
	if c.Auth.SessionTTL <= 0 {
		invalid = append(invalid, "auth.session_ttl")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		invalid = append(invalid, "log.level")
	}
	if !slices.Contains([]string{"json", "console", "auto"}, c.Log.Format) {
		invalid = append(invalid, "log.format")
	}
	if _, err := c.Places.Location(); err != nil || c.Places.Timezone == "" {
		invalid = append(invalid, "places.timezone")
	}
	if !slices.Contains(scheduler.AvailableLocales(), c.Places.Locale) {
		invalid = append(invalid, "places.locale")
	}
	if c.Places.SearchCacheTTL < 0 {
		invalid = append(invalid, "places.search_cache_ttl")
	}
	if _, err := cron.ParseStandard(c.Maintenance.SessionPruneSpec); err != nil {
		invalid = append(invalid, "maintenance.session_prune_spec")
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required settings: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid settings: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
