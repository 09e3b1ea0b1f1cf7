// Package config loads kanban settings from defaults, kanban.yaml, a .env
// file, KANBAN_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix         = "KANBAN"
	DefaultConfigName = "kanban"
	DefaultSQLitePath = "kanban.db"
	redacted          = "[redacted]"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Migrate  MigrateConfig  `mapstructure:"migrate" yaml:"migrate"`
}

type DatabaseConfig struct {
	// Driver is sqlite or postgres. Empty infers it from URL.
	Driver string `mapstructure:"driver" yaml:"driver"`
	URL    string `mapstructure:"url" yaml:"url"`
	// SecretsFile and SecretsName point at a databases.<name> entry used
	// when URL is empty.
	SecretsFile string `mapstructure:"secrets_file" yaml:"secrets_file"`
	SecretsName string `mapstructure:"secrets_name" yaml:"secrets_name"`
}

type APIConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	Token           string        `mapstructure:"token" yaml:"token"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DefaultActor    string        `mapstructure:"default_actor" yaml:"default_actor"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type MigrateConfig struct {
	Backup bool `mapstructure:"backup" yaml:"backup"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.secrets_file", ".secrets.json")
	v.SetDefault("database.secrets_name", "")
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.token", "")
	v.SetDefault("api.shutdown_timeout", 10*time.Second)
	v.SetDefault("api.default_actor", "agent")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("migrate.backup", true)
}

type LoadOptions struct {
	// ConfigFile is an explicit config path. When empty, kanban.yaml is
	// looked up in the working directory and a missing file is not an error.
	ConfigFile string
	// EnvFile is loaded into the process environment if it exists. Variables
	// already set win.
	EnvFile string
	// Flags maps config keys such as "database.url" to command-line flags.
	// Only flags the user actually set override lower layers.
	Flags map[string]*pflag.Flag
}

func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read kanban.yaml: %w", err)
			}
		}
	}

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("config: bind flag %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "", "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
	default:
		return fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.API.Addr) == "" {
		return errors.New("config: api.addr is required")
	}
	if c.API.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: api.shutdown_timeout must be positive, got %s", c.API.ShutdownTimeout)
	}
	return nil
}

// ResolveDatabase returns the driver and DSN to open. An explicit URL wins,
// then a named entry from the secrets file, then a local SQLite file.
func (c *Config) ResolveDatabase() (driver, dsn string, err error) {
	if c.Database.URL != "" {
		return c.Database.Driver, c.Database.URL, nil
	}
	if c.Database.SecretsName != "" {
		secret, err := LoadDatabaseSecret(c.Database.SecretsFile, c.Database.SecretsName)
		if err != nil {
			return "", "", err
		}
		return "postgres", secret.URL(), nil
	}
	driver = c.Database.Driver
	if driver == "" {
		driver = "sqlite"
	}
	return driver, DefaultSQLitePath, nil
}

// Redacted returns a copy safe to print: URL passwords and the API token are
// masked.
func (c Config) Redacted() Config {
	c.Database.URL = redactURL(c.Database.URL)
	if c.API.Token != "" {
		c.API.Token = redacted
	}
	return c
}

func (c Config) YAML() (string, error) {
	out, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return "", fmt.Errorf("config: encode yaml: %w", err)
	}
	return string(out), nil
}

func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	return u.Redacted()
}
