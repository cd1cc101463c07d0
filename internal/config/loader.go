// Package config loads petrel configuration from files and environment.
//
// Precedence, highest first: environment (PETREL_*), an explicit config
// file (PETREL_CONFIG), a petrel.yaml in the working directory, then
// built-in defaults. Missing files are not an error; defaults make every
// command runnable out of the box.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	StateDoc StateDocConfig `mapstructure:"state_store"`
	Registry RegistryConfig `mapstructure:"registry"`
	Task     TaskConfig     `mapstructure:"task"`
	LogLevel string         `mapstructure:"log_level"`
}

// ServerConfig configures the serve surface.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StateDocConfig configures the state document backend.
type StateDocConfig struct {
	// Backend selects the implementation: "sqlite" (default) or "s3".
	Backend string `mapstructure:"backend"`

	// Path is the local SQLite database path.
	Path string `mapstructure:"path"`

	// URL and AuthToken configure a remote libsql database.
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`

	S3 S3Config `mapstructure:"s3"`
}

// S3Config configures the S3 state backend.
type S3Config struct {
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Profile        string `mapstructure:"profile"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	DiscoverRegion bool   `mapstructure:"discover_region"`
}

// RegistryConfig configures the node-local task registry.
type RegistryConfig struct {
	Root string `mapstructure:"root"`
	Node string `mapstructure:"node"`
}

// TaskConfig configures task controller behavior.
type TaskConfig struct {
	// PersistInterval bounds how often observed phase progress is written
	// through to the state store.
	PersistInterval time.Duration `mapstructure:"persist_interval"`
}

// Load reads configuration with defaults, optional file, and environment
// overrides applied.
func Load(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PETREL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("PETREL_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("petrel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("state_store.backend", "sqlite")
	v.SetDefault("state_store.path", defaultDataPath("state.db"))

	v.SetDefault("registry.root", defaultDataPath("tasks"))

	v.SetDefault("task.persist_interval", "10s")

	v.SetDefault("log_level", "info")
}

func defaultDataPath(name string) string {
	base, err := os.UserHomeDir()
	if err != nil || base == "" {
		base = "."
	}
	return base + "/.petrel/" + name
}
