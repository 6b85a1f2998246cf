// Package config provides Viper-based hierarchical configuration management
// for the import pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var envOnce sync.Once

// Config represents the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Database struct {
		URL string `mapstructure:"url" yaml:"-"` // never serialized
	} `mapstructure:"database" yaml:"database"`

	Import struct {
		Workers       int           `mapstructure:"workers" yaml:"workers"`
		FileTimeout   time.Duration `mapstructure:"file_timeout" yaml:"file_timeout"`
		MaxExamples   int           `mapstructure:"max_examples" yaml:"max_examples"`
		TemplatesFile string        `mapstructure:"templates_file" yaml:"templates_file"`
	} `mapstructure:"import" yaml:"import"`
}

// LoadEnv loads environment variables from a .env file if one exists in the
// working directory or the project root. Safe to call more than once.
func LoadEnv() {
	envOnce.Do(func() {
		envFile := ".env"
		if _, err := os.Stat(envFile); os.IsNotExist(err) {
			envFile = filepath.Join("..", ".env")
			if _, err := os.Stat(envFile); os.IsNotExist(err) {
				return
			}
		}
		_ = godotenv.Load(envFile)
	})
}

// Load initializes Viper configuration with hierarchical loading:
// defaults, then an optional config file, then LEDGERPIPE_* env vars.
func Load() (*Config, error) {
	LoadEnv()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.ledgerpipe")
	v.AddConfigPath(".ledgerpipe")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEDGERPIPE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
		// No config file is fine, defaults and env vars cover everything.
	}

	// The database URL follows the conventional unprefixed name.
	if err := v.BindEnv("database.url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("import.workers", 4)
	v.SetDefault("import.file_timeout", 2*time.Minute)
	v.SetDefault("import.max_examples", 5)
	v.SetDefault("import.templates_file", "templates.yaml")
}
