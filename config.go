package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every configuration key read from the
	// environment, e.g. OISAFE_WORKERS.
	EnvPrefix = "OISAFE"

	// Environment variable for the backup password
	PasswordEnvVar = EnvPrefix + "_PASSWORD"
)

// Config is the resolved configuration of one invocation.
type Config struct {
	Password            string
	Output              string
	OutFile             string
	Workers             int
	KDFHash             string
	CategoryPlaceholder string
	FieldPlaceholder    string
	Verbose             bool
	PrettyLogs          bool
}

// newViper returns a viper instance with defaults and environment binding.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("output", "table")
	v.SetDefault("workers", 1)
	v.SetDefault("kdf.hash", DefaultKDFHash)
	v.SetDefault("placeholder.category", DefaultCategoryPlaceholder)
	v.SetDefault("placeholder.field", DefaultFieldPlaceholder)
	v.SetDefault("pretty_logs", true)

	return v
}

// loadDotEnv loads .env from the working directory when present.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// readConfigFile merges an optional YAML config file into v.
func readConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// LoadConfig resolves and validates the configuration held by v.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Password:            v.GetString("password"),
		Output:              strings.ToLower(v.GetString("output")),
		OutFile:             v.GetString("out"),
		Workers:             v.GetInt("workers"),
		KDFHash:             v.GetString("kdf.hash"),
		CategoryPlaceholder: v.GetString("placeholder.category"),
		FieldPlaceholder:    v.GetString("placeholder.field"),
		Verbose:             v.GetBool("verbose"),
		PrettyLogs:          v.GetBool("pretty_logs"),
	}

	if cfg.Workers < 1 {
		return Config{}, fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	if !isOutputFormat(cfg.Output) {
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.Output)
	}
	if _, err := LookupHash(cfg.KDFHash); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Options converts the configuration into decryption options.
func (c Config) Options() (Options, error) {
	h, err := LookupHash(c.KDFHash)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Hash:                h,
		Workers:             c.Workers,
		CategoryPlaceholder: c.CategoryPlaceholder,
		FieldPlaceholder:    c.FieldPlaceholder,
	}, nil
}
