package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/ctxmem/pkg/dotdir"
)

// EnvPrefix prefixes every environment override, e.g. CTXMEM_STORAGE_DRIVER.
const EnvPrefix = "CTXMEM"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CTXMEM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CTXMEM_LOG_LEVEL, CTXMEM_RETRIEVAL_TOP_K, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string, opts ...dotdir.Option) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := dotdir.NewManager(opts...).Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes the effective Config from v, applying the full
// precedence chain to every scalar key. Sources come from the config file.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, key := range ValidConfigKeys() {
		raw := viperString(v, key)
		if raw == "" {
			continue
		}
		if err := configKeys[key].set(cfg, raw); err != nil {
			return nil, err
		}
	}

	if err := v.UnmarshalKey("ingest.sources", &cfg.Ingest.Sources); err != nil {
		return nil, fmt.Errorf("decoding ingest.sources: %w", err)
	}

	return cfg, cfg.Validate()
}

func viperString(v *viper.Viper, key string) string {
	switch v.Get(key).(type) {
	case []any, []string:
		return strings.Join(v.GetStringSlice(key), ",")
	default:
		return v.GetString(key)
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	for _, key := range ValidConfigKeys() {
		if val := configKeys[key].get(d); val != "" {
			v.SetDefault(key, val)
		}
	}
}
