package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "FINBENCH"

// Metadata describes where the configuration came from.
type Metadata struct {
	// File is the YAML file that was read, empty when none was found.
	File string
}

// Option customises Load.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup EnvLookup
	homeDir   func() (string, error)
}

// WithEnv supplies a custom environment lookup implementation.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		if lookup != nil {
			o.envLookup = lookup
		}
	}
}

// WithHomeDir overrides the home directory used in the file search path.
func WithHomeDir(fn func() (string, error)) Option {
	return func(o *loadOptions) {
		if fn != nil {
			o.homeDir = fn
		}
	}
}

// Load merges defaults, the YAML file and the environment, in increasing
// precedence. An explicit path must exist; otherwise ./finbench.yaml and
// $HOME/.finbench/config.yaml are tried.
func Load(path string, opts ...Option) (Config, Metadata, error) {
	options := loadOptions{envLookup: DefaultEnvLookup, homeDir: os.UserHomeDir}
	for _, opt := range opts {
		opt(&options)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := setDefaults(v, Default()); err != nil {
		return Config{}, Metadata{}, err
	}

	var meta Metadata
	file, err := resolveFile(path, options.homeDir)
	if err != nil {
		return Config{}, Metadata{}, err
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, Metadata{}, fmt.Errorf("read config %s: %w", file, err)
		}
		meta.File = file
	}

	lookup := AliasEnvLookup(options.envLookup, envAliases(v.GetString("generator.provider")))
	for _, key := range v.AllKeys() {
		if value, ok := lookup(envKey(key)); ok {
			v.Set(key, value)
		}
	}

	var cfg Config
	decode := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decode); err != nil {
		return Config{}, Metadata{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, meta, nil
}

func resolveFile(path string, homeDir func() (string, error)) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return path, nil
	}
	candidates := []string{"finbench.yaml"}
	if home, err := homeDir(); err == nil && home != "" {
		candidates = append(candidates, filepath.Join(home, ".finbench", "config.yaml"))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config file %s: %w", candidate, err)
		}
	}
	return "", nil
}

// setDefaults registers every leaf of cfg so that env overrides reach keys
// absent from the file.
func setDefaults(v *viper.Viper, cfg Config) error {
	var tree map[string]any
	if err := mapstructure.Decode(cfg, &tree); err != nil {
		return fmt.Errorf("flatten defaults: %w", err)
	}
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, value := range node {
			key := strings.TrimPrefix(prefix+"."+k, ".")
			if child, ok := value.(map[string]any); ok && len(child) > 0 {
				walk(key, child)
				continue
			}
			v.SetDefault(key, value)
		}
	}
	walk("", tree)
	return nil
}
