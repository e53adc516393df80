// Package config loads ocls settings from layered sources: built-in
// defaults, an optional YAML file, environment variables, and CLI flags,
// in ascending order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "OCLS_"

var candidateConfigFiles = []string{"ocls.yaml", "ocls.yml"}

// Config holds the ambient settings that seed the Diagnostics Engine before
// any client `initialize` request has arrived.
type Config struct {
	BuildOptions        []string `koanf:"build_options"`
	MaxNumberOfProblems int      `koanf:"max_number_of_problems"`
	DeviceID            uint32   `koanf:"device_id"`
	LogLevel            string   `koanf:"log_level"`
}

// Default returns the built-in baseline configuration.
func Default() Config {
	return Config{
		MaxNumberOfProblems: 100,
		LogLevel:            "info",
	}
}

// Load resolves a Config from defaults, an optional file (explicit path, or
// the first of candidateConfigFiles found in the working directory), OCLS_
// prefixed environment variables, and flags, in that order of increasing
// precedence.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	defaults := Default()

	defaultsMap := map[string]any{
		"build_options":          defaults.BuildOptions,
		"max_number_of_problems": defaults.MaxNumberOfProblems,
		"device_id":              defaults.DeviceID,
		"log_level":              defaults.LogLevel,
	}
	if err := k.Load(confmap.Provider(defaultsMap, "."), nil); err != nil {
		return Config{}, fmt.Errorf("load default config: %w", err)
	}

	if resolved := resolveConfigFile(path); resolved != "" {
		if err := k.Load(file.Provider(resolved), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %q: %w", resolved, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load environment config: %w", err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, fmt.Errorf("load flag config: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func resolveConfigFile(path string) string {
	if path != "" {
		return path
	}
	for _, candidate := range candidateConfigFiles {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
