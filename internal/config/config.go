// Package config loads rocketindex's workspace configuration:
// `.rocketindex.toml` (SPEC_FULL §6) layered with `ROCKETINDEX_*` environment
// overrides, plus a build-artifact sniffer that widens the pipeline's
// default excludes for JS/TS/Rust workspaces (SPEC_FULL §10.2).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// defaultExcludeDirs are always skipped, regardless of what a workspace's
// build-artifact sniffing turns up.
var defaultExcludeDirs = []string{
	".git", "node_modules", "vendor", "__pycache__", "target", "dist", "build", "bin", "obj",
}

const (
	defaultMaxRecursionDepth = 64
	defaultBatchSize         = 1000
	defaultDebounceMs        = 200
)

// Config is rocketindex's typed view of `.rocketindex.toml` (SPEC_FULL §6).
type Config struct {
	ExcludeDirs       []string `toml:"exclude_dirs" mapstructure:"exclude_dirs"`
	MaxRecursionDepth int      `toml:"max_recursion_depth" mapstructure:"max_recursion_depth"`
	BatchSize         int      `toml:"batch_size" mapstructure:"batch_size"`
	DebounceMs        int      `toml:"debounce_ms" mapstructure:"debounce_ms"`
}

// Default returns a Config with the spec's stated defaults.
func Default() Config {
	return Config{
		ExcludeDirs:       append([]string(nil), defaultExcludeDirs...),
		MaxRecursionDepth: defaultMaxRecursionDepth,
		BatchSize:         defaultBatchSize,
		DebounceMs:        defaultDebounceMs,
	}
}

// Load reads `<root>/.rocketindex.toml` if present, falling back to
// defaults silently when it doesn't exist, and layers `ROCKETINDEX_*`
// environment overrides over the result via viper (SPEC_FULL §6.2).
func Load(root string) (Config, error) {
	cfg := Default()

	path := filepath.Join(root, ".rocketindex.toml")
	if data, err := os.ReadFile(path); err == nil {
		var fromFile Config
		if err := toml.Unmarshal(data, &fromFile); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		mergeNonZero(&cfg, fromFile)
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	v := viper.New()
	v.SetEnvPrefix("ROCKETINDEX")
	v.AutomaticEnv()
	for _, key := range []string{"max_recursion_depth", "batch_size", "debounce_ms"} {
		if v.IsSet(key) {
			switch key {
			case "max_recursion_depth":
				cfg.MaxRecursionDepth = v.GetInt(key)
			case "batch_size":
				cfg.BatchSize = v.GetInt(key)
			case "debounce_ms":
				cfg.DebounceMs = v.GetInt(key)
			}
		}
	}
	if dirs := v.GetString("exclude_dirs"); dirs != "" {
		cfg.ExcludeDirs = append(cfg.ExcludeDirs, splitCSV(dirs)...)
	}

	cfg.ExcludeDirs = append(cfg.ExcludeDirs, DetectBuildArtifactExcludes(root)...)
	return cfg, nil
}

func mergeNonZero(cfg *Config, from Config) {
	if len(from.ExcludeDirs) > 0 {
		cfg.ExcludeDirs = append(cfg.ExcludeDirs, from.ExcludeDirs...)
	}
	if from.MaxRecursionDepth != 0 {
		cfg.MaxRecursionDepth = from.MaxRecursionDepth
	}
	if from.BatchSize != 0 {
		cfg.BatchSize = from.BatchSize
	}
	if from.DebounceMs != 0 {
		cfg.DebounceMs = from.DebounceMs
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
