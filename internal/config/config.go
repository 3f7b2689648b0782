// Package config loads kvs-server's JSONC configuration file and merges
// it with CLI overrides, following the precedence defaults < config file
// < CLI flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Config holds kvs-server's configuration.
type Config struct {
	Addr                     string `json:"addr"`
	Engine                   string `json:"engine"`
	Workers                  int    `json:"workers"`
	CompactionThresholdBytes uint64 `json:"compaction_threshold_bytes,omitempty"` //nolint:tagliatelle // snake_case for config file
}

// DefaultConfig returns kvs-server's defaults (spec.md §6's CLI surface
// defaults).
func DefaultConfig() Config {
	return Config{
		Addr:    "127.0.0.1:4000",
		Engine:  "kvs",
		Workers: 4,
	}
}

var errEngineInvalid = errors.New("config: engine must be \"kvs\" or \"sled\"")

// Load reads path (if non-empty and it exists) as JSONC, merges it over
// the defaults, and returns the result. A missing path is not an error:
// callers get the defaults back both for an empty path and for a path
// naming a file that does not exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	fileCfg, err := parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg = merge(cfg, fileCfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// parse standardizes JSONC to JSON via hujson and unmarshals it.
func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Addr != "" {
		base.Addr = overlay.Addr
	}

	if overlay.Engine != "" {
		base.Engine = overlay.Engine
	}

	if overlay.Workers != 0 {
		base.Workers = overlay.Workers
	}

	if overlay.CompactionThresholdBytes != 0 {
		base.CompactionThresholdBytes = overlay.CompactionThresholdBytes
	}

	return base
}

func validate(cfg Config) error {
	if cfg.Engine != "kvs" && cfg.Engine != "sled" {
		return fmt.Errorf("%w, got %q", errEngineInvalid, cfg.Engine)
	}

	if cfg.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", cfg.Workers)
	}

	return nil
}
