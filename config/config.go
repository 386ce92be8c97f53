// Package config loads the service configuration from a JSON or YAML
// file with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/transitops/darp/core/dispatch"
	"github.com/transitops/darp/core/metrics"
	"github.com/transitops/darp/infra/mqtt"
)

// SimConfig selects the benchmark instance to replay and the scenario
// sampling horizon used by the consensus strategy.
type SimConfig struct {
	// Instance is the path of the instance file (JSON or YAML).
	Instance string `json:"instance"`
	// HorizonSeconds bounds how far ahead scenario trips are sampled.
	HorizonSeconds float64 `json:"horizon_seconds"`
}

// LoggingConfig tunes the zerolog output.
type LoggingConfig struct {
	// Level is the minimum level: trace, debug, info, warn or error.
	Level string `json:"level"`
}

type Config struct {
	Dispatch dispatch.Config `json:"dispatch"`
	Metrics  metrics.Config  `json:"metrics"`
	Sim      SimConfig       `json:"sim"`
	Logging  LoggingConfig   `json:"logging"`
	// MQTT is optional: with an empty broker the committed plans stay in
	// the replay engine instead of being published.
	MQTT mqtt.Config `json:"mqtt"`
}

// Load reads the file, applies DARP_* environment overrides (two
// underscores separate nesting levels, e.g. DARP_DISPATCH__ALGORITHM),
// fills defaults and validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("DARP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "darp_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Dispatch.SetDefaults()
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	if cfg.Sim.Instance == "" {
		return nil, fmt.Errorf("sim.instance is required")
	}
	return &cfg, nil
}
