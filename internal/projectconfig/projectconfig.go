// Package projectconfig loads the on-disk project configuration file. The
// runtime itself consumes only the source subdirectory path; the rest is
// decoded in full for the CLI's benefit (the scaffolder, a future admin
// surface) and carried opaquely.
package projectconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// RateLimit is the opaque rate-limiting section.
type RateLimit struct {
	Window      string `mapstructure:"window"`
	MaxRequests int    `mapstructure:"max_requests"`
}

// Config is the full on-disk project configuration. The runtime only ever
// reads SourceDir; the rest is carried for the CLI.
type Config struct {
	Name            string                 `mapstructure:"name"`
	Version         string                 `mapstructure:"version"`
	Host            string                 `mapstructure:"host"`
	Port            int                    `mapstructure:"port"`
	SourceDir       string                 `mapstructure:"source_dir"`
	Description     string                 `mapstructure:"description"`
	CORSAllowOrigin string                 `mapstructure:"cors_allow_origin"`
	RateLimit       RateLimit              `mapstructure:"rate_limit"`
	Database        map[string]interface{} `mapstructure:"database"`
	Cache           map[string]interface{} `mapstructure:"cache"`
}

// Load reads and decodes the project config file at path, choosing a
// decoder by its extension (.toml, .yaml/.yml, or .json).
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project config: %w", err)
	}

	var generic map[string]interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(raw), &generic); err != nil {
			return nil, fmt.Errorf("parsing toml project config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("parsing yaml project config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("parsing json project config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unrecognized project config extension: %s", path)
	}

	cfg := &Config{SourceDir: "src"}
	if err := mapstructure.Decode(generic, cfg); err != nil {
		return nil, fmt.Errorf("decoding project config: %w", err)
	}
	return cfg, nil
}
