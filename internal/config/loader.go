package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr            string   `json:"addr" yaml:"addr" toml:"addr"`
	WsAddr          string   `json:"ws_addr" yaml:"ws_addr" toml:"ws_addr"`
	ModelsDir       string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	SkillsDirs      []string `json:"skills_dirs" yaml:"skills_dirs" toml:"skills_dirs"`
	DefaultLanguage string   `json:"default_language" yaml:"default_language" toml:"default_language"`
	PoolCapacity    int      `json:"pool_capacity" yaml:"pool_capacity" toml:"pool_capacity"`
	PoolPrewarm     int      `json:"pool_prewarm" yaml:"pool_prewarm" toml:"pool_prewarm"`
	// ConfidenceThreshold gates dispatch; parses below it fall back to
	// the unrecognized event.
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold" toml:"confidence_threshold"`
	// NluTrainerBin is an external trainer CLI; empty selects the
	// builtin matcher backend.
	NluTrainerBin string `json:"nlu_trainer_bin" yaml:"nlu_trainer_bin" toml:"nlu_trainer_bin"`
	LogLevel      string  `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
