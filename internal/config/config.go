package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Santral environment variables.
const EnvPrefix = "SANTRAL_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr   string `yaml:"listen_addr"`
	Model        string `yaml:"model"`
	Voice        string `yaml:"voice"`
	CallerName   string `yaml:"caller_name"`
	CallReason   string `yaml:"call_reason"`
	TrunkContext string `yaml:"trunk_context"`
	Instructions string `yaml:"instructions"`
	Debug        bool   `yaml:"debug"`

	// Secret — env var only, never serialized to YAML.
	APIKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr: "127.0.0.1:8080",
		Model:      "models/gemini-2.0-flash-live-001",
		Voice:      "Puck",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(EnvPrefix + "VOICE"); v != "" {
		cfg.Voice = v
	}
	if v := os.Getenv(EnvPrefix + "CALLER_NAME"); v != "" {
		cfg.CallerName = v
	}
	if v := os.Getenv(EnvPrefix + "CALL_REASON"); v != "" {
		cfg.CallReason = v
	}
	if v := os.Getenv(EnvPrefix + "TRUNK_CONTEXT"); v != "" {
		cfg.TrunkContext = v
	}
	if v := os.Getenv(EnvPrefix + "INSTRUCTIONS"); v != "" {
		cfg.Instructions = v
	}
	if v := os.Getenv(EnvPrefix + "DEBUG"); v != "" {
		if debug, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Debug = debug
		}
	}
}

func loadSecrets(cfg *Config) {
	cfg.APIKey = os.Getenv(EnvPrefix + "API_KEY")
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.APIKey == "" {
		warnings = append(warnings, "API key not configured — calls cannot be placed. Set "+EnvPrefix+"API_KEY or GEMINI_API_KEY.")
	}
	if cfg.Model == "" {
		warnings = append(warnings, "Model not configured — using none; connect will fail.")
	}

	return warnings
}
