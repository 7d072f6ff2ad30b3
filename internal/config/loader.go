// Package config provides configuration loading for incidentd.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, LLM_API_KEY, RUNBOOKS_DIR, ...)
//  2. YAML config file
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// maxConfigFileSize rejects oversized config files.
const maxConfigFileSize = 1024 * 1024

// configSections are the top-level keys; the env transformer maps the
// first underscore-delimited token to a section when it matches one.
var configSections = map[string]struct{}{
	"server":     {},
	"logging":    {},
	"telemetry":  {},
	"llm":        {},
	"runbooks":   {},
	"kubernetes": {},
}

// Load reads configuration from an optional YAML file and the
// environment. An empty configPath skips the file layer entirely.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	// Environment variables override the file layer.
	// SERVER_PORT -> server.port, LLM_API_KEY -> llm.api_key.
	if err := k.Load(env.Provider("", ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// readConfigFile returns the file contents, or nil when the file does
// not exist (a missing config file is not an error).
func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// transformEnv maps SECTION_FIELD_NAME environment variables onto
// section.field_name config keys. Variables whose first token is not a
// known section are ignored.
func transformEnv(s string) string {
	lower := strings.ToLower(s)
	section, rest, found := strings.Cut(lower, "_")
	if !found {
		return ""
	}
	if _, ok := configSections[section]; !ok {
		return ""
	}
	return section + "." + rest
}
