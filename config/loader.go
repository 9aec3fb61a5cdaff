// Package config loads the provider manager configuration from a file read
// once at startup. JSON is the native format; YAML is accepted by file
// extension. When the file is absent, a built-in single-provider default is
// used so a bare deployment still talks to a local inference server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/llmbridge/llm"
)

// Default is the built-in configuration used when no file is present:
// a single local inference provider, designated default.
func Default() llm.ManagerConfig {
	return llm.ManagerConfig{
		Providers: map[string]llm.ProviderSpec{
			"ollama": {
				Enabled: true,
				Type:    "ollama",
				Settings: llm.ProviderSettings{
					Endpoint: "http://localhost:11434",
				},
			},
		},
		DefaultProvider: "ollama",
	}
}

// Load reads the configuration file at path. An empty path or a missing file
// falls back to Default(); any other read or parse failure is an error. The
// default and fallback provider names are taken verbatim: whether they
// resolve to surviving providers is the manager's concern at dispatch time.
func Load(path string, logger *zap.Logger) (llm.ManagerConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		logger.Info("no provider config path given, using built-in default")
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("provider config not found, using built-in default",
				zap.String("path", path))
			return Default(), nil
		}
		return llm.ManagerConfig{}, fmt.Errorf("read provider config %s: %w", path, err)
	}

	var cfg llm.ManagerConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return llm.ManagerConfig{}, fmt.Errorf("parse provider config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return llm.ManagerConfig{}, fmt.Errorf("parse provider config %s: %w", path, err)
		}
	}

	logger.Info("provider config loaded",
		zap.String("path", path),
		zap.Int("providers", len(cfg.Providers)),
		zap.String("default", cfg.DefaultProvider))
	return cfg, nil
}
