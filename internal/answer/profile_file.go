package answer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfiguration = errors.New("invalid assistant configuration")

// LoadConfiguration reads a persona from a YAML file. Language defaults to
// the default persona's language when omitted.
func LoadConfiguration(path string) (Configuration, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is from application config
	if err != nil {
		return Configuration{}, fmt.Errorf("read assistant configuration: %w", err)
	}

	var cfg Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Configuration{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, path, err)
	}

	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" || strings.TrimSpace(cfg.SystemPrompt) == "" {
		return Configuration{}, fmt.Errorf("%w: %s: name and system_prompt are required", ErrInvalidConfiguration, path)
	}
	if cfg.Language == "" {
		cfg.Language = DefaultConfiguration().Language
	}
	return cfg, nil
}
