package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"nextstep/internal/domain"
)

// Config models nextstep.yml.
type Config struct {
	Contexts []ContextSeed `yaml:"contexts"`
	Save     struct {
		DebounceMS int `yaml:"debounce_ms"`
	} `yaml:"save"`
}

// ContextSeed is one entry of the context taxonomy seeded at startup.
// Contexts are not persisted; this file is their only durable home.
type ContextSeed struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

var colorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Contexts) == 0 {
		return fmt.Errorf("config.contexts must list at least one context")
	}
	for i, cs := range c.Contexts {
		if cs.Name == "" {
			return fmt.Errorf("config.contexts[%d] has empty name", i)
		}
		if cs.Color != "" && !colorRe.MatchString(cs.Color) {
			return fmt.Errorf("config.contexts[%d] color %q is not #RRGGBB", i, cs.Color)
		}
	}
	if c.Save.DebounceMS < 0 {
		return fmt.Errorf("config.save.debounce_ms must not be negative")
	}
	return nil
}

// SeedContexts materializes the taxonomy as domain contexts.
// Ids are positional, matching what earlier versions shipped.
func (c *Config) SeedContexts() []domain.Context {
	res := make([]domain.Context, 0, len(c.Contexts))
	for i, cs := range c.Contexts {
		res = append(res, domain.Context{
			ID:    fmt.Sprintf("%d", i+1),
			Name:  cs.Name,
			Color: cs.Color,
		})
	}
	return res
}

// Debounce returns the configured save debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Save.DebounceMS) * time.Millisecond
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "nextstep.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `contexts:
  - name: "@computer"
    color: "#3B82F6"
  - name: "@home"
    color: "#10B981"
  - name: "@errands"
    color: "#F59E0B"
  - name: "@phone"
    color: "#EF4444"

save:
  debounce_ms: 50
`
