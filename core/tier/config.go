package tier

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the on-disk tier configuration document (tiers.json).
type Config struct {
	// Tiers lists the tiers in configuration order.
	Tiers []*Tier `json:"tiers"`
}

// ParseConfig parses a JSON tier configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tier config: %w", err)
	}
	if len(cfg.Tiers) == 0 {
		return nil, fmt.Errorf("tier config defines no tiers")
	}
	return &cfg, nil
}

// Resolve validates the configuration and builds the hierarchy.
func (c *Config) Resolve() (*Hierarchy, error) {
	return NewHierarchy(c.Tiers)
}

// ToJSON serializes the configuration to indented JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadConfig reads a JSON tier configuration file and resolves it.
func LoadConfig(path string) (*Hierarchy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tier config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	h, err := cfg.Resolve()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// ConfigOf rebuilds the configuration document for a resolved hierarchy,
// for writing a hierarchy back to disk.
func ConfigOf(h *Hierarchy) *Config {
	return &Config{Tiers: h.Tiers()}
}
