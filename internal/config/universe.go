package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Universe is a named list of instruments to backtest or screen, loaded
// from a standalone YAML file rather than the main config.
type Universe struct {
	Name    string   `yaml:"name"`
	Symbols []string `yaml:"symbols"`
}

// LoadUniverse reads a universe file and drops duplicate symbols while
// preserving first-seen order.
func LoadUniverse(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading universe file: %w", err)
	}

	var u Universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parsing universe file: %w", err)
	}
	if len(u.Symbols) == 0 {
		return nil, fmt.Errorf("universe file %s lists no symbols", path)
	}

	seen := make(map[string]bool, len(u.Symbols))
	uniq := u.Symbols[:0]
	for _, s := range u.Symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		uniq = append(uniq, s)
	}
	u.Symbols = uniq
	return &u, nil
}
