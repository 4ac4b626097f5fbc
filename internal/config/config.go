package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`

	DataDir    string `yaml:"data_dir"`
	DexPath    string `yaml:"dex_path"`
	CatalogURL string `yaml:"catalog_url"`

	PracticeMode bool  `yaml:"practice_mode"`
	RegionGating bool  `yaml:"region_gating"`
	Generations  []int `yaml:"generations,omitempty"`
}

type ServerConfig struct {
	// Host is host:port; the scheme is chosen at dial time (secure
	// first, then insecure).
	Host     string `yaml:"host"`
	Slot     string `yaml:"slot"`
	Game     string `yaml:"game"`
	Password string `yaml:"password,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// No config file: flags and defaults carry the day.
		cfg.Normalize()
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("dexlink.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("dexlink.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Game: "PokedexHunt",
		},
		DataDir:    "data",
		CatalogURL: "https://pokeapi.co/api/v2/pokemon-species",
	}
}

// Normalize strips schemes users paste into the host field and
// canonicalizes the generation filter.
func (c *Config) Normalize() {
	h := strings.TrimSpace(c.Server.Host)
	h = strings.TrimPrefix(h, "wss://")
	h = strings.TrimPrefix(h, "ws://")
	c.Server.Host = strings.TrimSuffix(h, "/")
	c.Server.Slot = strings.TrimSpace(c.Server.Slot)

	if len(c.Generations) > 0 {
		seen := map[int]struct{}{}
		var gens []int
		for _, g := range c.Generations {
			if g < 1 || g > 9 {
				continue
			}
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			gens = append(gens, g)
		}
		sort.Ints(gens)
		c.Generations = gens
	}
}

func (c *Config) Validate() error {
	if c.PracticeMode {
		return nil
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required outside practice mode")
	}
	if c.Server.Slot == "" {
		return fmt.Errorf("server.slot is required outside practice mode")
	}
	if c.Server.Game == "" {
		return fmt.Errorf("server.game must not be empty")
	}
	return nil
}

// EnabledGens returns the practice-mode generation filter; nil means
// all generations.
func (c *Config) EnabledGens() map[int]bool {
	if len(c.Generations) == 0 {
		return nil
	}
	m := make(map[int]bool, len(c.Generations))
	for _, g := range c.Generations {
		m[g] = true
	}
	return m
}
