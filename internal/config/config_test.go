package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.DataDir != "data" || cfg.CatalogURL == "" || cfg.Server.Game == "" {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.DataDir != "data" {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
}

func TestLoad_FileAndNormalize(t *testing.T) {
	p := filepath.Join(t.TempDir(), "dexlink.yaml")
	body := `
server:
  host: wss://dex.example.net:38281/
  slot: "  RedsDex "
  game: PokedexHunt
generations: [3, 1, 3, 12]
region_gating: true
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Host != "dex.example.net:38281" {
		t.Fatalf("host not normalized: %q", cfg.Server.Host)
	}
	if cfg.Server.Slot != "RedsDex" {
		t.Fatalf("slot not trimmed: %q", cfg.Server.Slot)
	}
	if got := cfg.Generations; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("generations not canonicalized: %v", got)
	}
	gens := cfg.EnabledGens()
	if !gens[1] || !gens[3] || gens[2] {
		t.Fatalf("enabled gens wrong: %v", gens)
	}
	if !cfg.RegionGating {
		t.Fatalf("region gating flag lost")
	}
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	cfg.Normalize()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("missing host should fail validation")
	}
	cfg.PracticeMode = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("practice mode needs no server: %v", err)
	}
	cfg.PracticeMode = false
	cfg.Server.Host = "localhost:38281"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("missing slot should fail validation")
	}
	cfg.Server.Slot = "RedsDex"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("complete config should validate: %v", err)
	}
}

func TestEnabledGens_NilMeansAll(t *testing.T) {
	cfg := defaults()
	if cfg.EnabledGens() != nil {
		t.Fatalf("empty filter should be nil (all enabled)")
	}
}
