// Package metadata holds per-creature reference data: type lists,
// legendary flags, and which creatures have override art. Read-only
// after load.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// The 18 elemental types, in canonical index order. Type-key items and
// per-type milestones are addressed by index into this list.
var TypeNames = []string{
	"Normal", "Fire", "Water", "Electric", "Grass", "Ice",
	"Fighting", "Poison", "Ground", "Flying", "Psychic", "Bug",
	"Rock", "Ghost", "Dragon", "Dark", "Steel", "Fairy",
}

var typeIndex = func() map[string]int {
	m := make(map[string]int, len(TypeNames))
	for i, n := range TypeNames {
		m[n] = i
	}
	return m
}()

// TypeIndex returns the canonical index of a type name.
func TypeIndex(name string) (int, bool) {
	i, ok := typeIndex[name]
	return i, ok
}

// Generation caps: the highest dex number of each generation. These
// double as region boundaries.
var GenerationCaps = []int{151, 251, 386, 493, 649, 721, 809, 905, 1025}

var RegionNames = []string{
	"Kanto", "Johto", "Hoenn", "Sinnoh", "Unova",
	"Kalos", "Alola", "Galar", "Paldea",
}

// GenerationOf returns the generation (1-based) a dex number belongs to,
// or 0 if it is outside the base dex range.
func GenerationOf(dex int) int {
	if dex < 1 {
		return 0
	}
	for i, cap := range GenerationCaps {
		if dex <= cap {
			return i + 1
		}
	}
	return 0
}

// Cap returns the dex cap of a generation (1-based); 0 if unknown.
func Cap(gen int) int {
	if gen < 1 || gen > len(GenerationCaps) {
		return 0
	}
	return GenerationCaps[gen-1]
}

// RegionOf returns the region name for a dex number, or "".
func RegionOf(dex int) string {
	g := GenerationOf(dex)
	if g == 0 {
		return ""
	}
	return RegionNames[g-1]
}

// Entry is one creature's static attributes.
type Entry struct {
	Dex       int      `json:"dex"`
	Types     []string `json:"types"`
	Legendary bool     `json:"legendary,omitempty"`
	DerpArt   bool     `json:"derp_art,omitempty"`
}

// Store is an immutable lookup table keyed by dex number.
type Store struct {
	byDex  map[int]Entry
	digest string
}

// New builds a store from entries. Entries with no dex number or more
// than two types are dropped.
func New(entries []Entry) *Store {
	m := make(map[int]Entry, len(entries))
	for _, e := range entries {
		if e.Dex < 1 || len(e.Types) == 0 || len(e.Types) > 2 {
			continue
		}
		m[e.Dex] = e
	}
	b, _ := json.Marshal(entries)
	sum := sha256.Sum256(b)
	return &Store{byDex: m, digest: hex.EncodeToString(sum[:])}
}

// Load reads a JSON array of entries from disk.
func Load(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("dex metadata: %w", err)
	}
	return New(entries), nil
}

// Empty returns a store with no entries. Lookups fail open downstream.
func Empty() *Store {
	return &Store{byDex: map[int]Entry{}}
}

// Lookup returns a creature's entry if known.
func (s *Store) Lookup(dex int) (Entry, bool) {
	e, ok := s.byDex[dex]
	return e, ok
}

// HasType reports whether a creature's type list includes the given type.
// Unknown creatures match nothing.
func (s *Store) HasType(dex int, typeName string) bool {
	e, ok := s.byDex[dex]
	if !ok {
		return false
	}
	for _, t := range e.Types {
		if t == typeName {
			return true
		}
	}
	return false
}

// DerpPool returns the dex numbers with override art, in ascending order.
func (s *Store) DerpPool() []int {
	var out []int
	for dex, e := range s.byDex {
		if e.DerpArt {
			out = append(out, dex)
		}
	}
	sort.Ints(out)
	return out
}

// Len reports how many creatures are known.
func (s *Store) Len() int { return len(s.byDex) }

// Digest identifies the loaded data set, for logging.
func (s *Store) Digest() string { return s.digest }
