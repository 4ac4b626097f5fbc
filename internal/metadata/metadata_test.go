package metadata

import "testing"

func TestTypeIndex_CoversAll18(t *testing.T) {
	if len(TypeNames) != 18 {
		t.Fatalf("expected 18 types, got %d", len(TypeNames))
	}
	for i, n := range TypeNames {
		idx, ok := TypeIndex(n)
		if !ok || idx != i {
			t.Fatalf("TypeIndex(%s) = %d,%v want %d", n, idx, ok, i)
		}
	}
	if _, ok := TypeIndex("Shadow"); ok {
		t.Fatalf("unknown type should not resolve")
	}
}

func TestGenerationOf(t *testing.T) {
	cases := map[int]int{1: 1, 151: 1, 152: 2, 386: 3, 387: 4, 1025: 9, 1026: 0, 0: 0}
	for dex, want := range cases {
		if got := GenerationOf(dex); got != want {
			t.Fatalf("GenerationOf(%d) = %d want %d", dex, got, want)
		}
	}
	if RegionOf(25) != "Kanto" || RegionOf(906) != "Paldea" {
		t.Fatalf("region mapping wrong: %s %s", RegionOf(25), RegionOf(906))
	}
}

func TestStore_LookupAndPool(t *testing.T) {
	s := New([]Entry{
		{Dex: 6, Types: []string{"Fire", "Flying"}},
		{Dex: 25, Types: []string{"Electric"}, DerpArt: true},
		{Dex: 150, Types: []string{"Psychic"}, Legendary: true},
		{Dex: 0, Types: []string{"Normal"}},                           // dropped
		{Dex: 9, Types: []string{"Water", "Steel", "Fairy"}},          // dropped
	})
	if s.Len() != 3 {
		t.Fatalf("want 3 entries, got %d", s.Len())
	}
	e, ok := s.Lookup(6)
	if !ok || len(e.Types) != 2 || e.Legendary {
		t.Fatalf("lookup 6: %+v ok=%v", e, ok)
	}
	if !s.HasType(6, "Flying") || s.HasType(6, "Water") || s.HasType(999, "Fire") {
		t.Fatalf("HasType wrong")
	}
	pool := s.DerpPool()
	if len(pool) != 1 || pool[0] != 25 {
		t.Fatalf("derp pool: %v", pool)
	}
	if _, ok := s.Lookup(151); ok {
		t.Fatalf("unknown dex should miss")
	}
	if s.Digest() == "" {
		t.Fatalf("digest should be set")
	}
}
