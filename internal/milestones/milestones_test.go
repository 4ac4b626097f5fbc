package milestones

import (
	"reflect"
	"sort"
	"testing"

	"dexlink.app/internal/dexstate"
	"dexlink.app/internal/ids"
	"dexlink.app/internal/metadata"
)

func scanCollect(st *dexstate.Store, meta *metadata.Store, cfg Config) []int {
	var out []int
	Scan(st, meta, cfg, func(local int) { out = append(out, local) })
	return out
}

func monoMeta() *metadata.Store {
	var entries []metadata.Entry
	for dex := 1; dex <= 60; dex++ {
		entries = append(entries, metadata.Entry{Dex: dex, Types: []string{"Normal"}})
	}
	return metadata.New(entries)
}

func TestGlobalThresholds_Ascending(t *testing.T) {
	if !sort.IntsAreSorted(GlobalThresholds) {
		t.Fatalf("threshold table must be ascending")
	}
	if len(GlobalThresholds) > ids.GlobalBandCap {
		t.Fatalf("threshold table exceeds pseudo-id band: %d", len(GlobalThresholds))
	}
	for _, cap := range metadata.GenerationCaps {
		if _, ok := ThresholdIndex(cap); !ok {
			t.Fatalf("generation cap %d missing from thresholds", cap)
		}
	}
}

func TestScan_GlobalMilestoneAtTen(t *testing.T) {
	st := dexstate.New()
	meta := monoMeta()
	cfg := Config{CapDex: 151}

	// total=12 -> adjusted=9: thresholds 1 and 5 fire, 10 does not.
	for dex := 1; dex <= 12; dex++ {
		st.MarkChecked(dex)
	}
	got := scanCollect(st, meta, cfg)
	i1, _ := ThresholdIndex(1)
	i5, _ := ThresholdIndex(5)
	wantPrefix := []int{ids.GlobalMilestoneLocal(i1), ids.GlobalMilestoneLocal(i5)}
	if len(got) < 2 || !reflect.DeepEqual(got[:2], wantPrefix) {
		t.Fatalf("emissions %v lack global prefix %v", got, wantPrefix)
	}
	i10, _ := ThresholdIndex(10)
	ten := ids.GlobalMilestoneLocal(i10)
	for _, l := range got {
		if l == ten {
			t.Fatalf("threshold 10 must not fire at adjusted=9")
		}
	}

	// The 13th catch crosses threshold 10, exactly once.
	st.MarkChecked(13)
	got = scanCollect(st, meta, cfg)
	fired := 0
	for _, l := range got {
		if l == ten {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("threshold 10 fired %d times want 1: %v", fired, got)
	}

	// A 14th catch re-emits nothing for 10.
	st.MarkChecked(14)
	for _, l := range scanCollect(st, meta, cfg) {
		if l == ten {
			t.Fatalf("threshold 10 emitted twice")
		}
	}
}

func TestScan_RescanEmitsNothing(t *testing.T) {
	st := dexstate.New()
	meta := monoMeta()
	cfg := Config{CapDex: 151}
	for dex := 1; dex <= 20; dex++ {
		st.MarkChecked(dex)
	}
	if n := Scan(st, meta, cfg, func(int) {}); n == 0 {
		t.Fatalf("first scan should emit")
	}
	if n := Scan(st, meta, cfg, func(int) {}); n != 0 {
		t.Fatalf("rescan with no new checks emitted %d", n)
	}
}

func TestScan_StarterAndPseudoIDsExcluded(t *testing.T) {
	st := dexstate.New()
	meta := monoMeta()
	cfg := Config{CapDex: 151}
	for i := 0; i < ids.StarterCount; i++ {
		st.MarkChecked(ids.StarterLocalBase + i)
	}
	if got := scanCollect(st, meta, cfg); len(got) != 0 {
		t.Fatalf("starter-range checks must not count: %v", got)
	}
	// Pseudo-ids a previous scan produced do not feed back in either.
	for dex := 1; dex <= 10; dex++ {
		st.MarkChecked(dex)
	}
	Scan(st, meta, cfg, func(int) {})
	before := len(st.CheckedCreatures(cfg.CapDex))
	if before != 10 {
		t.Fatalf("creature count polluted by pseudo-ids: %d", before)
	}
}

func TestScan_PerType_BaselineAndKeyGate(t *testing.T) {
	meta := metadata.New([]metadata.Entry{
		{Dex: 4, Types: []string{"Fire"}},
		{Dex: 5, Types: []string{"Fire"}},
		{Dex: 37, Types: []string{"Fire"}},
		{Dex: 63, Types: []string{"Psychic"}},
	})
	fireIdx, _ := metadata.TypeIndex("Fire")
	psyIdx, _ := metadata.TypeIndex("Psychic")

	st := dexstate.New()
	st.MarkChecked(4)
	st.MarkChecked(5)
	st.MarkChecked(37)
	st.MarkChecked(63)

	// Type-locking on, no keys: per-type milestones are skipped wholesale.
	cfg := Config{CapDex: 151, TypeLocks: true}
	for _, l := range scanCollect(st, meta, cfg) {
		if l >= ids.TypeLocalBase {
			t.Fatalf("locked type emitted milestone %d", l)
		}
	}

	// Fire key unlocked: 3 caught - baseline 1 = 2 -> steps 1 and 2.
	st.GrantType("Fire")
	var typeEmits []int
	Scan(st, meta, cfg, func(local int) {
		if local >= ids.TypeLocalBase {
			typeEmits = append(typeEmits, local)
		}
	})
	want := []int{ids.TypeMilestoneLocal(fireIdx, 0), ids.TypeMilestoneLocal(fireIdx, 1)}
	if !reflect.DeepEqual(typeEmits, want) {
		t.Fatalf("fire milestones = %v want %v", typeEmits, want)
	}

	// Psychic has no starter baseline: one catch fires step 1.
	st.GrantType("Psychic")
	typeEmits = nil
	Scan(st, meta, cfg, func(local int) {
		if local >= ids.TypeLocalBase {
			typeEmits = append(typeEmits, local)
		}
	})
	if !reflect.DeepEqual(typeEmits, []int{ids.TypeMilestoneLocal(psyIdx, 0)}) {
		t.Fatalf("psychic milestones = %v", typeEmits)
	}
}

func TestScan_ReleasedNotCounted(t *testing.T) {
	st := dexstate.New()
	meta := monoMeta()
	cfg := Config{CapDex: 151}
	for dex := 1; dex <= 13; dex++ {
		st.MarkChecked(dex)
	}
	st.Release(13) // adjusted drops back to 9
	i10, _ := ThresholdIndex(10)
	ten := ids.GlobalMilestoneLocal(i10)
	for _, l := range scanCollect(st, meta, cfg) {
		if l == ten {
			t.Fatalf("released creature counted toward global milestone")
		}
	}
	// Re-confirming restores the count without double-counting.
	st.Reconfirm(13)
	fired := 0
	for _, l := range scanCollect(st, meta, cfg) {
		if l == ten {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("threshold 10 fired %d times after reconfirm", fired)
	}
}

func TestScan_CapTruncatesLadder(t *testing.T) {
	st := dexstate.New()
	var entries []metadata.Entry
	for dex := 1; dex <= 160; dex++ {
		entries = append(entries, metadata.Entry{Dex: dex, Types: []string{"Normal"}})
		st.MarkChecked(dex)
	}
	meta := metadata.New(entries)
	got := scanCollect(st, meta, Config{CapDex: 151})
	iCap, _ := ThresholdIndex(151)
	top := ids.GlobalMilestoneLocal(iCap)
	sawTop := false
	for _, l := range got {
		if l == top {
			sawTop = true
		}
		if l < ids.TypeLocalBase && l > top {
			t.Fatalf("threshold beyond generation cap emitted: %d", l)
		}
	}
	// 151 caught creatures (capped), adjusted 148 < 151: cap milestone
	// itself must not fire yet.
	if sawTop {
		t.Fatalf("cap milestone fired below its threshold")
	}
}
