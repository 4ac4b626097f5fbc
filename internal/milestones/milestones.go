// Package milestones derives synthetic location checks from accumulated
// catch progress. The scan is idempotent and re-entrant: pseudo-ids are
// marked checked before emission, so re-running with no new catches
// emits nothing.
package milestones

import (
	"dexlink.app/internal/dexstate"
	"dexlink.app/internal/ids"
	"dexlink.app/internal/metadata"
)

// GlobalBaseline is the fixed allowance for the three starter creatures
// already granted at the start of a session.
const GlobalBaseline = 3

// GlobalThresholds is the fixed catch-count ladder: 1, 5, 10, every
// multiple of 10, with the exact generation caps spliced in. The list
// is a literal table from the source ruleset; no formula generates it.
var GlobalThresholds = []int{
	1, 5, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100,
	110, 120, 130, 140, 150, 151, 160, 170, 180, 190, 200,
	210, 220, 230, 240, 250, 251, 260, 270, 280, 290, 300,
	310, 320, 330, 340, 350, 360, 370, 380, 386, 390, 400,
	410, 420, 430, 440, 450, 460, 470, 480, 490, 493, 500,
	510, 520, 530, 540, 550, 560, 570, 580, 590, 600,
	610, 620, 630, 640, 649, 650, 660, 670, 680, 690, 700,
	710, 720, 721, 730, 740, 750, 760, 770, 780, 790, 800,
	809, 810, 820, 830, 840, 850, 860, 870, 880, 890, 900,
	905, 910, 920, 930, 940, 950, 960, 970, 980, 990, 1000,
	1010, 1020, 1025,
}

// TypeSteps is the fixed per-type catch-count ladder.
var TypeSteps = []int{1, 2, 5, 10, 15, 20, 30, 40, 50}

// typeBaselines discounts the starter creatures' types already granted.
var typeBaselines = map[string]int{
	"Grass":  1,
	"Poison": 1,
	"Fire":   1,
	"Water":  1,
}

// ThresholdIndex returns the position of an exact threshold value in
// GlobalThresholds.
func ThresholdIndex(threshold int) (int, bool) {
	for i, t := range GlobalThresholds {
		if t == threshold {
			return i, true
		}
	}
	return 0, false
}

// Config scopes a scan to the session's rules.
type Config struct {
	// CapDex is the session's generation cap; catches and thresholds
	// above it are ignored.
	CapDex int

	// TypeLocks skips per-type milestones for types whose key is still
	// locked.
	TypeLocks bool
}

// Scan computes newly-satisfied milestones, marks them checked in the
// store, and emits each fresh local pseudo-id exactly once. Returns the
// number of emissions.
func Scan(st *dexstate.Store, meta *metadata.Store, cfg Config, emit func(local int)) int {
	capDex := cfg.CapDex
	if capDex <= 0 || capDex > ids.MaxDex {
		capDex = ids.MaxDex
	}

	caught := st.CheckedCreatures(capDex)
	emitted := 0

	adjusted := len(caught) - GlobalBaseline
	if adjusted < 0 {
		adjusted = 0
	}
	for i, threshold := range GlobalThresholds {
		if threshold > capDex {
			break
		}
		if adjusted < threshold {
			break
		}
		local := ids.GlobalMilestoneLocal(i)
		if st.MarkChecked(local) {
			emit(local)
			emitted++
		}
	}

	// Per-type counts over the same caught set.
	counts := map[string]int{}
	for _, dex := range caught {
		entry, known := meta.Lookup(dex)
		if !known {
			continue
		}
		for _, ty := range entry.Types {
			counts[ty]++
		}
	}
	for typeIdx, name := range metadata.TypeNames {
		if cfg.TypeLocks && !st.TypeUnlocked(name) {
			continue
		}
		adj := counts[name] - typeBaselines[name]
		if adj < 0 {
			adj = 0
		}
		for stepIdx, step := range TypeSteps {
			if adj < step {
				break
			}
			local := ids.TypeMilestoneLocal(typeIdx, stepIdx)
			if st.MarkChecked(local) {
				emit(local)
				emitted++
			}
		}
	}

	return emitted
}
