// Package eligibility decides whether a creature may currently be
// guessed. CanGuess is pure with respect to its inputs; the first
// failing gate wins and becomes the reason.
package eligibility

import (
	"dexlink.app/internal/dexstate"
	"dexlink.app/internal/metadata"
)

// Config is the evaluator configuration derived from slot data and the
// local settings.
type Config struct {
	// Practice means no server session: only the generation filter
	// applies.
	Practice bool

	// TypeLocks gates guesses on type-key unlocks.
	TypeLocks bool

	// RegionGating additionally gates guesses on region passes. When
	// false, region passes only affect presentation and never block a
	// guess.
	RegionGating bool

	// EnabledGens filters practice-mode guesses; nil enables all.
	EnabledGens map[int]bool
}

// Blocking reasons.
const (
	ReasonGenerationOff = "generation disabled"
	ReasonNeverFound    = "not yet found"
	ReasonMissingTypes  = "missing type keys"
	ReasonMissingRegion = "missing region pass"
)

// Result reports eligibility and, when blocked, what is missing.
type Result struct {
	OK     bool
	Reason string

	NeverFound    bool
	MissingTypes  []string
	MissingRegion string
}

func ok() Result { return Result{OK: true} }

// CanGuess evaluates the guess gates for one creature against current
// state. Missing metadata fails open: an unknown creature is trivially
// eligible rather than bricking the guess.
func CanGuess(dex int, st *dexstate.Store, meta *metadata.Store, cfg Config) Result {
	if cfg.Practice {
		if cfg.EnabledGens != nil && !cfg.EnabledGens[metadata.GenerationOf(dex)] {
			return Result{Reason: ReasonGenerationOff}
		}
		return ok()
	}

	if !st.Unlocked(dex) {
		return Result{Reason: ReasonNeverFound, NeverFound: true}
	}

	if cfg.TypeLocks {
		if entry, known := meta.Lookup(dex); known {
			var missing []string
			for _, ty := range entry.Types {
				if !st.TypeUnlocked(ty) {
					missing = append(missing, ty)
				}
			}
			if len(missing) > 0 {
				return Result{Reason: ReasonMissingTypes, MissingTypes: missing}
			}
		}
	}

	if cfg.RegionGating {
		region := metadata.RegionOf(dex)
		if region != "" && !st.RegionUnlocked(region) {
			return Result{Reason: ReasonMissingRegion, MissingRegion: region}
		}
	}

	return ok()
}
