// Package dexstate holds the authoritative in-memory progression state
// for one session: unlocked, checked, hinted and shiny creatures, type
// and region gates, consumable ledgers, and trap-effect overlays.
//
// Every mutation is synchronous and idempotent: re-applying a no-op
// returns false and leaves observable state untouched, so callers can
// skip downstream recomputation.
package dexstate

import (
	"sort"
	"sync"
	"time"

	"dexlink.app/internal/ids"
)

type consumable struct {
	received int
	usedOn   map[int]struct{}
}

type Store struct {
	mu sync.Mutex

	// unlock order is explicit: seq[dex] is the 1-based position in
	// which the creature was unlocked this session. "The Nth unlocked
	// creature" is a query, not an iteration-order accident.
	unlockSeq   map[int]int
	unlockOrder []int

	checked map[int]struct{} // local ids, including milestone pseudo-ids
	hinted  map[int]struct{}

	shinyTarget int

	typeUnlocks  map[string]struct{}
	regionPasses map[string]struct{}

	consumables [ids.ConsumableCount]consumable

	derpyfied map[int]struct{}
	released  map[int]struct{}

	shuffleEnd time.Time
}

func New() *Store {
	s := &Store{
		unlockSeq:    map[int]int{},
		checked:      map[int]struct{}{},
		hinted:       map[int]struct{}{},
		typeUnlocks:  map[string]struct{}{},
		regionPasses: map[string]struct{}{},
		derpyfied:    map[int]struct{}{},
		released:     map[int]struct{}{},
	}
	for k := range s.consumables {
		s.consumables[k].usedOn = map[int]struct{}{}
	}
	return s
}

// Snapshot is the wholesale-replace payload applied at (re)connect.
type Snapshot struct {
	Unlocked     []int // in unlock order
	Checked      []int
	ShinyTarget  int
	TypeUnlocks  []string
	RegionPasses []string
}

// Unlock records a creature as findable. Returns false if already
// unlocked.
func (s *Store) Unlock(dex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlockLocked(dex)
}

func (s *Store) unlockLocked(dex int) bool {
	if _, ok := s.unlockSeq[dex]; ok {
		return false
	}
	s.unlockOrder = append(s.unlockOrder, dex)
	s.unlockSeq[dex] = len(s.unlockOrder)
	return true
}

func (s *Store) Unlocked(dex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unlockSeq[dex]
	return ok
}

func (s *Store) UnlockedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unlockOrder)
}

// UnlockOrder returns the unlocked dex numbers oldest-first.
func (s *Store) UnlockOrder() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.unlockOrder...)
}

// MarkChecked records a local id (creature or pseudo-id) as confirmed.
func (s *Store) MarkChecked(local int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checked[local]; ok {
		return false
	}
	s.checked[local] = struct{}{}
	return true
}

func (s *Store) Checked(local int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.checked[local]
	return ok
}

// EffectivelyChecked is checked-and-not-released: a released creature
// must be re-confirmed before it counts as caught again.
func (s *Store) EffectivelyChecked(local int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checked[local]; !ok {
		return false
	}
	_, rel := s.released[local]
	return !rel
}

// CheckedCreatures returns the effectively-checked base creature ids up
// to capDex, ascending. Starter-range ids and milestone pseudo-ids are
// excluded by construction.
func (s *Store) CheckedCreatures(capDex int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for local := range s.checked {
		if !ids.IsBaseCreature(local) || local > capDex {
			continue
		}
		if _, rel := s.released[local]; rel {
			continue
		}
		out = append(out, local)
	}
	sort.Ints(out)
	return out
}

func (s *Store) AddHint(local int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hinted[local]; ok {
		return false
	}
	s.hinted[local] = struct{}{}
	return true
}

func (s *Store) Hinted(local int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hinted[local]
	return ok
}

// SetShinyTarget sets how many of the oldest-unlocked creatures carry
// the shiny flag.
func (s *Store) SetShinyTarget(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.shinyTarget = n
}

func (s *Store) ShinyTarget() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shinyTarget
}

// IsShiny reports whether a creature is within the first shinyTarget
// unlocks of the session.
func (s *Store) IsShiny(dex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.unlockSeq[dex]
	return ok && seq <= s.shinyTarget
}

func (s *Store) GrantType(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.typeUnlocks[name]; ok {
		return false
	}
	s.typeUnlocks[name] = struct{}{}
	return true
}

func (s *Store) TypeUnlocked(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.typeUnlocks[name]
	return ok
}

func (s *Store) GrantRegion(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regionPasses[name]; ok {
		return false
	}
	s.regionPasses[name] = struct{}{}
	return true
}

func (s *Store) RegionUnlocked(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.regionPasses[name]
	return ok
}

// SetConsumableReceived records the server-counted total for a
// consumable kind. Availability is always derived, never decremented,
// so it self-corrects after reconnect.
func (s *Store) SetConsumableReceived(kind, total int) {
	if kind < 0 || kind >= ids.ConsumableCount {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumables[kind].received = total
}

// ConsumeOn spends one instance of a consumable on a creature. Returns
// false if none are available or the creature already consumed one.
func (s *Store) ConsumeOn(kind, dex int) bool {
	if kind < 0 || kind >= ids.ConsumableCount {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &s.consumables[kind]
	if _, ok := c.usedOn[dex]; ok {
		return false
	}
	if c.received-len(c.usedOn) <= 0 {
		return false
	}
	c.usedOn[dex] = struct{}{}
	return true
}

func (s *Store) ConsumableAvailable(kind int) int {
	if kind < 0 || kind >= ids.ConsumableCount {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.consumables[kind].received - len(s.consumables[kind].usedOn)
	if n < 0 {
		n = 0
	}
	return n
}

func (s *Store) ConsumedOn(kind, dex int) bool {
	if kind < 0 || kind >= ids.ConsumableCount {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.consumables[kind].usedOn[dex]
	return ok
}

// UsedOn returns the usage ledger for a kind, ascending.
func (s *Store) UsedOn(kind int) []int {
	if kind < 0 || kind >= ids.ConsumableCount {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.consumables[kind].usedOn))
	for dex := range s.consumables[kind].usedOn {
		out = append(out, dex)
	}
	sort.Ints(out)
	return out
}

// SeedUsedOn merges remote ledger entries into the local ledger and
// returns the local entries the remote side is missing (to be uploaded
// once).
func (s *Store) SeedUsedOn(kind int, remote []int) (localOnly []int) {
	if kind < 0 || kind >= ids.ConsumableCount {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &s.consumables[kind]
	rset := map[int]struct{}{}
	for _, dex := range remote {
		rset[dex] = struct{}{}
		c.usedOn[dex] = struct{}{}
	}
	for dex := range c.usedOn {
		if _, ok := rset[dex]; !ok {
			localOnly = append(localOnly, dex)
		}
	}
	sort.Ints(localOnly)
	return localOnly
}

func (s *Store) AddDerpy(dex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.derpyfied[dex]; ok {
		return false
	}
	s.derpyfied[dex] = struct{}{}
	return true
}

func (s *Store) Derpy(dex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.derpyfied[dex]
	return ok
}

func (s *Store) DerpyList() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.derpyfied))
	for dex := range s.derpyfied {
		out = append(out, dex)
	}
	sort.Ints(out)
	return out
}

func (s *Store) DerpyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.derpyfied)
}

// Release marks a checked creature as requiring re-confirmation.
func (s *Store) Release(dex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.released[dex]; ok {
		return false
	}
	s.released[dex] = struct{}{}
	return true
}

// Reconfirm clears the released flag after a successful re-guess.
func (s *Store) Reconfirm(dex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.released[dex]; !ok {
		return false
	}
	delete(s.released, dex)
	return true
}

func (s *Store) Released(dex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.released[dex]
	return ok
}

func (s *Store) ReleasedList() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.released))
	for dex := range s.released {
		out = append(out, dex)
	}
	sort.Ints(out)
	return out
}

func (s *Store) ReleasedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.released)
}

// SeedTrapSets merges remote derpyfied/released ledger entries.
func (s *Store) SeedTrapSets(derpy, released []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dex := range derpy {
		s.derpyfied[dex] = struct{}{}
	}
	for _, dex := range released {
		s.released[dex] = struct{}{}
	}
}

func (s *Store) SetShuffleEnd(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuffleEnd = t
}

func (s *Store) ShuffleActive(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.shuffleEnd.IsZero() && now.Before(s.shuffleEnd)
}

// ClearSession drops the session-scoped caches (unlocked, checked,
// hinted). Ledgers and trap sets survive: they are shared state and are
// re-merged from the remote store on reconnect.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlockSeq = map[int]int{}
	s.unlockOrder = nil
	s.checked = map[int]struct{}{}
	s.hinted = map[int]struct{}{}
}

// ResetFrom replaces unlocked, checked, shiny and gate state wholesale
// from the authoritative server snapshot. Merge is deliberately not
// offered: the server is the source of truth.
func (s *Store) ResetFrom(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlockSeq = map[int]int{}
	s.unlockOrder = nil
	for _, dex := range snap.Unlocked {
		s.unlockLocked(dex)
	}
	s.checked = map[int]struct{}{}
	for _, local := range snap.Checked {
		s.checked[local] = struct{}{}
	}
	s.hinted = map[int]struct{}{}
	s.shinyTarget = snap.ShinyTarget
	s.typeUnlocks = map[string]struct{}{}
	for _, n := range snap.TypeUnlocks {
		s.typeUnlocks[n] = struct{}{}
	}
	s.regionPasses = map[string]struct{}{}
	for _, n := range snap.RegionPasses {
		s.regionPasses[n] = struct{}{}
	}
}
