package reconcile

import (
	"fmt"

	"dexlink.app/internal/eligibility"
	"dexlink.app/internal/eventlog"
	"dexlink.app/internal/ids"
	"dexlink.app/internal/metadata"
	"dexlink.app/internal/milestones"
	"dexlink.app/internal/protocol"
)

// releaseProtected are the canonical starter dex numbers the release
// trap may never target.
var releaseProtected = map[int]struct{}{1: {}, 4: {}, 7: {}}

func (c *Client) onItems(p protocol.ReceivedItemsPacket) {
	c.mu.Lock()
	if !c.tableSet {
		c.mu.Unlock()
		return
	}
	table := c.table
	t := c.transport
	if p.Index == 0 {
		// Full replay: every counted total is recomputed from scratch,
		// never accumulated on top of the previous session's numbers.
		c.itemIndex = 0
		c.shinyTotal = 0
		c.consumableTotals = [ids.ConsumableCount]int{}
		c.trapTotals = [ids.TrapKinds]int{}
	} else if p.Index != c.itemIndex {
		c.mu.Unlock()
		if c.log != nil {
			c.log.Printf("item index gap (have %d, got %d), requesting full replay", c.itemIndex, p.Index)
		}
		if t != nil {
			_ = t.Sync()
		}
		return
	}
	c.mu.Unlock()

	var shiny int
	var cons [ids.ConsumableCount]int
	var traps [ids.TrapKinds]int
	for _, it := range p.Items {
		kind, payload := table.ClassifyItem(it.Item)
		switch kind {
		case ids.KindCreature:
			if c.state.Unlock(payload) {
				c.record(eventlog.Entry{Kind: "item", Local: payload, Network: it.Item, ItemKind: kind.String()})
			}
		case ids.KindShinyUpgrade:
			shiny++
		case ids.KindTypeKey:
			if payload >= 0 && payload < len(metadata.TypeNames) {
				if c.state.GrantType(metadata.TypeNames[payload]) {
					c.record(eventlog.Entry{Kind: "item", Network: it.Item, ItemKind: kind.String(), Detail: metadata.TypeNames[payload]})
				}
			}
		case ids.KindConsumable:
			cons[payload]++
		case ids.KindTrap:
			traps[payload]++
		default:
			c.record(eventlog.Entry{Kind: "item", Network: it.Item, ItemKind: kind.String()})
		}
	}

	c.mu.Lock()
	c.itemIndex += len(p.Items)
	c.shinyTotal += shiny
	shinyTarget := c.shinyTotal
	for k := 0; k < ids.ConsumableCount; k++ {
		c.consumableTotals[k] += cons[k]
	}
	consTotals := c.consumableTotals
	for k := 0; k < ids.TrapKinds; k++ {
		c.trapTotals[k] += traps[k]
	}
	c.mu.Unlock()

	c.state.SetShinyTarget(shinyTarget)
	for k := 0; k < ids.ConsumableCount; k++ {
		c.state.SetConsumableReceived(k, consTotals[k])
	}

	c.applyTraps()
	c.scanMilestones()
}

// applyTraps reconciles server-counted trap occurrences against the
// already-applied counts. Shuffle applies immediately; the ledger-backed
// traps wait until the shared ledger has been seeded so a reconnect
// cannot re-flip creatures a previous session already flipped.
func (c *Client) applyTraps() {
	c.mu.Lock()
	now := c.now()
	if c.trapTotals[ids.TrapShuffleShort] > c.trapApplied[ids.TrapShuffleShort] {
		c.trapApplied[ids.TrapShuffleShort] = c.trapTotals[ids.TrapShuffleShort]
		c.state.SetShuffleEnd(now.Add(shuffleShortDuration))
		c.record(eventlog.Entry{Kind: "trap", Detail: "shuffle_short"})
	}
	if c.trapTotals[ids.TrapShuffleLong] > c.trapApplied[ids.TrapShuffleLong] {
		c.trapApplied[ids.TrapShuffleLong] = c.trapTotals[ids.TrapShuffleLong]
		c.state.SetShuffleEnd(now.Add(shuffleLongDuration))
		c.record(eventlog.Entry{Kind: "trap", Detail: "shuffle_long"})
	}
	if !c.ledgerSeeded {
		c.mu.Unlock()
		return
	}
	derpDelta := c.trapTotals[ids.TrapDerp] - c.trapApplied[ids.TrapDerp]
	releaseDelta := c.trapTotals[ids.TrapRelease] - c.trapApplied[ids.TrapRelease]
	capDex := c.capDex
	evalCfg := c.evalCfg
	c.mu.Unlock()

	derpChanged := false
	for _, dex := range c.pickFromPool(c.derpPool(evalCfg), derpDelta) {
		if c.state.AddDerpy(dex) {
			derpChanged = true
			c.record(eventlog.Entry{Kind: "trap", Local: dex, Detail: "derp"})
		}
	}
	releaseChanged := false
	for _, dex := range c.pickFromPool(c.releasePool(capDex), releaseDelta) {
		if c.state.Release(dex) {
			releaseChanged = true
			c.record(eventlog.Entry{Kind: "trap", Local: dex, Detail: "release"})
		}
	}

	c.mu.Lock()
	// Applied catches up to the server count even when the pool ran dry:
	// an unservable trap fizzles rather than retriggering forever.
	c.trapApplied[ids.TrapDerp] = c.trapTotals[ids.TrapDerp]
	c.trapApplied[ids.TrapRelease] = c.trapTotals[ids.TrapRelease]
	c.mu.Unlock()

	if derpChanged {
		c.uploadTrapLedger(ids.TrapDerp)
	}
	if releaseChanged {
		c.uploadTrapLedger(ids.TrapRelease)
	}
}

// derpPool is the override-art candidates not already flipped,
// preferring creatures the player has caught or could guess right now.
func (c *Client) derpPool(evalCfg eligibility.Config) []int {
	var pool, preferred []int
	for _, dex := range c.meta.DerpPool() {
		if c.state.Derpy(dex) {
			continue
		}
		pool = append(pool, dex)
		if c.state.EffectivelyChecked(dex) || eligibility.CanGuess(dex, c.state, c.meta, evalCfg).OK {
			preferred = append(preferred, dex)
		}
	}
	if len(preferred) > 0 {
		return preferred
	}
	return pool
}

// releasePool is the currently-checked creatures minus the protected
// starters.
func (c *Client) releasePool(capDex int) []int {
	var pool []int
	for _, dex := range c.state.CheckedCreatures(capDex) {
		if _, protected := releaseProtected[dex]; protected {
			continue
		}
		pool = append(pool, dex)
	}
	return pool
}

// pickFromPool draws n uniformly without replacement.
func (c *Client) pickFromPool(pool []int, n int) []int {
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	c.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if n > len(pool) {
		n = len(pool)
	}
	return pool[:n]
}

// scanMilestones derives newly-satisfied milestone pseudo-ids, reports
// them to the server, and handles goal completion and region passes.
// Safe to call redundantly: the scan is idempotent.
func (c *Client) scanMilestones() {
	c.mu.Lock()
	table, haveTable := c.table, c.tableSet
	t := c.transport
	cfg := milestones.Config{CapDex: c.capDex, TypeLocks: c.evalCfg.TypeLocks}
	goalLocal := c.goalLocal
	regionGating := c.evalCfg.RegionGating
	c.mu.Unlock()

	var emit []int64
	goalHit := false
	milestones.Scan(c.state, c.meta, cfg, func(local int) {
		c.record(eventlog.Entry{Kind: "check", Local: local, Detail: "milestone"})
		if regionGating {
			c.grantRegionFor(local)
		}
		if local == goalLocal && goalLocal != 0 {
			goalHit = true
		}
		if haveTable {
			if loc, ok := table.ToLocation(local); ok {
				emit = append(emit, loc)
			}
		}
	})

	if t == nil {
		return
	}
	if len(emit) > 0 {
		if err := t.Check(emit...); err != nil && c.log != nil {
			c.log.Printf("milestone checks: %v", err)
		}
	}
	if goalHit {
		c.mu.Lock()
		report := !c.goalReported
		c.goalReported = true
		c.mu.Unlock()
		if report {
			if c.log != nil {
				c.log.Printf("goal milestone reached")
			}
			if err := t.StatusUpdate(protocol.StatusGoal); err != nil && c.log != nil {
				c.log.Printf("status update: %v", err)
			}
		}
	}
}

// grantRegionFor opens the next region's pass when a generation-cap
// milestone lands.
func (c *Client) grantRegionFor(local int) {
	if local < ids.GlobalLocalBase || local >= ids.GlobalLocalBase+ids.GlobalBandCap {
		return
	}
	idx := local - ids.GlobalLocalBase
	if idx >= len(milestones.GlobalThresholds) {
		return
	}
	threshold := milestones.GlobalThresholds[idx]
	for g, gcap := range metadata.GenerationCaps {
		if threshold == gcap && g+1 < len(metadata.RegionNames) {
			if c.state.GrantRegion(metadata.RegionNames[g+1]) {
				c.record(eventlog.Entry{Kind: "check", Detail: fmt.Sprintf("region pass %s", metadata.RegionNames[g+1])})
			}
		}
	}
}

func (c *Client) onLocationInfo(p protocol.LocationInfoPacket) {
	for _, it := range p.Locations {
		c.scouts.Add(it.Location, it)
	}
}
