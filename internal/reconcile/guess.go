package reconcile

import (
	"context"
	"strings"
	"time"

	"dexlink.app/internal/eligibility"
	"dexlink.app/internal/eventlog"
	"dexlink.app/internal/ids"
	"dexlink.app/internal/protocol"
	"dexlink.app/internal/session"
)

const reconnectTimeout = 30 * time.Second

// GuessResult reports the outcome of a guess attempt.
type GuessResult struct {
	eligibility.Result

	// AlreadyChecked means the creature was confirmed before this guess;
	// nothing was sent.
	AlreadyChecked bool

	// Reconfirmed means the guess cleared a release-trap flag instead of
	// producing a new location check.
	Reconfirmed bool
}

// GuessName resolves a species name through the catalog and guesses it.
// The second return is false when the name is unknown.
func (c *Client) GuessName(name string) (GuessResult, bool) {
	dex, ok := c.names[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return GuessResult{}, false
	}
	return c.Guess(dex), true
}

// Guess attempts to confirm a creature. Eligibility gates first; an
// eligible guess is marked checked optimistically and reported to the
// server, surviving a transient disconnect via the retry controller.
func (c *Client) Guess(dex int) GuessResult {
	res := eligibility.CanGuess(dex, c.state, c.meta, c.EvalConfig())
	if !res.OK {
		return GuessResult{Result: res}
	}

	// A released creature is already checked server-side; guessing it
	// again clears the release flag without a second check.
	if c.state.Released(dex) && c.state.Checked(dex) {
		c.state.Reconfirm(dex)
		c.record(eventlog.Entry{Kind: "check", Local: dex, Detail: "reconfirm"})
		c.uploadTrapLedger(ids.TrapRelease)
		c.scanMilestones()
		return GuessResult{Result: res, Reconfirmed: true}
	}

	if !c.state.MarkChecked(dex) {
		return GuessResult{Result: res, AlreadyChecked: true}
	}
	c.record(eventlog.Entry{Kind: "check", Local: dex, Detail: "guess"})
	c.requestCheck(dex)
	c.scanMilestones()
	return GuessResult{Result: res}
}

// requestCheck sends a location check for a local id, or queues it and
// kicks a reconnect when the session is down.
func (c *Client) requestCheck(local int) {
	c.mu.Lock()
	t := c.transport
	table, haveTable := c.table, c.tableSet
	practice := c.evalCfg.Practice
	c.mu.Unlock()
	if practice {
		return
	}

	if t != nil && haveTable && t.Authenticated() {
		if loc, ok := table.ToLocation(local); ok {
			if err := t.Check(loc); err == nil {
				return
			} else if c.log != nil {
				c.log.Printf("check %d: %v", local, err)
			}
		} else {
			return
		}
	}

	c.mu.Lock()
	c.pendingChecks = append(c.pendingChecks, local)
	c.mu.Unlock()
	c.maybeReconnect()
}

// maybeReconnect starts a single background connect attempt. At most
// one is ever in flight; concurrent callers fall through.
func (c *Client) maybeReconnect() {
	if c.dial == nil {
		return
	}
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.reconnecting.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), reconnectTimeout)
		defer cancel()
		if err := c.Connect(ctx); err != nil {
			if c.log != nil {
				c.log.Printf("reconnect: %v", err)
			}
			if _, terminal := err.(*session.AuthError); terminal {
				// Credentials stopped working; replaying is pointless.
				c.mu.Lock()
				c.pendingChecks = nil
				c.mu.Unlock()
			}
		}
	}()
}

// replayPending resends queued checks after a successful reconnect,
// skipping any the fresh server snapshot already confirmed.
func (c *Client) replayPending() {
	c.mu.Lock()
	pending := c.pendingChecks
	c.pendingChecks = nil
	table, haveTable := c.table, c.tableSet
	t := c.transport
	c.mu.Unlock()
	if len(pending) == 0 || !haveTable || t == nil {
		return
	}
	var send []int64
	for _, local := range pending {
		if c.state.Checked(local) {
			continue
		}
		c.state.MarkChecked(local)
		if loc, ok := table.ToLocation(local); ok {
			send = append(send, loc)
			c.record(eventlog.Entry{Kind: "check", Local: local, Network: loc, Detail: "replay"})
		}
	}
	if len(send) > 0 {
		if err := t.Check(send...); err != nil && c.log != nil {
			c.log.Printf("replay checks: %v", err)
		}
		c.scanMilestones()
	}
}

// AutoGuessAll walks the dex guessing everything currently eligible.
// Debug tool; cooperatively stoppable via StopAutoGuess.
func (c *Client) AutoGuessAll() int {
	c.autoStop.Store(false)
	c.mu.Lock()
	capDex := c.capDex
	c.mu.Unlock()
	guessed := 0
	for dex := 1; dex <= capDex; dex++ {
		if c.autoStop.Load() {
			break
		}
		if c.state.EffectivelyChecked(dex) {
			continue
		}
		res := c.Guess(dex)
		if res.OK && !res.AlreadyChecked {
			guessed++
		}
	}
	return guessed
}

func (c *Client) StopAutoGuess() { c.autoStop.Store(true) }

// UseHint spends a hint consumable on a creature: its location is
// scouted as a hint and it joins the hinted set. Returns false when no
// hint is available or one was already spent on this creature.
func (c *Client) UseHint(dex int) bool {
	if !c.state.ConsumeOn(ids.ConsumableHint, dex) {
		return false
	}
	c.state.AddHint(dex)
	c.uploadUsed(ids.ConsumableHint)
	c.scoutCreature(dex, true)
	return true
}

// UseReveal spends a reveal consumable: the creature's location info is
// scouted without publishing a hint.
func (c *Client) UseReveal(dex int) bool {
	if !c.state.ConsumeOn(ids.ConsumableReveal, dex) {
		return false
	}
	c.state.AddHint(dex)
	c.uploadUsed(ids.ConsumableReveal)
	c.scoutCreature(dex, false)
	return true
}

// UseInfo spends an info consumable and returns whatever scouted data
// is already cached. A cache miss requests a scout and reports no data;
// the reply lands in the cache for the next call.
func (c *Client) UseInfo(dex int) (protocol.NetworkItem, bool) {
	if !c.state.ConsumeOn(ids.ConsumableInfo, dex) {
		return protocol.NetworkItem{}, false
	}
	c.uploadUsed(ids.ConsumableInfo)
	return c.ScoutInfo(dex)
}

// ScoutInfo returns cached scout data for a creature's location,
// requesting it from the server on a miss. Failures are "no data".
func (c *Client) ScoutInfo(dex int) (protocol.NetworkItem, bool) {
	c.mu.Lock()
	table, haveTable := c.table, c.tableSet
	t := c.transport
	c.mu.Unlock()
	if !haveTable {
		return protocol.NetworkItem{}, false
	}
	loc := table.CreatureLocation(dex)
	if it, ok := c.scouts.Get(loc); ok {
		return it, true
	}
	if t != nil {
		_ = t.Scout([]int64{loc}, false)
	}
	return protocol.NetworkItem{}, false
}

func (c *Client) scoutCreature(dex int, asHint bool) {
	c.mu.Lock()
	table, haveTable := c.table, c.tableSet
	t := c.transport
	c.mu.Unlock()
	if !haveTable || t == nil {
		return
	}
	_ = t.Scout([]int64{table.CreatureLocation(dex)}, asHint)
}
