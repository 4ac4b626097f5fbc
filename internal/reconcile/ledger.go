package reconcile

import (
	"encoding/json"
	"fmt"

	"dexlink.app/internal/ids"
	"dexlink.app/internal/protocol"
)

// Shared-storage ledger keys, one set per slot: three consumable usage
// ledgers plus the two trap-effect sets. Reconciliation is
// push-then-pull: remote entries are merged in, then entries only we
// hold are uploaded exactly once.

const (
	keyUsedReveal = "used_reveal"
	keyUsedHint   = "used_hint"
	keyUsedInfo   = "used_info"
	keyDerpy      = "derpy"
	keyReleased   = "released"
)

var consumableKeys = [ids.ConsumableCount]string{keyUsedReveal, keyUsedHint, keyUsedInfo}

// trapLedger is the stored value for the derpy/released keys. Applied
// is the cumulative number of trap occurrences ever serviced, which
// survives releases being reconfirmed away.
type trapLedger struct {
	Applied int   `json:"applied"`
	IDs     []int `json:"ids"`
}

func (c *Client) ledgerKey(name string) string {
	c.mu.Lock()
	slot := c.slot
	c.mu.Unlock()
	return fmt.Sprintf("dexlink_%s_%d", name, slot)
}

func (c *Client) subscribeLedger(t Transport) {
	if t == nil {
		return
	}
	keys := make([]string, 0, ids.ConsumableCount+2)
	for _, name := range consumableKeys {
		keys = append(keys, c.ledgerKey(name))
	}
	keys = append(keys, c.ledgerKey(keyDerpy), c.ledgerKey(keyReleased))
	if err := t.GetKeys(keys...); err != nil && c.log != nil {
		c.log.Printf("ledger pull: %v", err)
	}
	if err := t.SetNotify(keys...); err != nil && c.log != nil {
		c.log.Printf("ledger subscribe: %v", err)
	}
}

// onRetrieved seeds the ledgers from the initial remote pull and
// uploads whatever the remote side was missing.
func (c *Client) onRetrieved(p protocol.RetrievedPacket) {
	for kind := 0; kind < ids.ConsumableCount; kind++ {
		raw, ok := p.Keys[c.ledgerKey(consumableKeys[kind])]
		var remote []int
		if ok && len(raw) > 0 {
			// Corrupt remote values degrade to an empty ledger.
			_ = json.Unmarshal(raw, &remote)
		}
		localOnly := c.state.SeedUsedOn(kind, remote)
		if len(localOnly) > 0 {
			c.uploadUsed(kind)
		}
	}

	c.seedTrap(p.Keys, ids.TrapDerp, keyDerpy)
	c.seedTrap(p.Keys, ids.TrapRelease, keyReleased)

	c.mu.Lock()
	c.ledgerSeeded = true
	c.mu.Unlock()

	// Traps counted before the seed arrived are serviced now.
	c.applyTraps()
}

func (c *Client) seedTrap(keys map[string]json.RawMessage, trapKind int, name string) {
	var tl trapLedger
	if raw, ok := keys[c.ledgerKey(name)]; ok && len(raw) > 0 {
		_ = json.Unmarshal(raw, &tl)
	}
	if trapKind == ids.TrapDerp {
		c.state.SeedTrapSets(tl.IDs, nil)
	} else {
		c.state.SeedTrapSets(nil, tl.IDs)
	}
	c.mu.Lock()
	if tl.Applied > c.trapApplied[trapKind] {
		c.trapApplied[trapKind] = tl.Applied
	}
	c.mu.Unlock()

	local := c.trapSet(trapKind)
	if len(local) > len(tl.IDs) {
		c.uploadTrapLedger(trapKind)
	}
}

// onSetReply merges a remote ledger change written by another client
// instance. No echo upload: the writer already holds the value.
func (c *Client) onSetReply(p protocol.SetReplyPacket) {
	for kind := 0; kind < ids.ConsumableCount; kind++ {
		if p.Key != c.ledgerKey(consumableKeys[kind]) {
			continue
		}
		var remote []int
		if len(p.Value) > 0 {
			_ = json.Unmarshal(p.Value, &remote)
		}
		c.state.SeedUsedOn(kind, remote)
		return
	}
	for _, trap := range []struct {
		kind int
		name string
	}{{ids.TrapDerp, keyDerpy}, {ids.TrapRelease, keyReleased}} {
		if p.Key != c.ledgerKey(trap.name) {
			continue
		}
		var tl trapLedger
		if len(p.Value) > 0 {
			_ = json.Unmarshal(p.Value, &tl)
		}
		if trap.kind == ids.TrapDerp {
			c.state.SeedTrapSets(tl.IDs, nil)
		} else {
			c.state.SeedTrapSets(nil, tl.IDs)
		}
		c.mu.Lock()
		if tl.Applied > c.trapApplied[trap.kind] {
			c.trapApplied[trap.kind] = tl.Applied
		}
		c.mu.Unlock()
		return
	}
}

func (c *Client) trapSet(trapKind int) []int {
	if trapKind == ids.TrapDerp {
		return c.state.DerpyList()
	}
	return c.state.ReleasedList()
}

func (c *Client) uploadUsed(kind int) {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return
	}
	if err := t.SetKey(c.ledgerKey(consumableKeys[kind]), c.state.UsedOn(kind)); err != nil && c.log != nil {
		c.log.Printf("ledger upload: %v", err)
	}
}

func (c *Client) uploadTrapLedger(trapKind int) {
	name := keyDerpy
	if trapKind == ids.TrapRelease {
		name = keyReleased
	}
	c.mu.Lock()
	t := c.transport
	applied := c.trapApplied[trapKind]
	c.mu.Unlock()
	if t == nil {
		return
	}
	tl := trapLedger{Applied: applied, IDs: c.trapSet(trapKind)}
	if err := t.SetKey(c.ledgerKey(name), tl); err != nil && c.log != nil {
		c.log.Printf("ledger upload: %v", err)
	}
}
