// Package reconcile turns the session's push events into dex state
// mutations and derived milestone checks, and owns the reconnect/retry
// discipline around player guesses.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"dexlink.app/internal/config"
	"dexlink.app/internal/dexstate"
	"dexlink.app/internal/eligibility"
	"dexlink.app/internal/eventlog"
	"dexlink.app/internal/ids"
	"dexlink.app/internal/metadata"
	"dexlink.app/internal/milestones"
	"dexlink.app/internal/protocol"
	"dexlink.app/internal/session"
)

// Transport is the slice of the session the reconciler drives. The
// concrete implementation is session.Session; tests substitute a fake.
type Transport interface {
	Login(ctx context.Context) error
	Check(locations ...int64) error
	Scout(locations []int64, createAsHint bool) error
	Sync() error
	Say(text string) error
	GetKeys(keys ...string) error
	SetKey(key string, value any) error
	SetNotify(keys ...string) error
	StatusUpdate(status int) error
	Authenticated() bool
	Close()
}

// Dialer builds a fresh single-connection transport wired to the given
// event handlers. Called once per connect attempt.
type Dialer func(ev session.Events) Transport

const (
	shuffleShortDuration = 2 * time.Minute
	shuffleLongDuration  = 10 * time.Minute

	scoutCacheSize = 256
)

type Options struct {
	Conf    config.Config
	Meta    *metadata.Store
	Journal *eventlog.Journal
	Names   map[string]int // lowercased species name -> dex number
	Logger  *log.Logger
	Dial    Dialer // nil in practice mode

	Now  func() time.Time // nil means time.Now
	Rand *rand.Rand       // nil means a time-seeded source
}

type Client struct {
	conf    config.Config
	meta    *metadata.Store
	journal *eventlog.Journal
	names   map[string]int
	log     *log.Logger
	dial    Dialer
	now     func() time.Time
	rng     *rand.Rand

	state *dexstate.Store

	mu        sync.Mutex
	transport Transport
	table     ids.Table
	tableSet  bool
	evalCfg   eligibility.Config
	capDex    int

	slot         int
	goalLocal    int // local pseudo-id of the goal milestone, 0 if none
	goalReported bool

	itemIndex        int // next expected ReceivedItems index
	shinyTotal       int
	consumableTotals [ids.ConsumableCount]int
	trapTotals       [ids.TrapKinds]int
	trapApplied      [ids.TrapKinds]int
	ledgerSeeded     bool

	pendingChecks []int // local ids awaiting a live connection

	reconnecting atomic.Bool
	autoStop     atomic.Bool

	scouts *lru.Cache[int64, protocol.NetworkItem]
}

func New(opts Options) *Client {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(now().UnixNano()))
	}
	meta := opts.Meta
	if meta == nil {
		meta = metadata.Empty()
	}
	scouts, _ := lru.New[int64, protocol.NetworkItem](scoutCacheSize)
	c := &Client{
		conf:    opts.Conf,
		meta:    meta,
		journal: opts.Journal,
		names:   opts.Names,
		log:     opts.Logger,
		dial:    opts.Dial,
		now:     now,
		rng:     rng,
		state:   dexstate.New(),
		capDex:  ids.MaxDex,
		scouts:  scouts,
	}
	c.evalCfg = eligibility.Config{
		Practice:     opts.Conf.PracticeMode || opts.Dial == nil,
		RegionGating: opts.Conf.RegionGating,
		EnabledGens:  opts.Conf.EnabledGens(),
	}
	return c
}

// State exposes the authoritative store for read paths (UI, tests).
func (c *Client) State() *dexstate.Store { return c.state }

// Table returns the active offset table. Valid only after a login.
func (c *Client) Table() (ids.Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table, c.tableSet
}

func (c *Client) EvalConfig() eligibility.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evalCfg
}

func (c *Client) events() session.Events {
	return session.Events{
		Connected:     c.onConnected,
		ItemsReceived: c.onItems,
		LocationInfo:  c.onLocationInfo,
		RoomUpdate:    c.onRoomUpdate,
		PrintJSON:     c.onPrintJSON,
		Retrieved:     c.onRetrieved,
		SetReply:      c.onSetReply,
		Disconnected:  c.onDisconnected,
	}
}

// Connect dials and logs in. Authentication rejections come back as
// *session.AuthError and must not be retried by the caller.
func (c *Client) Connect(ctx context.Context) error {
	if c.dial == nil {
		return nil // practice mode
	}
	t := c.dial(c.events())
	// Registered before Login: the Connected handler fires inside the
	// handshake and already needs to send.
	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
	if err := t.Login(ctx); err != nil {
		c.mu.Lock()
		if c.transport == t {
			c.transport = nil
		}
		c.mu.Unlock()
		t.Close()
		return err
	}
	return nil
}

func (c *Client) Close() {
	c.autoStop.Store(true)
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t != nil {
		t.Close()
	}
}

// slotData is the per-slot rule configuration delivered in the login
// snapshot.
type slotData struct {
	Goal         int  `json:"goal"`
	Generation   int  `json:"generation"`
	TypeLocks    bool `json:"type_locks"`
	RegionGating bool `json:"region_gating"`
}

func (c *Client) onConnected(p *protocol.ConnectedPacket) {
	all := make([]int64, 0, len(p.MissingLocations)+len(p.CheckedLocations))
	all = append(all, p.MissingLocations...)
	all = append(all, p.CheckedLocations...)
	table := ids.Detect(all)

	var sd slotData
	if len(p.SlotData) > 0 {
		if err := json.Unmarshal(p.SlotData, &sd); err != nil && c.log != nil {
			c.log.Printf("slot_data unreadable, using defaults: %v", err)
		}
	}
	capDex := ids.MaxDex
	if sd.Generation >= 1 && sd.Generation <= len(metadata.GenerationCaps) {
		capDex = metadata.Cap(sd.Generation)
	}

	snap := dexstate.Snapshot{}
	for _, loc := range p.CheckedLocations {
		if local, ok := table.ToLocal(loc); ok {
			snap.Checked = append(snap.Checked, local)
		}
	}
	c.state.ResetFrom(snap)

	c.mu.Lock()
	c.table = table
	c.tableSet = true
	c.capDex = capDex
	c.slot = p.Slot
	c.itemIndex = 0
	c.shinyTotal = 0
	c.consumableTotals = [ids.ConsumableCount]int{}
	c.trapTotals = [ids.TrapKinds]int{}
	c.ledgerSeeded = false
	c.goalReported = false
	c.goalLocal = 0
	if idx, ok := milestones.ThresholdIndex(sd.Goal); ok {
		c.goalLocal = ids.GlobalMilestoneLocal(idx)
	}
	c.evalCfg.TypeLocks = sd.TypeLocks
	c.evalCfg.RegionGating = c.conf.RegionGating || sd.RegionGating
	regionGating := c.evalCfg.RegionGating
	t := c.transport
	c.mu.Unlock()

	if regionGating {
		// The first region is always open; later passes come from
		// reaching the previous region's cap milestone. The snapshot may
		// already contain cap milestones from an earlier session, so
		// earned passes are rebuilt here rather than waiting for a scan
		// that will never re-emit them.
		c.state.GrantRegion(metadata.RegionNames[0])
		for _, local := range snap.Checked {
			c.grantRegionFor(local)
		}
	}

	c.record(eventlog.Entry{Kind: "connect", Detail: fmt.Sprintf("table v%d", table.Version)})
	if c.log != nil {
		c.log.Printf("authenticated as slot %d, offset table v%d, cap %d", p.Slot, table.Version, capDex)
	}

	c.checkStarters(table, t, p.CheckedLocations)
	c.subscribeLedger(t)
	c.scanMilestones()
	c.replayPending()
}

// checkStarters confirms the fixed starter location band without a
// guess. Locations the server already has checked are skipped.
func (c *Client) checkStarters(table ids.Table, t Transport, alreadyChecked []int64) {
	have := make(map[int64]struct{}, len(alreadyChecked))
	for _, loc := range alreadyChecked {
		have[loc] = struct{}{}
	}
	var send []int64
	for i := 0; i < ids.StarterCount; i++ {
		loc := table.StarterLocation(i)
		c.state.MarkChecked(ids.StarterLocalBase + i)
		if _, ok := have[loc]; !ok {
			send = append(send, loc)
		}
	}
	if len(send) > 0 && t != nil {
		if err := t.Check(send...); err != nil && c.log != nil {
			c.log.Printf("starter checks: %v", err)
		}
	}
}

func (c *Client) onRoomUpdate(p protocol.RoomUpdatePacket) {
	c.mu.Lock()
	table, ok := c.table, c.tableSet
	c.mu.Unlock()
	if !ok {
		return
	}
	changed := false
	for _, loc := range p.CheckedLocations {
		local, valid := table.ToLocal(loc)
		if !valid {
			continue
		}
		if c.state.MarkChecked(local) {
			changed = true
			c.record(eventlog.Entry{Kind: "check", Local: local, Network: loc, Detail: "room_update"})
		}
	}
	if changed {
		c.scanMilestones()
	}
}

func (c *Client) onPrintJSON(p protocol.PrintJSONPacket) {
	if c.log == nil {
		return
	}
	text := p.Message
	if text == "" {
		for _, part := range p.Data {
			text += part.Text
		}
	}
	if text != "" {
		c.log.Printf("server: %s", text)
	}
}

func (c *Client) onDisconnected() {
	c.state.ClearSession()
	c.scouts.Purge()
	c.mu.Lock()
	c.transport = nil
	c.tableSet = false
	pending := len(c.pendingChecks)
	c.mu.Unlock()
	c.record(eventlog.Entry{Kind: "disconnect"})
	if c.log != nil {
		c.log.Printf("session lost, %d checks pending", pending)
	}
	if pending > 0 {
		c.maybeReconnect()
	}
}

// Say forwards a chat line.
func (c *Client) Say(text string) error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return nil
	}
	return t.Say(text)
}

func (c *Client) record(e eventlog.Entry) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(e); err != nil && c.log != nil {
		c.log.Printf("journal: %v", err)
	}
}
