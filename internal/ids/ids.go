// Package ids translates between network-protocol numeric ids and the
// client's local semantic ids. All translation goes through a Table value
// selected once per connection; tables are immutable.
package ids

// Local semantic id layout, shared by both table versions.
const (
	MaxDex = 1025 // base creature ids are 1..MaxDex

	StarterLocalBase = 1501 // 20 consecutive starter-range ids
	StarterCount     = 20

	GlobalLocalBase = 2001 // global milestone pseudo-ids
	GlobalBandCap   = 128

	TypeLocalBase = 2201 // per-type milestone pseudo-ids
	TypeCount     = 18
	TypeSteps     = 9
)

// Kind classifies a network item id.
type Kind int

const (
	KindUnknown Kind = iota
	KindCreature
	KindShinyUpgrade
	KindTypeKey
	KindConsumable
	KindTrap
)

func (k Kind) String() string {
	switch k {
	case KindCreature:
		return "creature"
	case KindShinyUpgrade:
		return "shiny_upgrade"
	case KindTypeKey:
		return "type_key"
	case KindConsumable:
		return "consumable"
	case KindTrap:
		return "trap"
	default:
		return "unknown"
	}
}

// Consumable payload values.
const (
	ConsumableReveal = 0
	ConsumableHint   = 1
	ConsumableInfo   = 2
	ConsumableCount  = 3
)

// Trap payload values.
const (
	TrapShuffleShort = 0
	TrapShuffleLong  = 1
	TrapDerp         = 2
	TrapRelease      = 3
	TrapKinds        = 4
)

// Table is the active mapping from local semantic ids to network ids for
// one session. Exactly one of the two known versions is active; it is
// selected once from the post-login snapshot and never switched.
type Table struct {
	Version int

	CreatureLocBase int64 // network location id of dex #1
	StarterLocBase  int64 // network location id of starter index 0
	GlobalLocBase   int64 // network location id of global threshold index 0
	TypeLocBase     int64 // network location id of (type 0, step 0)
	TypeLocStride   int64

	CreatureItemBase   int64 // network item id of dex #1
	ShinyItem          int64
	TypeKeyItemBase    int64
	ConsumableItemBase int64
	TrapItemBase       int64
}

// v2 ids live in a reserved band well above everything v1 ever emits.
const v2ReservedBase = 7_680_000

// V1 is the legacy table: one uniform offset for every band.
var V1 = func() Table {
	const base = 3_920_000
	return Table{
		Version:         1,
		CreatureLocBase: base + 1,
		StarterLocBase:  base + StarterLocalBase,
		GlobalLocBase:   base + GlobalLocalBase,
		TypeLocBase:     base + TypeLocalBase,
		TypeLocStride:   TypeSteps,

		CreatureItemBase:   base + 1,
		ShinyItem:          base + 1901,
		TypeKeyItemBase:    base + 1921,
		ConsumableItemBase: base + 1951,
		TrapItemBase:       base + 1961,
	}
}()

// V2 uses per-band bases inside the reserved band.
var V2 = Table{
	Version:         2,
	CreatureLocBase: 7_680_101,
	StarterLocBase:  7_682_001,
	GlobalLocBase:   7_683_001,
	TypeLocBase:     7_684_001,
	TypeLocStride:   16,

	CreatureItemBase:   7_680_101,
	ShinyItem:          7_685_001,
	TypeKeyItemBase:    7_685_101,
	ConsumableItemBase: 7_685_201,
	TrapItemBase:       7_685_301,
}

// Detect selects the offset table from the union of missing and checked
// location ids in the login snapshot. Call exactly once per connection.
func Detect(locationIDs []int64) Table {
	for _, id := range locationIDs {
		if id >= v2ReservedBase {
			return V2
		}
	}
	return V1
}

// CreatureLocation returns the network location id for a dex number.
func (t Table) CreatureLocation(dex int) int64 {
	return t.CreatureLocBase + int64(dex-1)
}

// StarterLocation returns the network location id for starter index i.
func (t Table) StarterLocation(i int) int64 {
	return t.StarterLocBase + int64(i)
}

// GlobalMilestoneLocation returns the network location id for the global
// milestone at threshold index i.
func (t Table) GlobalMilestoneLocation(i int) int64 {
	return t.GlobalLocBase + int64(i)
}

// TypeMilestoneLocation returns the network location id for the per-type
// milestone (typeIdx, stepIdx).
func (t Table) TypeMilestoneLocation(typeIdx, stepIdx int) int64 {
	return t.TypeLocBase + int64(typeIdx)*t.TypeLocStride + int64(stepIdx)
}

// ToLocation maps a local semantic id (creature, starter, or milestone
// pseudo-id) to its network location id.
func (t Table) ToLocation(local int) (int64, bool) {
	switch {
	case local >= 1 && local <= MaxDex:
		return t.CreatureLocation(local), true
	case local >= StarterLocalBase && local < StarterLocalBase+StarterCount:
		return t.StarterLocation(local - StarterLocalBase), true
	case local >= GlobalLocalBase && local < GlobalLocalBase+GlobalBandCap:
		return t.GlobalMilestoneLocation(local - GlobalLocalBase), true
	case local >= TypeLocalBase && local < TypeLocalBase+TypeCount*TypeSteps:
		rel := local - TypeLocalBase
		return t.TypeMilestoneLocation(rel/TypeSteps, rel%TypeSteps), true
	}
	return 0, false
}

// ToLocal maps a network location id back to its local semantic id.
func (t Table) ToLocal(network int64) (int, bool) {
	switch {
	case network >= t.CreatureLocBase && network < t.CreatureLocBase+MaxDex:
		return int(network-t.CreatureLocBase) + 1, true
	case network >= t.StarterLocBase && network < t.StarterLocBase+StarterCount:
		return StarterLocalBase + int(network-t.StarterLocBase), true
	case network >= t.GlobalLocBase && network < t.GlobalLocBase+GlobalBandCap:
		return GlobalLocalBase + int(network-t.GlobalLocBase), true
	case network >= t.TypeLocBase && network < t.TypeLocBase+int64(TypeCount)*t.TypeLocStride:
		rel := network - t.TypeLocBase
		typeIdx := int(rel / t.TypeLocStride)
		step := int(rel % t.TypeLocStride)
		if step >= TypeSteps {
			return 0, false
		}
		return TypeLocalBase + typeIdx*TypeSteps + step, true
	}
	return 0, false
}

// IsBaseCreature reports whether a local id is a base creature id (not a
// starter-range id or milestone pseudo-id).
func IsBaseCreature(local int) bool {
	return local >= 1 && local <= MaxDex
}

// GlobalMilestoneLocal returns the local pseudo-id for threshold index i.
func GlobalMilestoneLocal(i int) int {
	return GlobalLocalBase + i
}

// TypeMilestoneLocal returns the local pseudo-id for (typeIdx, stepIdx).
func TypeMilestoneLocal(typeIdx, stepIdx int) int {
	return TypeLocalBase + typeIdx*TypeSteps + stepIdx
}

// CreatureItem returns the network item id that grants a dex number.
func (t Table) CreatureItem(dex int) int64 {
	return t.CreatureItemBase + int64(dex-1)
}

// TypeKeyItem returns the network item id of a type key.
func (t Table) TypeKeyItem(typeIdx int) int64 {
	return t.TypeKeyItemBase + int64(typeIdx)
}

// ConsumableItem returns the network item id of a consumable kind.
func (t Table) ConsumableItem(kind int) int64 {
	return t.ConsumableItemBase + int64(kind)
}

// TrapItem returns the network item id of a trap kind.
func (t Table) TrapItem(trap int) int64 {
	return t.TrapItemBase + int64(trap)
}

// ClassifyItem maps a network item id to its kind and local payload:
// dex number for creatures, type index for type keys, consumable kind,
// or trap kind. Unknown ids classify as KindUnknown with payload 0.
func (t Table) ClassifyItem(network int64) (Kind, int) {
	switch {
	case network >= t.CreatureItemBase && network < t.CreatureItemBase+MaxDex:
		return KindCreature, int(network-t.CreatureItemBase) + 1
	case network == t.ShinyItem:
		return KindShinyUpgrade, 0
	case network >= t.TypeKeyItemBase && network < t.TypeKeyItemBase+TypeCount:
		return KindTypeKey, int(network - t.TypeKeyItemBase)
	case network >= t.ConsumableItemBase && network < t.ConsumableItemBase+ConsumableCount:
		return KindConsumable, int(network - t.ConsumableItemBase)
	case network >= t.TrapItemBase && network < t.TrapItemBase+TrapKinds:
		return KindTrap, int(network - t.TrapItemBase)
	}
	return KindUnknown, 0
}
