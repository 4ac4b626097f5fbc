package protocol

import "encoding/json"

// Version of the network protocol spoken by this client.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Build int `json:"build"`
}

var ClientVersion = Version{Major: 0, Minor: 5, Build: 1}

// CONNECT (client -> server)
type ConnectPacket struct {
	Cmd           string   `json:"cmd"`
	Game          string   `json:"game"`
	Name          string   `json:"name"`
	Password      string   `json:"password,omitempty"`
	UUID          string   `json:"uuid"`
	Version       Version  `json:"version"`
	ItemsHandling int      `json:"items_handling"`
	Tags          []string `json:"tags,omitempty"`
	SlotData      bool     `json:"slot_data"`
}

// ItemsHandling flags for ConnectPacket.
const (
	ItemsHandlingNone       = 0
	ItemsHandlingOtherWorld = 1 << 0
	ItemsHandlingOwnWorld   = 1 << 1
	ItemsHandlingStarting   = 1 << 2
	ItemsHandlingAll        = ItemsHandlingOtherWorld | ItemsHandlingOwnWorld | ItemsHandlingStarting
)

// ROOMINFO (server -> client): pre-auth handshake.
type RoomInfoPacket struct {
	Cmd     string   `json:"cmd"`
	Version Version  `json:"version"`
	Games   []string `json:"games,omitempty"`
	Seed    string   `json:"seed_name,omitempty"`
}

// CONNECTED (server -> client): the authoritative post-login snapshot.
// Used exactly once per connection to seed local state.
type ConnectedPacket struct {
	Cmd              string          `json:"cmd"`
	Team             int             `json:"team"`
	Slot             int             `json:"slot"`
	MissingLocations []int64         `json:"missing_locations"`
	CheckedLocations []int64         `json:"checked_locations"`
	SlotData         json.RawMessage `json:"slot_data,omitempty"`
	Players          []PlayerInfo    `json:"players,omitempty"`
}

type PlayerInfo struct {
	Team  int    `json:"team"`
	Slot  int    `json:"slot"`
	Alias string `json:"alias,omitempty"`
	Name  string `json:"name"`
}

// CONNECTIONREFUSED (server -> client)
type ConnectionRefusedPacket struct {
	Cmd    string   `json:"cmd"`
	Errors []string `json:"errors"`
}

// NetworkItem is a single grant or scouted location payload.
type NetworkItem struct {
	Item     int64 `json:"item"`
	Location int64 `json:"location"`
	Player   int   `json:"player"`
	Flags    int   `json:"flags"`
}

// RECEIVEDITEMS (server -> client). Index is the position of the first
// item within the server's full item log; index 0 is a full replay.
type ReceivedItemsPacket struct {
	Cmd   string        `json:"cmd"`
	Index int           `json:"index"`
	Items []NetworkItem `json:"items"`
}

// LOCATIONCHECKS (client -> server)
type LocationChecksPacket struct {
	Cmd       string  `json:"cmd"`
	Locations []int64 `json:"locations"`
}

// LOCATIONSCOUTS (client -> server)
type LocationScoutsPacket struct {
	Cmd          string  `json:"cmd"`
	Locations    []int64 `json:"locations"`
	CreateAsHint int     `json:"create_as_hint"`
}

// LOCATIONINFO (server -> client): reply to LocationScouts.
type LocationInfoPacket struct {
	Cmd       string        `json:"cmd"`
	Locations []NetworkItem `json:"locations"`
}

// ROOMUPDATE (server -> client): incremental checked-location updates.
type RoomUpdatePacket struct {
	Cmd              string  `json:"cmd"`
	CheckedLocations []int64 `json:"checked_locations,omitempty"`
}

// SAY (client -> server)
type SayPacket struct {
	Cmd  string `json:"cmd"`
	Text string `json:"text"`
}

// PRINTJSON (server -> client): chat and event lines.
type PrintJSONPacket struct {
	Cmd     string          `json:"cmd"`
	Type    string          `json:"type,omitempty"`
	Data    []PrintJSONPart `json:"data"`
	Slot    int             `json:"slot,omitempty"`
	Message string          `json:"message,omitempty"`
}

type PrintJSONPart struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// BOUNCE / BOUNCED: tagged payload round-trip. The client uses these as
// its liveness probe while authenticated.
type BouncePacket struct {
	Cmd   string          `json:"cmd"`
	Games []string        `json:"games,omitempty"`
	Slots []int           `json:"slots,omitempty"`
	Tags  []string        `json:"tags,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type BouncedPacket struct {
	Cmd  string          `json:"cmd"`
	Tags []string        `json:"tags,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// GET / RETRIEVED / SET / SETNOTIFY / SETREPLY: shared key-value storage.
type GetPacket struct {
	Cmd  string   `json:"cmd"`
	Keys []string `json:"keys"`
}

type RetrievedPacket struct {
	Cmd  string                     `json:"cmd"`
	Keys map[string]json.RawMessage `json:"keys"`
}

type SetPacket struct {
	Cmd        string         `json:"cmd"`
	Key        string         `json:"key"`
	Default    any            `json:"default,omitempty"`
	WantReply  bool           `json:"want_reply"`
	Operations []SetOperation `json:"operations"`
}

type SetOperation struct {
	Operation string `json:"operation"`
	Value     any    `json:"value"`
}

type SetNotifyPacket struct {
	Cmd  string   `json:"cmd"`
	Keys []string `json:"keys"`
}

type SetReplyPacket struct {
	Cmd           string          `json:"cmd"`
	Key           string          `json:"key"`
	Value         json.RawMessage `json:"value"`
	OriginalValue json.RawMessage `json:"original_value,omitempty"`
}

// SYNC (client -> server): requests a full ReceivedItems replay.
type SyncPacket struct {
	Cmd string `json:"cmd"`
}

// STATUSUPDATE (client -> server)
type StatusUpdatePacket struct {
	Cmd    string `json:"cmd"`
	Status int    `json:"status"`
}

// Client status values for StatusUpdate.
const (
	StatusConnected = 5
	StatusReady     = 10
	StatusPlaying   = 20
	StatusGoal      = 30
)
