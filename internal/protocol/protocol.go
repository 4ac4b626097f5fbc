package protocol

import "encoding/json"

// Packet commands, client -> server.
const (
	CmdConnect        = "Connect"
	CmdSync           = "Sync"
	CmdLocationChecks = "LocationChecks"
	CmdLocationScouts = "LocationScouts"
	CmdSay            = "Say"
	CmdBounce         = "Bounce"
	CmdGet            = "Get"
	CmdSet            = "Set"
	CmdSetNotify      = "SetNotify"
	CmdStatusUpdate   = "StatusUpdate"
)

// Packet commands, server -> client.
const (
	CmdRoomInfo          = "RoomInfo"
	CmdConnected         = "Connected"
	CmdConnectionRefused = "ConnectionRefused"
	CmdReceivedItems     = "ReceivedItems"
	CmdLocationInfo      = "LocationInfo"
	CmdRoomUpdate        = "RoomUpdate"
	CmdPrintJSON         = "PrintJSON"
	CmdBounced           = "Bounced"
	CmdRetrieved         = "Retrieved"
	CmdSetReply          = "SetReply"
)

// BasePacket lets us route unknown JSON packets by command.
type BasePacket struct {
	Cmd string `json:"cmd"`
}

// DecodeFrame splits one websocket text frame into its raw packets.
// The wire format is a JSON array of packets.
func DecodeFrame(b []byte) ([]json.RawMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func DecodeBase(b []byte) (BasePacket, error) {
	var p BasePacket
	err := json.Unmarshal(b, &p)
	return p, err
}

// EncodeFrame wraps outbound packets into one wire frame.
func EncodeFrame(packets ...any) ([]byte, error) {
	return json.Marshal(packets)
}
