package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeFrame_RoutesByCmd(t *testing.T) {
	frame := []byte(`[
	  {"cmd":"RoomInfo","version":{"major":0,"minor":5,"build":1}},
	  {"cmd":"ReceivedItems","index":0,"items":[{"item":3920001,"location":3920001,"player":1,"flags":1}]}
	]`)

	packets, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if len(packets) != 2 {
		t.Fatalf("got %d packets want 2", len(packets))
	}

	base, err := DecodeBase(packets[0])
	if err != nil || base.Cmd != CmdRoomInfo {
		t.Fatalf("packet 0: cmd=%q err=%v", base.Cmd, err)
	}
	base, err = DecodeBase(packets[1])
	if err != nil || base.Cmd != CmdReceivedItems {
		t.Fatalf("packet 1: cmd=%q err=%v", base.Cmd, err)
	}

	var ri ReceivedItemsPacket
	if err := json.Unmarshal(packets[1], &ri); err != nil {
		t.Fatalf("unmarshal ReceivedItems: %v", err)
	}
	if ri.Index != 0 || len(ri.Items) != 1 || ri.Items[0].Item != 3920001 {
		t.Fatalf("unexpected ReceivedItems: %+v", ri)
	}
}

func TestEncodeFrame_IsArray(t *testing.T) {
	b, err := EncodeFrame(SayPacket{Cmd: CmdSay, Text: "hi"})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("frame is not a JSON array: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("got %d packets want 1", len(raw))
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	if _, err := DecodeFrame([]byte(`{"cmd":"Say"}`)); err == nil {
		t.Fatalf("bare object is not a frame")
	}
	if _, err := DecodeFrame([]byte(`not json`)); err == nil {
		t.Fatalf("garbage should fail")
	}
}
