package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	connectSchema := compile("connect.schema.json")
	connectedSchema := compile("connected.schema.json")
	receivedSchema := compile("received_items.schema.json")
	locInfoSchema := compile("location_info.schema.json")

	var connect any
	_ = json.Unmarshal([]byte(`{
	  "cmd":"Connect",
	  "game":"PokedexHunt",
	  "name":"RedsDex",
	  "uuid":"2d4c6f0e-2a6b-4c1e-9a39-3cf21f1a9f01",
	  "version":{"major":0,"minor":5,"build":1},
	  "items_handling":7,
	  "slot_data":true
	}`), &connect)
	validate(connectSchema, connect)

	var connected any
	_ = json.Unmarshal([]byte(`{
	  "cmd":"Connected",
	  "team":0,
	  "slot":1,
	  "missing_locations":[3920001,3920002,3920003],
	  "checked_locations":[3921501],
	  "slot_data":{"generation":3,"goal":386,"type_locks":true},
	  "players":[{"team":0,"slot":1,"name":"RedsDex"}]
	}`), &connected)
	validate(connectedSchema, connected)

	var received any
	_ = json.Unmarshal([]byte(`{
	  "cmd":"ReceivedItems",
	  "index":0,
	  "items":[
	    {"item":3920025,"location":3920150,"player":2,"flags":1},
	    {"item":3921901,"location":3920007,"player":1,"flags":0}
	  ]
	}`), &received)
	validate(receivedSchema, received)

	var locInfo any
	_ = json.Unmarshal([]byte(`{
	  "cmd":"LocationInfo",
	  "locations":[{"item":3920150,"location":3920150,"player":1,"flags":1}]
	}`), &locInfo)
	validate(locInfoSchema, locInfo)
}
