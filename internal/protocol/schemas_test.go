package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"blocksworld.ai/internal/protocol"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	require.NoErrorf(t, err, "compile %s", name)
	return s
}

// roundTrip marshals a Go message and decodes it back into a generic value,
// the shape jsonschema validates.
func roundTrip(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var out any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestSchemas_ValidateSamples(t *testing.T) {
	helloSchema := compileSchema(t, "hello.schema.json")
	welcomeSchema := compileSchema(t, "welcome.schema.json")
	obsSchema := compileSchema(t, "obs.schema.json")
	actSchema := compileSchema(t, "act.schema.json")

	var hello any
	require.NoError(t, json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "agent_name":"bot1",
	  "agent_kind":"colorblind",
	  "capabilities":{"max_queue":8}
	}`), &hello))
	require.NoError(t, helloSchema.Validate(hello))

	var welcome any
	require.NoError(t, json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "agent_id":"A1",
	  "agent_kind":"colorblind",
	  "world_params":{"tick_rate_hz":5,"width":12,"height":10,"obs_radius":1,"capacity":1,"seed":7}
	}`), &welcome))
	require.NoError(t, welcomeSchema.Validate(welcome))

	var obs any
	require.NoError(t, json.Unmarshal([]byte(`{
	  "type":"OBS",
	  "protocol_version":"1.0",
	  "tick":3,
	  "agent_id":"A1",
	  "state":{
	    "door_room_0":{"obj_id":"door_room_0","class_inheritance":["Door"],"location":[3,4],"is_traversable":false,"is_open":false,"room_name":"room_0"},
	    "block_1":{"obj_id":"block_1","class_inheritance":["CollectableBlock"],"location":[4,3],"is_traversable":true,"is_collectable":true,"visualization":{"shape":"square"}}
	  },
	  "team_members":["A1","A2"],
	  "messages":[{"id":"M000001","tick":2,"from":"A2","content":"Found square"}],
	  "events":[]
	}`), &obs))
	require.NoError(t, obsSchema.Validate(obs))

	var act any
	require.NoError(t, json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "tick":3,
	  "agent_id":"A1",
	  "action":"OpenDoorAction",
	  "params":{"object_id":"door_room_0"},
	  "messages":["Moving to door of room_0"]
	}`), &act))
	require.NoError(t, actSchema.Validate(act))
}

func TestSchemas_GoMessagesConform(t *testing.T) {
	obsSchema := compileSchema(t, "obs.schema.json")
	actSchema := compileSchema(t, "act.schema.json")

	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            1,
		AgentID:         "A1",
		State: map[string]protocol.ObjectObs{
			"ghost_0": {
				ObjID:            "ghost_0",
				ClassInheritance: []string{protocol.ClassGhostBlock},
				Location:         protocol.Loc{5, 6},
				IsTraversable:    true,
				Visualization:    &protocol.Visualization{Shape: protocol.ShapeCircle},
			},
		},
		TeamMembers: []string{"A1"},
		Messages:    []protocol.ChatMsg{},
		Events:      []protocol.Event{},
	}
	require.NoError(t, obsSchema.Validate(roundTrip(t, obs)))

	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            1,
		AgentID:         "A1",
		Action:          protocol.ActGrab,
		Params:          protocol.ActionParams{ObjectID: "block_1"},
	}
	require.NoError(t, actSchema.Validate(roundTrip(t, act)))

	// A null action carries no action name.
	require.NoError(t, actSchema.Validate(roundTrip(t, protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		AgentID:         "A1",
	})))
}
