package world

import (
	"encoding/hex"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"blocksworld.ai/internal/protocol"
)

// digestEnc is core deterministic CBOR: sorted map keys, shortest ints.
// The same world state always produces identical bytes.
var digestEnc cbor.EncMode

func init() {
	var err error
	digestEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("world: CBOR encoder initialization failed: " + err.Error())
	}
}

type digestState struct {
	Tick     uint64        `cbor:"1,keyasint"`
	Seed     int64         `cbor:"2,keyasint"`
	Doors    []digestDoor  `cbor:"3,keyasint"`
	Blocks   []digestBlock `cbor:"4,keyasint"`
	Agents   []digestAgent `cbor:"5,keyasint"`
	Messages int           `cbor:"6,keyasint"`
	Layout   string        `cbor:"7,keyasint"`
}

type digestDoor struct {
	ID   string `cbor:"1,keyasint"`
	Open bool   `cbor:"2,keyasint"`
}

type digestBlock struct {
	ID        string       `cbor:"1,keyasint"`
	Loc       protocol.Loc `cbor:"2,keyasint"`
	CarriedBy string       `cbor:"3,keyasint"`
}

type digestAgent struct {
	ID       string       `cbor:"1,keyasint"`
	Kind     string       `cbor:"2,keyasint"`
	Loc      protocol.Loc `cbor:"3,keyasint"`
	Carrying []string     `cbor:"4,keyasint"`
}

func (w *World) stateDigest(nowTick uint64) string {
	st := digestState{
		Tick:     nowTick,
		Seed:     w.cfg.Seed,
		Messages: len(w.messages),
		Layout:   w.layout.Name,
	}
	for _, id := range sortedKeys(w.doors) {
		st.Doors = append(st.Doors, digestDoor{ID: id, Open: w.doors[id].Open})
	}
	for _, id := range sortedKeys(w.blocks) {
		b := w.blocks[id]
		st.Blocks = append(st.Blocks, digestBlock{ID: id, Loc: b.Loc, CarriedBy: b.CarriedBy})
	}
	for _, id := range w.AgentIDs() {
		a := w.agents[id]
		st.Agents = append(st.Agents, digestAgent{ID: id, Kind: a.Kind, Loc: a.Loc, Carrying: a.Carrying})
	}
	b, err := digestEnc.Marshal(st)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
