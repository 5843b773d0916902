package runner

import (
	"fmt"

	plog "blocksworld.ai/internal/persistence/log"
	"blocksworld.ai/internal/sim/world"
)

// Replay feeds a recorded tick log into a fresh world built from the same
// layout and config, checking every state digest. It returns the number of
// ticks verified.
func Replay(w *world.World, eventsDir string) (uint64, error) {
	files, err := plog.ListFiles(eventsDir, "events")
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no events files found in %s", eventsDir)
	}

	var checked uint64
	for _, path := range files {
		err := plog.ReadTicks(path, func(entry world.TickLogEntry) error {
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
			}
			joins := make([]world.JoinRequest, 0, len(entry.Joins))
			for _, j := range entry.Joins {
				joins = append(joins, world.JoinRequest{Name: j.Name, Kind: j.Kind})
			}
			acts := make([]world.ActionEnvelope, 0, len(entry.Actions))
			for _, ra := range entry.Actions {
				acts = append(acts, world.ActionEnvelope{AgentID: ra.AgentID, Act: ra.Act})
			}
			tick, digest := w.StepOnce(joins, entry.Leaves, acts)
			if digest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
			}
			checked++
			return nil
		})
		if err != nil {
			return checked, err
		}
	}
	return checked, nil
}
