package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"blocksworld.ai/internal/sim/layout"
	"blocksworld.ai/internal/sim/runner"
	"blocksworld.ai/internal/sim/tuning"
	"blocksworld.ai/internal/sim/world"
)

func main() {
	flags := pflag.NewFlagSet("replay", pflag.ContinueOnError)
	var (
		eventsDir  = flags.String("events", "", "run dir containing events-*.jsonl.zst")
		layoutPath = flags.String("layout", "", "layout the run used; empty regenerates from --seed")
		tuningPath = flags.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml the run used")
		seed       = flags.Int64("seed", 0, "seed the run used (default: tuning seed)")
		worldID    = flags.String("world", "sim", "world id the run used")
	)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *eventsDir == "" {
		fmt.Fprintln(os.Stderr, "missing --events")
		os.Exit(2)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	if *seed == 0 {
		*seed = tune.Seed
	}
	lay, err := layout.LoadOrGenerate(*layoutPath, *seed)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load layout:", err)
		os.Exit(1)
	}
	cfg := world.ConfigFromTuning(*worldID, tune)
	cfg.Seed = *seed
	w, err := world.New(cfg, lay)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	checked, err := runner.Replay(w, *eventsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v (after %d ticks)\n", err, checked)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks layout=%s done=%t\n", checked, lay.Name, w.Done())
}
