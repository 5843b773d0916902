// Command sim plays controllers against an in-process world as fast as
// possible and prints the outcome.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"blocksworld.ai/internal/persistence/indexdb"
	persistlog "blocksworld.ai/internal/persistence/log"
	"blocksworld.ai/internal/sim/layout"
	"blocksworld.ai/internal/sim/render"
	"blocksworld.ai/internal/sim/runner"
	"blocksworld.ai/internal/sim/tuning"
	"blocksworld.ai/internal/sim/world"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	exitFatal = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("sim", pflag.ContinueOnError)
	var (
		layoutPath = flags.String("layout", "", "layout file (.yaml or .jsonc); empty generates one from --seed")
		tuningPath = flags.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		seed       = flags.Int64("seed", 0, "run seed (default: tuning seed)")
		agents     = flags.StringSlice("agent", nil, "agent as name:kind, repeatable (default: one colorblind agent)")
		maxTicks   = flags.Int("max_ticks", 0, "tick limit (default: tuning max_ticks)")
		dataDir    = flags.String("data", "", "write tick/audit logs and the run index under this directory")
		plain      = flags.Bool("plain", false, "render the final map without colour")
		verbose    = flags.BoolP("verbose", "v", false, "log controller decisions")
	)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	logger := log.New(os.Stderr, "[sim] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Printf("load tuning: %v", err)
			return exitError
		}
		tune = tuning.Defaults()
	}
	if *seed == 0 {
		*seed = tune.Seed
	}
	specs, err := parseAgents(*agents)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	lay, err := layout.LoadOrGenerate(*layoutPath, *seed)
	if err != nil {
		logger.Printf("load layout: %v", err)
		return exitError
	}
	cfg := world.ConfigFromTuning("sim", tune)
	cfg.Seed = *seed
	w, err := world.New(cfg, lay)
	if err != nil {
		logger.Printf("world: %v", err)
		return exitError
	}

	rcfg := runner.Config{
		Agents:   specs,
		MaxTicks: *maxTicks,
		Seed:     *seed,
		Agent:    tune.Agent,
	}
	if rcfg.MaxTicks <= 0 {
		rcfg.MaxTicks = tune.MaxTicks
	}
	var opts []runner.Option
	if *verbose {
		opts = append(opts, runner.WithLogger(logger))
	}

	if *dataDir != "" {
		rcfg.RunID = uuid.NewString()
		runDir := filepath.Join(*dataDir, "runs", rcfg.RunID)
		tickLog := persistlog.NewTickLogger(runDir)
		auditLog := persistlog.NewAuditLogger(runDir)
		defer tickLog.Close()
		defer auditLog.Close()

		idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index.sqlite"))
		if err != nil {
			logger.Printf("open index: %v", err)
			return exitError
		}
		defer idx.Close()

		opts = append(opts,
			runner.WithIndex(idx),
			runner.WithTickLoggers(tickLog, idx),
			runner.WithAuditLoggers(auditLog, idx),
		)
		logger.Printf("logging run %s to %s", rcfg.RunID, runDir)
	}
	r := runner.New(w, rcfg, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	res, runErr := r.Run(ctx)

	fmt.Println(render.New(*plain).Frame(w.View()))
	fmt.Println()
	printSummary(res, lay, started)

	switch {
	case runErr == nil:
		return exitOK
	case runner.IsFatal(runErr):
		logger.Printf("fatal: %v", runErr)
		return exitFatal
	default:
		logger.Printf("run: %v", runErr)
		return exitError
	}
}

func parseAgents(raw []string) ([]runner.AgentSpec, error) {
	specs := make([]runner.AgentSpec, 0, len(raw))
	for i, s := range raw {
		name, kind, ok := strings.Cut(s, ":")
		if !ok {
			name, kind = fmt.Sprintf("agent_%d", i), s
		}
		if strings.TrimSpace(kind) == "" {
			return nil, fmt.Errorf("--agent %q: empty kind", s)
		}
		specs = append(specs, runner.AgentSpec{Name: strings.TrimSpace(name), Kind: strings.TrimSpace(kind)})
	}
	return specs, nil
}

func printSummary(res runner.Result, lay *layout.Layout, started time.Time) {
	fmt.Printf("run %s on %s: %s\n", res.RunID, lay.Name, res.Outcome)
	fmt.Printf("  ticks     %s\n", humanize.Comma(int64(res.Ticks)))
	fmt.Printf("  messages  %s\n", humanize.Comma(int64(res.Messages)))
	fmt.Printf("  goal met  %t\n", res.Done)
	fmt.Printf("  started   %s\n", humanize.Time(started))
	fmt.Printf("  digest    %s\n", shortDigest(res.Digest))
	for _, a := range res.Agents {
		fmt.Printf("  %s (%s, %s): phase=%s held=%d\n", a.ID, a.Name, a.Kind, a.Phase, a.Held)
		peers := make([]string, 0, len(a.Trust))
		for id := range a.Trust {
			peers = append(peers, id)
		}
		sort.Strings(peers)
		for _, id := range peers {
			fmt.Printf("    trust %s %.2f\n", id, a.Trust[id])
		}
	}
}

func shortDigest(d string) string {
	if len(d) > 16 {
		return d[:16]
	}
	return d
}
