package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"blocksworld.ai/internal/agent"
	"blocksworld.ai/internal/protocol"
	"blocksworld.ai/internal/sim/tuning"
	"blocksworld.ai/internal/transport/ws"
)

// Exit codes.
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
	flags := pflag.NewFlagSet("bot", pflag.ContinueOnError)
	var (
		url        = flags.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name       = flags.String("name", "bot", "agent name")
		kind       = flags.String("kind", agent.KindColorblind, "agent kind (normal, strong, colorblind)")
		token      = flags.String("token", "", "server token (or set BW_TOKEN)")
		tuningPath = flags.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml for controller settings")
		seed       = flags.Int64("seed", 0, "controller random seed")
	)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		tune = tuning.Defaults()
	}

	tok := *token
	if tok == "" {
		tok = os.Getenv("BW_TOKEN")
	}
	hello := protocol.HelloMsg{
		AgentName:    *name,
		AgentKind:    *kind,
		Capabilities: protocol.HelloCapabilities{MaxQueue: 8},
	}
	if tok != "" {
		hello.Auth = &protocol.HelloAuth{Token: tok}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := ws.Dial(ctx, *url, hello)
	if err != nil {
		logger.Printf("dial: %v", err)
		return exitError
	}
	defer c.Close()
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	wel := c.Welcome
	logger.Printf("WELCOME agent_id=%s kind=%s capacity=%d tick_rate=%d layout=%s",
		wel.AgentID, wel.AgentKind, wel.WorldParams.Capacity, wel.WorldParams.TickRateHz, wel.WorldParams.Layout)

	ctl := agent.New(wel.AgentID, agent.Settings{
		Kind:          wel.AgentKind,
		Capacity:      wel.WorldParams.Capacity,
		GrabRange:     tune.Agent.GrabRange,
		TrustDefault:  tune.Agent.TrustDefault,
		TrustPenalty:  tune.Agent.TrustPenalty,
		MaxPhaseSteps: tune.Agent.MaxPhaseSteps,
		Seed:          *seed,
	}, agent.WithLogger(logger))

	for {
		obs, err := c.ReadObs()
		if err != nil {
			if ctx.Err() != nil {
				return exitOK
			}
			logger.Printf("read: %v", err)
			return exitError
		}
		act, err := ctl.Act(obs)
		if err != nil {
			logger.Printf("tick %d: %v", obs.Tick, err)
			if errors.Is(err, agent.ErrNoObjectToDrop) {
				return exitFatal
			}
			return exitError
		}
		if err := c.SendAct(act); err != nil {
			logger.Printf("send: %v", err)
			return exitError
		}
	}
}
