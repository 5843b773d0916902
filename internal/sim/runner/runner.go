// Package runner drives controllers against an in-process world: every tick
// each agent observes, decides, and the world steps once with all actions.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"blocksworld.ai/internal/agent"
	"blocksworld.ai/internal/persistence/indexdb"
	"blocksworld.ai/internal/sim/tuning"
	"blocksworld.ai/internal/sim/world"
)

// Run outcomes.
const (
	OutcomeGoal     = "goal"
	OutcomeMaxTicks = "max_ticks"
	OutcomeFatal    = "fatal"
	OutcomeCanceled = "canceled"
)

type AgentSpec struct {
	Name string
	Kind string
}

type Config struct {
	// RunID defaults to a random UUID.
	RunID    string
	Agents   []AgentSpec
	MaxTicks int
	Seed     int64
	Agent    tuning.AgentTuning
}

// Index records run rows; implemented by indexdb.SQLiteIndex.
type Index interface {
	BeginRun(r indexdb.RunRow) error
	EndRun(runID string, ticks uint64, done bool, outcome string) error
}

type AgentSummary struct {
	ID    string
	Name  string
	Kind  string
	Phase agent.Phase
	Held  int
	Trust map[string]float64
}

type Result struct {
	RunID    string
	Ticks    uint64
	Done     bool
	Outcome  string
	Digest   string
	Messages int
	Agents   []AgentSummary
}

type Option func(*Runner)

func WithLogger(l *log.Logger) Option { return func(r *Runner) { r.log = l } }

func WithIndex(ix Index) Option { return func(r *Runner) { r.index = ix } }

// WithTickLoggers attaches tick sinks to the world for the duration of the run.
func WithTickLoggers(ls ...world.TickLogger) Option {
	return func(r *Runner) { r.ticks = append(r.ticks, ls...) }
}

func WithAuditLoggers(ls ...world.AuditLogger) Option {
	return func(r *Runner) { r.audits = append(r.audits, ls...) }
}

type Runner struct {
	w     *world.World
	cfg   Config
	log   *log.Logger
	index Index

	ticks  []world.TickLogger
	audits []world.AuditLogger

	bots []*bot
}

type bot struct {
	id   string
	name string
	kind string
	ctl  *agent.Controller
}

func New(w *world.World, cfg Config, opts ...Option) *Runner {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = tuning.Defaults().MaxTicks
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = []AgentSpec{{Name: "agent_0", Kind: agent.KindColorblind}}
	}
	r := &Runner{w: w, cfg: cfg, log: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) RunID() string { return r.cfg.RunID }

// Run plays until the goal is met, MaxTicks pass, ctx ends or a controller
// fails. A controller failure is returned wrapped; it matches
// agent.ErrNoObjectToDrop with errors.Is.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if len(r.ticks) > 0 {
		r.w.SetTickLogger(teeTicks(r.ticks))
		defer r.w.SetTickLogger(nil)
	}
	if len(r.audits) > 0 {
		r.w.SetAuditLogger(teeAudits(r.audits))
		defer r.w.SetAuditLogger(nil)
	}

	if r.index != nil {
		lay := r.w.Layout()
		if err := r.index.BeginRun(indexdb.RunRow{
			RunID:   r.cfg.RunID,
			WorldID: r.w.ID(),
			Layout:  lay.Name,
			Seed:    r.cfg.Seed,
			Agents:  len(r.cfg.Agents),
		}); err != nil {
			r.log.Printf("index begin run %s: %v", r.cfg.RunID, err)
		}
	}

	res := Result{RunID: r.cfg.RunID}
	if err := r.join(); err != nil {
		res.Outcome = OutcomeFatal
		return r.finish(res), err
	}

	start := r.w.CurrentTick()
	var runErr error
	for {
		if r.w.Done() {
			res.Outcome = OutcomeGoal
			break
		}
		if int(r.w.CurrentTick()-start) >= r.cfg.MaxTicks {
			res.Outcome = OutcomeMaxTicks
			break
		}
		if err := ctx.Err(); err != nil {
			res.Outcome = OutcomeCanceled
			runErr = err
			break
		}
		envs, err := r.decide()
		if err != nil {
			res.Outcome = OutcomeFatal
			runErr = err
			break
		}
		_, res.Digest = r.w.StepOnce(nil, nil, envs)
	}
	res.Ticks = r.w.CurrentTick() - start
	res = r.finish(res)
	r.log.Printf("run %s: %s after %d ticks", res.RunID, res.Outcome, res.Ticks)
	return res, runErr
}

func (r *Runner) join() error {
	joins := make([]world.JoinRequest, 0, len(r.cfg.Agents))
	resps := make([]chan world.JoinResponse, 0, len(r.cfg.Agents))
	for _, a := range r.cfg.Agents {
		ch := make(chan world.JoinResponse, 1)
		joins = append(joins, world.JoinRequest{Name: a.Name, Kind: a.Kind, Resp: ch})
		resps = append(resps, ch)
	}
	r.w.StepOnce(joins, nil, nil)

	for i, ch := range resps {
		jr := <-ch
		as := r.cfg.Agents[i]
		if jr.Welcome.AgentID == "" {
			return fmt.Errorf("join %s (%s): refused: %s", as.Name, as.Kind, jr.Code)
		}
		id := jr.Welcome.AgentID
		settings := agent.Settings{
			Kind:          jr.Welcome.AgentKind,
			Capacity:      jr.Welcome.WorldParams.Capacity,
			GrabRange:     r.cfg.Agent.GrabRange,
			TrustDefault:  r.cfg.Agent.TrustDefault,
			TrustPenalty:  r.cfg.Agent.TrustPenalty,
			MaxPhaseSteps: r.cfg.Agent.MaxPhaseSteps,
			Seed:          r.cfg.Seed + int64(i),
		}
		ctl := agent.New(id, settings, agent.WithLogger(r.log))
		r.bots = append(r.bots, &bot{id: id, name: as.Name, kind: settings.Kind, ctl: ctl})
		r.log.Printf("joined %s as %s (%s, capacity %d)", as.Name, id, settings.Kind, settings.Capacity)
	}
	return nil
}

func (r *Runner) decide() ([]world.ActionEnvelope, error) {
	envs := make([]world.ActionEnvelope, 0, len(r.bots))
	for _, b := range r.bots {
		obs, ok := r.w.Observe(b.id)
		if !ok {
			continue
		}
		act, err := b.ctl.Act(obs)
		if err != nil {
			return nil, fmt.Errorf("agent %s at tick %d: %w", b.id, obs.Tick, err)
		}
		envs = append(envs, world.ActionEnvelope{AgentID: b.id, Act: act})
	}
	return envs, nil
}

func (r *Runner) finish(res Result) Result {
	res.Done = r.w.Done()
	res.Messages = len(r.w.DebugMessages())
	for _, b := range r.bots {
		res.Agents = append(res.Agents, AgentSummary{
			ID:    b.id,
			Name:  b.name,
			Kind:  b.kind,
			Phase: b.ctl.Phase(),
			Held:  b.ctl.Held(),
			Trust: b.ctl.Trust(),
		})
	}
	if r.index != nil {
		if err := r.index.EndRun(res.RunID, res.Ticks, res.Done, res.Outcome); err != nil {
			r.log.Printf("index end run %s: %v", res.RunID, err)
		}
	}
	return res
}

// IsFatal reports whether err came from a controller that cannot continue.
func IsFatal(err error) bool { return errors.Is(err, agent.ErrNoObjectToDrop) }

type teeTicks []world.TickLogger

func (t teeTicks) WriteTick(e world.TickLogEntry) error {
	var errs []error
	for _, l := range t {
		errs = append(errs, l.WriteTick(e))
	}
	return errors.Join(errs...)
}

type teeAudits []world.AuditLogger

func (t teeAudits) WriteAudit(e world.AuditEntry) error {
	var errs []error
	for _, l := range t {
		errs = append(errs, l.WriteAudit(e))
	}
	return errors.Join(errs...)
}
