package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"blocksworld.ai/internal/persistence/indexdb"
	persistlog "blocksworld.ai/internal/persistence/log"
	"blocksworld.ai/internal/sim/layout"
	"blocksworld.ai/internal/sim/tuning"
	"blocksworld.ai/internal/sim/world"
	"blocksworld.ai/internal/transport/ws"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	var (
		addr       = flags.String("addr", ":8080", "http listen address")
		worldID    = flags.String("world", "world_1", "world id")
		seed       = flags.Int64("seed", 0, "layout seed when --layout is empty (default: tuning seed)")
		layoutPath = flags.String("layout", "", "layout file (.yaml or .jsonc); empty generates one from --seed")
		tuningPath = flags.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flags.String("data", "./data", "runtime data directory")
		token      = flags.String("token", "", "shared token agents must present in HELLO (or set BW_TOKEN)")
		disableDB  = flags.Bool("disable_db", false, "disable the SQLite run index")
	)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	if *seed == 0 {
		*seed = tune.Seed
	}

	lay, err := layout.LoadOrGenerate(*layoutPath, *seed)
	if err != nil {
		logger.Fatalf("load layout: %v", err)
	}

	cfg := world.ConfigFromTuning(*worldID, tune)
	cfg.Seed = *seed
	w, err := world.New(cfg, lay)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	runID := uuid.NewString()
	runDir := filepath.Join(*dataDir, "worlds", *worldID, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}
	tickLog := persistlog.NewTickLogger(runDir)
	auditLog := persistlog.NewAuditLogger(runDir)
	defer tickLog.Close()
	defer auditLog.Close()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.BeginRun(indexdb.RunRow{RunID: runID, WorldID: w.ID(), Layout: lay.Name, Seed: *seed}); err != nil {
			logger.Printf("index begin run: %v", err)
		}
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		w.SetTickLogger(tickLog)
		w.SetAuditLogger(auditLog)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	tok := strings.TrimSpace(*token)
	if tok == "" {
		tok = strings.TrimSpace(os.Getenv("BW_TOKEN"))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP blocksworld_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE blocksworld_world_tick gauge\n")
		fmt.Fprintf(rw, "blocksworld_world_tick{world=%q} %d\n", *worldID, w.CurrentTick())

		if idx != nil {
			s := idx.Stats()
			fmt.Fprintf(rw, "# HELP blocksworld_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE blocksworld_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "blocksworld_index_queue_depth %d\n", s.QueueDepth)
			fmt.Fprintf(rw, "# HELP blocksworld_index_dropped_total Records dropped because the index queue was full.\n")
			fmt.Fprintf(rw, "# TYPE blocksworld_index_dropped_total counter\n")
			fmt.Fprintf(rw, "blocksworld_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
			fmt.Fprintf(rw, "blocksworld_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
		}
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			WorldID string `json:"world_id"`
			RunID   string `json:"run_id"`
			Layout  string `json:"layout"`
			Tick    uint64 `json:"tick"`
		}{
			WorldID: *worldID,
			RunID:   runID,
			Layout:  lay.Name,
			Tick:    w.CurrentTick(),
		})
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger, tok).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s layout=%s run=%s", *addr, *worldID, lay.Name, runID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	if idx != nil {
		if err := idx.EndRun(runID, w.CurrentTick(), false, "stopped"); err != nil {
			logger.Printf("index end run: %v", err)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
