// Package indexdb keeps a queryable SQLite record of simulation runs: one row
// per run, per tick, per broadcast message and per object change.
package indexdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"blocksworld.ai/internal/sim/world"
)

type SQLiteIndex struct {
	db *sqlx.DB

	runID atomic.Value // string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	dropAudit atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqFlush
)

type req struct {
	kind  reqKind
	runID string

	tick  world.TickLogEntry
	audit world.AuditEntry
	done  chan struct{}
}

// RunRow is one simulation run.
type RunRow struct {
	RunID     string `db:"run_id"`
	WorldID   string `db:"world_id"`
	Layout    string `db:"layout"`
	Seed      int64  `db:"seed"`
	Agents    int    `db:"agents"`
	StartedAt string `db:"started_at"`
	EndedAt   string `db:"ended_at"`
	Ticks     int64  `db:"ticks"`
	Done      bool   `db:"done"`
	Outcome   string `db:"outcome"`
}

type TickRow struct {
	RunID    string `db:"run_id"`
	Tick     int64  `db:"tick"`
	Digest   string `db:"digest"`
	Actions  int    `db:"actions"`
	Messages int    `db:"messages"`
	Done     bool   `db:"done"`
}

type MessageRow struct {
	RunID   string `db:"run_id"`
	MsgID   string `db:"msg_id"`
	Tick    int64  `db:"tick"`
	From    string `db:"from_agent"`
	Content string `db:"content"`
}

type Stats struct {
	DropTickTotal  uint64
	DropAuditTotal uint64
	QueueDepth     int
	QueueCapacity  int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.runID.Store("")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		world_id TEXT NOT NULL,
		layout TEXT NOT NULL,
		seed INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL DEFAULT '',
		ticks INTEGER NOT NULL DEFAULT 0,
		done INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS ticks (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		digest TEXT NOT NULL,
		actions INTEGER NOT NULL,
		messages INTEGER NOT NULL,
		done INTEGER NOT NULL,
		raw_json TEXT NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS messages (
		run_id TEXT NOT NULL,
		msg_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		from_agent TEXT NOT NULL,
		content TEXT NOT NULL,
		PRIMARY KEY (run_id, msg_id)
	);

	CREATE TABLE IF NOT EXISTS audits (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		object_id TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(run_id, from_agent);
	CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(run_id, actor, tick);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// BeginRun inserts the run row and tags subsequent ticks and audits with it.
func (s *SQLiteIndex) BeginRun(r RunRow) error {
	if r.StartedAt == "" {
		r.StartedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.NamedExec(`INSERT OR REPLACE INTO runs(run_id,world_id,layout,seed,agents,started_at)
		VALUES(:run_id,:world_id,:layout,:seed,:agents,:started_at)`, r)
	if err != nil {
		return err
	}
	s.runID.Store(r.RunID)
	return nil
}

// EndRun waits for queued rows of the run to be written, then closes the run row.
func (s *SQLiteIndex) EndRun(runID string, ticks uint64, done bool, outcome string) error {
	s.flush()
	_, err := s.db.Exec(`UPDATE runs SET ended_at=?, ticks=?, done=?, outcome=? WHERE run_id=?`,
		time.Now().UTC().Format(time.RFC3339Nano), int64(ticks), done, outcome, runID)
	return err
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, runID: s.currentRun(), tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, runID: s.currentRun(), audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		DropTickTotal:  s.dropTick.Load(),
		DropAuditTotal: s.dropAudit.Load(),
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
	}
}

func (s *SQLiteIndex) currentRun() string {
	id, _ := s.runID.Load().(string)
	return id
}

// flush blocks until the writer has handled everything queued before it.
func (s *SQLiteIndex) flush() {
	if s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqFlush, done: done}
	<-done
}

func (s *SQLiteIndex) Run(runID string) (RunRow, error) {
	var r RunRow
	err := s.db.Get(&r, `SELECT run_id,world_id,layout,seed,agents,started_at,ended_at,ticks,done,outcome FROM runs WHERE run_id=?`, runID)
	return r, err
}

func (s *SQLiteIndex) Runs() ([]RunRow, error) {
	var out []RunRow
	err := s.db.Select(&out, `SELECT run_id,world_id,layout,seed,agents,started_at,ended_at,ticks,done,outcome FROM runs ORDER BY started_at`)
	return out, err
}

func (s *SQLiteIndex) Ticks(runID string) ([]TickRow, error) {
	var out []TickRow
	err := s.db.Select(&out, `SELECT run_id,tick,digest,actions,messages,done FROM ticks WHERE run_id=? ORDER BY tick`, runID)
	return out, err
}

func (s *SQLiteIndex) Messages(runID string) ([]MessageRow, error) {
	var out []MessageRow
	err := s.db.Select(&out, `SELECT run_id,msg_id,tick,from_agent,content FROM messages WHERE run_id=? ORDER BY msg_id`, runID)
	return out, err
}

// AuditCount returns how many times actor performed action in a run.
func (s *SQLiteIndex) AuditCount(runID, actor, action string) (int, error) {
	var n int
	err := s.db.Get(&n, `SELECT COUNT(*) FROM audits WHERE run_id=? AND actor=? AND action=?`, runID, actor, action)
	return n, err
}

func (s *SQLiteIndex) loop() {
	var (
		lastAuditTick uint64
		auditSeq      int
	)
	for r := range s.ch {
		if r.kind == reqFlush {
			close(r.done)
			continue
		}
		tx, err := s.db.Beginx()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		switch r.kind {
		case reqTick:
			err = writeTick(tx, r.runID, r.tick)
		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			_, err = tx.Exec(`INSERT OR REPLACE INTO audits(run_id,tick,seq,actor,action,object_id,x,y) VALUES(?,?,?,?,?,?,?,?)`,
				r.runID, int64(a.Tick), auditSeq, a.Actor, a.Action, a.ObjectID, a.Loc.X(), a.Loc.Y())
			auditSeq++
		}
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}
}

func writeTick(tx *sqlx.Tx, runID string, e world.TickLogEntry) error {
	raw, _ := json.Marshal(e)
	if _, err := tx.Exec(`INSERT OR REPLACE INTO ticks(run_id,tick,digest,actions,messages,done,raw_json) VALUES(?,?,?,?,?,?,?)`,
		runID, int64(e.Tick), e.Digest, len(e.Actions), len(e.Messages), e.Done, string(raw)); err != nil {
		return err
	}
	for _, m := range e.Messages {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO messages(run_id,msg_id,tick,from_agent,content) VALUES(?,?,?,?,?)`,
			runID, m.ID, int64(m.Tick), m.From, m.Content); err != nil {
			return err
		}
	}
	return nil
}
