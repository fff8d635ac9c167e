package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"memewars.gg/internal/persistence/snapshot"
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/session"
	"memewars.gg/internal/sim/tuning"
)

// SQLiteIndex is a secondary read model over the op and random logs. Writes are queued and
// applied by one goroutine; the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropMatch    atomic.Uint64
	dropEntry    atomic.Uint64
	dropRandom   atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqMatch reqKind = iota + 1
	reqEntry
	reqRandom
	reqSnapshot
)

type req struct {
	kind reqKind

	match    session.Info
	entry    session.Entry
	random   session.RandomEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	MatchID string
	Turn    int
	Seq     uint64
	Path    string
	Stakes  int
	Phase   string
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int

	DropMatchTotal    uint64
	DropEntryTotal    uint64
	DropRandomTotal   uint64
	DropSnapshotTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
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
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
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

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			host_node_id TEXT NOT NULL,
			opponent_node_id TEXT NOT NULL,
			catalog_digest TEXT NOT NULL,
			started_at TEXT NOT NULL,
			last_seq INTEGER NOT NULL DEFAULT 0,
			turn INTEGER NOT NULL DEFAULT 0,
			phase TEXT NOT NULL DEFAULT '',
			stakes INTEGER NOT NULL DEFAULT 1,
			winner TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS ops (
			match_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			seat TEXT NOT NULL,
			turn INTEGER NOT NULL,
			state_hash TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (match_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			match_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			state_hash TEXT NOT NULL,
			stakes INTEGER NOT NULL,
			phase TEXT NOT NULL,
			PRIMARY KEY (match_id, turn)
		);`,
		`CREATE TABLE IF NOT EXISTS random_events (
			match_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			turn INTEGER NOT NULL,
			kind TEXT NOT NULL,
			bound INTEGER NOT NULL,
			result INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (match_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_random_events_turn ON random_events(match_id, turn);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			match_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			path TEXT NOT NULL,
			stakes INTEGER NOT NULL,
			phase TEXT NOT NULL,
			PRIMARY KEY (match_id, seq)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
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

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropMatchTotal:    s.dropMatch.Load(),
		DropEntryTotal:    s.dropEntry.Load(),
		DropRandomTotal:   s.dropRandom.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// enqueue drops r if the writer falls behind.
func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) RecordMatch(info session.Info) {
	s.enqueue(req{kind: reqMatch, match: info}, &s.dropMatch)
}

func (s *SQLiteIndex) RecordEntry(e session.Entry) {
	s.enqueue(req{kind: reqEntry, entry: e}, &s.dropEntry)
}

func (s *SQLiteIndex) RecordRandom(e session.RandomEntry) {
	s.enqueue(req{kind: reqRandom, random: e}, &s.dropRandom)
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	r := snapshotRow{
		MatchID: snap.Header.MatchID,
		Turn:    snap.Header.Turn,
		Seq:     snap.Header.Seq,
		Path:    path,
		Stakes:  snap.Stakes,
		Phase:   snap.Phase,
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

// UpsertCatalog stores the card catalog in use, and the tuning actually applied, keyed by digest.
func (s *SQLiteIndex) UpsertCatalog(cat *catalogs.Catalog, tune tuning.Tuning) error {
	if s == nil || cat == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if len(cat.Raw) > 0 {
		rows = append(rows, kv{name: "cards", digest: cat.Digest, json: cat.Raw})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertMatch, _ := s.db.Prepare(`INSERT OR IGNORE INTO matches(match_id,seed,host_node_id,opponent_node_id,catalog_digest,started_at) VALUES(?,?,?,?,?,?)`)
	updateMatch, _ := s.db.Prepare(`UPDATE matches SET last_seq=?, turn=?, phase=?, stakes=?, winner=? WHERE match_id=?`)
	insertOp, _ := s.db.Prepare(`INSERT OR REPLACE INTO ops(match_id,seq,kind,seat,turn,state_hash,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertTurn, _ := s.db.Prepare(`INSERT OR REPLACE INTO turns(match_id,turn,seq,state_hash,stakes,phase) VALUES(?,?,?,?,?,?)`)
	insertRandom, _ := s.db.Prepare(`INSERT OR REPLACE INTO random_events(match_id,idx,seq,turn,kind,bound,result,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(match_id,turn,seq,path,stakes,phase) VALUES(?,?,?,?,?,?)`)
	stmts := []*sql.Stmt{insertMatch, updateMatch, insertOp, insertTurn, insertRandom, insertSnapshot}
	defer func() {
		for _, st := range stmts {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqMatch:
			m := r.match
			exec(insertMatch, m.MatchID, int64(m.Seed), m.HostNodeID, m.OpponentNodeID, m.CatalogDigest,
				time.Now().UTC().Format(time.RFC3339Nano))

		case reqEntry:
			e := r.entry
			raw, _ := json.Marshal(e)
			if !exec(insertOp, e.MatchID, int64(e.Seq), string(e.Op.Kind), e.Op.Seat.String(), e.Op.Turn, e.StateHash, string(raw)) {
				continue
			}
			var winner any
			if e.Winner != nil {
				winner = e.Winner.String()
			}
			if !exec(updateMatch, int64(e.Seq), e.Turn, string(e.Phase), e.Stakes, winner, e.MatchID) {
				continue
			}
			if e.Resolved {
				exec(insertTurn, e.MatchID, e.Op.Turn, int64(e.Seq), e.StateHash, e.Stakes, string(e.Phase))
			}

		case reqRandom:
			re := r.random
			raw, _ := json.Marshal(re.Event)
			exec(insertRandom, re.MatchID, re.Index, int64(re.Seq), re.Event.Turn, re.Event.Kind.String(),
				int64(re.Event.Bound), int64(re.Event.Result), string(raw))

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.MatchID, sn.Turn, int64(sn.Seq), sn.Path, sn.Stakes, sn.Phase)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
