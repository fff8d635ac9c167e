// Package node runs one side of a match with its persistence attached: op and random logs, the
// optional sqlite index and the snapshot writer.
package node

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"memewars.gg/internal/persistence/archive"
	"memewars.gg/internal/persistence/indexdb"
	persistlog "memewars.gg/internal/persistence/log"
	"memewars.gg/internal/persistence/snapshot"
	"memewars.gg/internal/sim/driver"
	"memewars.gg/internal/sim/match"
	"memewars.gg/internal/sim/model"
	"memewars.gg/internal/sim/session"
	"memewars.gg/internal/sim/tuning"
)

type Config struct {
	MatchID string
	Game    *match.Game
	Tuning  tuning.Tuning

	DataDir   string
	DisableDB bool

	Link   driver.Link
	Seat   model.Seat
	Player driver.Player
	Logger *log.Logger

	// OnSession, if set, sees the session before the driver starts (spectator streams).
	OnSession func(*session.Session)
}

func MatchDir(dataDir, matchID string) string {
	return filepath.Join(dataDir, "matches", matchID)
}

func SnapshotDir(matchDir string) string { return filepath.Join(matchDir, "snapshots") }

func IndexPath(matchDir string) string { return filepath.Join(matchDir, "index", "match.sqlite") }

// Play runs the match to the end and returns once every log and snapshot is on disk.
func Play(ctx context.Context, cfg Config) (driver.Result, error) {
	if cfg.Game == nil || cfg.Link == nil {
		return driver.Result{}, errors.New("node: game and link are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[node] ", log.LstdFlags|log.Lmicroseconds)
	}
	matchDir := MatchDir(cfg.DataDir, cfg.MatchID)
	if err := os.MkdirAll(matchDir, 0o755); err != nil {
		return driver.Result{}, err
	}

	// Optional read model; the logs stay authoritative without it.
	var idx *indexdb.SQLiteIndex
	if !cfg.DisableDB {
		var err error
		idx, err = indexdb.OpenSQLite(IndexPath(matchDir))
		if err != nil {
			return driver.Result{}, err
		}
		defer idx.Close()
		if err := idx.UpsertCatalog(cfg.Game.Catalog(), cfg.Tuning); err != nil {
			logger.Printf("index: upsert catalog: %v", err)
		}
	}

	opLog := persistlog.NewOpLogger(matchDir)
	randomLog := persistlog.NewRandomLogger(matchDir)
	defer opLog.Close()
	defer randomLog.Close()

	sc := session.Config{
		MatchID: cfg.MatchID,
		Game:    cfg.Game,
		Tuning:  cfg.Tuning,
		OpLog:   opLog,
		Audit:   randomLog,
		Logger:  logger,
	}
	if idx != nil {
		sc.Index = idx
	}
	sess, err := session.New(sc)
	if err != nil {
		return driver.Result{}, err
	}
	if cfg.OnSession != nil {
		cfg.OnSession(sess)
	}

	snapCh := make(chan snapshot.SnapshotV1, 8)
	sess.SetSnapshotSink(snapCh)
	written := make(chan struct{})
	go func() {
		defer close(written)
		for snap := range snapCh {
			path := snapshot.Path(SnapshotDir(matchDir), snap.Header.Turn)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
			if archived, ok, err := archive.ArchiveFinalSnapshot(matchDir, path, snap); err != nil {
				logger.Printf("archive final snapshot: %v", err)
			} else if ok {
				logger.Printf("archived %s", archived)
			}
		}
	}()

	sessCtx, stopSession := context.WithCancel(ctx)
	sessDone := make(chan error, 1)
	go func() { sessDone <- sess.Run(sessCtx) }()

	d, err := driver.New(driver.Config{
		Session:   sess,
		Link:      cfg.Link,
		Seat:      cfg.Seat,
		Player:    cfg.Player,
		HashEvery: cfg.Tuning.StateHashEveryTurns,
		Logger:    logger,
	})
	var res driver.Result
	if err == nil {
		res, err = d.Run(ctx)
	}

	stopSession()
	if serr := <-sessDone; serr != nil && !errors.Is(serr, context.Canceled) {
		logger.Printf("session stopped: %v", serr)
	}
	// The session no longer sends once Run has returned.
	close(snapCh)
	<-written

	if idx != nil {
		st := idx.Stats()
		if st.DropEntryTotal+st.DropRandomTotal+st.DropSnapshotTotal > 0 {
			logger.Printf("index dropped entries=%d random=%d snapshots=%d", st.DropEntryTotal, st.DropRandomTotal, st.DropSnapshotTotal)
		}
	}
	return res, err
}
