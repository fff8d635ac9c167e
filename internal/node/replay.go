package node

import (
	"bytes"
	"encoding/json"
	"fmt"

	persistlog "memewars.gg/internal/persistence/log"
	"memewars.gg/internal/persistence/snapshot"
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/fairness"
	"memewars.gg/internal/sim/match"
	"memewars.gg/internal/sim/model"
	"memewars.gg/internal/sim/session"
)

type ReplayReport struct {
	MatchID  string
	FromTurn int
	Ops      int
	Turn     int
	Phase    match.Phase
	Stakes   int
	Winner   *model.Seat
	// Draws is the number of random events checked against the audit log.
	Draws int
}

// Replay rebuilds a match from a snapshot and the op log, checking every logged state hash, then
// audits the random history. An empty snapPath starts from the oldest snapshot in matchDir.
func Replay(cat *catalogs.Catalog, matchDir, snapPath string) (ReplayReport, error) {
	var rep ReplayReport
	if snapPath == "" {
		paths, err := snapshot.List(SnapshotDir(matchDir))
		if err != nil {
			return rep, err
		}
		if len(paths) == 0 {
			return rep, fmt.Errorf("no snapshots under %s", SnapshotDir(matchDir))
		}
		snapPath = paths[0]
	}
	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return rep, fmt.Errorf("read snapshot: %w", err)
	}
	if snap.CatalogDigest != cat.Digest {
		return rep, fmt.Errorf("snapshot catalog %s does not match %s", snap.CatalogDigest, cat.Digest)
	}
	g, err := match.Decode(snap.Game, cat)
	if err != nil {
		return rep, err
	}
	rep.MatchID, rep.FromTurn = snap.Header.MatchID, snap.Header.Turn

	entries, err := persistlog.ReadOps(matchDir)
	if err != nil {
		return rep, fmt.Errorf("read ops: %w", err)
	}
	next := snap.Header.Seq + 1
	for _, e := range entries {
		if e.Seq < next {
			continue
		}
		if e.Seq != next {
			return rep, fmt.Errorf("op log gap: want seq %d, got %d", next, e.Seq)
		}
		if e.MatchID != snap.Header.MatchID {
			return rep, fmt.Errorf("seq %d belongs to match %s", e.Seq, e.MatchID)
		}
		if err := session.ApplyOp(g, e.Op); err != nil {
			return rep, fmt.Errorf("seq %d: %w", e.Seq, err)
		}
		h, err := g.StateHash()
		if err != nil {
			return rep, err
		}
		if h.Hash != e.StateHash {
			return rep, &match.Error{
				Kind:   match.KindStateHashMismatch,
				Phase:  g.Phase,
				Detail: fmt.Sprintf("seq %d: replay %s, log %s", e.Seq, h.Hash, e.StateHash),
			}
		}
		next++
		rep.Ops++
	}
	rep.Turn, rep.Phase, rep.Stakes, rep.Winner = g.Turn, g.Phase, g.Stakes, g.Winner

	draws, err := persistlog.ReadRandom(matchDir)
	if err != nil {
		return rep, fmt.Errorf("read random log: %w", err)
	}
	if err := auditRandom(g, draws); err != nil {
		return rep, err
	}
	rep.Draws = len(draws)
	return rep, nil
}

// auditRandom checks the game's random history from its seed and that the audit log recorded
// exactly that history.
func auditRandom(g *match.Game, draws []session.RandomEntry) error {
	if err := fairness.VerifyHistory(g.Seed, g.Random); err != nil {
		return err
	}
	hist := g.Random.History
	if len(draws) != len(hist) {
		return fmt.Errorf("random log has %d events, game has %d", len(draws), len(hist))
	}
	for i, d := range draws {
		if d.Index != i {
			return fmt.Errorf("random log entry %d has index %d", i, d.Index)
		}
		a, err := json.Marshal(d.Event)
		if err != nil {
			return err
		}
		b, err := json.Marshal(hist[i])
		if err != nil {
			return err
		}
		if !bytes.Equal(a, b) {
			return fmt.Errorf("random event %d differs from the game history", i)
		}
	}
	return nil
}
