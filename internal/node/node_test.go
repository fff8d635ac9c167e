package node

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	persistlog "memewars.gg/internal/persistence/log"
	"memewars.gg/internal/persistence/snapshot"
	"memewars.gg/internal/sim/autoplay"
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/driver"
	"memewars.gg/internal/sim/match"
	"memewars.gg/internal/sim/model"
	"memewars.gg/internal/sim/tuning"
)

type pipeEnd struct {
	in  <-chan []byte
	out chan<- []byte
}

func (p pipeEnd) Send(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case p.out <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p pipeEnd) Recv(ctx context.Context) ([]byte, error) {
	select {
	case b, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func playBoth(t *testing.T, seed uint64) [2]string {
	t.Helper()
	cat := catalogs.MustDefault()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	a, b := make(chan []byte, 64), make(chan []byte, 64)
	links := [2]pipeEnd{{in: b, out: a}, {in: a, out: b}}
	out := [2]chan []byte{a, b}

	var dirs [2]string
	var results [2]driver.Result
	var errs [2]error
	var wg sync.WaitGroup
	for _, seat := range model.Seats {
		g, err := match.New(cat, match.Setup{
			Seed:           seed,
			HostNodeID:     "h",
			OpponentNodeID: "o",
			HostDeck:       cat.DefaultDeck,
			OpponentDeck:   cat.DefaultDeck,
		})
		if err != nil {
			t.Fatalf("new game: %v", err)
		}
		dirs[seat] = t.TempDir()
		tune := tuning.Defaults()
		tune.SnapshotEveryTurns = 2
		wg.Add(1)
		go func(seat model.Seat, g *match.Game) {
			defer wg.Done()
			defer close(out[seat])
			results[seat], errs[seat] = Play(ctx, Config{
				MatchID: "match-1",
				Game:    g,
				Tuning:  tune,
				DataDir: dirs[seat],
				Link:    links[seat],
				Seat:    seat,
				Player:  autoplay.New(),
				Logger:  log.New(io.Discard, "", 0),
			})
		}(seat, g)
	}
	wg.Wait()
	for _, seat := range model.Seats {
		if errs[seat] != nil {
			t.Fatalf("%s: %v", seat, errs[seat])
		}
	}
	if results[0].Winner == nil || results[1].Winner == nil || *results[0].Winner != *results[1].Winner {
		t.Fatalf("winners differ: %+v %+v", results[0], results[1])
	}
	return dirs
}

func TestPlay_WritesLogsSnapshotsAndIndex(t *testing.T) {
	dirs := playBoth(t, 11)
	for _, seat := range model.Seats {
		matchDir := MatchDir(dirs[seat], "match-1")
		ops, err := persistlog.ReadOps(matchDir)
		if err != nil || len(ops) == 0 {
			t.Fatalf("%s ops=%d err=%v", seat, len(ops), err)
		}
		last := ops[len(ops)-1]
		if last.Phase != match.PhaseGameOver || last.Winner == nil {
			t.Fatalf("%s last entry not game over: %+v", seat, last)
		}
		paths, err := snapshot.List(SnapshotDir(matchDir))
		if err != nil || len(paths) < 2 {
			t.Fatalf("%s snapshots=%v err=%v", seat, paths, err)
		}
		h, err := snapshot.ReadHeader(paths[len(paths)-1])
		if err != nil || h.MatchID != "match-1" {
			t.Fatalf("%s header=%+v err=%v", seat, h, err)
		}
		if _, err := os.Stat(IndexPath(matchDir)); err != nil {
			t.Fatalf("%s index: %v", seat, err)
		}
	}
}

func TestReplay_FromFirstAndLatestSnapshot(t *testing.T) {
	dirs := playBoth(t, 12)
	cat := catalogs.MustDefault()
	matchDir := MatchDir(dirs[model.Host], "match-1")

	full, err := Replay(cat, matchDir, "")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	ops, _ := persistlog.ReadOps(matchDir)
	if full.Ops != len(ops) || full.Phase != match.PhaseGameOver || full.Winner == nil || full.Draws == 0 {
		t.Fatalf("report=%+v ops=%d", full, len(ops))
	}

	latest, err := snapshot.Latest(SnapshotDir(matchDir))
	if err != nil || latest == "" {
		t.Fatalf("latest=%q err=%v", latest, err)
	}
	tail, err := Replay(cat, matchDir, latest)
	if err != nil {
		t.Fatalf("replay from latest: %v", err)
	}
	if tail.Turn != full.Turn || *tail.Winner != *full.Winner || tail.Ops > full.Ops {
		t.Fatalf("tail=%+v full=%+v", tail, full)
	}

	other, err := Replay(cat, MatchDir(dirs[model.Opponent], "match-1"), "")
	if err != nil {
		t.Fatalf("opponent replay: %v", err)
	}
	if other.Turn != full.Turn || other.Stakes != full.Stakes || *other.Winner != *full.Winner {
		t.Fatalf("peers replay differently: host=%+v opp=%+v", full, other)
	}
}

func TestReplay_DetectsTamperedLog(t *testing.T) {
	dirs := playBoth(t, 13)
	cat := catalogs.MustDefault()
	matchDir := MatchDir(dirs[model.Host], "match-1")

	ops, err := persistlog.ReadOps(matchDir)
	if err != nil {
		t.Fatal(err)
	}
	files, err := persistlog.Files(filepath.Join(matchDir, "ops"), "ops")
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			t.Fatal(err)
		}
	}
	w := persistlog.NewOpLogger(matchDir)
	for i, e := range ops {
		if i == len(ops)/2 {
			e.StateHash = flipFirst(e.StateHash)
		}
		if err := w.WriteOp(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := Replay(cat, matchDir, ""); match.KindOf(err) != match.KindStateHashMismatch {
		t.Fatalf("expected state hash mismatch, got %v", err)
	}
}

func flipFirst(hash string) string {
	if hash[0] == '0' {
		return "1" + hash[1:]
	}
	return "0" + hash[1:]
}
