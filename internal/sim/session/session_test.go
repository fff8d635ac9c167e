package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"memewars.gg/internal/persistence/snapshot"
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/match"
	"memewars.gg/internal/sim/model"
	"memewars.gg/internal/sim/tuning"
)

type memLog struct {
	mu     sync.Mutex
	ops    []Entry
	random []RandomEntry
	infos  []Info
}

func (m *memLog) WriteOp(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, e)
	return nil
}

func (m *memLog) WriteRandom(e RandomEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.random = append(m.random, e)
	return nil
}

func (m *memLog) RecordMatch(i Info) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, i)
}
func (m *memLog) RecordEntry(Entry)        {}
func (m *memLog) RecordRandom(RandomEntry) {}

func newGame(t *testing.T, seed uint64) *match.Game {
	t.Helper()
	cat := catalogs.MustDefault()
	g, err := match.New(cat, match.Setup{
		Seed:           seed,
		HostNodeID:     "node-h",
		OpponentNodeID: "node-o",
		HostDeck:       cat.DefaultDeck,
		OpponentDeck:   cat.DefaultDeck,
	})
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	return g
}

func startSession(t *testing.T, g *match.Game, logs *memLog, tune tuning.Tuning) (*Session, chan snapshot.SnapshotV1) {
	t.Helper()
	s, err := New(Config{MatchID: "m1", Game: g, Tuning: tune, OpLog: logs, Audit: logs, Index: logs})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	snaps := make(chan snapshot.SnapshotV1, 8)
	s.SetSnapshotSink(snaps)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, snaps
}

func turnOps(t *testing.T, turn int, host, opp match.TurnPlan) []Op {
	t.Helper()
	var ops []Op
	plans := [2]match.TurnPlan{host.Normalized(), opp.Normalized()}
	for _, seat := range model.Seats {
		h, err := plans[seat].Commitment("salt")
		if err != nil {
			t.Fatalf("commitment: %v", err)
		}
		ops = append(ops, Op{Kind: OpCommit, Seat: seat, Turn: turn, Hash: h})
	}
	for _, seat := range model.Seats {
		plan := plans[seat]
		ops = append(ops, Op{Kind: OpReveal, Seat: seat, Turn: turn, Plan: &plan, Salt: "salt"})
	}
	return ops
}

func TestSession_AppliesAndLogs(t *testing.T) {
	logs := &memLog{}
	s, snaps := startSession(t, newGame(t, 1), logs, tuning.Defaults())
	ctx := context.Background()

	var last Entry
	for _, op := range turnOps(t, 1, match.TurnPlan{}, match.TurnPlan{}) {
		e, err := s.Submit(ctx, op)
		if err != nil {
			t.Fatalf("submit %s: %v", op.Kind, err)
		}
		last = e
	}
	if !last.Resolved || last.Turn != 2 || last.Seq != 4 || last.Phase != match.PhaseCommit {
		t.Fatalf("last entry=%+v", last)
	}

	logs.mu.Lock()
	nOps, nRandom, nInfos := len(logs.ops), len(logs.random), len(logs.infos)
	logs.mu.Unlock()
	if nOps != 4 || nInfos != 1 {
		t.Fatalf("ops=%d infos=%d", nOps, nInfos)
	}
	if want := 2 * (match.MaxDeck - 1); nRandom != want {
		t.Fatalf("random entries=%d want=%d", nRandom, want)
	}

	select {
	case snap := <-snaps:
		if snap.Header.Turn != 1 || snap.Header.Seq != 0 || snap.Header.MatchID != "m1" {
			t.Fatalf("initial snapshot header=%+v", snap.Header)
		}
	case <-time.After(time.Second):
		t.Fatalf("no initial snapshot")
	}

	h, ok, err := s.BoundaryHash(ctx, 2)
	if err != nil || !ok || h != last.StateHash {
		t.Fatalf("boundary=%q ok=%v err=%v want=%q", h, ok, err, last.StateHash)
	}
}

func TestSession_RejectedOpIsNotLogged(t *testing.T) {
	logs := &memLog{}
	s, _ := startSession(t, newGame(t, 2), logs, tuning.Defaults())
	ctx := context.Background()

	_, err := s.Submit(ctx, Op{Kind: OpCommit, Seat: model.Host, Turn: 7, Hash: "x"})
	if match.KindOf(err) != match.KindCommitTurnMismatch {
		t.Fatalf("err=%v want commit_turn_mismatch", err)
	}
	_, err = s.Submit(ctx, Op{Kind: OpAcceptBased, Seat: model.Host, Turn: 1})
	if !errors.Is(err, match.ErrNoPendingStake) {
		t.Fatalf("err=%v want no_pending_stake", err)
	}
	logs.mu.Lock()
	defer logs.mu.Unlock()
	if len(logs.ops) != 0 {
		t.Fatalf("rejected ops were logged: %d", len(logs.ops))
	}
}

func TestSession_PeerHashMismatchStops(t *testing.T) {
	s, _ := startSession(t, newGame(t, 3), &memLog{}, tuning.Defaults())
	ctx := context.Background()

	local, _, err := s.BoundaryHash(ctx, 1)
	if err != nil {
		t.Fatalf("boundary: %v", err)
	}
	if err := s.VerifyPeerHash(ctx, match.StateHash{Turn: 1, Hash: local}); err != nil {
		t.Fatalf("matching hash: %v", err)
	}
	if err := s.VerifyPeerHash(ctx, match.StateHash{Turn: 1, Hash: "bogus"}); !errors.Is(err, match.ErrStateHashMismatch) {
		t.Fatalf("err=%v want state_hash_mismatch", err)
	}
	_, err = s.Submit(ctx, Op{Kind: OpCallBased, Seat: model.Host, Turn: 1})
	if !errors.Is(err, match.ErrStateHashMismatch) {
		t.Fatalf("ops after desync: err=%v", err)
	}
}

func TestSession_EarlyPeerHashCheckedAtTurnStart(t *testing.T) {
	s, _ := startSession(t, newGame(t, 4), &memLog{}, tuning.Defaults())
	ctx := context.Background()

	if err := s.VerifyPeerHash(ctx, match.StateHash{Turn: 2, Hash: "bogus"}); err != nil {
		t.Fatalf("early hash should be deferred: %v", err)
	}
	ops := turnOps(t, 1, match.TurnPlan{}, match.TurnPlan{})
	var err error
	for _, op := range ops {
		if _, err = s.Submit(ctx, op); err != nil {
			break
		}
	}
	if !errors.Is(err, match.ErrStateHashMismatch) {
		t.Fatalf("err=%v want state_hash_mismatch on turn 2", err)
	}
}

func TestApplyOp_ReplayMatchesLog(t *testing.T) {
	logs := &memLog{}
	s, _ := startSession(t, newGame(t, 5), logs, tuning.Defaults())
	ctx := context.Background()
	for turn := 1; turn <= 3; turn++ {
		for _, op := range turnOps(t, turn, match.TurnPlan{Based: turn == 2}, match.TurnPlan{Based: turn == 2}) {
			if _, err := s.Submit(ctx, op); err != nil {
				t.Fatalf("turn %d %s: %v", turn, op.Kind, err)
			}
		}
	}

	replay := newGame(t, 5)
	logs.mu.Lock()
	defer logs.mu.Unlock()
	for _, e := range logs.ops {
		if err := ApplyOp(replay, e.Op); err != nil {
			t.Fatalf("seq %d: %v", e.Seq, err)
		}
		h, _ := replay.StateHash()
		if h.Hash != e.StateHash {
			t.Fatalf("seq %d: hash=%s want=%s", e.Seq, h.Hash, e.StateHash)
		}
	}
	if replay.Stakes != 2 || replay.Turn != 4 {
		t.Fatalf("stakes=%d turn=%d", replay.Stakes, replay.Turn)
	}
}

func TestApplyOp_RejectsBadInput(t *testing.T) {
	g := newGame(t, 6)
	if err := ApplyOp(g, Op{Kind: OpReveal, Seat: model.Host, Turn: 1}); match.KindOf(err) != match.KindCommitHashMismatch {
		t.Fatalf("reveal without plan: err=%v", err)
	}
	if err := ApplyOp(g, Op{Kind: "shrug", Seat: model.Host, Turn: 1}); err == nil || match.KindOf(err) != 0 {
		t.Fatalf("unknown kind: err=%v", err)
	}
	if err := ApplyOp(g, Op{Kind: OpCommit, Seat: model.Seat(9), Turn: 1}); match.KindOf(err) != match.KindSeatNotFound {
		t.Fatalf("bad seat: err=%v", err)
	}
}
