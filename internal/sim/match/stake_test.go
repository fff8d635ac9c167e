package match

import (
	"errors"
	"testing"

	"memewars.gg/internal/sim/model"
)

func TestStake_CallAcceptFold(t *testing.T) {
	g := newTestGame(t, 40)

	if err := g.CallBased(model.Host); err != nil {
		t.Fatalf("call: %v", err)
	}
	if g.Phase != PhaseStakePending || g.PendingStake == nil || *g.PendingStake != model.Host {
		t.Fatalf("phase=%s pending=%v", g.Phase, g.PendingStake)
	}
	if err := g.CallBased(model.Host); err != nil || g.Stakes != 1 {
		t.Fatalf("repeating own call: err=%v stakes=%d", err, g.Stakes)
	}
	if err := g.AcceptBased(model.Host); KindOf(err) != KindOwnStake {
		t.Fatalf("accepting own call: err=%v", err)
	}

	if err := g.AcceptBased(model.Opponent); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if g.Stakes != 2 || g.PendingStake != nil || g.Phase != PhaseCommit {
		t.Fatalf("stakes=%d pending=%v phase=%s", g.Stakes, g.PendingStake, g.Phase)
	}
	if err := g.AcceptBased(model.Opponent); KindOf(err) != KindNoPendingStake {
		t.Fatalf("accept without claim: err=%v", err)
	}

	if err := g.CallBased(model.Opponent); err != nil {
		t.Fatalf("call: %v", err)
	}
	if err := g.FoldBased(model.Host); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if g.Phase != PhaseGameOver || g.Winner == nil || *g.Winner != model.Opponent {
		t.Fatalf("phase=%s winner=%v", g.Phase, g.Winner)
	}
}

func TestStake_CounterCallReRaises(t *testing.T) {
	g := newTestGame(t, 41)
	if err := g.CallBased(model.Opponent); err != nil {
		t.Fatalf("call: %v", err)
	}
	if err := g.CallBased(model.Host); err != nil {
		t.Fatalf("counter call: %v", err)
	}
	if g.Stakes != 2 || g.PendingStake != nil || g.Phase != PhaseCommit {
		t.Fatalf("stakes=%d pending=%v phase=%s", g.Stakes, g.PendingStake, g.Phase)
	}
}

func TestStake_CounterCallResolvesRevealedTurn(t *testing.T) {
	g := newTestGame(t, 46)
	playTurn(t, g, TurnPlan{Based: true}, TurnPlan{})
	if g.Phase != PhaseStakePending {
		t.Fatalf("phase=%s want=%s", g.Phase, PhaseStakePending)
	}
	if err := g.CallBased(model.Opponent); err != nil {
		t.Fatalf("counter call: %v", err)
	}
	if g.Stakes != 2 || g.Turn != 2 || g.Phase != PhaseCommit || g.PendingStake != nil {
		t.Fatalf("stakes=%d turn=%d phase=%s pending=%v", g.Stakes, g.Turn, g.Phase, g.PendingStake)
	}
}

func TestStake_BothFlagsDoubleAndResolve(t *testing.T) {
	g := newTestGame(t, 42)
	playTurn(t, g, TurnPlan{Based: true}, TurnPlan{Based: true})
	if g.Stakes != 2 || g.Turn != 2 || g.Phase != PhaseCommit {
		t.Fatalf("stakes=%d turn=%d phase=%s", g.Stakes, g.Turn, g.Phase)
	}
}

func TestStake_SingleFlagWaitsForAnswer(t *testing.T) {
	g := newTestGame(t, 43)
	playTurn(t, g, TurnPlan{Based: true}, TurnPlan{})
	if g.Phase != PhaseStakePending || g.Turn != 1 {
		t.Fatalf("phase=%s turn=%d", g.Phase, g.Turn)
	}
	if _, ok := g.PlanFor(model.Opponent); !ok {
		t.Fatalf("revealed plans must be kept while the stake is pending")
	}
	if err := g.AcceptBased(model.Opponent); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if g.Stakes != 2 || g.Turn != 2 || g.Phase != PhaseCommit {
		t.Fatalf("stakes=%d turn=%d phase=%s", g.Stakes, g.Turn, g.Phase)
	}
}

func TestStake_Capped(t *testing.T) {
	g := newTestGame(t, 44)
	g.Stakes = 200
	g.doubleStakes()
	if g.Stakes != StakeCap {
		t.Fatalf("stakes=%d want=%d", g.Stakes, StakeCap)
	}
}

func TestCommit_FixedOnceRevealed(t *testing.T) {
	g := newTestGame(t, 44)
	clearBoard(g)
	meme := give(t, g, model.Host, "n03", model.ZoneHand)
	playTurn(t, g, TurnPlan{Play: meme.InstanceID, Based: true}, TurnPlan{})
	if g.Phase != PhaseStakePending {
		t.Fatalf("phase=%s want=%s", g.Phase, PhaseStakePending)
	}
	before := g.Players[model.Host].Commit.Hash

	swapped, err := TurnPlan{}.Commitment("other-salt")
	if err != nil {
		t.Fatalf("commitment: %v", err)
	}
	if err := g.RecordCommit(model.Host, swapped); !errors.Is(err, ErrAlreadyRevealed) {
		t.Fatalf("err=%v want already_revealed", err)
	}
	if got := g.Players[model.Host].Commit.Hash; got != before {
		t.Fatalf("commit hash=%s want=%s", got, before)
	}
	if _, ok := g.PlanFor(model.Host); !ok {
		t.Fatalf("revealed plan must survive a rejected re-commit")
	}

	if err := g.AcceptBased(model.Opponent); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if g.Turn != 2 || g.Stakes != 2 {
		t.Fatalf("turn=%d stakes=%d", g.Turn, g.Stakes)
	}
	if _, c := findCard(g.Players[model.Host].Kitchen, meme.InstanceID); c == nil {
		t.Fatalf("revealed play did not resolve")
	}
}

func TestCommit_ReplaceableBeforeReveal(t *testing.T) {
	g := newTestGame(t, 45)
	if err := g.RecordCommit(model.Host, "first"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := g.RecordCommit(model.Host, "second"); err != nil {
		t.Fatalf("re-commit: %v", err)
	}
	if got := g.Players[model.Host].Commit.Hash; got != "second" {
		t.Fatalf("hash=%s want=second", got)
	}
}
