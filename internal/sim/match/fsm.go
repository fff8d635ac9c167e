package match

import (
	"memewars.gg/internal/sim/model"
)

func (g *Game) seatPlayer(seat model.Seat) (*Player, error) {
	p := g.Player(seat)
	if p == nil {
		return nil, &Error{Kind: KindSeatNotFound, Phase: g.Phase, Detail: "no such seat"}
	}
	return p, nil
}

func (g *Game) checkLive(seat model.Seat) (*Player, error) {
	p, err := g.seatPlayer(seat)
	if err != nil {
		return nil, err
	}
	if g.Over() {
		return nil, g.fail(KindGameOver, seat, "", "match is over")
	}
	return p, nil
}

// RecordCommit stores a seat's commitment for the current turn, replacing any earlier one. Once
// the seat has revealed for this turn its plan is fixed.
func (g *Game) RecordCommit(seat model.Seat, hash string) error {
	p, err := g.checkLive(seat)
	if err != nil {
		return err
	}
	if c := p.Commit; c != nil && c.Turn == g.Turn && c.Revealed != nil {
		return g.fail(KindAlreadyRevealed, seat, "", "plan for turn %d already revealed", g.Turn)
	}
	p.Commit = &TurnCommit{Turn: g.Turn, Hash: hash}
	if g.Phase != PhaseReveal && g.Phase != PhaseStakePending {
		g.Phase = PhaseCommit
	}
	return nil
}

// RecordReveal checks plan and salt against the seat's commitment and stores them. When both
// seats have revealed, stake flags are applied and the turn resolves unless a based call is left
// pending.
func (g *Game) RecordReveal(seat model.Seat, plan TurnPlan, salt string) error {
	p, err := g.checkLive(seat)
	if err != nil {
		return err
	}
	plan = plan.Normalized()
	hash, err := plan.Commitment(salt)
	if err != nil {
		return g.fail(KindCommitHashMismatch, seat, "", "encode plan: %v", err)
	}
	if c := p.Commit; c != nil {
		if c.Turn != g.Turn {
			return g.fail(KindCommitTurnMismatch, seat, "", "commit for turn %d, current turn %d", c.Turn, g.Turn)
		}
		if c.Hash != hash {
			return g.fail(KindCommitHashMismatch, seat, "", "reveal does not match commitment")
		}
	}
	p.Commit = &TurnCommit{Turn: g.Turn, Hash: hash, Salt: salt, Revealed: &plan}
	if g.Phase != PhaseStakePending {
		g.Phase = PhaseReveal
	}
	g.afterReveal()
	return nil
}

// ReadyToResolve reports whether both seats have revealed for the current turn.
func (g *Game) ReadyToResolve() bool {
	for _, p := range g.Players {
		if p == nil || p.Commit == nil || p.Commit.Revealed == nil || p.Commit.Turn != g.Turn {
			return false
		}
	}
	return true
}

// PlanFor returns the revealed plan of a seat, if any.
func (g *Game) PlanFor(seat model.Seat) (TurnPlan, bool) {
	p := g.Player(seat)
	if p == nil || p.Commit == nil || p.Commit.Revealed == nil || p.Commit.Turn != g.Turn {
		return TurnPlan{}, false
	}
	return *p.Commit.Revealed, true
}

func (g *Game) afterReveal() {
	if !g.ReadyToResolve() || g.Phase == PhaseStakePending {
		return
	}
	host, _ := g.PlanFor(model.Host)
	opp, _ := g.PlanFor(model.Opponent)
	switch {
	case host.Based && opp.Based:
		g.doubleStakes()
	case host.Based:
		g.PendingStake = seatPtr(model.Host)
	case opp.Based:
		g.PendingStake = seatPtr(model.Opponent)
	}
	if g.PendingStake != nil {
		g.Phase = PhaseStakePending
		return
	}
	g.resolve()
}

// resolveOrWait runs the pipeline when both plans are in, otherwise returns to collecting commits.
func (g *Game) resolveOrWait() {
	if g.ReadyToResolve() {
		g.resolve()
		return
	}
	g.Phase = PhaseCommit
}
