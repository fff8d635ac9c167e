package match

import "memewars.gg/internal/sim/model"

func (g *Game) doubleStakes() {
	g.Stakes *= 2
	if g.Stakes > StakeCap {
		g.Stakes = StakeCap
	}
}

// CallBased raises the stakes. Calling against the other seat's pending claim accepts it and
// re-raises in one step. Repeating one's own pending call changes nothing.
func (g *Game) CallBased(seat model.Seat) error {
	if _, err := g.checkLive(seat); err != nil {
		return err
	}
	switch {
	case g.PendingStake == nil:
		g.PendingStake = seatPtr(seat)
		g.Phase = PhaseStakePending
	case *g.PendingStake != seat:
		// A counter-call accepts the pending claim, so a turn with both plans in resolves here.
		g.doubleStakes()
		g.PendingStake = nil
		g.resolveOrWait()
	}
	return nil
}

func (g *Game) pendingAgainst(seat model.Seat) error {
	if _, err := g.checkLive(seat); err != nil {
		return err
	}
	if g.PendingStake == nil {
		return g.fail(KindNoPendingStake, seat, "", "no based call to answer")
	}
	if *g.PendingStake == seat {
		return g.fail(KindOwnStake, seat, "", "cannot answer own based call")
	}
	return nil
}

func (g *Game) AcceptBased(seat model.Seat) error {
	if err := g.pendingAgainst(seat); err != nil {
		return err
	}
	g.doubleStakes()
	g.PendingStake = nil
	g.resolveOrWait()
	return nil
}

// FoldBased concedes the match to the caller of the pending claim.
func (g *Game) FoldBased(seat model.Seat) error {
	if err := g.pendingAgainst(seat); err != nil {
		return err
	}
	g.PendingStake = nil
	g.Phase = PhaseGameOver
	g.Winner = seatPtr(seat.Other())
	return nil
}
