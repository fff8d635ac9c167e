package session

import (
	"fmt"

	"memewars.gg/internal/sim/fairness"
	"memewars.gg/internal/sim/match"
	"memewars.gg/internal/sim/model"
)

type OpKind string

const (
	OpCommit      OpKind = "commit"
	OpReveal      OpKind = "reveal"
	OpCallBased   OpKind = "call_based"
	OpAcceptBased OpKind = "accept_based"
	OpFoldBased   OpKind = "fold_based"
)

// Op is one state-changing input from either seat. The op log is the ordered list of applied ops.
type Op struct {
	Kind OpKind     `json:"kind"`
	Seat model.Seat `json:"seat"`
	Turn int        `json:"turn"`

	Hash string          `json:"hash,omitempty"`
	Plan *match.TurnPlan `json:"plan,omitempty"`
	Salt string          `json:"salt,omitempty"`
}

// Entry is the log record of an applied op, with the state it left behind.
type Entry struct {
	Seq     uint64 `json:"seq"`
	MatchID string `json:"match_id"`
	Op      Op     `json:"op"`

	Turn      int         `json:"turn"`
	Phase     match.Phase `json:"phase"`
	Stakes    int         `json:"stakes"`
	StateHash string      `json:"state_hash"`
	// Resolved is set when the op completed a turn.
	Resolved bool        `json:"resolved,omitempty"`
	Winner   *model.Seat `json:"winner,omitempty"`
}

// RandomEntry is one fair-random draw, written to the audit log.
type RandomEntry struct {
	MatchID string `json:"match_id"`
	Seq     uint64 `json:"seq"`
	// Index is the draw's position in the game's random history.
	Index int                  `json:"index"`
	Event fairness.RandomEvent `json:"event"`
}

// ApplyOp runs op against g. Ops for another turn are rejected before touching the game.
func ApplyOp(g *match.Game, op Op) error {
	if !op.Seat.Valid() {
		return &match.Error{Kind: match.KindSeatNotFound, Phase: g.Phase, Detail: fmt.Sprintf("seat %d", op.Seat)}
	}
	if op.Turn != g.Turn && !g.Over() {
		seat := op.Seat
		return &match.Error{
			Kind:   match.KindCommitTurnMismatch,
			Seat:   &seat,
			Phase:  g.Phase,
			Detail: fmt.Sprintf("op for turn %d, current turn %d", op.Turn, g.Turn),
		}
	}
	switch op.Kind {
	case OpCommit:
		return g.RecordCommit(op.Seat, op.Hash)
	case OpReveal:
		if op.Plan == nil {
			seat := op.Seat
			return &match.Error{Kind: match.KindCommitHashMismatch, Seat: &seat, Phase: g.Phase, Detail: "reveal without plan"}
		}
		return g.RecordReveal(op.Seat, *op.Plan, op.Salt)
	case OpCallBased:
		return g.CallBased(op.Seat)
	case OpAcceptBased:
		return g.AcceptBased(op.Seat)
	case OpFoldBased:
		return g.FoldBased(op.Seat)
	}
	return fmt.Errorf("unknown op kind %q", op.Kind)
}
