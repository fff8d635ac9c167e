// Package observerproto is the spectator protocol: a bootstrap view of the public board and a
// stream of applied ops. Hands, decks and salts never appear in it.
package observerproto

import (
	"memewars.gg/internal/sim/match"
	"memewars.gg/internal/sim/model"
	"memewars.gg/internal/sim/session"
)

// Version is the observer protocol version (separate from the peer protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeBootstrap = "BOOTSTRAP"
	TypeEntry     = "ENTRY"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// HTTP response for GET /v1/observe/bootstrap, and the first WS message after SUBSCRIBE (with
// Type set). ENTRY messages for ops already folded into it may still follow.
type BootstrapResponse struct {
	Type            string      `json:"type,omitempty"`
	ProtocolVersion string      `json:"protocol_version"`
	MatchID         string      `json:"match_id"`
	Turn            int         `json:"turn"`
	Phase           string      `json:"phase"`
	Stakes          int         `json:"stakes"`
	PendingStake    *model.Seat `json:"pending_stake,omitempty"`
	Winner          *model.Seat `json:"winner,omitempty"`
	StateHash       string      `json:"state_hash"`
	Seats           [2]SeatView `json:"seats"`
	Feed            []CardView  `json:"feed"`
}

type SeatView struct {
	NodeID   string     `json:"node_id"`
	Score    int        `json:"score"`
	Mana     int        `json:"mana"`
	HandSize int        `json:"hand_size"`
	DeckSize int        `json:"deck_size"`
	Kitchen  []CardView `json:"kitchen"`
}

type CardView struct {
	InstanceID  string     `json:"instance_id"`
	VariantID   string     `json:"variant_id"`
	Owner       model.Seat `json:"owner"`
	Virality    int        `json:"virality"`
	FrozenTurns int        `json:"frozen_turns,omitempty"`
}

// Server -> Client. Sent after every applied op.
type EntryMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Seq       uint64          `json:"seq"`
	Kind      string          `json:"kind"`
	Seat      model.Seat      `json:"seat"`
	Turn      int             `json:"turn"`
	Phase     string          `json:"phase"`
	Stakes    int             `json:"stakes"`
	StateHash string          `json:"state_hash"`
	Resolved  bool            `json:"resolved,omitempty"`
	Winner    *model.Seat     `json:"winner,omitempty"`
	Commit    string          `json:"commit,omitempty"`
	Plan      *match.TurnPlan `json:"plan,omitempty"`
	Over      bool            `json:"over,omitempty"`
}

// Bootstrap builds the public view of g. It must run where g may be read (session.Query).
func Bootstrap(matchID string, g *match.Game) BootstrapResponse {
	resp := BootstrapResponse{
		ProtocolVersion: Version,
		MatchID:         matchID,
		Turn:            g.Turn,
		Phase:           string(g.Phase),
		Stakes:          g.Stakes,
		PendingStake:    g.PendingStake,
		Winner:          g.Winner,
		Feed:            cardViews(g.Feed),
	}
	if h, err := g.StateHash(); err == nil {
		resp.StateHash = h.Hash
	}
	for i, p := range g.Players {
		if p == nil {
			continue
		}
		resp.Seats[i] = SeatView{
			NodeID:   p.NodeID,
			Score:    p.Score,
			Mana:     p.Mana,
			HandSize: len(p.Hand),
			DeckSize: len(p.Deck),
			Kitchen:  cardViews(p.Kitchen),
		}
	}
	return resp
}

func FromNotice(n session.Notice) EntryMsg {
	e := n.Entry
	return EntryMsg{
		Type:            TypeEntry,
		ProtocolVersion: Version,
		Seq:             e.Seq,
		Kind:            string(e.Op.Kind),
		Seat:            e.Op.Seat,
		Turn:            e.Turn,
		Phase:           string(e.Phase),
		Stakes:          e.Stakes,
		StateHash:       e.StateHash,
		Resolved:        e.Resolved,
		Winner:          e.Winner,
		Commit:          e.Op.Hash,
		Plan:            e.Op.Plan,
		Over:            n.Over,
	}
}

func cardViews(cards []*match.Card) []CardView {
	out := make([]CardView, 0, len(cards))
	for _, c := range cards {
		out = append(out, CardView{
			InstanceID:  c.InstanceID,
			VariantID:   c.VariantID,
			Owner:       c.Owner,
			Virality:    c.Virality,
			FrozenTurns: c.FrozenTurns,
		})
	}
	return out
}
