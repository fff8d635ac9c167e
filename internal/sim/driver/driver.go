package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"memewars.gg/internal/protocol"
	"memewars.gg/internal/sim/autoplay"
	"memewars.gg/internal/sim/match"
	"memewars.gg/internal/sim/model"
	"memewars.gg/internal/sim/session"
)

var (
	ErrPeerError = errors.New("peer reported an error")
	ErrPeerGone  = errors.New("peer closed the link")
)

// Link carries wire messages to and from the other peer, in order.
type Link interface {
	Send(ctx context.Context, v any) error
	Recv(ctx context.Context) ([]byte, error)
}

// Player decides the local seat's moves.
type Player interface {
	Plan(g *match.Game, seat model.Seat) match.TurnPlan
	WantsCall(g *match.Game, seat model.Seat) bool
	Accepts(g *match.Game, seat model.Seat) bool
}

type Config struct {
	Session *session.Session
	Link    Link
	Seat    model.Seat
	Player  Player

	// HashEvery sends a STATE_HASH after every n-th resolved turn. The final turn is always sent.
	HashEvery int
	// FinalWait bounds how long to wait for the peer's last state hash after the match ends.
	FinalWait time.Duration
	Logger    *log.Logger
}

type Result struct {
	Winner *model.Seat
	Turn   int
	Stakes int
	// Verified is set when the peer's final state hash matched ours.
	Verified bool
}

// Driver plays one seat of a session against a remote peer: local decisions go to the session
// first and then to the peer; peer messages are applied to the session in arrival order.
type Driver struct {
	cfg    Config
	logger *log.Logger

	turn      int
	called    bool
	committed bool
	revealed  bool
	plan      match.TurnPlan
	salt      string

	finalTurn int
	awaiting  bool
	verified  bool
}

func New(cfg Config) (*Driver, error) {
	if cfg.Session == nil || cfg.Link == nil {
		return nil, errors.New("driver: session and link are required")
	}
	if cfg.Player == nil {
		cfg.Player = autoplay.New()
	}
	if cfg.FinalWait <= 0 {
		cfg.FinalWait = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[driver] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Driver{cfg: cfg, logger: logger}, nil
}

func (d *Driver) Run(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan []byte, 16)
	recvErr := make(chan error, 1)
	go func() {
		for {
			b, err := d.cfg.Link.Recv(ctx)
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case msgs <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	var final <-chan time.Time
	for {
		over, err := d.advance(ctx)
		if err != nil {
			return d.result(ctx), d.fail(ctx, err)
		}
		if over {
			if !d.awaiting || d.verified {
				return d.result(ctx), nil
			}
			if final == nil {
				t := time.NewTimer(d.cfg.FinalWait)
				defer t.Stop()
				final = t.C
			}
		}

		select {
		case <-ctx.Done():
			return d.result(ctx), ctx.Err()
		case <-final:
			d.logger.Printf("seat=%s no final state hash from peer", d.cfg.Seat)
			return d.result(ctx), nil
		case err := <-recvErr:
			// Messages read before the link closed still count.
			for drained := false; !drained; {
				select {
				case b := <-msgs:
					if herr := d.handle(ctx, b); herr != nil {
						return d.result(ctx), d.fail(ctx, herr)
					}
				default:
					drained = true
				}
			}
			if over, _ := d.advance(ctx); over {
				return d.result(ctx), nil
			}
			return d.result(ctx), fmt.Errorf("%w: %v", ErrPeerGone, err)
		case b := <-msgs:
			if err := d.handle(ctx, b); err != nil {
				return d.result(ctx), d.fail(ctx, err)
			}
		}
	}
}

type view struct {
	turn        int
	over        bool
	pending     *model.Seat
	theirCommit bool
}

// advance takes every local action the current state allows.
func (d *Driver) advance(ctx context.Context) (bool, error) {
	for {
		var (
			v    view
			call bool
			plan match.TurnPlan
			keep bool
		)
		me, them := d.cfg.Seat, d.cfg.Seat.Other()
		err := d.cfg.Session.Query(ctx, func(g *match.Game) {
			v = view{turn: g.Turn, over: g.Over(), pending: g.PendingStake}
			if p := g.Player(them); p != nil && p.Commit != nil && p.Commit.Turn == g.Turn {
				v.theirCommit = true
			}
			if v.over {
				return
			}
			if v.turn != d.turn {
				d.turn = v.turn
				d.called, d.committed, d.revealed = false, false, false
			}
			switch {
			case v.pending != nil && *v.pending == them:
				keep = d.cfg.Player.Accepts(g, me)
			case !d.committed && !d.called && v.pending == nil:
				call = d.cfg.Player.WantsCall(g, me)
			}
			if !d.committed && !call {
				plan = d.cfg.Player.Plan(g, me)
			}
		})
		if err != nil {
			return false, err
		}
		if v.over {
			return true, nil
		}

		switch {
		case v.pending != nil && *v.pending == them:
			kind, typ := session.OpAcceptBased, protocol.TypeAcceptBased
			if !keep {
				kind, typ = session.OpFoldBased, protocol.TypeFoldBased
			}
			op := session.Op{Kind: kind, Seat: me, Turn: v.turn}
			if err := d.local(ctx, op, protocol.StakeMsg{Type: typ, ProtocolVersion: protocol.Version, Turn: v.turn}); err != nil {
				return false, err
			}

		case call:
			d.called = true
			op := session.Op{Kind: session.OpCallBased, Seat: me, Turn: v.turn}
			msg := protocol.StakeMsg{Type: protocol.TypeCallBased, ProtocolVersion: protocol.Version, Turn: v.turn}
			if err := d.local(ctx, op, msg); err != nil {
				return false, err
			}

		case !d.committed:
			hash, salt, err := autoplay.Seal(plan)
			if err != nil {
				return false, err
			}
			d.plan, d.salt, d.committed = plan.Normalized(), salt, true
			op := session.Op{Kind: session.OpCommit, Seat: me, Turn: v.turn, Hash: hash}
			msg := protocol.CommitMsg{Type: protocol.TypeCommit, ProtocolVersion: protocol.Version, Turn: v.turn, Hash: hash}
			if err := d.local(ctx, op, msg); err != nil {
				return false, err
			}

		case !d.revealed && v.theirCommit && v.pending == nil:
			d.revealed = true
			plan := d.plan
			op := session.Op{Kind: session.OpReveal, Seat: me, Turn: v.turn, Plan: &plan, Salt: d.salt}
			msg := protocol.RevealMsg{Type: protocol.TypeReveal, ProtocolVersion: protocol.Version, Turn: v.turn, Plan: plan, Salt: d.salt}
			if err := d.local(ctx, op, msg); err != nil {
				return false, err
			}

		default:
			return false, nil
		}
	}
}

// local applies one of our own ops, then tells the peer.
func (d *Driver) local(ctx context.Context, op session.Op, msg any) error {
	entry, err := d.cfg.Session.Submit(ctx, op)
	if err != nil {
		return fmt.Errorf("local %s: %w", op.Kind, err)
	}
	if err := d.cfg.Link.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", op.Kind, err)
	}
	return d.afterEntry(ctx, entry)
}

func (d *Driver) remote(ctx context.Context, op session.Op) error {
	entry, err := d.cfg.Session.Submit(ctx, op)
	if err != nil {
		return fmt.Errorf("peer %s: %w", op.Kind, err)
	}
	return d.afterEntry(ctx, entry)
}

func (d *Driver) afterEntry(ctx context.Context, e session.Entry) error {
	if !e.Resolved {
		return nil
	}
	over := e.Phase == match.PhaseGameOver
	if over {
		d.finalTurn, d.awaiting = e.Turn, d.cfg.HashEvery > 0
	}
	if d.cfg.HashEvery <= 0 || (!over && e.Turn%d.cfg.HashEvery != 0) {
		return nil
	}
	msg := protocol.StateHashMsg{Type: protocol.TypeStateHash, ProtocolVersion: protocol.Version, Turn: e.Turn, Hash: e.StateHash}
	return d.cfg.Link.Send(ctx, msg)
}

func (d *Driver) handle(ctx context.Context, raw []byte) error {
	base, err := protocol.ValidateMessage(raw)
	if err != nil {
		return err
	}
	them := d.cfg.Seat.Other()
	switch base.Type {
	case protocol.TypeCommit:
		var m protocol.CommitMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return badRequest(err)
		}
		return d.remote(ctx, session.Op{Kind: session.OpCommit, Seat: them, Turn: m.Turn, Hash: m.Hash})

	case protocol.TypeReveal:
		var m protocol.RevealMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return badRequest(err)
		}
		plan := m.Plan
		return d.remote(ctx, session.Op{Kind: session.OpReveal, Seat: them, Turn: m.Turn, Plan: &plan, Salt: m.Salt})

	case protocol.TypeCallBased, protocol.TypeAcceptBased, protocol.TypeFoldBased:
		var m protocol.StakeMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return badRequest(err)
		}
		kind := map[string]session.OpKind{
			protocol.TypeCallBased:   session.OpCallBased,
			protocol.TypeAcceptBased: session.OpAcceptBased,
			protocol.TypeFoldBased:   session.OpFoldBased,
		}[base.Type]
		return d.remote(ctx, session.Op{Kind: kind, Seat: them, Turn: m.Turn})

	case protocol.TypeStateHash:
		var m protocol.StateHashMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return badRequest(err)
		}
		if err := d.cfg.Session.VerifyPeerHash(ctx, match.StateHash{Turn: m.Turn, Hash: m.Hash}); err != nil {
			return err
		}
		if d.awaiting && m.Turn == d.finalTurn {
			d.verified = true
		}
		return nil

	case protocol.TypeRequestStateHash:
		var m protocol.RequestStateHashMsg
		if err := json.Unmarshal(raw, &m); err != nil {
			return badRequest(err)
		}
		h, ok, err := d.cfg.Session.BoundaryHash(ctx, m.Turn)
		if err != nil {
			return err
		}
		if !ok {
			return d.cfg.Link.Send(ctx, protocol.NewError(protocol.ErrBadRequest, fmt.Sprintf("no state hash for turn %d", m.Turn)))
		}
		return d.cfg.Link.Send(ctx, protocol.StateHashMsg{Type: protocol.TypeStateHash, ProtocolVersion: protocol.Version, Turn: m.Turn, Hash: h})

	case protocol.TypeError:
		var m protocol.ErrorMsg
		_ = json.Unmarshal(raw, &m)
		return &peerError{code: m.Code, message: m.Message}
	}
	return &protocol.InvalidMessage{Code: protocol.ErrProtoBadRequest, Err: fmt.Errorf("unexpected %s during a match", base.Type)}
}

type peerError struct {
	code    string
	message string
}

func (e *peerError) Error() string { return fmt.Sprintf("%s: %s %s", ErrPeerError, e.code, e.message) }
func (e *peerError) Unwrap() error { return ErrPeerError }

func badRequest(err error) error {
	return &protocol.InvalidMessage{Code: protocol.ErrProtoBadRequest, Err: err}
}

// fail tells the peer why we stop, unless the peer stopped first.
func (d *Driver) fail(ctx context.Context, err error) error {
	if errors.Is(err, ErrPeerError) || errors.Is(err, context.Canceled) {
		return err
	}
	code := protocol.CodeOf(err)
	d.logger.Printf("seat=%s stopping: %s %v", d.cfg.Seat, code, err)
	_ = d.cfg.Link.Send(ctx, protocol.NewError(code, err.Error()))
	return err
}

func (d *Driver) result(ctx context.Context) Result {
	var r Result
	_ = d.cfg.Session.Query(ctx, func(g *match.Game) {
		r = Result{Winner: g.Winner, Turn: g.Turn, Stakes: g.Stakes}
	})
	r.Verified = d.verified
	return r
}
