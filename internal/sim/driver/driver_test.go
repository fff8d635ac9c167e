package driver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"memewars.gg/internal/sim/autoplay"
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/match"
	"memewars.gg/internal/sim/model"
	"memewars.gg/internal/sim/session"
	"memewars.gg/internal/sim/tuning"
)

type chanLink struct {
	in   <-chan []byte
	out  chan<- []byte
	once *sync.Once
}

func (l chanLink) Send(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case l.out <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l chanLink) Recv(ctx context.Context) ([]byte, error) {
	select {
	case b, ok := <-l.in:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l chanLink) Close() { l.once.Do(func() { close(l.out) }) }

func pipe() (chanLink, chanLink) {
	a, b := make(chan []byte, 64), make(chan []byte, 64)
	return chanLink{in: b, out: a, once: &sync.Once{}}, chanLink{in: a, out: b, once: &sync.Once{}}
}

func newSession(t *testing.T, ctx context.Context, seed uint64, mutate func(*match.Game)) *session.Session {
	t.Helper()
	cat := catalogs.MustDefault()
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
	if mutate != nil {
		mutate(g)
	}
	s, err := session.New(session.Config{MatchID: "m", Game: g, Tuning: tuning.Defaults(), Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	go func() { _ = s.Run(ctx) }()
	return s
}

type outcome struct {
	res Result
	err error
}

func play(t *testing.T, seed uint64, mutate func(*match.Game)) [2]outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	links := [2]chanLink{}
	links[model.Host], links[model.Opponent] = pipe()

	var out [2]outcome
	var wg sync.WaitGroup
	for _, seat := range model.Seats {
		var m func(*match.Game)
		if seat == model.Opponent {
			m = mutate
		}
		sess := newSession(t, ctx, seed, m)
		d, err := New(Config{
			Session:   sess,
			Link:      links[seat],
			Seat:      seat,
			Player:    autoplay.New(),
			HashEvery: 1,
			FinalWait: 2 * time.Second,
			Logger:    log.New(io.Discard, "", 0),
		})
		if err != nil {
			t.Fatalf("new driver: %v", err)
		}
		wg.Add(1)
		go func(seat model.Seat) {
			defer wg.Done()
			defer links[seat].Close()
			res, err := d.Run(ctx)
			out[seat] = outcome{res: res, err: err}
		}(seat)
	}
	wg.Wait()
	return out
}

func TestDriver_PlaysMatchToAgreement(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3} {
		out := play(t, seed, nil)
		for _, seat := range model.Seats {
			if out[seat].err != nil {
				t.Fatalf("seed %d %s: %v", seed, seat, out[seat].err)
			}
		}
		h, o := out[model.Host].res, out[model.Opponent].res
		if h.Winner == nil || o.Winner == nil || *h.Winner != *o.Winner {
			t.Fatalf("seed %d winners differ: host=%v opp=%v", seed, h.Winner, o.Winner)
		}
		if h.Turn != o.Turn || h.Stakes != o.Stakes {
			t.Fatalf("seed %d results differ: host=%+v opp=%+v", seed, h, o)
		}
		if !h.Verified || !o.Verified {
			t.Fatalf("seed %d final hash not verified: host=%v opp=%v", seed, h.Verified, o.Verified)
		}
	}
}

func TestDriver_StopsOnDesync(t *testing.T) {
	out := play(t, 4, func(g *match.Game) {
		g.Players[model.Host].NodeID = "someone-else"
	})
	var mismatch bool
	for _, seat := range model.Seats {
		if out[seat].err == nil {
			t.Fatalf("%s finished a desynced match without error", seat)
		}
		if errors.Is(out[seat].err, match.ErrStateHashMismatch) {
			mismatch = true
		}
	}
	if !mismatch {
		t.Fatalf("no side reported a state hash mismatch: host=%v opp=%v", out[model.Host].err, out[model.Opponent].err)
	}
}
