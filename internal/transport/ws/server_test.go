package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"memewars.gg/internal/protocol"
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/tuning"
)

func startHost(t *testing.T) (*Server, string) {
	t.Helper()
	cat := catalogs.MustDefault()
	host := protocol.HostSide{MatchID: "m1", Seed: 9, NodeID: "host", Deck: cat.DefaultDeck}
	srv := NewServer(tuning.Defaults(), log.New(io.Discard, "", 0), func(_ context.Context, hello protocol.HelloMsg) (protocol.MatchMsg, error) {
		m, _, err := protocol.HostMatch(cat, host, hello)
		return m, err
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func hello(nodeID string) protocol.HelloMsg {
	cat := catalogs.MustDefault()
	return protocol.HelloMsg{NodeID: nodeID, Deck: cat.DefaultDeck, CatalogDigest: cat.Digest}
}

func TestServer_HandshakeAndExchange(t *testing.T) {
	srv, url := startHost(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opp, m, err := Dial(ctx, url, hello("opp"), tuning.Defaults())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer opp.Close()
	if m.MatchID != "m1" || m.OpponentNodeID != "opp" || m.StateHash.Hash == "" {
		t.Fatalf("unexpected match: %+v", m)
	}

	j, err := srv.Accept(ctx)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer j.Peer.Close()
	if j.Hello.NodeID != "opp" || j.Match.StateHash != m.StateHash {
		t.Fatalf("host side disagrees: %+v", j)
	}

	commit := protocol.CommitMsg{Type: protocol.TypeCommit, ProtocolVersion: protocol.Version, Turn: 1, Hash: strings.Repeat("a", 64)}
	if err := opp.Send(ctx, commit); err != nil {
		t.Fatalf("send: %v", err)
	}
	raw, err := j.Peer.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	var got protocol.CommitMsg
	if err := json.Unmarshal(raw, &got); err != nil || got != commit {
		t.Fatalf("got=%+v err=%v", got, err)
	}
}

func TestServer_QueuedMessagesSurviveClose(t *testing.T) {
	srv, url := startHost(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opp, _, err := Dial(ctx, url, hello("opp"), tuning.Defaults())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	j, err := srv.Accept(ctx)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer j.Peer.Close()

	for turn := 1; turn <= 3; turn++ {
		msg := protocol.RequestStateHashMsg{Type: protocol.TypeRequestStateHash, ProtocolVersion: protocol.Version, Turn: turn}
		if err := opp.Send(ctx, msg); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	_ = opp.Close()

	for turn := 1; turn <= 3; turn++ {
		raw, err := j.Peer.Recv(ctx)
		if err != nil {
			t.Fatalf("turn %d: %v", turn, err)
		}
		var got protocol.RequestStateHashMsg
		if err := json.Unmarshal(raw, &got); err != nil || got.Turn != turn {
			t.Fatalf("got=%+v err=%v", got, err)
		}
	}
	if _, err := j.Peer.Recv(ctx); err == nil {
		t.Fatalf("expected the link to be down")
	}
	if _, err := opp.Recv(ctx); err == nil {
		t.Fatalf("closed peer still receives")
	}
	if err := opp.Send(ctx, protocol.NewError(protocol.ErrInternal, "")); err == nil {
		t.Fatalf("closed peer still sends")
	}
}

func TestServer_SecondOpponentIsBusy(t *testing.T) {
	srv, url := startHost(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, _, err := Dial(ctx, url, hello("opp"), tuning.Defaults())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer first.Close()
	if _, err := srv.Accept(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, _, err = Dial(ctx, url, hello("late"), tuning.Defaults())
	var he *HandshakeError
	if !errors.As(err, &he) || he.Code != protocol.ErrMatchBusy {
		t.Fatalf("expected %s, got %v", protocol.ErrMatchBusy, err)
	}
}

func TestServer_RefusedHelloFreesTheSeat(t *testing.T) {
	srv, url := startHost(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bad := hello("opp")
	bad.CatalogDigest = strings.Repeat("0", 64)
	_, _, err := Dial(ctx, url, bad, tuning.Defaults())
	var he *HandshakeError
	if !errors.As(err, &he) || he.Code != protocol.ErrCatalogMismatch {
		t.Fatalf("expected %s, got %v", protocol.ErrCatalogMismatch, err)
	}

	p, _, err := Dial(ctx, url, hello("opp"), tuning.Defaults())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	defer p.Close()
	if _, err := srv.Accept(ctx); err != nil {
		t.Fatalf("accept: %v", err)
	}
}
