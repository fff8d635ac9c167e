package fairness

import (
	"reflect"
	"testing"

	"memewars.gg/internal/sim/model"
)

func TestGenerate_SameSeedSameSequence(t *testing.T) {
	a := NewRandomState(42, "host-node", "opp-node")
	b := NewRandomState(42, "host-node", "opp-node")
	for i := 0; i < 50; i++ {
		bound := uint64(i%7 + 1)
		va := a.Generate(bound, i/10, ShuffleFeed())
		vb := b.Generate(bound, i/10, ShuffleFeed())
		if va != vb {
			t.Fatalf("draw %d: %d vs %d", i, va, vb)
		}
		if va >= bound {
			t.Fatalf("draw %d: value %d out of bound %d", i, va, bound)
		}
	}
	if !reflect.DeepEqual(a.History, b.History) {
		t.Fatalf("histories diverged")
	}
	if a.HostDraws != 50 || a.OpponentDraws != 50 {
		t.Fatalf("draws host=%d opp=%d want=50", a.HostDraws, a.OpponentDraws)
	}
}

func TestGenerate_ZeroBound(t *testing.T) {
	r := NewRandomState(7, "h", "o")
	if v := r.Generate(0, 1, ShuffleFeed()); v != 0 {
		t.Fatalf("got=%d want=0", v)
	}
	if r.HostDraws != 0 || r.OpponentDraws != 0 || len(r.History) != 0 {
		t.Fatalf("zero bound must not consume draws: %+v", r)
	}
}

func TestGenerate_ContributionRecord(t *testing.T) {
	r := NewRandomState(99, "h", "o")
	got := r.Generate(10, 3, RandomizeVirality("d02-7"))
	ev := r.History[0]
	if ev.Result != got || ev.Bound != 10 || ev.Turn != 3 {
		t.Fatalf("event mismatch: %+v", ev)
	}
	h, o := ev.Contributions[0], ev.Contributions[1]
	if h.Seat != model.Host || o.Seat != model.Opponent {
		t.Fatalf("contribution seats: %s %s", h.Seat, o.Seat)
	}
	if (h.Value+o.Value)%10 != got {
		t.Fatalf("result is not the sum of contributions mod bound")
	}
	if h.Salt != "turn-3-host-draw-1-randomize_virality(d02-7)" {
		t.Fatalf("host salt=%q", h.Salt)
	}
	if h.Commitment != ContributionCommitment(h.Value, h.Salt) {
		t.Fatalf("commitment mismatch")
	}
	if h.Provenance != ProvenanceTag(h.Commitment, model.Host, "h") {
		t.Fatalf("provenance mismatch")
	}
}

func TestShuffle_Reproducible(t *testing.T) {
	perm := func() []int {
		r := NewRandomState(1234, "h", "o")
		items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
		r.Shuffle(len(items), 0, ShuffleDeck(model.Host), func(i, j int) { items[i], items[j] = items[j], items[i] })
		return items
	}
	a, b := perm(), perm()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("permutations differ: %v vs %v", a, b)
	}
	seen := map[int]bool{}
	for _, v := range a {
		seen[v] = true
	}
	if len(seen) != 12 {
		t.Fatalf("not a permutation: %v", a)
	}

	r := NewRandomState(1234, "h", "o")
	r.Shuffle(12, 0, ShuffleDeck(model.Host), func(i, j int) {})
	if len(r.History) != 11 {
		t.Fatalf("shuffle of 12 should draw 11 times, got %d", len(r.History))
	}
	for i, ev := range r.History {
		if want := uint64(12 - i); ev.Bound != want {
			t.Fatalf("draw %d bound=%d want=%d", i, ev.Bound, want)
		}
	}
}

func TestShuffle_DifferentSeedDifferentOrder(t *testing.T) {
	order := func(seed uint64) []int {
		r := NewRandomState(seed, "h", "o")
		items := make([]int, 12)
		for i := range items {
			items[i] = i
		}
		r.Shuffle(len(items), 0, ShuffleFeed(), func(i, j int) { items[i], items[j] = items[j], items[i] })
		return items
	}
	if reflect.DeepEqual(order(1), order(2)) && reflect.DeepEqual(order(2), order(3)) {
		t.Fatalf("three seeds produced the same permutation")
	}
}

func TestVerifyHistory(t *testing.T) {
	r := NewRandomState(555, "alice", "bob")
	r.Shuffle(6, 0, ShuffleDeck(model.Opponent), func(i, j int) {})
	r.Generate(15, 2, RandomizeVirality("d02-1"))
	if err := VerifyHistory(555, r); err != nil {
		t.Fatalf("verify: %v", err)
	}

	tampered := r
	tampered.History = append([]RandomEvent(nil), r.History...)
	ev := tampered.History[2]
	ev.Contributions = append([]Contribution(nil), ev.Contributions...)
	ev.Contributions[1].Value++
	tampered.History[2] = ev
	if err := VerifyHistory(555, tampered); err == nil {
		t.Fatalf("expected tampered value to fail verification")
	}

	if err := VerifyHistory(556, r); err == nil {
		t.Fatalf("expected wrong seed to fail verification")
	}
}

func TestCommitment_SaltBinding(t *testing.T) {
	payload := []byte(`{"play":"","posts":[],"exploits":[],"based":false}`)
	s1, err := NewSalt()
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	s2, _ := NewSalt()
	if s1 == s2 {
		t.Fatalf("salts should differ")
	}
	if Commitment(payload, s1) == Commitment(payload, s2) {
		t.Fatalf("distinct salts must give distinct commitments")
	}
	if Commitment(payload, s1) != Commitment(payload, s1) {
		t.Fatalf("commitment must be deterministic")
	}
}
