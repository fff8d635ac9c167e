package fairness

import (
	"fmt"

	"memewars.gg/internal/sim/model"
)

// VerifyHistory recomputes every random event from the public seed and the seat identities.
// It checks values, salts, commitments, provenance tags and results, and that the history
// accounts for the recorded draw counters.
func VerifyHistory(seed uint64, st RandomState) error {
	replay := NewRandomState(seed, st.HostIdentity, st.OpponentIdentity)
	if replay.HostSeed != st.HostSeed || replay.OpponentSeed != st.OpponentSeed {
		return fmt.Errorf("stream seeds do not derive from game seed %d", seed)
	}
	for i, ev := range st.History {
		if err := verifyEvent(&replay, ev); err != nil {
			return fmt.Errorf("random event %d: %w", i, err)
		}
	}
	if replay.HostDraws != st.HostDraws || replay.OpponentDraws != st.OpponentDraws {
		return fmt.Errorf("draw counters mismatch: history host=%d opponent=%d, state host=%d opponent=%d",
			replay.HostDraws, replay.OpponentDraws, st.HostDraws, st.OpponentDraws)
	}
	return nil
}

func verifyEvent(replay *RandomState, ev RandomEvent) error {
	if ev.Bound == 0 {
		return fmt.Errorf("zero bound recorded")
	}
	if len(ev.Contributions) != 2 {
		return fmt.Errorf("want 2 contributions, got %d", len(ev.Contributions))
	}
	before := len(replay.History)
	result := replay.Generate(ev.Bound, ev.Turn, ev.Kind)
	want := replay.History[before]
	for i, seat := range model.Seats {
		got := ev.Contributions[i]
		exp := want.Contributions[i]
		if got.Seat != seat {
			return fmt.Errorf("contribution %d: seat=%s want=%s", i, got.Seat, seat)
		}
		if got.Value != exp.Value {
			return fmt.Errorf("%s value=%d want=%d", seat, got.Value, exp.Value)
		}
		if got.Salt != exp.Salt {
			return fmt.Errorf("%s salt=%q want=%q", seat, got.Salt, exp.Salt)
		}
		if got.Commitment != ContributionCommitment(got.Value, got.Salt) {
			return fmt.Errorf("%s commitment does not match value and salt", seat)
		}
		if got.Provenance != exp.Provenance {
			return fmt.Errorf("%s provenance tag mismatch", seat)
		}
	}
	if ev.Result != result {
		return fmt.Errorf("result=%d want=%d", ev.Result, result)
	}
	return nil
}
