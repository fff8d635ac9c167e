package protocol

import (
	"errors"
	"testing"

	"memewars.gg/internal/sim/match"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrProtoVersion,
		ErrTooLarge,
		ErrMatchBusy,
		ErrCatalogMismatch,
		ErrBadDeck,
		ErrBadRequest,
		ErrInvalidTarget,
		ErrNoResource,
		ErrGameOver,
		ErrCommitMismatch,
		ErrNoPendingStake,
		ErrDesync,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeFor_RuleErrors(t *testing.T) {
	cases := map[match.ErrorKind]string{
		match.KindCardNotFound:       ErrBadRequest,
		match.KindTauntFirst:         ErrInvalidTarget,
		match.KindInsufficientMana:   ErrNoResource,
		match.KindGameOver:           ErrGameOver,
		match.KindCommitHashMismatch: ErrCommitMismatch,
		match.KindAlreadyRevealed:    ErrCommitMismatch,
		match.KindOwnStake:           ErrNoPendingStake,
		match.KindStateHashMismatch:  ErrDesync,
	}
	for kind, want := range cases {
		if got := CodeFor(&match.Error{Kind: kind}); got != want {
			t.Fatalf("%s: got=%s want=%s", kind, got, want)
		}
		if !IsKnownCode(CodeFor(&match.Error{Kind: kind})) {
			t.Fatalf("%s maps to an unknown code", kind)
		}
	}
	if got := CodeFor(errors.New("boom")); got != ErrInternal {
		t.Fatalf("plain error: got=%s", got)
	}
}
