package match

import (
	"errors"
	"fmt"
	"strings"

	"memewars.gg/internal/sim/model"
)

type ErrorClass uint8

const (
	ClassStructural ErrorClass = iota + 1
	ClassProtocol
	ClassResource
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassStructural:
		return "structural"
	case ClassProtocol:
		return "protocol"
	case ClassResource:
		return "resource"
	case ClassFatal:
		return "fatal"
	}
	return "unknown"
}

type ErrorKind uint8

const (
	KindSeatNotFound ErrorKind = iota + 1
	KindCardNotFound
	KindWrongClass
	KindDuplicateCard
	KindTooManyPlays
	KindInvalidTarget
	KindTauntFirst
	KindStealthTarget
	KindUnknownCard

	KindGameOver
	KindCommitTurnMismatch
	KindCommitHashMismatch
	KindAlreadyRevealed
	KindNoPendingStake
	KindOwnStake
	KindStateHashMismatch

	KindInsufficientMana

	KindStartingHand
)

var kindNames = map[ErrorKind]string{
	KindSeatNotFound:       "seat_not_found",
	KindCardNotFound:       "card_not_found",
	KindWrongClass:         "wrong_class",
	KindDuplicateCard:      "duplicate_card",
	KindTooManyPlays:       "too_many_plays",
	KindInvalidTarget:      "invalid_target",
	KindTauntFirst:         "taunt_first",
	KindStealthTarget:      "stealth_target",
	KindUnknownCard:        "unknown_card",
	KindGameOver:           "game_over",
	KindCommitTurnMismatch: "commit_turn_mismatch",
	KindCommitHashMismatch: "commit_hash_mismatch",
	KindAlreadyRevealed:    "already_revealed",
	KindNoPendingStake:     "no_pending_stake",
	KindOwnStake:           "own_stake",
	KindStateHashMismatch:  "state_hash_mismatch",
	KindInsufficientMana:   "insufficient_mana",
	KindStartingHand:       "starting_hand",
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k ErrorKind) Class() ErrorClass {
	switch k {
	case KindSeatNotFound, KindCardNotFound, KindWrongClass, KindDuplicateCard, KindTooManyPlays,
		KindInvalidTarget, KindTauntFirst, KindStealthTarget, KindUnknownCard:
		return ClassStructural
	case KindGameOver, KindCommitTurnMismatch, KindCommitHashMismatch, KindAlreadyRevealed, KindNoPendingStake,
		KindOwnStake, KindStateHashMismatch:
		return ClassProtocol
	case KindInsufficientMana:
		return ClassResource
	case KindStartingHand:
		return ClassFatal
	}
	return 0
}

// Error is the engine's rule error. Seat and Phase are context; CardID is set when a specific
// card is at fault.
type Error struct {
	Kind   ErrorKind
	Seat   *model.Seat
	CardID string
	Phase  Phase
	Detail string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Seat != nil {
		fmt.Fprintf(&b, " seat=%s", e.Seat.String())
	}
	if e.CardID != "" {
		fmt.Fprintf(&b, " card=%s", e.CardID)
	}
	if e.Phase != "" {
		fmt.Fprintf(&b, " phase=%s", e.Phase)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Is matches on Kind, so errors.Is(err, ErrGameOver) works for any game-over error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrGameOver          = &Error{Kind: KindGameOver}
	ErrCommitMismatch    = &Error{Kind: KindCommitHashMismatch}
	ErrAlreadyRevealed   = &Error{Kind: KindAlreadyRevealed}
	ErrNoPendingStake    = &Error{Kind: KindNoPendingStake}
	ErrInsufficientMana  = &Error{Kind: KindInsufficientMana}
	ErrStateHashMismatch = &Error{Kind: KindStateHashMismatch}
	ErrTauntFirst        = &Error{Kind: KindTauntFirst}
	ErrInvalidTarget     = &Error{Kind: KindInvalidTarget}
)

// KindOf extracts the rule error kind, or 0 when err is not a *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func (g *Game) fail(kind ErrorKind, seat model.Seat, cardID, format string, args ...any) *Error {
	s := seat
	return &Error{
		Kind:   kind,
		Seat:   &s,
		CardID: cardID,
		Phase:  g.Phase,
		Detail: fmt.Sprintf(format, args...),
	}
}
