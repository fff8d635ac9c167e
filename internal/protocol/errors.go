package protocol

import "memewars.gg/internal/sim/match"

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"
	ErrTooLarge        = "E_TOO_LARGE"

	// Match routing/handshake.
	ErrMatchBusy       = "E_MATCH_BUSY"
	ErrCatalogMismatch = "E_CATALOG_MISMATCH"
	ErrBadDeck         = "E_BAD_DECK"

	// Rule layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrInvalidTarget  = "E_INVALID_TARGET"
	ErrNoResource     = "E_NO_RESOURCE"
	ErrGameOver       = "E_GAME_OVER"
	ErrCommitMismatch = "E_COMMIT_MISMATCH"
	ErrNoPendingStake = "E_NO_PENDING_STAKE"
	ErrDesync         = "E_DESYNC"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrTooLarge:        {},
	ErrMatchBusy:       {},
	ErrCatalogMismatch: {},
	ErrBadDeck:         {},
	ErrBadRequest:      {},
	ErrInvalidTarget:   {},
	ErrNoResource:      {},
	ErrGameOver:        {},
	ErrCommitMismatch:  {},
	ErrNoPendingStake:  {},
	ErrDesync:          {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// CodeFor maps a rule error to its wire code. Errors that are not rule errors map to E_INTERNAL.
func CodeFor(err error) string {
	switch match.KindOf(err) {
	case match.KindSeatNotFound, match.KindCardNotFound, match.KindWrongClass, match.KindDuplicateCard,
		match.KindTooManyPlays, match.KindUnknownCard:
		return ErrBadRequest
	case match.KindInvalidTarget, match.KindTauntFirst, match.KindStealthTarget:
		return ErrInvalidTarget
	case match.KindInsufficientMana:
		return ErrNoResource
	case match.KindGameOver:
		return ErrGameOver
	case match.KindCommitTurnMismatch, match.KindCommitHashMismatch, match.KindAlreadyRevealed:
		return ErrCommitMismatch
	case match.KindNoPendingStake, match.KindOwnStake:
		return ErrNoPendingStake
	case match.KindStateHashMismatch:
		return ErrDesync
	case match.KindStartingHand:
		return ErrBadDeck
	}
	return ErrInternal
}
