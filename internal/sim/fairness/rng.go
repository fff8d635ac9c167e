package fairness

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"memewars.gg/internal/sim/model"
)

// Fair randomness: each seat owns a PCG stream derived from the public game seed. Every draw
// mixes one value from each stream and records both contributions, so either peer (or an
// auditor) can recompute every outcome from the seed and the published history.

type EventType string

const (
	EventShuffleDeck       EventType = "shuffle_deck"
	EventShuffleFeed       EventType = "shuffle_feed"
	EventRandomizeVirality EventType = "randomize_virality"
)

type EventKind struct {
	Type   EventType   `json:"type"`
	Seat   *model.Seat `json:"seat,omitempty"`
	CardID string      `json:"card_id,omitempty"`
}

func ShuffleDeck(s model.Seat) EventKind {
	return EventKind{Type: EventShuffleDeck, Seat: &s}
}

func ShuffleFeed() EventKind { return EventKind{Type: EventShuffleFeed} }

func RandomizeVirality(cardID string) EventKind {
	return EventKind{Type: EventRandomizeVirality, CardID: cardID}
}

// String is the label mixed into contribution salts.
func (k EventKind) String() string {
	switch k.Type {
	case EventShuffleDeck:
		if k.Seat != nil {
			return fmt.Sprintf("%s(%s)", k.Type, k.Seat.String())
		}
	case EventRandomizeVirality:
		return fmt.Sprintf("%s(%s)", k.Type, k.CardID)
	}
	return string(k.Type)
}

type Contribution struct {
	Seat       model.Seat `json:"seat"`
	Value      uint64     `json:"value"`
	Salt       string     `json:"salt"`
	Commitment string     `json:"commitment"`
	// Provenance ties the commitment to the seat owner's node identity. It is an audit tag,
	// not a signature: anyone who knows the identity can recompute it.
	Provenance string `json:"provenance"`
}

type RandomEvent struct {
	Turn          int            `json:"turn"`
	Bound         uint64         `json:"bound"`
	Result        uint64         `json:"result"`
	Kind          EventKind      `json:"kind"`
	Contributions []Contribution `json:"contributions"`
}

type RandomState struct {
	HostSeed         uint64        `json:"host_seed"`
	OpponentSeed     uint64        `json:"opponent_seed"`
	HostDraws        uint64        `json:"host_draws"`
	OpponentDraws    uint64        `json:"opponent_draws"`
	HostIdentity     string        `json:"host_identity"`
	OpponentIdentity string        `json:"opponent_identity"`
	History          []RandomEvent `json:"history"`
}

func NewRandomState(seed uint64, hostID, opponentID string) RandomState {
	return RandomState{
		HostSeed:         DeriveSeed(seed, "host"),
		OpponentSeed:     DeriveSeed(seed, "opponent"),
		HostIdentity:     hostID,
		OpponentIdentity: opponentID,
		History:          []RandomEvent{},
	}
}

// Generate returns a fair value in [0,bound). A zero bound returns 0 without consuming draws.
func (r *RandomState) Generate(bound uint64, turn int, kind EventKind) uint64 {
	if bound == 0 {
		return 0
	}
	host := r.draw(model.Host, bound, turn, kind)
	opp := r.draw(model.Opponent, bound, turn, kind)
	result := (host.Value + opp.Value) % bound
	r.History = append(r.History, RandomEvent{
		Turn:          turn,
		Bound:         bound,
		Result:        result,
		Kind:          kind,
		Contributions: []Contribution{host, opp},
	})
	return result
}

func (r *RandomState) draw(seat model.Seat, bound uint64, turn int, kind EventKind) Contribution {
	seed, draws, identity := r.HostSeed, &r.HostDraws, r.HostIdentity
	if seat == model.Opponent {
		seed, draws, identity = r.OpponentSeed, &r.OpponentDraws, r.OpponentIdentity
	}
	value := StreamValue(seed, *draws, bound)
	*draws++
	salt := DrawSalt(turn, seat, *draws, kind)
	return NewContribution(seat, value, salt, identity)
}

// Shuffle permutes n items in place through swap, Fisher-Yates from the top down.
func (r *RandomState) Shuffle(n int, turn int, kind EventKind, swap func(i, j int)) {
	if n <= 1 {
		return
	}
	for i := n - 1; i >= 1; i-- {
		j := int(r.Generate(uint64(i+1), turn, kind))
		swap(i, j)
	}
}

// Draws reports the cumulative draw count of a seat's stream.
func (r *RandomState) Draws(seat model.Seat) uint64 {
	if seat == model.Opponent {
		return r.OpponentDraws
	}
	return r.HostDraws
}

func NewContribution(seat model.Seat, value uint64, salt, identity string) Contribution {
	commitment := ContributionCommitment(value, salt)
	return Contribution{
		Seat:       seat,
		Value:      value,
		Salt:       salt,
		Commitment: commitment,
		Provenance: ProvenanceTag(commitment, seat, identity),
	}
}

func DrawSalt(turn int, seat model.Seat, drawNumber uint64, kind EventKind) string {
	return fmt.Sprintf("turn-%d-%s-draw-%d-%s", turn, seat.String(), drawNumber, kind.String())
}

func ContributionCommitment(value uint64, salt string) string {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	return HashHex(b[:], []byte(salt))
}

func ProvenanceTag(commitment string, seat model.Seat, identity string) string {
	return HashHex([]byte(commitment), []byte(seat.String()), []byte(identity))
}

// DeriveSeed takes the first 8 bytes (little endian) of sha256(seed_le || label).
func DeriveSeed(base uint64, label string) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], base)
	h := sha256.New()
	h.Write(b[:])
	h.Write([]byte(label))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}

// StreamValue re-derives a seat stream, skips the values consumed so far, and draws in [0,bound).
func StreamValue(seed, skip, bound uint64) uint64 {
	r := streamFromSeed(seed)
	for i := uint64(0); i < skip; i++ {
		_ = r.Uint64()
	}
	return r.Uint64N(bound)
}

func streamFromSeed(seed uint64) *rand.Rand {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], seed)
	sum := sha256.Sum256(b[:])
	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(sum[0:8]),
		binary.LittleEndian.Uint64(sum[8:16]),
	))
}
