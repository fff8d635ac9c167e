package model

import (
	"encoding/json"
	"fmt"
)

// Seat is one of the two fixed roles in a match.
type Seat uint8

const (
	Host Seat = iota
	Opponent
)

var Seats = [2]Seat{Host, Opponent}

func (s Seat) Other() Seat {
	if s == Host {
		return Opponent
	}
	return Host
}

func (s Seat) Valid() bool { return s == Host || s == Opponent }

func (s Seat) String() string {
	switch s {
	case Host:
		return "host"
	case Opponent:
		return "opponent"
	default:
		return fmt.Sprintf("seat(%d)", uint8(s))
	}
}

func (s Seat) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid seat %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Seat) UnmarshalText(b []byte) error {
	v, err := ParseSeat(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseSeat(v string) (Seat, error) {
	switch v {
	case "host", "HOST", "Host":
		return Host, nil
	case "opponent", "OPPONENT", "Opponent":
		return Opponent, nil
	}
	return 0, fmt.Errorf("unknown seat %q", v)
}

type Zone string

const (
	ZoneDeck    Zone = "deck"
	ZoneHand    Zone = "hand"
	ZoneKitchen Zone = "kitchen"
	ZoneFeed    Zone = "feed"
	ZoneAbyss   Zone = "abyss"
)

// Location places a card instance in exactly one zone. Slot is only meaningful in the feed.
type Location struct {
	Zone Zone `json:"zone"`
	Slot int  `json:"slot,omitempty"`
}

func At(z Zone) Location          { return Location{Zone: z} }
func FeedAt(slot int) Location    { return Location{Zone: ZoneFeed, Slot: slot} }
func (l Location) In(z Zone) bool { return l.Zone == z }

type TargetKind string

const (
	TargetAnyKitchen   TargetKind = "any_kitchen"
	TargetEnemyKitchen TargetKind = "enemy_kitchen"
	TargetFeedSlot     TargetKind = "feed_slot"
	TargetCard         TargetKind = "card"
)

// Target names what an exploit is aimed at. The JSON form is part of the commitment contract:
// slot is emitted only for feed_slot (including slot 0) and card_id only for card.
type Target struct {
	Kind   TargetKind
	Slot   int
	CardID string
}

func EnemyKitchen() *Target        { return &Target{Kind: TargetEnemyKitchen} }
func AnyKitchen() *Target          { return &Target{Kind: TargetAnyKitchen} }
func FeedSlot(slot int) *Target    { return &Target{Kind: TargetFeedSlot, Slot: slot} }
func CardTarget(id string) *Target { return &Target{Kind: TargetCard, CardID: id} }

type targetWire struct {
	Kind   TargetKind `json:"kind"`
	Slot   *int       `json:"slot,omitempty"`
	CardID *string    `json:"card_id,omitempty"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	w := targetWire{Kind: t.Kind}
	switch t.Kind {
	case TargetAnyKitchen, TargetEnemyKitchen:
	case TargetFeedSlot:
		slot := t.Slot
		w.Slot = &slot
	case TargetCard:
		id := t.CardID
		w.CardID = &id
	default:
		return nil, fmt.Errorf("unknown target kind %q", t.Kind)
	}
	return json.Marshal(w)
}

func (t *Target) UnmarshalJSON(b []byte) error {
	var w targetWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := Target{Kind: w.Kind}
	switch w.Kind {
	case TargetAnyKitchen, TargetEnemyKitchen:
	case TargetFeedSlot:
		if w.Slot == nil {
			return fmt.Errorf("feed_slot target missing slot")
		}
		if *w.Slot < 0 {
			return fmt.Errorf("feed_slot target has negative slot %d", *w.Slot)
		}
		out.Slot = *w.Slot
	case TargetCard:
		if w.CardID == nil || *w.CardID == "" {
			return fmt.Errorf("card target missing card_id")
		}
		out.CardID = *w.CardID
	default:
		return fmt.Errorf("unknown target kind %q", w.Kind)
	}
	*t = out
	return nil
}

func (t Target) String() string {
	switch t.Kind {
	case TargetFeedSlot:
		return fmt.Sprintf("feed_slot(%d)", t.Slot)
	case TargetCard:
		return fmt.Sprintf("card(%s)", t.CardID)
	default:
		return string(t.Kind)
	}
}
