package match

import (
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/fairness"
	"memewars.gg/internal/sim/model"
)

type Phase string

const (
	PhaseLobby        Phase = "lobby"
	PhaseCommit       Phase = "commit"
	PhaseReveal       Phase = "reveal"
	PhaseResolving    Phase = "resolving"
	PhaseStakePending Phase = "stake_pending"
	PhaseGameOver     Phase = "game_over"
)

// Card is one instance of a catalog variant. Exploit effects are not copied onto the instance;
// they are looked up in the catalog by VariantID when validated or cast.
type Card struct {
	InstanceID   string             `json:"instance_id"`
	VariantID    string             `json:"variant_id"`
	Name         string             `json:"name"`
	Owner        model.Seat         `json:"owner"`
	Cost         int                `json:"cost"`
	Class        catalogs.CardClass `json:"class"`
	BaseVirality int                `json:"base_virality"`
	Virality     int                `json:"current_virality"`
	CookRate     int                `json:"cook_rate"`
	YieldRate    int                `json:"yield_rate"`
	Keywords     []catalogs.Keyword `json:"keywords"`
	Abilities    []catalogs.Ability `json:"abilities"`
	Volatile     int                `json:"volatile"`
	FrozenTurns  int                `json:"frozen_turns"`
	Protected    bool               `json:"protected_until_end"`
	Shield       int                `json:"shield"`
	PlayedTurn   int                `json:"played_turn"`
	Location     model.Location     `json:"location"`
}

func (c *Card) Has(kind catalogs.KeywordKind) bool { return catalogs.HasKeyword(c.Keywords, kind) }

func (c *Card) IsMeme() bool { return c.Class == catalogs.ClassMeme }

type Player struct {
	Seat         model.Seat  `json:"seat"`
	NodeID       string      `json:"node_id"`
	Deck         []*Card     `json:"deck"`
	Hand         []*Card     `json:"hand"`
	Kitchen      []*Card     `json:"kitchen"`
	Abyss        []*Card     `json:"abyss"`
	Mana         int         `json:"mana"`
	MaxMana      int         `json:"max_mana"`
	Score        int         `json:"score"`
	CostDiscount int         `json:"cost_discount"`
	ManaTaxNext  int         `json:"mana_tax_next"`
	FeedLocked   bool        `json:"feed_locked"`
	PinnedSlots  []int       `json:"pinned_slots"`
	Commit       *TurnCommit `json:"commit"`
	DeckValid    bool        `json:"deck_valid"`
	DeckError    string      `json:"deck_error,omitempty"`
}

// TurnCommit is the hash a seat published for a turn. Salt and Revealed are filled in together
// once a matching reveal arrives.
type TurnCommit struct {
	Turn     int       `json:"turn"`
	Hash     string    `json:"hash"`
	Salt     string    `json:"salt,omitempty"`
	Revealed *TurnPlan `json:"revealed,omitempty"`
}

type EventType string

const (
	EventRandom       EventType = "random"
	EventStartingHand EventType = "starting_hand"
	EventPlanRejected EventType = "plan_rejected"
)

type GameEvent struct {
	Type         EventType             `json:"type"`
	Random       *fairness.RandomEvent `json:"random,omitempty"`
	StartingHand *StartingHandEvent    `json:"starting_hand,omitempty"`
	PlanRejected *PlanRejectedEvent    `json:"plan_rejected,omitempty"`
}

// StartingHandEvent lists the pairs a seat cycled back under its deck before keeping one.
type StartingHandEvent struct {
	Seat   model.Seat `json:"seat"`
	Cycles [][]string `json:"cycles"`
	Chosen []string   `json:"chosen"`
}

type PlanRejectedEvent struct {
	Turn    int        `json:"turn"`
	Seat    model.Seat `json:"seat"`
	Kind    string     `json:"kind"`
	CardID  string     `json:"card_id,omitempty"`
	Message string     `json:"message"`
}

// Game is the full match state. Both peers hold an identical copy; every mutation is driven by
// the commit-reveal machine so the copies stay byte-identical.
type Game struct {
	Players      [2]*Player           `json:"players"`
	Feed         []*Card              `json:"feed"`
	Turn         int                  `json:"turn"`
	Initiative   model.Seat           `json:"initiative"`
	Phase        Phase                `json:"phase"`
	Stakes       int                  `json:"stakes"`
	PendingStake *model.Seat          `json:"pending_stake"`
	Winner       *model.Seat          `json:"winner"`
	Seed         uint64               `json:"game_seed"`
	NextInstance uint64               `json:"next_instance"`
	Random       fairness.RandomState `json:"rng"`
	Events       []GameEvent          `json:"events"`

	cat *catalogs.Catalog
}

// Attach binds the card table used for exploit lookups and spawns. A game decoded from JSON must
// be attached before it is driven.
func (g *Game) Attach(cat *catalogs.Catalog) { g.cat = cat }

func (g *Game) Catalog() *catalogs.Catalog { return g.cat }

func (g *Game) Player(seat model.Seat) *Player {
	if !seat.Valid() {
		return nil
	}
	return g.Players[seat]
}

func (g *Game) Over() bool { return g.Phase == PhaseGameOver }

func seatPtr(s model.Seat) *model.Seat { return &s }

func findCard(cards []*Card, id string) (int, *Card) {
	for i, c := range cards {
		if c.InstanceID == id {
			return i, c
		}
	}
	return -1, nil
}

func removeCard(cards *[]*Card, id string) *Card {
	i, c := findCard(*cards, id)
	if c == nil {
		return nil
	}
	*cards = append((*cards)[:i], (*cards)[i+1:]...)
	return c
}

// FindCard locates an instance in any zone.
func (g *Game) FindCard(id string) *Card {
	if _, c := findCard(g.Feed, id); c != nil {
		return c
	}
	for _, p := range g.Players {
		for _, zone := range [][]*Card{p.Deck, p.Hand, p.Kitchen, p.Abyss} {
			if _, c := findCard(zone, id); c != nil {
				return c
			}
		}
	}
	return nil
}
