package match

import (
	"errors"
	"fmt"

	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/fairness"
	"memewars.gg/internal/sim/model"
)

type Setup struct {
	Seed           uint64
	HostNodeID     string
	OpponentNodeID string
	HostDeck       []string
	OpponentDeck   []string
}

func (s Setup) deck(seat model.Seat) []string {
	if seat == model.Opponent {
		return s.OpponentDeck
	}
	return s.HostDeck
}

func (s Setup) nodeID(seat model.Seat) string {
	if seat == model.Opponent {
		return s.OpponentNodeID
	}
	return s.HostNodeID
}

// New builds a match from two deck lists. Unknown card ids are refused outright. A deck with the
// wrong size or composition still yields a game, already over, won by the valid side if any.
func New(cat *catalogs.Catalog, s Setup) (*Game, error) {
	if cat == nil {
		return nil, errors.New("match: nil catalog")
	}
	g := &Game{
		Feed:       []*Card{},
		Turn:       0,
		Initiative: model.Host,
		Phase:      PhaseLobby,
		Stakes:     1,
		Seed:       s.Seed,
		Random:     fairness.NewRandomState(s.Seed, s.HostNodeID, s.OpponentNodeID),
		cat:        cat,
	}
	for _, seat := range model.Seats {
		ids := s.deck(seat)
		for _, id := range ids {
			if _, ok := cat.Lookup(id); !ok {
				return nil, g.fail(KindUnknownCard, seat, id, "deck references unknown card %s", id)
			}
		}
		p := &Player{
			Seat:        seat,
			NodeID:      s.nodeID(seat),
			Deck:        make([]*Card, 0, len(ids)),
			Hand:        []*Card{},
			Kitchen:     []*Card{},
			Abyss:       []*Card{},
			Mana:        StartingMana,
			MaxMana:     StartingMana,
			PinnedSlots: []int{},
		}
		g.Players[seat] = p
		for _, id := range ids {
			def, _ := cat.Lookup(id)
			c := g.instantiate(def, seat)
			c.Location = model.At(model.ZoneDeck)
			p.Deck = append(p.Deck, c)
		}
		p.DeckValid, p.DeckError = checkComposition(cat, ids)
		deck := p.Deck
		g.Random.Shuffle(len(deck), 0, fairness.ShuffleDeck(seat), func(i, j int) {
			deck[i], deck[j] = deck[j], deck[i]
		})
	}

	g.Events = make([]GameEvent, 0, len(g.Random.History))
	g.appendRandomEvents(0)

	for _, seat := range model.Seats {
		if !g.Players[seat].DeckValid {
			continue
		}
		if err := g.drawStartingHand(seat); err != nil {
			return nil, err
		}
	}

	host, opp := g.Players[model.Host].DeckValid, g.Players[model.Opponent].DeckValid
	switch {
	case host && opp:
		g.Turn = 1
		g.Phase = PhaseCommit
	case host:
		g.Phase, g.Winner = PhaseGameOver, seatPtr(model.Host)
	case opp:
		g.Phase, g.Winner = PhaseGameOver, seatPtr(model.Opponent)
	default:
		g.Phase = PhaseGameOver
	}
	return g, nil
}

func checkComposition(cat *catalogs.Catalog, ids []string) (bool, string) {
	memes, exploits, err := cat.CountDeck(ids)
	if err != nil {
		return false, err.Error()
	}
	if len(ids) != MaxDeck {
		return false, fmt.Sprintf("deck has %d cards, want %d", len(ids), MaxDeck)
	}
	if memes != MemeLimit || exploits != ExploitLimit {
		return false, fmt.Sprintf("deck has %d memes and %d exploits, want %d and %d", memes, exploits, MemeLimit, ExploitLimit)
	}
	return true, ""
}

func (g *Game) instantiate(def catalogs.CardDef, owner model.Seat) *Card {
	g.NextInstance++
	return newCard(def, owner, g.NextInstance, g.Turn)
}

func newCard(def catalogs.CardDef, owner model.Seat, n uint64, turn int) *Card {
	c := &Card{
		InstanceID: fmt.Sprintf("%s-%d", def.ID, n),
		VariantID:  def.ID,
		Name:       def.Name,
		Owner:      owner,
		Cost:       def.Cost,
		Class:      def.Class,
		PlayedTurn: turn,
	}
	if bp := def.Meme; bp != nil {
		c.BaseVirality = bp.BaseVirality
		c.Virality = bp.BaseVirality
		c.CookRate = bp.CookRate
		c.YieldRate = bp.YieldRate
		c.Keywords = append([]catalogs.Keyword(nil), bp.Keywords...)
		c.Abilities = append([]catalogs.Ability(nil), bp.Abilities...)
		c.Volatile = bp.Volatile
		c.FrozenTurns = bp.InitialFreeze
		c.Shield = bp.ShieldAmount()
	}
	return c
}

// drawStartingHand pulls pairs off the top of the deck until one contains a meme. Rejected pairs
// go under the deck in their original order.
func (g *Game) drawStartingHand(seat model.Seat) error {
	p := g.Players[seat]
	ev := &StartingHandEvent{Seat: seat, Cycles: [][]string{}}
	limit := len(p.Deck) + StartingHand
	for attempt := 0; attempt < limit; attempt++ {
		n := len(p.Deck)
		if n < StartingHand {
			break
		}
		group := append([]*Card(nil), p.Deck[n-StartingHand:]...)
		p.Deck = p.Deck[:n-StartingHand]
		hasMeme := false
		for _, c := range group {
			if c.IsMeme() {
				hasMeme = true
			}
		}
		if !hasMeme {
			p.Deck = append(group, p.Deck...)
			ev.Cycles = append(ev.Cycles, cardIDs(group))
			continue
		}
		for i := len(group) - 1; i >= 0; i-- {
			ev.Chosen = append(ev.Chosen, group[i].InstanceID)
			g.addToHand(p, group[i])
		}
		g.Events = append(g.Events, GameEvent{Type: EventStartingHand, StartingHand: ev})
		return nil
	}
	return &Error{
		Kind:   KindStartingHand,
		Seat:   seatPtr(seat),
		Phase:  g.Phase,
		Detail: fmt.Sprintf("no meme in any opening pair after %d cycles", len(ev.Cycles)),
	}
}

func cardIDs(cards []*Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.InstanceID
	}
	return out
}

// appendRandomEvents mirrors rng history entries from index from onward into the event log.
func (g *Game) appendRandomEvents(from int) {
	for i := from; i < len(g.Random.History); i++ {
		ev := g.Random.History[i]
		g.Events = append(g.Events, GameEvent{Type: EventRandom, Random: &ev})
	}
}

// roll draws one fair value for the current turn and logs it.
func (g *Game) roll(bound uint64, kind fairness.EventKind) uint64 {
	before := len(g.Random.History)
	v := g.Random.Generate(bound, g.Turn, kind)
	g.appendRandomEvents(before)
	return v
}

func (g *Game) addToHand(p *Player, c *Card) {
	if len(p.Hand) >= MaxHand {
		g.toAbyss(c)
		return
	}
	c.Location = model.At(model.ZoneHand)
	p.Hand = append(p.Hand, c)
}

func (g *Game) draw(p *Player) {
	n := len(p.Deck)
	if n == 0 {
		return
	}
	c := p.Deck[n-1]
	p.Deck = p.Deck[:n-1]
	g.addToHand(p, c)
}
