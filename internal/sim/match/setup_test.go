package match

import (
	"reflect"
	"testing"

	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/fairness"
	"memewars.gg/internal/sim/model"
)

func TestNew_StartingHands(t *testing.T) {
	g := newTestGame(t, 50)
	var starts int
	for _, ev := range g.Events {
		if ev.Type == EventStartingHand {
			starts++
		}
	}
	if starts != 2 {
		t.Fatalf("starting hand events=%d want=2", starts)
	}
	for _, p := range g.Players {
		if len(p.Hand) != StartingHand || len(p.Deck) != MaxDeck-StartingHand {
			t.Fatalf("%s hand=%d deck=%d", p.Seat, len(p.Hand), len(p.Deck))
		}
		if !p.Hand[0].IsMeme() && !p.Hand[1].IsMeme() {
			t.Fatalf("%s opening hand has no meme", p.Seat)
		}
		if p.Mana != StartingMana || !p.DeckValid {
			t.Fatalf("%s mana=%d valid=%v", p.Seat, p.Mana, p.DeckValid)
		}
	}
	// Both decks are shuffled with 11 draws each, all at turn 0.
	if n := len(g.Random.History); n != 2*(MaxDeck-1) {
		t.Fatalf("rng history=%d", n)
	}
	if err := fairness.VerifyHistory(g.Seed, g.Random); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestNew_SameSeedSameDecks(t *testing.T) {
	order := func(g *Game) []string { return cardIDs(g.Players[model.Opponent].Deck) }
	a, b := newTestGame(t, 51), newTestGame(t, 51)
	if !reflect.DeepEqual(order(a), order(b)) {
		t.Fatalf("decks differ for the same seed")
	}
}

func TestDrawStartingHand_CyclesPairsWithoutMemes(t *testing.T) {
	g := newTestGame(t, 52)
	p := g.Players[model.Host]
	p.Hand = []*Card{}
	mk := func(variant string) *Card {
		def, _ := g.cat.Lookup(variant)
		return g.instantiate(def, model.Host)
	}
	meme, e1, e2, e3 := mk("n01"), mk("t01"), mk("t02"), mk("d08")
	p.Deck = []*Card{meme, e1, e2, e3}

	if err := g.drawStartingHand(model.Host); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if got := cardIDs(p.Hand); !reflect.DeepEqual(got, []string{e1.InstanceID, meme.InstanceID}) {
		t.Fatalf("hand=%v", got)
	}
	if got := cardIDs(p.Deck); !reflect.DeepEqual(got, []string{e2.InstanceID, e3.InstanceID}) {
		t.Fatalf("deck=%v", got)
	}
	ev := g.Events[len(g.Events)-1].StartingHand
	if len(ev.Cycles) != 1 || !reflect.DeepEqual(ev.Cycles[0], []string{e2.InstanceID, e3.InstanceID}) {
		t.Fatalf("cycles=%v", ev.Cycles)
	}

	p.Hand = []*Card{}
	p.Deck = []*Card{mk("t01"), mk("t02"), mk("t03"), mk("t08")}
	if err := g.drawStartingHand(model.Host); KindOf(err) != KindStartingHand || KindOf(err).Class() != ClassFatal {
		t.Fatalf("err=%v want starting_hand", err)
	}
}

func TestNew_InvalidDecks(t *testing.T) {
	cat := catalogs.MustDefault()
	short := cat.DefaultDeck[:MaxDeck-1]
	allMemes := []string{"n01", "n02", "n03", "n04", "n05", "n08", "n09", "n10", "c01", "c02", "c03", "c04"}

	g, err := New(cat, Setup{Seed: 1, HostDeck: short, OpponentDeck: cat.DefaultDeck})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if g.Phase != PhaseGameOver || g.Winner == nil || *g.Winner != model.Opponent {
		t.Fatalf("phase=%s winner=%v", g.Phase, g.Winner)
	}
	if g.Players[model.Host].DeckError == "" || len(g.Players[model.Host].Hand) != 0 {
		t.Fatalf("invalid deck should carry a reason and no starting hand")
	}

	g, err = New(cat, Setup{Seed: 1, HostDeck: allMemes, OpponentDeck: short})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if g.Phase != PhaseGameOver || g.Winner != nil {
		t.Fatalf("both invalid: phase=%s winner=%v", g.Phase, g.Winner)
	}

	_, err = New(cat, Setup{Seed: 1, HostDeck: cat.DefaultDeck, OpponentDeck: []string{"zz9"}})
	if KindOf(err) != KindUnknownCard {
		t.Fatalf("err=%v want unknown_card", err)
	}
}
