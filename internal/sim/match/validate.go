package match

import (
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/model"
)

func discounted(cost, discount int) int {
	if c := cost - discount; c > 0 {
		return c
	}
	return 0
}

func (g *Game) exploitEffect(c *Card) (catalogs.ExploitEffect, bool) {
	if g.cat == nil {
		return catalogs.ExploitEffect{}, false
	}
	def, ok := g.cat.Lookup(c.VariantID)
	if !ok || def.Exploit == nil {
		return catalogs.ExploitEffect{}, false
	}
	return *def.Exploit, true
}

// planCost is the mana a plan spends. It assumes the plan already passed ValidatePlan.
func (g *Game) planCost(p *Player, plan TurnPlan) int {
	cost := 0
	if plan.Play != "" {
		if _, c := findCard(p.Hand, plan.Play); c != nil {
			cost += discounted(c.Cost, p.CostDiscount)
		}
	}
	for _, ex := range plan.Exploits {
		if _, c := findCard(p.Hand, ex.CardID); c != nil {
			cost += discounted(c.Cost, p.CostDiscount)
		}
	}
	return cost
}

// ValidatePlan checks a plan against the current state without mutating it. Targets are checked
// against the board after this seat's own kitchen play; resolution rechecks them once the other
// seat's play is known. Posts are not checked here; one that turns out ineligible at resolution is
// skipped.
func (g *Game) ValidatePlan(seat model.Seat, plan TurnPlan) error {
	if err := g.checkCards(seat, plan); err != nil {
		return err
	}
	var plans [2]TurnPlan
	plans[seat] = plan
	return g.checkTargets(seat, plan, g.projectBoard(plans))
}

// checkCards checks that every card of the plan is in hand and of the right class, and that the
// seat can pay for all of them.
func (g *Game) checkCards(seat model.Seat, plan TurnPlan) error {
	p, err := g.seatPlayer(seat)
	if err != nil {
		return err
	}
	used := make(map[string]bool)
	if plan.Play != "" {
		_, c := findCard(p.Hand, plan.Play)
		if c == nil {
			return g.fail(KindCardNotFound, seat, plan.Play, "play is not in hand")
		}
		if !c.IsMeme() {
			return g.fail(KindWrongClass, seat, plan.Play, "only memes can be played to the kitchen")
		}
		used[c.InstanceID] = true
	}
	for _, ex := range plan.Exploits {
		_, c := findCard(p.Hand, ex.CardID)
		if c == nil {
			return g.fail(KindCardNotFound, seat, ex.CardID, "exploit is not in hand")
		}
		if used[c.InstanceID] {
			return g.fail(KindDuplicateCard, seat, ex.CardID, "card used twice in one plan")
		}
		if c.Class != catalogs.ClassExploit {
			return g.fail(KindWrongClass, seat, ex.CardID, "only exploits can be cast")
		}
		if _, ok := g.exploitEffect(c); !ok {
			return g.fail(KindUnknownCard, seat, ex.CardID, "no exploit definition for %s", c.VariantID)
		}
		used[c.InstanceID] = true
	}
	if cost := g.planCost(p, plan); cost > p.Mana {
		return g.fail(KindInsufficientMana, seat, "", "plan costs %d, %d mana available", cost, p.Mana)
	}
	return nil
}

// board is what exploit targets are checked against.
type board struct {
	kitchens [2][]*Card
	feed     []*Card
}

// projectBoard returns the board as the kitchen-play step leaves it: each plan's play, and the
// cards its on-play ability spawns into the kitchen, appended to the owner's kitchen. Spawned cards
// carry the instance ids resolution will give them. g is not modified.
func (g *Game) projectBoard(plans [2]TurnPlan) board {
	b := board{feed: g.Feed}
	next := g.NextInstance
	for _, seat := range model.Seats {
		p := g.Players[seat]
		kitchen := append([]*Card(nil), p.Kitchen...)
		if plans[seat].Play != "" {
			if _, c := findCard(p.Hand, plans[seat].Play); c != nil && c.IsMeme() {
				kitchen = append(kitchen, c)
				for _, a := range c.Abilities {
					if a.Trigger != catalogs.TriggerOnPlayKitchen || a.Effect.Kind != catalogs.EffectSpawn {
						continue
					}
					sp := a.Effect.Spawn
					if sp == nil || g.cat == nil {
						continue
					}
					def, ok := g.cat.Lookup(sp.VariantID)
					if !ok {
						continue
					}
					for i := 0; i < sp.Count; i++ {
						next++
						if sp.Location == catalogs.SpawnKitchen {
							kitchen = append(kitchen, newCard(def, seat, next, g.Turn))
						}
					}
				}
			}
		}
		b.kitchens[seat] = kitchen
	}
	return b
}

func (g *Game) checkTargets(seat model.Seat, plan TurnPlan, b board) error {
	p := g.Players[seat]
	for _, ex := range plan.Exploits {
		_, c := findCard(p.Hand, ex.CardID)
		if c == nil {
			continue
		}
		effect, _ := g.exploitEffect(c)
		if err := g.checkTarget(seat, effect, ex, b); err != nil {
			return err
		}
	}
	return nil
}

func (g *Game) checkTarget(seat model.Seat, effect catalogs.ExploitEffect, ex ExploitAction, b board) error {
	switch effect.TargetClass() {
	case catalogs.TargetOwnCard:
		t := ex.Target
		if t == nil || t.Kind != model.TargetCard {
			return g.fail(KindInvalidTarget, seat, ex.CardID, "%s needs one of your cards as target", effect.Kind)
		}
		if _, c := findCard(b.kitchens[seat], t.CardID); c != nil {
			return nil
		}
		if _, c := findCard(b.feed, t.CardID); c != nil && c.Owner == seat {
			return nil
		}
		return g.fail(KindInvalidTarget, seat, ex.CardID, "%s is not one of your kitchen or feed cards", t.CardID)

	case catalogs.TargetEnemyCard:
		t := ex.Target
		if t == nil || t.Kind != model.TargetCard {
			return g.fail(KindInvalidTarget, seat, ex.CardID, "%s needs an enemy card as target", effect.Kind)
		}
		return g.checkEnemyCard(seat, ex.CardID, t.CardID, b)

	case catalogs.TargetEnemyDamage:
		t := ex.Target
		if t == nil {
			t = catalogs.DefaultTargetOf(effect)
		}
		if t == nil {
			return g.fail(KindInvalidTarget, seat, ex.CardID, "damage needs a target")
		}
		switch t.Kind {
		case model.TargetCard:
			return g.checkEnemyCard(seat, ex.CardID, t.CardID, b)
		case model.TargetEnemyKitchen, model.TargetAnyKitchen:
			return nil
		case model.TargetFeedSlot:
			if t.Slot >= 0 && t.Slot < len(b.feed) {
				return nil
			}
			return g.fail(KindInvalidTarget, seat, ex.CardID, "feed slot %d is empty", t.Slot)
		}
		return g.fail(KindInvalidTarget, seat, ex.CardID, "unsupported target %s", t.Kind)

	case catalogs.TargetFeedSlot:
		// Without a plan target, pin_slot and move_up aim at the slot printed on the card.
		slot, ok := feedSlotOf(effect, ex.Target)
		if !ok {
			return g.fail(KindInvalidTarget, seat, ex.CardID, "%s needs a feed slot", effect.Kind)
		}
		if slot < 0 || slot >= len(b.feed) {
			return g.fail(KindInvalidTarget, seat, ex.CardID, "feed slot %d is empty", slot)
		}
		return nil
	}
	return nil
}

// checkEnemyCard accepts an enemy kitchen card that is not hidden behind a taunt and is not
// stealthed, or any enemy card in the feed.
func (g *Game) checkEnemyCard(seat model.Seat, exploitID, targetID string, b board) error {
	kitchen := b.kitchens[seat.Other()]
	if _, c := findCard(kitchen, targetID); c != nil {
		if hasTaunt(kitchen) && !c.Has(catalogs.KeywordTaunt) {
			return g.fail(KindTauntFirst, seat, exploitID, "%s is guarded by a taunt", targetID)
		}
		if c.Has(catalogs.KeywordStealth) {
			return g.fail(KindStealthTarget, seat, exploitID, "%s is stealthed", targetID)
		}
		return nil
	}
	if _, c := findCard(b.feed, targetID); c != nil && c.Owner != seat {
		return nil
	}
	return g.fail(KindInvalidTarget, seat, exploitID, "%s is not an enemy kitchen or feed card", targetID)
}

func hasTaunt(kitchen []*Card) bool {
	for _, c := range kitchen {
		if c.Has(catalogs.KeywordTaunt) && c.Virality > 0 {
			return true
		}
	}
	return false
}

// feedSlotOf picks the slot an effect aims at: the plan's feed_slot target, else the slot the
// card itself names.
func feedSlotOf(effect catalogs.ExploitEffect, t *model.Target) (int, bool) {
	if t != nil {
		if t.Kind != model.TargetFeedSlot {
			return 0, false
		}
		return t.Slot, true
	}
	switch effect.Kind {
	case catalogs.ExploitPinSlot, catalogs.ExploitMoveUp:
		return effect.Slot, true
	}
	return 0, false
}
