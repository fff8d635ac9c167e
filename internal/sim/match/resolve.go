package match

import (
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/model"
)

// resolve runs the ten-step turn pipeline over both revealed plans.
func (g *Game) resolve() {
	g.Phase = PhaseResolving
	var plans [2]TurnPlan
	for _, seat := range model.Seats {
		plan, _ := g.PlanFor(seat)
		plans[seat] = plan
	}

	// 1. validate cards and mana against the pre-turn state, targets against the board after both
	// kitchen plays, then debit. A rejected plan loses its play too, so the board is projected
	// again after every rejection.
	for _, seat := range model.Seats {
		if err := g.checkCards(seat, plans[seat]); err != nil {
			g.rejectPlan(seat, err)
			plans[seat] = TurnPlan{}
		}
	}
	for rejected := true; rejected; {
		rejected = false
		b := g.projectBoard(plans)
		for _, seat := range model.Seats {
			if err := g.checkTargets(seat, plans[seat], b); err != nil {
				g.rejectPlan(seat, err)
				plans[seat] = TurnPlan{}
				rejected = true
				break
			}
		}
	}
	for _, seat := range model.Seats {
		p := g.Players[seat]
		p.Mana -= g.planCost(p, plans[seat])
		p.CostDiscount = 0
	}

	// 2. kitchen plays
	for _, seat := range model.Seats {
		if plans[seat].Play != "" {
			g.playToKitchen(seat, plans[seat].Play)
		}
	}

	// 3+4. exploits, initiative first; targets were checked in step 1 against this board
	for _, seat := range g.initiativeOrder() {
		for _, ex := range plans[seat].Exploits {
			g.castExploit(seat, ex)
		}
	}

	// 5. posts
	g.resolvePosts(plans)

	// 6. yield
	for idx, c := range g.Feed {
		g.Players[c.Owner].Score += (BaseFeedYield + idx*FeedYieldStep) * c.YieldRate
	}

	// 7. cook and decay
	g.cookAndDecay()

	// 8. cleanup
	g.cleanup()

	// 9. win check
	if g.checkWin() {
		return
	}

	// 10. next turn
	g.advanceTurn()
}

func (g *Game) initiativeOrder() [2]model.Seat {
	return [2]model.Seat{g.Initiative, g.Initiative.Other()}
}

func (g *Game) rejectPlan(seat model.Seat, err error) {
	ev := &PlanRejectedEvent{Turn: g.Turn, Seat: seat, Message: err.Error()}
	if e, ok := err.(*Error); ok {
		ev.Kind = e.Kind.String()
		ev.CardID = e.CardID
		ev.Message = e.Detail
	}
	g.Events = append(g.Events, GameEvent{Type: EventPlanRejected, PlanRejected: ev})
}

func (g *Game) playToKitchen(seat model.Seat, id string) {
	p := g.Players[seat]
	c := removeCard(&p.Hand, id)
	if c == nil {
		return
	}
	c.Location = model.At(model.ZoneKitchen)
	c.PlayedTurn = g.Turn
	p.Kitchen = append(p.Kitchen, c)
	for _, a := range c.Abilities {
		if a.Trigger != catalogs.TriggerOnPlayKitchen {
			continue
		}
		switch a.Effect.Kind {
		case catalogs.EffectSpawn:
			g.spawnFrom(seat, a.Effect.Spawn)
		case catalogs.EffectBuffSelf:
			c.Virality += a.Effect.Amount
		}
	}
}

func (g *Game) spawnFrom(seat model.Seat, sp *catalogs.SpawnParams) {
	if sp == nil {
		return
	}
	for i := 0; i < sp.Count; i++ {
		g.spawn(seat, sp.VariantID, sp.Location)
	}
}

// spawn creates a fresh instance from the catalog. Unknown variants are skipped.
func (g *Game) spawn(seat model.Seat, variantID string, loc catalogs.SpawnLocation) *Card {
	if g.cat == nil {
		return nil
	}
	def, ok := g.cat.Lookup(variantID)
	if !ok {
		return nil
	}
	p := g.Players[seat]
	c := g.instantiate(def, seat)
	switch loc {
	case catalogs.SpawnKitchen:
		c.Location = model.At(model.ZoneKitchen)
		p.Kitchen = append(p.Kitchen, c)
	default:
		g.addToHand(p, c)
	}
	return c
}

// toAbyss moves c onto its owner's abyss. A card arriving from the kitchen or feed fires its
// on_abyss abilities. Callers remove c from its previous zone first.
func (g *Game) toAbyss(c *Card) {
	fromBoard := c.Location.In(model.ZoneKitchen) || c.Location.In(model.ZoneFeed)
	c.Location = model.At(model.ZoneAbyss)
	c.Protected = false
	p := g.Players[c.Owner]
	p.Abyss = append(p.Abyss, c)
	if !fromBoard {
		return
	}
	for _, a := range c.Abilities {
		if a.Trigger == catalogs.TriggerOnAbyss && a.Effect.Kind == catalogs.EffectGainMana {
			p.Mana += a.Effect.Amount
		}
	}
}

func (g *Game) reindexFeed() {
	for i, c := range g.Feed {
		c.Location = model.FeedAt(i)
	}
}

func (g *Game) cookAndDecay() {
	for _, p := range g.Players {
		for _, c := range p.Kitchen {
			if c.FrozenTurns > 0 {
				c.FrozenTurns--
			} else {
				c.Virality += c.CookRate
			}
			if c.Has(catalogs.KeywordHealKitchen) {
				c.Virality = c.BaseVirality
			}
			c.Virality -= c.Volatile
			c.Protected = false
		}
	}
	for _, c := range g.Feed {
		c.Virality -= c.Volatile
		c.Protected = false
		for _, a := range c.Abilities {
			if a.Trigger != catalogs.TriggerOnFeedTurnEnd {
				continue
			}
			switch a.Effect.Kind {
			case catalogs.EffectBuffSelf:
				c.Virality += a.Effect.Amount
			case catalogs.EffectSelfDestructNext:
				c.Volatile = c.Virality + selfDestructDecay
			}
		}
	}
}

func (g *Game) cleanup() {
	kept := g.Feed[:0]
	var dead []*Card
	for _, c := range g.Feed {
		if c.Virality <= 0 {
			dead = append(dead, c)
			continue
		}
		kept = append(kept, c)
	}
	g.Feed = kept
	for _, c := range dead {
		g.toAbyss(c)
	}
	for _, p := range g.Players {
		alive := p.Kitchen[:0]
		dead = dead[:0]
		for _, c := range p.Kitchen {
			if c.Virality <= 0 {
				dead = append(dead, c)
				continue
			}
			alive = append(alive, c)
		}
		p.Kitchen = alive
		for _, c := range dead {
			g.toAbyss(c)
		}
	}
	g.reindexFeed()
}

func (g *Game) checkWin() bool {
	host := g.Players[model.Host].Score
	opp := g.Players[model.Opponent].Score
	if host < ScoreToWin && opp < ScoreToWin {
		return false
	}
	winner := model.Host
	if opp > host {
		winner = model.Opponent
	}
	g.Winner = seatPtr(winner)
	g.Phase = PhaseGameOver
	return true
}

func (g *Game) advanceTurn() {
	g.Turn++
	g.Initiative = g.Initiative.Other()
	for _, p := range g.Players {
		p.Commit = nil
		p.MaxMana++
		if p.MaxMana > ManaCap {
			p.MaxMana = ManaCap
		}
		tax := p.ManaTaxNext
		if tax < 0 {
			tax = 0
		}
		p.Mana = p.MaxMana - tax
		if p.Mana < 0 {
			p.Mana = 0
		}
		p.ManaTaxNext = 0
		p.PinnedSlots = []int{}
		p.FeedLocked = false
		g.draw(p)
	}
	g.Phase = PhaseCommit
}
