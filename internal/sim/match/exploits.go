package match

import (
	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/fairness"
	"memewars.gg/internal/sim/model"
)

func (g *Game) castExploit(seat model.Seat, ex ExploitAction) {
	p := g.Players[seat]
	c := removeCard(&p.Hand, ex.CardID)
	if c == nil {
		return
	}
	if effect, ok := g.exploitEffect(c); ok {
		g.applyExploit(seat, effect, ex.Target)
	}
	g.toAbyss(c)
}

func (g *Game) applyExploit(seat model.Seat, e catalogs.ExploitEffect, t *model.Target) {
	p := g.Players[seat]
	enemy := g.Players[seat.Other()]
	switch e.Kind {
	case catalogs.ExploitDamage:
		if t == nil {
			t = catalogs.DefaultTargetOf(e)
		}
		if target := g.damageTarget(seat, t); target != nil {
			applyDamage(target, e.Amount)
		}
	case catalogs.ExploitAreaDamageKitchen:
		for _, c := range enemy.Kitchen {
			applyDamage(c, e.Amount)
		}
	case catalogs.ExploitBoost:
		if c := g.ownCard(seat, t); c != nil {
			c.Virality += e.Amount
		}
	case catalogs.ExploitDebuff:
		if c := g.enemyCard(seat, t); c != nil {
			c.Virality -= e.Amount
		}
	case catalogs.ExploitResurrectLast:
		n := len(p.Abyss)
		if n == 0 || len(p.Hand) >= MaxHand {
			return
		}
		c := p.Abyss[n-1]
		p.Abyss = p.Abyss[:n-1]
		c.Virality = c.BaseVirality
		g.addToHand(p, c)
	case catalogs.ExploitProtect:
		if c := g.ownCard(seat, t); c != nil {
			c.Protected = true
		}
	case catalogs.ExploitDouble:
		if c := g.ownCard(seat, t); c != nil {
			c.Virality *= 2
		}
	case catalogs.ExploitExecute:
		if c := g.enemyCard(seat, t); c != nil {
			g.removeFromBoard(c)
			g.toAbyss(c)
			g.reindexFeed()
		}
	case catalogs.ExploitPinSlot:
		if slot, ok := feedSlotOf(e, t); ok {
			enemy.PinnedSlots = append(enemy.PinnedSlots, slot)
		}
	case catalogs.ExploitMoveUp:
		if slot, ok := feedSlotOf(e, t); ok {
			g.moveUp(slot)
		}
	case catalogs.ExploitLockFeed:
		enemy.FeedLocked = true
	case catalogs.ExploitNukeBelow:
		slot, ok := feedSlotOf(e, t)
		if !ok || slot < 0 || slot >= len(g.Feed) {
			return
		}
		if c := g.Feed[slot]; c.Virality < e.Threshold {
			g.Feed = append(g.Feed[:slot], g.Feed[slot+1:]...)
			g.toAbyss(c)
			g.reindexFeed()
		}
	case catalogs.ExploitTax:
		enemy.ManaTaxNext += e.Amount
	case catalogs.ExploitShuffleFeed:
		g.shuffleFeed()
	case catalogs.ExploitDiscountNext:
		p.CostDiscount = 1
	case catalogs.ExploitManaBurn:
		enemy.Mana -= e.Amount
		if enemy.Mana < 0 {
			enemy.Mana = 0
		}
	case catalogs.ExploitWipeBottom:
		for i := 0; i < e.Count && len(g.Feed) > 0; i++ {
			last := g.Feed[len(g.Feed)-1]
			g.Feed = g.Feed[:len(g.Feed)-1]
			g.toAbyss(last)
		}
		g.reindexFeed()
	case catalogs.ExploitSpawnShitposts:
		for i := 0; i < e.Count; i++ {
			g.spawn(seat, ShitpostID, catalogs.SpawnHand)
		}
	case catalogs.ExploitSilence:
		if c := g.enemyCard(seat, t); c != nil {
			c.Abilities = nil
			var kept []catalogs.Keyword
			for _, k := range c.Keywords {
				if k.Kind == catalogs.KeywordShielded {
					kept = append(kept, k)
				}
			}
			c.Keywords = kept
		}
	}
}

// applyDamage hits c for dmg. Protection blocks it, shield absorbs part of it, and a fragile card
// that takes any damage collapses to zero.
func applyDamage(c *Card, dmg int) {
	if c.Protected {
		return
	}
	dmg -= c.Shield
	if dmg < 0 {
		dmg = 0
	}
	c.Virality -= dmg
	if dmg > 0 && c.Has(catalogs.KeywordFragile) {
		c.Virality = 0
	}
}

func (g *Game) damageTarget(seat model.Seat, t *model.Target) *Card {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case model.TargetCard:
		return g.enemyCard(seat, t)
	case model.TargetFeedSlot:
		if t.Slot >= 0 && t.Slot < len(g.Feed) {
			return g.Feed[t.Slot]
		}
	case model.TargetEnemyKitchen, model.TargetAnyKitchen:
		kitchen := g.Players[seat.Other()].Kitchen
		for _, c := range kitchen {
			if c.Has(catalogs.KeywordTaunt) {
				return c
			}
		}
		for _, c := range kitchen {
			if !c.Has(catalogs.KeywordStealth) {
				return c
			}
		}
	}
	return nil
}

func (g *Game) ownCard(seat model.Seat, t *model.Target) *Card {
	if t == nil || t.Kind != model.TargetCard {
		return nil
	}
	if _, c := findCard(g.Players[seat].Kitchen, t.CardID); c != nil {
		return c
	}
	if _, c := findCard(g.Feed, t.CardID); c != nil && c.Owner == seat {
		return c
	}
	return nil
}

func (g *Game) enemyCard(seat model.Seat, t *model.Target) *Card {
	if t == nil || t.Kind != model.TargetCard {
		return nil
	}
	if _, c := findCard(g.Players[seat.Other()].Kitchen, t.CardID); c != nil {
		return c
	}
	if _, c := findCard(g.Feed, t.CardID); c != nil && c.Owner != seat {
		return c
	}
	return nil
}

// removeFromBoard takes c out of the feed or its owner's kitchen, leaving its location untouched
// so toAbyss still sees where it came from.
func (g *Game) removeFromBoard(c *Card) {
	if removeCard(&g.Feed, c.InstanceID) != nil {
		return
	}
	p := g.Players[c.Owner]
	removeCard(&p.Kitchen, c.InstanceID)
}

func (g *Game) slotPinned(slot int) bool {
	for _, p := range g.Players {
		for _, s := range p.PinnedSlots {
			if s == slot {
				return true
			}
		}
	}
	return false
}

// moveUp swaps the card at slot with the one above it unless either slot is pinned or anchored.
func (g *Game) moveUp(slot int) {
	if slot <= 0 || slot >= len(g.Feed) {
		return
	}
	above := slot - 1
	if g.slotPinned(slot) || g.slotPinned(above) {
		return
	}
	if g.Feed[slot].Has(catalogs.KeywordAnchor) || g.Feed[above].Has(catalogs.KeywordAnchor) {
		return
	}
	g.Feed[slot], g.Feed[above] = g.Feed[above], g.Feed[slot]
	g.reindexFeed()
}

func (g *Game) shuffleFeed() {
	feed := g.Feed
	before := len(g.Random.History)
	g.Random.Shuffle(len(feed), g.Turn, fairness.ShuffleFeed(), func(i, j int) {
		feed[i], feed[j] = feed[j], feed[i]
	})
	g.appendRandomEvents(before)
	g.reindexFeed()
}
