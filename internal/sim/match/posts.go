package match

import (
	"sort"

	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/fairness"
	"memewars.gg/internal/sim/model"
)

type postEntry struct {
	seat model.Seat
	card *Card
}

func (g *Game) feedLocked() bool {
	for _, p := range g.Players {
		if p.FeedLocked {
			return true
		}
	}
	return false
}

// takeForPost pulls a kitchen card that may be posted this turn. Frozen cards and cards played
// this turn stay put unless they have haste.
func (g *Game) takeForPost(seat model.Seat, id string) *Card {
	p := g.Players[seat]
	_, c := findCard(p.Kitchen, id)
	if c == nil {
		return nil
	}
	if !c.Has(catalogs.KeywordHaste) && (c.FrozenTurns > 0 || c.PlayedTurn == g.Turn) {
		return nil
	}
	return removeCard(&p.Kitchen, id)
}

func (g *Game) resolvePosts(plans [2]TurnPlan) {
	if g.feedLocked() {
		return
	}
	var entries []postEntry
	for _, seat := range model.Seats {
		for _, post := range plans[seat].Posts {
			if c := g.takeForPost(seat, post.CardID); c != nil {
				entries = append(entries, postEntry{seat: seat, card: c})
			}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.card.Virality != b.card.Virality {
			return a.card.Virality > b.card.Virality
		}
		return a.seat == g.Initiative && b.seat != g.Initiative
	})
	for _, e := range entries {
		g.post(e.seat, e.card)
	}
}

// post inserts c at the top of the feed, or the bottom if heavy, pushed below any gatekeeper
// whose cost limit it falls under. On-post abilities fire, then the card past capacity drops off.
func (g *Game) post(seat model.Seat, c *Card) {
	at := 0
	if c.Has(catalogs.KeywordHeavy) {
		at = len(g.Feed)
	}
	for idx, existing := range g.Feed {
		if limit, ok := catalogs.GatekeeperMaxCost(existing.Keywords); ok && c.Cost < limit && at < idx+1 {
			at = idx + 1
		}
	}
	if at > len(g.Feed) {
		at = len(g.Feed)
	}
	g.Feed = append(g.Feed, nil)
	copy(g.Feed[at+1:], g.Feed[at:])
	g.Feed[at] = c
	g.reindexFeed()

	g.onPost(seat, c)

	for len(g.Feed) > FeedSize {
		last := g.Feed[len(g.Feed)-1]
		g.Feed = g.Feed[:len(g.Feed)-1]
		g.toAbyss(last)
	}
	g.reindexFeed()
}

func (g *Game) onPost(seat model.Seat, c *Card) {
	idx, _ := findCard(g.Feed, c.InstanceID)
	if idx < 0 {
		return
	}
	var (
		spawns    []*catalogs.SpawnParams
		ranges    []catalogs.RandomRange
		gain      int
		ping      int
		swapBelow bool
		knockback int
	)
	for _, a := range c.Abilities {
		if a.Trigger != catalogs.TriggerOnPost {
			continue
		}
		switch eff := a.Effect; eff.Kind {
		case catalogs.EffectBuffSelf:
			c.Virality += eff.Amount
		case catalogs.EffectSelfDestructNext:
			c.Volatile = c.Virality + selfDestructDecay
		case catalogs.EffectRandomizeVirality:
			if eff.Range != nil {
				ranges = append(ranges, *eff.Range)
			}
		case catalogs.EffectSpawn:
			spawns = append(spawns, eff.Spawn)
		case catalogs.EffectGainMana:
			gain += eff.Amount
		case catalogs.EffectPingOpponentTop:
			ping = eff.Amount
		case catalogs.EffectSwapBelow:
			swapBelow = true
		case catalogs.EffectKnockback:
			knockback = eff.Steps
		}
	}

	if swapBelow && idx+1 < len(g.Feed) {
		g.Feed[idx], g.Feed[idx+1] = g.Feed[idx+1], g.Feed[idx]
		idx++
	}
	if knockback > 0 && idx+1 < len(g.Feed) {
		from := idx + 1
		to := from + knockback
		if to > len(g.Feed)-1 {
			to = len(g.Feed) - 1
		}
		g.Feed[from], g.Feed[to] = g.Feed[to], g.Feed[from]
	}
	g.reindexFeed()

	for _, a := range c.Abilities {
		if a.Trigger != catalogs.TriggerOnPost || idx+1 >= len(g.Feed) {
			continue
		}
		below := g.Feed[idx+1]
		switch a.Effect.Kind {
		case catalogs.EffectDamageBelow:
			applyDamage(below, a.Effect.Amount)
		case catalogs.EffectDrainBelow:
			drained := a.Effect.Amount
			if below.Virality < drained {
				drained = below.Virality
			}
			if drained < 0 {
				drained = 0
			}
			below.Virality -= drained
			c.Virality += drained
		}
	}

	g.Players[seat].Mana += gain
	for _, r := range ranges {
		bound := uint64(1)
		if r.Max > r.Min {
			bound = uint64(r.Max - r.Min + 1)
		}
		c.Virality = r.Min + int(g.roll(bound, fairness.RandomizeVirality(c.InstanceID)))
	}
	for _, sp := range spawns {
		g.spawnFrom(seat, sp)
	}
	if ping > 0 && len(g.Feed) > 0 && g.Feed[0].Owner != seat {
		applyDamage(g.Feed[0], ping)
	}

	g.applyKitchenAura(seat)
}

// applyKitchenAura lets the first aura card in the kitchen set every ally's cook rate.
func (g *Game) applyKitchenAura(seat model.Seat) {
	kitchen := g.Players[seat].Kitchen
	for _, c := range kitchen {
		for _, a := range c.Abilities {
			if a.Trigger != catalogs.TriggerAuraKitchen || a.Effect.Kind != catalogs.EffectBuffOtherKitchen {
				continue
			}
			for _, ally := range kitchen {
				ally.CookRate = BaseCook + a.Effect.Amount
			}
			return
		}
	}
}
