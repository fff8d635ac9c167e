package autoplay

import (
	"fmt"
	"sort"

	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/fairness"
	"memewars.gg/internal/sim/match"
	"memewars.gg/internal/sim/model"
)

// Bot is a greedy player: it plays the biggest meme it can afford, posts everything that can be
// posted and spends the rest of its mana on exploits whose targets pass validation.
type Bot struct {
	// CallLead is the score lead at which the bot calls based. Zero disables calling.
	CallLead int
	// MaxStakes stops the bot from calling once stakes reach it.
	MaxStakes int
}

func New() *Bot { return &Bot{CallLead: 10, MaxStakes: 8} }

// Plan builds a plan for seat that ValidatePlan accepts.
func (b *Bot) Plan(g *match.Game, seat model.Seat) match.TurnPlan {
	p := g.Player(seat)
	plan := match.TurnPlan{}.Normalized()
	if p == nil || g.Over() {
		return plan
	}
	mana := p.Mana

	var best *match.Card
	for _, c := range p.Hand {
		cost := discounted(c.Cost, p.CostDiscount)
		if !c.IsMeme() || cost > mana {
			continue
		}
		if best == nil || c.Cost > best.Cost {
			best = c
		}
	}
	if best != nil {
		plan.Play = best.InstanceID
		mana -= discounted(best.Cost, p.CostDiscount)
	}

	for _, c := range p.Kitchen {
		haste := c.Has(catalogs.KeywordHaste)
		if haste || (c.FrozenTurns == 0 && c.PlayedTurn < g.Turn) {
			plan.Posts = append(plan.Posts, match.PostAction{CardID: c.InstanceID})
		}
	}

	for _, c := range p.Hand {
		if c.Class != catalogs.ClassExploit {
			continue
		}
		cost := discounted(c.Cost, p.CostDiscount)
		if cost > mana {
			continue
		}
		def, ok := g.Catalog().Lookup(c.VariantID)
		if !ok || def.Exploit == nil {
			continue
		}
		if def.Exploit.Kind == catalogs.ExploitLockFeed && len(plan.Posts) > 0 {
			continue
		}
		for _, t := range candidates(g, seat, *def.Exploit, best) {
			trial := plan
			trial.Exploits = append(append([]match.ExploitAction{}, plan.Exploits...), match.ExploitAction{CardID: c.InstanceID, Target: t})
			if g.ValidatePlan(seat, trial) == nil {
				plan = trial
				mana -= cost
				break
			}
		}
	}
	return plan
}

// WantsCall reports whether the bot raises the stakes before committing this turn.
func (b *Bot) WantsCall(g *match.Game, seat model.Seat) bool {
	if b.CallLead <= 0 || g.Over() || g.PendingStake != nil || g.Stakes >= b.MaxStakes {
		return false
	}
	me, them := g.Player(seat), g.Player(seat.Other())
	return me.Score-them.Score >= b.CallLead
}

// Accepts reports whether the bot accepts a based call against it. It folds only when the caller
// is one good turn from winning and far ahead.
func (b *Bot) Accepts(g *match.Game, seat model.Seat) bool {
	me, them := g.Player(seat), g.Player(seat.Other())
	return !(them.Score >= match.ScoreToWin-match.BaseFeedYield && them.Score-me.Score > 2*match.BaseFeedYield)
}

// Seal picks a fresh salt and returns the commitment to plan under it.
func Seal(plan match.TurnPlan) (hash, salt string, err error) {
	salt, err = fairness.NewSalt()
	if err != nil {
		return "", "", fmt.Errorf("salt: %w", err)
	}
	hash, err = plan.Commitment(salt)
	if err != nil {
		return "", "", fmt.Errorf("commit plan: %w", err)
	}
	return hash, salt, nil
}

func discounted(cost, discount int) int {
	if c := cost - discount; c > 0 {
		return c
	}
	return 0
}

// candidates lists targets worth trying for an exploit, best first. nil means the card's default.
func candidates(g *match.Game, seat model.Seat, effect catalogs.ExploitEffect, played *match.Card) []*model.Target {
	enemy := seat.Other()
	var own, foe []*match.Card
	for _, c := range g.Feed {
		if c.Owner == seat {
			own = append(own, c)
		} else {
			foe = append(foe, c)
		}
	}
	byVirality := func(cs []*match.Card) {
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].Virality > cs[j].Virality })
	}
	byVirality(own)
	byVirality(foe)

	cards := func(cs []*match.Card) []*model.Target {
		out := make([]*model.Target, 0, len(cs))
		for _, c := range cs {
			out = append(out, model.CardTarget(c.InstanceID))
		}
		return out
	}

	switch effect.TargetClass() {
	case catalogs.TargetOwnCard:
		var out []*model.Target
		if played != nil {
			out = append(out, model.CardTarget(played.InstanceID))
		}
		out = append(out, cards(own)...)
		return append(out, cards(g.Player(seat).Kitchen)...)
	case catalogs.TargetEnemyCard:
		return append(cards(foe), cards(g.Player(enemy).Kitchen)...)
	case catalogs.TargetEnemyDamage:
		out := cards(foe)
		out = append(out, nil)
		return append(out, cards(g.Player(enemy).Kitchen)...)
	case catalogs.TargetFeedSlot:
		out := []*model.Target{nil}
		for slot, c := range g.Feed {
			if (c.Owner == seat) == (effect.Kind != catalogs.ExploitNukeBelow) {
				out = append(out, model.FeedSlot(slot))
			}
		}
		return out
	}
	return []*model.Target{nil}
}
