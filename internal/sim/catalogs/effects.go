package catalogs

import (
	"fmt"

	"memewars.gg/internal/sim/model"
)

type KeywordKind string

const (
	KeywordHaste       KeywordKind = "haste"
	KeywordStealth     KeywordKind = "stealth"
	KeywordFragile     KeywordKind = "fragile"
	KeywordShielded    KeywordKind = "shielded"
	KeywordTaunt       KeywordKind = "taunt"
	KeywordAnchor      KeywordKind = "anchor"
	KeywordHeavy       KeywordKind = "heavy"
	KeywordGatekeeper  KeywordKind = "gatekeeper"
	KeywordHealKitchen KeywordKind = "heal_kitchen"
)

// Keyword is a passive card property. Amount is used by shielded, MaxCost by gatekeeper.
type Keyword struct {
	Kind    KeywordKind `json:"kind"`
	Amount  int         `json:"amount,omitempty"`
	MaxCost int         `json:"max_cost,omitempty"`
}

func (k Keyword) Validate() error {
	switch k.Kind {
	case KeywordHaste, KeywordStealth, KeywordFragile, KeywordTaunt, KeywordAnchor, KeywordHeavy, KeywordHealKitchen:
		return nil
	case KeywordShielded:
		if k.Amount <= 0 {
			return fmt.Errorf("shielded keyword needs a positive amount")
		}
		return nil
	case KeywordGatekeeper:
		if k.MaxCost <= 0 {
			return fmt.Errorf("gatekeeper keyword needs a positive max_cost")
		}
		return nil
	default:
		return fmt.Errorf("unknown keyword %q", k.Kind)
	}
}

type Trigger string

const (
	TriggerOnPlayKitchen Trigger = "on_play_kitchen"
	TriggerOnPost        Trigger = "on_post"
	TriggerOnAbyss       Trigger = "on_abyss"
	TriggerOnFeedTurnEnd Trigger = "on_feed_turn_end"
	TriggerAuraKitchen   Trigger = "aura_kitchen"
)

type EffectKind string

const (
	EffectDamageBelow       EffectKind = "damage_below"
	EffectDrainBelow        EffectKind = "drain_below"
	EffectSwapBelow         EffectKind = "swap_below"
	EffectKnockback         EffectKind = "knockback"
	EffectSpawn             EffectKind = "spawn"
	EffectBuffSelf          EffectKind = "buff_self"
	EffectBuffOtherKitchen  EffectKind = "buff_other_kitchen"
	EffectGainMana          EffectKind = "gain_mana"
	EffectPingOpponentTop   EffectKind = "ping_opponent_top"
	EffectSelfDestructNext  EffectKind = "self_destruct_next"
	EffectRandomizeVirality EffectKind = "randomize_virality"
)

type SpawnLocation string

const (
	SpawnKitchen SpawnLocation = "kitchen"
	SpawnHand    SpawnLocation = "hand"
)

type SpawnParams struct {
	VariantID string        `json:"variant_id"`
	Count     int           `json:"count"`
	Location  SpawnLocation `json:"location"`
}

type RandomRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type AbilityEffect struct {
	Kind   EffectKind   `json:"kind"`
	Amount int          `json:"amount,omitempty"`
	Steps  int          `json:"steps,omitempty"`
	Spawn  *SpawnParams `json:"spawn,omitempty"`
	Range  *RandomRange `json:"range,omitempty"`
}

type Ability struct {
	Trigger Trigger       `json:"trigger"`
	Effect  AbilityEffect `json:"effect"`
}

func (a Ability) Validate() error {
	switch a.Trigger {
	case TriggerOnPlayKitchen, TriggerOnPost, TriggerOnAbyss, TriggerOnFeedTurnEnd, TriggerAuraKitchen:
	default:
		return fmt.Errorf("unknown trigger %q", a.Trigger)
	}
	e := a.Effect
	switch e.Kind {
	case EffectDamageBelow, EffectDrainBelow, EffectBuffSelf, EffectBuffOtherKitchen, EffectGainMana, EffectPingOpponentTop:
		if e.Amount < 0 {
			return fmt.Errorf("%s: negative amount", e.Kind)
		}
	case EffectSwapBelow, EffectSelfDestructNext:
	case EffectKnockback:
		if e.Steps <= 0 {
			return fmt.Errorf("knockback needs positive steps")
		}
	case EffectSpawn:
		if e.Spawn == nil || e.Spawn.VariantID == "" || e.Spawn.Count <= 0 {
			return fmt.Errorf("spawn needs variant_id and a positive count")
		}
		if e.Spawn.Location != SpawnKitchen && e.Spawn.Location != SpawnHand {
			return fmt.Errorf("spawn location %q", e.Spawn.Location)
		}
	case EffectRandomizeVirality:
		if e.Range == nil || e.Range.Max < e.Range.Min {
			return fmt.Errorf("randomize_virality needs min <= max")
		}
	default:
		return fmt.Errorf("unknown ability effect %q", e.Kind)
	}
	return nil
}

type ExploitKind string

const (
	ExploitDamage            ExploitKind = "damage"
	ExploitAreaDamageKitchen ExploitKind = "area_damage_kitchen"
	ExploitBoost             ExploitKind = "boost"
	ExploitDebuff            ExploitKind = "debuff"
	ExploitResurrectLast     ExploitKind = "resurrect_last"
	ExploitProtect           ExploitKind = "protect"
	ExploitDouble            ExploitKind = "double"
	ExploitExecute           ExploitKind = "execute"
	ExploitPinSlot           ExploitKind = "pin_slot"
	ExploitMoveUp            ExploitKind = "move_up"
	ExploitLockFeed          ExploitKind = "lock_feed"
	ExploitNukeBelow         ExploitKind = "nuke_below"
	ExploitTax               ExploitKind = "tax"
	ExploitShuffleFeed       ExploitKind = "shuffle_feed"
	ExploitDiscountNext      ExploitKind = "discount_next"
	ExploitManaBurn          ExploitKind = "mana_burn"
	ExploitWipeBottom        ExploitKind = "wipe_bottom"
	ExploitSpawnShitposts    ExploitKind = "spawn_shitposts"
	ExploitSilence           ExploitKind = "silence"
)

// ExploitEffect is the single-use effect of an exploit card. Which parameter applies depends on
// Kind: Amount (damage, area damage, boost, debuff, tax, mana burn), Slot (pin, move up),
// Threshold (nuke below), Count (wipe bottom, spawn shitposts). Target is the default aim of a
// damage exploit when the plan names none.
type ExploitEffect struct {
	Kind      ExploitKind   `json:"kind"`
	Amount    int           `json:"amount,omitempty"`
	Target    *model.Target `json:"target,omitempty"`
	Slot      int           `json:"slot,omitempty"`
	Threshold int           `json:"threshold,omitempty"`
	Count     int           `json:"count,omitempty"`
}

func (e ExploitEffect) Validate() error {
	switch e.Kind {
	case ExploitDamage, ExploitAreaDamageKitchen, ExploitBoost, ExploitDebuff, ExploitTax, ExploitManaBurn:
		if e.Amount <= 0 {
			return fmt.Errorf("%s needs a positive amount", e.Kind)
		}
	case ExploitPinSlot, ExploitMoveUp:
		if e.Slot < 0 {
			return fmt.Errorf("%s: negative slot", e.Kind)
		}
	case ExploitNukeBelow:
		if e.Threshold <= 0 {
			return fmt.Errorf("nuke_below needs a positive threshold")
		}
	case ExploitWipeBottom, ExploitSpawnShitposts:
		if e.Count <= 0 {
			return fmt.Errorf("%s needs a positive count", e.Kind)
		}
	case ExploitResurrectLast, ExploitProtect, ExploitDouble, ExploitExecute, ExploitLockFeed,
		ExploitShuffleFeed, ExploitDiscountNext, ExploitSilence:
	default:
		return fmt.Errorf("unknown exploit effect %q", e.Kind)
	}
	return nil
}

// TargetClass groups exploit effects by what they may be aimed at.
type TargetClass int

const (
	TargetNone TargetClass = iota
	TargetOwnCard
	TargetEnemyCard
	TargetEnemyDamage
	TargetFeedSlot
)

func (e ExploitEffect) TargetClass() TargetClass {
	switch e.Kind {
	case ExploitBoost, ExploitProtect, ExploitDouble:
		return TargetOwnCard
	case ExploitDebuff, ExploitExecute, ExploitSilence:
		return TargetEnemyCard
	case ExploitDamage:
		return TargetEnemyDamage
	case ExploitPinSlot, ExploitMoveUp, ExploitNukeBelow:
		return TargetFeedSlot
	case ExploitAreaDamageKitchen, ExploitResurrectLast, ExploitLockFeed, ExploitTax, ExploitShuffleFeed,
		ExploitDiscountNext, ExploitManaBurn, ExploitWipeBottom, ExploitSpawnShitposts:
		return TargetNone
	default:
		return TargetNone
	}
}

func HasKeyword(ks []Keyword, kind KeywordKind) bool {
	for _, k := range ks {
		if k.Kind == kind {
			return true
		}
	}
	return false
}

// GatekeeperMaxCost returns the gatekeeper threshold, if the keyword is present.
func GatekeeperMaxCost(ks []Keyword) (int, bool) {
	for _, k := range ks {
		if k.Kind == KeywordGatekeeper {
			return k.MaxCost, true
		}
	}
	return 0, false
}
