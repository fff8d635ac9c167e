package match

import (
	"encoding/json"

	"memewars.gg/internal/sim/fairness"
	"memewars.gg/internal/sim/model"
)

type PostAction struct {
	CardID string `json:"card_id"`
}

type ExploitAction struct {
	CardID string        `json:"card_id"`
	Target *model.Target `json:"target"`
}

// TurnPlan is what a seat commits to for one turn: at most one meme played to the kitchen, memes
// posted from the kitchen to the feed, exploits cast in order, and whether to call based.
type TurnPlan struct {
	Play     string          `json:"play"`
	Posts    []PostAction    `json:"posts"`
	Exploits []ExploitAction `json:"exploits"`
	Based    bool            `json:"based"`
}

// Normalized returns the plan with nil lists replaced by empty ones, so that a plan and its
// decoded copy serialize to the same bytes.
func (p TurnPlan) Normalized() TurnPlan {
	if p.Posts == nil {
		p.Posts = []PostAction{}
	}
	if p.Exploits == nil {
		p.Exploits = []ExploitAction{}
	}
	return p
}

// Canonical is the serialization committed to: fixed field order, no whitespace, empty lists
// rather than null.
func (p TurnPlan) Canonical() ([]byte, error) {
	return json.Marshal(p.Normalized())
}

func (p TurnPlan) Commitment(salt string) (string, error) {
	b, err := p.Canonical()
	if err != nil {
		return "", err
	}
	return fairness.Commitment(b, salt), nil
}

func (p TurnPlan) IsEmpty() bool {
	return p.Play == "" && len(p.Posts) == 0 && len(p.Exploits) == 0
}
