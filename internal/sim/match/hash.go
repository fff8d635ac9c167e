package match

import (
	"encoding/json"
	"fmt"

	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/fairness"
)

type StateHash struct {
	Turn int    `json:"turn"`
	Hash string `json:"hash"`
}

// StateHash digests the full serialized game. Peers exchange it to detect divergence.
func (g *Game) StateHash() (StateHash, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return StateHash{}, fmt.Errorf("encode game: %w", err)
	}
	return StateHash{Turn: g.Turn, Hash: fairness.HashHex(b)}, nil
}

// ValidateStateHash compares a peer's digest with ours. A mismatch is a desync and is not
// recoverable.
func (g *Game) ValidateStateHash(remote StateHash) error {
	local, err := g.StateHash()
	if err != nil {
		return err
	}
	if local.Turn != remote.Turn || local.Hash != remote.Hash {
		return &Error{
			Kind:   KindStateHashMismatch,
			Phase:  g.Phase,
			Detail: fmt.Sprintf("local turn %d %s, remote turn %d %s", local.Turn, local.Hash, remote.Turn, remote.Hash),
		}
	}
	return nil
}

// Encode serializes the game for snapshots and match handoff.
func (g *Game) Encode() ([]byte, error) { return json.Marshal(g) }

// Decode restores a game and binds it to cat.
func Decode(b []byte, cat *catalogs.Catalog) (*Game, error) {
	var g Game
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	g.Attach(cat)
	return &g, nil
}
