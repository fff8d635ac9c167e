package protocol

import (
	"fmt"

	"memewars.gg/internal/sim/catalogs"
	"memewars.gg/internal/sim/match"
)

// HostSide is what the host knows before an opponent shows up.
type HostSide struct {
	MatchID string
	Seed    uint64
	NodeID  string
	Deck    []string
}

// HostMatch checks an opponent's HELLO against the host catalog and builds the match both peers
// will play. The returned MatchMsg carries the setup state hash so the opponent can confirm it
// rebuilt the same game.
func HostMatch(cat *catalogs.Catalog, host HostSide, hello HelloMsg) (MatchMsg, *match.Game, error) {
	if hello.CatalogDigest != cat.Digest {
		return MatchMsg{}, nil, &InvalidMessage{
			Code: ErrCatalogMismatch,
			Err:  fmt.Errorf("catalog digest %s, host has %s", short(hello.CatalogDigest), short(cat.Digest)),
		}
	}
	if hello.NodeID == host.NodeID {
		return MatchMsg{}, nil, &InvalidMessage{Code: ErrBadRequest, Err: fmt.Errorf("node id %q is the host's", hello.NodeID)}
	}
	m := MatchMsg{
		Type:            TypeMatch,
		ProtocolVersion: Version,
		MatchID:         host.MatchID,
		Seed:            host.Seed,
		HostNodeID:      host.NodeID,
		OpponentNodeID:  hello.NodeID,
		HostDeck:        nonNil(host.Deck),
		OpponentDeck:    nonNil(hello.Deck),
		CatalogDigest:   cat.Digest,
	}
	g, err := BuildGame(cat, m)
	if err != nil {
		code := CodeFor(err)
		if match.KindOf(err) == match.KindUnknownCard {
			code = ErrBadDeck
		}
		return MatchMsg{}, nil, &InvalidMessage{Code: code, Err: err}
	}
	if m.StateHash, err = g.StateHash(); err != nil {
		return MatchMsg{}, nil, err
	}
	return m, g, nil
}

// BuildGame sets up the game a MatchMsg describes.
func BuildGame(cat *catalogs.Catalog, m MatchMsg) (*match.Game, error) {
	return match.New(cat, match.Setup{
		Seed:           m.Seed,
		HostNodeID:     m.HostNodeID,
		OpponentNodeID: m.OpponentNodeID,
		HostDeck:       m.HostDeck,
		OpponentDeck:   m.OpponentDeck,
	})
}

// JoinMatch rebuilds the host's game on the opponent side and checks the setup hash.
func JoinMatch(cat *catalogs.Catalog, m MatchMsg) (*match.Game, error) {
	if m.CatalogDigest != cat.Digest {
		return nil, &InvalidMessage{
			Code: ErrCatalogMismatch,
			Err:  fmt.Errorf("host catalog %s, local has %s", short(m.CatalogDigest), short(cat.Digest)),
		}
	}
	g, err := BuildGame(cat, m)
	if err != nil {
		return nil, err
	}
	if err := g.ValidateStateHash(m.StateHash); err != nil {
		return nil, err
	}
	return g, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
