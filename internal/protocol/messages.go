package protocol

import "memewars.gg/internal/sim/match"

// HELLO (opponent -> host)
type HelloMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	NodeID          string   `json:"node_id"`
	Deck            []string `json:"deck"`
	CatalogDigest   string   `json:"catalog_digest"`
}

// MATCH (host -> opponent): everything the opponent needs to build the identical game locally.
// StateHash is the host's hash right after setup.
type MatchMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	MatchID         string          `json:"match_id"`
	Seed            uint64          `json:"seed"`
	HostNodeID      string          `json:"host_node_id"`
	OpponentNodeID  string          `json:"opponent_node_id"`
	HostDeck        []string        `json:"host_deck"`
	OpponentDeck    []string        `json:"opponent_deck"`
	CatalogDigest   string          `json:"catalog_digest"`
	StateHash       match.StateHash `json:"state_hash"`
}

type CommitMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Turn            int    `json:"turn"`
	Hash            string `json:"hash"`
}

type RevealMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Turn            int            `json:"turn"`
	Plan            match.TurnPlan `json:"plan"`
	Salt            string         `json:"salt"`
}

type RequestStateHashMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Turn            int    `json:"turn"`
}

type StateHashMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Turn            int    `json:"turn"`
	Hash            string `json:"hash"`
}

// StakeMsg carries CALL_BASED, ACCEPT_BASED and FOLD_BASED.
type StakeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Turn            int    `json:"turn"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message}
}
