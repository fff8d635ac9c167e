package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello            = "HELLO"
	TypeMatch            = "MATCH"
	TypeCommit           = "COMMIT"
	TypeReveal           = "REVEAL"
	TypeRequestStateHash = "REQUEST_STATE_HASH"
	TypeStateHash        = "STATE_HASH"
	TypeCallBased        = "CALL_BASED"
	TypeAcceptBased      = "ACCEPT_BASED"
	TypeFoldBased        = "FOLD_BASED"
	TypeError            = "ERROR"
)

var knownTypes = map[string]struct{}{
	TypeHello:            {},
	TypeMatch:            {},
	TypeCommit:           {},
	TypeReveal:           {},
	TypeRequestStateHash: {},
	TypeStateHash:        {},
	TypeCallBased:        {},
	TypeAcceptBased:      {},
	TypeFoldBased:        {},
	TypeError:            {},
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
