package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var schemaFiles = map[string]string{
	TypeHello:     "hello.schema.json",
	TypeMatch:     "match.schema.json",
	TypeCommit:    "commit.schema.json",
	TypeReveal:    "reveal.schema.json",
	TypeStateHash: "state_hash.schema.json",
}

var compiledSchemas = sync.OnceValues(func() (map[string]*jsonschema.Schema, error) {
	out := make(map[string]*jsonschema.Schema, len(schemaFiles))
	for typ, name := range schemaFiles {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		s, err := jsonschema.CompileString("https://memewars.gg/schemas/"+name, string(raw))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		out[typ] = s
	}
	return out, nil
})

// InvalidMessage is returned by ValidateMessage; Code is the wire code to answer with.
type InvalidMessage struct {
	Code string
	Err  error
}

func (e *InvalidMessage) Error() string { return e.Err.Error() }
func (e *InvalidMessage) Unwrap() error { return e.Err }

func invalid(code string, format string, args ...any) error {
	return &InvalidMessage{Code: code, Err: fmt.Errorf(format, args...)}
}

// ValidateMessage checks a raw wire message: known type, matching protocol version, and, for the
// message types that carry a payload, the embedded JSON schema.
func ValidateMessage(raw []byte) (BaseMessage, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return base, invalid(ErrProtoBadRequest, "decode: %w", err)
	}
	if _, ok := knownTypes[base.Type]; !ok {
		return base, invalid(ErrProtoBadRequest, "unknown message type %q", base.Type)
	}
	if base.ProtocolVersion != "" && base.ProtocolVersion != Version {
		return base, invalid(ErrProtoVersion, "protocol version %q, want %q", base.ProtocolVersion, Version)
	}
	schemas, err := compiledSchemas()
	if err != nil {
		return base, err
	}
	s, ok := schemas[base.Type]
	if !ok {
		return base, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return base, invalid(ErrProtoBadRequest, "decode: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return base, invalid(ErrProtoBadRequest, "%s: %w", base.Type, err)
	}
	return base, nil
}

// CodeOf returns the wire code for any error surfaced while handling a message.
func CodeOf(err error) string {
	var inv *InvalidMessage
	if errors.As(err, &inv) {
		return inv.Code
	}
	return CodeFor(err)
}
