package tuning

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Tuning holds the runtime knobs of a peer. Rule constants live in the match package and are not
// configurable; everything here only affects plumbing around the engine.
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" env:"MEMEWARS_PROTOCOL_VERSION"`

	SnapshotEveryTurns  int `yaml:"snapshot_every_turns" env:"MEMEWARS_SNAPSHOT_EVERY_TURNS"`
	StateHashEveryTurns int `yaml:"state_hash_every_turns" env:"MEMEWARS_STATE_HASH_EVERY_TURNS"`

	MaxMessageBytes    int64 `yaml:"max_message_bytes" env:"MEMEWARS_MAX_MESSAGE_BYTES"`
	OutboxQueue        int   `yaml:"outbox_queue" env:"MEMEWARS_OUTBOX_QUEUE"`
	InboxQueue         int   `yaml:"inbox_queue" env:"MEMEWARS_INBOX_QUEUE"`
	HandshakeTimeoutMs int   `yaml:"handshake_timeout_ms" env:"MEMEWARS_HANDSHAKE_TIMEOUT_MS"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:     "1.0",
		SnapshotEveryTurns:  5,
		StateHashEveryTurns: 1,
		MaxMessageBytes:     1 << 20,
		OutboxQueue:         64,
		InboxQueue:          64,
		HandshakeTimeoutMs:  5000,
	}
}

// Load starts from Defaults, overlays the yaml file at path (if any), then MEMEWARS_* environment
// variables, and validates the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return t, err
		}
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("tuning.yaml: %w", err)
		}
	}
	if err := t.ApplyEnv(); err != nil {
		return t, err
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t *Tuning) ApplyEnv() error {
	if err := env.Parse(t); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.ProtocolVersion == "" {
		errs = append(errs, errors.New("protocol_version is required"))
	}
	if t.SnapshotEveryTurns < 0 {
		errs = append(errs, fmt.Errorf("snapshot_every_turns must be >= 0, got %d", t.SnapshotEveryTurns))
	}
	if t.StateHashEveryTurns <= 0 {
		errs = append(errs, fmt.Errorf("state_hash_every_turns must be > 0, got %d", t.StateHashEveryTurns))
	}
	if t.MaxMessageBytes < 1024 {
		errs = append(errs, fmt.Errorf("max_message_bytes must be >= 1024, got %d", t.MaxMessageBytes))
	}
	if t.OutboxQueue <= 0 || t.InboxQueue <= 0 {
		errs = append(errs, fmt.Errorf("queues must be positive, got outbox=%d inbox=%d", t.OutboxQueue, t.InboxQueue))
	}
	if t.HandshakeTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("handshake_timeout_ms must be > 0, got %d", t.HandshakeTimeoutMs))
	}
	return errors.Join(errs...)
}
