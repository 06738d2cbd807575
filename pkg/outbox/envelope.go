package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EnvelopeVersion is the newest envelope layout this module writes and reads.
const EnvelopeVersion = 1

var (
	ErrEnvelopeEventID = errors.New("envelope event id missing")
	ErrEnvelopeData    = errors.New("envelope data missing")
	ErrEnvelopeVersion = errors.New("envelope version unsupported")
)

// ActorRef identifies who produced the event: "admin" with the operator id,
// or "system" with the job name.
type ActorRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses raw bytes into an envelope and rejects the shapes no
// handler can act on. A missing version is read as 1.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	envelope.EventID = strings.TrimSpace(envelope.EventID)
	if envelope.EventID == "" {
		return PayloadEnvelope{}, ErrEnvelopeEventID
	}
	if envelope.Version == 0 {
		envelope.Version = 1
	}
	if envelope.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("%w: %d", ErrEnvelopeVersion, envelope.Version)
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return PayloadEnvelope{}, ErrEnvelopeData
	}
	return envelope, nil
}
