package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/antomihe/SustainableCity/store"

	"github.com/google/uuid"
)

const (
	TypeContainerUpdated  = "container.updated"
	TypeContainerDeleted  = "container.deleted"
	TypeContainerCritical = "container.critical"
	TypeContainerDamaged  = "container.damaged"
	TypeSensorFill        = "sensor.fill"
)

type Envelope struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// rawEnvelope is used for two-stage unmarshalling: first decode the envelope,
// then decode payload based on type.
type rawEnvelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// ContainerEvent is the payload of container.updated, container.critical and
// container.damaged.
type ContainerEvent struct {
	Container     *store.Container `json:"container"`
	PreviousLevel *int             `json:"previous_level,omitempty"`
	Threshold     *int             `json:"threshold,omitempty"`
}

type ContainerDeleted struct {
	ContainerID string `json:"container_id"`
}

// FillReading is a sensor report of a container's fill percentage.
type FillReading struct {
	ContainerID string `json:"container_id"`
	FillLevel   int    `json:"fill_level"`
}

// NewEnvelope creates an outbound envelope with a new UUID and timestamp.
func NewEnvelope(msgType, source string, payload any) *Envelope {
	return &Envelope{
		Type:      msgType,
		ID:        uuid.New().String(),
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope unmarshals a raw message into an Envelope with the correct payload type.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	env := &Envelope{
		Type:      raw.Type,
		ID:        raw.ID,
		Source:    raw.Source,
		Timestamp: raw.Timestamp,
	}

	var err error
	switch raw.Type {
	case TypeContainerUpdated, TypeContainerCritical, TypeContainerDamaged:
		var p ContainerEvent
		err = json.Unmarshal(raw.Payload, &p)
		env.Payload = p
	case TypeContainerDeleted:
		var p ContainerDeleted
		err = json.Unmarshal(raw.Payload, &p)
		env.Payload = p
	case TypeSensorFill:
		var p FillReading
		err = json.Unmarshal(raw.Payload, &p)
		env.Payload = p
	default:
		return nil, fmt.Errorf("unknown message type: %s", raw.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", raw.Type, err)
	}
	return env, nil
}
