package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventStatusGenerated = "generated"
	EventStatusPivot     = "pivot"
	EventStatusFailed    = "failed"
)

// Event is one generated drill as seen by the inspection stream.
type Event struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
	DebugInfo map[string]any  `json:"debugInfo,omitempty"`
}

func NewEvent(status string, payload json.RawMessage, debug map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
		Status:    status,
		DebugInfo: debug,
	}
}

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onEvent func(ev Event)) error
	History(ctx context.Context, limit int) ([]Event, error)
	Close() error
}
