package restore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is delivered to every handler after the storage medium was restored
// out of band.
type Event struct {
	ID     uuid.UUID `json:"id"`
	Source string    `json:"source"`
	Time   time.Time `json:"time"`
}

// Handler reacts to a restore event. Returned errors are logged only.
type Handler func(ctx context.Context, ev Event) error

// HandlerRef identifies a registered handler.
type HandlerRef struct {
	id uuid.UUID
}

func (r HandlerRef) String() string {
	return r.id.String()
}

func NewEvent(source string) Event {
	return Event{
		ID:     uuid.New(),
		Source: source,
		Time:   time.Now(),
	}
}
