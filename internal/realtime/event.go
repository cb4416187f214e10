// Package realtime carries row-change notifications from the store to
// sessions and folds them into session state.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnhandledEvent = errors.New("no handler for event")
)

type Kind string

const (
	Posts    Kind = "posts"
	Votes    Kind = "votes"
	Messages Kind = "messages"
	Threads  Kind = "threads"
)

type Operation string

const (
	Insert Operation = "INSERT"
	Update Operation = "UPDATE"
	Delete Operation = "DELETE"
)

// Event identifies a changed row. Votes have no id of their own, so vote
// events carry the post (and voter) they belong to and use the post id as
// ID. Posts carry their thread for filtering.
type Event struct {
	Kind      Kind      `json:"table" validate:"required,oneof=posts votes messages threads"`
	Operation Operation `json:"op" validate:"required,oneof=INSERT UPDATE DELETE"`
	ID        string    `json:"id" validate:"required"`
	PostID    string    `json:"post_id,omitempty" validate:"required_if=Kind votes"`
	UserID    string    `json:"user_id,omitempty"`
	ThreadID  string    `json:"thread_id,omitempty"`
}

var validate = validator.New()

func (e Event) Validate() error {
	if err := validate.Struct(e); err != nil {
		return errors.Join(ErrMalformedEvent, err)
	}
	return nil
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %s", e.Operation, e.Kind, e.ID)
}

// Decode parses and validates a notification payload.
func Decode(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, errors.Join(ErrMalformedEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Filter selects events for a subscription. Empty Kinds selects every
// kind; a ThreadID narrows post events to that thread.
type Filter struct {
	Kinds    []Kind
	ThreadID string
}

func (f Filter) Match(e Event) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, e.Kind) {
		return false
	}
	if f.ThreadID != "" && e.Kind == Posts && e.ThreadID != f.ThreadID {
		return false
	}
	return true
}

// Channel is a push subscription source. The returned channel is closed
// once ctx is done or the source fails; delivery is neither ordered across
// rows nor exactly-once.
type Channel interface {
	Subscribe(ctx context.Context, f Filter) (<-chan Event, error)
}
