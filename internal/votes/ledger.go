// Package votes keeps per-post vote tallies consistent with the viewer's own
// vote row while toggles are applied optimistically and push notifications
// arrive out of band.
package votes

import (
	"errors"
	"fmt"

	"github.com/emilythestrangee/warroom/backend/internal/models"
)

var ErrInvalidKind = errors.New("vote kind must be up or down")

type Kind int8

const (
	None Kind = iota
	Up
	Down
)

func (k Kind) String() string {
	switch k {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "none"
	}
}

// Model returns the stored vote_type for k. None has no row.
func (k Kind) Model() models.VoteKind {
	switch k {
	case Up:
		return models.VoteUp
	case Down:
		return models.VoteDown
	default:
		return ""
	}
}

func KindOf(v models.VoteKind) Kind {
	switch v {
	case models.VoteUp:
		return Up
	case models.VoteDown:
		return Down
	default:
		return None
	}
}

func ParseKind(s string) (Kind, error) {
	switch k := KindOf(models.VoteKind(s)); k {
	case Up, Down:
		return k, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Tally is a post's aggregate vote count. Used as a delta it may hold
// negative values; as a ledger state it never does.
type Tally struct {
	Up   int `json:"upvotes"`
	Down int `json:"downvotes"`
}

func (t Tally) Score() int { return t.Up - t.Down }

// plus adds d, saturating each count at zero.
func (t Tally) plus(d Tally) Tally {
	return Tally{Up: max(0, t.Up+d.Up), Down: max(0, t.Down+d.Down)}
}

func (t Tally) clamp() Tally { return t.plus(Tally{}) }

// Mutation is the write the store needs to make a transition durable.
type Mutation int8

const (
	Insert Mutation = iota + 1
	Update
	Delete
)

func (m Mutation) String() string {
	switch m {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Transition is one edge of the toggle table together with its tally delta
// and the tally it was computed from. Every transition carries its own
// inverse.
type Transition struct {
	PostID string
	From   Kind
	To     Kind
	Prior  Tally
	Delta  Tally
}

// Mutation derives the vote-row write from the edge.
func (t Transition) Mutation() Mutation {
	switch {
	case t.From == None:
		return Insert
	case t.To == None:
		return Delete
	default:
		return Update
	}
}

// Inverse undoes t on the ledger t produced. The prior tally is restored
// exactly, even where t's delta was clamped at zero.
func (t Transition) Inverse() Transition {
	after := t.Prior.plus(t.Delta)
	return Transition{
		PostID: t.PostID,
		From:   t.To,
		To:     t.From,
		Prior:  after,
		Delta:  Tally{Up: t.Prior.Up - after.Up, Down: t.Prior.Down - after.Down},
	}
}

func unit(k Kind) Tally {
	switch k {
	case Up:
		return Tally{Up: 1}
	case Down:
		return Tally{Down: 1}
	default:
		return Tally{}
	}
}

// Ledger is the viewer's state for one post.
type Ledger struct {
	PostID string `json:"post_id"`
	Vote   Kind   `json:"-"`
	Tally  Tally  `json:"tally"`

	pending int
	stale   bool
}

// Toggle computes the transition for requested without changing the ledger.
// Requesting the current vote clears it; requesting the other kind switches.
func (l Ledger) Toggle(requested Kind) (Transition, error) {
	if requested != Up && requested != Down {
		return Transition{}, ErrInvalidKind
	}
	to := requested
	if l.Vote == requested {
		to = None
	}
	delta := unit(to)
	old := unit(l.Vote)
	delta.Up -= old.Up
	delta.Down -= old.Down
	return Transition{PostID: l.PostID, From: l.Vote, To: to, Prior: l.Tally, Delta: delta}, nil
}

// Apply moves the ledger along t. Counts saturate at zero.
func (l *Ledger) Apply(t Transition) {
	l.Vote = t.To
	l.Tally = l.Tally.plus(t.Delta)
}

// Resync replaces the aggregate with a fresh count from the store and, when
// own is non-nil, the viewer's vote with the stored row.
func (l *Ledger) Resync(counts Tally, own *Kind) {
	l.Tally = counts.clamp()
	if own != nil {
		l.Vote = *own
	}
	l.stale = false
}

// Pending reports whether a toggle for this post awaits confirmation.
func (l Ledger) Pending() bool { return l.pending > 0 }
