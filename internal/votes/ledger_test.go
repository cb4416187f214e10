package votes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedger_ToggleTable(t *testing.T) {
	tests := []struct {
		name      string
		current   Kind
		requested Kind
		want      Kind
		delta     Tally
		mutation  Mutation
	}{
		{"none to up", None, Up, Up, Tally{Up: 1}, Insert},
		{"none to down", None, Down, Down, Tally{Down: 1}, Insert},
		{"up cleared", Up, Up, None, Tally{Up: -1}, Delete},
		{"up to down", Up, Down, Down, Tally{Up: -1, Down: 1}, Update},
		{"down cleared", Down, Down, None, Tally{Down: -1}, Delete},
		{"down to up", Down, Up, Up, Tally{Up: 1, Down: -1}, Update},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			l := Ledger{PostID: "p", Vote: tt.current, Tally: Tally{Up: 5, Down: 5}}
			tr, err := l.Toggle(tt.requested)
			req.NoError(err)
			req.Equal(tt.current, tr.From)
			req.Equal(tt.want, tr.To)
			req.Equal(tt.delta, tr.Delta)
			req.Equal(tt.mutation, tr.Mutation())

			before := l
			l.Apply(tr)
			req.Equal(tt.want, l.Vote)
			req.Equal(Tally{Up: 5 + tt.delta.Up, Down: 5 + tt.delta.Down}, l.Tally)

			l.Apply(tr.Inverse())
			req.Equal(before, l)
		})
	}
}

func TestLedger_InverseRestoresClampedTally(t *testing.T) {
	req := require.New(t)
	// The own vote is known but the count read lagged behind it
	l := Ledger{PostID: "p", Vote: Up, Tally: Tally{}}
	before := l

	tr, err := l.Toggle(Up)
	req.NoError(err)
	req.Equal(Delete, tr.Mutation())
	l.Apply(tr)
	req.Equal(Ledger{PostID: "p", Vote: None, Tally: Tally{}}, l)

	l.Apply(tr.Inverse())
	req.Equal(before, l)

	// The inverse of the inverse replays the clamped forward step
	l.Apply(tr.Inverse().Inverse())
	req.Equal(Ledger{PostID: "p", Vote: None, Tally: Tally{}}, l)
}

func TestLedger_ToggleRejectsNone(t *testing.T) {
	_, err := Ledger{}.Toggle(None)
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestLedger_ToggleTwiceIsIdentity(t *testing.T) {
	req := require.New(t)
	l := Ledger{PostID: "p", Vote: None, Tally: Tally{Up: 3, Down: 1}}

	tr, err := l.Toggle(Up)
	req.NoError(err)
	l.Apply(tr)
	req.Equal(Up, l.Vote)
	req.Equal(Tally{Up: 4, Down: 1}, l.Tally)

	tr, err = l.Toggle(Up)
	req.NoError(err)
	l.Apply(tr)
	req.Equal(None, l.Vote)
	req.Equal(Tally{Up: 3, Down: 1}, l.Tally)
}

func TestLedger_CountsNeverNegative(t *testing.T) {
	req := require.New(t)
	l := Ledger{PostID: "p", Vote: Up, Tally: Tally{}}

	tr, err := l.Toggle(Down)
	req.NoError(err)
	l.Apply(tr)
	req.Equal(Tally{Up: 0, Down: 1}, l.Tally)

	for range 3 {
		l.Apply(Transition{PostID: "p", From: Down, To: None, Delta: Tally{Down: -1}})
	}
	req.Equal(Tally{}, l.Tally)

	l.Resync(Tally{Up: -2, Down: -7}, nil)
	req.Equal(Tally{}, l.Tally)
}

func TestParseKind(t *testing.T) {
	req := require.New(t)
	k, err := ParseKind("up")
	req.NoError(err)
	req.Equal(Up, k)
	k, err = ParseKind("down")
	req.NoError(err)
	req.Equal(Down, k)
	_, err = ParseKind("sideways")
	req.ErrorIs(err, ErrInvalidKind)
}
