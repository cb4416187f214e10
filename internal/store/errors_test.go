package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCastErr(t *testing.T) {
	unique := fmt.Errorf("exec: %w", &pgconn.PgError{Code: uniqueViolation})

	tests := []struct {
		name    string
		err     error
		read    bool
		want    error
		notWant []error
	}{
		{name: "write not found", err: gorm.ErrRecordNotFound, want: ErrNotFound},
		{name: "write unique violation", err: unique, want: ErrDuplicateVote},
		{name: "write orm duplicate", err: gorm.ErrDuplicatedKey, want: ErrDuplicateVote},
		{name: "read not found", err: fmt.Errorf("first: %w", gorm.ErrRecordNotFound), read: true, want: ErrNotFound},
		{name: "read passes other errors through", err: unique, read: true, notWant: []error{ErrDuplicate, ErrDuplicateVote, ErrNotFound}},
		{name: "read connection error", err: errors.New("conn reset"), read: true, notWant: []error{ErrDuplicate, ErrNotFound}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			var got error
			if tt.read {
				got = castReadErr(tt.err)
			} else {
				got = castErr(tt.err, ErrDuplicateVote)
			}
			req.Error(got)
			if tt.want != nil {
				req.ErrorIs(got, tt.want)
			}
			for _, e := range tt.notWant {
				req.NotErrorIs(got, e)
			}
		})
	}
}
