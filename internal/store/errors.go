package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateVote = errors.New("vote already exists for post and user")
	ErrDuplicate     = errors.New("already exists")
)

const uniqueViolation = "23505"

// castErr maps driver and orm errors onto the package sentinels. dup is
// returned for unique violations so callers can pick the precise sentinel.
func castErr(err error, dup error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Join(dup, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Join(dup, err)
	}
	return err
}

// castReadErr maps errors of statements that cannot violate a unique
// constraint.
func castReadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
