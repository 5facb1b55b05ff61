package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound              = errors.New("record not found")
	ErrPleasantHabitNotFound = errors.New("pleasant habit not found")
	ErrNotPleasantHabit      = errors.New("referenced habit is not pleasant")
	ErrPleasantHabitInUse    = errors.New("habit is referenced as a pleasant habit")
	ErrLinkedHabitNotFound   = errors.New("linked habit not found")
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrDuplicateTgUsername   = errors.New("telegram username already registered")
)

// uniqueViolation returns the offending column hint for UNIQUE constraint errors of either driver.
func uniqueViolation(err error) (string, bool) {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		// "UNIQUE constraint failed: users.email"
		return liteErr.Error(), true
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.Constraint, true
	}

	return "", false
}

func mapUserConflict(err error) error {
	hint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	switch {
	case strings.Contains(hint, "email"):
		return ErrDuplicateEmail
	case strings.Contains(hint, "tg_username"):
		return ErrDuplicateTgUsername
	}
	return err
}
