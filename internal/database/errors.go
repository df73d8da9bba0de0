package database

import (
	"errors"
	"fmt"

	"staybook/internal/domain"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrDuplicateRoom = fmt.Errorf("%w: room number already exists in this accommodation", domain.ErrConflict)
	ErrInUse         = fmt.Errorf("%w: record is referenced by reservations", domain.ErrConflict)
	// ErrSerialization is returned when another writer held the database
	// lock past the busy timeout.
	ErrSerialization = fmt.Errorf("%w: concurrent modification, try again", domain.ErrConflict)
)

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// translateTxError maps lock contention onto the conflict kind and leaves
// everything else untouched.
func translateTxError(err error) error {
	if err == nil {
		return nil
	}
	if isBusy(err) {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return err
}
