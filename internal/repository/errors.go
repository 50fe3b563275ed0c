package repository

import (
	"errors"
	"fmt"

	"library-service/internal/apperr"

	"gorm.io/gorm"
)

// translate maps storage errors onto the application taxonomy. what names the
// entity for the message, e.g. "book 7".
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.New(apperr.NotFound, "%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.Conflict, err, what+" already exists")
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apperr.Wrap(apperr.Conflict, err, what+" is still referenced")
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// dbOr returns tx when the caller runs inside a transaction, db otherwise.
func dbOr(tx, db *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
