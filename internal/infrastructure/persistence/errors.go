package persistence

import (
	"errors"
	"strings"

	"github.com/erp/treasury/internal/domain/shared"
	"gorm.io/gorm"
)

// notFound maps gorm.ErrRecordNotFound to a NOT_FOUND domain error
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewNotFoundError(what + " not found")
	}
	return err
}

// conflictOnDuplicate maps unique-constraint violations to a CONFLICT
// domain error. Drivers opened with TranslateError report
// gorm.ErrDuplicatedKey; the message check covers those that are not.
func conflictOnDuplicate(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return shared.NewConflictError(message).WithCause(err)
	}
	return err
}
