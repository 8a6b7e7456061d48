package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	domainErrors "github.com/ngoclaw/ngoclaw/iafleet/pkg/errors"
)

// pgUniqueViolation postgres unique_violation
const pgUniqueViolation = "23505"

// translateError 将驱动错误转换为领域错误
func translateError(err error, what string) error {
	if err == nil {
		return nil
	}

	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainErrors.NewNotFoundError(what + " not found")
	case isUniqueViolation(err):
		return &domainErrors.AppError{
			Code:    domainErrors.CodeAlreadyExists,
			Message: what + " violates a unique constraint",
			Err:     err,
		}
	default:
		return domainErrors.NewInternalErrorWithCause("failed to persist "+what, err)
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return true
	}

	return false
}
