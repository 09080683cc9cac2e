package database

import (
	"context"
	"errors"

	appErrors "course-enrollment/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the enrollment pipeline reacts to.
const (
	SQLStateUniqueViolation  = "23505"
	SQLStateLockNotAvailable = "55P03"
	SQLStateQueryCanceled    = "57014"
)

// TranslateError maps driver errors onto typed application errors. Errors it
// does not recognise are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case SQLStateUniqueViolation:
			return appErrors.WithCause(
				appErrors.Clone(appErrors.ErrConflict, "concurrent duplicate enrollment detected"), err)
		case SQLStateLockNotAvailable, SQLStateQueryCanceled:
			return appErrors.WithCause(appErrors.ErrLockTimeout, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.WithCause(appErrors.ErrLockTimeout, err)
	}
	return err
}
