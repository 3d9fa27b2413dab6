package db

import (
	"database/sql"
	"errors"
	"fmt"

	"raillink/entity"
)

// NotFoundOr turns sql.ErrNoRows into entity.ErrNotFound and wraps anything else.
func NotFoundOr(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", entity.ErrNotFound, what)
	}

	return fmt.Errorf("could not get %s: %w", what, err)
}
