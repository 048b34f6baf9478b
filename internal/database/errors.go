package database

import (
	"errors"
	"fmt"
	"strings"

	"campsite/internal/domain"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	pgUniqueViolation      = "23505"
	pgAllocationConstraint = "uq_allocations_date"
)

// translateError maps a uniqueness violation on the allocation date to
// domain.ErrDateTaken. Other errors pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if isDateTaken(err) {
		return fmt.Errorf("%w: %v", domain.ErrDateTaken, err)
	}
	return err
}

func isDateTaken(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
			strings.Contains(sqliteErr.Error(), "allocations.date")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation && pqErr.Constraint == pgAllocationConstraint
	}
	return false
}
