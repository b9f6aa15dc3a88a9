package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// unique_violation per Postgres error code table.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. Stores translate this into sentinel.ErrConflict so services
// never see driver error types.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
