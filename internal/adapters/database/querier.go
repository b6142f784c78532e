package database

import (
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

// dialect builds parameterised PostgreSQL statements.
var dialect = goqu.Dialect("postgres")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func statusValues(statuses []entities.BookingStatus) []interface{} {
	out := make([]interface{}, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
