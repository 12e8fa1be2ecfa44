package database

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// NewPostgresDatabase opens a PostgreSQL database from a lib/pq connection
// string or URL.
func NewPostgresDatabase(connectionString string) (*SQLDatabase, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	return newSQLDatabase("postgres", db, sq.Dollar, isPostgresDuplicate), nil
}

func isPostgresDuplicate(err error) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && perr.Code == pgUniqueViolation
}
