package database

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// NewSQLiteDatabase opens a SQLite database. ":memory:" is supported.
func NewSQLiteDatabase(connectionString string) (*SQLDatabase, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer and every ":memory:" connection is a
	// separate database.
	db.SetMaxOpenConns(1)

	return newSQLDatabase("sqlite", db, sq.Question, isSQLiteDuplicate), nil
}

func isSQLiteDuplicate(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
