package database

import (
	"context"
	"fmt"
	"log/slog"
)

// NewDatabase creates the store named by databaseType and ensures its schema
// exists. Supported types are memory, sqlite, postgres and redis.
func NewDatabase(ctx context.Context, databaseType, connectionString string) (database DatabaseService, err error) {
	switch databaseType {
	case "", "memory":
		database = NewMemoryDatabase()
	case "sqlite":
		database, err = NewSQLiteDatabase(connectionString)
	case "postgres":
		database, err = NewPostgresDatabase(connectionString)
	case "redis":
		database, err = NewRedisDatabase(connectionString)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
	if err != nil {
		return nil, err
	}

	// Schema creation is idempotent and required for in-memory SQLite
	slog.Info("NewDatabase: initializing database schema", "type", databaseType)
	if err = database.CreateDatabase(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return database, nil
}
