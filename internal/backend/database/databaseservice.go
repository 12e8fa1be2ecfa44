package database

import (
	"context"
	"errors"
)

// ErrDuplicateID is returned when a record with the same id already exists.
var ErrDuplicateID = errors.New("record id already exists")

// DatabaseService stores generated QR code records. Records are insert-only.
type DatabaseService interface {
	CreateDatabase(ctx context.Context) error
	DoesDatabaseExist(ctx context.Context) bool
	Close() error

	CreateRecord(ctx context.Context, record *Record) (*Record, error)
	// GetRecordByID returns nil and no error when the id is unknown.
	GetRecordByID(ctx context.Context, id string) (*Record, error)
	// GetAllRecords returns every record ordered by creation.
	GetAllRecords(ctx context.Context) ([]*Record, error)
}
