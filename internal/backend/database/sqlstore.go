package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const recordsTable = "qr_codes"

var recordColumns = []string{
	"id",
	"url",
	"foreground_color",
	"background_color",
	"size",
	"format",
	"has_logo",
	"logo",
	"created_at",
}

const createRecordsTable = `CREATE TABLE IF NOT EXISTS qr_codes (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	foreground_color TEXT NOT NULL,
	background_color TEXT NOT NULL,
	size INTEGER NOT NULL,
	format TEXT NOT NULL,
	has_logo BOOLEAN NOT NULL,
	logo TEXT,
	created_at BIGINT NOT NULL
)`

// SQLDatabase is the record store shared by the relational backends. Only
// the placeholder style differs between them.
type SQLDatabase struct {
	name        string
	db          *sql.DB
	builder     sq.StatementBuilderType
	isDuplicate func(error) bool
}

func newSQLDatabase(name string, db *sql.DB, placeholder sq.PlaceholderFormat, isDuplicate func(error) bool) *SQLDatabase {
	return &SQLDatabase{
		name:        name,
		db:          db,
		builder:     sq.StatementBuilder.PlaceholderFormat(placeholder),
		isDuplicate: isDuplicate,
	}
}

func (s *SQLDatabase) CreateDatabase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createRecordsTable); err != nil {
		return fmt.Errorf("failed to create %s table: %w", recordsTable, err)
	}
	return nil
}

func (s *SQLDatabase) DoesDatabaseExist(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

func (s *SQLDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLDatabase) CreateRecord(ctx context.Context, record *Record) (*Record, error) {
	if record == nil || record.ID == "" {
		return nil, fmt.Errorf("record must have an id")
	}

	query, args, err := s.builder.Insert(recordsTable).
		Columns(recordColumns...).
		Values(
			record.ID,
			record.URL,
			record.ForegroundColor,
			record.BackgroundColor,
			record.Size,
			record.Format,
			record.HasLogo,
			sql.NullString{String: record.Logo, Valid: record.Logo != ""},
			record.CreatedAt.UnixNano(),
		).
		ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if s.isDuplicate != nil && s.isDuplicate(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, record.ID)
		}
		slog.Error("SQLDatabase: failed to insert record", "backend", s.name, "id", record.ID, "error", err)
		return nil, fmt.Errorf("failed to insert record %s: %w", record.ID, err)
	}
	return record.clone(), nil
}

func (s *SQLDatabase) GetRecordByID(ctx context.Context, id string) (*Record, error) {
	query, args, err := s.builder.Select(recordColumns...).
		From(recordsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}
	return record, nil
}

func (s *SQLDatabase) GetAllRecords(ctx context.Context) ([]*Record, error) {
	query, args, err := s.builder.Select(recordColumns...).
		From(recordsTable).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]*Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record    Record
		logo      sql.NullString
		createdAt int64
	)
	err := row.Scan(
		&record.ID,
		&record.URL,
		&record.ForegroundColor,
		&record.BackgroundColor,
		&record.Size,
		&record.Format,
		&record.HasLogo,
		&logo,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	record.Logo = logo.String
	record.CreatedAt = time.Unix(0, createdAt).UTC()
	return &record, nil
}
