package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	schema "github.com/garnizeh/jobcard/db"
	"github.com/garnizeh/jobcard/internal/db"
	"github.com/garnizeh/jobcard/pkg/errs"
	"github.com/garnizeh/jobcard/pkg/repository"
)

// TimeLayout is the text format timestamps are stored in.
const TimeLayout = "2006-01-02 15:04:05"

// extended result codes from sqlite3.h
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// SQLiteRepo implements the local repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.LocalJobCardRepo = (*SQLiteRepo)(nil)
var _ repository.LocalDirectoryRepo = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger}
}

// Open opens the SQLite file at path, creates any missing tables and returns a
// repository bound to it.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SQLiteRepo, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	conn, err := db.New(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx, conn, schema.Schema, schema.SchemaDir); err != nil {
		conn.Close()
		return nil, err
	}
	return New(conn, logger), nil
}

// DB exposes the underlying connection for components sharing the file.
func (r *SQLiteRepo) DB() *db.DB { return r.conn }

func (r *SQLiteRepo) Close() error { return r.conn.Close() }

func formatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.Local)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// classify maps driver errors onto the errs taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errs.ErrDuplicateRecord) || errors.Is(err, errs.ErrJobNumberTooLong) || errors.Is(err, errs.ErrNotFound) {
		return err
	}

	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() {
		case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
			return fmt.Errorf("%w: %w", errs.ErrDuplicateRecord, err)
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %w", errs.ErrDuplicateRecord, err)
	}

	return fmt.Errorf("%w: %w", errs.ErrStore, err)
}
