package remote

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/garnizeh/jobcard/pkg/errs"
)

// PostgreSQL error codes the sync loop reports separately.
const (
	PgErrUniqueViolation      = "23505" // unique_violation
	PgErrStringDataRightTrunc = "22001" // string_data_right_truncation
)

// classify maps driver and network errors onto the errs taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case PgErrUniqueViolation:
			return fmt.Errorf("%w: %w", errs.ErrDuplicateRecord, err)
		case PgErrStringDataRightTrunc:
			return fmt.Errorf("%w: %w", errs.ErrJobNumberTooLong, err)
		}
		return fmt.Errorf("%w: %w", errs.ErrStore, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", errs.ErrNetworkUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", errs.ErrNetworkUnavailable, err)
	}
	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", errs.ErrNetworkUnavailable, err)
	}

	return fmt.Errorf("%w: %w", errs.ErrStore, err)
}
