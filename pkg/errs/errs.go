// Package errs holds the error taxonomy shared by the stores, the identifier
// generator and the synchronization engine. Callers match with errors.Is.
package errs

import "errors"

// ErrNetworkUnavailable means the probe failed or the remote refused the connection.
var ErrNetworkUnavailable = errors.New("network unavailable")

// ErrSyncInProgress is returned when another sync already holds the guard.
var ErrSyncInProgress = errors.New("sync in progress")

var (
	ErrInvalidDepartment   = errors.New("invalid department")
	ErrJobNumberTooLong    = errors.New("job number too long")
	ErrIdentifierExhausted = errors.New("unable to generate unique job id")
	ErrDuplicateRecord     = errors.New("duplicate record")
	ErrStore               = errors.New("store error")
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
)

// MaxJobNumberLen is the column width of job_number in both stores.
const MaxJobNumberLen = 30
