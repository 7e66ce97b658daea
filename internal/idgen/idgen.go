// Package idgen allocates job card identifiers. Online allocation asks the
// central store for the next free sequence; offline allocation uses the local
// cache and tags the job number with the device qualifier so that the upload
// step can tell locally minted numbers apart.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/garnizeh/jobcard/internal/probe"
	"github.com/garnizeh/jobcard/pkg/errs"
	"github.com/garnizeh/jobcard/pkg/repository"
)

const (
	// MaxAttempts bounds the online collision loop.
	MaxAttempts = 10
	// PrefixLen is the maximum number of department characters in a job number.
	PrefixLen = 10

	dateLayout = "20060102"
)

// Prefix keeps the ASCII letters and digits of a department name, truncated to
// PrefixLen characters.
func Prefix(departmentName string) string {
	var b strings.Builder
	for _, r := range departmentName {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		b.WriteRune(r)
		if b.Len() == PrefixLen {
			break
		}
	}
	return b.String()
}

// DateStamp renders t as YYYYMMDD.
func DateStamp(t time.Time) string {
	return t.Format(dateLayout)
}

// SequencePrefix is the part of a job number that precedes the counter.
func SequencePrefix(prefix, date string) string {
	return prefix + date + "-"
}

// FormatJobNumber builds a job number. A non-empty deviceID appends the
// offline qualifier.
func FormatJobNumber(prefix, date string, count int, deviceID string) string {
	jn := fmt.Sprintf("%s%04d", SequencePrefix(prefix, date), count)
	if deviceID != "" {
		jn += Qualifier(deviceID)
	}
	return jn
}

// Qualifier is the suffix that marks a job number as minted on deviceID.
func Qualifier(deviceID string) string {
	return "-D" + deviceID
}

// Canonicalize strips the device qualifier from jobNumber when present.
func Canonicalize(jobNumber, deviceID string) string {
	return strings.TrimSuffix(jobNumber, Qualifier(deviceID))
}

// JobID concatenates the department id, date and zero-padded count and reads
// the result as an integer.
func JobID(departmentID int64, date string, count int) (int64, error) {
	s := fmt.Sprintf("%d%s%04d", departmentID, date, count)
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("job id %q: %w", s, err)
	}
	return id, nil
}

// departmentPrefix rejects names that leave no letters or digits for the
// job number.
func departmentPrefix(departmentID int64, name string) (string, error) {
	prefix := Prefix(name)
	if prefix == "" {
		return "", fmt.Errorf("department %d name %q has no letters or digits: %w", departmentID, name, errs.ErrInvalidDepartment)
	}
	return prefix, nil
}

// Identifier is an allocated (id, job number) pair.
type Identifier struct {
	ID             int64
	JobNumber      string
	DepartmentName string
	Offline        bool
}

type remoteStore interface {
	repository.RemoteJobCardRepo
	repository.RemoteDirectoryRepo
}

type localStore interface {
	repository.LocalJobCardRepo
	repository.LocalDirectoryRepo
}

type Generator struct {
	remote   remoteStore
	local    localStore
	probe    probe.Checker
	deviceID string
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

func New(remote remoteStore, local localStore, checker probe.Checker, deviceID string, opts ...Option) *Generator {
	g := &Generator{
		remote:   remote,
		local:    local,
		probe:    checker,
		deviceID: deviceID,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// DeviceID returns the qualifier used for offline allocations.
func (g *Generator) DeviceID() string { return g.deviceID }

// Generate allocates an identifier for a new job card in departmentID.
func (g *Generator) Generate(ctx context.Context, departmentID int64) (Identifier, error) {
	date := DateStamp(g.now())

	if !g.probe.IsOnline(ctx) {
		return g.offline(ctx, departmentID, date, "")
	}

	dept, err := g.remote.GetDepartment(ctx, departmentID)
	if err != nil {
		g.logger.Warn("remote department lookup failed, allocating offline",
			slog.Int64("department_id", departmentID), slog.String("error", err.Error()))
		return g.offline(ctx, departmentID, date, "")
	}
	if dept == nil {
		return Identifier{}, fmt.Errorf("department %d: %w", departmentID, errs.ErrInvalidDepartment)
	}

	id, err := g.online(ctx, departmentID, dept.Name, date)
	var remoteErr *remoteFailure
	if errors.As(err, &remoteErr) {
		g.logger.Warn("online allocation failed, allocating offline",
			slog.Int64("department_id", departmentID), slog.String("error", remoteErr.err.Error()))
		return g.offline(ctx, departmentID, date, dept.Name)
	}
	return id, err
}

// remoteFailure marks an online attempt loop that ran out on store errors
// rather than on collisions.
type remoteFailure struct{ err error }

func (e *remoteFailure) Error() string { return e.err.Error() }
func (e *remoteFailure) Unwrap() error { return e.err }

func (g *Generator) online(ctx context.Context, departmentID int64, name, date string) (Identifier, error) {
	prefix, err := departmentPrefix(departmentID, name)
	if err != nil {
		return Identifier{}, err
	}
	seqPrefix := SequencePrefix(prefix, date)

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Identifier{}, err
		}

		maxSeq, _, err := g.remote.MaxSequence(ctx, seqPrefix)
		if err != nil {
			lastErr = err
			continue
		}
		count := maxSeq + 1

		jobNumber := FormatJobNumber(prefix, date, count, "")
		if len(jobNumber) > errs.MaxJobNumberLen {
			return Identifier{}, fmt.Errorf("job number %q: %w", jobNumber, errs.ErrJobNumberTooLong)
		}
		id, err := JobID(departmentID, date, count)
		if err != nil {
			return Identifier{}, fmt.Errorf("%w: %w", errs.ErrValidation, err)
		}

		exists, err := g.remote.JobCardExists(ctx, id, jobNumber)
		if err != nil {
			lastErr = err
			continue
		}
		if exists {
			g.logger.Debug("identifier collision", slog.Int64("id", id), slog.String("job_number", jobNumber), slog.Int("attempt", attempt))
			lastErr = nil
			continue
		}

		return Identifier{ID: id, JobNumber: jobNumber, DepartmentName: name}, nil
	}

	if lastErr != nil {
		return Identifier{}, &remoteFailure{err: lastErr}
	}
	return Identifier{}, fmt.Errorf("department %d after %d attempts: %w", departmentID, MaxAttempts, errs.ErrIdentifierExhausted)
}

func (g *Generator) offline(ctx context.Context, departmentID int64, date, name string) (Identifier, error) {
	if name == "" {
		dept, err := g.local.GetDepartment(ctx, departmentID)
		if err != nil {
			return Identifier{}, fmt.Errorf("local department %d: %w", departmentID, err)
		}
		if dept == nil {
			return Identifier{}, fmt.Errorf("department %d: %w", departmentID, errs.ErrInvalidDepartment)
		}
		name = dept.Name
	}

	prefix, err := departmentPrefix(departmentID, name)
	if err != nil {
		return Identifier{}, err
	}
	maxSeq, _, err := g.local.MaxSequence(ctx, SequencePrefix(prefix, date))
	if err != nil {
		return Identifier{}, fmt.Errorf("local sequence: %w", err)
	}
	count := maxSeq + 1

	jobNumber := FormatJobNumber(prefix, date, count, g.deviceID)
	if len(jobNumber) > errs.MaxJobNumberLen {
		return Identifier{}, fmt.Errorf("job number %q: %w", jobNumber, errs.ErrJobNumberTooLong)
	}
	id, err := JobID(departmentID, date, count)
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %w", errs.ErrValidation, err)
	}

	return Identifier{ID: id, JobNumber: jobNumber, DepartmentName: name, Offline: true}, nil
}
