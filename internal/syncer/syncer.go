// Package syncer moves job cards between the local cache and the central
// store. Download, Upload and SyncDirectory share one single-flight guard: a
// call made while another is running fails with errs.ErrSyncInProgress.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/jobcard/internal/idgen"
	"github.com/garnizeh/jobcard/internal/notify"
	"github.com/garnizeh/jobcard/internal/probe"
	"github.com/garnizeh/jobcard/pkg/errs"
	"github.com/garnizeh/jobcard/pkg/models"
	"github.com/garnizeh/jobcard/pkg/repository"
)

const (
	OpDownload  = "download"
	OpUpload    = "upload"
	OpDirectory = "directory"
)

// RecordFailure describes one record that could not be synchronized.
type RecordFailure struct {
	ID        int64  `json:"id,omitempty"`
	JobNumber string `json:"job_number,omitempty"`
	Error     string `json:"error"`
	Err       error  `json:"-"`
}

// Report summarizes a sync run.
type Report struct {
	Operation string          `json:"operation"`
	Total     int             `json:"total"`
	Synced    int             `json:"synced"`
	Uploaded  int             `json:"uploaded"`
	Skipped   int             `json:"skipped"`
	Failures  []RecordFailure `json:"failures,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

func (r *Report) fail(id int64, jobNumber string, err error) {
	r.Failures = append(r.Failures, RecordFailure{ID: id, JobNumber: jobNumber, Error: err.Error(), Err: err})
}

type localStore interface {
	repository.LocalJobCardRepo
	repository.LocalDirectoryRepo
}

type remoteStore interface {
	repository.RemoteJobCardRepo
	repository.RemoteDirectoryRepo
}

type Engine struct {
	local    localStore
	remote   remoteStore
	probe    probe.Checker
	deviceID string
	notifier notify.Notifier
	hashCost int
	logger   *slog.Logger

	busy atomic.Bool
}

type Option func(*Engine)

func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithHashCost sets the bcrypt cost used when caching user passwords.
func WithHashCost(cost int) Option {
	return func(e *Engine) {
		if cost > 0 {
			e.hashCost = cost
		}
	}
}

func New(local localStore, remote remoteStore, checker probe.Checker, deviceID string, opts ...Option) *Engine {
	e := &Engine{
		local:    local,
		remote:   remote,
		probe:    checker,
		deviceID: deviceID,
		notifier: notify.Nop,
		hashCost: bcrypt.DefaultCost,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Busy reports whether a sync operation is running.
func (e *Engine) Busy() bool { return e.busy.Load() }

func (e *Engine) acquire(op string) (func(), error) {
	if !e.busy.CompareAndSwap(false, true) {
		e.notifier.Notify("Sync in progress, please wait.", notify.Warning)
		return nil, fmt.Errorf("%s: %w", op, errs.ErrSyncInProgress)
	}
	e.notifier.Notify(fmt.Sprintf("Sync %s started", op), notify.Info)
	return func() {
		e.busy.Store(false)
		e.notifier.Notify(fmt.Sprintf("Sync %s finished", op), notify.Info)
	}, nil
}

func (e *Engine) checkOnline(ctx context.Context, op string) error {
	if e.probe.IsOnline(ctx) {
		return nil
	}
	e.notifier.Notify("Network error: Cannot connect to database server", notify.Error)
	return fmt.Errorf("%s: %w", op, errs.ErrNetworkUnavailable)
}

// Download refreshes the local cache with every central job card of the
// session's department. Records are upserted by id; a record that fails is
// reported and the rest continue.
func (e *Engine) Download(ctx context.Context, s models.Session) (*Report, error) {
	release, err := e.acquire(OpDownload)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	if err := e.checkOnline(ctx, OpDownload); err != nil {
		return nil, err
	}

	cards, err := e.remote.ListJobCards(ctx, s.Department)
	if err != nil {
		e.notifier.Notify(fmt.Sprintf("Sync failed: Database error - %v", err), notify.Error)
		return nil, fmt.Errorf("download job cards: %w", err)
	}

	rep := &Report{Operation: OpDownload, Total: len(cards)}
	for i := range cards {
		jc := &cards[i]
		if err := e.local.UpsertJobCard(ctx, jc); err != nil {
			e.logger.Error("job card download failed", slog.Int64("id", jc.ID), slog.String("job_number", jc.JobNumber), slog.String("error", err.Error()))
			e.notifier.Notify(fmt.Sprintf("Error syncing job card %s: %v", jc.JobNumber, err), notify.Error)
			rep.fail(jc.ID, jc.JobNumber, err)
			continue
		}
		rep.Synced++
	}
	rep.Duration = time.Since(start)

	e.logger.Info("download complete",
		slog.String("department", s.Department),
		slog.Int("total", rep.Total),
		slog.Int("synced", rep.Synced),
		slog.Int("failed", len(rep.Failures)),
	)
	if len(rep.Failures) == 0 {
		e.notifier.Notify("Job cards downloaded successfully!", notify.Success)
	}
	return rep, nil
}

// Upload publishes the job cards this device created offline. Each one is
// inserted centrally under its canonical job number and then renamed locally;
// records already present centrally are skipped.
func (e *Engine) Upload(ctx context.Context, s models.Session) (*Report, error) {
	release, err := e.acquire(OpUpload)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	if err := e.checkOnline(ctx, OpUpload); err != nil {
		return nil, err
	}

	pending, err := e.local.ListDeviceQualified(ctx, s.Department, e.deviceID)
	if err != nil {
		e.notifier.Notify(fmt.Sprintf("Upload failed: Database error - %v", err), notify.Error)
		return nil, fmt.Errorf("list pending uploads: %w", err)
	}

	rep := &Report{Operation: OpUpload, Total: len(pending)}
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		e.uploadOne(ctx, &pending[i], rep)
	}
	rep.Duration = time.Since(start)

	e.logger.Info("upload complete",
		slog.String("department", s.Department),
		slog.Int("total", rep.Total),
		slog.Int("uploaded", rep.Uploaded),
		slog.Int("skipped", rep.Skipped),
		slog.Int("failed", len(rep.Failures)),
	)
	if len(rep.Failures) == 0 {
		e.notifier.Notify(fmt.Sprintf("Uploaded %d job cards successfully!", rep.Uploaded), notify.Success)
	}
	return rep, nil
}

func (e *Engine) uploadOne(ctx context.Context, jc *models.JobCard, rep *Report) {
	canonical := idgen.Canonicalize(jc.JobNumber, e.deviceID)
	if len(canonical) > errs.MaxJobNumberLen {
		e.notifier.Notify(fmt.Sprintf("Job number %s too long for %s", canonical, jc.DepartmentName), notify.Error)
		rep.fail(jc.ID, canonical, fmt.Errorf("job number %q: %w", canonical, errs.ErrJobNumberTooLong))
		return
	}

	exists, err := e.remote.JobCardExists(ctx, jc.ID, canonical)
	if err != nil {
		e.uploadFailed(jc, canonical, err, rep)
		return
	}
	if exists {
		e.logger.Debug("job card already uploaded", slog.Int64("id", jc.ID), slog.String("job_number", canonical))
		rep.Skipped++
		return
	}

	out := *jc
	out.JobNumber = canonical
	if err := e.remote.InsertJobCard(ctx, &out); err != nil {
		e.uploadFailed(jc, canonical, err, rep)
		return
	}
	if err := e.local.UpdateJobNumber(ctx, jc.ID, canonical); err != nil {
		e.uploadFailed(jc, canonical, err, rep)
		return
	}
	rep.Uploaded++
}

func (e *Engine) uploadFailed(jc *models.JobCard, canonical string, err error, rep *Report) {
	switch {
	case errors.Is(err, errs.ErrJobNumberTooLong):
		e.notifier.Notify(fmt.Sprintf("Upload failed: Job number too long for %s", jc.DepartmentName), notify.Error)
	case errors.Is(err, errs.ErrDuplicateRecord):
		e.notifier.Notify(fmt.Sprintf("Upload failed: Duplicate job number %s", canonical), notify.Error)
	default:
		if !errors.Is(err, errs.ErrStore) && !errors.Is(err, errs.ErrNetworkUnavailable) {
			err = fmt.Errorf("%w: %w", errs.ErrStore, err)
		}
		e.notifier.Notify(fmt.Sprintf("Upload failed: Database error - %v", err), notify.Error)
	}
	e.logger.Error("job card upload failed", slog.Int64("id", jc.ID), slog.String("job_number", canonical), slog.String("error", err.Error()))
	rep.fail(jc.ID, canonical, err)
}

// SyncDirectory replaces the cached departments and login users with the
// central ones. Passwords are stored as bcrypt hashes.
func (e *Engine) SyncDirectory(ctx context.Context) (*Report, error) {
	release, err := e.acquire(OpDirectory)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	if err := e.checkOnline(ctx, OpDirectory); err != nil {
		return nil, err
	}

	depts, err := e.remote.ListDepartments(ctx)
	if err != nil {
		e.notifier.Notify(fmt.Sprintf("Error fetching departments: %v", err), notify.Error)
		return nil, fmt.Errorf("list departments: %w", err)
	}
	users, err := e.remote.ListLoginUsers(ctx)
	if err != nil {
		e.notifier.Notify(fmt.Sprintf("Error fetching users: %v", err), notify.Error)
		return nil, fmt.Errorf("list users: %w", err)
	}

	rep := &Report{Operation: OpDirectory, Total: len(depts) + len(users)}
	cached := make([]models.User, 0, len(users))
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), e.hashCost)
		if err != nil {
			rep.fail(0, "", fmt.Errorf("hash password for %s: %w", u.EmpID, err))
			continue
		}
		u.Password = string(hash)
		u.CanLogin = true
		cached = append(cached, u)
	}

	if err := e.local.ReplaceDepartments(ctx, depts); err != nil {
		return nil, fmt.Errorf("cache departments: %w", err)
	}
	if err := e.local.ReplaceUsers(ctx, cached); err != nil {
		return nil, fmt.Errorf("cache users: %w", err)
	}
	rep.Synced = len(depts) + len(cached)
	rep.Duration = time.Since(start)

	e.logger.Info("directory sync complete", slog.Int("departments", len(depts)), slog.Int("users", len(cached)))
	e.notifier.Notify(fmt.Sprintf("Synced %d departments and %d users", len(depts), len(cached)), notify.Success)
	return rep, nil
}
