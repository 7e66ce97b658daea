// Package service holds the job card use cases the HTTP shell exposes:
// creating and reading cards, signing in against the cached directory and
// looking up the assets a card refers to.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/jobcard/internal/idgen"
	"github.com/garnizeh/jobcard/internal/notify"
	"github.com/garnizeh/jobcard/internal/probe"
	"github.com/garnizeh/jobcard/pkg/errs"
	"github.com/garnizeh/jobcard/pkg/models"
	"github.com/garnizeh/jobcard/pkg/repository"
)

// EntityTypes lists the asset kinds a job card may reference.
var EntityTypes = []string{"Asset", "Consumable", "Component", "Device"}

func knownEntityType(t string) bool {
	for _, et := range EntityTypes {
		if et == t {
			return true
		}
	}
	return false
}

type CreateInput struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	DepartmentID int64   `json:"department_id"`
	EntityType   *string `json:"entity_type,omitempty"`
	EntityID     *int64  `json:"entity_id,omitempty"`
}

type localStore interface {
	repository.LocalJobCardRepo
	repository.LocalDirectoryRepo
}

type Service struct {
	local    localStore
	remote   repository.RemoteRepo
	gen      *idgen.Generator
	probe    probe.Checker
	notifier notify.Notifier
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Service)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(local localStore, remote repository.RemoteRepo, gen *idgen.Generator, checker probe.Checker, opts ...Option) *Service {
	s := &Service{
		local:    local,
		remote:   remote,
		gen:      gen,
		probe:    checker,
		notifier: notify.Nop,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Online reports whether the central store is currently reachable.
func (s *Service) Online(ctx context.Context) bool { return s.probe.IsOnline(ctx) }

// CreateJobCard allocates an identifier, stores the card locally and, when the
// identifier came from the central store, inserts it there too. If that
// insert fails the local copy is tagged with the device qualifier so the next
// upload publishes it.
func (s *Service) CreateJobCard(ctx context.Context, sess models.Session, in CreateInput) (*models.JobCard, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" || in.Description == "" || in.DepartmentID <= 0 {
		s.notifier.Notify("Title, description, and department are required.", notify.Error)
		return nil, fmt.Errorf("%w: title, description and department are required", errs.ErrValidation)
	}
	if in.EntityType != nil && !knownEntityType(*in.EntityType) {
		return nil, fmt.Errorf("%w: unknown entity type %q", errs.ErrValidation, *in.EntityType)
	}
	if in.EntityID != nil && in.EntityType == nil {
		return nil, fmt.Errorf("%w: entity_id requires entity_type", errs.ErrValidation)
	}

	id, err := s.gen.Generate(ctx, in.DepartmentID)
	if err != nil {
		s.notifyCreateError(err)
		return nil, fmt.Errorf("allocate identifier: %w", err)
	}
	if id.Offline {
		s.notifier.Notify("Central database unavailable: using device-specific job number", notify.Warning)
	}

	jc := &models.JobCard{
		ID:             id.ID,
		JobNumber:      id.JobNumber,
		Title:          in.Title,
		Description:    in.Description,
		Status:         models.StatusOpen,
		CreatedDate:    s.now().Truncate(time.Second),
		EntityType:     in.EntityType,
		EntityID:       in.EntityID,
		DepartmentName: id.DepartmentName,
	}
	if err := s.local.CreateJobCard(ctx, jc); err != nil {
		s.notifyCreateError(err)
		return nil, fmt.Errorf("store job card locally: %w", err)
	}

	if !id.Offline {
		if err := s.remote.InsertJobCard(ctx, jc); err != nil {
			s.logger.Warn("central insert failed, queuing for upload",
				slog.Int64("id", jc.ID), slog.String("job_number", jc.JobNumber), slog.String("error", err.Error()))
			qualified := jc.JobNumber + idgen.Qualifier(s.gen.DeviceID())
			if uerr := s.local.UpdateJobNumber(ctx, jc.ID, qualified); uerr != nil {
				s.notifier.Notify(fmt.Sprintf("Error saving job card: %v", uerr), notify.Error)
				return jc, fmt.Errorf("queue job card %d for upload: %w", jc.ID, uerr)
			}
			jc.JobNumber = qualified
			s.notifier.Notify("Job card saved locally; it will be uploaded on the next sync", notify.Warning)
		}
	}

	s.logger.Info("job card created",
		slog.Int64("id", jc.ID),
		slog.String("job_number", jc.JobNumber),
		slog.String("department", jc.DepartmentName),
		slog.String("emp_id", sess.EmpID),
		slog.Bool("offline", id.Offline),
	)
	s.notifier.Notify("Job card created successfully!", notify.Success)
	return jc, nil
}

func (s *Service) notifyCreateError(err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidDepartment):
		s.notifier.Notify("Invalid department selected.", notify.Error)
	case errors.Is(err, errs.ErrJobNumberTooLong):
		s.notifier.Notify("Job number too long for the department", notify.Error)
	case errors.Is(err, errs.ErrIdentifierExhausted):
		s.notifier.Notify("Unable to generate unique job ID after multiple attempts.", notify.Error)
	case errors.Is(err, errs.ErrDuplicateRecord):
		s.notifier.Notify("Duplicate job ID or number in local store. Try again.", notify.Error)
	default:
		s.notifier.Notify(fmt.Sprintf("Error saving job card: %v", err), notify.Error)
	}
}

// ListJobCards returns the cached cards of the session's department,
// optionally filtered by status.
func (s *Service) ListJobCards(ctx context.Context, sess models.Session, status *models.Status) ([]models.JobCard, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", errs.ErrValidation, *status)
	}
	cards, err := s.local.ListJobCards(ctx, sess.Department, status)
	if err != nil {
		return nil, fmt.Errorf("list job cards: %w", err)
	}
	return cards, nil
}

// GetJobCard returns a cached card; cards of other departments are reported
// as not found.
func (s *Service) GetJobCard(ctx context.Context, sess models.Session, id int64) (*models.JobCard, error) {
	jc, err := s.local.GetJobCard(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job card: %w", err)
	}
	if jc == nil || jc.DepartmentName != sess.Department {
		return nil, fmt.Errorf("job card %d: %w", id, errs.ErrNotFound)
	}
	return jc, nil
}

// OpenCount is the number of Open cards the central store holds for the
// session's department. It is a display badge, so an unreachable or failing
// store yields 0.
func (s *Service) OpenCount(ctx context.Context, sess models.Session) int64 {
	if !s.probe.IsOnline(ctx) {
		s.logger.Debug("open count skipped, central store unreachable", slog.String("department", sess.Department))
		return 0
	}
	n, err := s.remote.CountOpen(ctx, sess.Department)
	if err != nil {
		s.logger.Warn("open count failed", slog.String("department", sess.Department), slog.String("error", err.Error()))
		return 0
	}
	return n
}

// Departments lists the cached departments the session may file cards for.
func (s *Service) Departments(ctx context.Context, sess models.Session) ([]models.Department, error) {
	ds, err := s.local.ListDepartmentsByName(ctx, sess.Department)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return ds, nil
}

// Login checks the credentials against the cached directory.
func (s *Service) Login(ctx context.Context, empID, password string) (models.Session, error) {
	empID = strings.TrimSpace(empID)
	if empID == "" || password == "" {
		return models.Session{}, fmt.Errorf("%w: employee id and password are required", errs.ErrValidation)
	}

	u, err := s.local.GetUser(ctx, empID)
	if err != nil {
		return models.Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || !u.CanLogin {
		return models.Session{}, errs.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return models.Session{}, errs.ErrInvalidCredentials
	}

	s.logger.Info("user logged in", slog.String("emp_id", u.EmpID), slog.String("department", u.DepartmentName))
	return models.Session{EmpID: u.EmpID, Name: u.Name, Department: u.DepartmentName}, nil
}

// EntityInfo describes the referenced asset for display. Failures are folded
// into fixed messages instead of errors.
func (s *Service) EntityInfo(ctx context.Context, entityType string, entityID int64) string {
	if !s.probe.IsOnline(ctx) {
		return "Network error: Cannot fetch entity info"
	}
	if !knownEntityType(entityType) {
		return "Unknown Entity"
	}

	info, err := s.remote.EntityInfo(ctx, entityType, entityID)
	switch {
	case err == nil:
		return info
	case errors.Is(err, errs.ErrNotFound):
		return "Unknown " + entityType
	default:
		s.logger.Warn("entity lookup failed", slog.String("type", entityType), slog.Int64("id", entityID), slog.String("error", err.Error()))
		return "Error fetching entity info"
	}
}
