package mock

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/garnizeh/jobcard/pkg/errs"
	"github.com/garnizeh/jobcard/pkg/models"
	"github.com/garnizeh/jobcard/pkg/repository"
)

var _ repository.RemoteRepo = (*Remote)(nil)

// Remote is an in-memory stand-in for the central database. The *Err fields
// inject failures into the matching method; Collisions makes the next n
// JobCardExists calls report a clash.
type Remote struct {
	mu          sync.Mutex
	Departments []models.Department
	Users       []models.User
	JobCards    []models.JobCard
	Entities    map[string]map[int64]string

	GetDepartmentErr error
	ListErr          error
	MaxSequenceErr   error
	ExistsErr        error
	InsertErr        error
	EntityErr        error
	Collisions       int

	calls atomic.Int64
}

func NewRemote() *Remote {
	return &Remote{Entities: map[string]map[int64]string{}}
}

// Calls reports how many repository methods have been invoked.
func (m *Remote) Calls() int64 { return m.calls.Load() }

func (m *Remote) AddDepartment(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Departments = append(m.Departments, models.Department{ID: id, Name: name})
}

// Cards returns a copy of the stored job cards ordered by id.
func (m *Remote) Cards() []models.JobCard {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.JobCard(nil), m.JobCards...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Remote) GetDepartment(ctx context.Context, id int64) (*models.Department, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetDepartmentErr != nil {
		return nil, m.GetDepartmentErr
	}
	for _, d := range m.Departments {
		if d.ID == id {
			d := d
			return &d, nil
		}
	}
	return nil, nil
}

func (m *Remote) ListDepartments(ctx context.Context) ([]models.Department, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return append([]models.Department(nil), m.Departments...), nil
}

func (m *Remote) ListLoginUsers(ctx context.Context) ([]models.User, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []models.User
	for _, u := range m.Users {
		if u.CanLogin {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *Remote) ListJobCards(ctx context.Context, department string) ([]models.JobCard, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []models.JobCard
	for _, jc := range m.JobCards {
		if jc.DepartmentName == department {
			out = append(out, jc)
		}
	}
	return out, nil
}

// MaxSequence only counts job numbers whose remainder after prefix is all
// digits, like the SQL version.
func (m *Remote) MaxSequence(ctx context.Context, prefix string) (int, bool, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MaxSequenceErr != nil {
		return 0, false, m.MaxSequenceErr
	}
	maxSeq, found := 0, false
	for _, jc := range m.JobCards {
		rest, ok := strings.CutPrefix(jc.JobNumber, prefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			continue
		}
		if !found || n > maxSeq {
			maxSeq, found = n, true
		}
	}
	return maxSeq, found, nil
}

func (m *Remote) JobCardExists(ctx context.Context, id int64, jobNumber string) (bool, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	if m.Collisions > 0 {
		m.Collisions--
		return true, nil
	}
	return m.existsLocked(id, jobNumber), nil
}

func (m *Remote) existsLocked(id int64, jobNumber string) bool {
	for _, jc := range m.JobCards {
		if jc.ID == id || jc.JobNumber == jobNumber {
			return true
		}
	}
	return false
}

func (m *Remote) InsertJobCard(ctx context.Context, jc *models.JobCard) error {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if len(jc.JobNumber) > errs.MaxJobNumberLen {
		return fmt.Errorf("job number %q: %w", jc.JobNumber, errs.ErrJobNumberTooLong)
	}
	if m.existsLocked(jc.ID, jc.JobNumber) {
		return fmt.Errorf("job card %d: %w", jc.ID, errs.ErrDuplicateRecord)
	}
	m.JobCards = append(m.JobCards, *jc)
	return nil
}

func (m *Remote) CountOpen(ctx context.Context, department string) (int64, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return 0, m.ListErr
	}
	var n int64
	for _, jc := range m.JobCards {
		if jc.DepartmentName == department && jc.Status == models.StatusOpen {
			n++
		}
	}
	return n, nil
}

func (m *Remote) EntityInfo(ctx context.Context, entityType string, entityID int64) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EntityErr != nil {
		return "", m.EntityErr
	}
	name, ok := m.Entities[entityType][entityID]
	if !ok {
		return "", errs.ErrNotFound
	}
	return name, nil
}
