package repository

import (
	"context"

	"github.com/garnizeh/jobcard/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Getters return (nil, nil) when the row does not exist.

// LocalJobCardRepo is the device-local job card cache.
type LocalJobCardRepo interface {
	ListJobCards(ctx context.Context, department string, status *models.Status) ([]models.JobCard, error)
	GetJobCard(ctx context.Context, id int64) (*models.JobCard, error)
	CreateJobCard(ctx context.Context, jc *models.JobCard) error
	UpsertJobCard(ctx context.Context, jc *models.JobCard) error
	MaxSequence(ctx context.Context, prefix string) (int, bool, error)
	ListDeviceQualified(ctx context.Context, department, deviceID string) ([]models.JobCard, error)
	UpdateJobNumber(ctx context.Context, id int64, jobNumber string) error
}

// LocalDirectoryRepo is the device-local copy of departments and users.
type LocalDirectoryRepo interface {
	GetDepartment(ctx context.Context, id int64) (*models.Department, error)
	ListDepartmentsByName(ctx context.Context, name string) ([]models.Department, error)
	ReplaceDepartments(ctx context.Context, ds []models.Department) error
	GetUser(ctx context.Context, empID string) (*models.User, error)
	ReplaceUsers(ctx context.Context, us []models.User) error
}

// RemoteJobCardRepo is the central system of record for job cards.
type RemoteJobCardRepo interface {
	ListJobCards(ctx context.Context, department string) ([]models.JobCard, error)
	MaxSequence(ctx context.Context, prefix string) (int, bool, error)
	JobCardExists(ctx context.Context, id int64, jobNumber string) (bool, error)
	InsertJobCard(ctx context.Context, jc *models.JobCard) error
	CountOpen(ctx context.Context, department string) (int64, error)
}

// RemoteDirectoryRepo exposes the central departments and users.
type RemoteDirectoryRepo interface {
	GetDepartment(ctx context.Context, id int64) (*models.Department, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)
	ListLoginUsers(ctx context.Context) ([]models.User, error)
}

// EntityRepo resolves the external assets a job card may point at.
type EntityRepo interface {
	EntityInfo(ctx context.Context, entityType string, entityID int64) (string, error)
}

// RemoteRepo groups everything the central database serves.
type RemoteRepo interface {
	RemoteJobCardRepo
	RemoteDirectoryRepo
	EntityRepo
}
