package remote

import (
	"time"

	"github.com/garnizeh/jobcard/pkg/models"
)

// Row types mirror the central schema. They stay private so gorm tags do not
// leak into pkg/models.

type jobCardRow struct {
	ID             int64      `gorm:"column:id;primaryKey;autoIncrement:false"`
	JobNumber      string     `gorm:"column:job_number;size:30;not null;uniqueIndex"`
	Title          string     `gorm:"column:title;not null"`
	Description    string     `gorm:"column:description;not null"`
	Status         string     `gorm:"column:status;not null"`
	CreatedDate    time.Time  `gorm:"column:created_date;not null"`
	StartedDate    *time.Time `gorm:"column:started_date"`
	CompletedDate  *time.Time `gorm:"column:completed_date"`
	EntityType     *string    `gorm:"column:entity_type"`
	EntityID       *int64     `gorm:"column:entity_id"`
	ClosureDetails *string    `gorm:"column:closure_details"`
	DepartmentName string     `gorm:"column:department_name;not null;index"`
}

func (jobCardRow) TableName() string { return "job_cards" }

type departmentRow struct {
	ID          int64     `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Description *string   `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (departmentRow) TableName() string { return "department" }

type userRow struct {
	EmpID          string `gorm:"column:emp_id;primaryKey"`
	Password       string `gorm:"column:password"`
	Name           string `gorm:"column:name"`
	DepartmentName string `gorm:"column:department_name"`
	CanLogin       bool   `gorm:"column:can_login"`
}

func (userRow) TableName() string { return "users" }

func jobCardFromRow(r jobCardRow) models.JobCard {
	return models.JobCard{
		ID:             r.ID,
		JobNumber:      r.JobNumber,
		Title:          r.Title,
		Description:    r.Description,
		Status:         models.Status(r.Status),
		CreatedDate:    r.CreatedDate,
		StartedDate:    r.StartedDate,
		CompletedDate:  r.CompletedDate,
		EntityType:     r.EntityType,
		EntityID:       r.EntityID,
		ClosureDetails: r.ClosureDetails,
		DepartmentName: r.DepartmentName,
	}
}

func jobCardToRow(jc *models.JobCard) jobCardRow {
	return jobCardRow{
		ID:             jc.ID,
		JobNumber:      jc.JobNumber,
		Title:          jc.Title,
		Description:    jc.Description,
		Status:         string(jc.Status),
		CreatedDate:    jc.CreatedDate,
		StartedDate:    jc.StartedDate,
		CompletedDate:  jc.CompletedDate,
		EntityType:     jc.EntityType,
		EntityID:       jc.EntityID,
		ClosureDetails: jc.ClosureDetails,
		DepartmentName: jc.DepartmentName,
	}
}

func departmentFromRow(r departmentRow) models.Department {
	return models.Department{ID: r.ID, Name: r.Name, Description: r.Description, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func userFromRow(r userRow) models.User {
	return models.User{EmpID: r.EmpID, Password: r.Password, Name: r.Name, DepartmentName: r.DepartmentName, CanLogin: r.CanLogin}
}
