package models

import "time"

// Domain models matching the local schema in db/schema/0001_local.sql

type Status string

const (
	StatusOpen      Status = "Open"
	StatusStarted   Status = "Started"
	StatusCompleted Status = "Completed"
)

// Valid reports whether s is one of the known job card states.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusStarted, StatusCompleted:
		return true
	}
	return false
}

type JobCard struct {
	ID             int64      `json:"id" db:"id"`
	JobNumber      string     `json:"job_number" db:"job_number"`
	Title          string     `json:"title" db:"title"`
	Description    string     `json:"description" db:"description"`
	Status         Status     `json:"status" db:"status"`
	CreatedDate    time.Time  `json:"created_date" db:"created_date"`
	StartedDate    *time.Time `json:"started_date,omitempty" db:"started_date"`
	CompletedDate  *time.Time `json:"completed_date,omitempty" db:"completed_date"`
	EntityType     *string    `json:"entity_type,omitempty" db:"entity_type"`
	EntityID       *int64     `json:"entity_id,omitempty" db:"entity_id"`
	ClosureDetails *string    `json:"closure_details,omitempty" db:"closure_details"`
	DepartmentName string     `json:"department_name" db:"department_name"`
}

type Department struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// User is a cached login identity. In the local store Password holds a bcrypt
// hash; rows read from the remote carry the remote's plaintext value.
type User struct {
	EmpID          string `json:"emp_id" db:"emp_id"`
	Password       string `json:"-" db:"password"`
	Name           string `json:"name" db:"name"`
	DepartmentName string `json:"department_name" db:"department_name"`
	CanLogin       bool   `json:"can_login" db:"can_login"`
}

// Session identifies the logged-in user for every core call.
type Session struct {
	EmpID      string `json:"emp_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
}
