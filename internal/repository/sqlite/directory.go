package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garnizeh/jobcard/pkg/models"
)

func scanDepartment(s scanner) (*models.Department, error) {
	var (
		d         models.Department
		desc      sql.NullString
		createdAt sql.NullString
		updatedAt sql.NullString
	)
	if err := s.Scan(&d.ID, &d.Name, &desc, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		v := desc.String
		d.Description = &v
	}
	if t, err := parseNullTime(createdAt); err == nil && t != nil {
		d.CreatedAt = *t
	}
	if t, err := parseNullTime(updatedAt); err == nil && t != nil {
		d.UpdatedAt = *t
	}

	return &d, nil
}

func (r *SQLiteRepo) GetDepartment(ctx context.Context, id int64) (*models.Department, error) {
	row := r.conn.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM department WHERE id = ?`, id)
	d, err := scanDepartment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, classify(err)
	}

	return d, nil
}

func (r *SQLiteRepo) ListDepartmentsByName(ctx context.Context, name string) ([]models.Department, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, name, description, created_at, updated_at FROM department WHERE name = ? ORDER BY id`, name)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, *d)
	}

	return out, classify(rows.Err())
}

func stampOrNow(t time.Time) string {
	if t.IsZero() {
		return formatTime(time.Now())
	}
	return formatTime(t)
}

// ReplaceDepartments swaps the cached department table for ds in one transaction.
func (r *SQLiteRepo) ReplaceDepartments(ctx context.Context, ds []models.Department) error {
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM department`); err != nil {
			return err
		}
		for _, d := range ds {
			if _, err := tx.ExecContext(ctx, `INSERT INTO department (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
				d.ID, d.Name, nullString(d.Description), stampOrNow(d.CreatedAt), stampOrNow(d.UpdatedAt)); err != nil {
				return fmt.Errorf("department %d: %w", d.ID, err)
			}
		}
		return nil
	})

	return classify(err)
}

func (r *SQLiteRepo) GetUser(ctx context.Context, empID string) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT emp_id, password, name, department_name, can_login FROM users WHERE emp_id = ?`, empID)
	var u models.User
	if err := row.Scan(&u.EmpID, &u.Password, &u.Name, &u.DepartmentName, &u.CanLogin); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, classify(err)
	}

	return &u, nil
}

// ReplaceUsers swaps the cached users table for us in one transaction. The
// Password field is stored as given; callers hash it first.
func (r *SQLiteRepo) ReplaceUsers(ctx context.Context, us []models.User) error {
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return err
		}
		for _, u := range us {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO users (emp_id, password, name, department_name, can_login) VALUES (?, ?, ?, ?, ?)`,
				u.EmpID, u.Password, u.Name, u.DepartmentName, u.CanLogin); err != nil {
				return fmt.Errorf("user %s: %w", u.EmpID, err)
			}
		}
		return nil
	})

	return classify(err)
}
