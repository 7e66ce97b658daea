package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/jobcard/pkg/errs"
	"github.com/garnizeh/jobcard/pkg/models"
)

const jobCardColumns = `id, job_number, title, description, status, created_date, started_date, completed_date, entity_type, entity_id, closure_details, department_name`

type scanner interface {
	Scan(dest ...any) error
}

func scanJobCard(s scanner) (*models.JobCard, error) {
	var (
		jc             models.JobCard
		status         string
		created        string
		started        sql.NullString
		completed      sql.NullString
		entityType     sql.NullString
		entityID       sql.NullInt64
		closureDetails sql.NullString
	)
	if err := s.Scan(&jc.ID, &jc.JobNumber, &jc.Title, &jc.Description, &status, &created, &started, &completed, &entityType, &entityID, &closureDetails, &jc.DepartmentName); err != nil {
		return nil, err
	}

	jc.Status = models.Status(status)

	var err error
	if jc.CreatedDate, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("job card %d created_date: %w", jc.ID, err)
	}
	if jc.StartedDate, err = parseNullTime(started); err != nil {
		return nil, fmt.Errorf("job card %d started_date: %w", jc.ID, err)
	}
	if jc.CompletedDate, err = parseNullTime(completed); err != nil {
		return nil, fmt.Errorf("job card %d completed_date: %w", jc.ID, err)
	}
	if entityType.Valid {
		v := entityType.String
		jc.EntityType = &v
	}
	if entityID.Valid {
		v := entityID.Int64
		jc.EntityID = &v
	}
	if closureDetails.Valid {
		v := closureDetails.String
		jc.ClosureDetails = &v
	}

	return &jc, nil
}

func (r *SQLiteRepo) queryJobCards(ctx context.Context, q string, args ...any) ([]models.JobCard, error) {
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []models.JobCard
	for rows.Next() {
		jc, err := scanJobCard(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, *jc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	return out, nil
}

// ListJobCards returns the cards of a department, optionally filtered by
// status, in ascending id order.
func (r *SQLiteRepo) ListJobCards(ctx context.Context, department string, status *models.Status) ([]models.JobCard, error) {
	if status != nil {
		return r.queryJobCards(ctx, `SELECT `+jobCardColumns+` FROM job_cards WHERE department_name = ? AND status = ? ORDER BY id`, department, string(*status))
	}
	return r.queryJobCards(ctx, `SELECT `+jobCardColumns+` FROM job_cards WHERE department_name = ? ORDER BY id`, department)
}

func (r *SQLiteRepo) GetJobCard(ctx context.Context, id int64) (*models.JobCard, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+jobCardColumns+` FROM job_cards WHERE id = ?`, id)
	jc, err := scanJobCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, classify(err)
	}

	return jc, nil
}

func checkJobNumber(jobNumber string) error {
	if len(jobNumber) > errs.MaxJobNumberLen {
		return fmt.Errorf("%w: %q has %d characters", errs.ErrJobNumberTooLong, jobNumber, len(jobNumber))
	}
	return nil
}

func jobCardArgs(jc *models.JobCard) []any {
	return []any{
		jc.ID, jc.JobNumber, jc.Title, jc.Description, string(jc.Status),
		formatTime(jc.CreatedDate), formatTimePtr(jc.StartedDate), formatTimePtr(jc.CompletedDate),
		nullString(jc.EntityType), nullInt(jc.EntityID), nullString(jc.ClosureDetails), jc.DepartmentName,
	}
}

// CreateJobCard inserts a freshly generated card. An existing row with the same
// id or job number fails the call with errs.ErrDuplicateRecord.
func (r *SQLiteRepo) CreateJobCard(ctx context.Context, jc *models.JobCard) error {
	if jc == nil {
		return fmt.Errorf("job card is nil")
	}
	if err := checkJobNumber(jc.JobNumber); err != nil {
		return err
	}

	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		var cnt int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM job_cards WHERE id = ? OR job_number = ?`, jc.ID, jc.JobNumber).Scan(&cnt); err != nil {
			return err
		}
		if cnt > 0 {
			return fmt.Errorf("%w: job card %d / %s already cached", errs.ErrDuplicateRecord, jc.ID, jc.JobNumber)
		}

		_, err := tx.ExecContext(ctx, `INSERT INTO job_cards (`+jobCardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, jobCardArgs(jc)...)
		return err
	})

	return classify(err)
}

// UpsertJobCard inserts the card when its id is unknown, otherwise it
// overwrites every other column.
func (r *SQLiteRepo) UpsertJobCard(ctx context.Context, jc *models.JobCard) error {
	if jc == nil {
		return fmt.Errorf("job card is nil")
	}
	if err := checkJobNumber(jc.JobNumber); err != nil {
		return err
	}

	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO job_cards (`+jobCardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				job_number = excluded.job_number,
				title = excluded.title,
				description = excluded.description,
				status = excluded.status,
				created_date = excluded.created_date,
				started_date = excluded.started_date,
				completed_date = excluded.completed_date,
				entity_type = excluded.entity_type,
				entity_id = excluded.entity_id,
				closure_details = excluded.closure_details,
				department_name = excluded.department_name`, jobCardArgs(jc)...)
		return err
	})

	return classify(err)
}

// MaxSequence returns the highest numeric suffix following prefix among the
// cached job numbers. A device qualifier after the digits is ignored because
// SQLite's integer cast stops at the first non-digit.
func (r *SQLiteRepo) MaxSequence(ctx context.Context, prefix string) (int, bool, error) {
	var maxSeq sql.NullInt64
	row := r.conn.QueryRow(ctx, `SELECT MAX(CAST(substr(job_number, ?) AS INTEGER)) FROM job_cards WHERE job_number LIKE ?`, len(prefix)+1, prefix+"%")
	if err := row.Scan(&maxSeq); err != nil {
		return 0, false, classify(err)
	}
	if !maxSeq.Valid {
		return 0, false, nil
	}

	return int(maxSeq.Int64), true, nil
}

// ListDeviceQualified returns the department's cards whose job number still
// carries the "-D<deviceID>" qualifier.
func (r *SQLiteRepo) ListDeviceQualified(ctx context.Context, department, deviceID string) ([]models.JobCard, error) {
	return r.queryJobCards(ctx, `SELECT `+jobCardColumns+` FROM job_cards WHERE job_number LIKE ? AND department_name = ? ORDER BY id`, "%-D"+deviceID, department)
}

func (r *SQLiteRepo) UpdateJobNumber(ctx context.Context, id int64, jobNumber string) error {
	if err := checkJobNumber(jobNumber); err != nil {
		return err
	}

	res, err := r.conn.Exec(ctx, `UPDATE job_cards SET job_number = ? WHERE id = ?`, jobNumber, id)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return fmt.Errorf("job card %d: %w", id, errs.ErrNotFound)
	}

	return nil
}
