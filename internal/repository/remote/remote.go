package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/garnizeh/jobcard/internal/config"
	"github.com/garnizeh/jobcard/pkg/errs"
	"github.com/garnizeh/jobcard/pkg/models"
	"github.com/garnizeh/jobcard/pkg/repository"
)

// Repo issues the central-database queries through gorm.
type Repo struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ repository.RemoteRepo = (*Repo)(nil)

// slogWriter lets gorm's logger write through slog.
type slogWriter struct{ l *slog.Logger }

func (w slogWriter) Printf(format string, args ...any) {
	w.l.Warn(fmt.Sprintf(format, args...), slog.String("component", "gorm"))
}

// Open prepares the remote connection pool. No connection is made here: the
// application must start while the server is unreachable, so the automatic
// ping is disabled and connections are dialled on first use.
func Open(cfg config.RemoteConfig, logger *slog.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	gormCfg := &gorm.Config{
		Logger: gormlogger.New(slogWriter{l: logger}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		DisableAutomaticPing: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open remote db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("remote sql.DB: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 4
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 2
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	logger.Info("remote store configured",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("dbname", cfg.Name),
	)

	return db, nil
}

func New(db *gorm.DB, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{db: db, logger: logger}
}

// Close releases the pooled connections.
func (r *Repo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repo) GetDepartment(ctx context.Context, id int64) (*models.Department, error) {
	var row departmentRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classify(err)
	}

	d := departmentFromRow(row)
	return &d, nil
}

func (r *Repo) ListDepartments(ctx context.Context) ([]models.Department, error) {
	var rows []departmentRow
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}

	out := make([]models.Department, 0, len(rows))
	for _, row := range rows {
		out = append(out, departmentFromRow(row))
	}
	return out, nil
}

// ListLoginUsers returns only the users allowed to log in.
func (r *Repo) ListLoginUsers(ctx context.Context) ([]models.User, error) {
	var rows []userRow
	if err := r.db.WithContext(ctx).Where("can_login = ?", true).Order("emp_id").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}

	out := make([]models.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, userFromRow(row))
	}
	return out, nil
}

func (r *Repo) ListJobCards(ctx context.Context, department string) ([]models.JobCard, error) {
	var rows []jobCardRow
	if err := r.db.WithContext(ctx).Where("department_name = ?", department).Order("id").Find(&rows).Error; err != nil {
		return nil, classify(err)
	}

	out := make([]models.JobCard, 0, len(rows))
	for _, row := range rows {
		out = append(out, jobCardFromRow(row))
	}
	return out, nil
}

// MaxSequence returns the highest numeric suffix after prefix. Rows whose
// suffix is not purely numeric are filtered out before the cast.
func (r *Repo) MaxSequence(ctx context.Context, prefix string) (int, bool, error) {
	start := len(prefix) + 1
	row := r.db.WithContext(ctx).Raw(
		`SELECT MAX(CAST(SUBSTRING(job_number FROM ?) AS INTEGER)) FROM job_cards WHERE job_number LIKE ? AND SUBSTRING(job_number FROM ?) ~ '^[0-9]+$'`,
		start, prefix+"%", start,
	).Row()

	var maxSeq sql.NullInt64
	if err := row.Scan(&maxSeq); err != nil {
		return 0, false, classify(err)
	}
	if !maxSeq.Valid {
		return 0, false, nil
	}

	return int(maxSeq.Int64), true, nil
}

// JobCardExists reports whether a row holds either the id or the job number.
func (r *Repo) JobCardExists(ctx context.Context, id int64, jobNumber string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&jobCardRow{}).Where("id = ? OR job_number = ?", id, jobNumber).Count(&n).Error; err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// CountOpen counts the department's central job cards still in the Open state.
func (r *Repo) CountOpen(ctx context.Context, department string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&jobCardRow{}).
		Where("status = ? AND department_name = ?", string(models.StatusOpen), department).
		Count(&n).Error
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (r *Repo) InsertJobCard(ctx context.Context, jc *models.JobCard) error {
	if jc == nil {
		return fmt.Errorf("job card is nil")
	}
	if len(jc.JobNumber) > errs.MaxJobNumberLen {
		return fmt.Errorf("%w: %q", errs.ErrJobNumberTooLong, jc.JobNumber)
	}

	row := jobCardToRow(jc)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return classify(err)
	}
	return nil
}

// EntityInfo describes the asset, consumable, component or device a job card
// refers to. A missing row yields errs.ErrNotFound.
func (r *Repo) EntityInfo(ctx context.Context, entityType string, entityID int64) (string, error) {
	var (
		q      string
		format string
	)
	switch entityType {
	case "Asset":
		q, format = `SELECT serial_number, model FROM assets WHERE id = ?`, "Asset: %s (%s)"
	case "Consumable":
		q = `SELECT c.cartridge_no, p.model FROM deployed_consumables dc
			JOIN consumables c ON dc.consumable_id = c.id
			JOIN printers p ON dc.printer_id = p.id
			WHERE dc.id = ?`
		format = "Consumable: %s (Printer: %s)"
	case "Component":
		q, format = `SELECT serial_number, model FROM components WHERE id = ?`, "Component: %s (%s)"
	case "Device":
		q, format = `SELECT serial_number, model FROM devices WHERE id = ?`, "Device: %s (%s)"
	default:
		return "", fmt.Errorf("%w: entity type %q", errs.ErrValidation, entityType)
	}

	var a, b sql.NullString
	if err := r.db.WithContext(ctx).Raw(q, entityID).Row().Scan(&a, &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s %d: %w", entityType, entityID, errs.ErrNotFound)
		}
		return "", classify(err)
	}

	return fmt.Sprintf(format, a.String, b.String), nil
}
