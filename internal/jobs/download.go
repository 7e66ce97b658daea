package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garnizeh/jobcard/internal/syncer"
	"github.com/garnizeh/jobcard/pkg/errs"
	"github.com/garnizeh/jobcard/pkg/models"
)

// Downloader is the part of the sync engine the download job needs.
type Downloader interface {
	Download(ctx context.Context, s models.Session) (*syncer.Report, error)
}

// NewDownloadHandler returns a handler for TypeSyncDownload jobs. The payload
// is the session to download for. A download rejected because another sync
// is running counts as done.
func NewDownloadHandler(d Downloader, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, j *Job) error {
		var s models.Session
		if err := json.Unmarshal(j.Payload, &s); err != nil {
			return fmt.Errorf("decode session payload: %w", err)
		}
		if s.Department == "" {
			return fmt.Errorf("%w: session without department", errs.ErrValidation)
		}

		rep, err := d.Download(ctx, s)
		if errors.Is(err, errs.ErrSyncInProgress) {
			logger.Info("download skipped, sync already running", "job_id", j.ID, "emp_id", s.EmpID)
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("background download finished", "job_id", j.ID, "emp_id", s.EmpID, "synced", rep.Synced, "failed", len(rep.Failures))
		return nil
	}
}
