package api

import (
	"context"
	"net/http"

	"github.com/garnizeh/jobcard/internal/syncer"
	"github.com/garnizeh/jobcard/pkg/models"
)

// SyncEngine runs the synchronization operations.
type SyncEngine interface {
	Download(ctx context.Context, s models.Session) (*syncer.Report, error)
	Upload(ctx context.Context, s models.Session) (*syncer.Report, error)
	SyncDirectory(ctx context.Context) (*syncer.Report, error)
	Busy() bool
}

// OnlineChecker reports whether the central store is reachable.
type OnlineChecker interface {
	Online(ctx context.Context) bool
}

type SyncHandler struct {
	engine   SyncEngine
	online   OnlineChecker
	deviceID string
}

func NewSyncHandler(engine SyncEngine, online OnlineChecker, deviceID string) *SyncHandler {
	return &SyncHandler{engine: engine, online: online, deviceID: deviceID}
}

func (h *SyncHandler) Download(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}
	rep, err := h.engine.Download(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, rep, http.StatusOK)
}

func (h *SyncHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}
	rep, err := h.engine.Upload(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, rep, http.StatusOK)
}

// Directory refreshes the cached departments and users. It is reachable
// without a token because login depends on it.
func (h *SyncHandler) Directory(w http.ResponseWriter, r *http.Request) {
	rep, err := h.engine.SyncDirectory(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, rep, http.StatusOK)
}

type syncStatus struct {
	Online   bool   `json:"online"`
	Busy     bool   `json:"busy"`
	DeviceID string `json:"device_id"`
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, syncStatus{
		Online:   h.online.Online(r.Context()),
		Busy:     h.engine.Busy(),
		DeviceID: h.deviceID,
	}, http.StatusOK)
}
