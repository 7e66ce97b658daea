package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/jobcard/internal/service"
	"github.com/garnizeh/jobcard/pkg/errs"
	"github.com/garnizeh/jobcard/pkg/models"
)

const maxBodyBytes = 64 << 10

// createJobCardSchema describes the body of POST /v1/jobcards.
const createJobCardSchema = `{
	"type": "object",
	"required": ["title", "description", "department_id"],
	"properties": {
		"title": {"type": "string", "minLength": 1, "maxLength": 255},
		"description": {"type": "string", "minLength": 1},
		"department_id": {"type": "integer", "minimum": 1},
		"entity_type": {"type": "string", "enum": ["Asset", "Consumable", "Component", "Device"]},
		"entity_id": {"type": "integer", "minimum": 1}
	},
	"additionalProperties": false
}`

// JobCardService is the set of use cases the job card endpoints call.
type JobCardService interface {
	CreateJobCard(ctx context.Context, s models.Session, in service.CreateInput) (*models.JobCard, error)
	ListJobCards(ctx context.Context, s models.Session, status *models.Status) ([]models.JobCard, error)
	GetJobCard(ctx context.Context, s models.Session, id int64) (*models.JobCard, error)
	Departments(ctx context.Context, s models.Session) ([]models.Department, error)
	OpenCount(ctx context.Context, s models.Session) int64
	EntityInfo(ctx context.Context, entityType string, entityID int64) string
}

type JobCardsHandler struct {
	svc    JobCardService
	schema *jsonschema.Schema
}

func NewJobCardsHandler(svc JobCardService) (*JobCardsHandler, error) {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(createJobCardSchema), rs); err != nil {
		return nil, fmt.Errorf("compile job card schema: %w", err)
	}
	return &JobCardsHandler{svc: svc, schema: rs}, nil
}

func sessionOrReject(w http.ResponseWriter, r *http.Request) (models.Session, bool) {
	s, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "missing session", http.StatusUnauthorized)
	}
	return s, ok
}

func (h *JobCardsHandler) CreateJobCard(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if !json.Valid(body) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	verrs, err := h.schema.ValidateBytes(r.Context(), body)
	if err != nil {
		http.Error(w, fmt.Sprintf("validate request: %v", err), http.StatusBadRequest)
		return
	}
	if len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, ve := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: %s", ve.PropertyPath, ve.Message))
		}
		writeJSON(w, errorResponse{Error: strings.Join(msgs, "; ")}, http.StatusBadRequest)
		return
	}

	var in service.CreateInput
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&in); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	jc, err := h.svc.CreateJobCard(r.Context(), sess, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, jc, http.StatusCreated)
}

func (h *JobCardsHandler) ListJobCards(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}

	var status *models.Status
	if v := r.URL.Query().Get("status"); v != "" {
		st := models.Status(v)
		status = &st
	}

	cards, err := h.svc.ListJobCards(r.Context(), sess, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cards == nil {
		cards = []models.JobCard{}
	}

	writeJSON(w, map[string]any{"total": len(cards), "items": cards}, http.StatusOK)
}

func (h *JobCardsHandler) GetJobCard(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	jc, err := h.svc.GetJobCard(r.Context(), sess, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := map[string]any{"job_card": jc}
	if jc.EntityType != nil && jc.EntityID != nil {
		resp["entity_info"] = h.svc.EntityInfo(r.Context(), *jc.EntityType, *jc.EntityID)
	}
	writeJSON(w, resp, http.StatusOK)
}

// OpenCount reports how many Open cards the department has centrally.
func (h *JobCardsHandler) OpenCount(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]int64{"open": h.svc.OpenCount(r.Context(), sess)}, http.StatusOK)
}

func (h *JobCardsHandler) Departments(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOrReject(w, r)
	if !ok {
		return
	}
	ds, err := h.svc.Departments(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ds == nil {
		ds = []models.Department{}
	}
	writeJSON(w, ds, http.StatusOK)
}

func (h *JobCardsHandler) EntityInfo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid entity id", errs.ErrValidation))
		return
	}
	writeJSON(w, map[string]string{"info": h.svc.EntityInfo(r.Context(), vars["type"], id)}, http.StatusOK)
}
