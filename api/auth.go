package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garnizeh/jobcard/internal/jobs"
	"github.com/garnizeh/jobcard/pkg/models"
)

// Authenticator checks employee credentials against the cached directory.
type Authenticator interface {
	Login(ctx context.Context, empID, password string) (models.Session, error)
}

// Enqueuer schedules background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error)
}

type AuthHandler struct {
	auth          Authenticator
	jwtSecret     string
	tokenDuration time.Duration
	queue         Enqueuer
	maxAttempts   int
}

// NewAuthHandler creates a new AuthHandler. When queue is non-nil a
// background download is scheduled after every successful login.
func NewAuthHandler(auth Authenticator, jwtSecret string, tokenDuration time.Duration, queue Enqueuer, maxAttempts int) *AuthHandler {
	return &AuthHandler{auth: auth, jwtSecret: jwtSecret, tokenDuration: tokenDuration, queue: queue, maxAttempts: maxAttempts}
}

type loginRequest struct {
	EmpID    string `json:"emp_id"`
	Password string `json:"password"`
}

type authResponse struct {
	Token   string         `json:"token"`
	Session models.Session `json:"session"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.EmpID == "" || req.Password == "" {
		http.Error(w, "Missing fields", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	sess, err := h.auth.Login(ctx, req.EmpID, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tokenStr, err := h.issueToken(sess)
	if err != nil {
		http.Error(w, "Error signing token", http.StatusInternalServerError)
		return
	}

	if h.queue != nil {
		if _, err := h.queue.Enqueue(ctx, jobs.TypeSyncDownload, sess, 100, h.maxAttempts); err != nil {
			// the login itself succeeded; the user can still sync by hand
			logger.Warn("failed to enqueue post-login download", slog.String("emp_id", sess.EmpID), slog.Any("err", err))
		}
	}

	writeJSON(w, authResponse{Token: tokenStr, Session: sess}, http.StatusOK)
}

func (h *AuthHandler) issueToken(s models.Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"emp_id":     s.EmpID,
		"name":       s.Name,
		"department": s.Department,
		"exp":        time.Now().Add(h.tokenDuration).Unix(),
	})
	return token.SignedString([]byte(h.jwtSecret))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// For stateless JWT, logout is client-side (just delete token)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"message":"logged out"}`)
}
