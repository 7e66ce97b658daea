package api

import (
	"github.com/gorilla/mux"

	"github.com/garnizeh/jobcard/internal/config"
)

// Service is everything the shell needs from the job card service.
type Service interface {
	Authenticator
	JobCardService
	OnlineChecker
}

// Deps bundles the collaborators the routes are wired to. Queue may be nil.
type Deps struct {
	Service  Service
	Engine   SyncEngine
	Events   EventSource
	Queue    Enqueuer
	DeviceID string
}

func SetupRoutes(cfg *config.Config, version, buildTime string, deps Deps) (*mux.Router, error) {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	var queue Enqueuer
	if cfg.Sync.DownloadOnLogin {
		queue = deps.Queue
	}

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(deps.Service, cfg.JWTSecret, cfg.TokenDuration, queue, cfg.Sync.MaxAttempts)
	jobCardsHandler, err := NewJobCardsHandler(deps.Service)
	if err != nil {
		return nil, err
	}
	syncHandler := NewSyncHandler(deps.Engine, deps.Service, deps.DeviceID)
	eventsHandler := NewEventsHandler(deps.Events)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/v1/directory/sync", syncHandler.Directory).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Auth endpoints
	apiV1.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")

	// Job card endpoints
	apiV1.HandleFunc("/jobcards", jobCardsHandler.ListJobCards).Methods("GET")
	apiV1.HandleFunc("/jobcards", jobCardsHandler.CreateJobCard).Methods("POST")
	apiV1.HandleFunc("/jobcards/open-count", jobCardsHandler.OpenCount).Methods("GET")
	apiV1.HandleFunc("/jobcards/{id:[0-9]+}", jobCardsHandler.GetJobCard).Methods("GET")
	apiV1.HandleFunc("/departments", jobCardsHandler.Departments).Methods("GET")
	apiV1.HandleFunc("/entities/{type}/{id}", jobCardsHandler.EntityInfo).Methods("GET")

	// Sync endpoints
	apiV1.HandleFunc("/sync/download", syncHandler.Download).Methods("POST")
	apiV1.HandleFunc("/sync/upload", syncHandler.Upload).Methods("POST")
	apiV1.HandleFunc("/sync/status", syncHandler.Status).Methods("GET")

	apiV1.HandleFunc("/events", eventsHandler.List).Methods("GET")

	return r, nil
}
