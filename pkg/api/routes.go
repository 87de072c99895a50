package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

func SetupRoutes(router *mux.Router, handlers *Handlers) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Graph management endpoints
	graphs := api.PathPrefix("/graphs").Subrouter()
	graphs.HandleFunc("", handlers.ListGraphs).Methods("GET")
	graphs.HandleFunc("", handlers.RegisterGraph).Methods("POST")
	graphs.HandleFunc("/{graphId}", handlers.GetGraph).Methods("GET")
	graphs.HandleFunc("/{graphId}", handlers.DeleteGraph).Methods("DELETE")

	// Experiments run as jobs against a graph
	graphs.HandleFunc("/{graphId}/experiments", handlers.StartExperiment).Methods("POST")
	graphs.HandleFunc("/{graphId}/experiments", handlers.ListExperiments).Methods("GET")

	// Job management endpoints
	jobs := api.PathPrefix("/jobs").Subrouter()
	jobs.HandleFunc("/{jobId}", handlers.GetJob).Methods("GET")
	jobs.HandleFunc("/{jobId}/result", handlers.GetJobResult).Methods("GET")
	jobs.HandleFunc("/{jobId}/cancel", handlers.CancelJob).Methods("POST")

	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	api.HandleFunc("/strategies", handlers.ListStrategies).Methods("GET")
}

// NewRouter builds the full handler stack of the service
func NewRouter(handlers *Handlers, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	SetupRoutes(router, handlers)

	router.Use(LoggingMiddleware)
	router.Use(RecoveryMiddleware)

	return CORS(allowedOrigins, router)
}
