package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all addon routes. Every addon resource is also
// reachable under an encrypted user-data prefix so per-user configuration
// travels inside the URL.
func SetupRoutes(handler *Handler) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", handler.RootHandler).Methods("GET")
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	r.HandleFunc("/manifest.json", handler.GetManifest).Methods("GET")
	r.HandleFunc("/catalog/{type}/{catalogID}.json", handler.GetCatalog).Methods("GET")
	r.HandleFunc("/catalog/{type}/{catalogID}/{extra}.json", handler.GetCatalog).Methods("GET")
	r.HandleFunc("/meta/{type}/{id}.json", handler.GetMeta).Methods("GET")
	r.HandleFunc("/stream/{type}/{id}.json", handler.GetStreams).Methods("GET")

	user := r.PathPrefix("/{userData}").Subrouter()
	user.HandleFunc("/manifest.json", handler.GetManifest).Methods("GET")
	user.HandleFunc("/catalog/{type}/{catalogID}.json", handler.GetCatalog).Methods("GET")
	user.HandleFunc("/catalog/{type}/{catalogID}/{extra}.json", handler.GetCatalog).Methods("GET")
	user.HandleFunc("/meta/{type}/{id}.json", handler.GetMeta).Methods("GET")
	user.HandleFunc("/stream/{type}/{id}.json", handler.GetStreams).Methods("GET")

	r.HandleFunc("/poster/{type}/{id}.jpg", handler.GetPoster).Methods("GET")
	r.HandleFunc("/playback/{userData}/{infoHash}", handler.Playback).Methods("GET")

	r.HandleFunc("/encrypt-user-data", handler.EncryptUserData).Methods("POST")
	r.HandleFunc("/start-scheduler", handler.StartScheduler).Methods("POST")
	r.HandleFunc("/scheduler/status", handler.SchedulerStatus).Methods("GET")

	r.Use(corsMiddleware)
	r.Use(loggingMiddleware)

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
	})
}
