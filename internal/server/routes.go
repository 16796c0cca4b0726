// Package server wires the HTTP surface into a ServeMux: the chat page,
// static assets, health and metrics endpoints, the rooms API, and the
// websocket entry point.
package server

import (
	"log/slog"
	"net/http"

	"github.com/rs/cors"
)

// SetupRoutes configures and returns the handler for all application routes.
// The rooms API is wrapped with CORS so browser clients served from other
// configured origins can list and create rooms.
func SetupRoutes(log *slog.Logger, hub *Hub, api *RoomsAPI) http.Handler {
	cfg := currentConfig()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", ChatPageHandler(log))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	mux.HandleFunc("GET /healthz", HealthHandler)
	mux.Handle("GET /metrics", MetricsHandler())
	mux.HandleFunc("GET /ws/{room}", hub.ServeWS)

	corsOrigins := cfg.AllowedOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	mux.Handle("/api/rooms", c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			api.List(w, r)
		case http.MethodPost:
			api.Create(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	return mux
}
