package api

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"taskboard/pkg/realtime"
)

// Version is reported by the info endpoint.
const Version = "1.0.0"

//go:embed openapi.json
var openAPIDocument []byte

// Options configures the HTTP surface.
type Options struct {
	// AllowedOrigins lists browser origins allowed for CORS and websocket
	// upgrades. "*" allows any origin.
	AllowedOrigins []string
	Client         realtime.Config
}

// Server is the HTTP API server.
type Server struct {
	sync      *realtime.Coordinator
	clientCfg realtime.Config
	origins   []string
	upgrader  websocket.Upgrader
	mux       *http.ServeMux
	handler   http.Handler
}

// New creates a new Server.
func New(sync *realtime.Coordinator, opts Options) *Server {
	s := &Server{
		sync:      sync,
		clientCfg: opts.Client,
		origins:   opts.AllowedOrigins,
		mux:       http.NewServeMux(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.routes()

	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: !slices.Contains(opts.AllowedOrigins, "*"),
	})
	s.handler = accessLog(c.Handler(s.mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks
	s.mux.HandleFunc("GET /tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("PUT /tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("PATCH /tasks/{id}", s.handleTaskUpdate)
	s.mux.HandleFunc("DELETE /tasks/{id}", s.handleTaskDelete)

	// Real-time
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("POST /sync", s.handleResync)

	// System
	s.mux.HandleFunc("GET /{$}", s.handleInfo)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /openapi.json", s.handleOpenAPI)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{
		"message":   "Kanban Board API",
		"version":   Version,
		"websocket": "/ws",
		"docs":      "/openapi.json",
	})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(openAPIDocument)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{
		"status":  "ok",
		"clients": s.sync.Registry().Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("write json")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
