package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/synclist/internal/service"
)

// Server provides the REST API and the realtime WebSocket endpoint.
type Server struct {
	svc    *service.Service
	ws     http.Handler
	logger *logrus.Logger
	router chi.Router
}

// NewServer creates a Server, registers all routes, and returns it. ws is
// mounted at /ws.
func NewServer(svc *service.Service, ws http.Handler, logger *logrus.Logger, allowedOrigins []string) *Server {
	s := &Server{svc: svc, ws: ws, logger: logger, router: chi.NewRouter()}
	s.routes(allowedOrigins)
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes(allowedOrigins []string) {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(chimw.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/health", s.handleHealth)

	// API – Lists
	s.router.Post("/lists", s.handleCreateList)
	s.router.Post("/lists/join", s.handleJoinList)
	s.router.Get("/lists/{id}", s.handleGetList)

	// Realtime
	s.router.Handle("/ws", s.ws)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

type createListRequest struct {
	Name     string `json:"name"`
	DeviceID string `json:"deviceId"`
}

type joinListRequest struct {
	JoinCode string `json:"joinCode"`
	DeviceID string `json:"deviceId"`
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	list, err := s.svc.CreateList(r.Context(), req.Name, req.DeviceID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, "name and deviceId are required")
			return
		}
		s.logger.WithError(err).Error("failed to create list")
		s.respondError(w, http.StatusInternalServerError, "failed to create list")
		return
	}

	s.respondJSON(w, http.StatusCreated, list)
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	list, err := s.svc.GetList(r.Context(), id)
	if err != nil {
		s.logger.WithError(err).Error("failed to get list")
		s.respondError(w, http.StatusInternalServerError, "failed to get list")
		return
	}
	if list == nil {
		s.respondError(w, http.StatusNotFound, "List not found")
		return
	}

	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleJoinList(w http.ResponseWriter, r *http.Request) {
	var req joinListRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	list, err := s.svc.JoinList(r.Context(), req.JoinCode, req.DeviceID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			s.respondError(w, http.StatusBadRequest, "joinCode and deviceId are required")
			return
		}
		s.logger.WithError(err).Error("failed to join list")
		s.respondError(w, http.StatusInternalServerError, "failed to join list")
		return
	}
	if list == nil {
		s.respondError(w, http.StatusNotFound, "No list found with that code")
		return
	}

	s.respondJSON(w, http.StatusOK, list)
}
