package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/qninhdt/ai-adventure/internal/game"
	mw "github.com/qninhdt/ai-adventure/internal/middleware"
	"github.com/qninhdt/ai-adventure/internal/validation"
)

const maxBodySize = 1024 * 1024

// Options configures a Server
type Options struct {
	Engine      *game.Engine
	Auth        *mw.Authenticator
	RateLimiter *mw.RateLimiter
	Hub         *Hub
	// Media serves locally stored objects under /media, nil when objects live elsewhere
	Media http.Handler
	// Health reports whether the backing store is reachable
	Health func(ctx context.Context) error
}

// Server handles HTTP requests
type Server struct {
	router      chi.Router
	engine      *game.Engine
	auth        *mw.Authenticator
	rateLimiter *mw.RateLimiter
	hub         *Hub
	media       http.Handler
	health      func(ctx context.Context) error
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		engine:      opts.Engine,
		auth:        opts.Auth,
		rateLimiter: opts.RateLimiter,
		hub:         opts.Hub,
		media:       opts.Media,
		health:      opts.Health,
	}
	if s.rateLimiter == nil {
		s.rateLimiter = mw.NewRateLimiter(0, 0)
	}
	if s.hub == nil {
		s.hub = NewHub()
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.SecurityHeadersMiddleware)

	if s.media != nil {
		s.router.Handle("/media/*", http.StripPrefix("/media", s.media))
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))
		r.Use(s.rateLimiter.Middleware)
		r.Use(mw.MaxBodySizeMiddleware(maxBodySize))

		// Public endpoints (no auth required)
		r.Get("/healthz", s.healthz)
		r.Get("/api/classes", s.listClasses)
		r.Get("/api/classes/{class}/portrait", s.classPortrait)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Post("/api/adventures", s.createAdventure)
			r.Get("/api/adventures", s.listAdventures)
			r.Get("/api/adventures/{id}", s.getAdventure)
			r.Delete("/api/adventures/{id}", s.deleteAdventure)
			r.Get("/api/adventures/{id}/log", s.getLog)
			r.Post("/api/adventures/{id}/turns", s.takeTurn)
			r.Get("/api/adventures/{id}/event", s.getEvent)
			r.Get("/api/adventures/{id}/background", s.getBackground)
			r.Patch("/api/adventures/{id}/status", s.updateStatus)
			r.Get("/api/adventures/{id}/ws", s.watch)
		})
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response wraps API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

// writeError writes an error response (sanitized)
func writeError(w http.ResponseWriter, status int, message string) {
	if status >= 500 {
		message = "Internal server error"
	}
	writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}

// writeEngineError maps engine errors to status codes.
// Validation messages are safe to show and are passed through verbatim.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalidStats), errors.Is(err, validation.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, "Adventure not found")
	case errors.Is(err, game.ErrNotActive):
		writeError(w, http.StatusConflict, "Adventure is completed")
	case errors.Is(err, game.ErrGenerationFailed):
		log.Printf("api: %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusServiceUnavailable, Response{Error: "story generation failed, please try again"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, Response{Error: "request cancelled"})
	default:
		log.Printf("api: %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decode reads a JSON body, rejecting unknown shapes with a 400
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			log.Printf("api: health check failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, Response{Error: "unhealthy"})
			return
		}
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listClasses returns the point-buy rules and playable classes
func (s *Server) listClasses(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.engine.Catalog())
}

// classPortrait returns a random portrait for a class
func (s *Server) classPortrait(w http.ResponseWriter, r *http.Request) {
	url, err := s.engine.ClassPortrait(chi.URLParam(r, "class"))
	if errors.Is(err, game.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Unknown character class")
		return
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"portraitUrl": url})
}

// createAdventure validates a new character and starts an adventure
func (s *Server) createAdventure(w http.ResponseWriter, r *http.Request) {
	var req game.CreateRequest
	if !decode(w, r, &req) {
		return
	}

	adv, err := s.engine.CreateAdventure(r.Context(), mw.UserID(r.Context()), req)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, adv)
}

// listAdventures lists the caller's adventures, optionally filtered by status
func (s *Server) listAdventures(w http.ResponseWriter, r *http.Request) {
	status := game.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	adventures, err := s.engine.ListAdventures(r.Context(), mw.UserID(r.Context()), status)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if adventures == nil {
		adventures = []*game.Adventure{}
	}
	writeData(w, http.StatusOK, adventures)
}

// getAdventure returns the full adventure view
func (s *Server) getAdventure(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.GetAdventure(r.Context(), mw.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

// getLog returns the adventure's turn log in order
func (s *Server) getLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.GetLog(r.Context(), mw.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*game.LogEntry{}
	}
	writeData(w, http.StatusOK, entries)
}

// takeTurn resolves a player action
func (s *Server) takeTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if !decode(w, r, &req) {
		return
	}

	result, err := s.engine.TakeTurn(r.Context(), mw.UserID(r.Context()), chi.URLParam(r, "id"), req.Action)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// getEvent returns the pending event or null
func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.engine.ActiveEvent(r.Context(), mw.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: event})
}

// getBackground returns the current scene background or null
func (s *Server) getBackground(w http.ResponseWriter, r *http.Request) {
	bg, err := s.engine.Background(r.Context(), mw.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: bg})
}

// updateStatus pauses, resumes or completes an adventure
func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}

	adv, err := s.engine.UpdateStatus(r.Context(), mw.UserID(r.Context()), chi.URLParam(r, "id"), game.Status(req.Status))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, adv)
}

// deleteAdventure soft deletes an adventure
func (s *Server) deleteAdventure(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteAdventure(r.Context(), mw.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"deleted": true})
}

// watch streams live updates for an adventure over a websocket
func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.CheckAccess(r.Context(), mw.UserID(r.Context()), id); err != nil {
		writeEngineError(w, r, err)
		return
	}
	s.hub.Serve(w, r, id)
}
