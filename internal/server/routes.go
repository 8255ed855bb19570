package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Tiliavir/timereg/internal/collection"
	"github.com/Tiliavir/timereg/internal/logger"
	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/storage"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/healthz", s.health)

	r.Route("/time-entries", func(r chi.Router) {
		r.Get("/", s.listEntries)
		r.Post("/", s.createEntry)
		r.Get("/{id}", s.getEntry)
		r.Put("/{id}", s.updateEntry)
		r.Delete("/{id}", s.deleteEntry)
	})
}

// entryRequest is the body of POST and PUT. Hours is a pointer so a missing
// value can be told apart from zero.
type entryRequest struct {
	ID          int64    `json:"id"`
	Date        string   `json:"date"`
	Project     string   `json:"project"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Hours       *float64 `json:"hours"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if _, err := s.repo.List(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.repo.List(r.Context())
	if err != nil {
		s.internalError(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	e, err := s.repo.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Time entry not found.")
		return
	}
	if err != nil {
		s.internalError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	e, ok := s.decodeEntry(w, r)
	if !ok {
		return
	}
	created, err := s.repo.Create(r.Context(), e)
	if errors.Is(err, storage.ErrConflict) {
		writeError(w, http.StatusConflict, ErrCodeConflict, "A time entry with this id already exists.")
		return
	}
	if err != nil {
		s.internalError(w, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	e, ok := s.decodeEntry(w, r)
	if !ok {
		return
	}
	e.ID = id
	updated, err := s.repo.Update(r.Context(), e)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Time entry not found.")
		return
	}
	if err != nil {
		s.internalError(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// deleteEntry answers 204 for unknown ids as well; the entry is gone either way.
func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	err := s.repo.Delete(r.Context(), id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.internalError(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func entryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid time entry id.")
		return 0, false
	}
	return id, true
}

// decodeEntry parses and validates a request body. An empty date becomes today.
func (s *Server) decodeEntry(w http.ResponseWriter, r *http.Request) (model.TimeEntry, bool) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Request body must be a JSON time entry.")
		return model.TimeEntry{}, false
	}
	if req.Date == "" {
		req.Date = timecalc.DateKey(s.now())
	}
	draft := model.Draft{
		Date:        req.Date,
		Project:     req.Project,
		Category:    req.Category,
		Description: req.Description,
		Hours:       req.Hours,
	}
	if fields := collection.Validate(draft, model.VariantDescription); len(fields) > 0 {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			msgs = append(msgs, f.Message)
		}
		writeValidationError(w, strings.Join(msgs, " "), fields)
		return model.TimeEntry{}, false
	}
	return model.TimeEntry{
		ID:          req.ID,
		Date:        req.Date,
		Project:     strings.TrimSpace(req.Project),
		Category:    strings.TrimSpace(req.Category),
		Description: strings.TrimSpace(req.Description),
		Hours:       *req.Hours,
	}, true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	logger.Error("repository failure", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "The time entry store failed.")
}
