package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/printcost/internal/logger"
	"github.com/Simplici0/printcost/internal/spools"
)

type toolSelectRequest struct {
	SpoolID int64 `json:"spool_id"`
}

func (s *server) handleSpoolsList(w http.ResponseWriter, r *http.Request) {
	list, err := s.spools.List(r.Context())
	if err != nil {
		logger.Error("failed to load spools", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load spools")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) handleSpoolsCreate(w http.ResponseWriter, r *http.Request) {
	var spool spools.Spool
	if err := json.NewDecoder(r.Body).Decode(&spool); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	created, err := s.spools.Create(r.Context(), spool)
	if err != nil {
		s.writeSpoolError(w, "failed to create spool", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleSpoolsUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid spool id")
		return
	}

	var spool spools.Spool
	if err := json.NewDecoder(r.Body).Decode(&spool); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	spool.ID = id

	updated, err := s.spools.Update(r.Context(), spool)
	if err != nil {
		s.writeSpoolError(w, "failed to update spool", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleToolSelect(w http.ResponseWriter, r *http.Request) {
	tool, err := strconv.Atoi(chi.URLParam(r, "tool"))
	if err != nil || tool < 0 {
		writeError(w, http.StatusBadRequest, "invalid tool")
		return
	}

	var req toolSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := s.spools.Select(r.Context(), tool, req.SpoolID); err != nil {
		s.writeSpoolError(w, "failed to select spool", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleToolDeselect(w http.ResponseWriter, r *http.Request) {
	tool, err := strconv.Atoi(chi.URLParam(r, "tool"))
	if err != nil || tool < 0 {
		writeError(w, http.StatusBadRequest, "invalid tool")
		return
	}

	if err := s.spools.Deselect(r.Context(), tool); err != nil {
		s.writeSpoolError(w, "failed to deselect spool", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) writeSpoolError(w http.ResponseWriter, msg string, err error) {
	var verr *spools.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, spools.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, msg)
	}
}
