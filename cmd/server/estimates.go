package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/printcost/internal/estimator"
	"github.com/Simplici0/printcost/internal/history"
	"github.com/Simplici0/printcost/internal/logger"
	"github.com/Simplici0/printcost/internal/pricing"
)

type filamentJSON struct {
	Name   string  `json:"name"`
	Length float64 `json:"length"`
}

type estimateRequest struct {
	Filename           string         `json:"filename"`
	Filament           []filamentJSON `json:"filament"`
	EstimatedPrintTime float64        `json:"estimatedPrintTime"`
}

type toolCostJSON struct {
	Tool      int     `json:"tool"`
	Label     string  `json:"label"`
	LengthMm  float64 `json:"length_mm"`
	VolumeCm3 float64 `json:"volume_cm3"`
	WeightG   float64 `json:"weight_g"`
	Cost      float64 `json:"cost"`
	Source    string  `json:"source"`
}

type estimateDetails struct {
	Filament      float64        `json:"filament"`
	Electricity   float64        `json:"electricity"`
	Printer       float64        `json:"printer"`
	Total         float64        `json:"total"`
	Hours         float64        `json:"hours"`
	UsedDefaults  bool           `json:"used_defaults"`
	MissingSpools bool           `json:"missing_spools"`
	Tools         []toolCostJSON `json:"tools"`
}

type estimateResponse struct {
	ID                int64            `json:"id,omitempty"`
	Show              bool             `json:"show"`
	ShowFilamentGroup bool             `json:"show_filament_group"`
	Cost              string           `json:"cost"`
	Breakdown         string           `json:"breakdown"`
	Details           *estimateDetails `json:"details,omitempty"`
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	job, err := parseEstimateRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, loggedIn := s.auth.SessionFrom(r)
	view, err := s.estimator.View(r.Context(), job, loggedIn)
	if err != nil {
		logger.Error("failed to compute estimate", "filename", job.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute estimate")
		return
	}

	resp := estimateResponse{
		Show:              view.Show,
		ShowFilamentGroup: view.ShowFilamentGroup,
		Cost:              view.CostString,
		Breakdown:         view.Breakdown,
	}
	if view.Result != nil {
		resp.Details = detailsFromResult(*view.Result)

		if r.URL.Query().Get("save") == "1" {
			id, err := s.history.Save(r.Context(), job.Filename, job.EstimatedPrintTimeSeconds, session.Email, *view.Result)
			if err != nil {
				logger.Error("failed to save estimate", "filename", job.Filename, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to save estimate")
				return
			}
			resp.ID = id
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func parseEstimateRequest(req estimateRequest) (estimator.Job, error) {
	job := estimator.Job{
		Filename:                  strings.TrimSpace(req.Filename),
		Filament:                  make([]pricing.FilamentUsage, 0, len(req.Filament)),
		EstimatedPrintTimeSeconds: req.EstimatedPrintTime,
	}

	if !validAmount(req.EstimatedPrintTime) {
		return job, fmt.Errorf("estimatedPrintTime must be greater than or equal to 0")
	}
	for i, f := range req.Filament {
		if !validAmount(f.Length) {
			return job, fmt.Errorf("filament[%d].length must be greater than or equal to 0", i)
		}
		job.Filament = append(job.Filament, pricing.FilamentUsage{ToolLabel: f.Name, LengthMm: f.Length})
	}

	return job, nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

func detailsFromResult(res pricing.Result) *estimateDetails {
	details := &estimateDetails{
		Filament:      res.FilamentCost,
		Electricity:   res.ElectricityCost,
		Printer:       res.PrinterCost,
		Total:         res.TotalCost,
		Hours:         res.Hours,
		UsedDefaults:  res.UsedDefaultFilamentValues,
		MissingSpools: res.MissingSpoolData,
		Tools:         make([]toolCostJSON, 0, len(res.Tools)),
	}
	for _, t := range res.Tools {
		details.Tools = append(details.Tools, toolCostJSON{
			Tool:      t.ToolIndex,
			Label:     t.ToolLabel,
			LengthMm:  t.LengthMm,
			VolumeCm3: t.VolumeCm3,
			WeightG:   t.WeightG,
			Cost:      t.Cost,
			Source:    string(t.Source),
		})
	}
	return details
}

func (s *server) handleEstimatesList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	entries, err := s.history.List(r.Context(), query)
	if err != nil {
		logger.Error("failed to load estimates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load estimates")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *server) handleEstimateDetail(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.loadEstimate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *server) handleEstimateText(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.loadEstimate(w, r)
	if !ok {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Estimate #%d\n", entry.ID)
	fmt.Fprintf(&b, "File: %s\n", entry.Filename)
	fmt.Fprintf(&b, "Created: %s\n", entry.CreatedAt)
	if entry.SavedBy != "" {
		fmt.Fprintf(&b, "Saved by: %s\n", entry.SavedBy)
	}
	fmt.Fprintf(&b, "Print time: %.2f h\n\n", entry.Totals.Hours)
	fmt.Fprintf(&b, "Cost: %s\n", entry.FormattedTotal)
	fmt.Fprintf(&b, "%s\n", entry.Breakdown)
	if len(entry.Tools) > 0 {
		b.WriteString("\nTools:\n")
		for _, t := range entry.Tools {
			fmt.Fprintf(&b, "- tool %d (%s): %.0f mm, %.2f g, %.2f [%s]\n", t.Tool, t.Label, t.LengthMm, t.WeightG, t.Cost, t.Source)
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}

func (s *server) loadEstimate(w http.ResponseWriter, r *http.Request) (history.Entry, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid estimate id")
		return history.Entry{}, false
	}

	entry, err := s.history.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "estimate not found")
		return history.Entry{}, false
	}
	if err != nil {
		logger.Error("failed to load estimate", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load estimate")
		return history.Entry{}, false
	}
	return entry, true
}
