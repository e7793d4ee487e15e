// Package estimator turns the state of the current print job into the cost strings shown to users.
//
// It applies the display gates (login requirement, missing job, missing filament data), decides
// whether spool records or default filament values are used, and runs the cost engine once per
// request so the summary and the breakdown always come from the same sums.
package estimator

import (
	"context"
	"fmt"

	"github.com/Simplici0/printcost/internal/logger"
	"github.com/Simplici0/printcost/internal/metrics"
	"github.com/Simplici0/printcost/internal/pricing"
)

// Placeholders shown instead of an estimate.
const (
	NotLoggedIn        = "user not logged in"
	NoFilename         = "no filename"
	NoFilamentFromMeta = "no filament from meta"
	NoBreakdown        = "-"
)

// Job is the state of the selected print job as reported by the printer host.
type Job struct {
	Filename                  string
	Filament                  []pricing.FilamentUsage
	EstimatedPrintTimeSeconds float64
}

// SpoolSource supplies the spools currently loaded on each tool.
type SpoolSource interface {
	Selected(ctx context.Context) (pricing.Spools, error)
}

// View is what the presentation layer renders.
type View struct {
	Show              bool
	ShowFilamentGroup bool
	CostString        string
	Breakdown         string
	Result            *pricing.Result
}

// Service computes views for jobs. It holds no per-request state and is safe for concurrent use.
type Service struct {
	pricing pricing.PricingConfig
	spools  SpoolSource
}

// NewService returns a Service. spools may be nil when no spool registry is available.
func NewService(cfg pricing.PricingConfig, spools SpoolSource) *Service {
	return &Service{pricing: cfg, spools: spools}
}

// Pricing returns the pricing configuration in use.
func (s *Service) Pricing() pricing.PricingConfig {
	return s.pricing
}

// ShowEstimate reports whether an estimate may be shown to a user with the given login state.
func (s *Service) ShowEstimate(loggedIn bool) bool {
	if s.pricing.RequiresAuthenticatedUser {
		return loggedIn
	}
	return true
}

// ShowFilamentGroup reports whether default filament settings are in effect.
func (s *Service) ShowFilamentGroup() bool {
	return s.spools == nil || !s.pricing.UseSpoolRecords
}

// View estimates the cost of job, or returns a placeholder view when no estimate can be made.
func (s *Service) View(ctx context.Context, job Job, loggedIn bool) (View, error) {
	view := View{
		Show:              s.ShowEstimate(loggedIn),
		ShowFilamentGroup: s.ShowFilamentGroup(),
		Breakdown:         NoBreakdown,
	}

	switch {
	case !view.Show:
		view.CostString = NotLoggedIn
		metrics.EstimatesSkipped.WithLabelValues("not_logged_in").Inc()
		return view, nil
	case job.Filename == "":
		view.CostString = NoFilename
		metrics.EstimatesSkipped.WithLabelValues("no_filename").Inc()
		return view, nil
	case len(job.Filament) == 0:
		view.CostString = NoFilamentFromMeta
		metrics.EstimatesSkipped.WithLabelValues("no_filament").Inc()
		return view, nil
	}

	var spools pricing.Spools
	source := "defaults"
	if !view.ShowFilamentGroup {
		selected, err := s.spools.Selected(ctx)
		if err != nil {
			return View{}, fmt.Errorf("load selected spools: %w", err)
		}
		spools = selected
		if spools == nil {
			spools = pricing.Spools{}
		}
		source = "spools"
	}

	result := pricing.Estimate(job.Filament, spools, s.pricing, job.EstimatedPrintTimeSeconds)

	metrics.EstimatesTotal.WithLabelValues(source).Inc()
	metrics.EstimateTotalCost.Observe(result.TotalCost)
	if result.MissingSpoolData {
		metrics.MissingSpoolTotal.Inc()
		logger.Debug("estimate skipped tools without spool", "filename", job.Filename)
	}

	view.CostString = result.FormattedTotal
	view.Breakdown = result.Breakdown
	view.Result = &result
	return view, nil
}
