package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EstimatesTotal counts computed estimates by where the filament values came from.
	EstimatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "printcost",
		Name:      "estimates_total",
		Help:      "Total number of cost estimates computed",
	}, []string{"source"}) // "spools", "defaults"

	// EstimatesSkipped counts requests answered with a placeholder instead of an estimate.
	EstimatesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "printcost",
		Name:      "estimates_skipped_total",
		Help:      "Total number of estimate requests answered with a placeholder",
	}, []string{"reason"}) // "not_logged_in", "no_filename", "no_filament"

	MissingSpoolTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "printcost",
		Name:      "missing_spool_total",
		Help:      "Total number of estimates with at least one tool lacking a selected spool",
	})

	EstimateTotalCost = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "printcost",
		Name:      "estimate_total_cost",
		Help:      "Estimated total cost per print job in configured currency units",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	})
)
