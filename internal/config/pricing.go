package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Simplici0/printcost/internal/pricing"
)

// ErrInvalidPricing is returned when a pricing file holds values the cost engine cannot work with.
var ErrInvalidPricing = errors.New("invalid pricing configuration")

// FieldError describes one rejected pricing field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Reason
}

// DefaultPricing returns the values used when no pricing file overrides them.
func DefaultPricing() pricing.PricingConfig {
	return pricing.PricingConfig{
		CostOfFilamentPerSpool:  20,
		FilamentWeightPerSpoolG: 1000,
		MaterialDensity:         1.32,
		FilamentDiameterMm:      1.75,
		PowerConsumptionKW:      0.2,
		CostOfElectricityPerKWh: 0.25,
		CurrencySymbol:          "€",
		CurrencyFormatTemplate:  "%v %s",
		UseSpoolRecords:         true,
	}
}

// LoadPricing reads a YAML pricing file on top of DefaultPricing. A missing file yields the defaults.
func LoadPricing(path string) (pricing.PricingConfig, error) {
	cfg := DefaultPricing()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read pricing file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse pricing file %s: %w", path, err)
	}
	if err := ValidatePricing(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ValidatePricing rejects negative amounts and the divisors the engine does not guard.
func ValidatePricing(cfg pricing.PricingConfig) error {
	var errs []error

	nonNegative := []struct {
		field string
		value float64
	}{
		{"costOfFilament", cfg.CostOfFilamentPerSpool},
		{"weightOfFilament", cfg.FilamentWeightPerSpoolG},
		{"powerConsumption", cfg.PowerConsumptionKW},
		{"costOfElectricity", cfg.CostOfElectricityPerKWh},
		{"priceOfPrinter", cfg.PrinterPurchasePrice},
		{"lifespanOfPrinter", cfg.PrinterLifespanHours},
		{"maintenanceCosts", cfg.MaintenanceCostPerHour},
	}
	for _, f := range nonNegative {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			errs = append(errs, &FieldError{Field: f.field, Reason: "must be a number greater than or equal to 0"})
		}
	}

	if !(cfg.MaterialDensity > 0) || math.IsInf(cfg.MaterialDensity, 0) {
		errs = append(errs, &FieldError{Field: "densityOfFilament", Reason: "must be greater than 0"})
	}
	if !(cfg.FilamentDiameterMm > 0) || math.IsInf(cfg.FilamentDiameterMm, 0) {
		errs = append(errs, &FieldError{Field: "diameterOfFilament", Reason: "must be greater than 0"})
	}
	if !strings.Contains(cfg.CurrencyFormatTemplate, "%v") {
		errs = append(errs, &FieldError{Field: "currencyFormat", Reason: "must contain %v"})
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidPricing, errors.Join(errs...))
}
