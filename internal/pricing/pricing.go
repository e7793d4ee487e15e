package pricing

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultSpoolSuffix = " (with default Spool-Values)"
	noSpoolSuffix      = " (no Spool-Values)"

	valuePlaceholder  = "%v"
	symbolPlaceholder = "%s"
)

var toolDigits = regexp.MustCompile(`[0-9]+`)

// FilamentUsage is the filament consumed by one tool of a print job.
type FilamentUsage struct {
	ToolLabel string
	LengthMm  float64
}

// SpoolRecord holds the pricing and material attributes of the spool assigned to a tool.
type SpoolRecord struct {
	CostPerSpool       float64
	SpoolWeightG       float64
	MaterialDensity    float64
	FilamentDiameterMm float64
}

// Spools maps a tool index to its spool. A nil map means no spool registry was consulted.
type Spools map[int]SpoolRecord

// PricingConfig represents the user supplied pricing parameters shared across calculations.
type PricingConfig struct {
	CostOfFilamentPerSpool  float64 `yaml:"costOfFilament" json:"costOfFilament"`
	FilamentWeightPerSpoolG float64 `yaml:"weightOfFilament" json:"weightOfFilament"`
	MaterialDensity         float64 `yaml:"densityOfFilament" json:"densityOfFilament"`
	FilamentDiameterMm      float64 `yaml:"diameterOfFilament" json:"diameterOfFilament"`

	PowerConsumptionKW      float64 `yaml:"powerConsumption" json:"powerConsumption"`
	CostOfElectricityPerKWh float64 `yaml:"costOfElectricity" json:"costOfElectricity"`

	PrinterPurchasePrice   float64 `yaml:"priceOfPrinter" json:"priceOfPrinter"`
	PrinterLifespanHours   float64 `yaml:"lifespanOfPrinter" json:"lifespanOfPrinter"`
	MaintenanceCostPerHour float64 `yaml:"maintenanceCosts" json:"maintenanceCosts"`

	CurrencySymbol         string `yaml:"currency" json:"currency"`
	CurrencyFormatTemplate string `yaml:"currencyFormat" json:"currencyFormat"`

	UseSpoolRecords           bool `yaml:"useSpoolRecords" json:"useSpoolRecords"`
	RequiresAuthenticatedUser bool `yaml:"requiresLogin" json:"requiresLogin"`
}

// Source tells where the filament values of a tool came from.
type Source string

const (
	SourceSpool   Source = "spool"
	SourceDefault Source = "default"
	SourceMissing Source = "missing"
)

// ToolCost is the filament line item of a single tool.
type ToolCost struct {
	ToolIndex int
	ToolLabel string
	LengthMm  float64
	VolumeCm3 float64
	WeightG   float64
	Cost      float64
	Source    Source
}

// Result groups the full estimate output: the three cost drivers, their sum and display strings.
type Result struct {
	Tools []ToolCost

	FilamentCost    float64
	ElectricityCost float64
	PrinterCost     float64
	TotalCost       float64
	Hours           float64

	FormattedTotal string
	Breakdown      string

	UsedDefaultFilamentValues bool
	MissingSpoolData          bool
}

// ExtractToolIndex returns the first run of ASCII digits in label as an integer, or 0 when there is none.
func ExtractToolIndex(label string) int {
	digits := toolDigits.FindString(label)
	if digits == "" {
		return 0
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return index
}

// FilamentVolumeCm3 returns the volume of a filament strand. diameterMm must be positive.
func FilamentVolumeCm3(lengthMm, diameterMm float64) float64 {
	radius := diameterMm / 2
	return lengthMm * math.Pi * radius * radius / 1000.0
}

// Estimate computes the cost of a print job from its filament usage, the selected spools and the
// pricing configuration. Usages whose tool has no entry in a non-nil spools map are skipped.
func Estimate(usages []FilamentUsage, spools Spools, cfg PricingConfig, estimatedPrintTimeSeconds float64) Result {
	result := Result{Tools: make([]ToolCost, 0, len(usages))}

	for _, usage := range usages {
		line := ToolCost{
			ToolIndex: ExtractToolIndex(usage.ToolLabel),
			ToolLabel: usage.ToolLabel,
			LengthMm:  usage.LengthMm,
		}

		var spool SpoolRecord
		if spools != nil {
			record, ok := spools[line.ToolIndex]
			if !ok {
				result.MissingSpoolData = true
				line.Source = SourceMissing
				result.Tools = append(result.Tools, line)
				continue
			}
			spool = record
			line.Source = SourceSpool
		} else {
			result.UsedDefaultFilamentValues = true
			spool = SpoolRecord{
				CostPerSpool:       cfg.CostOfFilamentPerSpool,
				SpoolWeightG:       cfg.FilamentWeightPerSpoolG,
				MaterialDensity:    cfg.MaterialDensity,
				FilamentDiameterMm: cfg.FilamentDiameterMm,
			}
			line.Source = SourceDefault
		}

		costPerGram := 0.0
		if spool.SpoolWeightG > 0 {
			costPerGram = spool.CostPerSpool / spool.SpoolWeightG
		}
		line.VolumeCm3 = FilamentVolumeCm3(usage.LengthMm, spool.FilamentDiameterMm)
		line.WeightG = line.VolumeCm3 * spool.MaterialDensity
		line.Cost = costPerGram * line.VolumeCm3 * spool.MaterialDensity

		result.FilamentCost += line.Cost
		result.Tools = append(result.Tools, line)
	}

	result.Hours = estimatedPrintTimeSeconds / 3600.0
	result.ElectricityCost = cfg.PowerConsumptionKW * cfg.CostOfElectricityPerKWh * result.Hours

	depreciationPerHour := 0.0
	if cfg.PrinterLifespanHours > 0 {
		depreciationPerHour = cfg.PrinterPurchasePrice / cfg.PrinterLifespanHours
	}
	result.PrinterCost = (depreciationPerHour + cfg.MaintenanceCostPerHour) * result.Hours

	result.TotalCost = result.FilamentCost + result.ElectricityCost + result.PrinterCost

	result.FormattedTotal = FormatCost(cfg.CurrencyFormatTemplate, cfg.CurrencySymbol, result.TotalCost)
	if result.UsedDefaultFilamentValues {
		result.FormattedTotal += defaultSpoolSuffix
	}
	if result.MissingSpoolData {
		result.FormattedTotal += noSpoolSuffix
	}
	result.Breakdown = formatBreakdown(cfg.CurrencySymbol, result)

	return result
}

// FormatCost fills the first value and symbol placeholders of template.
func FormatCost(template, symbol string, value float64) string {
	out := strings.Replace(template, valuePlaceholder, formatAmount(value), 1)
	return strings.Replace(out, symbolPlaceholder, symbol, 1)
}

func formatBreakdown(symbol string, r Result) string {
	return "Filament: " + symbol + formatAmount(r.FilamentCost) +
		" / Electricity: " + symbol + formatAmount(r.ElectricityCost) +
		" / Printer: " + symbol + formatAmount(r.PrinterCost)
}

// formatAmount renders value with two decimals. Rounding works on the exact binary value with
// halves away from zero, so 0.125 becomes "0.13" while 1.005 (stored just below the half) stays "1.00".
func formatAmount(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return strconv.FormatFloat(value, 'f', 2, 64)
	}
	return new(big.Rat).SetFloat64(value).FloatString(2)
}
