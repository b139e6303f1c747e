package roi

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// NotApplicable is shown in place of infinite metrics.
const NotApplicable = "N/A"

func FormatPercent(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return NotApplicable
	}
	return fmt.Sprintf("%.2f%%", v)
}

func FormatYears(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return NotApplicable
	}
	return fmt.Sprintf("%.2f Years", v)
}

// FormatUSD renders whole dollars with thousands separators.
func FormatUSD(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return NotApplicable
	}
	return "$" + humanize.CommafWithDigits(math.Round(v), 0)
}
