// Package report renders a completed study as markdown, HTML and PDF.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/roi-copilot/internal/roi"
)

const Disclaimer = "This is a first-year estimate built from the figures entered in the wizard. " +
	"It is not financial advice; validate the inputs with finance before committing budget."

// Markdown builds the ROI report for a completed study.
func Markdown(study roi.Study, res roi.Result, generated time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# ROI Report: %s\n\n", sanitize(study.Project.Name))
	fmt.Fprintf(&b, "- Use case: %s\n", study.Project.UseCase)
	fmt.Fprintf(&b, "- Mode: %s\n", res.Mode.Label())
	fmt.Fprintf(&b, "- Generated: %s\n\n", generated.Format("January 2, 2006"))
	if d := sanitize(study.Project.Description); d != "" {
		fmt.Fprintf(&b, "> %s\n\n", d)
	}

	fmt.Fprintf(&b, "## Key Metrics\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| First-year ROI | %s |\n", roi.FormatPercent(res.ROI))
	fmt.Fprintf(&b, "| Payback period | %s |\n", roi.FormatYears(res.PaybackYears))
	fmt.Fprintf(&b, "| Annual savings | %s |\n", roi.FormatUSD(res.AnnualSavings))
	fmt.Fprintf(&b, "| Total investment | %s |\n\n", roi.FormatUSD(res.TotalInvestment))
	if res.Unbounded() {
		fmt.Fprintf(&b, "ROI is shown as %s because no investment was entered.\n\n", roi.NotApplicable)
	}
	if res.NeverPaysBack() {
		fmt.Fprintf(&b, "Payback is shown as %s because no annual benefit was entered; the investment is never recovered.\n\n", roi.NotApplicable)
	}

	fmt.Fprintf(&b, "## Investments\n\n")
	fmt.Fprintf(&b, "| Item | Amount |\n|------|--------|\n")
	writeAmountRow(&b, "Hardware", study.Costs.Hardware)
	writeAmountRow(&b, "Software", study.Costs.Software)
	writeAmountRow(&b, "Training", study.Costs.Training)
	writeAmountRow(&b, "Other", study.Costs.Other)
	fmt.Fprintf(&b, "| **Total** | **%s** |\n\n", roi.FormatUSD(study.Costs.Total()))

	fmt.Fprintf(&b, "## Annual Benefits\n\n")
	fmt.Fprintf(&b, "| Item | Amount |\n|------|--------|\n")
	writeAmountRow(&b, "Efficiency gains", study.Benefits.EfficiencyGains)
	writeAmountRow(&b, "Error reduction", study.Benefits.ErrorReduction)
	writeAmountRow(&b, "New revenue", study.Benefits.NewRevenue)
	writeAmountRow(&b, "Other", study.Benefits.OtherBenefits)
	fmt.Fprintf(&b, "| **Total** | **%s** |\n\n", roi.FormatUSD(study.Benefits.Total()))

	if res.Insights != nil {
		ins := res.Insights
		fmt.Fprintf(&b, "## AI Insights\n\n")
		fmt.Fprintf(&b, "- **Market trend:** %s\n", sanitize(ins.MarketTrend))
		if v := sanitize(ins.TopVendor); v != "" {
			fmt.Fprintf(&b, "- **Top vendor:** %s\n", v)
		}
		fmt.Fprintf(&b, "- **Key insight:** %s\n\n", sanitize(ins.KeyInsight))
		fmt.Fprintf(&b, "%s\n\n", sanitize(ins.Reasoning))
	}
	if res.Degraded {
		fmt.Fprintf(&b, "> AI insights were unavailable for this run. The metrics above are computed from your inputs only.\n\n")
	}

	fmt.Fprintf(&b, "## Methodology\n\n")
	fmt.Fprintf(&b, "- ROI = (total annual benefit - total investment) / total investment x 100\n")
	fmt.Fprintf(&b, "- Payback period = total investment / total annual benefit, in years\n")
	fmt.Fprintf(&b, "- Figures are rounded to two decimals.\n\n")
	fmt.Fprintf(&b, "%s\n", Disclaimer)
	return b.String()
}

func writeAmountRow(b *strings.Builder, label string, v float64) {
	fmt.Fprintf(b, "| %s | %s |\n", label, roi.FormatUSD(v))
}

func sanitize(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	return strings.ReplaceAll(s, "|", "\\|")
}

// Filename derives a download name from the project name.
func Filename(projectName, ext string) string {
	v := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, strings.TrimSpace(projectName))
	v = strings.Trim(v, "-")
	for strings.Contains(v, "--") {
		v = strings.ReplaceAll(v, "--", "-")
	}
	if v == "" {
		v = "study"
	}
	return v + "-roi-report." + ext
}
