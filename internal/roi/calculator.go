package roi

import (
	"context"
	"errors"
	"math"
)

// MaxAmount caps each monetary input so totals and ratios stay finite.
const MaxAmount = 1e12

var (
	// ErrNothingToCalculate rejects a study whose cost and benefit totals are both zero.
	ErrNothingToCalculate = errors.New("provide at least one investment or benefit value")
	// ErrAmountOutOfRange rejects negative, non-finite or oversized amounts.
	ErrAmountOutOfRange = errors.New("amounts must be between 0 and 1,000,000,000,000")
)

// Calculate maps costs and benefits to the ROI metrics. It is pure.
func Calculate(costs InvestmentCosts, benefits ExpectedBenefits) (Result, error) {
	for _, v := range [...]float64{
		costs.Hardware, costs.Software, costs.Training, costs.Other,
		benefits.EfficiencyGains, benefits.ErrorReduction, benefits.NewRevenue, benefits.OtherBenefits,
	} {
		if math.IsNaN(v) || v < 0 || v > MaxAmount {
			return Result{}, ErrAmountOutOfRange
		}
	}
	totalInvestment := costs.Total()
	totalAnnualBenefit := benefits.Total()
	if totalInvestment == 0 && totalAnnualBenefit == 0 {
		return Result{}, ErrNothingToCalculate
	}

	roi := math.Inf(1)
	if totalInvestment > 0 {
		roi = (totalAnnualBenefit - totalInvestment) / totalInvestment * 100
	}
	payback := math.Inf(1)
	if totalAnnualBenefit > 0 {
		payback = totalInvestment / totalAnnualBenefit
	}

	return Result{
		ROI:                round2(roi),
		PaybackYears:       round2(payback),
		AnnualSavings:      totalAnnualBenefit,
		TotalInvestment:    totalInvestment,
		TotalAnnualBenefit: totalAnnualBenefit,
		Mode:               ModeCustom,
	}, nil
}

// round2 leaves infinities untouched.
func round2(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return math.Round(v*100) / 100
}

// CustomEstimator is the manual-arithmetic path selected by ModeCustom.
type CustomEstimator struct{}

func (CustomEstimator) Estimate(_ context.Context, study Study) (Result, error) {
	return Calculate(study.Costs, study.Benefits)
}
