package roi

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// UseCase is the primary AR/MR use case a project targets.
type UseCase string

const (
	UseCaseTraining    UseCase = "Training & Onboarding"
	UseCaseMaintenance UseCase = "Maintenance & Repair"
	UseCaseLogistics   UseCase = "Logistics & Warehousing"
	UseCaseDesign      UseCase = "Design & Prototyping"
	UseCaseSales       UseCase = "Sales & Marketing"
	UseCaseOther       UseCase = "Other"
)

// UseCases lists every accepted use case in display order.
var UseCases = []UseCase{
	UseCaseTraining,
	UseCaseMaintenance,
	UseCaseLogistics,
	UseCaseDesign,
	UseCaseSales,
	UseCaseOther,
}

func (u UseCase) Valid() bool {
	for _, c := range UseCases {
		if u == c {
			return true
		}
	}
	return false
}

// Mode selects the computation path for a study.
type Mode string

const (
	ModeCustom Mode = "custom"
	ModeAI     Mode = "ai"
)

var Modes = []Mode{ModeCustom, ModeAI}

func (m Mode) Valid() bool { return m == ModeCustom || m == ModeAI }

func (m Mode) Label() string {
	if m == ModeAI {
		return "AI Mode"
	}
	return "Custom Mode"
}

const MinProjectNameChars = 3

type ProjectInput struct {
	Name        string  `json:"projectName"`
	Description string  `json:"projectDescription,omitempty"`
	UseCase     UseCase `json:"useCase"`
	Mode        Mode    `json:"copilotMode"`
}

// InvestmentCosts are one-off costs in dollars.
type InvestmentCosts struct {
	Hardware float64 `json:"hardwareCost"`
	Software float64 `json:"softwareCost"`
	Training float64 `json:"trainingCost"`
	Other    float64 `json:"otherCosts"`
}

func (c InvestmentCosts) Total() float64 {
	return c.Hardware + c.Software + c.Training + c.Other
}

// ExpectedBenefits are annualized dollar amounts.
type ExpectedBenefits struct {
	EfficiencyGains float64 `json:"efficiencyGains"`
	ErrorReduction  float64 `json:"errorReduction"`
	NewRevenue      float64 `json:"newRevenue"`
	OtherBenefits   float64 `json:"otherBenefits"`
}

func (b ExpectedBenefits) Total() float64 {
	return b.EfficiencyGains + b.ErrorReduction + b.NewRevenue + b.OtherBenefits
}

// Study is the accumulated wizard input handed to an estimator.
type Study struct {
	Project  ProjectInput     `json:"project"`
	Costs    InvestmentCosts  `json:"costs"`
	Benefits ExpectedBenefits `json:"benefits"`
}

// Insights is the qualitative analysis attached to AI mode results.
type Insights struct {
	MarketTrend string `json:"market_trend"`
	TopVendor   string `json:"top_vendor"`
	KeyInsight  string `json:"key_insight"`
	Reasoning   string `json:"reasoning"`
}

func (i Insights) Validate() error {
	var missing []string
	if strings.TrimSpace(i.MarketTrend) == "" {
		missing = append(missing, "market_trend")
	}
	if strings.TrimSpace(i.KeyInsight) == "" {
		missing = append(missing, "key_insight")
	}
	if strings.TrimSpace(i.Reasoning) == "" {
		missing = append(missing, "reasoning")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Result is produced once per completed study and never mutated.
// ROI and PaybackYears may be +Inf; JSON carries those as null plus a flag.
type Result struct {
	ROI                float64   `json:"-"`
	PaybackYears       float64   `json:"-"`
	AnnualSavings      float64   `json:"-"`
	TotalInvestment    float64   `json:"-"`
	TotalAnnualBenefit float64   `json:"-"`
	Mode               Mode      `json:"-"`
	Insights           *Insights `json:"-"`
	Degraded           bool      `json:"-"`
}

// Unbounded reports a positive return with no investment required.
func (r Result) Unbounded() bool { return math.IsInf(r.ROI, 1) }

// NeverPaysBack reports that the investment is never recovered.
func (r Result) NeverPaysBack() bool { return math.IsInf(r.PaybackYears, 1) }

type resultJSON struct {
	ROI                *float64  `json:"roi"`
	ROIDisplay         string    `json:"roiDisplay"`
	ROIUnbounded       bool      `json:"roiUnbounded"`
	PaybackPeriod      *float64  `json:"paybackPeriod"`
	PaybackDisplay     string    `json:"paybackDisplay"`
	PaybackNever       bool      `json:"paybackNever"`
	AnnualSavings      float64   `json:"annualSavings"`
	TotalInvestment    float64   `json:"totalInvestment"`
	TotalAnnualBenefit float64   `json:"totalAnnualBenefit"`
	Mode               Mode      `json:"mode"`
	Insights           *Insights `json:"insights,omitempty"`
	Degraded           bool      `json:"degraded,omitempty"`
}

func finitePtr(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		ROI:                finitePtr(r.ROI),
		ROIDisplay:         FormatPercent(r.ROI),
		ROIUnbounded:       r.Unbounded(),
		PaybackPeriod:      finitePtr(r.PaybackYears),
		PaybackDisplay:     FormatYears(r.PaybackYears),
		PaybackNever:       r.NeverPaysBack(),
		AnnualSavings:      r.AnnualSavings,
		TotalInvestment:    r.TotalInvestment,
		TotalAnnualBenefit: r.TotalAnnualBenefit,
		Mode:               r.Mode,
		Insights:           r.Insights,
		Degraded:           r.Degraded,
	})
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Result{
		AnnualSavings:      raw.AnnualSavings,
		TotalInvestment:    raw.TotalInvestment,
		TotalAnnualBenefit: raw.TotalAnnualBenefit,
		Mode:               raw.Mode,
		Insights:           raw.Insights,
		Degraded:           raw.Degraded,
	}
	switch {
	case raw.ROIUnbounded:
		r.ROI = math.Inf(1)
	case raw.ROI != nil:
		r.ROI = *raw.ROI
	}
	switch {
	case raw.PaybackNever:
		r.PaybackYears = math.Inf(1)
	case raw.PaybackPeriod != nil:
		r.PaybackYears = *raw.PaybackPeriod
	}
	return nil
}
