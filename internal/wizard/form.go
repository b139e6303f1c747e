package wizard

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joelkehle/roi-copilot/internal/roi"
)

// Form field names. They double as the keys of FieldErrors.
const (
	FieldProjectName        = "projectName"
	FieldProjectDescription = "projectDescription"
	FieldUseCase            = "useCase"
	FieldCopilotMode        = "copilotMode"

	FieldHardwareCost = "hardwareCost"
	FieldSoftwareCost = "softwareCost"
	FieldTrainingCost = "trainingCost"
	FieldOtherCosts   = "otherCosts"

	FieldEfficiencyGains = "efficiencyGains"
	FieldErrorReduction  = "errorReduction"
	FieldNewRevenue      = "newRevenue"
	FieldOtherBenefits   = "otherBenefits"
)

var (
	projectFields = []string{FieldProjectName, FieldProjectDescription, FieldUseCase, FieldCopilotMode}
	costFields    = []string{FieldHardwareCost, FieldSoftwareCost, FieldTrainingCost, FieldOtherCosts}
	benefitFields = []string{FieldEfficiencyGains, FieldErrorReduction, FieldNewRevenue, FieldOtherBenefits}
	amountLabels  = map[string]string{
		FieldHardwareCost:    "Hardware cost",
		FieldSoftwareCost:    "Software cost",
		FieldTrainingCost:    "Training cost",
		FieldOtherCosts:      "Other costs",
		FieldEfficiencyGains: "Efficiency gains",
		FieldErrorReduction:  "Error reduction savings",
		FieldNewRevenue:      "New revenue",
		FieldOtherBenefits:   "Other benefits",
	}
)

// FieldErrors holds display messages keyed by field name.
type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e FieldErrors) Fields() []string {
	out := make([]string, 0, len(e))
	for _, f := range allFields() {
		if len(e[f]) > 0 {
			out = append(out, f)
		}
	}
	return out
}

func allFields() []string {
	out := make([]string, 0, len(projectFields)+len(costFields)+len(benefitFields))
	out = append(out, projectFields...)
	out = append(out, costFields...)
	return append(out, benefitFields...)
}

func knownField(name string) bool {
	for _, f := range allFields() {
		if f == name {
			return true
		}
	}
	return false
}

// Form holds raw form values as the client submitted them.
type Form map[string]string

func defaultForm() Form {
	f := Form{
		FieldProjectName:        "",
		FieldProjectDescription: "",
		FieldUseCase:            string(roi.UseCaseTraining),
		FieldCopilotMode:        string(roi.ModeCustom),
	}
	for _, name := range costFields {
		f[name] = "0"
	}
	for _, name := range benefitFields {
		f[name] = "0"
	}
	return f
}

func (f Form) clone() Form {
	out := make(Form, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f Form) Project() (roi.ProjectInput, FieldErrors) {
	errs := FieldErrors{}
	in := roi.ProjectInput{
		Name:        strings.TrimSpace(f[FieldProjectName]),
		Description: strings.TrimSpace(f[FieldProjectDescription]),
		UseCase:     roi.UseCase(strings.TrimSpace(f[FieldUseCase])),
		Mode:        roi.Mode(strings.TrimSpace(f[FieldCopilotMode])),
	}
	if len([]rune(in.Name)) < roi.MinProjectNameChars {
		errs.Add(FieldProjectName, fmt.Sprintf("Project name must be at least %d characters.", roi.MinProjectNameChars))
	}
	if !in.UseCase.Valid() {
		errs.Add(FieldUseCase, "Select a valid use case.")
	}
	if !in.Mode.Valid() {
		errs.Add(FieldCopilotMode, "Select ROI Copilot mode: AI-assisted or Custom input.")
	}
	return in, errs
}

func (f Form) Costs() (roi.InvestmentCosts, FieldErrors) {
	errs := FieldErrors{}
	c := roi.InvestmentCosts{
		Hardware: f.amount(FieldHardwareCost, errs),
		Software: f.amount(FieldSoftwareCost, errs),
		Training: f.amount(FieldTrainingCost, errs),
		Other:    f.amount(FieldOtherCosts, errs),
	}
	return c, errs
}

func (f Form) Benefits() (roi.ExpectedBenefits, FieldErrors) {
	errs := FieldErrors{}
	b := roi.ExpectedBenefits{
		EfficiencyGains: f.amount(FieldEfficiencyGains, errs),
		ErrorReduction:  f.amount(FieldErrorReduction, errs),
		NewRevenue:      f.amount(FieldNewRevenue, errs),
		OtherBenefits:   f.amount(FieldOtherBenefits, errs),
	}
	return b, errs
}

// Study parses every field, ignoring validation errors.
func (f Form) Study() roi.Study {
	p, _ := f.Project()
	c, _ := f.Costs()
	b, _ := f.Benefits()
	return roi.Study{Project: p, Costs: c, Benefits: b}
}

// amount coerces a field to a number in [0, roi.MaxAmount]; blank means zero.
// Invalid values record an error and count as zero.
func (f Form) amount(field string, errs FieldErrors) float64 {
	raw := strings.TrimSpace(f[field])
	if raw == "" {
		return 0
	}
	raw = strings.ReplaceAll(strings.TrimPrefix(raw, "$"), ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		errs.Add(field, amountLabels[field]+" must be a number.")
		return 0
	}
	if v < 0 {
		errs.Add(field, amountLabels[field]+" must be positive.")
		return 0
	}
	if v > roi.MaxAmount {
		errs.Add(field, amountLabels[field]+" must not exceed $1,000,000,000,000.")
		return 0
	}
	return v
}
