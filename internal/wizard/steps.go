package wizard

import "fmt"

type Step int

const (
	StepProjectInfo Step = iota
	StepInvestments
	StepBenefits
	StepSummary
	// StepComplete is the terminal display state carrying the result.
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepProjectInfo:
		return "project_info"
	case StepInvestments:
		return "investments"
	case StepBenefits:
		return "benefits"
	case StepSummary:
		return "summary"
	case StepComplete:
		return "complete"
	default:
		return fmt.Sprintf("step_%d", int(s))
	}
}

// StepInfo describes a wizard step for display.
type StepInfo struct {
	Index       Step     `json:"index"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Fields      []string `json:"fields"`
}

type stepSpec struct {
	title       string
	description string
	fields      []string
	validate    func(Form) FieldErrors
}

var steps = [...]stepSpec{
	StepProjectInfo: {
		title:       "Project Setup",
		description: "Define your project and choose Copilot mode.",
		fields:      projectFields,
		validate: func(f Form) FieldErrors {
			_, errs := f.Project()
			return errs
		},
	},
	StepInvestments: {
		title:       "Investments",
		description: "Detail the costs involved.",
		fields:      costFields,
		validate: func(f Form) FieldErrors {
			_, errs := f.Costs()
			return errs
		},
	},
	StepBenefits: {
		title:       "Benefits",
		description: "Estimate the expected benefits.",
		fields:      benefitFields,
		validate: func(f Form) FieldErrors {
			_, errs := f.Benefits()
			return errs
		},
	},
	StepSummary: {
		title:       "Summary & Report",
		description: "Review and generate your ROI report.",
		validate:    func(Form) FieldErrors { return FieldErrors{} },
	},
}

// Steps returns the four input steps in order.
func Steps() []StepInfo {
	out := make([]StepInfo, 0, len(steps))
	for i, s := range steps {
		out = append(out, StepInfo{
			Index:       Step(i),
			Name:        Step(i).String(),
			Title:       s.title,
			Description: s.description,
			Fields:      append([]string(nil), s.fields...),
		})
	}
	return out
}
