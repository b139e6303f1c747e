package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joelkehle/roi-copilot/internal/roi"
	"github.com/joelkehle/roi-copilot/internal/wizard"
)

// studyFlag maps a kebab-case flag to its wizard field.
type studyFlag struct {
	name  string
	field string
	usage string
}

var studyFlagSpecs = []studyFlag{
	{"name", wizard.FieldProjectName, "Project name (at least 3 characters)"},
	{"description", wizard.FieldProjectDescription, "Project description"},
	{"use-case", wizard.FieldUseCase, `Use case, e.g. "Training & Onboarding" or "Other"`},
	{"mode", wizard.FieldCopilotMode, "Copilot mode: custom or ai"},
	{"hardware", wizard.FieldHardwareCost, "Hardware cost (USD)"},
	{"software", wizard.FieldSoftwareCost, "Software cost (USD)"},
	{"training", wizard.FieldTrainingCost, "Training cost (USD)"},
	{"other-costs", wizard.FieldOtherCosts, "Other costs (USD)"},
	{"efficiency", wizard.FieldEfficiencyGains, "Annual efficiency gains (USD)"},
	{"error-reduction", wizard.FieldErrorReduction, "Annual error reduction savings (USD)"},
	{"revenue", wizard.FieldNewRevenue, "Annual new revenue (USD)"},
	{"other-benefits", wizard.FieldOtherBenefits, "Other annual benefits (USD)"},
}

type studyFlags struct {
	values map[string]*string
}

func registerStudyFlags(cmd *cobra.Command) *studyFlags {
	sf := &studyFlags{values: make(map[string]*string, len(studyFlagSpecs))}
	for _, spec := range studyFlagSpecs {
		sf.values[spec.name] = cmd.Flags().String(spec.name, "", spec.usage)
	}
	return sf
}

// Fields returns the wizard values for every flag that was set.
func (sf *studyFlags) Fields() map[string]string {
	out := make(map[string]string)
	for _, spec := range studyFlagSpecs {
		if v := strings.TrimSpace(*sf.values[spec.name]); v != "" {
			out[spec.field] = v
		}
	}
	return out
}

func (sf *studyFlags) Mode() roi.Mode {
	if v := strings.TrimSpace(*sf.values["mode"]); v != "" {
		return roi.Mode(v)
	}
	return roi.ModeCustom
}

// runStudy drives a fresh wizard through every step so the command line gets
// the same validation as the web flow.
func runStudy(ctx context.Context, opts wizard.Options, values map[string]string) (roi.Study, roi.Result, error) {
	c := wizard.New(opts)
	if err := c.SetAll(values); err != nil {
		return roi.Study{}, roi.Result{}, err
	}
	if err := c.JumpTo(wizard.StepSummary); err != nil {
		return roi.Study{}, roi.Result{}, describe(err)
	}
	res, err := c.Submit(ctx)
	if err != nil {
		return roi.Study{}, roi.Result{}, describe(err)
	}
	return c.Study(), res, nil
}

func describe(err error) error {
	var verr *wizard.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s step is invalid:", verr.Step)
	for _, field := range verr.Fields.Fields() {
		for _, msg := range verr.Fields[field] {
			fmt.Fprintf(&b, "\n  --%s: %s", flagFor(field), msg)
		}
	}
	return errors.New(b.String())
}

func flagFor(field string) string {
	for _, spec := range studyFlagSpecs {
		if spec.field == field {
			return spec.name
		}
	}
	return field
}

// studyOptions builds model-backed estimators only when the study asks for AI mode.
func studyOptions(ctx context.Context, mode roi.Mode, log *zap.Logger) (wizard.Options, func(), error) {
	if mode != roi.ModeAI {
		return wizard.Options{}, func() {}, nil
	}
	svc, err := buildServices(ctx, cfg, log)
	if err != nil {
		return wizard.Options{}, nil, err
	}
	return svc.wizardOptions(0, log), svc.Close, nil
}
