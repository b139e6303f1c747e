// Package copilot implements the AI-assisted estimator. The numbers come from
// the plain calculator; the model only contributes qualitative insights.
package copilot

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/joelkehle/roi-copilot/internal/llm"
	"github.com/joelkehle/roi-copilot/internal/roi"
)

const SystemPrompt = "You are an analyst for augmented and mixed reality investments. " +
	"You comment on business cases; you never change the numbers you are given. " +
	"Respond with JSON only."

var tracer = otel.Tracer("github.com/joelkehle/roi-copilot/internal/copilot")

type Analyst struct {
	exec *llm.Executor
	log  *zap.Logger
}

// New returns an analyst. A nil caller yields degraded results without insights.
func New(caller llm.Caller, log *zap.Logger) *Analyst {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Analyst{log: log}
	if caller != nil {
		a.exec = llm.NewExecutor(caller, log)
	}
	return a
}

func (a *Analyst) Estimate(ctx context.Context, study roi.Study) (roi.Result, error) {
	ctx, span := tracer.Start(ctx, "copilot.estimate")
	defer span.End()

	res, err := roi.Calculate(study.Costs, study.Benefits)
	if err != nil {
		return roi.Result{}, err
	}
	res.Mode = roi.ModeAI
	span.SetAttributes(attribute.String("roi.use_case", string(study.Project.UseCase)))

	if a.exec == nil {
		a.log.Info("copilot_degraded", zap.String("reason", "no model configured"))
		res.Degraded = true
		return res, nil
	}

	var ins roi.Insights
	m, err := a.exec.Run(ctx, "insights", buildPrompt(study, res), &ins, func() error { return ins.Validate() })
	if err != nil {
		a.log.Warn("copilot_degraded",
			zap.String("reason", "insights failed"),
			zap.Int("attempts", m.Attempts),
			zap.Error(err))
		res.Degraded = true
		return res, nil
	}
	res.Insights = &ins
	span.SetAttributes(attribute.Int("llm.attempts", m.Attempts))
	return res, nil
}

func buildPrompt(study roi.Study, res roi.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", study.Project.Name)
	if study.Project.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", study.Project.Description)
	}
	fmt.Fprintf(&b, "Use case: %s\n\n", study.Project.UseCase)

	b.WriteString("Investment (one-time, USD):\n")
	fmt.Fprintf(&b, "- hardware: %.2f\n- software: %.2f\n- training: %.2f\n- other: %.2f\n",
		study.Costs.Hardware, study.Costs.Software, study.Costs.Training, study.Costs.Other)
	b.WriteString("Expected annual benefits (USD):\n")
	fmt.Fprintf(&b, "- efficiency gains: %.2f\n- error reduction: %.2f\n- new revenue: %.2f\n- other: %.2f\n\n",
		study.Benefits.EfficiencyGains, study.Benefits.ErrorReduction, study.Benefits.NewRevenue, study.Benefits.OtherBenefits)

	fmt.Fprintf(&b, "Computed first-year ROI: %s\nComputed payback period: %s\n\n",
		roi.FormatPercent(res.ROI), roi.FormatYears(res.PaybackYears))

	b.WriteString(`Return a JSON object with exactly these string fields:
{
  "market_trend": "one sentence on the AR/MR market trend for this use case",
  "top_vendor": "a vendor commonly used for this use case, or empty",
  "key_insight": "the single most important observation about this business case",
  "reasoning": "two or three sentences explaining the insight"
}`)
	return b.String()
}
