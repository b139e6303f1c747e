package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/roi-copilot/internal/roi"
)

type stubEstimator struct {
	calls int
	res   roi.Result
	err   error
}

func (s *stubEstimator) Estimate(_ context.Context, study roi.Study) (roi.Result, error) {
	s.calls++
	if s.err != nil {
		return roi.Result{}, s.err
	}
	res := s.res
	res.Mode = study.Project.Mode
	return res, nil
}

func validProject(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.SetAll(map[string]string{
		FieldProjectName: "AR Maintenance Assistant",
		FieldUseCase:     string(roi.UseCaseMaintenance),
		FieldCopilotMode: string(roi.ModeCustom),
	}))
}

func exampleAmounts(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.SetAll(map[string]string{
		FieldHardwareCost:    "10000",
		FieldSoftwareCost:    "5000",
		FieldEfficiencyGains: "8000",
		FieldErrorReduction:  "2000",
	}))
}

func TestNextRejectedWhenProjectNameTooShort(t *testing.T) {
	c := New(Options{})
	require.NoError(t, c.Set(FieldProjectName, "AR"))

	err := c.Next()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, StepProjectInfo, ve.Step)
	assert.Contains(t, ve.Fields, FieldProjectName)
	assert.Equal(t, StepProjectInfo, c.Step())
	assert.Contains(t, c.Errors(), FieldProjectName)
}

func TestNextAdvancesOnValidStep(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	require.NoError(t, c.Next())
	assert.Equal(t, StepInvestments, c.Step())
	assert.Empty(t, c.Errors())
}

func TestNextRejectsNegativeAndNonNumericAmounts(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	require.NoError(t, c.Next())
	require.NoError(t, c.SetAll(map[string]string{
		FieldHardwareCost: "-1",
		FieldSoftwareCost: "lots",
	}))

	err := c.Next()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"Hardware cost must be positive."}, ve.Fields[FieldHardwareCost])
	assert.Equal(t, []string{"Software cost must be a number."}, ve.Fields[FieldSoftwareCost])
	assert.Equal(t, StepInvestments, c.Step())
}

func TestBlankAmountsDefaultToZero(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	require.NoError(t, c.Next())
	require.NoError(t, c.SetAll(map[string]string{FieldHardwareCost: "", FieldOtherCosts: " "}))
	require.NoError(t, c.Next())
	assert.Equal(t, 0.0, c.Study().Costs.Total())
}

func TestPreviousAlwaysSucceedsWithoutValidation(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	require.NoError(t, c.Next())
	require.NoError(t, c.Set(FieldHardwareCost, "-50"))

	require.NoError(t, c.Previous())
	assert.Equal(t, StepProjectInfo, c.Step())
	assert.Equal(t, "-50", c.Snapshot().Values[FieldHardwareCost], "values survive backward navigation")

	require.NoError(t, c.Previous())
	assert.Equal(t, StepProjectInfo, c.Step())
}

func TestJumpForwardHaltsAtFirstInvalidStep(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	require.NoError(t, c.Set(FieldTrainingCost, "-10"))

	err := c.JumpTo(StepBenefits)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, StepInvestments, ve.Step)
	assert.Equal(t, StepInvestments, c.Step())
}

func TestJumpForwardStaysWhenCurrentStepInvalid(t *testing.T) {
	c := New(Options{})
	err := c.JumpTo(StepSummary)
	require.Error(t, err)
	assert.Equal(t, StepProjectInfo, c.Step())
}

func TestJumpForwardAcrossValidSteps(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	exampleAmounts(t, c)
	require.NoError(t, c.JumpTo(StepSummary))
	assert.Equal(t, StepSummary, c.Step())

	snap := c.Snapshot()
	require.NotNil(t, snap.Summary)
	assert.Equal(t, 15000.0, snap.Summary.TotalInvestment)
	assert.Equal(t, 10000.0, snap.Summary.TotalAnnualBenefit)
}

func TestJumpBackwardIsUnconditional(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	require.NoError(t, c.JumpTo(StepSummary))
	require.NoError(t, c.Set(FieldProjectName, ""))
	require.NoError(t, c.JumpTo(StepInvestments))
	assert.Equal(t, StepInvestments, c.Step())
}

func TestJumpRejectsOutOfRangeTargets(t *testing.T) {
	c := New(Options{})
	assert.ErrorIs(t, c.JumpTo(StepComplete), ErrInvalidStep)
	assert.ErrorIs(t, c.JumpTo(Step(-1)), ErrInvalidStep)
}

func TestNextOnSummaryRequiresSubmit(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	require.NoError(t, c.JumpTo(StepSummary))
	assert.ErrorIs(t, c.Next(), ErrLastStep)
}

func TestSubmitCustomModeComputesExample(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	exampleAmounts(t, c)
	require.NoError(t, c.JumpTo(StepSummary))

	res, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -33.33, res.ROI)
	assert.Equal(t, 1.5, res.PaybackYears)
	assert.True(t, c.Complete())
	require.NotNil(t, c.Result())
	assert.Equal(t, res, *c.Result())
}

func TestSubmitRejectedWhenTotalsZero(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	require.NoError(t, c.JumpTo(StepSummary))

	_, err := c.Submit(context.Background())
	require.ErrorIs(t, err, roi.ErrNothingToCalculate)
	assert.Equal(t, StepSummary, c.Step())
	assert.Nil(t, c.Result())
}

func TestSubmitOnlyFromSummary(t *testing.T) {
	c := New(Options{})
	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotAtSummary)
}

func TestSubmitRevalidatesEarlierSteps(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	exampleAmounts(t, c)
	require.NoError(t, c.JumpTo(StepSummary))
	require.NoError(t, c.Set(FieldEfficiencyGains, "-1"))

	_, err := c.Submit(context.Background())
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, StepBenefits, c.Step())
}

func TestSubmitDispatchesByMode(t *testing.T) {
	ai := &stubEstimator{res: roi.Result{ROI: 12}}
	c := New(Options{Estimators: map[roi.Mode]Estimator{roi.ModeAI: ai}})
	validProject(t, c)
	exampleAmounts(t, c)
	require.NoError(t, c.Set(FieldCopilotMode, string(roi.ModeAI)))
	require.NoError(t, c.JumpTo(StepSummary))

	res, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ai.calls)
	assert.Equal(t, roi.ModeAI, res.Mode)
}

func TestSubmitEstimatorFailureLeavesStateUnchanged(t *testing.T) {
	ai := &stubEstimator{err: errors.New("boom")}
	c := New(Options{Estimators: map[roi.Mode]Estimator{roi.ModeAI: ai}})
	validProject(t, c)
	require.NoError(t, c.Set(FieldCopilotMode, string(roi.ModeAI)))
	require.NoError(t, c.JumpTo(StepSummary))

	_, err := c.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, StepSummary, c.Step())
}

func TestSubmitWithoutEstimatorForMode(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	exampleAmounts(t, c)
	require.NoError(t, c.Set(FieldCopilotMode, string(roi.ModeAI)))
	require.NoError(t, c.JumpTo(StepSummary))

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoEstimator)
}

func TestSubmitDelayHonorsContext(t *testing.T) {
	c := New(Options{SubmitDelay: time.Hour})
	validProject(t, c)
	exampleAmounts(t, c)
	require.NoError(t, c.JumpTo(StepSummary))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Submit(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StepSummary, c.Step())
}

func TestCompleteStateOnlyAllowsReset(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	exampleAmounts(t, c)
	require.NoError(t, c.JumpTo(StepSummary))
	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, c.Next(), ErrComplete)
	assert.ErrorIs(t, c.Previous(), ErrComplete)
	assert.ErrorIs(t, c.JumpTo(StepProjectInfo), ErrComplete)
	assert.ErrorIs(t, c.Set(FieldProjectName, "Other"), ErrComplete)
	_, err = c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrComplete)

	c.Reset()
	assert.Equal(t, StepProjectInfo, c.Step())
	assert.Nil(t, c.Result())
	assert.Equal(t, "", c.Snapshot().Values[FieldProjectName])
	assert.Equal(t, "0", c.Snapshot().Values[FieldHardwareCost])
}

func TestSetRejectsUnknownFieldsAtomically(t *testing.T) {
	c := New(Options{})
	err := c.SetAll(map[string]string{FieldProjectName: "Valid name", "color": "blue"})
	require.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, "", c.Snapshot().Values[FieldProjectName])
}

func TestStepsDescribeFourInputSteps(t *testing.T) {
	s := Steps()
	require.Len(t, s, 4)
	assert.Equal(t, "Project Setup", s[0].Title)
	assert.Equal(t, "Summary & Report", s[3].Title)
	assert.Empty(t, s[3].Fields)
}

func TestAmountsAboveMaximumAreRejected(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	require.NoError(t, c.SetAll(map[string]string{
		FieldHardwareCost: "1e308",
		FieldSoftwareCost: "1e308",
	}))

	err := c.JumpTo(StepSummary)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, StepInvestments, ve.Step)
	assert.Equal(t, []string{"Hardware cost must not exceed $1,000,000,000,000."}, ve.Fields[FieldHardwareCost])
	assert.Contains(t, ve.Fields, FieldSoftwareCost)
	assert.Equal(t, StepInvestments, c.Step())
}

func TestMaximumAmountsStayFinite(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	require.NoError(t, c.SetAll(map[string]string{
		FieldHardwareCost:    "1000000000000",
		FieldSoftwareCost:    "1000000000000",
		FieldTrainingCost:    "1000000000000",
		FieldOtherCosts:      "1000000000000",
		FieldEfficiencyGains: "1000000000000",
	}))
	require.NoError(t, c.JumpTo(StepSummary))

	res, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4e12, res.TotalInvestment)
	assert.Equal(t, -75.0, res.ROI)
	assert.Equal(t, 4.0, res.PaybackYears)

	_, err = json.Marshal(c.Snapshot())
	assert.NoError(t, err)
}

func TestCommitRejectsStudyEditedDuringRun(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	exampleAmounts(t, c)
	require.NoError(t, c.JumpTo(StepSummary))

	p, err := c.BeginSubmit()
	require.NoError(t, err)
	require.NoError(t, c.Set(FieldHardwareCost, "99999"))

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15000.0, res.TotalInvestment, "run uses the captured study")

	assert.ErrorIs(t, c.Commit(p, res), ErrStudyChanged)
	assert.Equal(t, StepSummary, c.Step())
	assert.Nil(t, c.Result())
}

func TestCommitCompletesUnchangedStudy(t *testing.T) {
	c := New(Options{})
	validProject(t, c)
	exampleAmounts(t, c)
	require.NoError(t, c.JumpTo(StepSummary))

	p, err := c.BeginSubmit()
	require.NoError(t, err)
	assert.Equal(t, "AR Maintenance Assistant", p.Study().Project.Name)
	assert.Equal(t, StepSummary, c.Step(), "begin does not complete the study")

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Commit(p, res))
	assert.True(t, c.Complete())
	assert.ErrorIs(t, c.Commit(p, res), ErrComplete)
}
