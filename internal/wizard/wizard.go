package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/roi-copilot/internal/roi"
)

// DefaultSubmitDelay mirrors the simulated processing time before a result is shown.
const DefaultSubmitDelay = 1500 * time.Millisecond

var (
	ErrComplete     = errors.New("study is complete; reset to start a new study")
	ErrNotAtSummary = errors.New("submit is only available on the summary step")
	ErrLastStep     = errors.New("already on the last step; submit to calculate")
	ErrInvalidStep  = errors.New("invalid step")
	ErrUnknownField = errors.New("unknown field")
	ErrNoEstimator  = errors.New("no estimator configured for mode")
	ErrStudyChanged = errors.New("study changed while the calculation was running")
)

// ValidationError rejects a transition. The controller keeps Fields for display.
type ValidationError struct {
	Step   Step
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s step invalid: %s", e.Step, strings.Join(e.Fields.Fields(), ", "))
}

// Estimator turns an accumulated study into a result.
type Estimator interface {
	Estimate(ctx context.Context, study roi.Study) (roi.Result, error)
}

type Options struct {
	// Estimators is keyed by copilot mode; custom defaults to the plain calculator.
	Estimators  map[roi.Mode]Estimator
	SubmitDelay time.Duration
}

// Controller is the wizard state machine for one study. It is not safe for
// concurrent use; callers serialize access.
type Controller struct {
	step       Step
	form       Form
	errs       FieldErrors
	result     *roi.Result
	estimators map[roi.Mode]Estimator
	delay      time.Duration
	// rev counts mutations so a commit can detect edits made during Run.
	rev uint64
}

func New(opts Options) *Controller {
	est := make(map[roi.Mode]Estimator, len(opts.Estimators)+1)
	for m, e := range opts.Estimators {
		est[m] = e
	}
	if est[roi.ModeCustom] == nil {
		est[roi.ModeCustom] = roi.CustomEstimator{}
	}
	return &Controller{
		form:       defaultForm(),
		estimators: est,
		delay:      opts.SubmitDelay,
	}
}

func (c *Controller) Step() Step { return c.step }

func (c *Controller) Complete() bool { return c.step == StepComplete }

// Result is nil until the study completes.
func (c *Controller) Result() *roi.Result {
	if c.result == nil {
		return nil
	}
	r := *c.result
	return &r
}

// Study returns the current values leniently parsed.
func (c *Controller) Study() roi.Study { return c.form.Study() }

func (c *Controller) Errors() FieldErrors {
	out := FieldErrors{}
	for k, v := range c.errs {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Set records one raw form value.
func (c *Controller) Set(field, value string) error {
	return c.SetAll(map[string]string{field: value})
}

// SetAll records several raw values; nothing is applied if any field is unknown.
func (c *Controller) SetAll(values map[string]string) error {
	if c.Complete() {
		return ErrComplete
	}
	for field := range values {
		if !knownField(field) {
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
	}
	for field, value := range values {
		c.form[field] = value
		delete(c.errs, field)
	}
	c.rev++
	return nil
}

// Next validates the current step and advances on success.
func (c *Controller) Next() error {
	switch c.step {
	case StepComplete:
		return ErrComplete
	case StepSummary:
		return ErrLastStep
	}
	if err := c.validate(c.step); err != nil {
		return err
	}
	c.step++
	c.rev++
	return nil
}

// Previous moves back one step without validation.
func (c *Controller) Previous() error {
	if c.Complete() {
		return ErrComplete
	}
	if c.step > StepProjectInfo {
		c.step--
		c.rev++
	}
	c.errs = nil
	return nil
}

// JumpTo moves backward freely. Moving forward validates every step from the
// current one up to target-1 and halts on the first invalid step.
func (c *Controller) JumpTo(target Step) error {
	if c.Complete() {
		return ErrComplete
	}
	if target < StepProjectInfo || target > StepSummary {
		return fmt.Errorf("%w: %d", ErrInvalidStep, int(target))
	}
	c.rev++
	if target <= c.step {
		c.step = target
		c.errs = nil
		return nil
	}
	for s := c.step; s < target; s++ {
		if err := c.validate(s); err != nil {
			c.step = s
			return err
		}
	}
	c.step = target
	return nil
}

// Pending is a validated submission captured from the controller. Run may be
// called without holding the lock that serializes the controller.
type Pending struct {
	study roi.Study
	est   Estimator
	delay time.Duration
	rev   uint64
}

func (p *Pending) Study() roi.Study { return p.study }

// Run waits the simulated delay, then runs the estimator. It does not touch
// the controller.
func (p *Pending) Run(ctx context.Context) (roi.Result, error) {
	if p.delay > 0 {
		t := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return roi.Result{}, ctx.Err()
		case <-t.C:
		}
	}
	return p.est.Estimate(ctx, p.study)
}

// BeginSubmit revalidates earlier steps, because fields may have changed
// after they were passed, and captures the study for the estimator selected
// by its mode. On failure the controller moves to the first invalid step.
func (c *Controller) BeginSubmit() (*Pending, error) {
	switch {
	case c.Complete():
		return nil, ErrComplete
	case c.step != StepSummary:
		return nil, ErrNotAtSummary
	}
	for s := StepProjectInfo; s < StepSummary; s++ {
		if err := c.validate(s); err != nil {
			c.step = s
			return nil, err
		}
	}
	study := c.form.Study()
	est := c.estimators[study.Project.Mode]
	if est == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEstimator, study.Project.Mode)
	}
	return &Pending{study: study, est: est, delay: c.delay, rev: c.rev}, nil
}

// Commit completes the study with the result computed for p. It fails with
// ErrStudyChanged if the controller was modified after BeginSubmit.
func (c *Controller) Commit(p *Pending, res roi.Result) error {
	if c.Complete() {
		return ErrComplete
	}
	if c.rev != p.rev || c.step != StepSummary {
		return ErrStudyChanged
	}
	c.result = &res
	c.step = StepComplete
	c.errs = nil
	c.rev++
	return nil
}

// Submit runs BeginSubmit, Run and Commit in one call.
func (c *Controller) Submit(ctx context.Context) (roi.Result, error) {
	p, err := c.BeginSubmit()
	if err != nil {
		return roi.Result{}, err
	}
	res, err := p.Run(ctx)
	if err != nil {
		return roi.Result{}, err
	}
	if err := c.Commit(p, res); err != nil {
		return roi.Result{}, err
	}
	return res, nil
}

// Reset discards every value and the result and returns to the first step.
func (c *Controller) Reset() {
	c.step = StepProjectInfo
	c.form = defaultForm()
	c.errs = nil
	c.result = nil
	c.rev++
}

func (c *Controller) validate(s Step) error {
	errs := steps[s].validate(c.form)
	if len(errs) > 0 {
		c.errs = errs
		return &ValidationError{Step: s, Fields: errs}
	}
	c.errs = nil
	return nil
}

// Summary is the derived totals view shown on the last steps.
type Summary struct {
	ProjectName        string      `json:"projectName"`
	ProjectDescription string      `json:"projectDescription,omitempty"`
	UseCase            roi.UseCase `json:"useCase"`
	Mode               roi.Mode    `json:"copilotMode"`
	TotalInvestment    float64     `json:"totalInvestment"`
	TotalAnnualBenefit float64     `json:"totalAnnualBenefit"`
}

type Snapshot struct {
	Step     Step        `json:"step"`
	StepName string      `json:"stepName"`
	Complete bool        `json:"complete"`
	Steps    []StepInfo  `json:"steps"`
	Values   Form        `json:"values"`
	Errors   FieldErrors `json:"errors,omitempty"`
	Summary  *Summary    `json:"summary,omitempty"`
	Result   *roi.Result `json:"result,omitempty"`
}

func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		Step:     c.step,
		StepName: c.step.String(),
		Complete: c.Complete(),
		Steps:    Steps(),
		Values:   c.form.clone(),
		Result:   c.Result(),
	}
	if len(c.errs) > 0 {
		snap.Errors = c.Errors()
	}
	if c.step >= StepSummary {
		study := c.form.Study()
		snap.Summary = &Summary{
			ProjectName:        study.Project.Name,
			ProjectDescription: study.Project.Description,
			UseCase:            study.Project.UseCase,
			Mode:               study.Project.Mode,
			TotalInvestment:    study.Costs.Total(),
			TotalAnnualBenefit: study.Benefits.Total(),
		}
	}
	return snap
}
