package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/terra-clan/apply-wizard/internal/models"
)

var (
	ErrResetNotConfirmed = errors.New("reset requires explicit confirmation")
	ErrWrongStep         = errors.New("operation not allowed on the current step")
	ErrSubmitFailed      = errors.New("submission failed")
)

// DraftClearer removes the persisted draft of a wizard
type DraftClearer interface {
	Clear()
}

// ControllerOptions wires the collaborators of a Controller
type ControllerOptions struct {
	Email     *SequencedEmailCheck
	Submitter Submitter
	Drafts    DraftClearer
}

// Controller moves a wizard between steps. Forward moves are gated by
// the current step's validation; backward moves never are.
type Controller struct {
	store     *FormStore
	email     *SequencedEmailCheck
	submitter Submitter
	drafts    DraftClearer

	mu        sync.Mutex
	current   Step
	listeners []func(Step)
}

// NewController creates a controller positioned on startRoute.
// Unknown routes start on the first step.
func NewController(store *FormStore, startRoute string, opts ControllerOptions) *Controller {
	if opts.Email == nil {
		opts.Email = NewSequencedEmailCheck(SimulatedEmailChecker{})
	}
	if opts.Submitter == nil {
		opts.Submitter = SimulatedSubmitter{}
	}
	return &Controller{
		store:     store,
		email:     opts.Email,
		submitter: opts.Submitter,
		drafts:    opts.Drafts,
		current:   RouteOrDefault(startRoute),
	}
}

// Current returns the step being shown
func (c *Controller) Current() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnChange registers fn to be called after every route change
func (c *Controller) OnChange(fn func(Step)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Progress computes the progress bar for the current route and data
func (c *Controller) Progress() models.Progress {
	return CalculateProgress(c.Current().Route(), c.store.Snapshot())
}

// Next validates the current step and, on success, advances to the next one.
// values, when given, are applied to the step's section first, as a form
// submit would. The route does not change when validation fails.
func (c *Controller) Next(ctx context.Context, values *models.SectionPatch) (Step, error) {
	step := c.Current()
	next, ok := step.Next()
	if !ok {
		return step, fmt.Errorf("%w: %s has no next step", ErrWrongStep, step)
	}

	fieldErrs := models.FieldErrors{}
	if values != nil {
		section, _ := step.Section()
		if values.Section != section {
			return step, fmt.Errorf("%w: step %s edits %s, got %s", ErrWrongStep, step, section, values.Section)
		}
		patchErrs, err := c.store.Apply(*values)
		if err != nil {
			return step, err
		}
		fieldErrs.Merge(patchErrs)
	}

	if step == StepPreferences {
		c.store.Mutate(func(d *models.FormData) { d.PrunePortfolioURLs() })
	}

	data := c.store.Snapshot()
	fieldErrs.Merge(ValidateStep(step, data))
	if step == StepPersonal {
		c.checkEmail(ctx, data.PersonalInfo.Email, fieldErrs)
	}

	if len(fieldErrs) > 0 {
		return step, &ValidationError{Step: step, Fields: fieldErrs}
	}

	c.setStep(next)
	return next, nil
}

// Back returns to the previous step without validating. It is a no-op on
// the first step.
func (c *Controller) Back() Step {
	step := c.Current()
	prev, ok := step.Prev()
	if !ok {
		return step
	}
	c.setStep(prev)
	return prev
}

// Reset discards all answers and the stored draft and returns to the first
// step. It is destructive and refuses to run unless confirmed.
func (c *Controller) Reset(confirmed bool) error {
	if !confirmed {
		return ErrResetNotConfirmed
	}
	c.restart()
	return nil
}

// Submit sends the application from the review step. All steps are
// revalidated first; on success the draft is cleared and the wizard restarts.
func (c *Controller) Submit(ctx context.Context) (models.Receipt, error) {
	if step := c.Current(); step != StepReview {
		return models.Receipt{}, fmt.Errorf("%w: submit is only allowed on review, current step is %s", ErrWrongStep, step)
	}

	data := c.store.Snapshot()
	failed := ValidateAll(data)
	if _, invalid := failed[StepPersonal]; !invalid {
		emailErrs := models.FieldErrors{}
		c.checkEmail(ctx, data.PersonalInfo.Email, emailErrs)
		if len(emailErrs) > 0 {
			failed[StepPersonal] = emailErrs
		}
	}
	// the earliest failing step is reported
	for _, step := range Steps {
		if fieldErrs, ok := failed[step]; ok {
			return models.Receipt{}, &ValidationError{Step: step, Fields: fieldErrs}
		}
	}

	receipt, err := c.submitter.Submit(ctx, data)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	slog.Info("application submitted", "receipt_id", receipt.ID)
	c.restart()
	return receipt, nil
}

// CheckEmail runs an on-blur uniqueness check for the personal step
func (c *Controller) CheckEmail(ctx context.Context, email string) (models.EmailCheckResponse, error) {
	return c.email.Check(ctx, email)
}

func (c *Controller) checkEmail(ctx context.Context, email string, fieldErrs models.FieldErrors) {
	if _, exists := fieldErrs[emailFieldPath]; exists {
		return
	}
	available, err := c.email.Verify(ctx, email)
	if err != nil {
		slog.Warn("email uniqueness check failed", "error", err)
		fieldErrs.Add(emailFieldPath, EmailUnverifiedMessage)
		return
	}
	if !available {
		fieldErrs.Add(emailFieldPath, EmailTakenMessage)
	}
}

// restart resets the data, returns to the first step and clears the draft.
// Reset and setStep both trigger autosaves, so the clear must come after them.
func (c *Controller) restart() {
	c.store.Reset()
	c.email.Forget()
	c.setStep(StepPersonal)
	if c.drafts != nil {
		c.drafts.Clear()
	}
}

func (c *Controller) setStep(step Step) {
	c.mu.Lock()
	c.current = step
	fns := make([]func(Step), len(c.listeners))
	copy(fns, c.listeners)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(step)
	}
}
