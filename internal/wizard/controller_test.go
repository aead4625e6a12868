package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/apply-wizard/internal/models"
)

type recordingDrafts struct {
	events *[]string
}

func (r recordingDrafts) Clear() {
	*r.events = append(*r.events, "clear")
}

type failingSubmitter struct{}

func (failingSubmitter) Submit(context.Context, models.FormData) (models.Receipt, error) {
	return models.Receipt{}, errors.New("backend unavailable")
}

type harness struct {
	store  *FormStore
	ctrl   *Controller
	events []string
}

func newHarness(t *testing.T, initial models.FormData, route string, submitter Submitter) *harness {
	t.Helper()
	h := &harness{store: NewFormStore(initial)}
	h.ctrl = NewController(h.store, route, ControllerOptions{
		Email:     NewSequencedEmailCheck(SimulatedEmailChecker{}),
		Submitter: submitter,
		Drafts:    recordingDrafts{events: &h.events},
	})
	h.store.Subscribe(func(models.FormData) { h.events = append(h.events, "data") })
	h.ctrl.OnChange(func(s Step) { h.events = append(h.events, "route:"+string(s)) })
	return h
}

func TestController_StartsOnRoute(t *testing.T) {
	h := newHarness(t, models.DefaultFormData(), "/step/preferences", nil)
	assert.Equal(t, StepPreferences, h.ctrl.Current())

	h = newHarness(t, models.DefaultFormData(), "/nowhere", nil)
	assert.Equal(t, StepPersonal, h.ctrl.Current())
}

func TestController_NextBlockedByValidation(t *testing.T) {
	h := newHarness(t, models.DefaultFormData(), StepPersonal.Route(), nil)
	before := h.ctrl.Progress()

	step, err := h.ctrl.Next(context.Background(), nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepPersonal, verr.Step)
	assert.Contains(t, verr.Fields, "personalInfo.fullName")
	assert.Equal(t, StepPersonal, step)
	assert.Equal(t, StepPersonal, h.ctrl.Current())
	assert.Equal(t, before, h.ctrl.Progress())
}

func TestController_NextAppliesValuesAndAdvances(t *testing.T) {
	h := newHarness(t, models.DefaultFormData(), StepPersonal.Route(), nil)
	values := rawPatch(models.SectionPersonalInfo, `{"fullName": "Ada Lovelace", "email": "ada@example.com"}`)

	step, err := h.ctrl.Next(context.Background(), &values)
	require.NoError(t, err)

	assert.Equal(t, StepExperience, step)
	assert.Equal(t, "Ada Lovelace", h.store.Snapshot().PersonalInfo.FullName)
	assert.Equal(t, 50, h.ctrl.Progress().Percent)
}

func TestController_NextRejectsTakenEmail(t *testing.T) {
	h := newHarness(t, models.DefaultFormData(), StepPersonal.Route(), nil)
	values := rawPatch(models.SectionPersonalInfo, `{"fullName": "Ada Lovelace", "email": "test@example.com"}`)

	_, err := h.ctrl.Next(context.Background(), &values)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, EmailTakenMessage, verr.Fields["personalInfo.email"])
	assert.Equal(t, StepPersonal, h.ctrl.Current())
	// the answer is stored even though the step did not advance
	assert.Equal(t, "test@example.com", h.store.Snapshot().PersonalInfo.Email)
}

func TestController_NextUnverifiableEmail(t *testing.T) {
	store := NewFormStore(validData())
	ctrl := NewController(store, StepPersonal.Route(), ControllerOptions{
		Email: NewSequencedEmailCheck(&countingChecker{err: errors.New("timeout")}),
	})

	_, err := ctrl.Next(context.Background(), nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, EmailUnverifiedMessage, verr.Fields["personalInfo.email"])
}

func TestController_NextNegativeNumberIsFieldError(t *testing.T) {
	h := newHarness(t, validData(), StepExperience.Route(), nil)
	values := rawPatch(models.SectionExperience, `{"reactYears": -1}`)

	_, err := h.ctrl.Next(context.Background(), &values)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "React years must be 0 or greater", verr.Fields["experience.reactYears"])
	assert.Equal(t, StepExperience, h.ctrl.Current())
}

func TestController_NextWrongSection(t *testing.T) {
	h := newHarness(t, validData(), StepPersonal.Route(), nil)
	values := rawPatch(models.SectionExperience, `{"currentRole": "x"}`)

	_, err := h.ctrl.Next(context.Background(), &values)
	assert.ErrorIs(t, err, ErrWrongStep)
}

func TestController_NextOnReview(t *testing.T) {
	h := newHarness(t, validData(), StepReview.Route(), nil)

	_, err := h.ctrl.Next(context.Background(), nil)
	assert.ErrorIs(t, err, ErrWrongStep)
	assert.Equal(t, StepReview, h.ctrl.Current())
}

func TestController_PreferencesPrunesBlankURLs(t *testing.T) {
	data := validData()
	h := newHarness(t, data, StepPreferences.Route(), nil)
	values := rawPatch(models.SectionRolePreferences, `{"portfolioUrls": [{"url": " "}, {"url": "https://ada.dev "}, {"url": ""}]}`)

	step, err := h.ctrl.Next(context.Background(), &values)
	require.NoError(t, err)

	assert.Equal(t, StepReview, step)
	assert.Equal(t, []models.PortfolioURL{{URL: "https://ada.dev"}}, h.store.Snapshot().RolePreferences.PortfolioURLs)
}

func TestController_BackIsUnconditional(t *testing.T) {
	h := newHarness(t, models.DefaultFormData(), StepExperience.Route(), nil)

	assert.Equal(t, StepPersonal, h.ctrl.Back())
	assert.Equal(t, StepPersonal, h.ctrl.Back())
	assert.Equal(t, []string{"route:personal"}, h.events)
}

func TestController_ResetRequiresConfirmation(t *testing.T) {
	h := newHarness(t, validData(), StepPreferences.Route(), nil)

	err := h.ctrl.Reset(false)

	assert.ErrorIs(t, err, ErrResetNotConfirmed)
	assert.Equal(t, validData(), h.store.Snapshot())
	assert.Equal(t, StepPreferences, h.ctrl.Current())
	assert.Empty(t, h.events)
}

func TestController_Reset(t *testing.T) {
	h := newHarness(t, validData(), StepPreferences.Route(), nil)

	require.NoError(t, h.ctrl.Reset(true))

	assert.Equal(t, models.DefaultFormData(), h.store.Snapshot())
	assert.Equal(t, StepPersonal, h.ctrl.Current())
	assert.Equal(t, []string{"data", "route:personal", "clear"}, h.events)
}

func TestController_FullWalkAndSubmit(t *testing.T) {
	h := newHarness(t, models.DefaultFormData(), StepPersonal.Route(), SimulatedSubmitter{})
	ctx := context.Background()

	steps := []models.SectionPatch{
		rawPatch(models.SectionPersonalInfo, `{"fullName": "Ada Lovelace", "email": "ada@example.com"}`),
		rawPatch(models.SectionExperience, `{"yearsOfExperience": 5, "currentRole": "Engineer", "primaryTechStack": "React", "reactYears": 4}`),
		rawPatch(models.SectionRolePreferences, `{"preferredRole": "frontend", "workLocationType": "hybrid", "portfolioUrls": [{"url": "https://ada.dev"}]}`),
	}
	percents := []int{h.ctrl.Progress().Percent}
	for i := range steps {
		_, err := h.ctrl.Next(ctx, &steps[i])
		require.NoError(t, err, "step %d", i)
		percents = append(percents, h.ctrl.Progress().Percent)
	}
	assert.Equal(t, StepReview, h.ctrl.Current())
	assert.Equal(t, []int{25, 50, 80, 100}, percents)

	receipt, err := h.ctrl.Submit(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, "Ada Lovelace", receipt.Data.PersonalInfo.FullName)
	assert.Equal(t, models.DefaultFormData(), h.store.Snapshot())
	assert.Equal(t, StepPersonal, h.ctrl.Current())
	assert.Equal(t, "clear", h.events[len(h.events)-1])
}

func TestController_SubmitOutsideReview(t *testing.T) {
	h := newHarness(t, validData(), StepPreferences.Route(), nil)

	_, err := h.ctrl.Submit(context.Background())
	assert.ErrorIs(t, err, ErrWrongStep)
}

func TestController_SubmitRevalidates(t *testing.T) {
	data := validData()
	data.Experience.CurrentRole = ""
	h := newHarness(t, data, StepReview.Route(), nil)

	_, err := h.ctrl.Submit(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepExperience, verr.Step)
	assert.Equal(t, StepReview, h.ctrl.Current())
}

func TestController_SubmitRechecksEmail(t *testing.T) {
	data := validData()
	data.PersonalInfo.Email = "test@example.com"
	data.RolePreferences.WorkLocationType = models.LocationUnset
	h := newHarness(t, data, StepReview.Route(), SimulatedSubmitter{})

	_, err := h.ctrl.Submit(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepPersonal, verr.Step)
	assert.Equal(t, EmailTakenMessage, verr.Fields["personalInfo.email"])
	assert.NotContains(t, h.events, "clear")
}

func TestController_SubmitFailureKeepsData(t *testing.T) {
	h := newHarness(t, validData(), StepReview.Route(), failingSubmitter{})

	_, err := h.ctrl.Submit(context.Background())

	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.Equal(t, validData(), h.store.Snapshot())
	assert.Equal(t, StepReview, h.ctrl.Current())
	assert.NotContains(t, h.events, "clear")
}
