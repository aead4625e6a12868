package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/terra-clan/apply-wizard/internal/drafts"
	"github.com/terra-clan/apply-wizard/internal/models"
	"github.com/terra-clan/apply-wizard/internal/schema"
	"github.com/terra-clan/apply-wizard/internal/wizard"
)

func newTestManager(t *testing.T) (*Manager, *drafts.MemoryStore) {
	t.Helper()
	catalog, err := schema.Default()
	require.NoError(t, err)

	store := drafts.NewMemoryStore()
	m := NewManager(store, catalog, Options{
		Email:        wizard.SimulatedEmailChecker{},
		WriteTimeout: time.Second,
	})
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m, store
}

func patch(t *testing.T, section models.SectionName, value string) models.SectionPatch {
	t.Helper()
	p := models.SectionPatch{Section: section, Value: json.RawMessage(value)}
	return p
}

func storedDraft(t *testing.T, store *drafts.MemoryStore, id string) (models.DraftSnapshot, bool) {
	t.Helper()
	raw, err := store.Get(context.Background(), drafts.Key(DefaultKeyPrefix, id))
	if err != nil {
		return models.DraftSnapshot{}, false
	}
	var snap models.DraftSnapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &snap))
	return snap, true
}

func walkToReview(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()

	personal := patch(t, models.SectionPersonalInfo, `{"fullName":"Ada Lovelace","email":"ada@example.com"}`)
	_, err := s.Next(ctx, &personal)
	require.NoError(t, err)

	experience := patch(t, models.SectionExperience, `{"yearsOfExperience":1,"currentRole":"Engineer","primaryTechStack":"Go"}`)
	_, err = s.Next(ctx, &experience)
	require.NoError(t, err)

	prefs := patch(t, models.SectionRolePreferences, `{"preferredRole":"backend","workLocationType":"remote"}`)
	state, err := s.Next(ctx, &prefs)
	require.NoError(t, err)
	require.Equal(t, "/step/review", state.Route)
}

func TestManager_CreateStoresInitialDraft(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	snap, ok := storedDraft(t, store, s.ID())
	require.True(t, ok)
	assert.Equal(t, models.DefaultDraft(), snap)

	again, err := m.Open(ctx, s.ID())
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, 1, m.Len())
}

func TestManager_OpenUnknown(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Open(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = m.Open(ctx, "7b0e7f43-4a5d-4f59-9a58-6f1d2f0f7c11")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_ResumesFromDraft(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	personal := patch(t, models.SectionPersonalInfo, `{"fullName":"Grace Hopper","email":"grace@example.com"}`)
	_, err = s.Next(ctx, &personal)
	require.NoError(t, err)
	_, _, err = s.Patch(patch(t, models.SectionExperience, `{"yearsOfExperience":5}`))
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx, s.ID()))
	assert.Zero(t, m.Len())

	snap, ok := storedDraft(t, store, s.ID())
	require.True(t, ok)
	assert.Equal(t, "/step/experience", snap.LastStep)

	resumed, err := m.Open(ctx, s.ID())
	require.NoError(t, err)
	assert.NotSame(t, s, resumed)

	state, err := resumed.State()
	require.NoError(t, err)
	assert.Equal(t, "/step/experience", state.Route)
	assert.Equal(t, "Grace Hopper", state.Data.PersonalInfo.FullName)
	require.NotNil(t, state.Data.Experience.YearsOfExperience)
	assert.Equal(t, 5.0, *state.Data.Experience.YearsOfExperience)
	assert.True(t, state.Visibility.AdvancedExperience)
}

func TestManager_ResumeFromMalformedDraftUsesDefaults(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	id := "0d6f3c1e-2b7a-4f1e-8f43-5a2c9b7e1d20"
	require.NoError(t, store.Set(ctx, drafts.Key(DefaultKeyPrefix, id), "{broken"))

	s, err := m.Open(ctx, id)
	require.NoError(t, err)

	state, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultStepRoute, state.Route)
	assert.Equal(t, models.DefaultFormData(), state.Data)
}

func TestSession_PatchIsAutosaved(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	state, fieldErrs, err := s.Patch(patch(t, models.SectionExperience, `{"yearsOfExperience":-1,"currentRole":"Engineer"}`))
	require.NoError(t, err)
	assert.Contains(t, fieldErrs, "experience.yearsOfExperience")
	assert.Nil(t, state.Data.Experience.YearsOfExperience)
	assert.Equal(t, "Engineer", state.Data.Experience.CurrentRole)

	require.NoError(t, s.Flush(ctx))
	snap, ok := storedDraft(t, store, s.ID())
	require.True(t, ok)
	assert.Equal(t, "Engineer", snap.Data.Experience.CurrentRole)
	assert.Equal(t, "/step/personal", snap.LastStep)
	assert.Zero(t, s.DraftFailures())
}

func TestSession_NextBlockedByValidation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	values := patch(t, models.SectionPersonalInfo, `{"fullName":"A","email":"nope"}`)
	state, err := s.Next(ctx, &values)

	var verr *wizard.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "personalInfo.fullName")
	assert.Contains(t, verr.Fields, "personalInfo.email")
	assert.Equal(t, "/step/personal", state.Route)
	assert.Equal(t, "A", state.Data.PersonalInfo.FullName)
}

func TestSession_BackNeverValidates(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	walkToReview(t, s)

	_, _, err = s.Patch(patch(t, models.SectionPersonalInfo, `{"fullName":""}`))
	require.NoError(t, err)

	state, err := s.Back()
	require.NoError(t, err)
	assert.Equal(t, "/step/preferences", state.Route)
}

func TestSession_ResetRequiresConfirmation(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	walkToReview(t, s)

	_, err = s.Reset(false)
	assert.ErrorIs(t, err, wizard.ErrResetNotConfirmed)

	state, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, "/step/review", state.Route)
	assert.Equal(t, "Ada Lovelace", state.Data.PersonalInfo.FullName)

	state, err = s.Reset(true)
	require.NoError(t, err)
	assert.Equal(t, "/step/personal", state.Route)
	assert.Equal(t, models.DefaultFormData(), state.Data)

	require.NoError(t, s.Flush(ctx))
	_, ok := storedDraft(t, store, s.ID())
	assert.False(t, ok, "reset must leave no draft behind")
}

func TestSession_SubmitClearsDraftAndPublishes(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = s.Submit(ctx)
	assert.ErrorIs(t, err, wizard.ErrWrongStep)

	walkToReview(t, s)

	events, stop := s.Subscribe()
	defer stop()

	receipt, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, "Ada Lovelace", receipt.Data.PersonalInfo.FullName)

	var types []string
	var last Event
	for len(events) > 0 {
		require.NoError(t, json.Unmarshal(<-events, &last))
		types = append(types, last.Type)
	}
	assert.Equal(t, []string{EventState, EventState, EventSubmitted}, types)
	require.NotNil(t, last.Receipt)
	assert.Equal(t, receipt.ID, last.Receipt.ID)

	route, err := s.Route()
	require.NoError(t, err)
	assert.Equal(t, "/step/personal", route)

	require.NoError(t, s.Flush(ctx))
	_, ok := storedDraft(t, store, s.ID())
	assert.False(t, ok)
}

func TestSession_StateEventsCarryProgress(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	events, stop := s.Subscribe()
	defer stop()

	_, _, err = s.Patch(patch(t, models.SectionExperience, `{"yearsOfExperience":3}`))
	require.NoError(t, err)

	var evt Event
	require.NoError(t, json.Unmarshal(<-events, &evt))
	assert.Equal(t, EventState, evt.Type)
	require.NotNil(t, evt.State)
	assert.True(t, evt.State.Visibility.AdvancedExperience)
	assert.Equal(t, 5, evt.State.Progress.Total)
	assert.Equal(t, 20, evt.State.Progress.Percent)
}

func TestSession_StepView(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	view, err := s.StepView(wizard.StepExperience)
	require.NoError(t, err)
	assert.Equal(t, "/step/experience", view.Route)
	assert.Equal(t, "/step/personal", view.Back)
	assert.Equal(t, "/step/preferences", view.Next)
	assert.Len(t, view.Fields, 3)
	assert.Equal(t, "/step/personal", view.State.Route, "viewing a step does not navigate")

	_, _, err = s.Patch(patch(t, models.SectionExperience, `{"yearsOfExperience":2}`))
	require.NoError(t, err)

	view, err = s.StepView(wizard.StepExperience)
	require.NoError(t, err)
	assert.Len(t, view.Fields, 6)

	review, err := s.StepView(wizard.StepReview)
	require.NoError(t, err)
	assert.Empty(t, review.Next)
	assert.Empty(t, review.Fields)
}

func TestSession_CheckEmail(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	resp, err := s.CheckEmail(ctx, "test@example.com")
	require.NoError(t, err)
	assert.False(t, resp.Available)
	assert.Equal(t, wizard.EmailTakenMessage, resp.Message)

	resp, err = s.CheckEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, resp.Available)
	assert.Greater(t, resp.Sequence, uint64(1))
}

func TestManager_SweepReleasesIdleSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	catalog, err := schema.Default()
	require.NoError(t, err)
	store := drafts.NewMemoryStore()
	m := NewManager(store, catalog, Options{Email: wizard.SimulatedEmailChecker{}})
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = m.Create(ctx)
	require.NoError(t, err)

	assert.Zero(t, m.Sweep(ctx, time.Hour))
	time.Sleep(time.Millisecond)
	assert.Equal(t, 2, m.Sweep(ctx, 0))
	assert.Zero(t, m.Len())

	_, err = s.State()
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.CheckEmail(ctx, "a@b.co")
	assert.ErrorIs(t, err, ErrSessionClosed)

	assert.ErrorIs(t, m.Close(ctx, s.ID()), ErrSessionNotFound)

	resumed, err := m.Open(ctx, s.ID())
	require.NoError(t, err)
	m.Shutdown(ctx)
	_, err = resumed.State()
	assert.ErrorIs(t, err, ErrSessionClosed)
}
