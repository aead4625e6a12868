package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/terra-clan/apply-wizard/internal/drafts"
	"github.com/terra-clan/apply-wizard/internal/models"
	"github.com/terra-clan/apply-wizard/internal/schema"
	"github.com/terra-clan/apply-wizard/internal/wizard"
)

// ErrSessionClosed is returned by operations on a session that was released
var ErrSessionClosed = errors.New("wizard session closed")

// Event types published on a session's hub
const (
	EventState     = "state"
	EventSubmitted = "submitted"
)

// Event is the message streamed to subscribers of a session
type Event struct {
	Type    string              `json:"type"`
	State   *models.WizardState `json:"state,omitempty"`
	Receipt *models.Receipt     `json:"receipt,omitempty"`
}

// Session is one open wizard. All operations except the on-blur email
// check run one at a time.
type Session struct {
	id      string
	catalog *schema.Catalog

	form      *wizard.FormStore
	ctrl      *wizard.Controller
	autosaver *drafts.Autosaver
	hub       *Hub

	// mu serializes operations; updatedAt and closed are guarded by it
	mu        sync.Mutex
	updatedAt time.Time
	closed    bool

	lastActive atomic.Int64
}

type sessionDeps struct {
	catalog   *schema.Catalog
	adapter   *drafts.Adapter
	email     wizard.EmailChecker
	submitter wizard.Submitter
	timeout   time.Duration
}

func newSession(id string, snap models.DraftSnapshot, deps sessionDeps) *Session {
	s := &Session{
		id:        id,
		catalog:   deps.catalog,
		form:      wizard.NewFormStore(snap.Data),
		autosaver: drafts.NewAutosaver(deps.adapter, deps.timeout),
		hub:       NewHub(),
		updatedAt: time.Now().UTC(),
	}
	s.ctrl = wizard.NewController(s.form, snap.LastStep, wizard.ControllerOptions{
		Email:     wizard.NewSequencedEmailCheck(deps.email),
		Submitter: deps.submitter,
		Drafts:    s.autosaver,
	})

	s.form.Subscribe(func(data models.FormData) {
		s.changed(data, s.ctrl.Current())
	})
	s.ctrl.OnChange(func(step wizard.Step) {
		s.changed(s.form.Snapshot(), step)
	})

	s.touch()
	return s
}

// ID returns the wizard id
func (s *Session) ID() string {
	return s.id
}

// changed runs synchronously inside the operation that caused the change
func (s *Session) changed(data models.FormData, step wizard.Step) {
	s.updatedAt = time.Now().UTC()
	s.autosaver.Save(models.DraftSnapshot{Data: data, LastStep: step.Route()})

	state := s.buildState(data, step)
	s.publish(Event{Type: EventState, State: &state})
}

func (s *Session) publish(evt Event) {
	raw, err := json.Marshal(evt)
	if err != nil {
		slog.Error("failed to encode wizard event", "id", s.id, "error", err)
		return
	}
	s.hub.Publish(raw)
}

func (s *Session) buildState(data models.FormData, step wizard.Step) models.WizardState {
	route := step.Route()
	return models.WizardState{
		ID:         s.id,
		Route:      route,
		Data:       data,
		Visibility: wizard.EvaluateVisibility(data).Flags(),
		Progress:   wizard.CalculateProgress(route, data),
		UpdatedAt:  s.updatedAt,
	}
}

func (s *Session) stateLocked() models.WizardState {
	return s.buildState(s.form.Snapshot(), s.ctrl.Current())
}

func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.touch()
	return nil
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns when the session last served an operation
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// State returns the current view of the wizard
func (s *Session) State() (models.WizardState, error) {
	if err := s.lock(); err != nil {
		return models.WizardState{}, err
	}
	defer s.mu.Unlock()
	return s.stateLocked(), nil
}

// Route returns the route of the current step
func (s *Session) Route() (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()
	return s.ctrl.Current().Route(), nil
}

// Patch merges a section patch into the answers. Fields rejected by the
// numeric invariant are reported while the rest of the patch is stored.
func (s *Session) Patch(patch models.SectionPatch) (models.WizardState, models.FieldErrors, error) {
	if err := s.lock(); err != nil {
		return models.WizardState{}, nil, err
	}
	defer s.mu.Unlock()

	fieldErrs, err := s.form.Apply(patch)
	if err != nil {
		return models.WizardState{}, nil, err
	}
	return s.stateLocked(), fieldErrs, nil
}

// Next validates the current step and advances on success
func (s *Session) Next(ctx context.Context, values *models.SectionPatch) (models.WizardState, error) {
	if err := s.lock(); err != nil {
		return models.WizardState{}, err
	}
	defer s.mu.Unlock()

	if _, err := s.ctrl.Next(ctx, values); err != nil {
		return s.stateLocked(), err
	}
	return s.stateLocked(), nil
}

// Back returns to the previous step without validation
func (s *Session) Back() (models.WizardState, error) {
	if err := s.lock(); err != nil {
		return models.WizardState{}, err
	}
	defer s.mu.Unlock()

	s.ctrl.Back()
	return s.stateLocked(), nil
}

// Reset discards the answers and the draft when confirmed
func (s *Session) Reset(confirmed bool) (models.WizardState, error) {
	if err := s.lock(); err != nil {
		return models.WizardState{}, err
	}
	defer s.mu.Unlock()

	if err := s.ctrl.Reset(confirmed); err != nil {
		return models.WizardState{}, err
	}
	return s.stateLocked(), nil
}

// Submit sends the application from the review step
func (s *Session) Submit(ctx context.Context) (models.Receipt, error) {
	if err := s.lock(); err != nil {
		return models.Receipt{}, err
	}
	defer s.mu.Unlock()

	receipt, err := s.ctrl.Submit(ctx)
	if err != nil {
		return models.Receipt{}, err
	}
	s.publish(Event{Type: EventSubmitted, Receipt: &receipt})
	return receipt, nil
}

// CheckEmail runs the on-blur uniqueness check. It does not wait for other
// operations, so several checks may be in flight; only the newest counts.
func (s *Session) CheckEmail(ctx context.Context, email string) (models.EmailCheckResponse, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return models.EmailCheckResponse{}, ErrSessionClosed
	}
	s.touch()
	return s.ctrl.CheckEmail(ctx, email)
}

// StepView describes what to render for step along with the current state.
// Viewing a step does not navigate to it.
func (s *Session) StepView(step wizard.Step) (models.StepView, error) {
	if err := s.lock(); err != nil {
		return models.StepView{}, err
	}
	defer s.mu.Unlock()

	state := s.stateLocked()
	view := models.StepView{
		Step:   string(step),
		Route:  step.Route(),
		Title:  step.Title(),
		Fields: s.catalog.VisibleFields(step, state.Data),
		State:  state,
	}
	if def, ok := s.catalog.Step(step); ok && def.Title != "" {
		view.Title = def.Title
	}
	if prev, ok := step.Prev(); ok {
		view.Back = prev.Route()
	}
	if next, ok := step.Next(); ok {
		view.Next = next.Route()
	}
	return view, nil
}

// Subscribe streams events of the session. The returned function must be
// called to stop receiving.
func (s *Session) Subscribe() (<-chan []byte, func()) {
	ch := s.hub.Subscribe()
	return ch, func() { s.hub.Unsubscribe(ch) }
}

// Flush waits for queued draft writes
func (s *Session) Flush(ctx context.Context) error {
	return s.autosaver.Flush(ctx)
}

// DraftFailures returns how many draft writes have failed
func (s *Session) DraftFailures() int64 {
	return s.autosaver.Failures()
}

// close flushes pending draft writes and releases the session
func (s *Session) close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.autosaver.Flush(ctx); err != nil {
		slog.Warn("failed to flush draft before close", "id", s.id, "error", err)
	}
	s.autosaver.Close()
	s.hub.Close()
}
