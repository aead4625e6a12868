package wizard

import (
	"sync"

	"github.com/terra-clan/apply-wizard/internal/models"
)

// Listener is notified with a private copy of the data after every change
type Listener func(models.FormData)

// FormStore is the single owner of a wizard's FormData.
// Steps read snapshots and write through tagged section patches only.
type FormStore struct {
	mu        sync.Mutex
	data      models.FormData
	listeners map[int]Listener
	nextID    int
}

// NewFormStore creates a store seeded with initial (typically a hydrated draft)
func NewFormStore(initial models.FormData) *FormStore {
	initial = initial.Clone()
	initial.Sanitize()
	return &FormStore{
		data:      initial,
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a copy of the current data
func (s *FormStore) Snapshot() models.FormData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// Apply merges patch into its section and notifies listeners.
// Listeners are not notified when the patch is rejected as a whole.
func (s *FormStore) Apply(patch models.SectionPatch) (models.FieldErrors, error) {
	s.mu.Lock()
	next := s.data.Clone()
	fieldErrs, err := patch.ApplyTo(&next)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.data = next
	s.mu.Unlock()

	s.notify()
	return fieldErrs, nil
}

// Mutate runs fn against the data under the store lock and notifies listeners.
// It is used for whole-form transformations such as pruning portfolio urls.
func (s *FormStore) Mutate(fn func(*models.FormData)) {
	s.mu.Lock()
	fn(&s.data)
	s.data.Sanitize()
	s.mu.Unlock()

	s.notify()
}

// Reset replaces the data with the built-in defaults
func (s *FormStore) Reset() {
	s.mu.Lock()
	s.data = models.DefaultFormData()
	s.mu.Unlock()

	s.notify()
}

// Subscribe registers fn and returns a function that removes it
func (s *FormStore) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *FormStore) notify() {
	s.mu.Lock()
	data := s.data.Clone()
	fns := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(data.Clone())
	}
}
