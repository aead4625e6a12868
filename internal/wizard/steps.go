// Package wizard holds the decision logic of the job application wizard:
// which sections are visible, how far the applicant has progressed and
// how navigation between steps is gated.
package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/terra-clan/apply-wizard/internal/models"
)

// Step is one page of the wizard
type Step string

const (
	StepPersonal    Step = "personal"
	StepExperience  Step = "experience"
	StepPreferences Step = "preferences"
	StepReview      Step = "review"
)

const routePrefix = "/step/"

// ErrUnknownStep is returned for step names outside the wizard
var ErrUnknownStep = errors.New("unknown wizard step")

// Steps is the linear order of the wizard
var Steps = []Step{StepPersonal, StepExperience, StepPreferences, StepReview}

var stepTitles = map[Step]string{
	StepPersonal:    "Personal Information",
	StepExperience:  "Experience",
	StepPreferences: "Role Preferences",
	StepReview:      "Review & Submit",
}

// ParseStep validates a bare step name ("experience")
func ParseStep(name string) (Step, error) {
	s := Step(name)
	if s.index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, name)
	}
	return s, nil
}

// ParseRoute maps a route path ("/step/experience") to its step
func ParseRoute(route string) (Step, error) {
	if !strings.HasPrefix(route, routePrefix) {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, route)
	}
	return ParseStep(strings.TrimPrefix(route, routePrefix))
}

// RouteOrDefault returns the step for route, falling back to the first step
func RouteOrDefault(route string) Step {
	s, err := ParseRoute(route)
	if err != nil {
		return StepPersonal
	}
	return s
}

// Route returns the client-side path of the step
func (s Step) Route() string {
	return routePrefix + string(s)
}

// Title returns the heading shown on the step
func (s Step) Title() string {
	return stepTitles[s]
}

// Next returns the following step; ok is false on the last step
func (s Step) Next() (Step, bool) {
	i := s.index()
	if i < 0 || i == len(Steps)-1 {
		return "", false
	}
	return Steps[i+1], true
}

// Prev returns the preceding step; ok is false on the first step
func (s Step) Prev() (Step, bool) {
	i := s.index()
	if i <= 0 {
		return "", false
	}
	return Steps[i-1], true
}

// Section returns the form section edited on the step; review edits none
func (s Step) Section() (models.SectionName, bool) {
	switch s {
	case StepPersonal:
		return models.SectionPersonalInfo, true
	case StepExperience:
		return models.SectionExperience, true
	case StepPreferences:
		return models.SectionRolePreferences, true
	}
	return "", false
}

func (s Step) index() int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}
