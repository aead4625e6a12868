package models

import "time"

// Progress is the completion state shown above the wizard
type Progress struct {
	Units        []WizardUnit `json:"units"`
	ReachedUnits []UnitID     `json:"reached_units"`
	Completed    int          `json:"completed"`
	Total        int          `json:"total"`
	Percent      int          `json:"percent"`
}

// VisibilityFlags tells which conditional sections are currently shown
type VisibilityFlags struct {
	AdvancedExperience bool `json:"advanced_experience"`
	Mentorship         bool `json:"mentorship"`
	Portfolio          bool `json:"portfolio"`
}

// WizardState is the full view of one wizard session
type WizardState struct {
	ID         string          `json:"id"`
	Route      string          `json:"route"`
	Data       FormData        `json:"data"`
	Visibility VisibilityFlags `json:"visibility"`
	Progress   Progress        `json:"progress"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Receipt is returned after a successful (simulated) submission
type Receipt struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submitted_at"`
	Data        FormData  `json:"data"`
}

// NextRequest optionally carries the values of the step being left
type NextRequest struct {
	Values *SectionPatch `json:"values,omitempty"`
}

// ResetRequest must carry an explicit confirmation
type ResetRequest struct {
	Confirm bool `json:"confirm"`
}

// EmailCheckRequest asks whether an email is still available
type EmailCheckRequest struct {
	Email string `json:"email"`
}

// EmailCheckResponse is the outcome of one uniqueness check.
// Stale is set when a newer check was started before this one finished;
// a stale result is not recorded.
type EmailCheckResponse struct {
	Email     string `json:"email"`
	Available bool   `json:"available"`
	Stale     bool   `json:"stale"`
	Sequence  uint64 `json:"sequence"`
	Message   string `json:"message,omitempty"`
}

// StepField is one field definition rendered on a step
type StepField struct {
	Name        string        `json:"name" yaml:"name"`
	Label       string        `json:"label" yaml:"label"`
	Type        string        `json:"type" yaml:"type"`
	Placeholder string        `json:"placeholder,omitempty" yaml:"placeholder"`
	Group       string        `json:"group" yaml:"group"`
	Options     []FieldOption `json:"options,omitempty" yaml:"options"`
}

// FieldOption is one choice of a select field
type FieldOption struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// StepView is what a client needs to render one step
type StepView struct {
	Step   string      `json:"step"`
	Route  string      `json:"route"`
	Title  string      `json:"title"`
	Fields []StepField `json:"fields"`
	Back   string      `json:"back,omitempty"`
	Next   string      `json:"next,omitempty"`
	State  WizardState `json:"state"`
}

// PatchResponse is returned after a section patch. FieldErrors lists
// fields of the patch that were rejected and left unchanged.
type PatchResponse struct {
	State       WizardState `json:"state"`
	FieldErrors FieldErrors `json:"field_errors,omitempty"`
}

// SubmitResponse is returned after a successful submission
type SubmitResponse struct {
	Receipt Receipt     `json:"receipt"`
	State   WizardState `json:"state"`
}
