package models

// DefaultStepRoute is where a wizard without a usable draft starts
const DefaultStepRoute = "/step/personal"

// DraftSnapshot is the persisted copy of an in-progress application
type DraftSnapshot struct {
	Data     FormData `json:"data"`
	LastStep string   `json:"lastStep"`
}

// DefaultDraft returns the snapshot of a wizard that has never been touched
func DefaultDraft() DraftSnapshot {
	return DraftSnapshot{
		Data:     DefaultFormData(),
		LastStep: DefaultStepRoute,
	}
}

// UnitID names one logical section used for progress accounting
type UnitID string

const (
	UnitPersonal  UnitID = "personal"
	UnitExpBase   UnitID = "expBase"
	UnitExpAdv    UnitID = "expAdv"
	UnitExpMentor UnitID = "expMentor"
	UnitRoleBase  UnitID = "roleBase"
	UnitPortfolio UnitID = "portfolio"
	UnitReview    UnitID = "review"
)

// WizardUnit is a derived, never persisted, progress unit
type WizardUnit struct {
	ID     UnitID `json:"id"`
	Active bool   `json:"active"`
}
