package models

import (
	"math"
	"strings"
)

// PreferredRole is the role the applicant is applying for
type PreferredRole string

const (
	RoleUnset     PreferredRole = ""
	RoleFrontend  PreferredRole = "frontend"
	RoleBackend   PreferredRole = "backend"
	RoleFullstack PreferredRole = "fullstack"
	RoleDevOps    PreferredRole = "devops"
)

// Valid reports whether the role is one of the selectable (non-empty) values
func (r PreferredRole) Valid() bool {
	switch r {
	case RoleFrontend, RoleBackend, RoleFullstack, RoleDevOps:
		return true
	}
	return false
}

// WorkLocationType is the preferred work mode
type WorkLocationType string

const (
	LocationUnset  WorkLocationType = ""
	LocationRemote WorkLocationType = "remote"
	LocationHybrid WorkLocationType = "hybrid"
	LocationOnsite WorkLocationType = "onsite"
)

// Valid reports whether the work mode is one of the selectable (non-empty) values
func (w WorkLocationType) Valid() bool {
	switch w {
	case LocationRemote, LocationHybrid, LocationOnsite:
		return true
	}
	return false
}

// PersonalInfo holds the answers of the personal step
type PersonalInfo struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Experience holds the answers of the experience step.
// Numeric answers are nil until the applicant provides a value.
type Experience struct {
	YearsOfExperience  *float64 `json:"yearsOfExperience"`
	CurrentRole        string   `json:"currentRole"`
	PrimaryTechStack   string   `json:"primaryTechStack"`
	ReactYears         *float64 `json:"reactYears"`
	TeamLeadExperience bool     `json:"teamLeadExperience"`
	Summary            string   `json:"summary"`
	MentorshipRequired bool     `json:"mentorshipRequired"`
}

// PortfolioURL is one entry of the repeatable portfolio list
type PortfolioURL struct {
	URL string `json:"url"`
}

// RolePreferences holds the answers of the preferences step
type RolePreferences struct {
	PreferredRole    PreferredRole    `json:"preferredRole"`
	WorkLocationType WorkLocationType `json:"workLocationType"`
	ExpectedSalary   *float64         `json:"expectedSalary"`
	OpenToRelocation bool             `json:"openToRelocation"`
	PortfolioURLs    []PortfolioURL   `json:"portfolioUrls"`
	Notes            string           `json:"notes"`
}

// FormData is the full job application across all sections
type FormData struct {
	PersonalInfo    PersonalInfo    `json:"personalInfo"`
	Experience      Experience      `json:"experience"`
	RolePreferences RolePreferences `json:"rolePreferences"`
}

// DefaultFormData returns the empty application a new wizard starts from
func DefaultFormData() FormData {
	return FormData{
		RolePreferences: RolePreferences{
			PortfolioURLs: []PortfolioURL{},
		},
	}
}

// Clone returns a deep copy that shares no memory with d
func (d FormData) Clone() FormData {
	out := d
	out.Experience.YearsOfExperience = cloneNumber(d.Experience.YearsOfExperience)
	out.Experience.ReactYears = cloneNumber(d.Experience.ReactYears)
	out.RolePreferences.ExpectedSalary = cloneNumber(d.RolePreferences.ExpectedSalary)
	out.RolePreferences.PortfolioURLs = make([]PortfolioURL, len(d.RolePreferences.PortfolioURLs))
	copy(out.RolePreferences.PortfolioURLs, d.RolePreferences.PortfolioURLs)
	return out
}

// Sanitize drops numbers that are not valid non-negative values so numeric
// answers are always either a usable number or unset.
func (d *FormData) Sanitize() {
	d.Experience.YearsOfExperience = validNumber(d.Experience.YearsOfExperience)
	d.Experience.ReactYears = validNumber(d.Experience.ReactYears)
	d.RolePreferences.ExpectedSalary = validNumber(d.RolePreferences.ExpectedSalary)
	if d.RolePreferences.PortfolioURLs == nil {
		d.RolePreferences.PortfolioURLs = []PortfolioURL{}
	}
}

// PrunePortfolioURLs removes blank entries and trims the remaining urls
func (d *FormData) PrunePortfolioURLs() {
	kept := make([]PortfolioURL, 0, len(d.RolePreferences.PortfolioURLs))
	for _, p := range d.RolePreferences.PortfolioURLs {
		u := strings.TrimSpace(p.URL)
		if u == "" {
			continue
		}
		kept = append(kept, PortfolioURL{URL: u})
	}
	d.RolePreferences.PortfolioURLs = kept
}

// Number returns a pointer to v, for building FormData literals
func Number(v float64) *float64 {
	return &v
}

// IsValidNumber reports whether v may be stored in a numeric answer
func IsValidNumber(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func validNumber(v *float64) *float64 {
	if v == nil || !IsValidNumber(*v) {
		return nil
	}
	return v
}

func cloneNumber(v *float64) *float64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
