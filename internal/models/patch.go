package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SectionName identifies one top-level section of FormData
type SectionName string

const (
	SectionPersonalInfo    SectionName = "personalInfo"
	SectionExperience      SectionName = "experience"
	SectionRolePreferences SectionName = "rolePreferences"
)

var (
	ErrUnknownSection = errors.New("unknown form section")
	ErrInvalidPatch   = errors.New("invalid section patch")
)

// ParseSection validates a section name
func ParseSection(s string) (SectionName, error) {
	switch SectionName(s) {
	case SectionPersonalInfo, SectionExperience, SectionRolePreferences:
		return SectionName(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, s)
}

// FieldErrors maps a field path ("experience.yearsOfExperience") to a message
type FieldErrors map[string]string

// Add records msg for field unless the field already has an error
func (fe FieldErrors) Add(field, msg string) {
	if _, exists := fe[field]; !exists {
		fe[field] = msg
	}
}

// Merge copies all errors of other into fe
func (fe FieldErrors) Merge(other FieldErrors) {
	for k, v := range other {
		fe.Add(k, v)
	}
}

// SectionPatch replaces some fields of exactly one section.
// Fields absent from Value are left untouched.
type SectionPatch struct {
	Section SectionName     `json:"section"`
	Value   json.RawMessage `json:"value"`
}

// NewPatch builds a patch for section from any JSON-encodable value
func NewPatch(section SectionName, value any) (SectionPatch, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return SectionPatch{}, fmt.Errorf("failed to encode patch value: %w", err)
	}
	return SectionPatch{Section: section, Value: raw}, nil
}

// OptionalNumber distinguishes an absent numeric field from an explicit null
type OptionalNumber struct {
	Set   bool
	Value *float64
}

// UnmarshalJSON accepts a number, null, an empty string (null) or a numeric string
func (o *OptionalNumber) UnmarshalJSON(b []byte) error {
	o.Set = true
	o.Value = nil

	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		o.Value = &v
		return nil
	}

	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type personalInfoPatch struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
}

type experiencePatch struct {
	YearsOfExperience  OptionalNumber `json:"yearsOfExperience"`
	CurrentRole        *string        `json:"currentRole"`
	PrimaryTechStack   *string        `json:"primaryTechStack"`
	ReactYears         OptionalNumber `json:"reactYears"`
	TeamLeadExperience *bool          `json:"teamLeadExperience"`
	Summary            *string        `json:"summary"`
	MentorshipRequired *bool          `json:"mentorshipRequired"`
}

type rolePreferencesPatch struct {
	PreferredRole    *PreferredRole    `json:"preferredRole"`
	WorkLocationType *WorkLocationType `json:"workLocationType"`
	ExpectedSalary   OptionalNumber    `json:"expectedSalary"`
	OpenToRelocation *bool             `json:"openToRelocation"`
	PortfolioURLs    *[]PortfolioURL   `json:"portfolioUrls"`
	Notes            *string           `json:"notes"`
}

// ApplyTo merges the patch into the named section of d.
// A structurally invalid patch returns an error and leaves d unchanged.
// Numeric fields carrying a negative or non-finite value are skipped and
// reported in the returned FieldErrors while the rest of the patch applies.
func (p SectionPatch) ApplyTo(d *FormData) (FieldErrors, error) {
	if _, err := ParseSection(string(p.Section)); err != nil {
		return nil, err
	}

	fieldErrs := FieldErrors{}
	switch p.Section {
	case SectionPersonalInfo:
		var v personalInfoPatch
		if err := decodeStrict(p.Value, &v); err != nil {
			return nil, err
		}
		setString(&d.PersonalInfo.FullName, v.FullName)
		setString(&d.PersonalInfo.Email, v.Email)

	case SectionExperience:
		var v experiencePatch
		if err := decodeStrict(p.Value, &v); err != nil {
			return nil, err
		}
		e := &d.Experience
		setNumber(&e.YearsOfExperience, v.YearsOfExperience, "experience.yearsOfExperience", "Years of experience must be 0 or greater", fieldErrs)
		setString(&e.CurrentRole, v.CurrentRole)
		setString(&e.PrimaryTechStack, v.PrimaryTechStack)
		setNumber(&e.ReactYears, v.ReactYears, "experience.reactYears", "React years must be 0 or greater", fieldErrs)
		setBool(&e.TeamLeadExperience, v.TeamLeadExperience)
		setString(&e.Summary, v.Summary)
		setBool(&e.MentorshipRequired, v.MentorshipRequired)

	case SectionRolePreferences:
		var v rolePreferencesPatch
		if err := decodeStrict(p.Value, &v); err != nil {
			return nil, err
		}
		rp := &d.RolePreferences
		if v.PreferredRole != nil {
			rp.PreferredRole = *v.PreferredRole
		}
		if v.WorkLocationType != nil {
			rp.WorkLocationType = *v.WorkLocationType
		}
		setNumber(&rp.ExpectedSalary, v.ExpectedSalary, "rolePreferences.expectedSalary", "Salary must be 0 or greater", fieldErrs)
		setBool(&rp.OpenToRelocation, v.OpenToRelocation)
		if v.PortfolioURLs != nil {
			urls := make([]PortfolioURL, len(*v.PortfolioURLs))
			copy(urls, *v.PortfolioURLs)
			rp.PortfolioURLs = urls
		}
		setString(&rp.Notes, v.Notes)
	}

	return fieldErrs, nil
}

func decodeStrict(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: empty value", ErrInvalidPatch)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setNumber(dst **float64, src OptionalNumber, field, msg string, errs FieldErrors) {
	if !src.Set {
		return
	}
	if src.Value == nil {
		*dst = nil
		return
	}
	if !IsValidNumber(*src.Value) {
		errs.Add(field, msg)
		return
	}
	v := *src.Value
	*dst = &v
}
