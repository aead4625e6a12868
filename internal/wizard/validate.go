package wizard

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/terra-clan/apply-wizard/internal/models"
)

// ValidationError carries the per-field messages that blocked a step
type ValidationError struct {
	Step   Step
	Fields models.FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on step %s: %d field(s)", e.Step, len(e.Fields))
}

type personalRules struct {
	FullName string `json:"fullName" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
}

type experienceRules struct {
	YearsOfExperience *float64 `json:"yearsOfExperience" validate:"required,gte=0"`
	CurrentRole       string   `json:"currentRole" validate:"required,max=100"`
	PrimaryTechStack  string   `json:"primaryTechStack" validate:"required,max=200"`
}

type advancedExperienceRules struct {
	ReactYears *float64 `json:"reactYears" validate:"omitempty,gte=0"`
	Summary    string   `json:"summary" validate:"max=2000"`
}

type preferencesRules struct {
	PreferredRole    string   `json:"preferredRole" validate:"required,oneof=frontend backend fullstack devops"`
	WorkLocationType string   `json:"workLocationType" validate:"required,oneof=remote hybrid onsite"`
	ExpectedSalary   *float64 `json:"expectedSalary" validate:"omitempty,gte=0"`
	Notes            string   `json:"notes" validate:"max=2000"`
}

type portfolioRules struct {
	PortfolioURLs []portfolioURLRule `json:"portfolioUrls" validate:"dive"`
}

type portfolioURLRule struct {
	URL string `json:"url" validate:"max=500"`
}

// messages is keyed by "<json field>.<tag>"
var messages = map[string]string{
	"fullName.required":          "Full name is required",
	"fullName.min":               "Full name must be at least 2 characters",
	"fullName.max":               "Full name is too long",
	"email.required":             "Email is required",
	"email.email":                "Please enter a valid email address",
	"yearsOfExperience.required": "Years of experience is required",
	"yearsOfExperience.gte":      "Years of experience must be 0 or greater",
	"currentRole.required":       "Current role is required",
	"currentRole.max":            "Current role is too long",
	"primaryTechStack.required":  "Primary tech stack is required",
	"primaryTechStack.max":       "Tech stack description is too long",
	"reactYears.gte":             "React years must be 0 or greater",
	"summary.max":                "Summary is too long",
	"preferredRole.required":     "Preferred role is required",
	"preferredRole.oneof":        "Preferred role is required",
	"workLocationType.required":  "Work mode is required",
	"workLocationType.oneof":     "Work mode is required",
	"expectedSalary.gte":         "Salary must be 0 or greater",
	"notes.max":                  "Notes are too long",
	"url.max":                    "URL is too long",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStep runs the synchronous rules of step against data.
// Fields of sections hidden by the visibility rules are not validated.
func ValidateStep(step Step, data models.FormData) models.FieldErrors {
	errs := models.FieldErrors{}
	vis := EvaluateVisibility(data)

	switch step {
	case StepPersonal:
		collect(errs, models.SectionPersonalInfo, personalRules{
			FullName: data.PersonalInfo.FullName,
			Email:    data.PersonalInfo.Email,
		})

	case StepExperience:
		exp := data.Experience
		collect(errs, models.SectionExperience, experienceRules{
			YearsOfExperience: exp.YearsOfExperience,
			CurrentRole:       exp.CurrentRole,
			PrimaryTechStack:  exp.PrimaryTechStack,
		})
		if vis.AdvancedExperience {
			collect(errs, models.SectionExperience, advancedExperienceRules{
				ReactYears: exp.ReactYears,
				Summary:    exp.Summary,
			})
		}

	case StepPreferences:
		rp := data.RolePreferences
		collect(errs, models.SectionRolePreferences, preferencesRules{
			PreferredRole:    string(rp.PreferredRole),
			WorkLocationType: string(rp.WorkLocationType),
			ExpectedSalary:   rp.ExpectedSalary,
			Notes:            rp.Notes,
		})
		if vis.Portfolio {
			urls := make([]portfolioURLRule, len(rp.PortfolioURLs))
			for i, p := range rp.PortfolioURLs {
				urls[i] = portfolioURLRule{URL: p.URL}
			}
			collect(errs, models.SectionRolePreferences, portfolioRules{PortfolioURLs: urls})
		}
	}

	return errs
}

// ValidateAll runs the synchronous rules of every step before review
func ValidateAll(data models.FormData) map[Step]models.FieldErrors {
	out := make(map[Step]models.FieldErrors)
	for _, step := range Steps {
		if errs := ValidateStep(step, data); len(errs) > 0 {
			out[step] = errs
		}
	}
	return out
}

func collect(errs models.FieldErrors, section models.SectionName, rules any) {
	err := validate.Struct(rules)
	if err == nil {
		return
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add(string(section), err.Error())
		return
	}

	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		errs.Add(string(section)+"."+path, message(fe))
	}
}

func message(fe validator.FieldError) string {
	if msg, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}
