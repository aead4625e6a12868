package wizard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/terra-clan/apply-wizard/internal/models"
)

func validData() models.FormData {
	d := models.DefaultFormData()
	d.PersonalInfo = models.PersonalInfo{FullName: "Ada Lovelace", Email: "ada@example.com"}
	d.Experience.YearsOfExperience = models.Number(5)
	d.Experience.CurrentRole = "Engineer"
	d.Experience.PrimaryTechStack = "Go, React"
	d.Experience.ReactYears = models.Number(4)
	d.RolePreferences.PreferredRole = models.RoleFrontend
	d.RolePreferences.WorkLocationType = models.LocationRemote
	return d
}

func TestValidateStep_ValidData(t *testing.T) {
	data := validData()
	for _, step := range Steps {
		assert.Empty(t, ValidateStep(step, data), "step %s", step)
	}
	assert.Empty(t, ValidateAll(data))
}

func TestValidateStep_Personal(t *testing.T) {
	tests := []struct {
		name   string
		info   models.PersonalInfo
		errors models.FieldErrors
	}{
		{
			name: "missing both",
			info: models.PersonalInfo{},
			errors: models.FieldErrors{
				"personalInfo.fullName": "Full name is required",
				"personalInfo.email":    "Email is required",
			},
		},
		{
			name:   "short name",
			info:   models.PersonalInfo{FullName: "A", Email: "a@example.com"},
			errors: models.FieldErrors{"personalInfo.fullName": "Full name must be at least 2 characters"},
		},
		{
			name:   "long name",
			info:   models.PersonalInfo{FullName: strings.Repeat("a", 101), Email: "a@example.com"},
			errors: models.FieldErrors{"personalInfo.fullName": "Full name is too long"},
		},
		{
			name:   "bad email",
			info:   models.PersonalInfo{FullName: "Ada", Email: "not-an-email"},
			errors: models.FieldErrors{"personalInfo.email": "Please enter a valid email address"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validData()
			d.PersonalInfo = tt.info
			assert.Equal(t, tt.errors, ValidateStep(StepPersonal, d))
		})
	}
}

func TestValidateStep_Experience(t *testing.T) {
	d := validData()
	d.Experience.YearsOfExperience = nil
	d.Experience.CurrentRole = ""
	d.Experience.PrimaryTechStack = strings.Repeat("x", 201)

	assert.Equal(t, models.FieldErrors{
		"experience.yearsOfExperience": "Years of experience is required",
		"experience.currentRole":       "Current role is required",
		"experience.primaryTechStack":  "Tech stack description is too long",
	}, ValidateStep(StepExperience, d))
}

func TestValidateStep_ZeroYearsIsValid(t *testing.T) {
	d := validData()
	d.Experience.YearsOfExperience = models.Number(0)

	assert.Empty(t, ValidateStep(StepExperience, d))
}

func TestValidateStep_HiddenAdvancedFieldsSkipped(t *testing.T) {
	d := validData()
	d.Experience.Summary = strings.Repeat("s", 2001)

	errs := ValidateStep(StepExperience, d)
	assert.Equal(t, "Summary is too long", errs["experience.summary"])

	d.Experience.YearsOfExperience = models.Number(1)
	assert.Empty(t, ValidateStep(StepExperience, d))
}

func TestValidateStep_Preferences(t *testing.T) {
	d := validData()
	d.RolePreferences.PreferredRole = ""
	d.RolePreferences.WorkLocationType = "moon"
	d.RolePreferences.Notes = strings.Repeat("n", 2001)

	assert.Equal(t, models.FieldErrors{
		"rolePreferences.preferredRole":    "Preferred role is required",
		"rolePreferences.workLocationType": "Work mode is required",
		"rolePreferences.notes":            "Notes are too long",
	}, ValidateStep(StepPreferences, d))
}

func TestValidateStep_PortfolioURLs(t *testing.T) {
	d := validData()
	d.RolePreferences.PortfolioURLs = []models.PortfolioURL{
		{URL: "https://ada.dev"},
		{URL: "https://" + strings.Repeat("a", 500)},
	}

	errs := ValidateStep(StepPreferences, d)
	assert.Equal(t, models.FieldErrors{
		"rolePreferences.portfolioUrls[1].url": "URL is too long",
	}, errs)

	// hidden once the role is no longer frontend
	d.RolePreferences.PreferredRole = models.RoleBackend
	assert.Empty(t, ValidateStep(StepPreferences, d))
}

func TestValidateAll_GroupsByStep(t *testing.T) {
	d := validData()
	d.PersonalInfo.FullName = ""
	d.RolePreferences.WorkLocationType = ""

	all := ValidateAll(d)
	assert.Len(t, all, 2)
	assert.Contains(t, all[StepPersonal], "personalInfo.fullName")
	assert.Contains(t, all[StepPreferences], "rolePreferences.workLocationType")
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Step: StepExperience, Fields: models.FieldErrors{"a": "b"}}
	assert.Equal(t, "validation failed on step experience: 1 field(s)", err.Error())
}
