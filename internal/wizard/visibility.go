package wizard

import "github.com/terra-clan/apply-wizard/internal/models"

// Field groups used by the field catalog
const (
	GroupBase       = "base"
	GroupAdvanced   = "advanced"
	GroupMentorship = "mentorship"
	GroupPortfolio  = "portfolio"
)

const (
	advancedMinYears  = 2.0
	portfolioMinReact = 3.0
)

// ShowAdvancedExperience reports whether the advanced experience section is shown
func ShowAdvancedExperience(exp models.Experience) bool {
	return exp.YearsOfExperience != nil && *exp.YearsOfExperience >= advancedMinYears
}

// ShowMentorship reports whether the early-career mentorship section is shown.
// Zero years is excluded on purpose: it means "not started", not "early career".
func ShowMentorship(exp models.Experience) bool {
	if exp.YearsOfExperience == nil {
		return false
	}
	y := *exp.YearsOfExperience
	return y > 0 && y < advancedMinYears
}

// ShowPortfolio reports whether the portfolio URL list is shown
func ShowPortfolio(exp models.Experience, prefs models.RolePreferences) bool {
	return prefs.PreferredRole == models.RoleFrontend &&
		exp.ReactYears != nil &&
		*exp.ReactYears > portfolioMinReact
}

// Visibility bundles the conditional-disclosure decisions for one FormData.
// It is recomputed from scratch on every call; never cache it across changes.
type Visibility struct {
	AdvancedExperience bool
	Mentorship         bool
	Portfolio          bool
}

// EvaluateVisibility computes the visibility of every conditional section
func EvaluateVisibility(data models.FormData) Visibility {
	return Visibility{
		AdvancedExperience: ShowAdvancedExperience(data.Experience),
		Mentorship:         ShowMentorship(data.Experience),
		Portfolio:          ShowPortfolio(data.Experience, data.RolePreferences),
	}
}

// GroupVisible reports whether fields of group should be rendered
func (v Visibility) GroupVisible(group string) bool {
	switch group {
	case GroupAdvanced:
		return v.AdvancedExperience
	case GroupMentorship:
		return v.Mentorship
	case GroupPortfolio:
		return v.Portfolio
	case GroupBase, "":
		return true
	}
	return false
}

// Flags converts v to its API representation
func (v Visibility) Flags() models.VisibilityFlags {
	return models.VisibilityFlags{
		AdvancedExperience: v.AdvancedExperience,
		Mentorship:         v.Mentorship,
		Portfolio:          v.Portfolio,
	}
}
