package wizard

import (
	"math"

	"github.com/terra-clan/apply-wizard/internal/models"
)

// reachedByRoute lists the units considered reached once a route is shown.
// Review is absent because it reaches every active unit.
var reachedByRoute = map[string][]models.UnitID{
	StepPersonal.Route():   {models.UnitPersonal},
	StepExperience.Route(): {models.UnitPersonal, models.UnitExpBase, models.UnitExpAdv, models.UnitExpMentor},
	StepPreferences.Route(): {
		models.UnitPersonal, models.UnitExpBase, models.UnitExpAdv, models.UnitExpMentor,
		models.UnitRoleBase, models.UnitPortfolio,
	},
}

// Units returns the canonical unit list with active flags for data
func Units(data models.FormData) []models.WizardUnit {
	v := EvaluateVisibility(data)
	return []models.WizardUnit{
		{ID: models.UnitPersonal, Active: true},
		{ID: models.UnitExpBase, Active: true},
		{ID: models.UnitExpAdv, Active: v.AdvancedExperience},
		{ID: models.UnitExpMentor, Active: v.Mentorship},
		{ID: models.UnitRoleBase, Active: true},
		{ID: models.UnitPortfolio, Active: v.Portfolio},
		{ID: models.UnitReview, Active: true},
	}
}

// CalculateProgress derives the completion percentage for route and data.
// Unrecognised routes count as the first step.
func CalculateProgress(route string, data models.FormData) models.Progress {
	units := Units(data)

	active := make([]models.UnitID, 0, len(units))
	for _, u := range units {
		if u.Active {
			active = append(active, u.ID)
		}
	}

	total := len(active)
	if total < 1 {
		total = 1
	}

	reached := make(map[models.UnitID]bool)
	if route == StepReview.Route() {
		for _, id := range active {
			reached[id] = true
		}
	} else {
		list, ok := reachedByRoute[route]
		if !ok {
			list = reachedByRoute[StepPersonal.Route()]
		}
		for _, id := range list {
			reached[id] = true
		}
	}

	reachedUnits := make([]models.UnitID, 0, len(active))
	for _, id := range active {
		if reached[id] {
			reachedUnits = append(reachedUnits, id)
		}
	}

	completed := len(reachedUnits)
	return models.Progress{
		Units:        units,
		ReachedUnits: reachedUnits,
		Completed:    completed,
		Total:        total,
		Percent:      int(math.Round(100 * float64(completed) / float64(total))),
	}
}
