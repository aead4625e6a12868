package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/apply-wizard/internal/models"
	"github.com/terra-clan/apply-wizard/internal/wizard"
)

// Catalog handlers expose every field of every step regardless of visibility

type stepDefinition struct {
	Step   string             `json:"step"`
	Route  string             `json:"route"`
	Title  string             `json:"title"`
	Fields []models.StepField `json:"fields"`
}

func (s *Server) stepDefinition(step wizard.Step) stepDefinition {
	def, _ := s.catalog.Step(step)
	title := def.Title
	if title == "" {
		title = step.Title()
	}
	fields := def.Fields
	if fields == nil {
		fields = []models.StepField{}
	}
	return stepDefinition{
		Step:   string(step),
		Route:  step.Route(),
		Title:  title,
		Fields: fields,
	}
}

func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	steps := make([]stepDefinition, 0, len(wizard.Steps))
	for _, step := range wizard.Steps {
		steps = append(steps, s.stepDefinition(step))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"steps": steps,
		"total": len(steps),
	})
}

func (s *Server) handleGetStep(w http.ResponseWriter, r *http.Request) {
	step, err := wizard.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "step not found")
		return
	}
	respondJSON(w, http.StatusOK, s.stepDefinition(step))
}
