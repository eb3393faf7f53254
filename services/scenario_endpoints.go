package services

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Keepitcity/proof/models"
	"github.com/Keepitcity/proof/scenario"
)

type ScenarioEndpoints struct {
	generator *scenario.Generator
}

// TemplateSummary is the trainee-safe view of a catalog template
type TemplateSummary struct {
	Title      string                  `json:"title"`
	Category   models.ScenarioCategory `json:"category"`
	Difficulty models.Difficulty       `json:"difficulty"`
	TeamRole   models.TeamRole         `json:"team_role"`
}

type GetTemplatesResponse struct {
	Templates []TemplateSummary `json:"templates"`
	Count     int               `json:"count"`
}

func NewScenarioEndpoints(generator *scenario.Generator) *ScenarioEndpoints {
	return &ScenarioEndpoints{generator: generator}
}

func (e *ScenarioEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/scenarios", func(r chi.Router) {
		r.Get("/templates", e.GetTemplatesHandler)
		r.Get("/preview", e.PreviewHandler)
	})
}

// GetTemplatesHandler lists templates, optionally for one team_role
func (e *ScenarioEndpoints) GetTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	roles := []models.TeamRole{models.RoleProjectManager, models.RoleSales}
	if raw := r.URL.Query().Get("team_role"); raw != "" {
		role, err := models.ParseTeamRole(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		roles = []models.TeamRole{role}
	}

	catalog := e.generator.Catalog()
	summaries := []TemplateSummary{}
	for _, role := range roles {
		for _, t := range catalog.Templates(role) {
			summaries = append(summaries, TemplateSummary{
				Title:      t.Title,
				Category:   t.Category,
				Difficulty: t.Difficulty,
				TeamRole:   role,
			})
		}
	}

	writeJSON(w, http.StatusOK, GetTemplatesResponse{Templates: summaries, Count: len(summaries)})
}

// PreviewHandler generates a scenario without starting a call. The hidden
// goal and success criteria are stripped.
func (e *ScenarioEndpoints) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	role, err := models.ParseTeamRole(r.URL.Query().Get("team_role"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var difficulty *models.Difficulty
	if raw := r.URL.Query().Get("difficulty"); raw != "" {
		d, err := models.ParseDifficulty(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		difficulty = &d
	}

	sc, err := e.generator.Generate(role, difficulty)
	if err != nil {
		slog.Error("Failed to generate scenario preview", "error", err, "team_role", role)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": sc.Public()})
}
