package services

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Keepitcity/proof/models"
	"github.com/Keepitcity/proof/repository"
)

// UserEndpoints exposes trainees, the waitlist, usage counters and
// scorecards. Identity comes from the caller; there is no authentication.
type UserEndpoints struct {
	store repository.Store
}

type LoginRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	PictureURL string `json:"picture_url"`
}

type LoginResponse struct {
	User    *models.User `json:"user"`
	IsNew   bool         `json:"is_new"`
	Message string       `json:"message"`
}

type WaitlistRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

type IncrementStatRequest struct {
	Stat   string `json:"stat"`
	Amount int64  `json:"amount"`
}

type GetScorecardsResponse struct {
	Scorecards []models.Scorecard `json:"scorecards"`
	Count      int                `json:"count"`
}

type GlobalStatsResponse struct {
	TotalUsers       int64                  `json:"total_users"`
	TotalTeamMembers int64                  `json:"total_team_members"`
	Aggregate        *models.AggregateStats `json:"aggregate"`
}

func NewUserEndpoints(store repository.Store) *UserEndpoints {
	return &UserEndpoints{store: store}
}

func (e *UserEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/login", e.LoginHandler)
	r.Get("/stats", e.GlobalStatsHandler)

	r.Route("/users/{email}", func(r chi.Router) {
		r.Get("/", e.GetUserHandler)
		r.Get("/stats", e.GetUserStatsHandler)
		r.Post("/stats", e.UpdateUserStatsHandler)
		r.Post("/stats/increment", e.IncrementUserStatHandler)
		r.Get("/scorecards", e.GetScorecardsHandler)
	})
	r.Get("/scorecards/{sessionID}", e.GetScorecardHandler)

	r.Route("/waitlist", func(r chi.Router) {
		r.Post("/", e.JoinWaitlistHandler)
		r.Get("/", e.GetWaitlistHandler)
		r.Get("/{email}", e.CheckWaitlistHandler)
	})
}

// LoginHandler records a sign-in and creates the user on first sight
func (e *UserEndpoints) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !strings.Contains(req.Email, "@") {
		http.Error(w, "A valid email is required", http.StatusBadRequest)
		return
	}

	user, isNew, err := e.store.GetOrCreateUser(r.Context(), req.Email, req.Name, req.PictureURL)
	if err != nil {
		slog.Error("Login failed", "error", err, "email", req.Email)
		writeError(w, err)
		return
	}

	message := "Welcome back"
	if isNew {
		message = "Account created"
	}
	writeJSON(w, http.StatusOK, LoginResponse{User: user, IsNew: isNew, Message: message})
	slog.Info("User logged in", "user_id", user.ID, "email", user.Email, "is_new", isNew)
}

func (e *UserEndpoints) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := e.userFromPath(w, r)
	if !ok {
		return
	}
	stats, err := e.store.GetUserStats(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	user.Stats = stats
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (e *UserEndpoints) GetUserStatsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := e.userFromPath(w, r)
	if !ok {
		return
	}
	stats, err := e.store.GetUserStats(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if stats == nil {
		http.Error(w, "Stats not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

// IncrementUserStatHandler adds to one named counter. Unknown names are
// rejected here even though the store would ignore them.
func (e *UserEndpoints) IncrementUserStatHandler(w http.ResponseWriter, r *http.Request) {
	var req IncrementStatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !models.IsStatName(req.Stat) {
		http.Error(w, "Unknown stat", http.StatusBadRequest)
		return
	}
	if req.Amount == 0 {
		req.Amount = 1
	}

	user, ok := e.userFromPath(w, r)
	if !ok {
		return
	}
	if err := e.store.IncrementUserStat(r.Context(), user.ID, req.Stat, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	e.GetUserStatsHandler(w, r)
}

func (e *UserEndpoints) UpdateUserStatsHandler(w http.ResponseWriter, r *http.Request) {
	var delta models.UserStats
	if err := json.NewDecoder(r.Body).Decode(&delta); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, ok := e.userFromPath(w, r)
	if !ok {
		return
	}
	if err := e.store.UpdateUserStats(r.Context(), user.ID, delta); err != nil {
		writeError(w, err)
		return
	}
	e.GetUserStatsHandler(w, r)
}

func (e *UserEndpoints) GetScorecardsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	cards, err := e.store.ListScorecards(r.Context(), chi.URLParam(r, "email"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GetScorecardsResponse{Scorecards: cards, Count: len(cards)})
}

func (e *UserEndpoints) GetScorecardHandler(w http.ResponseWriter, r *http.Request) {
	card, err := e.store.GetScorecard(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if card == nil {
		http.Error(w, "Scorecard not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scorecard": card})
}

func (e *UserEndpoints) JoinWaitlistHandler(w http.ResponseWriter, r *http.Request) {
	var req WaitlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !strings.Contains(req.Email, "@") {
		http.Error(w, "A valid email is required", http.StatusBadRequest)
		return
	}

	added, err := e.store.AddToWaitlist(r.Context(), req.Email, req.Name, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"added": added})
}

func (e *UserEndpoints) GetWaitlistHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := e.store.GetWaitlist(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"waitlist": entries, "count": len(entries)})
}

func (e *UserEndpoints) CheckWaitlistHandler(w http.ResponseWriter, r *http.Request) {
	on, err := e.store.IsOnWaitlist(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"on_waitlist": on})
}

func (e *UserEndpoints) GlobalStatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := e.store.GetTotalUsers(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	team, err := e.store.GetTotalTeamMembers(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	agg, err := e.store.GetAggregateStats(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GlobalStatsResponse{TotalUsers: users, TotalTeamMembers: team, Aggregate: agg})
}

func (e *UserEndpoints) userFromPath(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	email := chi.URLParam(r, "email")
	user, err := e.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return nil, false
	}
	return user, true
}
