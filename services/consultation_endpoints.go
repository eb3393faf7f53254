package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Keepitcity/proof/consultation"
	"github.com/Keepitcity/proof/models"
)

type ConsultationEndpoints struct {
	manager *SessionManager
}

func NewConsultationEndpoints(manager *SessionManager) *ConsultationEndpoints {
	return &ConsultationEndpoints{manager: manager}
}

type StartConsultationRequest struct {
	UserEmail  string `json:"user_email"`
	UserName   string `json:"user_name"`
	TeamRole   string `json:"team_role"`
	Difficulty string `json:"difficulty,omitempty"`
}

type RespondRequest struct {
	Message string `json:"message"`
}

// ConsultationResponse never carries the hidden goal or success criteria
type ConsultationResponse struct {
	Session models.ConsultationSession `json:"session"`
	Reply   string                     `json:"reply,omitempty"`
	Message string                     `json:"message,omitempty"`
}

type FinishResponse struct {
	Session models.ConsultationSession `json:"session"`
	Result  *models.ConsultationResult `json:"result"`
}

func (e *ConsultationEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/consultations", func(r chi.Router) {
		r.Post("/", e.StartHandler)
		r.Get("/{id}", e.GetHandler)
		r.Post("/{id}/messages", e.RespondHandler)
		r.Post("/{id}/finish", e.FinishHandler)
	})
}

func (e *ConsultationEndpoints) StartHandler(w http.ResponseWriter, r *http.Request) {
	var req StartConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserEmail) == "" {
		http.Error(w, "user_email is required", http.StatusBadRequest)
		return
	}

	role, err := models.ParseTeamRole(req.TeamRole)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	in := consultation.StartInput{
		UserEmail: strings.TrimSpace(req.UserEmail),
		UserName:  req.UserName,
		TeamRole:  role,
	}
	if req.Difficulty != "" {
		difficulty, err := models.ParseDifficulty(req.Difficulty)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.Difficulty = &difficulty
	}

	session, err := e.manager.Start(r.Context(), in)
	if err != nil {
		slog.Error("Failed to start consultation", "error", err, "user_email", in.UserEmail)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ConsultationResponse{
		Session: redact(session),
		Message: "Consultation started",
	})
}

func (e *ConsultationEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	session, err := e.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConsultationResponse{Session: redact(session)})
}

func (e *ConsultationEndpoints) RespondHandler(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	reply, session, err := e.manager.Respond(r.Context(), id, req.Message)
	if err != nil {
		slog.Error("Failed to advance consultation", "error", err, "session_id", id)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConsultationResponse{Session: redact(session), Reply: reply})
}

func (e *ConsultationEndpoints) FinishHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, session, err := e.manager.Finish(r.Context(), id)
	if err != nil {
		slog.Error("Failed to finish consultation", "error", err, "session_id", id)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FinishResponse{Session: redact(session), Result: result})
}

func redact(session models.ConsultationSession) models.ConsultationSession {
	session.Scenario = session.Scenario.Public()
	return session
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, models.ErrExternalCall), errors.Is(err, models.ErrMalformedEvaluation):
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}
