package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keepitcity/proof/models"
	"github.com/Keepitcity/proof/repository"
	ws "github.com/Keepitcity/proof/websocket"
)

const testOrigin = "http://localhost:5173"

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	store, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "server.db"), models.DefaultTeamDomain)
	require.NoError(t, err)

	cfg := &Config{
		Database:  DatabaseConfig{Driver: DriverSQLite},
		WebSocket: WebSocketConfig{AllowedOrigins: testOrigin},
	}
	s := NewServer(cfg)
	s.SetStore(store)
	s.SetAgents(&fakePersona{}, &fakeEvaluator{response: testEvaluation})
	require.NoError(t, s.InitializeServices(context.Background()))

	srv := httptest.NewServer(s.SetupRoutes())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return srv, s
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]any
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "up", body["database"])
}

func TestScenarioRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	var templates GetTemplatesResponse
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/v1/scenarios/templates?team_role=pm", nil, &templates))
	assert.Equal(t, 5, templates.Count)
	for _, tmpl := range templates.Templates {
		assert.Equal(t, models.RoleProjectManager, tmpl.TeamRole)
	}

	var all GetTemplatesResponse
	doJSON(t, http.MethodGet, srv.URL+"/api/v1/scenarios/templates", nil, &all)
	assert.Equal(t, 10, all.Count)

	resp, err := http.Get(srv.URL + "/api/v1/scenarios/preview?team_role=sales&difficulty=hard")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var raw bytes.Buffer
	raw.ReadFrom(resp.Body)
	assert.NotContains(t, raw.String(), "hidden_goal")
	assert.Contains(t, raw.String(), `"difficulty":"Hard"`)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, srv.URL+"/api/v1/scenarios/preview?team_role=marketing", nil, nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, srv.URL+"/api/v1/scenarios/preview?team_role=pm&difficulty=brutal", nil, nil))
}

func TestConsultationRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/consultations"

	var started ConsultationResponse
	status := doJSON(t, http.MethodPost, base, StartConsultationRequest{
		UserEmail:  "rep@aerialcanvas.com",
		UserName:   "Rep",
		TeamRole:   "pm",
		Difficulty: "easy",
	}, &started)
	require.Equal(t, http.StatusCreated, status)
	id := started.Session.ID
	assert.Empty(t, started.Session.Scenario.Persona.HiddenGoal)
	assert.Empty(t, started.Session.Scenario.SuccessCriteria)
	assert.Equal(t, models.DifficultyEasy, started.Session.Scenario.Difficulty)

	var replied ConsultationResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/"+id+"/messages", RespondRequest{Message: "Hello, Aerial Canvas."}, &replied))
	assert.Equal(t, "Okay, what would that cost me?", replied.Reply)
	assert.Len(t, replied.Session.Messages, 3)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, base+"/"+id+"/messages", RespondRequest{Message: " "}, nil))

	var finished FinishResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/"+id+"/finish", nil, &finished))
	assert.Equal(t, 88, finished.Result.OverallScore)
	assert.True(t, finished.Session.IsComplete)

	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/"+id+"/finish", nil, nil))
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/"+id+"/messages", RespondRequest{Message: "still there?"}, nil))

	var got ConsultationResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"/"+id, nil, &got))
	require.NotNil(t, got.Session.Result)

	var cards GetScorecardsResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/rep@aerialcanvas.com/scorecards", nil, &cards))
	require.Equal(t, 1, cards.Count)
	assert.Equal(t, id, cards.Scorecards[0].SessionID)

	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/v1/scorecards/"+id, nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/api/v1/scorecards/nope", nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, base+"/nope", nil, nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, base, StartConsultationRequest{UserEmail: "a@b.com", TeamRole: "marketing"}, nil))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, base, StartConsultationRequest{TeamRole: "sales"}, nil))
}

func TestUserRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	api := srv.URL + "/api/v1"

	var login LoginResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, api+"/login", LoginRequest{Email: "pm@aerialcanvas.com", Name: "PM"}, &login))
	assert.True(t, login.IsNew)
	assert.True(t, login.User.IsTeamMember)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, api+"/login", LoginRequest{Email: "pm@aerialcanvas.com"}, &login))
	assert.False(t, login.IsNew)
	assert.Equal(t, 2, login.User.LoginCount)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, api+"/login", LoginRequest{Email: "not-an-email"}, nil))

	var stats map[string]models.UserStats
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, api+"/users/pm@aerialcanvas.com/stats/increment",
		IncrementStatRequest{Stat: models.StatIssuesFound, Amount: 3}, &stats))
	assert.EqualValues(t, 3, stats["stats"].TotalIssuesFound)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, api+"/users/pm@aerialcanvas.com/stats/increment",
		IncrementStatRequest{Stat: "bogus"}, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, api+"/users/ghost@example.com/stats", nil, nil))

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, api+"/users/pm@aerialcanvas.com/stats",
		models.UserStats{TotalTimeSavedSeconds: 60}, &stats))
	assert.EqualValues(t, 60, stats["stats"].TotalTimeSavedSeconds)

	var added map[string]bool
	assert.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, api+"/waitlist", WaitlistRequest{Email: "new@example.com"}, &added))
	assert.True(t, added["added"])
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, api+"/waitlist", WaitlistRequest{Email: "new@example.com"}, &added))
	assert.False(t, added["added"])

	var on map[string]bool
	doJSON(t, http.MethodGet, api+"/waitlist/new@example.com", nil, &on)
	assert.True(t, on["on_waitlist"])

	var global GlobalStatsResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, api+"/stats", nil, &global))
	assert.EqualValues(t, 1, global.TotalUsers)
	assert.EqualValues(t, 1, global.TotalTeamMembers)
	assert.EqualValues(t, 3, global.Aggregate.TotalIssues)
}

func TestWebSocketCall(t *testing.T) {
	srv, s := newTestServer(t)

	var started ConsultationResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/v1/consultations",
		StartConsultationRequest{UserEmail: "ws@example.com", TeamRole: "sales"}, &started))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?session_id=" + started.Session.ID

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {testOrigin}})
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypePersonaMessage, msg.Type)
	assert.Equal(t, started.Session.Messages[0].Content, msg.Content)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeTraineeMessage, Content: "Hi!"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "Okay, what would that cost me?", msg.Content)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeEndCall}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypeCallEnded, msg.Type)
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, ws.TypeResult, msg.Type)

	session, err := s.manager.Get(started.Session.ID)
	require.NoError(t, err)
	assert.NotNil(t, session.Result)
}

func TestWebSocketRequiresKnownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, srv.URL+"/api/v1/ws", nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/api/v1/ws?session_id=missing", nil, nil))
}
