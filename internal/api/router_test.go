package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/studhelper/studhelper/internal/app"
	iauth "github.com/studhelper/studhelper/internal/auth"
	"github.com/studhelper/studhelper/internal/database/testutil"
	"github.com/studhelper/studhelper/internal/dialog"
	"github.com/studhelper/studhelper/internal/middleware"
	"github.com/studhelper/studhelper/internal/models"
	"github.com/studhelper/studhelper/internal/monitoring"
	"github.com/studhelper/studhelper/internal/monitoring/checks"
	"github.com/studhelper/studhelper/internal/services"
	"github.com/studhelper/studhelper/internal/session"
	"github.com/studhelper/studhelper/pkg/crypto"
	"github.com/studhelper/studhelper/pkg/response"
)

const (
	testBotToken          = "bot-secret"
	testDashboardPassword = "dashboard-pass"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

type testServer struct {
	router *gin.Engine
	domain *services.Domain
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	domain, err := services.NewDomain(db, services.DefaultDomainConfig(), services.WithInviteCodeGenerator(func() (string, error) {
		return "K7XQ4T9P", nil
	}))
	require.NoError(t, err)

	machine, err := dialog.NewMachine(domain, session.NewMemoryStore(), dialog.WithInviteLink("t.me", "@studhelper_bot"))
	require.NoError(t, err)

	hash, err := crypto.HashPassword(testDashboardPassword)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Server.RateLimit = 1000
	cfg.Bot = app.BotConfig{Token: testBotToken, Handle: "@studhelper_bot", Host: "t.me"}
	cfg.Dashboard = app.DashboardConfig{PasswordHash: hash, LoginLimit: 3}
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Health.Enabled = true

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "jwt-secret", Issuer: "studhelper"})
	require.NoError(t, err)

	health := monitoring.NewHealthManager()
	health.RegisterReadiness(checks.Database(db, time.Second))

	router, err := NewRouter(Dependencies{
		Config:    cfg,
		Domain:    domain,
		Machine:   machine,
		JWT:       jwt,
		Health:    health,
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &testServer{router: router, domain: domain}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func (s *testServer) event(t *testing.T, userID int64, kind dialog.EventKind, payload string) map[string]any {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/events", dialog.Event{UserID: userID, Kind: kind, Payload: payload},
		map[string]string{middleware.BotTokenHeader: testBotToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var outcome map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &outcome))
	return outcome
}

func (s *testServer) token(t *testing.T) map[string]string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/token", gin.H{"password": testDashboardPassword}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &payload))
	require.Equal(t, "Bearer", payload.TokenType)
	return map[string]string{"Authorization": "Bearer " + payload.AccessToken}
}

func (s *testServer) seed(t *testing.T) *models.Team {
	t.Helper()
	ctx := context.Background()

	team, admin, err := s.domain.Teams.RegisterTeam(ctx, services.RegisterTeamInput{
		ExternalID:  100,
		StudentName: "Анна Смирнова",
		Group:       "ПИ-21",
		TeamName:    "Alpha",
		ProductName: "Widget",
	})
	require.NoError(t, err)
	_, member, err := s.domain.Teams.JoinTeamAsNewcomer(ctx, services.JoinTeamInput{
		ExternalID:  200,
		StudentName: "Борис Кузнецов",
		Group:       "0",
		InviteCode:  team.InviteCode,
		Role:        models.RoleDeveloper,
	})
	require.NoError(t, err)

	_, _, err = s.domain.Reports.Upsert(ctx, admin.StudentID, 1, "set up the repository and CI")
	require.NoError(t, err)
	_, _, err = s.domain.Reports.Upsert(ctx, member.StudentID, 1, "implemented the login screen")
	require.NoError(t, err)
	_, _, err = s.domain.Reports.Upsert(ctx, member.StudentID, 2, "implemented the report form")
	require.NoError(t, err)
	return team
}

func TestEventsRequireBotToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/events", dialog.Event{UserID: 1, Kind: dialog.EventText, Payload: "/start"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/events", dialog.Event{UserID: 1, Kind: dialog.EventText, Payload: "/start"},
		map[string]string{middleware.BotTokenHeader: "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEventsRejectInvalidPayload(t *testing.T) {
	s := newTestServer(t)
	headers := map[string]string{middleware.BotTokenHeader: testBotToken}

	w := s.do(t, http.MethodPost, "/api/events", gin.H{"user_id": 1, "kind": "voice"}, headers)
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	require.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	require.Contains(t, env.Error.Message, "kind must be one of")

	w = s.do(t, http.MethodPost, "/api/events", gin.H{"kind": "text", "payload": "/start"}, headers)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsDriveRegistration(t *testing.T) {
	s := newTestServer(t)

	out := s.event(t, 100, dialog.EventText, "/start")
	require.Equal(t, string(dialog.PromptWelcome), out["prompt"])
	require.Equal(t, true, out["terminal"])

	require.Equal(t, string(dialog.PromptAskTeamName), s.event(t, 100, dialog.EventText, "register_team")["prompt"])
	require.Equal(t, string(dialog.PromptAskProductName), s.event(t, 100, dialog.EventText, "Alpha")["prompt"])
	require.Equal(t, string(dialog.PromptAskUserName), s.event(t, 100, dialog.EventText, "Widget")["prompt"])

	out = s.event(t, 100, dialog.EventText, "ivan")
	require.Equal(t, string(dialog.PromptAskUserName), out["prompt"])
	require.NotEmpty(t, out["problem"])

	require.Equal(t, string(dialog.PromptAskUserGroup), s.event(t, 100, dialog.EventText, "Иван Иванов")["prompt"])
	require.Equal(t, string(dialog.PromptConfirmTeam), s.event(t, 100, dialog.EventText, "0")["prompt"])

	out = s.event(t, 100, dialog.EventButton, "confirm")
	require.Equal(t, string(dialog.PromptTeamCreated), out["prompt"])
	data := out["data"].(map[string]any)
	require.Equal(t, "K7XQ4T9P", data["invite_code"])
	require.Equal(t, "https://t.me/studhelper_bot?start=K7XQ4T9P", data["invite_link"])

	team, err := s.domain.Teams.GetByInviteCode(context.Background(), "K7XQ4T9P")
	require.NoError(t, err)
	require.Equal(t, "Alpha", team.TeamName)
}

func TestDashboardRequiresToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/dashboard/teams", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/token", gin.H{"password": "guess"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "INVALID_CREDENTIALS", decodeEnvelope(t, w).Error.Code)
}

func TestDashboardEndpoints(t *testing.T) {
	s := newTestServer(t)
	team := s.seed(t)
	auth := s.token(t)
	teamPath := "/api/dashboard/teams/" + itoa(team.TeamID)

	w := s.do(t, http.MethodGet, "/api/dashboard/teams", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var teams []services.TeamSummary
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &teams))
	require.Len(t, teams, 1)
	require.Equal(t, 2, teams[0].MemberCount)
	require.Equal(t, int64(3), teams[0].ReportCount)
	require.Equal(t, "Анна Смирнова", teams[0].AdminName)

	w = s.do(t, http.MethodGet, teamPath, nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Team       services.TeamSummary `json:"team"`
		InviteLink string               `json:"invite_link"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &detail))
	require.Equal(t, "Alpha", detail.Team.TeamName)
	require.Equal(t, "https://t.me/studhelper_bot?start=K7XQ4T9P", detail.InviteLink)

	w = s.do(t, http.MethodGet, teamPath+"/stats", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var stats []services.MemberStats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &stats))
	require.Len(t, stats, 2)
	require.True(t, stats[0].IsAdmin)

	w = s.do(t, http.MethodGet, teamPath+"/invite.png", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = s.do(t, http.MethodGet, "/api/dashboard/reports?sprint=1&team=Alp", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	var reports []services.ReportView
	require.NoError(t, json.Unmarshal(env.Data, &reports))
	require.Len(t, reports, 2)
	require.Equal(t, 2, env.Meta.Total)

	w = s.do(t, http.MethodGet, "/api/dashboard/reports?team="+itoa(team.TeamID)+"&student="+url.QueryEscape("Борис")+"&per_page=1", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	env = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &reports))
	require.Len(t, reports, 1)
	require.Equal(t, 2, env.Meta.Total)
	require.Equal(t, 2, env.Meta.TotalPages)

	w = s.do(t, http.MethodGet, "/api/dashboard/statistics", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	var statistics struct {
		Reports services.ReportStatistics `json:"reports"`
		Totals  services.Counts           `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &statistics))
	require.Equal(t, int64(3), statistics.Reports.TotalReports)
	require.Equal(t, 2, statistics.Reports.LastSprint)
	require.Equal(t, int64(2), statistics.Totals.Students)
}

func TestDashboardErrors(t *testing.T) {
	s := newTestServer(t)
	s.seed(t)
	auth := s.token(t)

	w := s.do(t, http.MethodGet, "/api/dashboard/teams/999", nil, auth)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "TEAM_NOT_FOUND", decodeEnvelope(t, w).Error.Code)

	w = s.do(t, http.MethodGet, "/api/dashboard/teams/abc/stats", nil, auth)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/dashboard/reports?sprint=99", nil, auth)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "INVALID_SPRINT", decodeEnvelope(t, w).Error.Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodPost, "/api/auth/token", gin.H{"password": "guess"}, nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := s.do(t, http.MethodPost, "/api/auth/token", gin.H{"password": testDashboardPassword}, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestHealthMetricsAndFallback(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"component":"database"`)

	w = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "studhelper_api_latency_seconds")

	w = s.do(t, http.MethodGet, "/api/unknown", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "NOT_FOUND", decodeEnvelope(t, w).Error.Code)
}

func TestNewRouterValidatesDependencies(t *testing.T) {
	_, err := NewRouter(Dependencies{})
	require.Error(t, err)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
