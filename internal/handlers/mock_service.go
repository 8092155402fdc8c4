package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sunssactor/internal/models"
	"sunssactor/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockSunss struct {
	enableErr    error
	disableErr   error
	stateResp    models.ActorState
	stateErr     error
	statusResp   models.SunssStatus
	statusErr    error
	stopErr      error
	trackErr     error
	exposuresErr error
	rawReply     string
	rawErr       error

	lastStrategy   string
	lastTrack      service.TrackParams
	lastRaw        string
	enableCalls    int
	disableCalls   int
	stopCalls      int
	trackCalls     int
	exposuresCalls int
}

func (m *mockSunss) Enable(ctx context.Context, strategy string) error {
	m.enableCalls++
	m.lastStrategy = strategy
	return m.enableErr
}
func (m *mockSunss) Disable(ctx context.Context) error {
	m.disableCalls++
	return m.disableErr
}
func (m *mockSunss) State(ctx context.Context) (models.ActorState, error) {
	return m.stateResp, m.stateErr
}
func (m *mockSunss) DeviceStatus(ctx context.Context) (models.SunssStatus, error) {
	return m.statusResp, m.statusErr
}
func (m *mockSunss) Stop(ctx context.Context) error {
	m.stopCalls++
	return m.stopErr
}
func (m *mockSunss) Track(ctx context.Context, p service.TrackParams) error {
	m.trackCalls++
	m.lastTrack = p
	return m.trackErr
}
func (m *mockSunss) StartExposures(ctx context.Context) error {
	m.exposuresCalls++
	return m.exposuresErr
}
func (m *mockSunss) Raw(ctx context.Context, cmd string) (string, error) {
	m.lastRaw = cmd
	return m.rawReply, m.rawErr
}
func (m *mockSunss) Strategies() []string {
	return []string{"idle", "untracked", "guiding"}
}

type mockMonitoring struct {
	state models.ActorState
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.ActorState, error) {
	return m.state, m.err
}

type mockEventLog struct {
	resp     []models.TrackerEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.TrackerEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
