package handlers

import (
	"context"
	"net/http"
	"sync"

	"dynamic_power/internal/models"
	"dynamic_power/internal/service"

	"github.com/gin-gonic/gin"
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

type mockControl struct {
	profileErr    error
	thresholdsErr error
	pollErr       error

	lastProfile    string
	lastPrivileged bool
	lastThresholds models.Thresholds
	lastPoll       uint32
	profileCalls   int
	thresholdCalls int
	pollCalls      int
}

func (m *mockControl) SetProfile(ctx context.Context, name string, privileged bool) error {
	m.profileCalls++
	m.lastProfile = name
	m.lastPrivileged = privileged
	return m.profileErr
}
func (m *mockControl) SetThresholds(ctx context.Context, t models.Thresholds) error {
	m.thresholdCalls++
	m.lastThresholds = t
	return m.thresholdsErr
}
func (m *mockControl) SetPollInterval(ctx context.Context, seconds uint32) error {
	m.pollCalls++
	m.lastPoll = seconds
	return m.pollErr
}

type mockMonitoring struct {
	state models.PowerState
	err   error

	mu      sync.Mutex
	changes chan struct{}
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.PowerState, error) {
	return m.state, m.err
}

func (m *mockMonitoring) Subscribe() (<-chan struct{}, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.changes == nil {
		m.changes = make(chan struct{}, 1)
	}
	return m.changes, func() {}
}

// notify simulates a change reported by the control loop.
func (m *mockMonitoring) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.changes == nil {
		m.changes = make(chan struct{}, 1)
	}
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

type mockEventLog struct {
	resp  []models.PowerEvent
	err   error
	last  service.LogFilter
	calls int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.PowerEvent, error) {
	m.calls++
	m.last = f
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
