package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loyalty-ledger/internal/adapter/http/dto"
	"loyalty-ledger/internal/core/domain"
	"loyalty-ledger/internal/core/ports"
	"loyalty-ledger/internal/service"
	"loyalty-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- stubs ---

type stubAuthService struct {
	result *ports.LoginResult
	err    error
}

func (s *stubAuthService) Login(context.Context, string, string) (*ports.LoginResult, error) {
	return s.result, s.err
}

type stubFacade struct {
	result  domain.Result
	lastReq ports.SubmitRequest
}

func (s *stubFacade) Submit(_ context.Context, req ports.SubmitRequest) domain.Result {
	s.lastReq = req
	return s.result
}

type stubQueue struct {
	pending int
	err     error
}

func (s *stubQueue) Execute(context.Context, domain.OperationParams) domain.Result {
	return domain.CommittedResult()
}
func (s *stubQueue) ProcessQueue(context.Context) {}
func (s *stubQueue) Pending() (int, error)        { return s.pending, s.err }

type stubMonitor struct{ online bool }

func (s *stubMonitor) Online() bool        { return s.online }
func (s *stubMonitor) Events() <-chan bool { return nil }

type stubAccountRepo struct {
	account *domain.CustomerAccount
	err     error
}

func (s *stubAccountRepo) GetByDNI(context.Context, string) (*domain.CustomerAccount, error) {
	return s.account, s.err
}
func (s *stubAccountRepo) GetForUpdate(context.Context, pgx.Tx, string) (*domain.CustomerAccount, error) {
	return s.account, s.err
}
func (s *stubAccountRepo) Create(context.Context, pgx.Tx, *domain.CustomerAccount) error { return nil }
func (s *stubAccountRepo) ApplyCredit(context.Context, pgx.Tx, *domain.CustomerAccount) error {
	return nil
}

func postJSON(t *testing.T, handler gin.HandlerFunc, path string, payload any, ctxValues map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	for k, v := range ctxValues {
		c.Set(k, v)
	}
	handler(c)
	return w
}

// --- Auth Handler Tests ---

func TestLogin_Success(t *testing.T) {
	auth := &stubAuthService{result: &ports.LoginResult{
		Token:     "jwt-token",
		ExpiresAt: time.Now().Add(time.Hour),
		Staff: &domain.StaffAccount{
			ID:          uuid.New(),
			Username:    "mrodriguez",
			DisplayName: "Maria Rodriguez",
			Status:      domain.StaffStatusActive,
		},
	}}
	h := NewAuthHandler(auth)

	w := postJSON(t, h.Login, "/api/v1/auth/login",
		dto.LoginRequest{Username: "mrodriguez", Password: "secret"}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "jwt-token", data["token"])
	assert.Equal(t, "Maria Rodriguez", data["display_name"])
}

func TestLogin_ValidationError(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{})

	w := postJSON(t, h.Login, "/api/v1/auth/login", map[string]string{}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{err: apperror.ErrInvalidCredentials()})

	w := postJSON(t, h.Login, "/api/v1/auth/login",
		dto.LoginRequest{Username: "mrodriguez", Password: "wrong"}, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Scan Handler Tests ---

func TestScanSubmit_Committed(t *testing.T) {
	result := domain.CommittedResult()
	result.Benefit = &domain.Benefit{ID: "BF-1", Name: "free coffee"}
	facade := &stubFacade{result: result}
	h := NewScanHandler(facade, &stubQueue{}, &stubMonitor{online: true})

	w := postJSON(t, h.Submit, "/api/v1/scans",
		dto.ScanRequest{Code: "BNF:SER-1", CustomerDNI: "DNI123", DeviceID: "device-1"},
		map[string]any{"username": "mrodriguez"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "COMMITTED", data["status"])
	assert.Equal(t, "free coffee", data["benefit"].(map[string]interface{})["name"])

	// The decoded code and the redeeming customer reach the facade.
	assert.Equal(t, domain.ScanKindBenefit, facade.lastReq.Code.Kind)
	assert.Equal(t, "SER-1", facade.lastReq.Code.SerialID)
	assert.Equal(t, "DNI123", facade.lastReq.ActorID)
}

func TestScanSubmit_ActorDefaultsToStaff(t *testing.T) {
	facade := &stubFacade{result: domain.CommittedResult()}
	h := NewScanHandler(facade, &stubQueue{}, &stubMonitor{online: true})

	postJSON(t, h.Submit, "/api/v1/scans",
		dto.ScanRequest{Code: "APP:DNI123:n-1"},
		map[string]any{"username": "mrodriguez"})

	assert.Equal(t, "mrodriguez", facade.lastReq.ActorID)
}

func TestScanSubmit_Queued(t *testing.T) {
	h := NewScanHandler(&stubFacade{result: domain.QueuedResult()}, &stubQueue{}, &stubMonitor{})

	w := postJSON(t, h.Submit, "/api/v1/scans",
		dto.ScanRequest{Code: "BNF:SER-1"}, map[string]any{"username": "mrodriguez"})

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestScanSubmit_Rejected(t *testing.T) {
	h := NewScanHandler(&stubFacade{result: domain.RejectedResult("serial has already been used")},
		&stubQueue{}, &stubMonitor{online: true})

	w := postJSON(t, h.Submit, "/api/v1/scans",
		dto.ScanRequest{Code: "BNF:SER-1"}, map[string]any{"username": "mrodriguez"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "REJECTED", data["status"])
	assert.Equal(t, "serial has already been used", data["reason"])
}

func TestScanSubmit_MissingCode(t *testing.T) {
	h := NewScanHandler(&stubFacade{}, &stubQueue{}, &stubMonitor{})

	w := postJSON(t, h.Submit, "/api/v1/scans", map[string]string{}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanSubmit_UnsafeDeviceID(t *testing.T) {
	h := NewScanHandler(&stubFacade{}, &stubQueue{}, &stubMonitor{})

	w := postJSON(t, h.Submit, "/api/v1/scans",
		dto.ScanRequest{Code: "BNF:SER-1", DeviceID: "evil;rm -rf"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueueStatus(t *testing.T) {
	h := NewScanHandler(&stubFacade{}, &stubQueue{pending: 4}, &stubMonitor{online: false})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/queue/status", nil)
	h.QueueStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(4), data["pending"])
	assert.Equal(t, false, data["online"])
}

// --- Customer Handler Tests ---

func TestCustomerGet_Found(t *testing.T) {
	visited := time.Date(2026, 3, 9, 20, 15, 0, 0, time.UTC)
	h := NewCustomerHandler(&stubAccountRepo{account: &domain.CustomerAccount{
		DNI:         "DNI123",
		Points:      120,
		VisitCount:  12,
		LastVisitAt: &visited,
	}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/customers/DNI123", nil)
	c.Params = gin.Params{{Key: "dni", Value: "DNI123"}}
	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "DNI123", data["dni"])
	assert.Equal(t, float64(120), data["points"])
	assert.Equal(t, "2026-03-09T20:15:00Z", data["last_visit_at"])
}

func TestCustomerGet_NotFound(t *testing.T) {
	h := NewCustomerHandler(&stubAccountRepo{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/customers/UNKNOWN", nil)
	c.Params = gin.Params{{Key: "dni", Value: "UNKNOWN"}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Router Tests ---

func TestRouter_ScansRequireAuth(t *testing.T) {
	tokenSvc := service.NewJWTTokenService("test-secret", time.Hour, "loyalty-ledger")
	router := SetupRouter(RouterDeps{
		AuthSvc:     &stubAuthService{err: apperror.ErrInvalidCredentials()},
		FacadeSvc:   &stubFacade{result: domain.CommittedResult()},
		QueueSvc:    &stubQueue{},
		Monitor:     &stubMonitor{online: true},
		AccountRepo: &stubAccountRepo{},
		TokenSvc:    tokenSvc,
		Logger:      zerolog.Nop(),
	})

	body, _ := json.Marshal(dto.ScanRequest{Code: "BNF:SER-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, err := tokenSvc.Generate(uuid.New(), "mrodriguez")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

type stubChecker struct {
	name string
	err  error
}

func (s *stubChecker) Ping(context.Context) error { return s.err }
func (s *stubChecker) Name() string               { return s.name }

func TestRouter_HealthCheck(t *testing.T) {
	router := SetupRouter(RouterDeps{
		AuthSvc:        &stubAuthService{},
		FacadeSvc:      &stubFacade{},
		QueueSvc:       &stubQueue{},
		Monitor:        &stubMonitor{},
		AccountRepo:    &stubAccountRepo{},
		TokenSvc:       service.NewJWTTokenService("test-secret", time.Hour, "loyalty-ledger"),
		HealthCheckers: []ports.HealthChecker{&stubChecker{name: "postgres"}, &stubChecker{name: "redis", err: assert.AnError}},
		Logger:         zerolog.Nop(),
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
}
