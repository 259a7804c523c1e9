package http

import (
	"bytes"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/marketplace-accounts/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-accounts/internal/auth"
	"github.com/spec-kit/marketplace-accounts/internal/config"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/events"
	"github.com/spec-kit/marketplace-accounts/internal/fakes"
	"github.com/spec-kit/marketplace-accounts/internal/observability"
	"github.com/spec-kit/marketplace-accounts/internal/ratelimit"
	"github.com/spec-kit/marketplace-accounts/internal/service"
)

const (
	testOrigin = "http://localhost:3000"
	chromeUA   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"
)

type testServer struct {
	app   *fiber.App
	store *fakes.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := fakes.NewStore()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	dispatcher := events.NewInMemoryDispatcher()

	cfg := config.Config{
		Identity: config.IdentityConfig{ListPageSize: 50},
		Guard: config.GuardConfig{
			SiteURL:        "https://market.example.fr",
			LocalhostPorts: []string{"3000"},
			MarkerHeader:   "X-Requested-With",
			MarkerValue:    "XMLHttpRequest",
		},
	}

	provisioning := service.NewProvisioningService(cfg, service.ProvisioningDependencies{
		Identities:     store.Identities(),
		ProfileRepo:    store.Profiles(),
		ProProfileRepo: store.ProProfiles(),
		ReferenceRepo:  store.Reference(),
		ProcedureRepo:  store.Procedures(),
		Dispatcher:     dispatcher,
		Metrics:        metrics,
	}, logger)
	admin := service.NewAdminService(service.AdminDependencies{
		Identities:   store.Identities(),
		ProfileRepo:  store.Profiles(),
		ListPageSize: 50,
	}, logger)
	sessions := service.NewAuthService(service.AuthDependencies{
		Identities:  store.Identities(),
		ProfileRepo: store.Profiles(),
	}, logger)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("marketplace-accounts", "test"),
		Accounts:       handlers.NewAccountsHandler(provisioning),
		Admin:          handlers.NewAdminHandler(provisioning, admin),
		Sessions:       handlers.NewSessionHandler(sessions),
		Reference:      handlers.NewReferenceHandler(service.NewReferenceService(store.Reference())),
		Profiles:       handlers.NewProfileHandler(service.NewProfileService(store.Profiles(), store.ProProfiles(), nil, logger)),
		Guard:          auth.NewGuard(cfg.Guard, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(store.Identities(), store.Profiles()),
		EmailCheckRate: ratelimit.PerClientIP(ratelimit.NewTokenBucket(client), "check-email", 0.001, 5, logger),
		MetricsPath:    "/metrics",
		Gatherer:       registry,
	})
	return &testServer{app: app, store: store}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Origin", testOrigin)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *testServer) signIn(t *testing.T, email, password string) string {
	t.Helper()
	status, env := s.do(t, nethttp.MethodPost, "/api/auth/sign-in", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, nethttp.StatusOK, status, env.Error)
	var result struct {
		Session struct {
			AccessToken string `json:"access_token"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.NotEmpty(t, result.Session.AccessToken)
	return result.Session.AccessToken
}

func TestProfessionalRegistrationEndToEnd(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, nethttp.MethodPost, "/api/register", map[string]any{
		"accountType":  "pro",
		"email":        "new@pro.fr",
		"password":     "Secret12",
		"first_name":   "Jean",
		"last_name":    "Dupont",
		"sector_key":   "batiment",
		"category_key": "plomberie",
	}, "")
	require.Equal(t, nethttp.StatusCreated, status, env.Error)
	assert.True(t, env.Success)

	var summary domain.AccountSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, domain.AccountTypePro, summary.AccountType)

	token := s.signIn(t, "new@pro.fr", "Secret12")
	status, env = s.do(t, nethttp.MethodGet, "/api/profile", nil, token)
	require.Equal(t, nethttp.StatusOK, status)
	var profile domain.Profile
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, domain.RolePro, profile.RoleKey)
	assert.Equal(t, "new@pro.fr", profile.Email)

	status, _ = s.do(t, nethttp.MethodGet, "/api/pro-profile", nil, token)
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestRegisterErrorsUseTheTaxonomy(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, nethttp.MethodPost, "/api/register", map[string]any{
		"account_type": "pro",
		"email":        "new@pro.fr",
		"password":     "Secret12",
		"first_name":   "Jean",
		"last_name":    "Dupont",
		"sector_key":   "services",
		"category_key": "plomberie",
	}, "")
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "CATEGORY_SECTOR_MISMATCH", env.Code)
	assert.Equal(t, "invalid selection", env.Error)
	assert.Empty(t, s.store.IdentityEmails())

	status, env = s.do(t, nethttp.MethodPost, "/api/register", map[string]any{"account_type": "user"}, "")
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)
	assert.NotEmpty(t, env.Details)

	s.store.Seed("taken@example.com", "x", domain.RoleUser, time.Now())
	status, env = s.do(t, nethttp.MethodPost, "/api/register", map[string]any{
		"account_type": "user",
		"email":        "taken@example.com",
		"password":     "Secret12",
		"first_name":   "A",
		"last_name":    "B",
	}, "")
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "this email is already in use", env.Error)
}

func TestCheckEmail(t *testing.T) {
	s := newTestServer(t)
	s.store.Seed("taken@example.com", "x", domain.RoleUser, time.Now())

	status, env := s.do(t, nethttp.MethodPost, "/api/check-email", map[string]string{"email": "taken@example.com"}, "")
	require.Equal(t, nethttp.StatusOK, status)
	var availability service.EmailAvailability
	require.NoError(t, json.Unmarshal(env.Data, &availability))
	assert.False(t, availability.Available)

	status, env = s.do(t, nethttp.MethodPost, "/api/check-email", map[string]string{"email": "free@example.com"}, "")
	require.Equal(t, nethttp.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &availability))
	assert.True(t, availability.Available)
}

func TestCheckEmailIsRateLimited(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 5; i++ {
		status, _ := s.do(t, nethttp.MethodPost, "/api/check-email", map[string]string{"email": "a@example.com"}, "")
		require.Equal(t, nethttp.StatusOK, status)
	}
	status, env := s.do(t, nethttp.MethodPost, "/api/check-email", map[string]string{"email": "a@example.com"}, "")
	assert.Equal(t, nethttp.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", env.Code)
}

func TestGuardProtectsAPI(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(nethttp.MethodGet, "/api/departments", nil)
	req.Header.Set("User-Agent", chromeUA)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, nethttp.StatusForbidden, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, auth.ReasonDirectAccess, body["error"])

	req = httptest.NewRequest(nethttp.MethodPost, "/api/register", bytes.NewBufferString(`{}`))
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, nethttp.StatusForbidden, resp.StatusCode)

	status, env := s.do(t, nethttp.MethodGet, "/api/departments", nil, "")
	require.Equal(t, nethttp.StatusOK, status)
	var catalog service.DepartmentCatalog
	require.NoError(t, json.Unmarshal(env.Data, &catalog))
	assert.Len(t, catalog.Departments, 3)
	assert.Len(t, catalog.Regions, 2)
}

func TestProData(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, nethttp.MethodGet, "/api/pro-data", nil, "")
	require.Equal(t, nethttp.StatusOK, status)
	var all struct {
		Sectors []domain.Sector `json:"sectors"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &all))
	require.Len(t, all.Sectors, 2)
	assert.Len(t, all.Sectors[0].Categories, 2)

	status, env = s.do(t, nethttp.MethodGet, "/api/pro-data?sector=services", nil, "")
	require.Equal(t, nethttp.StatusOK, status)
	var one struct {
		Categories []domain.Category `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &one))
	require.Len(t, one.Categories, 1)
	assert.Equal(t, "menage", one.Categories[0].Key)
}

func TestBecomePro(t *testing.T) {
	s := newTestServer(t)
	s.store.Seed("client@example.com", "pw", domain.RoleUser, time.Now())

	status, env := s.do(t, nethttp.MethodPost, "/api/become-pro", map[string]any{"sector_key": "batiment", "category_key": "plomberie"}, "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	token := s.signIn(t, "client@example.com", "pw")
	status, _ = s.do(t, nethttp.MethodPost, "/api/become-pro", map[string]any{"sector_key": "batiment", "category_key": "plomberie"}, token)
	assert.Equal(t, nethttp.StatusCreated, status)

	status, env = s.do(t, nethttp.MethodPost, "/api/become-pro", map[string]any{"sector_key": "batiment", "category_key": "plomberie"}, token)
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "ALREADY_PROFESSIONAL", env.Code)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	adminID := s.store.Seed("root@example.com", "pw", domain.RoleAdmin, time.Now())
	s.store.Seed("client@example.com", "pw", domain.RoleUser, time.Now())
	s.store.Seed("pro@example.com", "pw", domain.RolePro, time.Now())

	userToken := s.signIn(t, "client@example.com", "pw")
	status, env := s.do(t, nethttp.MethodGet, "/api/admin/users", nil, userToken)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Code)

	adminToken := s.signIn(t, "root@example.com", "pw")
	status, env = s.do(t, nethttp.MethodGet, "/api/admin/users?role=pro", nil, adminToken)
	require.Equal(t, nethttp.StatusOK, status)
	var page service.UserPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "pro@example.com", page.Users[0].Email)

	status, env = s.do(t, nethttp.MethodGet, "/api/admin/user-stats", nil, adminToken)
	require.Equal(t, nethttp.StatusOK, status)
	var stats service.UserStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, service.UserStats{TotalUsers: 3, ActiveUsers: 3, ProUsers: 1, AdminUsers: 1}, stats)

	status, env = s.do(t, nethttp.MethodPost, "/api/admin/user-role", map[string]string{"userId": adminID, "roleKey": "user"}, adminToken)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "SELF_DEMOTION_FORBIDDEN", env.Code)

	status, env = s.do(t, nethttp.MethodPost, "/api/admin/create-admin", map[string]string{
		"email": "ops@example.com", "password": "Secret12", "first_name": "Ops", "last_name": "Team",
	}, adminToken)
	require.Equal(t, nethttp.StatusCreated, status, env.Error)
	var summary domain.AccountSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, domain.RoleAdmin, summary.RoleKey)
}

func TestSignOutRevokesSession(t *testing.T) {
	s := newTestServer(t)
	s.store.Seed("client@example.com", "pw", domain.RoleUser, time.Now())
	token := s.signIn(t, "client@example.com", "pw")

	status, _ := s.do(t, nethttp.MethodPost, "/api/auth/sign-out", nil, token)
	require.Equal(t, nethttp.StatusOK, status)

	status, env := s.do(t, nethttp.MethodGet, "/api/profile", nil, token)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "not authenticated", env.Error)

	status, _ = s.do(t, nethttp.MethodPost, "/api/auth/sign-in", map[string]string{"email": "client@example.com", "password": "wrong"}, "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, nethttp.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)

	resp, err := s.app.Test(httptest.NewRequest(nethttp.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "accounts_http_requests_total")
	assert.Contains(t, string(raw), "accounts_domain_errors_total")
}
