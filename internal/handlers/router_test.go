package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"github.com/releasedesk/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testPassword = "Str0ng!Pass"

type stubGateway struct {
	txs map[string]*services.Transaction
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) VerifyTransaction(_ context.Context, reference string) (*services.Transaction, error) {
	if tx, ok := g.txs[reference]; ok {
		return tx, nil
	}
	return nil, &services.NotFoundError{Entity: "payment", ID: reference}
}

type testApp struct {
	t      *testing.T
	db     *gorm.DB
	auth   *services.AuthService
	router *gin.Engine
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.Migrate(db))

	cfg := config.New()
	cfg.JWTSecret = "test-secret"
	cfg.BcryptCost = 4
	cfg.LocalAssetsPath = t.TempDir()
	cfg.GenerationTimeout = 2 * time.Second
	cfg.CampaignBatchSize = 3
	cfg.CampaignEstimateIncrement = 10
	cfg.CampaignSummaryLimit = 30
	cfg.StripeWebhookSecret = "whsec_test"
	log := logger.NewNop()

	gateway := &stubGateway{txs: map[string]*services.Transaction{
		"cs_paid": {Reference: "cs_paid", Status: services.TransactionSuccess, Amount: 900, Currency: "eur", Metadata: map[string]string{"plan": models.PlanMonthly}},
	}}

	authService := services.NewAuthService(db, nil, cfg, log)
	files := services.NewFileService(db, cfg, services.NewLocalStore(cfg), log)
	campaign := services.NewCampaignService(db, cfg, nil, log)
	router := NewRouter(cfg, log, db, nil, Services{
		Auth:         authService,
		Users:        services.NewUserService(db),
		Releases:     services.NewReleaseService(db, files, log),
		Tasks:        services.NewTaskService(db, log),
		Files:        files,
		Profiles:     services.NewProfileService(db, log),
		Campaigns:    campaign,
		Reports:      services.NewReportService(cfg, campaign),
		Subscription: services.NewSubscriptionService(db, gateway, log),
	})
	return &testApp{t: t, db: db, auth: authService, router: router}
}

// user registers an account and returns its access token.
func (a *testApp) user(email string) string {
	a.t.Helper()
	pair, err := a.auth.Register(context.Background(), email, testPassword, "Nova")
	require.NoError(a.t, err)
	return pair.AccessToken
}

func (a *testApp) admin(email string) string {
	a.t.Helper()
	a.user(email)
	require.NoError(a.t, a.db.Model(&models.User{}).Where("email = ?", email).Update("role", models.RoleAdmin).Error)
	pair, err := a.auth.Login(context.Background(), email, testPassword)
	require.NoError(a.t, err)
	return pair.AccessToken
}

func (a *testApp) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *testApp) createRelease(token string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/releases", token, map[string]interface{}{
		"title": "Night Drive", "artist_name": "Nova", "type": "single",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(a.t, w)["id"].(string)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"not found", fmt.Errorf("wrapped: %w", &services.NotFoundError{Entity: "release", ID: "x"}), http.StatusNotFound, "NOT_FOUND"},
		{"validation", &services.ValidationError{Field: "title", Message: "is required"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"conflict", &services.ConflictError{Message: "task is not current"}, http.StatusConflict, "CONFLICT"},
		{"upstream", &services.UpstreamError{Service: "stripe", Err: errors.New("502")}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"timeout", &services.TimeoutError{Service: "generator", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, "TIMEOUT"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tt.err)
			assert.Equal(t, tt.code, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.body, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	w := app.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "disabled", body["redis"])
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	app := newTestApp(t)
	assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodGet, "/api/v1/releases", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodGet, "/api/v1/payments/verify?reference=cs_paid", "", nil).Code)

	token := app.user("artist@example.com")
	assert.Equal(t, http.StatusForbidden, app.do(http.MethodGet, "/api/v1/admin/users", token, nil).Code)
}

func TestPaymentVerify(t *testing.T) {
	app := newTestApp(t)
	token := app.user("artist@example.com")

	w := app.do(http.MethodGet, "/api/v1/payments/verify", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	w = app.do(http.MethodGet, "/api/v1/payments/verify?reference=cs_unknown", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodGet, "/api/v1/payments/verify?reference=cs_paid", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, models.PlanMonthly, body["plan"])
	assert.NotEmpty(t, body["expires_at"])

	w = app.do(http.MethodGet, "/api/v1/me/payments", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cs_paid")
}

func TestPaymentWebhookAlwaysAcknowledges(t *testing.T) {
	app := newTestApp(t)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req := httptest.NewRequest(method, "/api/v1/payments/webhook", strings.NewReader(`{"type":"checkout.session.completed"}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=bad")
		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, method)
		assert.Equal(t, true, decode(t, w)["received"])
	}
}

func TestReleaseOwnership(t *testing.T) {
	app := newTestApp(t)
	owner := app.user("owner@example.com")
	stranger := app.user("stranger@example.com")
	admin := app.admin("admin@example.com")
	id := app.createRelease(owner)

	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/api/v1/releases/"+id, owner, nil).Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/api/v1/releases/"+id, admin, nil).Code)

	w := app.do(http.MethodGet, "/api/v1/releases/"+id, stranger, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodPost, "/api/v1/releases/"+id+"/campaign/start", stranger, nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(http.MethodGet, "/api/v1/releases/not-a-uuid", owner, nil).Code)

	w = app.do(http.MethodGet, "/api/v1/releases", stranger, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["releases"])

	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/api/v1/admin/users", admin, nil).Code)
}

func TestCampaignFlow(t *testing.T) {
	app := newTestApp(t)
	token := app.user("artist@example.com")
	id := app.createRelease(token)
	base := "/api/v1/releases/" + id

	require.Equal(t, http.StatusCreated, app.do(http.MethodPost, base+"/profile", token, nil).Code)

	w := app.do(http.MethodPost, base+"/campaign/start", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, app.db.Model(&models.ReleaseProfile{}).Where("release_id = ?", id).Update("setup_completed", true).Error)

	w = app.do(http.MethodPost, base+"/campaign/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view services.CampaignView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.NotNil(t, view.Current)
	assert.Equal(t, "Define your campaign goal", view.Current.Title)
	assert.Equal(t, 2, view.PendingCount)
	first := view.Current.ID.String()

	w = app.do(http.MethodPost, base+"/campaign/tasks/"+first+"/complete", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, 1, view.CompletedCount)
	require.NotNil(t, view.Current)
	assert.Equal(t, "Collect three reference campaigns", view.Current.Title)

	// completing the same task twice conflicts
	w = app.do(http.MethodPost, base+"/campaign/tasks/"+first+"/complete", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(http.MethodGet, base+"/campaign", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Len(t, view.Completed, 1)

	w = app.do(http.MethodGet, base+"/campaign/report.pdf", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Night Drive-campaign.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestDefaultChecklistConflict(t *testing.T) {
	app := newTestApp(t)
	token := app.user("artist@example.com")
	id := app.createRelease(token)

	assert.Equal(t, http.StatusCreated, app.do(http.MethodPost, "/api/v1/releases/"+id+"/tasks/defaults", token, nil).Code)
	w := app.do(http.MethodPost, "/api/v1/releases/"+id+"/tasks/defaults", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", decode(t, w)["code"])

	w = app.do(http.MethodGet, "/api/v1/releases/"+id+"/tasks/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 16, decode(t, w)["total"])
}

func TestDeactivatedUserLosesAccess(t *testing.T) {
	app := newTestApp(t)
	token := app.user("artist@example.com")
	admin := app.admin("admin@example.com")
	require.Equal(t, http.StatusOK, app.do(http.MethodGet, "/api/v1/me", token, nil).Code)

	var user models.User
	require.NoError(t, app.db.First(&user, "email = ?", "artist@example.com").Error)
	w := app.do(http.MethodPut, "/api/v1/admin/users/"+user.ID.String()+"/active", admin, map[string]bool{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodGet, "/api/v1/me", token, nil).Code)
}
