package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quantpulse/middleware"
	"quantpulse/models"
	"quantpulse/scheduler"
	"quantpulse/services/analyzer"
	"quantpulse/services/auth"
	"quantpulse/services/marketdata"
	"quantpulse/services/notifier"
	"quantpulse/services/providers"
	"quantpulse/services/symbols"
	"quantpulse/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubChart struct{}

func (stubChart) GetDailyBars(yahooSymbol string, lookback string) ([]providers.Bar, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()

	hub := notifier.NewHub()
	marketDataService := marketdata.NewService(db, nil, stubChart{})
	analyzerService := analyzer.NewService(db, nil, nil)
	notifierService := notifier.NewService(db, hub, "", false)

	router := gin.New()
	SetupRoutes(router, Deps{
		DB:         db,
		Auth:       auth.NewService(db),
		Symbols:    symbols.NewService(db, nil),
		MarketData: marketDataService,
		Analyzer:   analyzerService,
		Notifier:   notifierService,
		Hub:        hub,
		Scheduler:  scheduler.NewScheduler(db, marketDataService, analyzerService, notifierService),
		Providers:  map[string]symbols.SymbolProvider{},
		LoginLimit: middleware.NewLoginRateLimiter(),
	})
	return router
}

func doAuthed(router *gin.Engine, method, path string, user *models.User) *httptest.ResponseRecorder {
	token, err := middleware.GenerateAccessToken(user)
	if err != nil {
		panic(err)
	}
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestFetchAllOpenToApprovedUsers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	router := newTestRouter(t, db)
	user := testutil.CreateTestUser(t, db)

	w := doAuthed(router, http.MethodPost, "/api/v1/market-data/fetch-all", user)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for approved non-admin user, got %d: %s", w.Code, w.Body)
	}
}

func TestPipelineTriggerRequiresAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	router := newTestRouter(t, db)

	user := testutil.CreateTestUser(t, db)
	if w := doAuthed(router, http.MethodPost, "/api/v1/analysis/pipeline/run", user); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", w.Code)
	}

	admin := testutil.CreateTestAdmin(t, db)
	if w := doAuthed(router, http.MethodPost, "/api/v1/analysis/pipeline/run", admin); w.Code != http.StatusAccepted {
		t.Errorf("expected 202 for admin, got %d: %s", w.Code, w.Body)
	}
}

func TestArchiveEndpointWithoutArchive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	router := newTestRouter(t, db)
	user := testutil.CreateTestUser(t, db)

	w := doAuthed(router, http.MethodGet, "/api/v1/signals/archive/AAPL", user)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when the archive is not configured, got %d: %s", w.Code, w.Body)
	}
}

func TestEventsRecentRequiresAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	router := newTestRouter(t, db)

	user := testutil.CreateTestUser(t, db)
	if w := doAuthed(router, http.MethodGet, "/api/v1/events/recent?type=signal_triggered", user); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", w.Code)
	}

	admin := testutil.CreateTestAdmin(t, db)
	if w := doAuthed(router, http.MethodGet, "/api/v1/events/recent?type=signal_triggered", admin); w.Code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d: %s", w.Code, w.Body)
	}
	if w := doAuthed(router, http.MethodGet, "/api/v1/events/recent?type=bogus", admin); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown event type, got %d: %s", w.Code, w.Body)
	}
}
