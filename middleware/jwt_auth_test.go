package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quantpulse/models"
	"quantpulse/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newProtectedRouter(db *gorm.DB, adminOnly bool) *gin.Engine {
	router := gin.New()
	handlers := []gin.HandlerFunc{AuthMiddleware(db)}
	if adminOnly {
		handlers = append(handlers, RequireAdmin())
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/protected", handlers...)
	return router
}

func doRequest(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTokenRoundTrip(t *testing.T) {
	user := &models.User{Role: models.RoleUser}
	user.ID = 42

	token, err := GenerateAccessToken(user)
	testutil.AssertNoError(t, err)

	claims, err := ParseToken(token)
	testutil.AssertNoError(t, err)
	if claims.UserID != 42 {
		t.Errorf("expected user ID 42, got %d", claims.UserID)
	}
	if claims.TokenType != "access" {
		t.Errorf("expected access token type, got %s", claims.TokenType)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	user := &models.User{Role: models.RoleUser}
	user.ID = 7

	token, err := signToken(user, "access", -time.Minute)
	testutil.AssertNoError(t, err)

	if _, err := ParseToken(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestRefreshTokenRejectedAsAccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)

	refresh, err := GenerateRefreshToken(user)
	testutil.AssertNoError(t, err)

	router := newProtectedRouter(db, false)
	w := doRequest(router, refresh)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for refresh token on protected route, got %d", w.Code)
	}
}

func TestValidateRefreshToken(t *testing.T) {
	user := &models.User{Role: models.RoleUser}
	user.ID = 9

	refresh, err := GenerateRefreshToken(user)
	testutil.AssertNoError(t, err)

	claims, err := ValidateRefreshToken(refresh)
	testutil.AssertNoError(t, err)
	if claims.UserID != 9 {
		t.Errorf("expected user ID 9, got %d", claims.UserID)
	}

	access, err := GenerateAccessToken(user)
	testutil.AssertNoError(t, err)
	if _, err := ValidateRefreshToken(access); err == nil {
		t.Error("expected access token to be rejected by refresh validation")
	}
}

func TestAuthMiddlewareLoadsUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)

	token, err := GenerateAccessToken(user)
	testutil.AssertNoError(t, err)

	router := newProtectedRouter(db, false)
	w := doRequest(router, token)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	router := newProtectedRouter(db, false)
	w := doRequest(router, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
}

func TestAuthMiddlewareRejectsDeactivatedUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)

	token, err := GenerateAccessToken(user)
	testutil.AssertNoError(t, err)

	// Token is still live, but the account has since been disabled.
	if err := db.Model(user).Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate user: %v", err)
	}

	router := newProtectedRouter(db, false)
	w := doRequest(router, token)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for deactivated user, got %d", w.Code)
	}
}

func TestRequireAdminGating(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	admin := testutil.CreateTestAdmin(t, db)

	router := newProtectedRouter(db, true)

	userToken, err := GenerateAccessToken(user)
	testutil.AssertNoError(t, err)
	if w := doRequest(router, userToken); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for USER role on admin route, got %d", w.Code)
	}

	adminToken, err := GenerateAccessToken(admin)
	testutil.AssertNoError(t, err)
	if w := doRequest(router, adminToken); w.Code != http.StatusOK {
		t.Errorf("expected 200 for ADMIN role on admin route, got %d", w.Code)
	}
}

func TestRequireApprovedBlocksPendingUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	pending := testutil.CreateTestPendingUser(t, db)

	token, err := GenerateAccessToken(pending)
	testutil.AssertNoError(t, err)

	router := gin.New()
	router.GET("/protected", AuthMiddleware(db), RequireApproved(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := doRequest(router, token)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for pending user, got %d", w.Code)
	}
}
