package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestLoginRateLimiterDefaults(t *testing.T) {
	rl := NewLoginRateLimiter()
	if rl.maxAttempts != 5 {
		t.Errorf("expected 5 max attempts, got %d", rl.maxAttempts)
	}
	if rl.windowPeriod != 15*time.Minute {
		t.Errorf("expected 15m window, got %s", rl.windowPeriod)
	}
	if rl.lockDuration != 30*time.Minute {
		t.Errorf("expected 30m lockout, got %s", rl.lockDuration)
	}
}

func TestRateLimiterLocksAfterMaxFailures(t *testing.T) {
	rl := NewLoginRateLimiter()
	ip := "10.0.0.1"

	for i := 0; i < 4; i++ {
		rl.RecordFailure(ip)
		if !rl.Allow(ip) {
			t.Fatalf("expected attempt %d to be allowed", i+2)
		}
	}

	rl.RecordFailure(ip)
	if rl.Allow(ip) {
		t.Error("expected IP locked after 5 failures")
	}
	if !rl.attempts[ip].IsLocked {
		t.Error("expected attempt record marked locked")
	}
}

func TestRateLimiterLockExpires(t *testing.T) {
	rl := NewLoginRateLimiter()
	ip := "10.0.0.2"

	for i := 0; i < 5; i++ {
		rl.RecordFailure(ip)
	}
	if rl.Allow(ip) {
		t.Fatal("expected IP locked")
	}

	rl.mu.Lock()
	rl.attempts[ip].LockedAt = time.Now().Add(-31 * time.Minute)
	rl.mu.Unlock()

	if !rl.Allow(ip) {
		t.Error("expected lock released after the lockout period")
	}
}

func TestRateLimiterWindowExpires(t *testing.T) {
	rl := NewLoginRateLimiter()
	ip := "10.0.0.3"

	rl.RecordFailure(ip)
	rl.RecordFailure(ip)

	rl.mu.Lock()
	rl.attempts[ip].FirstAt = time.Now().Add(-16 * time.Minute)
	rl.mu.Unlock()

	if !rl.Allow(ip) {
		t.Error("expected stale window cleared on the next attempt")
	}
	// A failure after the window starts a fresh count.
	rl.RecordFailure(ip)
	if rl.attempts[ip].Count != 1 {
		t.Errorf("expected fresh count 1, got %d", rl.attempts[ip].Count)
	}
}

func TestRateLimiterSuccessClearsHistory(t *testing.T) {
	rl := NewLoginRateLimiter()
	ip := "10.0.0.4"

	rl.RecordFailure(ip)
	rl.RecordFailure(ip)
	rl.RecordSuccess(ip)

	if _, exists := rl.attempts[ip]; exists {
		t.Error("expected attempt history cleared after successful login")
	}
}

func TestRateLimiterCleanupDropsExpiredEntries(t *testing.T) {
	rl := NewLoginRateLimiter()

	rl.mu.Lock()
	rl.attempts["stale"] = &LoginAttempt{Count: 2, FirstAt: time.Now().Add(-16 * time.Minute)}
	rl.attempts["locked-stale"] = &LoginAttempt{IsLocked: true, LockedAt: time.Now().Add(-31 * time.Minute)}
	rl.attempts["fresh"] = &LoginAttempt{Count: 1, FirstAt: time.Now()}
	rl.mu.Unlock()

	rl.cleanup()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if _, exists := rl.attempts["stale"]; exists {
		t.Error("expected expired window entry removed")
	}
	if _, exists := rl.attempts["locked-stale"]; exists {
		t.Error("expected expired lock entry removed")
	}
	if _, exists := rl.attempts["fresh"]; !exists {
		t.Error("expected fresh entry kept")
	}
}

func TestLoginRateLimitMiddleware(t *testing.T) {
	rl := NewLoginRateLimiter()

	router := gin.New()
	router.POST("/login", LoginRateLimit(rl), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	doLogin := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.5:1234"
		router.ServeHTTP(w, req)
		return w
	}

	if w := doLogin(); w.Code != http.StatusOK {
		t.Fatalf("expected 200 before lockout, got %d", w.Code)
	}

	for i := 0; i < 5; i++ {
		rl.RecordFailure("10.0.0.5")
	}
	if w := doLogin(); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for locked IP, got %d", w.Code)
	}
}
