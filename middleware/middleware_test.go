package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-booking-server/config"
	"court-booking-server/logging"
	"court-booking-server/models"
	"court-booking-server/store/memory"
	"court-booking-server/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*memory.UserStore, *models.User, *models.User) {
	t.Helper()
	prev := config.AppConfig
	config.AppConfig = &config.Config{JWT: config.JWTConfig{Secret: "mw-secret", ExpiryHours: 1}}
	t.Cleanup(func() { config.AppConfig = prev })

	users := memory.New().Users()
	member := &models.User{FullName: "Member", Email: "member@example.com", Role: models.RoleUser, IsActive: true}
	admin := &models.User{FullName: "Admin", Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true}
	require.NoError(t, users.Create(context.Background(), member))
	require.NoError(t, users.Create(context.Background(), admin))
	return users, member, admin
}

func token(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := utils.GenerateToken(u.ID, string(u.Role))
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	users, member, admin := setup(t)

	r := gin.New()
	r.GET("/me", AuthMiddleware(users), func(c *gin.Context) {
		a := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": a.ID, "role": a.Role})
	})
	r.GET("/admin", AuthMiddleware(users), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	do := func(path, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", token(t, member)).Code, "missing Bearer prefix")
	assert.Equal(t, http.StatusUnauthorized, do("/me", "Bearer garbage").Code)

	w := do("/me", "Bearer "+token(t, member))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"role":"user"}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, do("/admin", "Bearer "+token(t, member)).Code)
	assert.Equal(t, http.StatusNoContent, do("/admin", "Bearer "+token(t, admin)).Code)
}

func TestWebSocketAuthMiddleware_QueryToken(t *testing.T) {
	users, member, _ := setup(t)

	r := gin.New()
	r.GET("/ws", WebSocketAuthMiddleware(users), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token(t, member), nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.GetLimiterWithConfig("a", 1, 1)
	now = now.Add(30 * time.Minute)
	rl.GetLimiterWithConfig("b", 1, 1)
	now = now.Add(45 * time.Minute)

	assert.Equal(t, 1, rl.Cleanup(time.Hour))
	assert.Equal(t, 1, rl.Len())
}

func TestAuthRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.POST("/login", AuthRateLimitMiddleware(NewRateLimiter(), logging.Discard()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, http.StatusOK, codes[4])
	assert.Equal(t, http.StatusTooManyRequests, codes[5])
}

func TestAuditLogMiddleware_RequestID(t *testing.T) {
	r := gin.New()
	r.Use(AuditLogMiddleware(logging.Discard()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}
