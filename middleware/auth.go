package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"court-booking-server/models"
	"court-booking-server/store"
	"court-booking-server/utils"
)

// Context keys set by the auth middlewares.
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
	ContextActor  = "actor"
)

func abort(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   kind,
		"message": message,
	})
}

// authenticate resolves a token to an active user and stores it on the context.
func authenticate(c *gin.Context, users store.Users, token string) bool {
	claims, err := utils.VerifyToken(token)
	if err != nil {
		abort(c, http.StatusUnauthorized, "unauthorized", "Token is invalid or expired")
		return false
	}

	user, err := users.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		abort(c, http.StatusUnauthorized, "unauthorized", "User associated with token not found")
		return false
	}
	if !user.IsActive {
		abort(c, http.StatusUnauthorized, "unauthorized", "User account is deactivated")
		return false
	}

	c.Set(ContextUser, user)
	c.Set(ContextUserID, user.ID)
	c.Set(ContextActor, models.Actor{ID: user.ID, Role: user.Role})
	return true
}

// AuthMiddleware validates bearer tokens and sets the caller on the context.
func AuthMiddleware(users store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "Authorization header required")
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			abort(c, http.StatusUnauthorized, "unauthorized", "Token must be in format: Bearer <token>")
			return
		}
		if authenticate(c, users, token) {
			c.Next()
		}
	}
}

// WebSocketAuthMiddleware reads the token from the query string, since
// browsers cannot set headers on an upgrade request.
func WebSocketAuthMiddleware(users store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "Please provide a valid token in query parameters")
			return
		}
		if authenticate(c, users, token) {
			c.Next()
		}
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ActorFrom(c).IsAdmin() {
			abort(c, http.StatusForbidden, "forbidden", "Admin access required")
			return
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated caller, or the zero actor.
func ActorFrom(c *gin.Context) models.Actor {
	if v, ok := c.Get(ContextActor); ok {
		if a, ok := v.(models.Actor); ok {
			return a
		}
	}
	return models.Actor{}
}
