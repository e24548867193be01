package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-booking-server/booking"
	"court-booking-server/config"
	"court-booking-server/logging"
	"court-booking-server/models"
	"court-booking-server/store/memory"
	"court-booking-server/utils"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	prev := config.AppConfig
	config.AppConfig = &config.Config{JWT: config.JWTConfig{Secret: "test-secret", ExpiryHours: 1}}
	t.Cleanup(func() { config.AppConfig = prev })
	return NewAuthService(memory.New().Users(), logging.Discard())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{FullName: "Lan Tran", Email: "Lan@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "lan@example.com", res.User.Email)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.Equal(t, int64(3600), res.ExpiresIn)

	claims, err := utils.VerifyToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.Equal(t, "user", claims.Role)

	_, err = svc.Register(ctx, RegisterInput{FullName: "Again", Email: "lan@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, booking.ErrConflict)

	logged, err := svc.Login(ctx, LoginInput{Email: "LAN@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, logged.User.ID)

	me, err := svc.Me(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lan Tran", me.FullName)
}

func TestLogin_Rejections(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{FullName: "Minh", Email: "minh@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginInput{Email: "minh@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, booking.ErrUnauthorized)
	assert.Equal(t, 401, booking.HTTPStatus(err))

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	_, err = svc.Register(ctx, RegisterInput{FullName: "Short", Email: "short@example.com", Password: "123"})
	assert.ErrorIs(t, err, booking.ErrInvalidInput)

	_, err = svc.Register(ctx, RegisterInput{FullName: "Bad", Email: "not-an-email", Password: "secret1"})
	assert.ErrorIs(t, err, booking.ErrInvalidInput)
}
