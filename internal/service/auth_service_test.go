package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/makkenzo/device-license-service/internal/config"
	"github.com/makkenzo/device-license-service/internal/ierr"
	"github.com/makkenzo/device-license-service/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	users := memstorage.NewUserRepository()
	users.AddAdmin("admin", string(hash))

	return NewAuthService(users, &config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	}, zap.NewNop())
}

func TestLoginAndValidateToken(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	token, err := svc.Login(ctx, "Admin", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ierr.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, ierr.ErrInvalidCredentials)
}

func TestValidateTokenRejections(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	token, err := svc.Login(ctx, "admin", "s3cret")
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken(ctx, "not-a-token")
		assert.ErrorIs(t, err, ierr.ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewAuthService(memstorage.NewUserRepository(), &config.AuthConfig{JWTSecret: "different", TokenTTL: time.Hour}, zap.NewNop())
		_, err := other.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ierr.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		svc.nowFn = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.nowFn = time.Now }()

		_, err := svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ierr.ErrInvalidToken)
	})

	t.Run("non admin role", func(t *testing.T) {
		claims := AdminClaims{
			Username: "viewer",
			Role:     "viewer",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, raw)
		assert.ErrorIs(t, err, ierr.ErrForbidden)
	})
}
