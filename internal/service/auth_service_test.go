package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
)

func newAuthService(t *testing.T, password string) (*AuthService, *auth.TokenManager) {
	t.Helper()
	hash := ""
	if password != "" {
		var err error
		hash, err = auth.HashPassword(password, bcrypt.MinCost)
		require.NoError(t, err)
	}
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	return NewAuthService(config.AuthConfig{
		AdminEmail:        "Admin@Example.com",
		AdminPasswordHash: hash,
	}, tokens), tokens
}

func TestLoginAdmin(t *testing.T) {
	svc, tokens := newAuthService(t, "s3cret")

	res, err := svc.LoginAdmin(context.Background(), " admin@example.com ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", res.Email)
	assert.Equal(t, AdminSubjectID("admin@example.com"), res.SubjectID)

	claims, err := tokens.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.SenderAdmin, claims.Role)
	assert.Equal(t, res.SubjectID, claims.Subject)
}

func TestLoginAdminRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthService(t, "s3cret")

	_, err := svc.LoginAdmin(context.Background(), "admin@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.LoginAdmin(context.Background(), "other@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginAdminDisabledWithoutHash(t *testing.T) {
	svc, _ := newAuthService(t, "")
	_, err := svc.LoginAdmin(context.Background(), "admin@example.com", "anything")
	assert.ErrorIs(t, err, ErrLoginDisabled)
}

func TestAdminSubjectIDStable(t *testing.T) {
	assert.Equal(t, AdminSubjectID("ADMIN@example.com"), AdminSubjectID("admin@example.com"))
	assert.NotEqual(t, AdminSubjectID("a@example.com"), AdminSubjectID("b@example.com"))
}
