package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/domain"
)

var (
	// ErrInvalidCredentials is returned for any failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginDisabled is returned when no admin password hash is configured.
	ErrLoginDisabled = errors.New("admin login is not configured")
)

// LoginResult carries an issued admin token.
type LoginResult struct {
	SubjectID string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// AuthService authenticates the back office admin configured through the
// environment.
type AuthService struct {
	tokens       *auth.TokenManager
	adminEmail   string
	adminHash    string
	adminSubject string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, tokens *auth.TokenManager) *AuthService {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	return &AuthService{
		tokens:       tokens,
		adminEmail:   email,
		adminHash:    cfg.AdminPasswordHash,
		adminSubject: AdminSubjectID(email),
	}
}

// AdminSubjectID derives a stable subject id from the admin email so
// message authorship and audit rows survive restarts.
func AdminSubjectID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("admin:"+strings.ToLower(email))).String()
}

// LoginAdmin checks credentials and issues an access token.
func (s *AuthService) LoginAdmin(_ context.Context, email, password string) (*LoginResult, error) {
	if s.adminHash == "" {
		return nil, ErrLoginDisabled
	}
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.adminEmail)) == 1
	passwordErr := auth.ComparePassword(s.adminHash, password)
	if !emailOK || passwordErr != nil {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.GenerateToken(s.adminSubject, s.adminEmail, domain.SenderAdmin)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		SubjectID: s.adminSubject,
		Email:     s.adminEmail,
		Token:     token,
		ExpiresAt: exp,
	}, nil
}
