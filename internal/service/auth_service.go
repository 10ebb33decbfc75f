package service

import (
	"errors"
	"time"

	"github.com/spec-kit/telegram-auth-service/internal/auth"
	"github.com/spec-kit/telegram-auth-service/internal/config"
	"github.com/spec-kit/telegram-auth-service/internal/domain"
)

// AuthService issues sessions for users authenticated through Telegram.
type AuthService struct {
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config) *AuthService {
	return &AuthService{
		tokenMgr: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
	}
}

// IssueSession signs a bearer token for user valid for ttl. A non-positive
// ttl uses the configured default lifetime.
func (s *AuthService) IssueSession(user *domain.User, ttl time.Duration) (domain.Token, error) {
	if user == nil {
		return domain.Token{}, errors.New("no user to issue a session for")
	}
	if user.Banned {
		return domain.Token{}, errors.New("account suspended")
	}
	return s.tokenMgr.GenerateToken(user.ID, user.IsAdmin, ttl)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
