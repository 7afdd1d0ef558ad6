package service

import (
	"context"
	"time"

	"github.com/alone-wolf/rutify/internal/domain"
	"github.com/alone-wolf/rutify/internal/tokencodec"
)

// Authorizer is the slice of AuthService needed by request and websocket handlers.
type Authorizer interface {
	Authorize(ctx context.Context, bearer string, kind domain.TokenKind) (tokencodec.Claims, error)
	TouchLastUsed(ctx context.Context, bearer string)
}

type AuthService interface {
	Authorizer

	Register(ctx context.Context, username, password, email string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, string, time.Time, error)
	Profile(ctx context.Context, userID domain.UserID) (*domain.User, error)

	IssueNotifyToken(ctx context.Context, usage string, ttl time.Duration, deviceInfo *string, ownerID *domain.UserID) (string, *domain.Token, error)
	IssueUserSession(ctx context.Context, user *domain.User) (string, time.Time, error)
	ListTokens(ctx context.Context, ownerID domain.UserID) ([]domain.Token, error)
	RevokeToken(ctx context.Context, ownerID domain.UserID, id domain.TokenID) error
	SweepExpired(ctx context.Context) (int64, error)

	Logout(ctx context.Context, bearer string) error
	LogoutAll(ctx context.Context, ownerID domain.UserID) (int64, error)
	ListAllTokens(ctx context.Context, adminID domain.UserID, filter TokenFilter) ([]domain.Token, error)
}

// TokenFilter narrows an admin token listing. Zero fields match everything.
type TokenFilter struct {
	Usage string
	Kind  domain.TokenKind
}
