package domain

import "github.com/google/uuid"

type UserID = uuid.UUID
type TokenID = int64
type NotifyID = int64

// TokenKind tags a signed token and its stored record.
type TokenKind string

const (
	TokenKindNotifyBearer TokenKind = "notify_bearer"
	TokenKindUserSession  TokenKind = "user_session"
)

func (k TokenKind) Valid() bool {
	return k == TokenKindNotifyBearer || k == TokenKindUserSession
}

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)
