package dto

import (
	"time"

	"github.com/alone-wolf/rutify/internal/domain"
)

type CreateTokenRequest struct {
	Usage          string  `json:"usage"`
	ExpiresInHours *int64  `json:"expires_in_hours,omitempty"`
	DeviceInfo     *string `json:"device_info,omitempty"`
}

type CreateTokenResponse struct {
	Token     string    `json:"token"`
	TokenID   int64     `json:"token_id"`
	Usage     string    `json:"usage"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenInfo is the listing view of a stored token; the digest never leaves the server.
type TokenInfo struct {
	ID         int64      `json:"id"`
	Usage      string     `json:"usage"`
	TokenType  string     `json:"token_type"`
	DeviceInfo *string    `json:"device_info"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

func NewTokenInfo(t domain.Token) TokenInfo {
	return TokenInfo{
		ID:         t.ID,
		Usage:      t.Usage,
		TokenType:  string(t.Kind),
		DeviceInfo: t.DeviceInfo,
		CreatedAt:  t.CreatedAt,
		ExpiresAt:  t.ExpiresAt,
		LastUsedAt: t.LastUsedAt,
	}
}

// AdminTokenInfo adds the owner to a token row in the admin listing.
type AdminTokenInfo struct {
	TokenInfo
	OwnerID *string `json:"owner_id"`
}

func NewAdminTokenInfo(t domain.Token) AdminTokenInfo {
	info := AdminTokenInfo{TokenInfo: NewTokenInfo(t)}
	if t.OwnerID != nil {
		owner := t.OwnerID.String()
		info.OwnerID = &owner
	}
	return info
}
