package domain

import "time"

// Token is the server-side record of an issued bearer token. Only the
// SHA-256 digest of the signed string is kept.
type Token struct {
	ID         TokenID    `gorm:"primaryKey;autoIncrement" json:"id"`
	TokenHash  string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_tokens_hash" json:"-"`
	Kind       TokenKind  `gorm:"column:token_type;type:varchar(32);not null;index" json:"token_type"`
	Usage      string     `gorm:"type:varchar(255);not null;index" json:"usage"`
	OwnerID    *UserID    `gorm:"type:uuid;index" json:"owner_id,omitempty"`
	DeviceInfo *string    `gorm:"type:text" json:"device_info,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;index" json:"created_at"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func (Token) TableName() string { return "tokens" }

// Expired reports whether the record is logically revoked at now.
func (t *Token) Expired(now time.Time) bool { return !t.ExpiresAt.After(now) }

// OwnedBy reports whether the token was created by or for the given user.
func (t *Token) OwnedBy(id UserID) bool { return t.OwnerID != nil && *t.OwnerID == id }
