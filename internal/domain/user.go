package domain

import "time"

type User struct {
	ID           UserID    `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username" json:"username"`
	PasswordHash string    `gorm:"type:text;not null" json:"-"`
	Email        string    `gorm:"type:varchar(255);not null" json:"email"`
	Role         UserRole  `gorm:"type:varchar(16);not null;default:user" json:"role"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }
