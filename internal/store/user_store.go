package store

import (
	"context"

	"github.com/alone-wolf/rutify/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStore struct{ db *gorm.DB }

func (s *Store) Users() *UserStore { return &UserStore{s.DB} }

// Create fails with a username ConflictError when the name is taken.
func (us *UserStore) Create(ctx context.Context, u *domain.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	var n int64
	if err := us.db.WithContext(ctx).Model(&domain.User{}).Where("username = ?", u.Username).Count(&n).Error; err != nil {
		return wrap("users.username_lookup", err)
	}
	if n > 0 {
		return domain.Conflict("username")
	}
	return wrap("users.create", us.db.WithContext(ctx).Create(u).Error)
}

func (us *UserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	if err := us.db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return nil, wrap("users.get_by_username", err)
	}
	return &u, nil
}

func (us *UserStore) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var u domain.User
	if err := us.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, wrap("users.get", err)
	}
	return &u, nil
}
