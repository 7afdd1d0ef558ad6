package service

import (
	"context"

	"github.com/alone-wolf/rutify/internal/domain"
	"github.com/alone-wolf/rutify/internal/dto"
)

type NotifyService interface {
	Submit(ctx context.Context, in dto.NotifyInput) (*domain.Notify, error)
	List(ctx context.Context) ([]domain.Notify, int64, error)
	Stats(ctx context.Context) (dto.StatsResponse, error)
	DeleteAll(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id domain.NotifyID) error
}
