package store

import (
	"context"
	"time"

	"github.com/alone-wolf/rutify/internal/domain"

	"gorm.io/gorm"
)

type NotifyStore struct{ db *gorm.DB }

func (s *Store) Notifies() *NotifyStore { return &NotifyStore{s.DB} }

func (ns *NotifyStore) Create(ctx context.Context, n *domain.Notify) error {
	return wrap("notifies.create", ns.db.WithContext(ctx).Create(n).Error)
}

func (ns *NotifyStore) ListNewestFirst(ctx context.Context) ([]domain.Notify, error) {
	var out []domain.Notify
	if err := ns.db.WithContext(ctx).Order("received_at desc, id desc").Find(&out).Error; err != nil {
		return nil, wrap("notifies.list", err)
	}
	return out, nil
}

func (ns *NotifyStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := ns.db.WithContext(ctx).Model(&domain.Notify{}).Count(&n).Error
	return n, wrap("notifies.count", err)
}

func (ns *NotifyStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := ns.db.WithContext(ctx).Model(&domain.Notify{}).Where("received_at >= ?", since.UTC()).Count(&n).Error
	return n, wrap("notifies.count_since", err)
}

func (ns *NotifyStore) CountDistinctDevices(ctx context.Context) (int64, error) {
	var n int64
	err := ns.db.WithContext(ctx).Model(&domain.Notify{}).Distinct("device").Count(&n).Error
	return n, wrap("notifies.count_devices", err)
}

func (ns *NotifyStore) DeleteAll(ctx context.Context) (int64, error) {
	tx := ns.db.WithContext(ctx).Where("1 = 1").Delete(&domain.Notify{})
	return tx.RowsAffected, wrap("notifies.delete_all", tx.Error)
}

func (ns *NotifyStore) DeleteByID(ctx context.Context, id domain.NotifyID) (bool, error) {
	tx := ns.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Notify{})
	if tx.Error != nil {
		return false, wrap("notifies.delete", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}
