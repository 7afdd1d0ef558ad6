package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/alone-wolf/rutify/internal/broadcast"
	"github.com/alone-wolf/rutify/internal/domain"
	"github.com/alone-wolf/rutify/internal/dto"
	"github.com/alone-wolf/rutify/internal/netutil"
	"github.com/alone-wolf/rutify/internal/observability/metrics"
	"github.com/alone-wolf/rutify/internal/observability/middleware"
	"github.com/alone-wolf/rutify/internal/store"
)

const EventNotify = "notify"

type NotifyConfig struct {
	DefaultTitle  string
	DefaultDevice string
}

type notifyStore interface {
	Create(ctx context.Context, n *domain.Notify) error
	ListNewestFirst(ctx context.Context) ([]domain.Notify, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	CountDistinctDevices(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	DeleteByID(ctx context.Context, id domain.NotifyID) (bool, error)
}

type publisher interface {
	Publish(ev broadcast.Event) int
	SubscriberCount() int
}

type NotifyServiceImpl struct {
	store notifyStore
	bus   publisher
	cfg   NotifyConfig
	now   func() time.Time
}

func NewNotifyServiceImpl(st *store.Store, bus *broadcast.Broadcaster, cfg NotifyConfig) *NotifyServiceImpl {
	return newNotifyService(st.Notifies(), bus, cfg)
}

func newNotifyService(ns notifyStore, bus publisher, cfg NotifyConfig) *NotifyServiceImpl {
	if cfg.DefaultTitle == "" {
		cfg.DefaultTitle = "default title"
	}
	if cfg.DefaultDevice == "" {
		cfg.DefaultDevice = "default device"
	}
	return &NotifyServiceImpl{store: ns, bus: bus, cfg: cfg, now: time.Now}
}

// Submit persists a notification and then fans it out. Nothing is published
// when the write fails.
func (s *NotifyServiceImpl) Submit(ctx context.Context, in dto.NotifyInput) (*domain.Notify, error) {
	result := "success"
	defer func() {
		metrics.NotificationsIngestedTotal.WithLabelValues(result).Inc()
	}()

	msg := in.Text()
	if strings.TrimSpace(msg) == "" {
		result = "invalid"
		return nil, domain.Invalid("message", "is required")
	}
	n := &domain.Notify{
		Message:    msg,
		Title:      orDefault(in.Title, s.cfg.DefaultTitle),
		Device:     orDefault(in.Device, s.cfg.DefaultDevice),
		ReceivedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		result = "failure"
		return nil, err
	}

	delivered := s.bus.Publish(broadcast.Event{
		Event:     EventNotify,
		Data:      broadcast.Payload{Message: n.Message, Title: n.Title, Device: n.Device},
		Timestamp: n.ReceivedAt,
	})
	slog.Debug("notification published",
		"notify_id", n.ID,
		"device", n.Device,
		"subscribers", delivered,
		"request_id", middleware.RequestIDFromContext(ctx),
		"trace_id", middleware.TraceIDFromContext(ctx),
	)
	return n, nil
}

func (s *NotifyServiceImpl) List(ctx context.Context) ([]domain.Notify, int64, error) {
	items, err := s.store.ListNewestFirst(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, int64(len(items)), nil
}

func (s *NotifyServiceImpl) Stats(ctx context.Context) (dto.StatsResponse, error) {
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	today, err := s.store.CountSince(ctx, startOfDay)
	if err != nil {
		return dto.StatsResponse{}, err
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return dto.StatsResponse{}, err
	}
	devices, err := s.store.CountDistinctDevices(ctx)
	if err != nil {
		return dto.StatsResponse{}, err
	}
	return dto.StatsResponse{
		TodayCount:  today,
		TotalCount:  total,
		DeviceCount: devices,
		IsRunning:   true,
		Subscribers: s.bus.SubscriberCount(),
	}, nil
}

func (s *NotifyServiceImpl) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	slog.Info("deleted all notifications", "count", n, "request_id", middleware.RequestIDFromContext(ctx))
	return n, nil
}

func (s *NotifyServiceImpl) Delete(ctx context.Context, id domain.NotifyID) error {
	ok, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return netutil.Truncate(v, netutil.MaxFieldLength)
}
