package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/response"
	"k8s.io/utils/clock"
)

// ErrNotificationNotFound is returned when marking a missing or already
// read notification.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService stores admin notifications and pushes them over
// Redis PubSub.
type NotificationService struct {
	store  NotificationStore
	admins AdminStore
	rdb    *redis.Client
	clk    clock.PassiveClock
	log    zerolog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(store NotificationStore, admins AdminStore, rdb *redis.Client, clk clock.PassiveClock, log zerolog.Logger) *NotificationService {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &NotificationService{
		store:  store,
		admins: admins,
		rdb:    rdb,
		clk:    clk,
		log:    log.With().Str("component", "notification_service").Logger(),
	}
}

// Notify stores one notification per admin, bumps each unread badge and
// publishes the push.
func (s *NotificationService) Notify(ctx context.Context, adminIDs []int, typ model.NotificationType, title, body string) error {
	var errs []error
	for _, id := range adminIDs {
		n := &model.Notification{AdminID: id, Type: typ, Title: title, Body: body}
		if err := s.store.Create(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("store notification for admin %d: %w", id, err))
			continue
		}

		unread, err := s.rdb.Incr(ctx, config.CacheKey.NotificationUnreadKey(id)).Result()
		if err != nil {
			s.log.Warn().Err(err).Int("admin_id", id).Msg("Failed to bump unread counter")
			unread, _ = s.store.CountUnread(ctx, id)
		}

		raw, err := json.Marshal(model.NotificationPush{Notification: *n, Unread: unread})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.rdb.Publish(ctx, config.CacheKey.NotificationChannel(id), raw).Err(); err != nil {
			s.log.Warn().Err(err).Int("admin_id", id).Msg("Failed to publish notification")
		}
	}
	return errors.Join(errs...)
}

// NotifyPermission notifies every admin whose role grants perm.
func (s *NotificationService) NotifyPermission(ctx context.Context, perm model.Permission, typ model.NotificationType, title, body string) error {
	ids, err := s.admins.ListIDsWithPermission(ctx, perm)
	if err != nil {
		return fmt.Errorf("list admins with %s: %w", perm, err)
	}
	return s.Notify(ctx, ids, typ, title, body)
}

// List returns a page of an admin's notifications.
func (s *NotificationService) List(ctx context.Context, adminID, page, perPage int) ([]model.Notification, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	items, total, err := s.store.ListByAdmin(ctx, adminID, page, perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list notifications: %w", err)
	}

	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}
	return items, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

// MarkRead marks one notification read and lowers the unread badge.
func (s *NotificationService) MarkRead(ctx context.Context, adminID int, id int64) (int64, error) {
	changed, err := s.store.MarkRead(ctx, adminID, id, s.clk.Now())
	if err != nil {
		return 0, fmt.Errorf("mark notification read: %w", err)
	}
	if !changed {
		return 0, ErrNotificationNotFound
	}

	key := config.CacheKey.NotificationUnreadKey(adminID)
	n, err := s.rdb.Decr(ctx, key).Result()
	if err != nil || n < 0 {
		// Counter missing or drifted; rebuild it from Postgres.
		s.rdb.Del(ctx, key)
		return s.UnreadCount(ctx, adminID)
	}
	return n, nil
}

// UnreadCount returns the unread badge count, filling the counter from
// Postgres on a miss.
func (s *NotificationService) UnreadCount(ctx context.Context, adminID int) (int64, error) {
	key := config.CacheKey.NotificationUnreadKey(adminID)
	n, err := s.rdb.Get(ctx, key).Int64()
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Int("admin_id", adminID).Msg("Unread counter unavailable")
	}

	n, err = s.store.CountUnread(ctx, adminID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	s.rdb.SetNX(ctx, key, n, 0)
	return n, nil
}

// Subscribe opens the PubSub channel for an admin. The caller closes it.
func (s *NotificationService) Subscribe(ctx context.Context, adminID int) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.NotificationChannel(adminID))
}
