package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentgate/exam-backend/internal/model"
)

// NotificationRepository handles admin notification data access.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create inserts a notification and fills its ID and timestamp.
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO notifications (admin_id, type, title, body)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		n.AdminID, n.Type, n.Title, n.Body,
	).Scan(&n.ID, &n.CreatedAt)
}

// ListByAdmin retrieves an admin's notifications, newest first.
func (r *NotificationRepository) ListByAdmin(ctx context.Context, adminID, page, perPage int) ([]model.Notification, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM notifications WHERE admin_id = $1", adminID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, admin_id, type, title, body, read_at, created_at
		 FROM notifications
		 WHERE admin_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`, adminID, perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	notifications := make([]model.Notification, 0, perPage)
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.AdminID, &n.Type, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}
	return notifications, total, rows.Err()
}

// MarkRead sets read_at on an unread notification. It reports whether a
// row changed.
func (r *NotificationRepository) MarkRead(ctx context.Context, adminID int, id int64, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at = $1
		 WHERE id = $2 AND admin_id = $3 AND read_at IS NULL`, at, id, adminID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountUnread counts an admin's unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, adminID int) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM notifications WHERE admin_id = $1 AND read_at IS NULL", adminID,
	).Scan(&n)
	return n, err
}
