package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/notification"
)

const notificationColumns = "id, recipient_id, kind, message, is_read, created_at"

type notificationRow struct {
	ID          string    `db:"id"`
	RecipientID string    `db:"recipient_id"`
	Kind        string    `db:"kind"`
	Message     string    `db:"message"`
	IsRead      bool      `db:"is_read"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row notificationRow) notification() notification.Notification {
	return notification.Notification{
		ID:          row.ID,
		RecipientID: row.RecipientID,
		Kind:        notification.Kind(row.Kind),
		Message:     row.Message,
		IsRead:      row.IsRead,
		CreatedAt:   row.CreatedAt,
	}
}

type notificationRepository struct {
	baseRepository
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec core.DBExecutor) *notificationRepository {
	return &notificationRepository{baseRepository{exec: exec}}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	n.ID = newID()
	n.CreatedAt = n.CreatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO notifications ("+notificationColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		n.ID, n.RecipientID, string(n.Kind), n.Message, n.IsRead, n.CreatedAt)
	return n, errors.Wrap(err, "inserting notification")
}

func (repo notificationRepository) GetNotification(ctx context.Context, id string, exec ...core.DBExecutor) (notification.Notification, error) {
	var row notificationRow
	if err := get(ctx, repo.getExec(exec), &row, "SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, "notification", id, "finding notification")
	}
	return row.notification(), nil
}

// QueryNotifications returns the newest notifications first.
func (repo notificationRepository) QueryNotifications(ctx context.Context, recipientID string, unreadOnly bool, exec ...core.DBExecutor) ([]notification.Notification, error) {
	w := &where{}
	w.add("recipient_id = ?", recipientID)
	if unreadOnly {
		w.add("is_read = ?", false)
	}

	var rows []notificationRow
	q := "SELECT " + notificationColumns + " FROM notifications" + w.String() + " ORDER BY created_at DESC, id"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	list := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.notification())
	}
	return list, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, recipientID string, exec ...core.DBExecutor) (int, error) {
	var n int
	err := get(ctx, repo.getExec(exec), &n,
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = ?", recipientID, false)
	return n, errors.Wrap(err, "counting unread notifications")
}

func (repo notificationRepository) MarkRead(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := execute(ctx, repo.getExec(exec), "UPDATE notifications SET is_read = ? WHERE id = ?", true, id)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n == 0 {
		return core.NewNotFoundError("notification", id)
	}
	return nil
}

func (repo notificationRepository) MarkAllRead(ctx context.Context, recipientID string, exec ...core.DBExecutor) (int64, error) {
	n, err := execute(ctx, repo.getExec(exec),
		"UPDATE notifications SET is_read = ? WHERE recipient_id = ? AND is_read = ?", true, recipientID, false)
	return n, errors.Wrap(err, "marking notifications read")
}
