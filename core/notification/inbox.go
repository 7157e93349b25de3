package notification

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/policy"
	"github.com/trezcool/learnsphere/core/user"
)

// Inbox serves a user's own notifications.
type Inbox struct {
	repo   Repository
	policy policy.Evaluator
}

func NewInbox(repo Repository, pol policy.Evaluator) *Inbox {
	return &Inbox{repo: repo, policy: pol}
}

func (in *Inbox) List(ctx context.Context, actor user.User, unreadOnly bool) ([]Notification, error) {
	if err := in.policy.Authorize(actor.Role, policy.ReadNotification); err != nil {
		return nil, err
	}
	return in.repo.QueryNotifications(ctx, actor.ID, unreadOnly)
}

func (in *Inbox) UnreadCount(ctx context.Context, actor user.User) (int, error) {
	if err := in.policy.Authorize(actor.Role, policy.ReadNotification); err != nil {
		return 0, err
	}
	return in.repo.CountUnread(ctx, actor.ID)
}

// MarkRead marks one notification as read. Only its recipient may do so.
func (in *Inbox) MarkRead(ctx context.Context, actor user.User, id string) (Notification, error) {
	if err := in.policy.Authorize(actor.Role, policy.ReadNotification); err != nil {
		return Notification{}, err
	}
	n, err := in.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.RecipientID != actor.ID {
		return Notification{}, core.NewPermissionError(actor.Role, "read another user's notification")
	}
	if n.IsRead {
		return n, nil
	}
	if err = in.repo.MarkRead(ctx, id); err != nil {
		return Notification{}, errors.Wrap(err, "marking notification as read")
	}
	n.IsRead = true
	return n, nil
}

func (in *Inbox) MarkAllRead(ctx context.Context, actor user.User) (int64, error) {
	if err := in.policy.Authorize(actor.Role, policy.ReadNotification); err != nil {
		return 0, err
	}
	n, err := in.repo.MarkAllRead(ctx, actor.ID)
	return n, errors.Wrap(err, "marking notifications as read")
}
