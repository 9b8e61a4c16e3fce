// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package portaldb

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/parentlink/parentlink/portal/pushnotifications"
)

// ensures that notifications implements pushnotifications.Notifications.
var _ pushnotifications.Notifications = (*notifications)(nil)

// ErrNotifications represents errors from the notifications database.
var ErrNotifications = errs.Class("notifications")

type notifications struct {
	db *DB
}

// Insert writes a new notification record.
func (n *notifications) Insert(ctx context.Context, notification pushnotifications.Notification) (_ pushnotifications.Notification, err error) {
	defer mon.Task()(&ctx)(&err)

	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}

	var dataJSON []byte
	if notification.Data != nil {
		dataJSON, err = json.Marshal(notification.Data)
		if err != nil {
			return pushnotifications.Notification{}, ErrNotifications.Wrap(err)
		}
	}

	err = n.db.db.QueryRowContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, priority, sender, data, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, now())
		RETURNING created_at
	`, notification.ID, notification.UserID, notification.Type, notification.Title,
		notification.Body, notification.Priority, notification.Sender, dataJSON).
		Scan(&notification.CreatedAt)
	if err != nil {
		return pushnotifications.Notification{}, ErrNotifications.Wrap(err)
	}

	notification.IsRead = false
	return notification, nil
}

// ListByUserID retrieves notifications for a user, newest first.
func (n *notifications) ListByUserID(ctx context.Context, userID uuid.UUID, limit int) (_ []pushnotifications.Notification, err error) {
	defer mon.Task()(&ctx)(&err)

	if limit <= 0 {
		limit = 50
	}

	rows, err := n.db.db.QueryContext(ctx, `
		SELECT id, user_id, type, title, message, priority, sender, data, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		if errs.Is(err, sql.ErrNoRows) {
			return []pushnotifications.Notification{}, nil
		}
		return nil, ErrNotifications.Wrap(err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	list := []pushnotifications.Notification{}
	for rows.Next() {
		var notification pushnotifications.Notification
		var dataJSON []byte
		err = rows.Scan(&notification.ID, &notification.UserID, &notification.Type,
			&notification.Title, &notification.Body, &notification.Priority,
			&notification.Sender, &dataJSON, &notification.IsRead, &notification.CreatedAt)
		if err != nil {
			return nil, ErrNotifications.Wrap(err)
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &notification.Data); err != nil {
				return nil, ErrNotifications.Wrap(err)
			}
		}
		list = append(list, notification)
	}
	return list, ErrNotifications.Wrap(rows.Err())
}

// UnreadCount returns the number of unread notifications for a user.
func (n *notifications) UnreadCount(ctx context.Context, userID uuid.UUID) (_ int, err error) {
	defer mon.Task()(&ctx)(&err)

	var count int
	err = n.db.db.QueryRowContext(ctx, `
		SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT is_read
	`, userID).Scan(&count)
	return count, ErrNotifications.Wrap(err)
}

// MarkRead marks a single notification as read. Already-read records are
// left untouched; the flag never reverts.
func (n *notifications) MarkRead(ctx context.Context, id, userID uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = n.db.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = true
		WHERE id = $1 AND user_id = $2 AND NOT is_read
	`, id, userID)
	return ErrNotifications.Wrap(err)
}

// MarkAllRead marks every unread notification for a user as read.
func (n *notifications) MarkAllRead(ctx context.Context, userID uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = n.db.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = true
		WHERE user_id = $1 AND NOT is_read
	`, userID)
	return ErrNotifications.Wrap(err)
}
