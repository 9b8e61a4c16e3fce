// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package pushnotifications

import (
	"context"

	"github.com/google/uuid"
)

// DeviceTokens defines database operations for push device tokens.
type DeviceTokens interface {
	// UpsertToken inserts a token or replaces the existing one for the
	// same (user, platform) pair.
	UpsertToken(ctx context.Context, token DeviceToken) (DeviceToken, error)

	// GetTokensByUserID retrieves all active tokens for a single user.
	GetTokensByUserID(ctx context.Context, userID uuid.UUID) ([]DeviceToken, error)

	// GetActiveTokensByUserIDs retrieves all active tokens belonging to
	// any of the given users.
	GetActiveTokensByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]DeviceToken, error)
}

// Notifications defines database operations for the durable notification
// feed.
type Notifications interface {
	// Insert writes a new notification record.
	Insert(ctx context.Context, notification Notification) (Notification, error)

	// ListByUserID retrieves notifications for a user, newest first.
	ListByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]Notification, error)

	// UnreadCount returns the number of unread notifications for a user.
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)

	// MarkRead marks a single notification as read. The read flag only
	// ever transitions false to true.
	MarkRead(ctx context.Context, id, userID uuid.UUID) error

	// MarkAllRead marks every unread notification for a user as read.
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

// Recipients resolves dispatch targets to authenticated principal ids.
type Recipients interface {
	// GetParentAuthID returns the auth user id for a single parent.
	GetParentAuthID(ctx context.Context, parentID uuid.UUID) (uuid.UUID, error)

	// GetParentAuthIDsByStudent returns the auth user ids of every parent
	// linked to the given student.
	GetParentAuthIDsByStudent(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error)

	// GetAllParentAuthIDs returns the auth user ids of every parent.
	GetAllParentAuthIDs(ctx context.Context) ([]uuid.UUID, error)
}
