// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package portaldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/parentlink/parentlink/portal/pushnotifications"
)

// ensures that deviceTokens implements pushnotifications.DeviceTokens.
var _ pushnotifications.DeviceTokens = (*deviceTokens)(nil)

// ErrDeviceTokens represents errors from the device_tokens database.
var ErrDeviceTokens = errs.Class("devicetokens")

type deviceTokens struct {
	db *DB
}

// UpsertToken inserts a token or replaces the existing one for the same
// (user, platform) pair, so re-registration never duplicates rows.
func (d *deviceTokens) UpsertToken(ctx context.Context, token pushnotifications.DeviceToken) (_ pushnotifications.DeviceToken, err error) {
	defer mon.Task()(&ctx)(&err)

	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	err = d.db.db.QueryRowContext(ctx, `
		INSERT INTO device_tokens (id, user_id, token, platform, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, now(), now())
		ON CONFLICT (user_id, platform)
		DO UPDATE SET token = EXCLUDED.token, is_active = true, updated_at = now()
		RETURNING id, created_at, updated_at
	`, token.ID, token.UserID, token.Token, token.Platform).
		Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)
	if err != nil {
		return pushnotifications.DeviceToken{}, ErrDeviceTokens.Wrap(err)
	}

	token.IsActive = true
	return token, nil
}

// GetTokensByUserID retrieves all active tokens for a single user.
func (d *deviceTokens) GetTokensByUserID(ctx context.Context, userID uuid.UUID) (_ []pushnotifications.DeviceToken, err error) {
	defer mon.Task()(&ctx)(&err)

	return d.queryTokens(ctx, `
		SELECT id, user_id, token, platform, is_active, created_at, updated_at
		FROM device_tokens
		WHERE is_active AND user_id = $1
	`, userID)
}

// GetActiveTokensByUserIDs retrieves all active tokens belonging to any
// of the given users.
func (d *deviceTokens) GetActiveTokensByUserIDs(ctx context.Context, userIDs []uuid.UUID) (_ []pushnotifications.DeviceToken, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(userIDs) == 0 {
		return []pushnotifications.DeviceToken{}, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	return d.queryTokens(ctx, `
		SELECT id, user_id, token, platform, is_active, created_at, updated_at
		FROM device_tokens
		WHERE is_active AND user_id IN (`+strings.Join(placeholders, ", ")+`)
	`, args...)
}

func (d *deviceTokens) queryTokens(ctx context.Context, query string, args ...interface{}) (_ []pushnotifications.DeviceToken, err error) {
	rows, err := d.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		if errs.Is(err, sql.ErrNoRows) {
			return []pushnotifications.DeviceToken{}, nil
		}
		return nil, ErrDeviceTokens.Wrap(err)
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	tokens := []pushnotifications.DeviceToken{}
	for rows.Next() {
		var token pushnotifications.DeviceToken
		err = rows.Scan(&token.ID, &token.UserID, &token.Token, &token.Platform,
			&token.IsActive, &token.CreatedAt, &token.UpdatedAt)
		if err != nil {
			return nil, ErrDeviceTokens.Wrap(err)
		}
		tokens = append(tokens, token)
	}
	return tokens, ErrDeviceTokens.Wrap(rows.Err())
}
