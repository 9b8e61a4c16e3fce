// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package portalapi

import (
	"encoding/json"
	"net/http"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/parentlink/parentlink/portal/pushnotifications"
)

// ErrDeviceTokensAPI - portal device tokens api error type.
var ErrDeviceTokensAPI = errs.Class("portalapi devicetokens")

// DeviceTokens is an API controller for push token registration.
type DeviceTokens struct {
	log    *zap.Logger
	tokens pushnotifications.DeviceTokens
}

// NewDeviceTokens creates a new device tokens controller.
func NewDeviceTokens(log *zap.Logger, tokens pushnotifications.DeviceTokens) *DeviceTokens {
	return &DeviceTokens{
		log:    log,
		tokens: tokens,
	}
}

// RegisterTokenRequest for POST /api/v0/device-tokens.
type RegisterTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// RegisterToken handles POST /api/v0/device-tokens. Registration is an
// upsert on (user, platform): repeating it refreshes the stored token
// instead of adding a duplicate.
func (d *DeviceTokens) RegisterToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	userID, err := requestUserID(r)
	if err != nil {
		serveJSONError(ctx, d.log, w, http.StatusUnauthorized, err)
		return
	}

	var req RegisterTokenRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		serveJSONError(ctx, d.log, w, http.StatusBadRequest, ErrDeviceTokensAPI.Wrap(err))
		return
	}

	if req.Token == "" {
		serveJSONError(ctx, d.log, w, http.StatusBadRequest, ErrDeviceTokensAPI.New("token is required"))
		return
	}
	if req.Platform == "" {
		req.Platform = pushnotifications.PlatformWeb
	}
	switch req.Platform {
	case pushnotifications.PlatformWeb, pushnotifications.PlatformAndroid, pushnotifications.PlatformIOS:
	default:
		serveJSONError(ctx, d.log, w, http.StatusBadRequest, ErrDeviceTokensAPI.New("unknown platform %q", req.Platform))
		return
	}

	token, err := d.tokens.UpsertToken(ctx, pushnotifications.DeviceToken{
		UserID:   userID,
		Token:    req.Token,
		Platform: req.Platform,
	})
	if err != nil {
		serveJSONError(ctx, d.log, w, http.StatusInternalServerError, ErrDeviceTokensAPI.Wrap(err))
		return
	}

	serveJSON(d.log, w, http.StatusOK, map[string]interface{}{
		"id":        token.ID,
		"platform":  token.Platform,
		"isActive":  token.IsActive,
		"updatedAt": token.UpdatedAt,
	})
}
