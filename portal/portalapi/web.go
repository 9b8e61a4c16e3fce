// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

// Package portalapi implements the portal's HTTP endpoints: notification
// dispatch, device-token registration, the notification feed and bulk
// account provisioning.
package portalapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var mon = monkit.Package()

// Error represents portal api errors.
var Error = errs.Class("portalapi")

// ErrUnauthorized is returned for requests without a resolvable user.
var ErrUnauthorized = errs.Class("unauthorized")

// userIDHeader carries the authenticated principal's id, set by the
// upstream gateway after verifying the session.
const userIDHeader = "X-User-Id"

// requestUserID resolves the authenticated user id from the request.
func requestUserID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		return uuid.Nil, ErrUnauthorized.New("missing %s header", userIDHeader)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrUnauthorized.New("invalid user id: %v", err)
	}
	return id, nil
}

// serveJSON writes v as a JSON response body.
func serveJSON(log *zap.Logger, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", zap.Error(err))
	}
}

// serveJSONError writes an error response in the portal's JSON error
// shape and logs server-side failures.
func serveJSONError(ctx context.Context, log *zap.Logger, w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Error("returning error to client", zap.Int("code", status), zap.Error(err))
	} else {
		log.Debug("returning error to client", zap.Int("code", status), zap.Error(err))
	}
	serveJSON(log, w, status, map[string]string{"error": err.Error()})
}
