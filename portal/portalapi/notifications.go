// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package portalapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/parentlink/parentlink/portal/pushnotifications"
)

// ErrNotificationsAPI - portal notifications api error type.
var ErrNotificationsAPI = errs.Class("portalapi notifications")

// Notifications is an API controller for notification dispatch and the
// in-app notification feed.
type Notifications struct {
	log      *zap.Logger
	dispatch *pushnotifications.Service
	feed     pushnotifications.Notifications
}

// NewNotifications creates a new notifications controller.
func NewNotifications(log *zap.Logger, dispatch *pushnotifications.Service, feed pushnotifications.Notifications) *Notifications {
	return &Notifications{
		log:      log,
		dispatch: dispatch,
		feed:     feed,
	}
}

// DispatchRequest for POST /api/v0/notifications/dispatch.
type DispatchRequest struct {
	Type      string            `json:"type"`
	StudentID *uuid.UUID        `json:"student_id,omitempty"`
	ParentID  *uuid.UUID        `json:"parent_id,omitempty"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Priority  string            `json:"priority,omitempty"`
	Sender    string            `json:"sender,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// Dispatch handles POST /api/v0/notifications/dispatch. It targets a
// single parent, the parents of a single student, or all parents when
// neither id is given.
func (n *Notifications) Dispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	var req DispatchRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		serveJSONError(ctx, n.log, w, http.StatusBadRequest, ErrNotificationsAPI.Wrap(err))
		return
	}

	switch {
	case req.Title == "":
		serveJSONError(ctx, n.log, w, http.StatusBadRequest, ErrNotificationsAPI.New("title is required"))
		return
	case req.Message == "":
		serveJSONError(ctx, n.log, w, http.StatusBadRequest, ErrNotificationsAPI.New("message is required"))
		return
	case req.StudentID != nil && req.ParentID != nil:
		serveJSONError(ctx, n.log, w, http.StatusBadRequest, ErrNotificationsAPI.New("at most one of parent_id and student_id may be set"))
		return
	}

	result, err := n.dispatch.Dispatch(ctx, pushnotifications.DispatchRequest{
		Type:      req.Type,
		ParentID:  req.ParentID,
		StudentID: req.StudentID,
		Title:     req.Title,
		Message:   req.Message,
		Priority:  req.Priority,
		Sender:    req.Sender,
		Data:      req.Data,
	})
	if err != nil {
		serveJSONError(ctx, n.log, w, http.StatusInternalServerError, ErrNotificationsAPI.Wrap(err))
		return
	}

	serveJSON(n.log, w, http.StatusOK, result)
}

// NotificationResponse is a single feed entry.
type NotificationResponse struct {
	ID        uuid.UUID         `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Priority  string            `json:"priority"`
	Sender    string            `json:"sender,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	IsRead    bool              `json:"isRead"`
	CreatedAt string            `json:"createdAt"`
}

// List handles GET /api/v0/notifications.
func (n *Notifications) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	userID, err := requestUserID(r)
	if err != nil {
		serveJSONError(ctx, n.log, w, http.StatusUnauthorized, err)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	list, err := n.feed.ListByUserID(ctx, userID, limit)
	if err != nil {
		serveJSONError(ctx, n.log, w, http.StatusInternalServerError, ErrNotificationsAPI.Wrap(err))
		return
	}

	items := make([]NotificationResponse, 0, len(list))
	for _, notification := range list {
		items = append(items, NotificationResponse{
			ID:        notification.ID,
			Type:      notification.Type,
			Title:     notification.Title,
			Message:   notification.Body,
			Priority:  notification.Priority,
			Sender:    notification.Sender,
			Data:      notification.Data,
			IsRead:    notification.IsRead,
			CreatedAt: notification.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	serveJSON(n.log, w, http.StatusOK, map[string]interface{}{"items": items})
}

// UnreadCount handles GET /api/v0/notifications/unread-count.
func (n *Notifications) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	userID, err := requestUserID(r)
	if err != nil {
		serveJSONError(ctx, n.log, w, http.StatusUnauthorized, err)
		return
	}

	count, err := n.feed.UnreadCount(ctx, userID)
	if err != nil {
		serveJSONError(ctx, n.log, w, http.StatusInternalServerError, ErrNotificationsAPI.Wrap(err))
		return
	}

	serveJSON(n.log, w, http.StatusOK, map[string]int{"count": count})
}

// MarkRead handles POST /api/v0/notifications/{id}/read.
func (n *Notifications) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	userID, err := requestUserID(r)
	if err != nil {
		serveJSONError(ctx, n.log, w, http.StatusUnauthorized, err)
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		serveJSONError(ctx, n.log, w, http.StatusBadRequest, ErrNotificationsAPI.New("invalid notification id"))
		return
	}

	if err = n.feed.MarkRead(ctx, id, userID); err != nil {
		serveJSONError(ctx, n.log, w, http.StatusInternalServerError, ErrNotificationsAPI.Wrap(err))
		return
	}

	serveJSON(n.log, w, http.StatusOK, map[string]bool{"success": true})
}

// MarkAllRead handles POST /api/v0/notifications/read-all.
func (n *Notifications) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	userID, err := requestUserID(r)
	if err != nil {
		serveJSONError(ctx, n.log, w, http.StatusUnauthorized, err)
		return
	}

	if err = n.feed.MarkAllRead(ctx, userID); err != nil {
		serveJSONError(ctx, n.log, w, http.StatusInternalServerError, ErrNotificationsAPI.Wrap(err))
		return
	}

	serveJSON(n.log, w, http.StatusOK, map[string]bool{"success": true})
}
