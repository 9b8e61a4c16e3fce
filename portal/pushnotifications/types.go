// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package pushnotifications

import (
	"time"

	"github.com/google/uuid"
)

// Device platforms accepted by the token store.
const (
	PlatformWeb     = "web"
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// Notification type tags used by the portal clients.
const (
	TypeMarks        = "marks"
	TypeAttendance   = "attendance"
	TypeAnnouncement = "announcement"
	TypeFee          = "fee"
	TypeMeeting      = "meeting"
	TypeUrgent       = "urgent"
	TypeCredentials  = "login_credentials"
)

// DeviceToken represents a push token registered by a client device.
// Tokens are unique per (user, platform) pair; re-registration replaces
// the stored token instead of duplicating it.
type DeviceToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	Platform  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is the payload of a single dispatch: what every targeted
// recipient receives, both as a push and as a durable feed entry.
type Message struct {
	Type     string
	Title    string
	Body     string
	Priority string // "low", "medium" or "high"
	Sender   string
	Data     map[string]string
}

// Notification is a durable in-app notification record. It is written
// once per targeted recipient per dispatch, independent of push outcome,
// and is immutable except for the read flag.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      string
	Title     string
	Body      string
	Priority  string
	Sender    string
	Data      map[string]string
	IsRead    bool
	CreatedAt time.Time
}

// PushOutcome is the per-token result of a fan-out send.
type PushOutcome struct {
	Token      string `json:"token"`
	Success    bool   `json:"success"`
	MessageID  string `json:"messageId,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
}

// DispatchRequest describes a single dispatch job. At most one of
// ParentID/StudentID may be set; both absent means broadcast to all
// parents.
type DispatchRequest struct {
	Type      string
	ParentID  *uuid.UUID
	StudentID *uuid.UUID
	Title     string
	Message   string
	Priority  string
	Sender    string
	Data      map[string]string
}

// DispatchResult is the aggregate outcome of one dispatch invocation.
// PersistErrors are non-fatal: the push outcomes and the overall success
// flag stand even when some feed writes failed.
type DispatchResult struct {
	Success       bool          `json:"success"`
	Message       string        `json:"message,omitempty"`
	Error         string        `json:"error,omitempty"`
	PushOutcomes  []PushOutcome `json:"push_result,omitempty"`
	Targeted      int           `json:"targeted"`
	PersistErrors []string      `json:"errors,omitempty"`
}
