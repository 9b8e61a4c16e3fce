// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

// Package pushnotifications implements the portal's notification dispatch
// engine: targeting resolution, push fan-out to registered device tokens
// and the durable in-app notification feed.
package pushnotifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var mon = monkit.Package()

// Error represents errors from the push notifications service.
var Error = errs.Class("pushnotifications")

// PushSender delivers a message to a set of device tokens. Implemented
// by Sender.
type PushSender interface {
	Send(ctx context.Context, deviceTokens []string, msg Message) ([]PushOutcome, error)
}

// Service orchestrates notification dispatch: it resolves targets, fans
// pushes out to the targets' device tokens and persists one feed record
// per recipient regardless of push outcome, so the in-app feed stays
// authoritative even when push infrastructure is degraded.
type Service struct {
	log           *zap.Logger
	tokens        DeviceTokens
	notifications Notifications
	recipients    Recipients
	sender        PushSender
}

// NewService creates a new dispatch service.
func NewService(log *zap.Logger, tokens DeviceTokens, notifications Notifications, recipients Recipients, sender PushSender) *Service {
	return &Service{
		log:           log,
		tokens:        tokens,
		notifications: notifications,
		recipients:    recipients,
		sender:        sender,
	}
}

// Dispatch runs one notification job to completion. An empty audience
// and an audience without device tokens are both valid empty results,
// not errors; feed records are written for every resolved recipient
// whether or not any push was delivered.
func (s *Service) Dispatch(ctx context.Context, req DispatchRequest) (result DispatchResult, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := validateDispatchRequest(req); err != nil {
		return DispatchResult{}, err
	}

	targets, err := s.resolveTargets(ctx, req)
	if err != nil {
		return DispatchResult{}, Error.Wrap(err)
	}

	s.log.Info("resolved dispatch targets",
		zap.String("type", req.Type),
		zap.Int("target_count", len(targets)))

	if len(targets) == 0 {
		return DispatchResult{Success: true, Message: "no users to target"}, nil
	}

	deviceTokens, err := s.tokens.GetActiveTokensByUserIDs(ctx, targets)
	if err != nil {
		return DispatchResult{}, Error.Wrap(err)
	}

	if len(deviceTokens) == 0 {
		persistErrors := s.persistNotifications(ctx, targets, req)
		return DispatchResult{
			Success:       true,
			Message:       "no registered device tokens found for the targeted users",
			Targeted:      len(targets),
			PersistErrors: persistErrors,
		}, nil
	}

	tokenStrings := make([]string, len(deviceTokens))
	for i, token := range deviceTokens {
		tokenStrings[i] = token.Token
	}

	outcomes, sendErr := s.sender.Send(ctx, tokenStrings, Message{
		Type:     req.Type,
		Title:    req.Title,
		Body:     req.Message,
		Priority: req.Priority,
		Sender:   req.Sender,
		Data:     req.Data,
	})

	// The feed write happens regardless of how the push fan-out went.
	persistErrors := s.persistNotifications(ctx, targets, req)

	if sendErr != nil {
		s.log.Error("push delivery failed for all recipients", zap.Error(sendErr))
		return DispatchResult{
			Error:         sendErr.Error(),
			Targeted:      len(targets),
			PersistErrors: persistErrors,
		}, nil
	}

	sent := 0
	for _, outcome := range outcomes {
		if outcome.Success {
			sent++
		}
	}

	return DispatchResult{
		Success:       true,
		Message:       fmt.Sprintf("push notification sent to %d of %d devices", sent, len(outcomes)),
		PushOutcomes:  outcomes,
		Targeted:      len(targets),
		PersistErrors: persistErrors,
	}, nil
}

// resolveTargets maps the request to a deduplicated set of recipient
// auth user ids. Exactly one of the three modes applies: single parent,
// parents of a single student, or broadcast to all parents.
func (s *Service) resolveTargets(ctx context.Context, req DispatchRequest) (_ []uuid.UUID, err error) {
	defer mon.Task()(&ctx)(&err)

	var targets []uuid.UUID
	switch {
	case req.ParentID != nil:
		authID, err := s.recipients.GetParentAuthID(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		targets = []uuid.UUID{authID}
	case req.StudentID != nil:
		targets, err = s.recipients.GetParentAuthIDsByStudent(ctx, *req.StudentID)
		if err != nil {
			return nil, err
		}
	default:
		targets, err = s.recipients.GetAllParentAuthIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[uuid.UUID]struct{}, len(targets))
	deduplicated := make([]uuid.UUID, 0, len(targets))
	for _, target := range targets {
		if target == uuid.Nil {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		deduplicated = append(deduplicated, target)
	}

	return deduplicated, nil
}

// persistNotifications writes one feed record per recipient. Failures
// are collected and surfaced as non-fatal warnings.
func (s *Service) persistNotifications(ctx context.Context, targets []uuid.UUID, req DispatchRequest) (persistErrors []string) {
	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}

	for _, target := range targets {
		notification := Notification{
			ID:       uuid.New(),
			UserID:   target,
			Type:     req.Type,
			Title:    req.Title,
			Body:     req.Message,
			Priority: priority,
			Sender:   req.Sender,
			Data:     req.Data,
		}
		if _, err := s.notifications.Insert(ctx, notification); err != nil {
			s.log.Warn("failed to persist notification record",
				zap.String("user_id", target.String()),
				zap.Error(err))
			persistErrors = append(persistErrors, fmt.Sprintf("failed to persist notification for %s: %v", target, err))
		}
	}
	return persistErrors
}

func validateDispatchRequest(req DispatchRequest) error {
	if req.Title == "" {
		return Error.New("title is required")
	}
	if req.Message == "" {
		return Error.New("message is required")
	}
	if req.ParentID != nil && req.StudentID != nil {
		return Error.New("at most one of parent_id and student_id may be set")
	}
	return nil
}
