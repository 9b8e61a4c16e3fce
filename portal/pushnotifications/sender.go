// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package pushnotifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// ErrSender represents errors from the push fan-out sender.
var ErrSender = errs.Class("push sender")

const (
	defaultSendURL   = "https://fcm.googleapis.com/v1/projects/%s/messages:send"
	defaultLegacyURL = "https://fcm.googleapis.com/fcm/send"
	sendTimeout      = 30 * time.Second
)

// TokenSource supplies bearer credentials for the per-project send
// endpoint. Implemented by Broker.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	ProjectID() string
}

// SenderConfig contains push delivery configuration.
type SenderConfig struct {
	ServerKey string `help:"legacy static server key, used when service account auth fails" default:""`
	SendURL   string `help:"per-project send endpoint template" default:"https://fcm.googleapis.com/v1/projects/%s/messages:send"`
	LegacyURL string `help:"legacy batch send endpoint" default:"https://fcm.googleapis.com/fcm/send"`
}

// Sender delivers one push message per device token. Sends are data-only
// so the receiving client owns the visible notification rendering, and
// high delivery priority is always requested. One token's failure never
// aborts the remaining sends.
type Sender struct {
	log    *zap.Logger
	tokens TokenSource
	client *http.Client
	config SenderConfig
}

// NewSender creates a new push fan-out sender.
func NewSender(log *zap.Logger, tokens TokenSource, config SenderConfig) *Sender {
	if config.SendURL == "" {
		config.SendURL = defaultSendURL
	}
	if config.LegacyURL == "" {
		config.LegacyURL = defaultLegacyURL
	}
	return &Sender{
		log:    log,
		tokens: tokens,
		client: &http.Client{Timeout: sendTimeout},
		config: config,
	}
}

// Send delivers msg to every device token and collects per-token
// outcomes. When the token broker fails and a legacy server key is
// configured, delivery degrades to the legacy batch endpoint; without
// one the broker error is returned and nothing is sent.
func (s *Sender) Send(ctx context.Context, deviceTokens []string, msg Message) (_ []PushOutcome, err error) {
	defer mon.Task()(&ctx)(&err)

	if len(deviceTokens) == 0 {
		return nil, nil
	}

	bearer, err := s.tokens.Token(ctx)
	if err != nil {
		if s.config.ServerKey == "" {
			return nil, ErrSender.Wrap(err)
		}
		s.log.Warn("token broker failed, falling back to legacy endpoint", zap.Error(err))
		return s.sendLegacy(ctx, deviceTokens, msg)
	}

	data := s.buildData(msg)
	outcomes := make([]PushOutcome, 0, len(deviceTokens))
	for _, token := range deviceTokens {
		outcome := s.sendOne(ctx, bearer, token, data)
		if !outcome.Success {
			s.log.Warn("failed to send push notification",
				zap.String("token", tokenPreview(token)),
				zap.String("error", outcome.Error))
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// sendOne performs a single per-project v1 send.
func (s *Sender) sendOne(ctx context.Context, bearer, token string, data map[string]string) PushOutcome {
	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"token": token,
			"data":  data,
			"android": map[string]interface{}{
				"priority": "HIGH",
			},
			"apns": map[string]interface{}{
				"headers": map[string]string{"apns-priority": "10"},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return PushOutcome{Token: token, Error: err.Error()}
	}

	endpoint := fmt.Sprintf(s.config.SendURL, s.tokens.ProjectID())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return PushOutcome{Token: token, Error: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return PushOutcome{Token: token, Error: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return PushOutcome{Token: token, StatusCode: resp.StatusCode, Error: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return PushOutcome{
			Token:      token,
			StatusCode: resp.StatusCode,
			Error:      string(respBody),
		}
	}

	var sendResp struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(respBody, &sendResp)

	return PushOutcome{
		Token:      token,
		Success:    true,
		MessageID:  sendResp.Name,
		StatusCode: resp.StatusCode,
	}
}

// sendLegacy performs a single batch send against the legacy endpoint
// and fans the batched response back out into per-token outcomes.
func (s *Sender) sendLegacy(ctx context.Context, deviceTokens []string, msg Message) (_ []PushOutcome, err error) {
	defer mon.Task()(&ctx)(&err)

	payload := map[string]interface{}{
		"registration_ids":  deviceTokens,
		"data":              s.buildData(msg),
		"priority":          "high",
		"content_available": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ErrSender.Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.LegacyURL, bytes.NewReader(body))
	if err != nil {
		return nil, ErrSender.Wrap(err)
	}
	req.Header.Set("Authorization", "key="+s.config.ServerKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, ErrSender.Wrap(err)
	}
	defer func() { err = errs.Combine(err, resp.Body.Close()) }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrSender.Wrap(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ErrSender.New("legacy send failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var legacyResp struct {
		Success int `json:"success"`
		Failure int `json:"failure"`
		Results []struct {
			MessageID string `json:"message_id"`
			Error     string `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBody, &legacyResp); err != nil {
		return nil, ErrSender.Wrap(err)
	}

	outcomes := make([]PushOutcome, 0, len(deviceTokens))
	for i, token := range deviceTokens {
		outcome := PushOutcome{Token: token, StatusCode: resp.StatusCode}
		if i < len(legacyResp.Results) {
			result := legacyResp.Results[i]
			outcome.Success = result.Error == ""
			outcome.MessageID = result.MessageID
			outcome.Error = result.Error
		} else {
			outcome.Success = true
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// buildData merges the message envelope into the structured payload so
// the client can reconstruct the visible notification from data alone.
func (s *Sender) buildData(msg Message) map[string]string {
	data := make(map[string]string, len(msg.Data)+3)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["type"] = msg.Type
	data["title"] = msg.Title
	data["message"] = msg.Body
	return data
}

func tokenPreview(token string) string {
	if len(token) > 20 {
		return token[:20] + "..."
	}
	return token
}
